package request

type RegisterAddressRequest struct {
	WalletID string `json:"wallet_id" binding:"required"`
	Chain    string `json:"chain" binding:"required"`
	Address  string `json:"address" binding:"required"`
}

type CreateWebhookRequest struct {
	WalletID string   `json:"wallet_id" binding:"required"`
	URL      string   `json:"url" binding:"required"`
	Events   []string `json:"events" binding:"required"`
}
