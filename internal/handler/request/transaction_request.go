package request

type PrepareRequest struct {
	WalletID    string `json:"wallet_id" binding:"required"`
	Chain       string `json:"chain" binding:"required"`
	FromAddress string `json:"from_address" binding:"required"`
	ToAddress   string `json:"to_address" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Priority    string `json:"priority" binding:"omitempty,oneof=low medium high"`
}

type BroadcastRequest struct {
	WalletID      string `json:"wallet_id" binding:"required"`
	IntentID      string `json:"intent_id" binding:"required"`
	SignedPayload string `json:"signed_payload" binding:"required"`
}
