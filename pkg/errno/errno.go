package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithDetail returns a copy of the Errno with extra detail appended.
// Code 不变，IsCode 仍然可以匹配。
func (e Errno) WithDetail(detail string) Errno {
	e.Message = e.Message + ": " + detail
	return e
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// IsCode reports whether err carries the same code as target,
// ignoring any WithDetail suffix on the message.
func IsCode(err error, target Errno) bool {
	var e Errno
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	var ep *Errno
	if errors.As(err, &ep) {
		return ep.Code == target.Code
	}
	return false
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "DB_ERROR"}
)

// Transaction engine errors (20300+)
var (
	ErrInvalidChain    = Errno{Code: 20301, Message: "INVALID_CHAIN"}
	ErrInvalidAmount   = Errno{Code: 20302, Message: "INVALID_AMOUNT"}
	ErrAddressNotFound = Errno{Code: 20303, Message: "ADDRESS_NOT_FOUND"}
	ErrPrepareFailed   = Errno{Code: 20304, Message: "PREPARE_FAILED"}
	ErrBroadcastFailed = Errno{Code: 20305, Message: "BROADCAST_FAILED"}
	ErrIntentNotFound  = Errno{Code: 20306, Message: "INTENT_NOT_FOUND"}
	ErrIntentExpired   = Errno{Code: 20307, Message: "INTENT_EXPIRED"}
	ErrTxNotFound      = Errno{Code: 20308, Message: "TX_NOT_FOUND"}
	// ErrInvalidPayload 签名载荷在本地解码就失败，重试没有意义。
	// 与 ErrBroadcastFailed (提交给网络失败，可重试) 严格区分。
	ErrInvalidPayload = Errno{Code: 20309, Message: "INVALID_PAYLOAD"}
)

// Webhook errors (20400+)
var (
	ErrInvalidURL      = Errno{Code: 20401, Message: "INVALID_URL"}
	ErrInvalidEvent    = Errno{Code: 20402, Message: "INVALID_EVENT"}
	ErrWebhookNotFound = Errno{Code: 20403, Message: "WEBHOOK_NOT_FOUND"}
)
