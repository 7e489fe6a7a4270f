package serverutils

// Response is the success envelope every endpoint returns.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// ErrorBody is the error envelope. ErrorKind carries the stable fault kind
// clients branch on; Hint is human guidance; Data carries partial results
// (e.g. the persisted inbound message when the reply failed).
type ErrorBody struct {
	Success   bool        `json:"success"`
	Code      int         `json:"code"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Message   string      `json:"message"`
	Hint      string      `json:"hint,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func ErrorResponse(code int, message string) ErrorBody {
	return ErrorBody{
		Success: false,
		Code:    code,
		Message: message,
	}
}
