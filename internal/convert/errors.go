// Package convert は外部コマンドによる文書変換の呼び出しを提供します。
package convert

// エラーコード。タスクはいずれのコードでも終端状態（failed）になり、再試行されません。
const (
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeConvertFailed     = "CONVERT_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error は変換失敗の分類情報を保持します。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
