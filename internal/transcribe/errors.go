package transcribe

import "fmt"

// ErrorKind categorizes transcription pipeline failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindConversion
	KindWorkerInit
	KindRecognitionTimeout
	KindRecognition
	KindRecognitionEmpty
)

// String returns a string representation of the ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindConversion:
		return "CONVERSION"
	case KindWorkerInit:
		return "WORKER_INIT"
	case KindRecognitionTimeout:
		return "RECOGNITION_TIMEOUT"
	case KindRecognition:
		return "RECOGNITION"
	case KindRecognitionEmpty:
		return "RECOGNITION_EMPTY"
	default:
		return "UNKNOWN"
	}
}

// Error is a transcription pipeline failure with a category the caller can
// branch on.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a failure of this kind may succeed on retry.
// Validation failures, recognition timeouts and empty recognitions are final:
// the same document will fail the same way again.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConversion, KindWorkerInit, KindRecognition:
		return true
	default:
		return false
	}
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
