package task

import "fmt"

// Error is a configuration-level error carrying a kind for callers that
// need to tell parse failures from validation failures.
type Error struct {
	Kind    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error kinds
const (
	ErrKindReadFile       = "READ_FILE"
	ErrKindParseTOML      = "PARSE_TOML"
	ErrKindParseYAML      = "PARSE_YAML"
	ErrKindUnknownFormat  = "UNKNOWN_FORMAT"
	ErrKindInvalidConfig  = "INVALID_CONFIG"
	ErrKindSignal         = "SIGNAL"
	ErrKindInvalidCommand = "INVALID_COMMAND"
)

// NewError creates a new task error.
func NewError(kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}
