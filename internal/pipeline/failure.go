package pipeline

import (
	"errors"
	"fmt"
)

// Code classifies a failed run.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeContextFailed      Code = "CONTEXT_FAILED"
	CodeInsufficientTokens Code = "INSUFFICIENT_TOKENS"
	CodeAITimeout          Code = "AI_TIMEOUT"
	CodeAIError            Code = "AI_ERROR"
	CodeParseFailed        Code = "PARSE_FAILED"
	CodePersistFailed      Code = "PERSIST_FAILED"
)

var displayMessages = map[Code]string{
	CodeValidation:         "Invalid request",
	CodeContextFailed:      "Failed to load your profile. Please try again.",
	CodeInsufficientTokens: "INSUFFICIENT_TOKENS",
	CodeAITimeout:          "AI analysis timed out. Please try again.",
	CodeAIError:            "AI analysis failed. Please try again.",
	CodeParseFailed:        "PARSE_FAILED",
	CodePersistFailed:      "Failed to save results",
}

// DisplayMessage returns the caller-facing text for code.
func DisplayMessage(code Code) string {
	if msg, ok := displayMessages[code]; ok {
		return msg
	}
	return string(code)
}

// Failure is a run that ended with an error event.
type Failure struct {
	Code    Code
	Message string
	Err     error
}

func newFailure(code Code, err error) *Failure {
	return &Failure{Code: code, Message: DisplayMessage(code), Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Code, f.Err)
	}
	return string(f.Code)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// CodeOf returns the failure code in err's chain, or "" if there is none.
func CodeOf(err error) Code {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}
