package engine

import "fmt"

// FailureCode is the machine-readable classification of an engine
// failure.
type FailureCode string

const (
	CodeSessionNotFound   FailureCode = "SESSION_NOT_FOUND"
	CodeScriptNotFound    FailureCode = "SCRIPT_NOT_FOUND"
	CodeValidation        FailureCode = "VALIDATION"
	CodeInvalidPhase      FailureCode = "INVALID_PHASE"
	CodeQuotaExceeded     FailureCode = "QUOTA_EXCEEDED"
	CodeUnsupportedAction FailureCode = "UNSUPPORTED_ACTION"
	CodeAIUnavailable     FailureCode = "AI_UNAVAILABLE"
	CodePersistFailure    FailureCode = "PERSIST_FAILURE"
)

// Failure is the typed result for expected domain outcomes. The facade
// is the error boundary: raw storage and network errors never cross it.
type Failure struct {
	Code    FailureCode
	Message string

	// CharacterID and Act are set for quota failures so callers can tell
	// the player which character's limit was hit and in which act.
	CharacterID string
	Act         int
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// failf builds a Failure with a formatted message.
func failf(code FailureCode, format string, args ...any) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...)}
}

// quotaFail builds the quota failure with its character and act context.
func quotaFail(characterID string, act int, limit int) *Failure {
	return &Failure{
		Code:        CodeQuotaExceeded,
		Message:     fmt.Sprintf("character %s has answered %d questions in act %d already", characterID, limit, act),
		CharacterID: characterID,
		Act:         act,
	}
}
