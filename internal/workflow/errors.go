package workflow

import "fmt"

// коды нарушений правил воркфлоу; сервис прокидывает их наружу как бизнес-ошибки
const (
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeRollbackReasonRequired = "ROLLBACK_REASON_REQUIRED"
	CodeStatusDateRequired     = "STATUS_DATE_REQUIRED"
	CodeEstimateRequired       = "ESTIMATE_REQUIRED"
	CodeDeliveryDateRequired   = "DELIVERY_DATE_REQUIRED"
	CodeInvalidHours           = "INVALID_HOURS"
	CodeValidation             = "VALIDATION_ERROR"
)

// RuleError — нарушение правила воркфлоу. Валидация полностью предшествует
// мутации: задача при ошибке не меняется вообще.
type RuleError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newRuleError(code, message string, details map[string]any) *RuleError {
	if details == nil {
		details = map[string]any{}
	}
	return &RuleError{Code: code, Message: message, Details: details}
}

// IsRuleError возвращает RuleError, если ошибка им является
func IsRuleError(err error) (*RuleError, bool) {
	re, ok := err.(*RuleError)
	return re, ok
}
