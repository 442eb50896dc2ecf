package service

import (
	"fmt"

	"changeTracker/internal/workflow"
)

// коды бизнес-ошибок поверх кодов воркфлоу
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeAccessDenied    = "ACCESS_DENIED"
	CodeNotFound        = "NOT_FOUND"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeImportError     = "IMPORT_ERROR"
	CodeInvalidLogin    = "INVALID_CREDENTIALS"
	CodeLoginPending    = "REGISTRATION_PENDING"
	CodeLoginRejected   = "REGISTRATION_REJECTED"
)

// здесь происходит проверка ошибок бизнес-логики

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

type Detail struct {
	Key     string
	Payload any
}

func ToDetail(key string, payload any) Detail {
	return Detail{Key: key, Payload: payload}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}
	return busErr
}

func NewNotFound(resource string, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s не найден(а)", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewAccessDenied(operation string) *BusinessError {
	return &BusinessError{
		Code:    CodeAccessDenied,
		Message: "недостаточно прав для операции",
		Details: map[string]any{"operation": operation},
	}
}

func NewVersionConflict(resource string, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeVersionConflict,
		Message: "запись была изменена параллельно, перечитайте и повторите",
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

// fromWorkflowError переводит нарушение правила воркфлоу в бизнес-ошибку,
// сохраняя код как есть
func fromWorkflowError(err error) error {
	if re, ok := workflow.IsRuleError(err); ok {
		return &BusinessError{Code: re.Code, Message: re.Message, Details: re.Details}
	}
	return err
}
