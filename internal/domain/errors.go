package domain

import (
	"errors"
	"fmt"
)

// Error codes carried by NotificationError.
const (
	CodeStoreError    = "STORE_ERROR"
	CodeTemplateError = "TEMPLATE_ERROR"
	CodeDeliveryError = "DELIVERY_ERROR"
	CodeDetectorError = "DETECTOR_ERROR"
	CodeTaskFailed    = "TASK_FAILED"
)

// ValidationError reports bad input on a single field. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects several field errors from one input.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	if len(es) == 0 {
		return "validation failed"
	}
	msg := es[0].Error()
	for _, e := range es[1:] {
		msg += "; " + e.Error()
	}
	return msg
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type TemplateNotFoundError struct {
	NotificationType NotificationType
	EventType        EventType
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no template for %s/%s", e.NotificationType, e.EventType)
}

// NotificationError wraps store, delivery and detector failures.
type NotificationError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

func NewStoreError(message string, err error) *NotificationError {
	return &NotificationError{Code: CodeStoreError, Message: message, Err: err}
}

func NewTemplateError(message string, err error) *NotificationError {
	return &NotificationError{Code: CodeTemplateError, Message: message, Err: err}
}

func NewDeliveryError(message string, err error) *NotificationError {
	return &NotificationError{Code: CodeDeliveryError, Message: message, Err: err}
}

// IsRetryable reports whether a failed operation may succeed when repeated.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	var ves ValidationErrors
	var nf *NotFoundError
	var tnf *TemplateNotFoundError
	switch {
	case errors.As(err, &ve), errors.As(err, &ves), errors.As(err, &nf), errors.As(err, &tnf):
		return false
	}
	var ne *NotificationError
	if errors.As(err, &ne) && ne.Code == CodeTemplateError {
		return false
	}
	return true
}
