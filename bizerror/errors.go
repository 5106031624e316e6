package bizerror

import (
	"errors"
	"net/http"

	"officeflow/i18n"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidPassword = errors.New("invalid password")
	ErrNotFound        = errors.New("record not found")
	ErrTooManyRequests = errors.New("too many requests")

	// workflow definition errors
	ErrDefinitionNotActive = errors.New("workflow definition is not active")
	ErrDefinitionReadonly  = errors.New("workflow definition is readonly once activated")
	ErrUnknownNode         = errors.New("unknown node")

	// workflow instance errors
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrNoEligibleApprover = errors.New("no eligible approver")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return i18n.CommonBadParam
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := i18n.CommonBadParam
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: i18n.CommonBadParam, Message: message}
}

// ErrInvalidForm reports form data which violates the definition's form schema.
type ErrInvalidForm struct {
	Violations []string
}

func (e *ErrInvalidForm) Error() string {
	return "form data is invalid"
}
func (e *ErrInvalidForm) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: i18n.WorkflowFormInvalid,
		Message: "form data is invalid", Data: e.Violations}
}
