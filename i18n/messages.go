package i18n

const (
	CommonInternalServerError = "common.internal_server_error"
	CommonBadParam            = "common.bad_param"
	CommonRecordNotFound      = "common.record_not_found"
	CommonUnauthenticated     = "common.unauthenticated"
	SecurityInvalidPassword   = "security.invalid_password"
	SecurityForbidden         = "security.forbidden"

	WorkflowInvalidTransition   = "workflow.invalid_transition"
	WorkflowNoEligibleApprover  = "workflow.no_eligible_approver"
	WorkflowDefinitionNotActive = "workflow.definition_not_active"
	WorkflowFormInvalid         = "workflow.form_invalid"
)
