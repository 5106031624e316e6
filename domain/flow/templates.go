package flow

import (
	"time"

	"officeflow/authority"
	"officeflow/domain"
	"officeflow/idgen"

	"github.com/jinzhu/gorm"
)

// TwoStepApprovalGraph routes to the initiator's supervisor first and to a
// system administrator afterwards.
func TwoStepApprovalGraph() domain.NodeGraph {
	return domain.NodeGraph{
		Nodes: []domain.Node{
			{ID: "start", Name: "Start", Type: domain.NodeTypeStart},
			{ID: "supervisor-approval", Name: "Supervisor Approval", Type: domain.NodeTypeApproval,
				AssigneeRule: domain.AssigneeRule{Type: domain.AssigneeTypeSupervisor}},
			{ID: "admin-approval", Name: "Administrative Approval", Type: domain.NodeTypeApproval,
				AssigneeRule: domain.AssigneeRule{Type: domain.AssigneeTypeRole, ID: authority.RoleSystemAdmin}},
			{ID: "end", Name: "End", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.Edge{
			{From: "start", To: "supervisor-approval"},
			{From: "supervisor-approval", To: "admin-approval"},
			{From: "admin-approval", To: "end"},
		},
	}
}

func SingleStepApprovalGraph() domain.NodeGraph {
	return domain.NodeGraph{
		Nodes: []domain.Node{
			{ID: "start", Name: "Start", Type: domain.NodeTypeStart},
			{ID: "admin-approval", Name: "Administrative Approval", Type: domain.NodeTypeApproval,
				AssigneeRule: domain.AssigneeRule{Type: domain.AssigneeTypeRole, ID: authority.RoleSystemAdmin}},
			{ID: "end", Name: "End", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.Edge{
			{From: "start", To: "admin-approval"},
			{From: "admin-approval", To: "end"},
		},
	}
}

func LeaveFormSchema() domain.FormSchema {
	return domain.FormSchema{Fields: []domain.FormField{
		{Name: "leaveType", Label: "Leave Type", Type: domain.FormFieldTypeEnum, Required: true,
			Options: []string{"annual", "sick", "personal", "marriage", "maternity"}},
		{Name: "startDate", Label: "Start Date", Type: domain.FormFieldTypeDate, Required: true},
		{Name: "endDate", Label: "End Date", Type: domain.FormFieldTypeDate, Required: true},
		{Name: "reason", Label: "Reason", Type: domain.FormFieldTypeString},
	}}
}

func ExpenseFormSchema() domain.FormSchema {
	return domain.FormSchema{Fields: []domain.FormField{
		{Name: "amount", Label: "Amount", Type: domain.FormFieldTypeNumber, Required: true},
		{Name: "expenseDate", Label: "Expense Date", Type: domain.FormFieldTypeDate, Required: true},
		{Name: "purpose", Label: "Purpose", Type: domain.FormFieldTypeString, Required: true},
	}}
}

func GenericFormSchema() domain.FormSchema {
	return domain.FormSchema{Fields: []domain.FormField{
		{Name: "subject", Label: "Subject", Type: domain.FormFieldTypeString, Required: true},
		{Name: "description", Label: "Description", Type: domain.FormFieldTypeString},
	}}
}

// BootstrapBuiltinDefinitions seeds the built-in definitions when their codes
// are not present yet.
func BootstrapBuiltinDefinitions(db *gorm.DB) error {
	builtins := []domain.WorkflowDefinition{
		{Name: "Leave Request", Code: "leave-2step", Category: domain.CategoryLeave,
			Graph: TwoStepApprovalGraph(), FormSchema: LeaveFormSchema()},
		{Name: "Expense Claim", Code: "expense-2step", Category: domain.CategoryExpense,
			Graph: TwoStepApprovalGraph(), FormSchema: ExpenseFormSchema()},
		{Name: "Generic Approval", Code: "generic", Category: domain.CategoryGeneric,
			Graph: SingleStepApprovalGraph(), FormSchema: GenericFormSchema()},
	}

	for _, builtin := range builtins {
		existing := domain.WorkflowDefinition{}
		err := db.Where(&domain.WorkflowDefinition{Code: builtin.Code}).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		builtin.ID = idgen.NextID(definitionIdWorker)
		builtin.Status = domain.DefinitionStatusActive
		builtin.Version = 1
		builtin.IsLatest = true
		builtin.CreateTime = time.Now().Round(time.Millisecond)
		if err := db.Create(&builtin).Error; err != nil {
			return err
		}
	}
	return nil
}
