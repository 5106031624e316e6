package resolver

import (
	"fmt"

	"officeflow/account"
	"officeflow/authority"
	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/domain/org"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// Assignment names who must act on a node. For user assignments ID is the
// user id in decimal form, for role and department assignments the ledger
// keeps the declared role code or department id rather than an arbitrarily
// chosen member.
type Assignment struct {
	Type domain.AssigneeType `json:"type"`
	ID   string              `json:"id"`
}

type Strategy func(node domain.Node, instance *domain.WorkflowInstance, actorId types.ID, s *session.Session) (*Assignment, error)

var strategies = map[domain.AssigneeType]Strategy{
	domain.AssigneeTypeInitiator:  resolveInitiator,
	domain.AssigneeTypeSupervisor: resolveSupervisor,
	domain.AssigneeTypeUser:       resolveDeclared,
	domain.AssigneeTypeRole:       resolveDeclared,
	domain.AssigneeTypeDepartment: resolveDeclared,
	domain.AssigneeTypeDynamic:    resolveDynamic,
}

var ResolveFunc = Resolve

// Resolve computes the assignment of a node for the given instance. actorId
// is the user whose action enters the node, it anchors supervisor lookups.
func Resolve(node domain.Node, instance *domain.WorkflowInstance, actorId types.ID, s *session.Session) (*Assignment, error) {
	strategy, found := strategies[node.AssigneeRule.Type]
	if !found {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("unsupported assignee rule '%s'", node.AssigneeRule.Type)}
	}
	return strategy(node, instance, actorId, s)
}

func resolveInitiator(node domain.Node, instance *domain.WorkflowInstance, actorId types.ID, s *session.Session) (*Assignment, error) {
	return &Assignment{Type: domain.AssigneeTypeUser, ID: instance.InitiatorID.String()}, nil
}

// resolveSupervisor walks the department chain of the acting user: own
// department manager first, the parent department manager when that would be
// the actor themselves, finally any system administrator. The walk guarantees
// progress in flat or single-manager organizations.
func resolveSupervisor(node domain.Node, instance *domain.WorkflowInstance, actorId types.ID, s *session.Session) (*Assignment, error) {
	actor, err := account.GetUserFunc(actorId, s)
	if err != nil {
		return nil, err
	}

	departmentId := actor.DepartmentID
	for departmentId != 0 {
		department, err := org.GetDepartmentFunc(departmentId, s)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				break
			}
			return nil, err
		}
		if department.ManagerID != 0 && department.ManagerID != actorId {
			return &Assignment{Type: domain.AssigneeTypeUser, ID: department.ManagerID.String()}, nil
		}
		departmentId = department.ParentID
	}

	return fallbackToAdmin(actorId, s)
}

func resolveDeclared(node domain.Node, instance *domain.WorkflowInstance, actorId types.ID, s *session.Session) (*Assignment, error) {
	if node.AssigneeRule.ID == "" {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("node '%s' declares no assignee id", node.ID)}
	}
	assigneeType := node.AssigneeRule.Type
	if assigneeType == domain.AssigneeTypeUser {
		if _, err := types.ParseID(node.AssigneeRule.ID); err != nil {
			return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("node '%s' declares an invalid user id", node.ID)}
		}
	}
	return &Assignment{Type: assigneeType, ID: node.AssigneeRule.ID}, nil
}

// resolveDynamic reads the assignee user id from the form field named by the
// rule's ID.
func resolveDynamic(node domain.Node, instance *domain.WorkflowInstance, actorId types.ID, s *session.Session) (*Assignment, error) {
	fieldName := node.AssigneeRule.ID
	if fieldName == "" {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("node '%s' declares no form field for dynamic assignment", node.ID)}
	}
	raw, found := instance.FormData[fieldName]
	if !found {
		return nil, bizerror.ErrNoEligibleApprover
	}
	userId, err := types.ParseID(fmt.Sprintf("%v", raw))
	if err != nil {
		return nil, bizerror.ErrNoEligibleApprover
	}
	if _, err := account.GetUserFunc(userId, s); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, bizerror.ErrNoEligibleApprover
		}
		return nil, err
	}
	return &Assignment{Type: domain.AssigneeTypeUser, ID: userId.String()}, nil
}

func fallbackToAdmin(actorId types.ID, s *session.Session) (*Assignment, error) {
	adminIds, err := account.FindUserIdsByRoleFunc(authority.RoleSystemAdmin, s)
	if err != nil {
		return nil, err
	}
	for _, adminId := range adminIds {
		if adminId != actorId {
			return &Assignment{Type: domain.AssigneeTypeUser, ID: adminId.String()}, nil
		}
	}
	// a sole admin may still approve their own instance, no alternate exists
	if len(adminIds) > 0 {
		return &Assignment{Type: domain.AssigneeTypeUser, ID: adminIds[0].String()}, nil
	}
	return nil, bizerror.ErrNoEligibleApprover
}

// ExpandAssignees lists the concrete users eligible to act on an assignment.
// Used for parallel fan-out and for matching a user's pending inbox.
func ExpandAssignees(assignment Assignment, s *session.Session) ([]types.ID, error) {
	switch assignment.Type {
	case domain.AssigneeTypeUser:
		userId, err := types.ParseID(assignment.ID)
		if err != nil {
			return nil, err
		}
		return []types.ID{userId}, nil
	case domain.AssigneeTypeRole:
		return account.FindUserIdsByRoleFunc(assignment.ID, s)
	case domain.AssigneeTypeDepartment:
		departmentId, err := types.ParseID(assignment.ID)
		if err != nil {
			return nil, err
		}
		return account.FindUserIdsByDepartmentFunc(departmentId, s)
	}
	return nil, fmt.Errorf("assignment type '%s' is not expandable", assignment.Type)
}
