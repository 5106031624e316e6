package instance

import (
	"strings"
	"time"

	"officeflow/account"
	"officeflow/authority"
	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/domain/flow"
	"officeflow/domain/resolver"
	"officeflow/event"
	"officeflow/idgen"
	"officeflow/notify"
	"officeflow/persistence"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	instanceIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateInstanceFunc    = CreateInstance
	SubmitInstanceFunc    = SubmitInstance
	ApproveNodeFunc       = ApproveNode
	RejectNodeFunc        = RejectNode
	CancelInstanceFunc    = CancelInstance
	QueryInstancesFunc    = QueryInstances
	QueryPendingNodesFunc = QueryPendingNodes
	DetailInstanceFunc    = DetailInstance
)

type InstanceCreation struct {
	DefinitionCode string `json:"definitionCode" validate:"required,lte=64"`
	Title          string `json:"title" validate:"required,lte=128"`
	BusinessKey    string `json:"businessKey" validate:"lte=64"`

	FormData domain.FormData `json:"formData"`

	Priority int        `json:"priority"`
	DueDate  *time.Time `json:"dueDate"`
}

type DecisionRequest struct {
	Comment string `json:"comment" validate:"lte=512"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"lte=512"`
}

// CreateInstance validates the form data against the pinned definition's
// schema and stores a draft. No ledger entry exists until submission.
func CreateInstance(c *InstanceCreation, s *session.Session) (*domain.WorkflowInstance, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	definition, err := flow.LatestActiveDefinition(c.DefinitionCode, db)
	if err != nil {
		return nil, err
	}

	formData := c.FormData
	if formData == nil {
		formData = domain.FormData{}
	}
	if violations := flow.ValidateFormData(definition.FormSchema, formData); len(violations) > 0 {
		return nil, &bizerror.ErrInvalidForm{Violations: violations}
	}

	startNode, found := definition.Graph.StartNode()
	if !found {
		return nil, bizerror.ErrUnknownNode
	}

	record := &domain.WorkflowInstance{
		ID:            idgen.NextID(instanceIdWorker),
		DefinitionID:  definition.ID,
		BusinessKey:   c.BusinessKey,
		Title:         c.Title,
		FormData:      formData,
		CurrentNodeID: startNode.ID,
		Status:        domain.InstanceStatusDraft,
		InitiatorID:   s.Identity.ID,
		Priority:      c.Priority,
		DueDate:       c.DueDate,
		CreateTime:    time.Now().Round(time.Millisecond),
	}

	var ev *event.EventRecord
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		created, err := event.CreateEvent(event.SourceTypeWorkflowInstance, record.ID, record.Title,
			event.EventCategoryCreated, nil, &s.Identity, tx)
		if err != nil {
			return err
		}
		ev = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	event.FireEventFunc(ev)
	return record, nil
}

// SubmitInstance moves a draft into processing and opens the first approval
// step. Only the initiator may submit.
func SubmitInstance(id types.ID, s *session.Session) (*domain.WorkflowInstance, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	record := domain.WorkflowInstance{}
	var ev *event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowInstance{ID: id}).First(&record).Error; err != nil {
			return err
		}
		if record.InitiatorID != s.Identity.ID {
			return bizerror.ErrForbidden
		}
		if record.Status != domain.InstanceStatusDraft {
			return bizerror.ErrInvalidTransition
		}

		definition := domain.WorkflowDefinition{}
		if err := tx.Where(&domain.WorkflowDefinition{ID: record.DefinitionID}).First(&definition).Error; err != nil {
			return err
		}

		now := time.Now().Round(time.Millisecond)
		finished, nextNodeId, err := openNextStep(tx, &definition, &record, record.CurrentNodeID, s.Identity.ID, s)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"start_time": &now}
		if finished {
			// a graph without approval nodes completes on submission
			updates["status"] = domain.InstanceStatusApproved
			updates["current_node_id"] = ""
			updates["end_time"] = &now
		} else {
			updates["status"] = domain.InstanceStatusProcessing
			updates["current_node_id"] = nextNodeId
		}
		query := tx.Model(&domain.WorkflowInstance{}).
			Where("id = ? AND status = ?", id, domain.InstanceStatusDraft).
			Update(updates)
		if err := query.Error; err != nil {
			return err
		}
		if query.RowsAffected != 1 {
			return bizerror.ErrInvalidTransition
		}

		if err := tx.Where(&domain.WorkflowInstance{ID: id}).First(&record).Error; err != nil {
			return err
		}
		created, err := event.CreateEvent(event.SourceTypeWorkflowInstance, record.ID, record.Title,
			event.EventCategoryPropertyUpdated, statusChange(domain.InstanceStatusDraft, record.Status), &s.Identity, tx)
		if err != nil {
			return err
		}
		ev = created
		return nil
	})
	if err != nil {
		reportResolutionBlock(id, err, s)
		return nil, err
	}
	event.FireEventFunc(ev)
	return &record, nil
}

// ApproveNode records an approval decision on the caller's pending ledger
// entry and advances the instance, completing it after the last step.
func ApproveNode(id types.ID, c *DecisionRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	record, err := decide(id, domain.NodeInstanceStatusApproved, c.Comment, s)
	if err != nil {
		reportResolutionBlock(id, err, s)
		return nil, err
	}
	if record.Status == domain.InstanceStatusApproved {
		notify.InstanceFinishedFunc(record, s)
	}
	return record, nil
}

// RejectNode records a rejection. Rejection is terminal: the remaining
// pending siblings are terminated and resubmission means a fresh instance.
func RejectNode(id types.ID, c *DecisionRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	record, err := decide(id, domain.NodeInstanceStatusRejected, c.Comment, s)
	if err != nil {
		return nil, err
	}
	if record.Status == domain.InstanceStatusRejected {
		notify.InstanceFinishedFunc(record, s)
	}
	return record, nil
}

func CancelInstance(id types.ID, c *CancelRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	record := domain.WorkflowInstance{}
	var ev *event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowInstance{ID: id}).First(&record).Error; err != nil {
			return err
		}
		if record.InitiatorID != s.Identity.ID && !s.Perms.HasAdminRole() {
			return bizerror.ErrForbidden
		}
		if record.Status.IsTerminal() {
			return bizerror.ErrInvalidTransition
		}
		previous := record.Status

		now := time.Now().Round(time.Millisecond)
		query := tx.Model(&domain.WorkflowInstance{}).
			Where("id = ? AND status IN (?)", id,
				[]domain.InstanceStatus{domain.InstanceStatusDraft, domain.InstanceStatusProcessing}).
			Update(map[string]interface{}{"status": domain.InstanceStatusCanceled, "current_node_id": "", "end_time": &now})
		if err := query.Error; err != nil {
			return err
		}
		if query.RowsAffected != 1 {
			return bizerror.ErrInvalidTransition
		}

		if err := terminatePendingNodeInstances(tx, id, c.Reason); err != nil {
			return err
		}
		if err := tx.Where(&domain.WorkflowInstance{ID: id}).First(&record).Error; err != nil {
			return err
		}
		created, err := event.CreateEvent(event.SourceTypeWorkflowInstance, record.ID, record.Title,
			event.EventCategoryPropertyUpdated, statusChange(previous, record.Status), &s.Identity, tx)
		if err != nil {
			return err
		}
		ev = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	event.FireEventFunc(ev)
	return &record, nil
}

func QueryInstances(query *domain.WorkflowInstanceQuery, s *session.Session) (*[]domain.WorkflowInstance, error) {
	var records []domain.WorkflowInstance
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	q := db.Where(domain.WorkflowInstance{DefinitionID: query.DefinitionID,
		InitiatorID: query.InitiatorID, Status: query.Status})
	if !s.Perms.HasAdminRole() {
		q = q.Where("initiator_id = ?", s.Identity.ID)
	}
	if err := q.Order("create_time DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return &records, nil
}

// QueryPendingNodes lists the caller's approval inbox: every pending ledger
// entry assigned to them directly, to one of their roles, or to their
// department.
func QueryPendingNodes(s *session.Session) ([]domain.PendingNodeEntry, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	var nodeRecords []domain.WorkflowNodeInstance
	err := db.Where("status = ? AND assignee_id IN (?)",
		domain.NodeInstanceStatusPending, eligibleIdentifiers(s)).
		Order("start_time ASC").Find(&nodeRecords).Error
	if err != nil {
		return nil, err
	}
	if len(nodeRecords) == 0 {
		return []domain.PendingNodeEntry{}, nil
	}

	instanceIds := []types.ID{}
	for _, r := range nodeRecords {
		instanceIds = append(instanceIds, r.WorkflowInstanceID)
	}
	var instanceRecords []domain.WorkflowInstance
	if err := db.Where("id IN (?)", instanceIds).Find(&instanceRecords).Error; err != nil {
		return nil, err
	}
	instanceIndex := map[types.ID]domain.WorkflowInstance{}
	initiatorIds := []types.ID{}
	for _, r := range instanceRecords {
		instanceIndex[r.ID] = r
		initiatorIds = append(initiatorIds, r.InitiatorID)
	}
	initiatorNames, err := account.QueryAccountNamesFunc(initiatorIds, s)
	if err != nil {
		return nil, err
	}

	entries := []domain.PendingNodeEntry{}
	for _, r := range nodeRecords {
		owner := instanceIndex[r.WorkflowInstanceID]
		entries = append(entries, domain.PendingNodeEntry{
			InstanceID:     r.WorkflowInstanceID,
			NodeInstanceID: r.ID,
			NodeName:       r.NodeName,
			Title:          owner.Title,
			InitiatorName:  initiatorNames[owner.InitiatorID],
			DueDate:        owner.DueDate,
		})
	}
	return entries, nil
}

func DetailInstance(id types.ID, s *session.Session) (*domain.WorkflowInstanceDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	detail := domain.WorkflowInstanceDetail{}
	if err := db.Where(&domain.WorkflowInstance{ID: id}).First(&detail.WorkflowInstance).Error; err != nil {
		return nil, err
	}

	history, err := History(db, id)
	if err != nil {
		return nil, err
	}
	detail.History = history

	if detail.InitiatorID != s.Identity.ID && !s.Perms.HasAdminRole() && !appearsInHistory(history, s) {
		return nil, bizerror.ErrForbidden
	}
	return &detail, nil
}

// decide is the shared approve/reject path: match the caller's pending ledger
// entry, record the decision with the optimistic guard, then advance or
// terminate the instance.
func decide(id types.ID, to domain.NodeInstanceStatus, comment string, s *session.Session) (*domain.WorkflowInstance, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	record := domain.WorkflowInstance{}
	var ev *event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowInstance{ID: id}).First(&record).Error; err != nil {
			return err
		}
		if record.Status != domain.InstanceStatusProcessing {
			return bizerror.ErrInvalidTransition
		}

		pending, err := pendingNodeInstances(tx, id)
		if err != nil {
			return err
		}
		acting := matchActor(pending, s)
		if acting == nil {
			return bizerror.ErrInvalidTransition
		}

		if err := decideNodeInstance(tx, acting, to, comment); err != nil {
			return err
		}

		definition := domain.WorkflowDefinition{}
		if err := tx.Where(&domain.WorkflowDefinition{ID: record.DefinitionID}).First(&definition).Error; err != nil {
			return err
		}

		now := time.Now().Round(time.Millisecond)
		if to == domain.NodeInstanceStatusRejected {
			if err := terminatePendingNodeInstances(tx, id, "prior step rejected"); err != nil {
				return err
			}
			ev, err = finishInstance(tx, &record, domain.InstanceStatusRejected, &now, s)
			return err
		}

		// a parallel step advances only after its whole concurrent set resolved
		if acting.NodeType == domain.NodeTypeParallel {
			remaining, err := pendingNodeInstances(tx, id)
			if err != nil {
				return err
			}
			if len(remaining) > 0 {
				ev, err = reloadAndRecordEvent(tx, &record, s)
				return err
			}
		}

		finished, nextNodeId, err := openNextStep(tx, &definition, &record, acting.NodeID, s.Identity.ID, s)
		if err != nil {
			return err
		}
		if finished {
			ev, err = finishInstance(tx, &record, domain.InstanceStatusApproved, &now, s)
			return err
		}

		query := tx.Model(&domain.WorkflowInstance{}).
			Where("id = ? AND status = ?", id, domain.InstanceStatusProcessing).
			Update(map[string]interface{}{"current_node_id": nextNodeId})
		if err := query.Error; err != nil {
			return err
		}
		ev, err = reloadAndRecordEvent(tx, &record, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.FireEventFunc(ev)
	return &record, nil
}

// openNextStep walks the graph from fromNodeId until a node requiring human
// action or the end of the graph. Pass-through nodes are recorded as skipped
// ledger entries. It returns the id of the opened node, or finished=true when
// the walk reached the end.
func openNextStep(tx *gorm.DB, definition *domain.WorkflowDefinition, record *domain.WorkflowInstance,
	fromNodeId string, actorId types.ID, s *session.Session) (bool, string, error) {

	currentId := fromNodeId
	for {
		next, more, err := flow.NextNode(definition.Graph, currentId, record.FormData)
		if err != nil {
			return false, "", err
		}
		if !more {
			return true, "", nil
		}

		switch next.Type {
		case domain.NodeTypeCondition, domain.NodeTypeService:
			_, err := appendNodeInstance(tx, record.ID, next, resolver.Assignment{}, domain.NodeInstanceStatusSkipped, "")
			if err != nil {
				return false, "", err
			}
			currentId = next.ID
			continue

		case domain.NodeTypeApproval:
			assignment, err := resolver.ResolveFunc(next, record, actorId, s)
			if err != nil {
				return false, "", err
			}
			if _, err := appendNodeInstance(tx, record.ID, next, *assignment, domain.NodeInstanceStatusPending, ""); err != nil {
				return false, "", err
			}
			return false, next.ID, nil

		case domain.NodeTypeParallel:
			assignment, err := resolver.ResolveFunc(next, record, actorId, s)
			if err != nil {
				return false, "", err
			}
			members, err := resolver.ExpandAssignees(*assignment, s)
			if err != nil {
				return false, "", err
			}
			if len(members) == 0 {
				return false, "", bizerror.ErrNoEligibleApprover
			}
			for _, member := range members {
				memberAssignment := resolver.Assignment{Type: domain.AssigneeTypeUser, ID: member.String()}
				if _, err := appendNodeInstance(tx, record.ID, next, memberAssignment, domain.NodeInstanceStatusPending, ""); err != nil {
					return false, "", err
				}
			}
			return false, next.ID, nil

		default:
			return false, "", bizerror.ErrUnknownNode
		}
	}
}

func finishInstance(tx *gorm.DB, record *domain.WorkflowInstance,
	to domain.InstanceStatus, now *time.Time, s *session.Session) (*event.EventRecord, error) {

	query := tx.Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status = ?", record.ID, domain.InstanceStatusProcessing).
		Update(map[string]interface{}{"status": to, "current_node_id": "", "end_time": now})
	if err := query.Error; err != nil {
		return nil, err
	}
	if query.RowsAffected != 1 {
		return nil, bizerror.ErrInvalidTransition
	}
	return reloadAndRecordEvent(tx, record, s)
}

func reloadAndRecordEvent(tx *gorm.DB, record *domain.WorkflowInstance, s *session.Session) (*event.EventRecord, error) {
	previous := record.Status
	if err := tx.Where(&domain.WorkflowInstance{ID: record.ID}).First(record).Error; err != nil {
		return nil, err
	}
	return event.CreateEvent(event.SourceTypeWorkflowInstance, record.ID, record.Title,
		event.EventCategoryPropertyUpdated, statusChange(previous, record.Status), &s.Identity, tx)
}

// matchActor picks the pending ledger entry the session user may decide.
// Administrators hold override rights on any pending entry.
func matchActor(pending []domain.WorkflowNodeInstance, s *session.Session) *domain.WorkflowNodeInstance {
	for i := range pending {
		record := &pending[i]
		switch record.AssigneeType {
		case domain.AssigneeTypeUser:
			if record.AssigneeID == s.Identity.ID.String() {
				return record
			}
		case domain.AssigneeTypeRole:
			if s.Perms.HasRole(record.AssigneeID) {
				return record
			}
		case domain.AssigneeTypeDepartment:
			if record.AssigneeID == s.Identity.DepartmentID.String() ||
				s.Perms.HasRole(authority.RoleDeptManager+"_"+record.AssigneeID) {
				return record
			}
		}
	}
	if s.Perms.HasAdminRole() && len(pending) > 0 {
		return &pending[0]
	}
	return nil
}

func appearsInHistory(history []domain.WorkflowNodeInstance, s *session.Session) bool {
	for i := range history {
		record := &history[i]
		switch record.AssigneeType {
		case domain.AssigneeTypeUser:
			if record.AssigneeID == s.Identity.ID.String() {
				return true
			}
		case domain.AssigneeTypeRole:
			if s.Perms.HasRole(record.AssigneeID) {
				return true
			}
		case domain.AssigneeTypeDepartment:
			if record.AssigneeID == s.Identity.DepartmentID.String() ||
				s.Perms.HasRole(authority.RoleDeptManager+"_"+record.AssigneeID) {
				return true
			}
		}
	}
	return false
}

func eligibleIdentifiers(s *session.Session) []string {
	identifiers := []string{s.Identity.ID.String()}
	identifiers = append(identifiers, s.Perms...)
	if s.Identity.DepartmentID != 0 {
		identifiers = append(identifiers, s.Identity.DepartmentID.String())
	}
	// a department manager role covers entries assigned to the department itself
	if s.Perms.HasRolePrefix(authority.RoleDeptManager) {
		for _, v := range s.Perms {
			if strings.HasPrefix(v, authority.RoleDeptManager+"_") {
				identifiers = append(identifiers, strings.TrimPrefix(v, authority.RoleDeptManager+"_"))
			}
		}
	}
	return identifiers
}

func statusChange(from, to domain.InstanceStatus) []event.UpdatedProperty {
	return []event.UpdatedProperty{{
		PropertyName: "status",
		OldValue:     string(from),
		NewValue:     string(to),
	}}
}

func reportResolutionBlock(id types.ID, err error, s *session.Session) {
	if err == bizerror.ErrNoEligibleApprover {
		notify.ResolutionBlockedFunc(id, s)
	}
}
