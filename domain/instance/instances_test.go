package instance_test

import (
	"context"
	"testing"

	"officeflow/account"
	"officeflow/authority"
	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/domain/flow"
	"officeflow/domain/instance"
	"officeflow/event"
	"officeflow/notify"
	"officeflow/persistence"
	"officeflow/session"
	"officeflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T, testDatabase **testinfra.TestDatabase) {
	db := testinfra.StartMysqlTestDatabase("officeflow")
	assert.Nil(t, db.DS.GormDB(context.Background()).AutoMigrate(
		&domain.WorkflowDefinition{}, &domain.WorkflowInstance{}, &domain.WorkflowNodeInstance{},
		&domain.Department{}, &account.User{}, &account.UserRole{}, &event.EventRecord{}).Error)
	persistence.ActiveDataSourceManager = db.DS
	assert.Nil(t, flow.BootstrapBuiltinDefinitions(db.DS.GormDB(context.Background())))
	seedDirectory(t, db)
	notify.InstanceFinishedFunc = func(record *domain.WorkflowInstance, s *session.Session) {}
	notify.ResolutionBlockedFunc = func(id types.ID, s *session.Session) {}
	*testDatabase = db
}

func teardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	notify.InstanceFinishedFunc = notify.InstanceFinished
	notify.ResolutionBlockedFunc = notify.ResolutionBlocked
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

// the test organization: user 100 works in department 20 which user 200
// manages, user 300 is the system administrator.
func seedDirectory(t *testing.T, testDatabase *testinfra.TestDatabase) {
	db := testDatabase.DS.GormDB(context.Background())
	assert.Nil(t, db.Save(&domain.Department{ID: 20, Name: "dev", ManagerID: 200}).Error)
	assert.Nil(t, db.Save(&account.User{ID: 100, Name: "alice", DepartmentID: 20}).Error)
	assert.Nil(t, db.Save(&account.User{ID: 200, Name: "bob", DepartmentID: 20}).Error)
	assert.Nil(t, db.Save(&account.User{ID: 300, Name: "carol"}).Error)
	assert.Nil(t, db.Save(&account.UserRole{UserID: 300, Role: authority.RoleSystemAdmin}).Error)
}

func leaveCreation() *instance.InstanceCreation {
	return &instance.InstanceCreation{
		DefinitionCode: "leave-2step",
		Title:          "annual leave of alice",
		FormData: domain.FormData{
			"leaveType": "annual", "startDate": "2026-09-01", "endDate": "2026-09-03",
		},
	}
}

func TestCreateInstance(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should store a draft pinned to the latest active definition", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		record, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(record.ID).ToNot(BeZero())
		Expect(record.Status).To(Equal(domain.InstanceStatusDraft))
		Expect(record.CurrentNodeID).To(Equal("start"))
		Expect(record.InitiatorID).To(Equal(types.ID(100)))
		Expect(record.StartTime).To(BeNil())

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), record.ID)
		Expect(err).To(BeNil())
		Expect(history).To(BeEmpty())

		var events []event.EventRecord
		Expect(testDatabase.DS.GormDB(context.Background()).Find(&events).Error).To(BeNil())
		Expect(len(events)).To(Equal(1))
		Expect(events[0].EventCategory).To(Equal(event.EventCategory(event.EventCategoryCreated)))
		Expect(events[0].SourceId).To(Equal(record.ID))
	})

	t.Run("should reject unknown or inactive definition codes", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		creation := leaveCreation()
		creation.DefinitionCode = "no-such-code"
		_, err := instance.CreateInstance(creation, testinfra.BuildSecCtx(100))
		Expect(err).To(Equal(gorm.ErrRecordNotFound))
	})

	t.Run("should reject form data violating the schema", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		creation := leaveCreation()
		creation.FormData = domain.FormData{"leaveType": "sabbatical"}
		_, err := instance.CreateInstance(creation, testinfra.BuildSecCtx(100))
		Expect(err).ToNot(BeNil())
		formErr, ok := err.(*bizerror.ErrInvalidForm)
		Expect(ok).To(BeTrue())
		Expect(formErr.Violations).To(ConsistOf(
			"field 'leaveType' must be one of the declared options",
			"field 'startDate' is required",
			"field 'endDate' is required",
		))
	})
}

func TestSubmitInstance(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should open the first approval step on submission", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		record, err := instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusProcessing))
		Expect(record.CurrentNodeID).To(Equal("supervisor-approval"))
		Expect(record.StartTime).ToNot(BeNil())

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), created.ID)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(1))
		Expect(history[0].NodeID).To(Equal("supervisor-approval"))
		Expect(history[0].Status).To(Equal(domain.NodeInstanceStatusPending))
		Expect(history[0].AssigneeType).To(Equal(domain.AssigneeTypeUser))
		Expect(history[0].AssigneeID).To(Equal("200"))
		Expect(history[0].Order).To(Equal(1))
	})

	t.Run("should only accept submission from the initiator", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(200))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})

	t.Run("should refuse to submit twice", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})

	t.Run("should fire events to handlers only after the transaction committed", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)
		defer func() { event.InvokeHandlersFunc = event.InvokeHandlers }()

		// a handler reads through a fresh connection, it can only see
		// committed rows
		observed := []domain.InstanceStatus{}
		event.InvokeHandlersFunc = func(record *event.EventRecord) []event.EventHandleResult {
			seen := domain.WorkflowInstance{}
			db := persistence.ActiveDataSourceManager.GormDB(context.Background())
			if err := db.Where(&domain.WorkflowInstance{ID: record.SourceId}).First(&seen).Error; err != nil {
				return []event.EventHandleResult{{Success: false, Message: err.Error(), HandlerIdentifier: "status-observer"}}
			}
			observed = append(observed, seen.Status)
			return []event.EventHandleResult{{Success: true, HandlerIdentifier: "status-observer"}}
		}

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		Expect(observed).To(Equal([]domain.InstanceStatus{domain.InstanceStatusDraft, domain.InstanceStatusProcessing}))

		var events []event.EventRecord
		Expect(testDatabase.DS.GormDB(context.Background()).Find(&events).Error).To(BeNil())
		Expect(len(events)).To(Equal(2))
		Expect(events[0].Synced).To(BeTrue())
		Expect(events[1].Synced).To(BeTrue())
	})

	t.Run("should report a blocked submission and keep the draft intact", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		// nobody manages department 30 and the walk ends before any admin check
		db := testDatabase.DS.GormDB(context.Background())
		Expect(db.Save(&domain.Department{ID: 30, Name: "lab"}).Error).To(BeNil())
		Expect(db.Save(&account.User{ID: 400, Name: "dave", DepartmentID: 30}).Error).To(BeNil())
		Expect(db.Delete(&account.UserRole{UserID: 300, Role: authority.RoleSystemAdmin}).Error).To(BeNil())

		blocked := types.ID(0)
		notify.ResolutionBlockedFunc = func(id types.ID, s *session.Session) { blocked = id }

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(400))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(400))
		Expect(err).To(Equal(bizerror.ErrNoEligibleApprover))
		Expect(blocked).To(Equal(created.ID))

		record := domain.WorkflowInstance{}
		Expect(db.Where(&domain.WorkflowInstance{ID: created.ID}).First(&record).Error).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusDraft))

		history, err := instance.History(db, created.ID)
		Expect(err).To(BeNil())
		Expect(history).To(BeEmpty())
	})
}

func TestApproveNode(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should walk the instance through both steps to approval", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		finished := types.ID(0)
		notify.InstanceFinishedFunc = func(record *domain.WorkflowInstance, s *session.Session) { finished = record.ID }

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		record, err := instance.ApproveNode(created.ID, &instance.DecisionRequest{Comment: "enjoy"}, testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusProcessing))
		Expect(record.CurrentNodeID).To(Equal("admin-approval"))
		Expect(finished).To(BeZero())

		record, err = instance.ApproveNode(created.ID, &instance.DecisionRequest{},
			testinfra.BuildSecCtx(300, authority.RoleSystemAdmin))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusApproved))
		Expect(record.CurrentNodeID).To(BeEmpty())
		Expect(record.EndTime).ToNot(BeNil())
		Expect(finished).To(Equal(created.ID))

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), created.ID)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(2))
		Expect(history[0].Status).To(Equal(domain.NodeInstanceStatusApproved))
		Expect(history[0].Comment).To(Equal("enjoy"))
		Expect(history[0].EndTime).ToNot(BeNil())
		Expect(history[1].NodeID).To(Equal("admin-approval"))
		Expect(history[1].AssigneeType).To(Equal(domain.AssigneeTypeRole))
		Expect(history[1].AssigneeID).To(Equal(authority.RoleSystemAdmin))
		Expect(history[1].Status).To(Equal(domain.NodeInstanceStatusApproved))
		Expect([]int{history[0].Order, history[1].Order}).To(Equal([]int{1, 2}))
	})

	t.Run("should refuse a decision from somebody not assigned", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		_, err = instance.ApproveNode(created.ID, &instance.DecisionRequest{}, testinfra.BuildSecCtx(100))
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})

	t.Run("should refuse a repeated decision on the same step", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.ApproveNode(created.ID, &instance.DecisionRequest{}, testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())

		_, err = instance.ApproveNode(created.ID, &instance.DecisionRequest{}, testinfra.BuildSecCtx(200))
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})

	t.Run("should let exactly one of two concurrent decisions win", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				_, err := instance.ApproveNode(created.ID, &instance.DecisionRequest{}, testinfra.BuildSecCtx(200))
				errs <- err
			}()
		}
		Expect([]error{<-errs, <-errs}).To(ConsistOf(BeNil(), MatchError(bizerror.ErrInvalidTransition)))

		db := testDatabase.DS.GormDB(context.Background())
		record := domain.WorkflowInstance{}
		Expect(db.Where(&domain.WorkflowInstance{ID: created.ID}).First(&record).Error).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusProcessing))
		Expect(record.CurrentNodeID).To(Equal("admin-approval"))

		history, err := instance.History(db, created.ID)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(2))
		Expect(history[0].Status).To(Equal(domain.NodeInstanceStatusApproved))
		Expect(history[1].Status).To(Equal(domain.NodeInstanceStatusPending))
	})

	t.Run("should let an administrator override any pending step", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		record, err := instance.ApproveNode(created.ID, &instance.DecisionRequest{Comment: "override"},
			testinfra.BuildSecCtx(300, authority.RoleSystemAdmin))
		Expect(err).To(BeNil())
		Expect(record.CurrentNodeID).To(Equal("admin-approval"))
	})

	t.Run("should refuse decisions before submission", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.ApproveNode(created.ID, &instance.DecisionRequest{}, testinfra.BuildSecCtx(200))
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})
}

func TestRejectNode(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should terminate the instance on first rejection", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		finished := types.ID(0)
		notify.InstanceFinishedFunc = func(record *domain.WorkflowInstance, s *session.Session) { finished = record.ID }

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		record, err := instance.RejectNode(created.ID, &instance.DecisionRequest{Comment: "too long"}, testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusRejected))
		Expect(record.CurrentNodeID).To(BeEmpty())
		Expect(record.EndTime).ToNot(BeNil())
		Expect(finished).To(Equal(created.ID))

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), created.ID)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(1))
		Expect(history[0].Status).To(Equal(domain.NodeInstanceStatusRejected))
		Expect(history[0].Comment).To(Equal("too long"))

		// rejection is terminal, a resubmission means a fresh instance
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})
}

func TestCancelInstance(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should cancel a draft leaving no ledger entries", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		record, err := instance.CancelInstance(created.ID, &instance.CancelRequest{Reason: "changed plans"}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusCanceled))
		Expect(record.EndTime).ToNot(BeNil())

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), created.ID)
		Expect(err).To(BeNil())
		Expect(history).To(BeEmpty())
	})

	t.Run("should cancel a processing instance and terminate its pendings", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		record, err := instance.CancelInstance(created.ID, &instance.CancelRequest{Reason: "obsolete"}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusCanceled))

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), created.ID)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(1))
		Expect(history[0].Status).To(Equal(domain.NodeInstanceStatusTerminated))
		Expect(history[0].Comment).To(Equal("obsolete"))
	})

	t.Run("should only allow the initiator or an administrator to cancel", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		_, err = instance.CancelInstance(created.ID, &instance.CancelRequest{}, testinfra.BuildSecCtx(200))
		Expect(err).To(Equal(bizerror.ErrForbidden))

		_, err = instance.CancelInstance(created.ID, &instance.CancelRequest{}, testinfra.BuildSecCtx(300, authority.RoleSystemAdmin))
		Expect(err).To(BeNil())
	})

	t.Run("should refuse to cancel a finished instance", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.CancelInstance(created.ID, &instance.CancelRequest{}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		_, err = instance.CancelInstance(created.ID, &instance.CancelRequest{}, testinfra.BuildSecCtx(100))
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})
}

func TestParallelApproval(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	activateParallelDefinition := func(t *testing.T) {
		admin := testinfra.BuildSecCtx(300, authority.RoleSystemAdmin)
		draft, err := flow.CreateDefinition(&flow.DefinitionCreation{
			Name: "Team Signoff", Code: "team-signoff", Category: domain.CategoryGeneric,
			Graph: domain.NodeGraph{
				Nodes: []domain.Node{
					{ID: "start", Name: "Start", Type: domain.NodeTypeStart},
					{ID: "signoff", Name: "Team Signoff", Type: domain.NodeTypeParallel,
						AssigneeRule: domain.AssigneeRule{Type: domain.AssigneeTypeDepartment, ID: "20"}},
					{ID: "end", Name: "End", Type: domain.NodeTypeEnd},
				},
				Edges: []domain.Edge{
					{From: "start", To: "signoff"},
					{From: "signoff", To: "end"},
				},
			},
		}, admin)
		assert.Nil(t, err)
		_, err = flow.ActivateDefinition(draft.ID, admin)
		assert.Nil(t, err)
	}

	submitParallelInstance := func(t *testing.T) types.ID {
		activateParallelDefinition(t)
		created, err := instance.CreateInstance(&instance.InstanceCreation{
			DefinitionCode: "team-signoff", Title: "office move signoff",
		}, testinfra.BuildSecCtx(300))
		assert.Nil(t, err)
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(300))
		assert.Nil(t, err)
		return created.ID
	}

	t.Run("should fan out one pending entry per department member", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		id := submitParallelInstance(t)
		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), id)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(2))
		assignees := []string{history[0].AssigneeID, history[1].AssigneeID}
		Expect(assignees).To(ConsistOf("100", "200"))
		Expect(history[0].AssigneeType).To(Equal(domain.AssigneeTypeUser))
		Expect(history[1].AssigneeType).To(Equal(domain.AssigneeTypeUser))
	})

	t.Run("should complete only after every member approved", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		id := submitParallelInstance(t)

		record, err := instance.ApproveNode(id, &instance.DecisionRequest{}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusProcessing))

		record, err = instance.ApproveNode(id, &instance.DecisionRequest{}, testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusApproved))
	})

	t.Run("should terminate the siblings when any member rejects", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		id := submitParallelInstance(t)

		record, err := instance.RejectNode(id, &instance.DecisionRequest{Comment: "bad timing"}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusRejected))

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), id)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(2))
		statuses := []domain.NodeInstanceStatus{history[0].Status, history[1].Status}
		Expect(statuses).To(ConsistOf(domain.NodeInstanceStatusRejected, domain.NodeInstanceStatusTerminated))
	})
}

func TestConditionalRouting(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should record pass-through nodes as skipped entries", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		admin := testinfra.BuildSecCtx(300, authority.RoleSystemAdmin)
		draft, err := flow.CreateDefinition(&flow.DefinitionCreation{
			Name: "Routed Expense", Code: "routed-expense", Category: domain.CategoryExpense,
			Graph: domain.NodeGraph{
				Nodes: []domain.Node{
					{ID: "start", Name: "Start", Type: domain.NodeTypeStart},
					{ID: "route", Name: "Amount Route", Type: domain.NodeTypeCondition},
					{ID: "manager", Name: "Manager Approval", Type: domain.NodeTypeApproval,
						AssigneeRule: domain.AssigneeRule{Type: domain.AssigneeTypeSupervisor}},
					{ID: "admin", Name: "Admin Approval", Type: domain.NodeTypeApproval,
						AssigneeRule: domain.AssigneeRule{Type: domain.AssigneeTypeRole, ID: authority.RoleSystemAdmin}},
					{ID: "end", Name: "End", Type: domain.NodeTypeEnd},
				},
				Edges: []domain.Edge{
					{From: "start", To: "route"},
					{From: "route", To: "admin", Condition: &domain.EdgeCondition{Field: "amount", Op: "gt", Value: 10000}},
					{From: "route", To: "manager"},
					{From: "manager", To: "end"},
					{From: "admin", To: "end"},
				},
			},
			FormSchema: flow.ExpenseFormSchema(),
		}, admin)
		Expect(err).To(BeNil())
		_, err = flow.ActivateDefinition(draft.ID, admin)
		Expect(err).To(BeNil())

		created, err := instance.CreateInstance(&instance.InstanceCreation{
			DefinitionCode: "routed-expense", Title: "conference expenses",
			FormData: domain.FormData{"amount": float64(20000), "expenseDate": "2026-08-20", "purpose": "conference"},
		}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		record, err := instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(record.CurrentNodeID).To(Equal("admin"))

		history, err := instance.History(testDatabase.DS.GormDB(context.Background()), created.ID)
		Expect(err).To(BeNil())
		Expect(len(history)).To(Equal(2))
		Expect(history[0].NodeID).To(Equal("route"))
		Expect(history[0].Status).To(Equal(domain.NodeInstanceStatusSkipped))
		Expect(history[1].NodeID).To(Equal("admin"))
		Expect(history[1].Status).To(Equal(domain.NodeInstanceStatusPending))
	})
}

func TestQueryInstancesAndPendingNodes(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should limit plain users to their own instances", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		mine, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		other := leaveCreation()
		other.Title = "leave of bob"
		_, err = instance.CreateInstance(other, testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())

		records, err := instance.QueryInstances(&domain.WorkflowInstanceQuery{}, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(len(*records)).To(Equal(1))
		Expect((*records)[0].ID).To(Equal(mine.ID))

		records, err = instance.QueryInstances(&domain.WorkflowInstanceQuery{}, testinfra.BuildSecCtx(300, authority.RoleSystemAdmin))
		Expect(err).To(BeNil())
		Expect(len(*records)).To(Equal(2))
	})

	t.Run("should list the pending inbox by user, role and department", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		entries, err := instance.QueryPendingNodes(testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())
		Expect(len(entries)).To(Equal(1))
		Expect(entries[0].InstanceID).To(Equal(created.ID))
		Expect(entries[0].NodeName).To(Equal("Supervisor Approval"))
		Expect(entries[0].Title).To(Equal("annual leave of alice"))
		Expect(entries[0].InitiatorName).To(Equal("alice"))

		entries, err = instance.QueryPendingNodes(testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(entries).To(BeEmpty())

		// the second step is assigned to the admin role
		_, err = instance.ApproveNode(created.ID, &instance.DecisionRequest{}, testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())
		entries, err = instance.QueryPendingNodes(testinfra.BuildSecCtx(300, authority.RoleSystemAdmin))
		Expect(err).To(BeNil())
		Expect(len(entries)).To(Equal(1))
		Expect(entries[0].NodeName).To(Equal("Administrative Approval"))
	})

	t.Run("should cover department entries for the department manager role", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		admin := testinfra.BuildSecCtx(300, authority.RoleSystemAdmin)
		draft, err := flow.CreateDefinition(&flow.DefinitionCreation{
			Name: "Device Request", Code: "device-request", Category: domain.CategoryGeneric,
			Graph: domain.NodeGraph{
				Nodes: []domain.Node{
					{ID: "start", Name: "Start", Type: domain.NodeTypeStart},
					{ID: "dev-approval", Name: "Dev Approval", Type: domain.NodeTypeApproval,
						AssigneeRule: domain.AssigneeRule{Type: domain.AssigneeTypeDepartment, ID: "20"}},
					{ID: "end", Name: "End", Type: domain.NodeTypeEnd},
				},
				Edges: []domain.Edge{
					{From: "start", To: "dev-approval"},
					{From: "dev-approval", To: "end"},
				},
			},
		}, admin)
		assert.Nil(t, err)
		_, err = flow.ActivateDefinition(draft.ID, admin)
		assert.Nil(t, err)

		created, err := instance.CreateInstance(&instance.InstanceCreation{
			DefinitionCode: "device-request", Title: "new laptop for carol",
		}, testinfra.BuildSecCtx(300))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(300))
		Expect(err).To(BeNil())

		// user 999 belongs to no department but manages department 20
		manager := testinfra.BuildSecCtx(999, authority.RoleDeptManager+"_20")
		entries, err := instance.QueryPendingNodes(manager)
		Expect(err).To(BeNil())
		Expect(len(entries)).To(Equal(1))
		Expect(entries[0].InstanceID).To(Equal(created.ID))

		record, err := instance.ApproveNode(created.ID, &instance.DecisionRequest{}, manager)
		Expect(err).To(BeNil())
		Expect(record.Status).To(Equal(domain.InstanceStatusApproved))
	})
}

func TestDetailInstance(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should expose the detail to initiator, participants and administrators only", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := instance.CreateInstance(leaveCreation(), testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		_, err = instance.SubmitInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())

		detail, err := instance.DetailInstance(created.ID, testinfra.BuildSecCtx(100))
		Expect(err).To(BeNil())
		Expect(detail.ID).To(Equal(created.ID))
		Expect(len(detail.History)).To(Equal(1))

		_, err = instance.DetailInstance(created.ID, testinfra.BuildSecCtx(200))
		Expect(err).To(BeNil())

		_, err = instance.DetailInstance(created.ID, testinfra.BuildSecCtx(300, authority.RoleSystemAdmin))
		Expect(err).To(BeNil())

		_, err = instance.DetailInstance(created.ID, testinfra.BuildSecCtx(999))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})
}
