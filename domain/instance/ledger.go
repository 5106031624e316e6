package instance

import (
	"time"

	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/domain/resolver"
	"officeflow/idgen"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var nodeInstanceIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

// appendNodeInstance adds a ledger entry with the next order number. Entries
// are append-only, the single later mutation is the decision recorded by
// decideNodeInstance.
func appendNodeInstance(tx *gorm.DB, instanceId types.ID, node domain.Node,
	assignment resolver.Assignment, status domain.NodeInstanceStatus, comment string) (*domain.WorkflowNodeInstance, error) {

	order, err := nextOrder(tx, instanceId)
	if err != nil {
		return nil, err
	}

	now := time.Now().Round(time.Millisecond)
	record := &domain.WorkflowNodeInstance{
		ID:                 idgen.NextID(nodeInstanceIdWorker),
		WorkflowInstanceID: instanceId,
		NodeID:             node.ID,
		NodeName:           node.Name,
		NodeType:           node.Type,
		AssigneeType:       assignment.Type,
		AssigneeID:         assignment.ID,
		Status:             status,
		Comment:            comment,
		StartTime:          now,
		Order:              order,
	}
	if status != domain.NodeInstanceStatusPending && status != domain.NodeInstanceStatusProcessing {
		record.EndTime = &now
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// decideNodeInstance records the single decision of a ledger entry. The
// conditional update on the prior status is the concurrency guard: of two
// racing actors exactly one update matches a row, the other sees zero
// affected rows and fails with an invalid transition.
func decideNodeInstance(tx *gorm.DB, record *domain.WorkflowNodeInstance,
	to domain.NodeInstanceStatus, comment string) error {

	now := time.Now().Round(time.Millisecond)
	duration := now.Sub(record.StartTime).Milliseconds()
	query := tx.Model(&domain.WorkflowNodeInstance{}).
		Where("id = ? AND status = ?", record.ID, domain.NodeInstanceStatusPending).
		Update(map[string]interface{}{"status": to, "comment": comment, "end_time": &now, "duration_ms": duration})
	if err := query.Error; err != nil {
		return err
	}
	if query.RowsAffected != 1 {
		return bizerror.ErrInvalidTransition
	}
	record.Status = to
	record.Comment = comment
	record.EndTime = &now
	record.DurationMs = duration
	return nil
}

// terminatePendingNodeInstances closes every still pending entry of an
// instance, used on cancellation and on parallel sibling shutdown.
func terminatePendingNodeInstances(tx *gorm.DB, instanceId types.ID, comment string) error {
	now := time.Now().Round(time.Millisecond)
	return tx.Model(&domain.WorkflowNodeInstance{}).
		Where("workflow_instance_id = ? AND status = ?", instanceId, domain.NodeInstanceStatusPending).
		Update(map[string]interface{}{"status": domain.NodeInstanceStatusTerminated, "comment": comment, "end_time": &now}).Error
}

func pendingNodeInstances(db *gorm.DB, instanceId types.ID) ([]domain.WorkflowNodeInstance, error) {
	var records []domain.WorkflowNodeInstance
	err := db.Where("workflow_instance_id = ? AND status IN (?)", instanceId,
		[]domain.NodeInstanceStatus{domain.NodeInstanceStatusPending, domain.NodeInstanceStatusProcessing}).
		Order("order_num ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// History lists the ledger of an instance in execution order. Replaying it
// reconstructs the instance state.
func History(db *gorm.DB, instanceId types.ID) ([]domain.WorkflowNodeInstance, error) {
	var records []domain.WorkflowNodeInstance
	err := db.Where(&domain.WorkflowNodeInstance{WorkflowInstanceID: instanceId}).
		Order("order_num ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func nextOrder(tx *gorm.DB, instanceId types.ID) (int, error) {
	var result struct {
		MaxOrder int
	}
	err := tx.Model(&domain.WorkflowNodeInstance{}).
		Where("workflow_instance_id = ?", instanceId).
		Select("COALESCE(MAX(order_num), 0) AS max_order").
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	return result.MaxOrder + 1, nil
}
