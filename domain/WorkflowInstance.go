package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/fundwit/go-commons/types"
)

type InstanceStatus string

const (
	InstanceStatusDraft      InstanceStatus = "draft"
	InstanceStatusProcessing InstanceStatus = "processing"
	InstanceStatusApproved   InstanceStatus = "approved"
	InstanceStatusRejected   InstanceStatus = "rejected"
	InstanceStatusCanceled   InstanceStatus = "canceled"
	InstanceStatusTerminated InstanceStatus = "terminated"
)

func (s InstanceStatus) IsTerminal() bool {
	return s == InstanceStatusApproved || s == InstanceStatusRejected ||
		s == InstanceStatusCanceled || s == InstanceStatusTerminated
}

type NodeInstanceStatus string

const (
	NodeInstanceStatusPending    NodeInstanceStatus = "pending"
	NodeInstanceStatusProcessing NodeInstanceStatus = "processing"
	NodeInstanceStatusApproved   NodeInstanceStatus = "approved"
	NodeInstanceStatusRejected   NodeInstanceStatus = "rejected"
	NodeInstanceStatusSkipped    NodeInstanceStatus = "skipped"
	NodeInstanceStatusTerminated NodeInstanceStatus = "terminated"
)

type FormData map[string]interface{}

func (d FormData) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&d)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (d *FormData) Scan(v interface{}) error {
	return scanJSONColumn(v, d)
}

type WorkflowInstance struct {
	ID           types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DefinitionID types.ID `json:"definitionId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	BusinessKey  string   `json:"businessKey"`
	Title        string   `json:"title"`

	FormData      FormData       `json:"formData" sql:"type:TEXT"`
	CurrentNodeID string         `json:"currentNodeId"`
	Status        InstanceStatus `json:"status"`

	InitiatorID types.ID   `json:"initiatorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	StartTime   *time.Time `json:"startTime" sql:"type:DATETIME(3)"`
	EndTime     *time.Time `json:"endTime" sql:"type:DATETIME(3)"`

	Priority int        `json:"priority"`
	DueDate  *time.Time `json:"dueDate" sql:"type:DATETIME(3)"`

	CreateTime time.Time `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

// WorkflowNodeInstance records one executed or pending step of an instance.
// Rows are never deleted, a node instance is decided at most once.
type WorkflowNodeInstance struct {
	ID                 types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowInstanceID types.ID `json:"workflowInstanceId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	NodeID   string   `json:"nodeId"`
	NodeName string   `json:"nodeName"`
	NodeType NodeType `json:"nodeType"`

	AssigneeType AssigneeType `json:"assigneeType"`
	AssigneeID   string       `json:"assigneeId"`

	Status  NodeInstanceStatus `json:"status"`
	Comment string             `json:"comment"`

	StartTime  time.Time  `json:"startTime" sql:"type:DATETIME(3) NOT NULL"`
	EndTime    *time.Time `json:"endTime" sql:"type:DATETIME(3)"`
	DurationMs int64      `json:"durationMs"`

	Order int `json:"order" gorm:"column:order_num"`
}

type WorkflowInstanceDetail struct {
	WorkflowInstance

	History []WorkflowNodeInstance `json:"history"`
}

type WorkflowInstanceQuery struct {
	DefinitionID types.ID       `form:"definitionId"`
	InitiatorID  types.ID       `form:"initiatorId"`
	Status       InstanceStatus `form:"status"`
}

type PendingNodeEntry struct {
	InstanceID     types.ID   `json:"instanceId"`
	NodeInstanceID types.ID   `json:"nodeInstanceId"`
	NodeName       string     `json:"nodeName"`
	Title          string     `json:"title"`
	InitiatorName  string     `json:"initiatorName"`
	DueDate        *time.Time `json:"dueDate"`
}
