package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

type DefinitionStatus string

const (
	DefinitionStatusDraft    DefinitionStatus = "draft"
	DefinitionStatusActive   DefinitionStatus = "active"
	DefinitionStatusInactive DefinitionStatus = "inactive"
)

type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeCondition NodeType = "condition"
	NodeTypeParallel  NodeType = "parallel"
	NodeTypeService   NodeType = "service"
	NodeTypeEnd       NodeType = "end"
)

type AssigneeType string

const (
	AssigneeTypeUser       AssigneeType = "user"
	AssigneeTypeRole       AssigneeType = "role"
	AssigneeTypeDepartment AssigneeType = "department"
	AssigneeTypeDynamic    AssigneeType = "dynamic"
	AssigneeTypeInitiator  AssigneeType = "initiator"
	AssigneeTypeSupervisor AssigneeType = "supervisor"
)

const (
	CategoryLeave   = "leave"
	CategoryExpense = "expense"
	CategoryGeneric = "generic"
)

// AssigneeRule declares who must act on a node. For user rules ID is the user
// id in decimal form, for role rules the role code, for department rules the
// department id. initiator and supervisor rules need no ID.
type AssigneeRule struct {
	Type AssigneeType `json:"type"`
	ID   string       `json:"id,omitempty"`
}

type Node struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         NodeType     `json:"type"`
	AssigneeRule AssigneeRule `json:"assigneeRule,omitempty"`
}

// EdgeCondition is evaluated against instance form data. Ops: eq, ne, gt, ge, lt, le.
type EdgeCondition struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

type Edge struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Condition *EdgeCondition `json:"condition,omitempty"`
}

type NodeGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g NodeGraph) FindNode(nodeId string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == nodeId {
			return n, true
		}
	}
	return Node{}, false
}

func (g NodeGraph) StartNode() (Node, bool) {
	for _, n := range g.Nodes {
		if n.Type == NodeTypeStart {
			return n, true
		}
	}
	return Node{}, false
}

func (g NodeGraph) OutgoingEdges(nodeId string) []Edge {
	edges := []Edge{}
	for _, e := range g.Edges {
		if e.From == nodeId {
			edges = append(edges, e)
		}
	}
	return edges
}

func (g NodeGraph) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&g)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (g *NodeGraph) Scan(v interface{}) error {
	return scanJSONColumn(v, g)
}

type FormFieldType string

const (
	FormFieldTypeString FormFieldType = "string"
	FormFieldTypeNumber FormFieldType = "number"
	FormFieldTypeDate   FormFieldType = "date"
	FormFieldTypeEnum   FormFieldType = "enum"
	FormFieldTypeBool   FormFieldType = "bool"
)

type FormField struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	Type     FormFieldType `json:"type"`
	Required bool          `json:"required"`
	Options  []string      `json:"options,omitempty"`
}

type FormSchema struct {
	Fields []FormField `json:"fields"`
}

func (s FormSchema) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&s)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (s *FormSchema) Scan(v interface{}) error {
	return scanJSONColumn(v, s)
}

type WorkflowDefinition struct {
	ID       types.ID         `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name     string           `json:"name"`
	Code     string           `json:"code"`
	Category string           `json:"category"`
	Status   DefinitionStatus `json:"status"`
	Version  int              `json:"version"`
	IsLatest bool             `json:"isLatest"`

	Graph      NodeGraph  `json:"graph" sql:"type:TEXT"`
	FormSchema FormSchema `json:"formSchema" sql:"type:TEXT"`

	CreatorID  types.ID  `json:"creatorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreateTime time.Time `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

type WorkflowDefinitionQuery struct {
	Code     string `form:"code"`
	Category string `form:"category"`
	Name     string `form:"name"`
}

func scanJSONColumn(v interface{}, target interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonBytes, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonBytes)
	}
	return json.Unmarshal([]byte(jsonString), target)
}
