package flow

import (
	"fmt"
	"time"

	"officeflow/bizerror"
	"officeflow/domain"
)

// ValidateGraph checks the structural invariants a definition graph must hold
// before it may be stored: exactly one start node, at least one end node,
// edges referencing known nodes only, and an assignee rule on every approval
// and parallel node.
func ValidateGraph(g domain.NodeGraph) error {
	startCount := 0
	endCount := 0
	nodeIndex := map[string]domain.Node{}
	for _, n := range g.Nodes {
		if _, found := nodeIndex[n.ID]; found {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf("duplicated node id '%s'", n.ID)}
		}
		nodeIndex[n.ID] = n

		switch n.Type {
		case domain.NodeTypeStart:
			startCount++
		case domain.NodeTypeEnd:
			endCount++
		case domain.NodeTypeApproval, domain.NodeTypeParallel:
			if n.AssigneeRule.Type == "" {
				return &bizerror.ErrBadParam{Cause: fmt.Errorf("node '%s' has no assignee rule", n.ID)}
			}
		}
	}
	if startCount != 1 {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf("graph must have exactly one start node, got %d", startCount)}
	}
	if endCount == 0 {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf("graph must have at least one end node")}
	}
	for _, e := range g.Edges {
		if _, found := nodeIndex[e.From]; !found {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf("edge references unknown node '%s'", e.From)}
		}
		if _, found := nodeIndex[e.To]; !found {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf("edge references unknown node '%s'", e.To)}
		}
	}
	return nil
}

// NextNode follows the outgoing edges of a node. Conditioned edges are
// evaluated against the instance form data in order, an unconditioned edge
// serves as the fallback. The second result is false when no edge leaves the
// node or the chosen edge enters an end node, which terminates the instance.
func NextNode(g domain.NodeGraph, nodeId string, formData domain.FormData) (domain.Node, bool, error) {
	edges := g.OutgoingEdges(nodeId)
	if len(edges) == 0 {
		return domain.Node{}, false, nil
	}

	var fallback *domain.Edge
	var chosen *domain.Edge
	for i := range edges {
		e := edges[i]
		if e.Condition == nil {
			if fallback == nil {
				fallback = &edges[i]
			}
			continue
		}
		if EvaluateCondition(*e.Condition, formData) {
			chosen = &edges[i]
			break
		}
	}
	if chosen == nil {
		chosen = fallback
	}
	if chosen == nil {
		return domain.Node{}, false, bizerror.ErrUnknownNode
	}

	next, found := g.FindNode(chosen.To)
	if !found {
		return domain.Node{}, false, bizerror.ErrUnknownNode
	}
	if next.Type == domain.NodeTypeEnd {
		return domain.Node{}, false, nil
	}
	return next, true, nil
}

func EvaluateCondition(c domain.EdgeCondition, formData domain.FormData) bool {
	value, found := formData[c.Field]
	if !found {
		return false
	}

	if leftNum, leftOk := asNumber(value); leftOk {
		if rightNum, rightOk := asNumber(c.Value); rightOk {
			return compareNumbers(leftNum, rightNum, c.Op)
		}
	}

	left := fmt.Sprintf("%v", value)
	right := fmt.Sprintf("%v", c.Value)
	switch c.Op {
	case "eq":
		return left == right
	case "ne":
		return left != right
	case "gt":
		return left > right
	case "ge":
		return left >= right
	case "lt":
		return left < right
	case "le":
		return left <= right
	}
	return false
}

func compareNumbers(left, right float64, op string) bool {
	switch op {
	case "eq":
		return left == right
	case "ne":
		return left != right
	case "gt":
		return left > right
	case "ge":
		return left >= right
	case "lt":
		return left < right
	case "le":
		return left <= right
	}
	return false
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ValidateFormData checks a form data map against the definition's schema and
// returns the violations found.
func ValidateFormData(schema domain.FormSchema, formData domain.FormData) []string {
	violations := []string{}
	fieldIndex := map[string]domain.FormField{}
	for _, f := range schema.Fields {
		fieldIndex[f.Name] = f

		value, found := formData[f.Name]
		if !found || value == nil || value == "" {
			if f.Required {
				violations = append(violations, "field '"+f.Name+"' is required")
			}
			continue
		}
		violations = append(violations, validateFieldValue(f, value)...)
	}

	for name := range formData {
		if _, found := fieldIndex[name]; !found {
			violations = append(violations, "unknown field '"+name+"'")
		}
	}
	return violations
}

func validateFieldValue(f domain.FormField, value interface{}) []string {
	violations := []string{}
	switch f.Type {
	case domain.FormFieldTypeNumber:
		if _, ok := asNumber(value); !ok {
			violations = append(violations, "field '"+f.Name+"' must be a number")
		}
	case domain.FormFieldTypeBool:
		if _, ok := value.(bool); !ok {
			violations = append(violations, "field '"+f.Name+"' must be a bool")
		}
	case domain.FormFieldTypeString:
		if _, ok := value.(string); !ok {
			violations = append(violations, "field '"+f.Name+"' must be a string")
		}
	case domain.FormFieldTypeDate:
		str, ok := value.(string)
		if !ok {
			violations = append(violations, "field '"+f.Name+"' must be a date string")
			break
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			violations = append(violations, "field '"+f.Name+"' must be a date in form 2006-01-02")
		}
	case domain.FormFieldTypeEnum:
		str := fmt.Sprintf("%v", value)
		matched := false
		for _, option := range f.Options {
			if option == str {
				matched = true
				break
			}
		}
		if !matched {
			violations = append(violations, "field '"+f.Name+"' must be one of the declared options")
		}
	}
	return violations
}
