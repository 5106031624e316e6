package indices

import (
	"encoding/json"
	"fmt"

	"officeflow/client/es"
	"officeflow/domain"
	"officeflow/domain/instance"
	"officeflow/event"
	"officeflow/persistence"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	InstanceIndexName = "workflow_instances"

	IndexInstancesFunc  = IndexInstances
	SearchInstancesFunc = SearchInstances
)

type InstanceDocument struct {
	domain.WorkflowInstanceDetail
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexInstances(details []domain.WorkflowInstanceDetail, s *session.Session) error {
	docs := make([]InstanceDocument, 0, len(details))
	for _, detail := range details {
		docs = append(docs, InstanceDocument{WorkflowInstanceDetail: detail})
	}
	if err := saveInstanceDocuments(docs, s); err != nil {
		return err
	}
	return nil
}

func saveInstanceDocuments(docs []InstanceDocument, s *session.Session) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(InstanceIndexName, doc.ID, doc, s); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index workflow instance %d failed: %s\n", doc.ID, err)
		} else {
			logrus.Infof("index workflow instance %d successfully\n", doc.ID)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// InstanceEventHandler keeps the search index in sync with instance events.
func InstanceEventHandler(record *event.EventRecord) *event.EventHandleResult {
	if record.SourceType != event.SourceTypeWorkflowInstance {
		return nil
	}

	result := event.EventHandleResult{HandlerIdentifier: "instance-indexer", Success: true}
	s := &session.Session{Identity: session.Identity{ID: record.CreatorId, Name: record.CreatorName}}

	db := persistence.ActiveDataSourceManager.GormDB(nil)
	detail := domain.WorkflowInstanceDetail{}
	if err := db.Where(&domain.WorkflowInstance{ID: record.SourceId}).First(&detail.WorkflowInstance).Error; err != nil {
		result.Success = false
		result.Message = err.Error()
		return &result
	}
	history, err := instance.History(db, record.SourceId)
	if err != nil {
		result.Success = false
		result.Message = err.Error()
		return &result
	}
	detail.History = history

	if err := IndexInstancesFunc([]domain.WorkflowInstanceDetail{detail}, s); err != nil {
		result.Success = false
		result.Message = err.Error()
	}
	return &result
}

// SearchInstances serves full text search over the instance inbox.
func SearchInstances(keyword string, s *session.Session) ([]InstanceDocument, error) {
	query := es.H{
		"query": es.H{
			"multi_match": es.H{
				"query":  keyword,
				"fields": []string{"title", "businessKey", "status"},
			},
		},
	}

	result, err := es.SearchFunc(InstanceIndexName, query, s)
	if err != nil {
		return nil, err
	}

	docs := []InstanceDocument{}
	for _, hit := range result.Hits.Hits {
		doc := InstanceDocument{}
		if err := json.Unmarshal([]byte(hit.Source), &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
