package flow

import (
	"time"

	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/event"
	"officeflow/idgen"
	"officeflow/persistence"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	definitionIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	QueryDefinitionsFunc     = QueryDefinitions
	DetailDefinitionFunc     = DetailDefinition
	CreateDefinitionFunc     = CreateDefinition
	UpdateDefinitionFunc     = UpdateDefinition
	ActivateDefinitionFunc   = ActivateDefinition
	DeactivateDefinitionFunc = DeactivateDefinition
)

type DefinitionCreation struct {
	Name     string `json:"name" validate:"required,lte=128"`
	Code     string `json:"code" validate:"required,lte=64"`
	Category string `json:"category" validate:"required,lte=32"`

	Graph      domain.NodeGraph  `json:"graph"`
	FormSchema domain.FormSchema `json:"formSchema"`
}

type DefinitionUpdating struct {
	Name string `json:"name" validate:"required,lte=128"`

	Graph      domain.NodeGraph  `json:"graph"`
	FormSchema domain.FormSchema `json:"formSchema"`
}

// CreateDefinition stores a new draft. A draft carries version 0 until it is
// activated, isLatest is only maintained among activated versions.
func CreateDefinition(c *DefinitionCreation, s *session.Session) (*domain.WorkflowDefinition, error) {
	if !s.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}
	if err := ValidateGraph(c.Graph); err != nil {
		return nil, err
	}

	definition := &domain.WorkflowDefinition{
		ID:         idgen.NextID(definitionIdWorker),
		Name:       c.Name,
		Code:       c.Code,
		Category:   c.Category,
		Status:     domain.DefinitionStatusDraft,
		Version:    0,
		IsLatest:   false,
		Graph:      c.Graph,
		FormSchema: c.FormSchema,
		CreatorID:  s.Identity.ID,
		CreateTime: time.Now().Round(time.Millisecond),
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Create(definition).Error; err != nil {
		return nil, err
	}
	return definition, nil
}

// UpdateDefinition mutates a draft in place. Activated definitions are
// immutable, editing one means creating a fresh draft of the same code.
func UpdateDefinition(id types.ID, u *DefinitionUpdating, s *session.Session) (*domain.WorkflowDefinition, error) {
	if !s.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}
	if err := ValidateGraph(u.Graph); err != nil {
		return nil, err
	}

	definition := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			return err
		}
		if definition.Status != domain.DefinitionStatusDraft {
			return bizerror.ErrDefinitionReadonly
		}
		if err := tx.Model(&domain.WorkflowDefinition{}).Where(&domain.WorkflowDefinition{ID: id}).
			Update(&domain.WorkflowDefinition{Name: u.Name, Graph: u.Graph, FormSchema: u.FormSchema}).Error; err != nil {
			return err
		}
		return tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error
	})
	if err != nil {
		return nil, err
	}
	return &definition, nil
}

// ActivateDefinition turns a draft into the latest active version of its code.
// The previously latest version, if any, keeps serving its running instances
// but stops accepting new ones.
func ActivateDefinition(id types.ID, s *session.Session) (*domain.WorkflowDefinition, error) {
	if !s.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}

	definition := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var ev *event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			return err
		}
		if definition.Status != domain.DefinitionStatusDraft {
			return bizerror.ErrDefinitionReadonly
		}

		version := 1
		previous := domain.WorkflowDefinition{}
		err := tx.Where(&domain.WorkflowDefinition{Code: definition.Code, IsLatest: true}).First(&previous).Error
		if err == nil {
			version = previous.Version + 1
			if err := tx.Model(&domain.WorkflowDefinition{}).Where(&domain.WorkflowDefinition{ID: previous.ID}).
				Update(map[string]interface{}{"is_latest": false, "status": domain.DefinitionStatusInactive}).Error; err != nil {
				return err
			}
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		if err := tx.Model(&domain.WorkflowDefinition{}).Where(&domain.WorkflowDefinition{ID: id}).
			Update(map[string]interface{}{"status": domain.DefinitionStatusActive, "version": version, "is_latest": true}).Error; err != nil {
			return err
		}
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			return err
		}
		created, err := event.CreateEvent(event.SourceTypeWorkflowDefinition, definition.ID, definition.Name,
			event.EventCategoryPropertyUpdated, definitionStatusChange(domain.DefinitionStatusDraft, definition.Status),
			&s.Identity, tx)
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
	return &definition, nil
}

func DeactivateDefinition(id types.ID, s *session.Session) error {
	if !s.Perms.HasAdminRole() {
		return bizerror.ErrForbidden
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var ev *event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		definition := domain.WorkflowDefinition{}
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			return err
		}
		if definition.Status != domain.DefinitionStatusActive {
			return bizerror.ErrDefinitionNotActive
		}
		if err := tx.Model(&domain.WorkflowDefinition{}).Where(&domain.WorkflowDefinition{ID: id}).
			Update(map[string]interface{}{"status": domain.DefinitionStatusInactive, "is_latest": false}).Error; err != nil {
			return err
		}
		created, err := event.CreateEvent(event.SourceTypeWorkflowDefinition, definition.ID, definition.Name,
			event.EventCategoryPropertyUpdated, definitionStatusChange(domain.DefinitionStatusActive, domain.DefinitionStatusInactive),
			&s.Identity, tx)
		if err != nil {
			return err
		}
		ev = created
		return nil
	})
	if err != nil {
		return err
	}
	event.FireEventFunc(ev)
	return nil
}

func definitionStatusChange(from, to domain.DefinitionStatus) []event.UpdatedProperty {
	return []event.UpdatedProperty{{
		PropertyName: "status",
		OldValue:     string(from),
		NewValue:     string(to),
	}}
}

func QueryDefinitions(query *domain.WorkflowDefinitionQuery, s *session.Session) (*[]domain.WorkflowDefinition, error) {
	var definitions []domain.WorkflowDefinition
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	q := db.Where(domain.WorkflowDefinition{Code: query.Code, Category: query.Category})
	if query.Name != "" {
		q = q.Where("name like ?", "%"+query.Name+"%")
	}
	if err := q.Order("code ASC, version ASC").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return &definitions, nil
}

func DetailDefinition(id types.ID, s *session.Session) (*domain.WorkflowDefinition, error) {
	definition := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where(&domain.WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
		return nil, err
	}
	return &definition, nil
}

// LatestActiveDefinition loads the definition new instances of a code must pin.
func LatestActiveDefinition(code string, db *gorm.DB) (*domain.WorkflowDefinition, error) {
	definition := domain.WorkflowDefinition{}
	err := db.Where(&domain.WorkflowDefinition{Code: code, IsLatest: true, Status: domain.DefinitionStatusActive}).
		First(&definition).Error
	if err != nil {
		return nil, err
	}
	return &definition, nil
}
