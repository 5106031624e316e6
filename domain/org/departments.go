package org

import (
	"time"

	"officeflow/bizerror"
	"officeflow/domain"
	"officeflow/idgen"
	"officeflow/persistence"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	deptIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	QueryDepartmentsFunc = QueryDepartments
	CreateDepartmentFunc = CreateDepartment
	UpdateDepartmentFunc = UpdateDepartment
	DetailDepartmentFunc = DetailDepartment
	GetDepartmentFunc    = GetDepartment
)

type DepartmentCreation struct {
	Name      string   `json:"name" validate:"required,lte=64"`
	ParentID  types.ID `json:"parentId"`
	ManagerID types.ID `json:"managerId"`
}

type DepartmentUpdating struct {
	Name      string   `json:"name" validate:"required,lte=64"`
	ManagerID types.ID `json:"managerId"`
}

func CreateDepartment(c *DepartmentCreation, s *session.Session) (*domain.Department, error) {
	if !s.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}

	dept := &domain.Department{
		ID:         idgen.NextID(deptIdWorker),
		Name:       c.Name,
		ParentID:   c.ParentID,
		ManagerID:  c.ManagerID,
		CreateTime: time.Now().Round(time.Millisecond),
	}

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if c.ParentID != 0 {
			parent := domain.Department{ID: c.ParentID}
			if err := tx.Where(&parent).First(&parent).Error; err != nil {
				return err
			}
		}
		return tx.Create(dept).Error
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// UpdateDepartment renames a department or hands it to another manager.
// Besides administrators the department's own manager role may do this.
func UpdateDepartment(id types.ID, u *DepartmentUpdating, s *session.Session) (*domain.Department, error) {
	if !s.Perms.HasAdminRole() && !s.Perms.HasDeptManagerRole(id) {
		return nil, bizerror.ErrForbidden
	}

	dept := domain.Department{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.Department{ID: id}).First(&dept).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Department{}).Where(&domain.Department{ID: id}).
			Update(&domain.Department{Name: u.Name, ManagerID: u.ManagerID}).Error; err != nil {
			return err
		}
		return tx.Where(&domain.Department{ID: id}).First(&dept).Error
	})
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func QueryDepartments(query *domain.DepartmentQuery, s *session.Session) (*[]domain.Department, error) {
	var depts []domain.Department
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	q := db.Where(domain.Department{ParentID: query.ParentID})
	if query.Name != "" {
		q = q.Where("name like ?", "%"+query.Name+"%")
	}
	if err := q.Find(&depts).Error; err != nil {
		return nil, err
	}
	return &depts, nil
}

func DetailDepartment(id types.ID, s *session.Session) (*domain.Department, error) {
	dept := domain.Department{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where(&domain.Department{ID: id}).First(&dept).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

// GetDepartment is the directory contract consumed by approver resolution.
func GetDepartment(id types.ID, s *session.Session) (*domain.Department, error) {
	return DetailDepartment(id, s)
}
