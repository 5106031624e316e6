package account

import (
	"officeflow/authority"
	"officeflow/persistence"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
)

// the read-only directory contract consumed by approver resolution
var (
	GetUserFunc                 = GetUser
	FindUserIdsByRoleFunc       = FindUserIdsByRole
	FindUserIdsByDepartmentFunc = FindUserIdsByDepartment
)

type DirectoryUser struct {
	ID           types.ID              `json:"id"`
	Name         string                `json:"name"`
	DepartmentID types.ID              `json:"departmentId"`
	Roles        authority.Permissions `json:"roles"`
}

func GetUser(id types.ID, s *session.Session) (*DirectoryUser, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	user := User{ID: id}
	if err := db.Where(&User{ID: id}).First(&user).Error; err != nil {
		return nil, err
	}
	roles, err := LoadPerms(id, db)
	if err != nil {
		return nil, err
	}
	return &DirectoryUser{ID: user.ID, Name: user.Name, DepartmentID: user.DepartmentID, Roles: roles}, nil
}

func FindUserIdsByDepartment(departmentId types.ID, s *session.Session) ([]types.ID, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var records []UserInfo
	if err := db.Model(&User{}).Where(&User{DepartmentID: departmentId}).Scan(&records).Error; err != nil {
		return nil, err
	}
	ids := []types.ID{}
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func FindUserIdsByRole(role string, s *session.Session) ([]types.ID, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var records []UserRole
	if err := db.Where(&UserRole{Role: role}).Find(&records).Error; err != nil {
		return nil, err
	}
	ids := []types.ID{}
	for _, r := range records {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}
