package account

import "github.com/fundwit/go-commons/types"

type User struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name   string   `json:"name"`
	Secret string   `json:"secret"`

	Nickname     string   `json:"nickname"`
	DepartmentID types.ID `json:"departmentId" sql:"type:BIGINT UNSIGNED NOT NULL"`
}

type UserInfo struct {
	ID           types.ID `json:"id"`
	Name         string   `json:"name"`
	Nickname     string   `json:"nickname"`
	DepartmentID types.ID `json:"departmentId"`
}

// UserRole is one role grant. Role holds either a plain role code or a
// department scoped role in "<role>_<departmentId>" form.
type UserRole struct {
	UserID types.ID `json:"userId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Role   string   `json:"role" gorm:"primary_key"`
}

type BasicAuthUpdating struct {
	OriginalSecret string `json:"originalSecret"`
	NewSecret      string `json:"newSecret" binding:"required,gte=6,lte=32"`
}

type UserCreation struct {
	Name         string   `json:"name" binding:"required,lte=32"`
	Secret       string   `json:"secret" binding:"required,gte=6,lte=32"`
	Nickname     string   `json:"nickname" binding:"omitempty,gte=1,lte=32"`
	DepartmentID types.ID `json:"departmentId"`
}

type UserUpdation struct {
	Nickname     string   `json:"nickname" binding:"required,lte=32"`
	DepartmentID types.ID `json:"departmentId"`
}

type RoleGranting struct {
	Role string `json:"role" binding:"required,lte=64"`
}

func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	} else {
		return u.Name
	}
}

func (u UserInfo) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	} else {
		return u.Name
	}
}
