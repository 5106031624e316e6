package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

type Department struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name     string   `json:"name"`
	ParentID types.ID `json:"parentId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	ManagerID types.ID `json:"managerId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	CreateTime time.Time `json:"createTime" sql:"type:DATETIME(3) NOT NULL"`
}

type DepartmentQuery struct {
	Name     string   `form:"name"`
	ParentID types.ID `form:"parentId"`
}
