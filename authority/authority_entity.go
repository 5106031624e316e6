package authority

import (
	"strings"

	"github.com/fundwit/go-commons/types"
)

// RoleSystemAdmin holders may manage accounts, departments and workflow
// definitions, and may act on any workflow instance.
const RoleSystemAdmin = "system:admin"

// department scoped roles are persisted as "<role>_<departmentId>"
const RoleDeptManager = "dept-manager"

type Permissions []string

func (c Permissions) HasRole(role string) bool {
	for _, v := range c {
		if strings.EqualFold(v, role) {
			return true
		}
	}
	return false
}

func (c Permissions) HasAdminRole() bool {
	return c.HasRole(RoleSystemAdmin)
}

func (c Permissions) HasRolePrefix(prefix string) bool {
	for _, v := range c {
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func (c Permissions) HasRoleSuffix(suffix string) bool {
	for _, v := range c {
		if strings.HasSuffix(strings.ToLower(v), strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

func (c Permissions) HasDeptManagerRole(deptId types.ID) bool {
	return c.HasRolePrefix(RoleDeptManager) && c.HasRoleSuffix("_"+deptId.String())
}
