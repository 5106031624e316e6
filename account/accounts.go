package account

import (
	"crypto/sha256"
	"encoding/hex"

	"officeflow/authority"
	"officeflow/bizerror"
	"officeflow/idgen"
	"officeflow/persistence"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	userIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	QueryUsersFunc            = QueryUsers
	CreateUserFunc            = CreateUser
	UpdateUserFunc            = UpdateUser
	UpdateBasicAuthSecretFunc = UpdateBasicAuthSecret
	GrantRoleFunc             = GrantRole
	RevokeRoleFunc            = RevokeRole
	QueryAccountNamesFunc     = QueryAccountNames
)

func HashSha256(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

func CreateUser(c *UserCreation, s *session.Session) (*UserInfo, error) {
	if !s.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}

	user := User{ID: idgen.NextID(userIdWorker), Name: c.Name, Nickname: c.Nickname,
		DepartmentID: c.DepartmentID, Secret: HashSha256(c.Secret)}
	if err := persistence.ActiveDataSourceManager.GormDB(s.Context).Save(&user).Error; err != nil {
		return nil, err
	}
	return &UserInfo{ID: user.ID, Name: user.Name, Nickname: user.Nickname, DepartmentID: user.DepartmentID}, nil
}

func UpdateUser(userId types.ID, c *UserUpdation, s *session.Session) error {
	if !s.Perms.HasAdminRole() && userId != s.Identity.ID {
		return bizerror.ErrForbidden
	}

	return persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		user := User{ID: userId}
		if err := tx.Where(&user).First(&user).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update(&User{Nickname: c.Nickname, DepartmentID: c.DepartmentID}).Error; err != nil {
			return err
		}
		return nil
	})
}

func QueryUsers(s *session.Session) (*[]UserInfo, error) {
	var users []UserInfo
	if err := persistence.ActiveDataSourceManager.GormDB(s.Context).Model(&User{}).Scan(&users).Error; err != nil {
		return nil, err
	}
	return &users, nil
}

func UpdateBasicAuthSecret(u *BasicAuthUpdating, s *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	user := User{}
	if err := db.Model(&User{}).Where(&User{ID: s.Identity.ID, Secret: HashSha256(u.OriginalSecret)}).Scan(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return bizerror.ErrInvalidPassword
		} else {
			return err
		}
	}

	return db.Model(&User{}).Where(&User{ID: s.Identity.ID, Secret: HashSha256(u.OriginalSecret)}).
		Update(&User{Secret: HashSha256(u.NewSecret)}).Error
}

func GrantRole(userId types.ID, g *RoleGranting, s *session.Session) error {
	if !s.Perms.HasAdminRole() {
		return bizerror.ErrForbidden
	}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	user := User{ID: userId}
	if err := db.Where(&user).First(&user).Error; err != nil {
		return err
	}
	return db.Save(&UserRole{UserID: userId, Role: g.Role}).Error
}

func RevokeRole(userId types.ID, g *RoleGranting, s *session.Session) error {
	if !s.Perms.HasAdminRole() {
		return bizerror.ErrForbidden
	}
	return persistence.ActiveDataSourceManager.GormDB(s.Context).
		Where(&UserRole{UserID: userId, Role: g.Role}).Delete(&UserRole{}).Error
}

func QueryAccountNames(ids []types.ID, s *session.Session) (map[types.ID]string, error) {
	if len(ids) == 0 {
		return map[types.ID]string{}, nil
	}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var records []UserInfo
	if err := db.Model(&User{}).Where("id IN (?)", ids).Scan(&records).Error; err != nil {
		return nil, err
	}
	result := map[types.ID]string{}
	for _, r := range records {
		result[r.ID] = r.DisplayName()
	}
	return result, nil
}

// LoadPerms collects the role grants of a user into session permissions.
func LoadPerms(userId types.ID, db *gorm.DB) (authority.Permissions, error) {
	var records []UserRole
	if err := db.Where(&UserRole{UserID: userId}).Find(&records).Error; err != nil {
		return nil, err
	}
	perms := authority.Permissions{}
	for _, r := range records {
		perms = append(perms, r.Role)
	}
	return perms, nil
}
