package inspection

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"liyu1981.xyz/safety-inspection-service/pkg/models"
)

func (c *Core) registerUser(name, email, password string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, NewError(KindInvalidArgument, "Invalid role")
	}

	var count int64
	if err := c.Db.Conn.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, WrapInternal("check existing user", err)
	}
	if count > 0 {
		return nil, NewError(KindConflict, "User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, WrapInternal("hash password", err)
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := c.Db.Conn.Create(&user).Error; err != nil {
		return nil, WrapInternal("create user", err)
	}
	return &user, nil
}

func (c *Core) authenticate(email, password string) (*models.User, error) {
	var user models.User
	if err := c.Db.Conn.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindUnauthorized, "Invalid credentials")
		}
		return nil, WrapInternal("load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, NewError(KindUnauthorized, "Invalid credentials")
	}
	return &user, nil
}

func (c *Core) getUser(id uint) (*models.User, error) {
	var user models.User
	if err := c.Db.Conn.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(KindNotFound, "User not found")
		}
		return nil, WrapInternal("load user", err)
	}
	return &user, nil
}

func (c *Core) listUsers() ([]models.User, error) {
	var users []models.User
	if err := c.Db.Conn.Find(&users).Error; err != nil {
		return nil, WrapInternal("list users", err)
	}
	return users, nil
}

func (c *Core) listManagers() ([]models.User, error) {
	var managers []models.User
	if err := c.Db.Conn.Where("role = ?", models.RoleInspectionManager).Find(&managers).Error; err != nil {
		return nil, WrapInternal("list managers", err)
	}
	return managers, nil
}

// updateUser rewrites name and email only. Role changes go through
// updateUserRole, which is a separately privileged operation.
func (c *Core) updateUser(id uint, name, email string) (*models.User, error) {
	user, err := c.getUser(id)
	if err != nil {
		return nil, err
	}

	if email != user.Email {
		var count int64
		if err := c.Db.Conn.Model(&models.User{}).Where("email = ? AND id != ?", email, id).Count(&count).Error; err != nil {
			return nil, WrapInternal("check email uniqueness", err)
		}
		if count > 0 {
			return nil, NewError(KindConflict, "Email already in use")
		}
	}

	updates := map[string]interface{}{"name": name, "email": email}
	if err := c.Db.Conn.Model(user).Updates(updates).Error; err != nil {
		return nil, WrapInternal("update user", err)
	}
	return c.getUser(id)
}

func (c *Core) updateUserRole(id uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, NewError(KindInvalidArgument, "Invalid role")
	}

	user, err := c.getUser(id)
	if err != nil {
		return nil, err
	}
	if err := c.Db.Conn.Model(user).Update("role", role).Error; err != nil {
		return nil, WrapInternal("update user role", err)
	}
	return c.getUser(id)
}

func (c *Core) deleteUser(id uint) error {
	res := c.Db.Conn.Delete(&models.User{}, id)
	if res.Error != nil {
		return WrapInternal("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return NewError(KindNotFound, "User not found")
	}
	return nil
}

type IUserImpl struct {
	core *Core
}

func (iu *IUserImpl) Register(name, email, password string, role models.Role) (*models.User, error) {
	return iu.core.registerUser(name, email, password, role)
}

func (iu *IUserImpl) Authenticate(email, password string) (*models.User, error) {
	return iu.core.authenticate(email, password)
}

func (iu *IUserImpl) GetUser(id uint) (*models.User, error) {
	return iu.core.getUser(id)
}

func (iu *IUserImpl) ListUsers() ([]models.User, error) {
	return iu.core.listUsers()
}

func (iu *IUserImpl) ListManagers() ([]models.User, error) {
	return iu.core.listManagers()
}

func (iu *IUserImpl) UpdateUser(id uint, name, email string) (*models.User, error) {
	return iu.core.updateUser(id, name, email)
}

func (iu *IUserImpl) UpdateUserRole(id uint, role models.Role) (*models.User, error) {
	return iu.core.updateUserRole(id, role)
}

func (iu *IUserImpl) DeleteUser(id uint) error {
	return iu.core.deleteUser(id)
}

func (c *Core) GetIUser() IUser {
	return &IUserImpl{core: c}
}
