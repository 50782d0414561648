package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

type User struct {
	ID          int       `gorm:"primary_key" json:"id"`
	WarehouseId string    `gorm:"index" json:"warehouse_id"`
	Username    string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email       *string   `gorm:"size:100;unique" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Password    string    `gorm:"size:255;not null" json:"-"`
	IsActive    *bool     `gorm:"not null" json:"is_active"`
	Role        UserRole  `gorm:"type:enum('A','S','O');default:O" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Password string   `json:"password" binding:"required"`
	Role     UserRole `json:"role" binding:"required"`
}

func (input *NewUser) validate() error {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	switch input.Role {
	case RoleAdmin, RoleSupervisor, RoleOperator:
	default:
		return errors.New("invalid role")
	}
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return nil, errors.New("warehouse id is required")
	}

	if err := input.validate(); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		WarehouseId: warehouseId,
		Username:    input.Username,
		Name:        input.Name,
		Phone:       input.Phone,
		Password:    string(hashed),
		IsActive:    utils.NewTrue(),
		Role:        input.Role,
	}
	if input.Email != "" {
		user.Email = &input.Email
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// may return RecordNotFound
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

func GetUserById(ctx context.Context, id int) (*User, error) {
	return utils.FetchSingleModel[User](ctx, id)
}

// ValidateElevatedUser checks that the user exists in the caller's warehouse,
// is active, and holds a role that can own a review. Used when a submitter
// names an assignee.
func ValidateElevatedUser(ctx context.Context, userId int) error {
	warehouseId, ok := utils.GetWarehouseIdFromContext(ctx)
	if !ok || warehouseId == "" {
		return errors.New("warehouse id is required")
	}
	user, err := utils.FetchModel[User](ctx, warehouseId, userId)
	if err != nil {
		return err
	}
	if user.IsActive == nil || !*user.IsActive {
		return errors.New("assignee is inactive")
	}
	if !user.Role.Elevated() {
		return errors.New("assignee must hold a supervisor or admin role")
	}
	return nil
}
