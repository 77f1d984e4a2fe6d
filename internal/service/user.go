package service

import (
	"errors"

	"stickyboard/internal/auth"
	"stickyboard/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户相关的业务逻辑。
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register 注册新用户。用户名唯一，密码只存 bcrypt 哈希。
func (s *UserService) Register(username, password string) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Username: username, PasswordHash: hash}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate 校验用户名密码，返回用户和该用户创建的 board id 列表。
// board id 会被嵌进用户级 access token 的载荷。
func (s *UserService) Authenticate(username, password string) (*models.User, []uint, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}
	var boardIDs []uint
	if err := s.db.Model(&models.Board{}).Where("user_id = ?", user.ID).Pluck("id", &boardIDs).Error; err != nil {
		return nil, nil, err
	}
	return &user, boardIDs, nil
}

// Lookup 按 id 查用户和其 board id 列表，刷新 access token 时重建载荷用。
func (s *UserService) Lookup(userID uint) (*models.User, []uint, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	var boardIDs []uint
	if err := s.db.Model(&models.Board{}).Where("user_id = ?", user.ID).Pluck("id", &boardIDs).Error; err != nil {
		return nil, nil, err
	}
	return &user, boardIDs, nil
}
