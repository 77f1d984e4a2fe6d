package service

import (
	"errors"

	"stickyboard/internal/auth"
	"stickyboard/internal/models"

	"gorm.io/gorm"
)

// BoardService 封装 board 的增删查和密码校验。
type BoardService struct {
	db *gorm.DB
}

func NewBoardService(db *gorm.DB) *BoardService {
	return &BoardService{db: db}
}

// BoardDTO 是对外输出的 board 数据，附带创建者信息和便签。密码哈希永不外泄。
type BoardDTO struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Tag         string     `json:"tag"`
	IsPrivate   bool       `json:"isPrivate"`
	UserID      uint       `json:"userId"`
	User        CreatorDTO `json:"user"`
	StickyNotes []NoteDTO  `json:"stickyNotes"`
}

type CreatorDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Create 创建 board。私有 board 必须带密码，密码存 bcrypt 哈希；
// 公开 board 的密码哈希保持空，维持 password != null ⟺ isPrivate 的不变量。
func (s *BoardService) Create(name, tag string, isPrivate bool, password string, creatorID uint) (*models.Board, error) {
	board := models.Board{Name: name, Tag: tag, IsPrivate: isPrivate, UserID: creatorID}
	if isPrivate {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		board.PasswordHash = &hash
	}
	if err := s.db.Create(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// List 返回所有 board，附带创建者用户名和便签，所有登录用户都能看到列表。
func (s *BoardService) List() ([]BoardDTO, error) {
	var boards []models.Board
	if err := s.db.Order("id").Find(&boards).Error; err != nil {
		return nil, err
	}
	out := make([]BoardDTO, 0, len(boards))
	for _, b := range boards {
		dto, err := s.toDTO(b)
		if err != nil {
			return nil, err
		}
		out = append(out, *dto)
	}
	return out, nil
}

// Details 返回单个 board 及其全部便签。
func (s *BoardService) Details(boardID uint) (*BoardDTO, error) {
	var board models.Board
	if err := s.db.First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return s.toDTO(board)
}

// Delete 删除 board，只有创建者可以删。便签在同一事务里级联删除，
// 删除后不可能残留引用不存在 board 的便签。
func (s *BoardService) Delete(boardID, requesterID uint) error {
	var board models.Board
	if err := s.db.Select("id", "user_id").First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBoardNotFound
		}
		return err
	}
	if board.UserID != requesterID {
		return ErrNotCreator
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", boardID).Delete(&models.StickyNote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Board{}, boardID).Error
	})
}

// VerifyPassword 校验私有 board 的密码。密码错误不是失败，返回 false。
func (s *BoardService) VerifyPassword(boardID uint, password string) (bool, error) {
	var board models.Board
	if err := s.db.Select("id", "is_private", "password_hash").First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrBoardNotFound
		}
		return false, err
	}
	if !board.IsPrivate || board.PasswordHash == nil {
		return false, nil
	}
	return auth.VerifyPassword(*board.PasswordHash, password), nil
}

func (s *BoardService) toDTO(b models.Board) (*BoardDTO, error) {
	var creator models.User
	if err := s.db.Select("id", "username").First(&creator, b.UserID).Error; err != nil {
		return nil, err
	}
	notes, err := notesByBoard(s.db, b.ID)
	if err != nil {
		return nil, err
	}
	return &BoardDTO{
		ID:          b.ID,
		Name:        b.Name,
		Tag:         b.Tag,
		IsPrivate:   b.IsPrivate,
		UserID:      b.UserID,
		User:        CreatorDTO{ID: creator.ID, Username: creator.Username},
		StickyNotes: notes,
	}, nil
}
