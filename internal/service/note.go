package service

import (
	"errors"
	"time"

	"stickyboard/internal/models"

	"gorm.io/gorm"
)

// NoteService 封装便签的增删改查。
type NoteService struct {
	db *gorm.DB
}

func NewNoteService(db *gorm.DB) *NoteService {
	return &NoteService{db: db}
}

// NoteDTO 是对外输出的便签数据，附带创建者用户名用于展示。
type NoteDTO struct {
	ID        uint       `json:"id"`
	BoardID   uint       `json:"boardId"`
	UserID    uint       `json:"userId"`
	Name      string     `json:"noteName"`
	Text      string     `json:"noteText"`
	Color     string     `json:"noteColor"`
	PositionX float64    `json:"positionX"`
	PositionY float64    `json:"positionY"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	UpdatedAt time.Time  `json:"updatedAt"`
	User      CreatorDTO `json:"user"`
}

// Create 在指定 board 上创建便签，初始位置固定在 (0,0)。
func (s *NoteService) Create(name, color string, boardID, creatorID uint) (*models.StickyNote, error) {
	var count int64
	if err := s.db.Model(&models.Board{}).Where("id = ?", boardID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrBoardNotFound
	}
	note := models.StickyNote{
		BoardID:   boardID,
		UserID:    creatorID,
		Name:      name,
		Color:     color,
		PositionX: 0,
		PositionY: 0,
		Width:     250,
		Height:    110,
	}
	if err := s.db.Create(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

// ListByBoard 返回 board 上的全部便签，按 id 升序。
func (s *NoteService) ListByBoard(boardID uint) ([]NoteDTO, error) {
	return notesByBoard(s.db, boardID)
}

// UpdatePosition 保存便签位置。后写覆盖先写，不做版本检查，
// 并且不刷新 UpdatedAt（只有内容变更才算编辑）。
func (s *NoteService) UpdatePosition(noteID uint, x, y float64) (*models.StickyNote, error) {
	return s.updateColumns(noteID, map[string]interface{}{"position_x": x, "position_y": y})
}

// UpdateContent 保存标题和正文，刷新 UpdatedAt。
func (s *NoteService) UpdateContent(noteID uint, name, text string) (*models.StickyNote, error) {
	note, err := s.find(noteID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(note).Updates(map[string]interface{}{"name": name, "text": text}).Error; err != nil {
		return nil, err
	}
	return note, nil
}

// UpdateDimensions 保存便签尺寸，不刷新 UpdatedAt。
func (s *NoteService) UpdateDimensions(noteID uint, width, height int) (*models.StickyNote, error) {
	return s.updateColumns(noteID, map[string]interface{}{"width": width, "height": height})
}

// Delete 删除便签。
func (s *NoteService) Delete(noteID uint) error {
	note, err := s.find(noteID)
	if err != nil {
		return err
	}
	return s.db.Delete(note).Error
}

func (s *NoteService) find(noteID uint) (*models.StickyNote, error) {
	var note models.StickyNote
	if err := s.db.First(&note, noteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return &note, nil
}

// updateColumns 用 UpdateColumns 绕过 gorm 的自动时间戳，位置和尺寸
// 的变更不触碰 UpdatedAt。
func (s *NoteService) updateColumns(noteID uint, cols map[string]interface{}) (*models.StickyNote, error) {
	note, err := s.find(noteID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(note).UpdateColumns(cols).Error; err != nil {
		return nil, err
	}
	return note, nil
}

// notesByBoard 查便签并批量补创建者用户名。
func notesByBoard(db *gorm.DB, boardID uint) ([]NoteDTO, error) {
	var notes []models.StickyNote
	if err := db.Where("board_id = ?", boardID).Order("id").Find(&notes).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(notes))
	userIDs := make([]uint, 0, len(notes))
	for _, n := range notes {
		if _, ok := seen[n.UserID]; ok {
			continue
		}
		seen[n.UserID] = struct{}{}
		userIDs = append(userIDs, n.UserID)
	}
	usernames := make(map[uint]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}

	out := make([]NoteDTO, 0, len(notes))
	for _, n := range notes {
		out = append(out, NoteDTO{
			ID:        n.ID,
			BoardID:   n.BoardID,
			UserID:    n.UserID,
			Name:      n.Name,
			Text:      n.Text,
			Color:     n.Color,
			PositionX: n.PositionX,
			PositionY: n.PositionY,
			Width:     n.Width,
			Height:    n.Height,
			UpdatedAt: n.UpdatedAt,
			User:      CreatorDTO{ID: n.UserID, Username: usernames[n.UserID]},
		})
	}
	return out, nil
}
