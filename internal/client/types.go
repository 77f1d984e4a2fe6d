package client

import (
	"errors"
	"time"
)

// 客户端侧的错误分类。Expired 触发静默刷新或重新登录，Forbidden 从不重试，
// Unreachable 只在通道建立时出现并把整个会话降级。
var (
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrPasswordRequired   = errors.New("board password required")
	ErrChannelUnreachable = errors.New("push channel unreachable")
	ErrDegraded           = errors.New("session degraded")
)

// Note 是本地视图里的一张便签。
type Note struct {
	ID        uint      `json:"id"`
	BoardID   uint      `json:"boardId"`
	UserID    uint      `json:"userId"`
	Name      string    `json:"noteName"`
	Text      string    `json:"noteText"`
	Color     string    `json:"noteColor"`
	PositionX float64   `json:"positionX"`
	PositionY float64   `json:"positionY"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	UpdatedAt time.Time `json:"updatedAt"`
	User      Creator   `json:"user"`
}

// Board 是本地视图里的一块板。
type Board struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Tag         string  `json:"tag"`
	IsPrivate   bool    `json:"isPrivate"`
	UserID      uint    `json:"userId"`
	User        Creator `json:"user"`
	StickyNotes []Note  `json:"stickyNotes"`
}

type Creator struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Session 保存登录后的用户级凭证对。
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
}

// Bounds 是便签容器的尺寸，拖拽位置被钳制在其中。
type Bounds struct {
	Width  float64
	Height float64
}

// 便签尺寸的允许区间，缩放被钳制在其中。
const (
	MinNoteWidth  = 250
	MaxNoteWidth  = 415
	MinNoteHeight = 110
	MaxNoteHeight = 265
)

// Gateway 是持久化网关的客户端视角。每个调用都是独立的持久化往返，
// 与推送通道互不依赖。
type Gateway interface {
	Boards() ([]Board, uint, error)
	CreateBoard(name, tag string, isPrivate bool, password string) (*Board, string, string, error)
	DeleteBoard(boardID uint) error
	VerifyBoardPassword(boardID uint, password string) (bool, string, string, error)
	Notes(boardID uint) ([]Note, error)
	CreateNote(name, color string, boardID uint) (*Note, error)
	UpdatePosition(noteID uint, x, y float64) error
	UpdateContent(noteID uint, name, text string) error
	UpdateDimensions(noteID uint, width, height int) error
	DeleteNote(noteID uint) error
}

// Emitter 是推送通道的发送端，发送即忘，没有投递确认。
type Emitter interface {
	Emit(id *uint, action string, payload map[string]interface{}) error
}
