package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:20;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Board 的 PasswordHash 只在 IsPrivate 为 true 时非空。
type Board struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Tag          string    `gorm:"size:64" json:"tag"`
	IsPrivate    bool      `gorm:"not null" json:"isPrivate"`
	PasswordHash *string   `json:"-"`
	UserID       uint      `gorm:"index;not null" json:"userId"`
	CreatedAt    time.Time `json:"-"`
}

// StickyNote 的 UpdatedAt 只在标题或内容变更时刷新，移动和缩放不刷新。
type StickyNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BoardID   uint      `gorm:"index;not null" json:"boardId"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Name      string    `gorm:"size:128;not null" json:"noteName"`
	Text      string    `gorm:"type:text" json:"noteText"`
	Color     string    `gorm:"size:16;not null" json:"noteColor"`
	PositionX float64   `gorm:"not null" json:"positionX"`
	PositionY float64   `gorm:"not null" json:"positionY"`
	Width     int       `gorm:"not null;default:250" json:"width"`
	Height    int       `gorm:"not null;default:110" json:"height"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}
