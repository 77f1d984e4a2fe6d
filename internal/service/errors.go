package service

import "errors"

// 业务层通用错误，handler 根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBoardNotFound      = errors.New("board not found")
	ErrNoteNotFound       = errors.New("note not found")
	ErrNotCreator         = errors.New("not the board creator")
)
