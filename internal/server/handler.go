package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stickyboard/internal/auth"
	"stickyboard/internal/config"
	"stickyboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层和配置。
type Handler struct {
	cfg      config.Config
	userSvc  *service.UserService
	boardSvc *service.BoardService
	noteSvc  *service.NoteService
}

func NewHandler(cfg config.Config, userSvc *service.UserService, boardSvc *service.BoardService, noteSvc *service.NoteService) *Handler {
	return &Handler{cfg: cfg, userSvc: userSvc, boardSvc: boardSvc, noteSvc: noteSvc}
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if len(req.Username) < 4 || len(req.Username) > 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be between 4 and 20 characters"})
		return
	}
	if len(req.Password) < 6 || len(req.Password) > 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be between 6 and 20 characters"})
		return
	}
	if _, err := h.userSvc.Register(req.Username, req.Password); err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "That username already exists."})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong creating the user."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully!"})
}

// Login 校验用户名密码并签发用户级 access + refresh token 对。
// access token 里嵌入用户自己创建的 board id 列表。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	user, boardIDs, err := h.userSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	token, err := auth.GenerateUserAccess(user.ID, user.Username, boardIDs, h.cfg.AccessSecret, h.cfg.AccessTokenTTLMinutes)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("login sign access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	refreshToken, err := auth.GenerateUserRefresh(user.ID, h.cfg.RefreshSecret, h.cfg.RefreshTokenTTLDays)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("login sign refresh token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "refreshToken": refreshToken, "username": user.Username})
}

// ValidateToken 只确认中间件放行的 access token 仍然有效。
func (h *Handler) ValidateToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// RefreshToken 用仍然有效的用户级 refresh token 无条件签发新的用户级
// access token，作用域不变。
func (h *Handler) RefreshToken(c *gin.Context) {
	claims := auth.UserFrom(c)
	user, boardIDs, err := h.userSvc.Lookup(claims.UserID)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", claims.UserID).Msg("refresh token lookup")
		c.JSON(http.StatusForbidden, gin.H{"message": "Invalid token."})
		return
	}
	token, err := auth.GenerateUserAccess(user.ID, user.Username, boardIDs, h.cfg.AccessSecret, h.cfg.AccessTokenTTLMinutes)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("refresh sign access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": token})
}

// RefreshBoardToken 用 board 级 refresh token 签发新的 board 级 access token。
func (h *Handler) RefreshBoardToken(c *gin.Context) {
	claims := auth.BoardFrom(c)
	token, err := auth.GenerateBoardToken(claims.BoardID, claims.UserID, h.cfg.BoardSecret, time.Duration(h.cfg.AccessTokenTTLMinutes)*time.Minute)
	if err != nil {
		log.Error().Err(err).Uint("board_id", claims.BoardID).Msg("refresh sign board token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": token})
}

// CreateBoard 创建 board。私有 board 同时签发 board 级 token 对。
func (h *Handler) CreateBoard(c *gin.Context) {
	var req struct {
		DashName  string `json:"dashName"`
		DashTag   string `json:"dashTag"`
		IsPrivate bool   `json:"isPrivate"`
		Password  string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.DashName = strings.TrimSpace(req.DashName)
	if req.DashName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dashboard must have a name."})
		return
	}
	if req.IsPrivate && strings.TrimSpace(req.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a password for the board!"})
		return
	}
	claims := auth.UserFrom(c)
	board, err := h.boardSvc.Create(req.DashName, req.DashTag, req.IsPrivate, req.Password, claims.UserID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", claims.UserID).Str("name", req.DashName).Msg("create board")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
		return
	}

	var boardToken, boardRefreshToken interface{}
	if req.IsPrivate {
		at, err := auth.GenerateBoardToken(board.ID, claims.UserID, h.cfg.BoardSecret, time.Duration(h.cfg.AccessTokenTTLMinutes)*time.Minute)
		if err != nil {
			log.Error().Err(err).Uint("board_id", board.ID).Msg("create board sign token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
			return
		}
		rt, err := auth.GenerateBoardToken(board.ID, claims.UserID, h.cfg.BoardRefreshSecret, time.Duration(h.cfg.RefreshTokenTTLDays)*24*time.Hour)
		if err != nil {
			log.Error().Err(err).Uint("board_id", board.ID).Msg("create board sign refresh token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
			return
		}
		boardToken, boardRefreshToken = at, rt
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":           "Dashboard created successfully",
		"board":             board,
		"boardToken":        boardToken,
		"boardRefreshToken": boardRefreshToken,
	})
}

// GetBoardDetails 返回 board 详情。私有 board 的非创建者必须持 board 级
// token，其余情况走用户级 token；两种校验由请求体里的标志选择。
func (h *Handler) GetBoardDetails(c *gin.Context) {
	var req struct {
		BoardID        uint `json:"boardId"`
		IsPrivate      bool `json:"isPrivate"`
		IsBoardCreator bool `json:"isBoardCreator"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	token := auth.BearerToken(c)
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var loggedInUser gin.H
	if req.IsPrivate && !req.IsBoardCreator {
		claims, err := auth.ParseBoardToken(token, h.cfg.BoardSecret)
		if err != nil {
			h.tokenError(c, err)
			return
		}
		if claims.BoardID != req.BoardID {
			c.JSON(http.StatusForbidden, gin.H{"message": "Invalid token."})
			return
		}
		loggedInUser = gin.H{"userId": claims.UserID, "boardId": claims.BoardID}
	} else {
		claims, err := auth.ParseUserAccess(token, h.cfg.AccessSecret)
		if err != nil {
			h.tokenError(c, err)
			return
		}
		loggedInUser = gin.H{"userId": claims.UserID, "username": claims.Username}
	}

	details, err := h.boardSvc.Details(req.BoardID)
	if err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
			return
		}
		log.Error().Err(err).Uint("board_id", req.BoardID).Msg("board details")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"boardDetails": details, "loggedInUser": loggedInUser})
}

// VerifyBoardPassword 校验私有 board 的密码；答对签发 board 级 token 对，
// 答错返回 200 {success:false}，让客户端停在质询状态。
func (h *Handler) VerifyBoardPassword(c *gin.Context) {
	var req struct {
		BoardID  uint   `json:"boardId"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ok, err := h.boardSvc.VerifyPassword(req.BoardID, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
			return
		}
		log.Error().Err(err).Uint("board_id", req.BoardID).Msg("verify board password")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	claims := auth.UserFrom(c)
	at, err := auth.GenerateBoardToken(req.BoardID, claims.UserID, h.cfg.BoardSecret, time.Duration(h.cfg.AccessTokenTTLMinutes)*time.Minute)
	if err != nil {
		log.Error().Err(err).Uint("board_id", req.BoardID).Msg("verify password sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}
	rt, err := auth.GenerateBoardToken(req.BoardID, claims.UserID, h.cfg.BoardRefreshSecret, time.Duration(h.cfg.RefreshTokenTTLDays)*24*time.Hour)
	if err != nil {
		log.Error().Err(err).Uint("board_id", req.BoardID).Msg("verify password sign refresh token")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "boardToken": at, "boardRefreshToken": rt})
}

// CreateStickyNote 创建便签，初始位置 (0,0)。
func (h *Handler) CreateStickyNote(c *gin.Context) {
	var req struct {
		NoteName  string `json:"noteName"`
		NoteColor string `json:"noteColor"`
		BoardID   uint   `json:"boardId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.NoteName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Note must have a name."})
		return
	}
	claims := auth.UserFrom(c)
	note, err := h.noteSvc.Create(req.NoteName, req.NoteColor, req.BoardID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
			return
		}
		log.Error().Err(err).Uint("board_id", req.BoardID).Msg("create note")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Sticky note created successfully!", "stickyNote": note})
}

// Notes 返回指定 board 的全部便签。
func (h *Handler) Notes(c *gin.Context) {
	boardID, ok := pathID(c)
	if !ok {
		return
	}
	notes, err := h.noteSvc.ListByBoard(boardID)
	if err != nil {
		log.Error().Err(err).Uint("board_id", boardID).Msg("list notes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
		return
	}
	c.JSON(http.StatusOK, notes)
}

// UpdateNotePosition 保存便签位置，后写覆盖先写。
func (h *Handler) UpdateNotePosition(c *gin.Context) {
	noteID, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		NewPositionX float64 `json:"newPositionX"`
		NewPositionY float64 `json:"newPositionY"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	note, err := h.noteSvc.UpdatePosition(noteID, req.NewPositionX, req.NewPositionY)
	if err != nil {
		h.noteError(c, noteID, err, "update note position")
		return
	}
	c.JSON(http.StatusOK, note)
}

// UpdateNoteContent 保存便签标题和正文。
func (h *Handler) UpdateNoteContent(c *gin.Context) {
	noteID, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		NewText string `json:"newText"`
		NewName string `json:"newName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	note, err := h.noteSvc.UpdateContent(noteID, req.NewName, req.NewText)
	if err != nil {
		h.noteError(c, noteID, err, "update note content")
		return
	}
	c.JSON(http.StatusOK, note)
}

// UpdateNoteDimensions 保存便签尺寸。
func (h *Handler) UpdateNoteDimensions(c *gin.Context) {
	noteID, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		NewWidth  int `json:"newWidth"`
		NewHeight int `json:"newHeight"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	note, err := h.noteSvc.UpdateDimensions(noteID, req.NewWidth, req.NewHeight)
	if err != nil {
		h.noteError(c, noteID, err, "update note dimensions")
		return
	}
	c.JSON(http.StatusOK, note)
}

// DeleteNote 删除便签。
func (h *Handler) DeleteNote(c *gin.Context) {
	noteID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.noteSvc.Delete(noteID); err != nil {
		h.noteError(c, noteID, err, "delete note")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Note removed successfully"})
}

// Boards 返回所有 board，所有登录用户都能看到列表。
func (h *Handler) Boards(c *gin.Context) {
	boards, err := h.boardSvc.List()
	if err != nil {
		log.Error().Err(err).Msg("list boards")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	claims := auth.UserFrom(c)
	c.JSON(http.StatusOK, gin.H{"boards": boards, "loggedInUser": gin.H{"userId": claims.UserID}})
}

// DeleteBoard 删除 board，只有创建者可以删，便签级联删除。
func (h *Handler) DeleteBoard(c *gin.Context) {
	boardID, ok := pathID(c)
	if !ok {
		return
	}
	claims := auth.UserFrom(c)
	if err := h.boardSvc.Delete(boardID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrBoardNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
		case errors.Is(err, service.ErrNotCreator):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the creator can delete this board."})
		default:
			log.Error().Err(err).Uint("board_id", boardID).Msg("delete board")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Board removed successfully"})
}

func (h *Handler) tokenError(c *gin.Context, err error) {
	if errors.Is(err, auth.ErrTokenExpired) {
		c.JSON(auth.StatusTokenExpired, gin.H{"message": "Token has expired."})
		return
	}
	c.JSON(http.StatusForbidden, gin.H{"message": "Invalid token."})
}

func (h *Handler) noteError(c *gin.Context, noteID uint, err error, op string) {
	if errors.Is(err, service.ErrNoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	log.Error().Err(err).Uint("note_id", noteID).Msg(op)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
