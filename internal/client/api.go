package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// API 是 REST 面的客户端实现，持有用户级凭证对并在每个请求上带 bearer 头。
// 222 映射为 ErrSessionExpired，403 映射为 ErrForbidden，404 映射为 ErrNotFound。
type API struct {
	base string
	hc   *http.Client

	mu      sync.Mutex
	session Session
}

func NewAPI(base string) *API {
	return &API{base: base, hc: &http.Client{Timeout: 10 * time.Second}}
}

// Session 返回当前凭证对的副本。
func (a *API) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// SetSession 替换当前凭证对，刷新后由调用方写回。
func (a *API) SetSession(s Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *API) token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Token
}

// do 执行一次请求并做统一的状态码分类。
func (a *API) do(method, path string, body interface{}, token string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == 222:
		return nil, ErrSessionExpired
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

func (a *API) doAuthed(method, path string, body interface{}) ([]byte, error) {
	return a.do(method, path, body, a.token())
}

// Register 注册新用户。
func (a *API) Register(username, password string) error {
	_, err := a.do(http.MethodPost, "/register", map[string]string{"username": username, "password": password}, "")
	return err
}

// Login 登录并保存用户级凭证对。
func (a *API) Login(username, password string) (Session, error) {
	data, err := a.do(http.MethodPost, "/login", map[string]string{"username": username, "password": password}, "")
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, err
	}
	a.SetSession(s)
	return s, nil
}

// ValidateToken 确认当前 access token 仍然有效。
func (a *API) ValidateToken() error {
	_, err := a.doAuthed(http.MethodPost, "/validate-token", nil)
	return err
}

// RefreshToken 用 refresh token 换新的用户级 access token 并保存。
func (a *API) RefreshToken() (string, error) {
	a.mu.Lock()
	refresh := a.session.RefreshToken
	a.mu.Unlock()
	data, err := a.do(http.MethodPost, "/refresh-token", nil, refresh)
	if err != nil {
		return "", err
	}
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	a.mu.Lock()
	a.session.Token = out.AccessToken
	a.mu.Unlock()
	return out.AccessToken, nil
}

// RefreshBoardToken 用 board 级 refresh token 换新的 board 级 access token。
func (a *API) RefreshBoardToken(refresh string) (string, error) {
	data, err := a.do(http.MethodPost, "/refresh-board-token", nil, refresh)
	if err != nil {
		return "", err
	}
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Boards 拉取全部 board 和当前登录用户 id。
func (a *API) Boards() ([]Board, uint, error) {
	data, err := a.doAuthed(http.MethodGet, "/boards", nil)
	if err != nil {
		return nil, 0, err
	}
	var out struct {
		Boards       []Board `json:"boards"`
		LoggedInUser struct {
			UserID uint `json:"userId"`
		} `json:"loggedInUser"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, 0, err
	}
	return out.Boards, out.LoggedInUser.UserID, nil
}

// CreateBoard 创建 board，私有 board 同时返回 board 级凭证对。
func (a *API) CreateBoard(name, tag string, isPrivate bool, password string) (*Board, string, string, error) {
	body := map[string]interface{}{"dashName": name, "dashTag": tag, "isPrivate": isPrivate}
	if isPrivate {
		body["password"] = password
	}
	data, err := a.doAuthed(http.MethodPost, "/create-board", body)
	if err != nil {
		return nil, "", "", err
	}
	var out struct {
		Board             Board  `json:"board"`
		BoardToken        string `json:"boardToken"`
		BoardRefreshToken string `json:"boardRefreshToken"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, "", "", err
	}
	return &out.Board, out.BoardToken, out.BoardRefreshToken, nil
}

// DeleteBoard 删除 board。
func (a *API) DeleteBoard(boardID uint) error {
	_, err := a.doAuthed(http.MethodDelete, fmt.Sprintf("/boards/%d", boardID), nil)
	return err
}

// BoardDetails 拉取 board 详情。私有 board 的非创建者必须传 board 级 token。
func (a *API) BoardDetails(boardID uint, isPrivate, isCreator bool, boardToken string) (*Board, error) {
	body := map[string]interface{}{"boardId": boardID, "isPrivate": isPrivate, "isBoardCreator": isCreator}
	token := a.token()
	if isPrivate && !isCreator {
		token = boardToken
	}
	data, err := a.do(http.MethodPost, "/get-board-details", body, token)
	if err != nil {
		return nil, err
	}
	var out struct {
		BoardDetails Board `json:"boardDetails"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out.BoardDetails, nil
}

// VerifyBoardPassword 提交 board 密码，答对返回 board 级凭证对。
func (a *API) VerifyBoardPassword(boardID uint, password string) (bool, string, string, error) {
	data, err := a.doAuthed(http.MethodPost, "/verify-board-password", map[string]interface{}{"boardId": boardID, "password": password})
	if err != nil {
		return false, "", "", err
	}
	var out struct {
		Success           bool   `json:"success"`
		BoardToken        string `json:"boardToken"`
		BoardRefreshToken string `json:"boardRefreshToken"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return false, "", "", err
	}
	return out.Success, out.BoardToken, out.BoardRefreshToken, nil
}

// Notes 拉取 board 上的全部便签。
func (a *API) Notes(boardID uint) ([]Note, error) {
	data, err := a.doAuthed(http.MethodGet, fmt.Sprintf("/notes/%d", boardID), nil)
	if err != nil {
		return nil, err
	}
	var notes []Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// CreateNote 创建便签。
func (a *API) CreateNote(name, color string, boardID uint) (*Note, error) {
	data, err := a.doAuthed(http.MethodPost, "/create-sticky-note", map[string]interface{}{
		"noteName": name, "noteColor": color, "boardId": boardID,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		StickyNote Note `json:"stickyNote"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out.StickyNote, nil
}

// UpdatePosition 持久化便签位置。
func (a *API) UpdatePosition(noteID uint, x, y float64) error {
	_, err := a.doAuthed(http.MethodPatch, fmt.Sprintf("/notes_position/%d", noteID), map[string]interface{}{
		"newPositionX": x, "newPositionY": y,
	})
	return err
}

// UpdateContent 持久化便签标题和正文。
func (a *API) UpdateContent(noteID uint, name, text string) error {
	_, err := a.doAuthed(http.MethodPatch, fmt.Sprintf("/notes_content/%d", noteID), map[string]interface{}{
		"newText": text, "newName": name,
	})
	return err
}

// UpdateDimensions 持久化便签尺寸。
func (a *API) UpdateDimensions(noteID uint, width, height int) error {
	_, err := a.doAuthed(http.MethodPatch, fmt.Sprintf("/notes_dimensions/%d", noteID), map[string]interface{}{
		"newWidth": width, "newHeight": height,
	})
	return err
}

// DeleteNote 删除便签。
func (a *API) DeleteNote(noteID uint) error {
	_, err := a.doAuthed(http.MethodDelete, fmt.Sprintf("/notes_delete/%d", noteID), nil)
	return err
}
