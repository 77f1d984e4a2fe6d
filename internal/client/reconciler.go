package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Reconciler 维护一个标签页的本地视图，并决定每个本地操作要走哪条路：
// 先乐观更新本地状态，再写穿持久化网关，写成功且通道可用时才广播。
// 写穿失败不广播：绝不向别人宣布一个没有持久化的变更。
// 两条路径相互独立、无顺序保证，通道只是延迟优化，持久层才是事实来源。
type Reconciler struct {
	mu        sync.Mutex
	gw        Gateway
	em        Emitter
	container Bounds
	degraded  bool

	boardID     uint
	notes       map[uint]*Note
	boards      []Board
	roomUsers   []string
	globalUsers []string
}

// NewReconciler 构造 reconciler。em 为 nil 表示通道从未建立，会话从一开始
// 就处于降级模式，本会话内不再尝试。
func NewReconciler(gw Gateway, em Emitter, container Bounds) *Reconciler {
	return &Reconciler{
		gw:        gw,
		em:        em,
		container: container,
		degraded:  em == nil,
		notes:     make(map[uint]*Note),
	}
}

// Degraded 报告会话是否处于降级模式。
func (r *Reconciler) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// emit 在通道可用时广播，降级模式下静默跳过。
func (r *Reconciler) emit(id *uint, action string, payload map[string]interface{}) {
	if r.degraded {
		return
	}
	_ = r.em.Emit(id, action, payload)
}

// OpenBoard 切换到一块 board：拉取便签、加入房间。
func (r *Reconciler) OpenBoard(boardID uint) error {
	notes, err := r.gw.Notes(boardID)
	if err != nil {
		return fmt.Errorf("load board %d: %w", boardID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boardID = boardID
	r.replaceNotesLocked(notes)
	id := boardID
	r.emit(&id, "connectBoard", nil)
	return nil
}

// RefreshBoards 拉取最新的 board 列表。
func (r *Reconciler) RefreshBoards() error {
	boards, _, err := r.gw.Boards()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.boards = boards
	r.mu.Unlock()
	return nil
}

// CreateNote 创建便签：写穿拿到 id，落进本地视图，再广播。
func (r *Reconciler) CreateNote(name, color string) (*Note, error) {
	r.mu.Lock()
	boardID := r.boardID
	r.mu.Unlock()

	note, err := r.gw.CreateNote(name, color, boardID)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := *note
	r.notes[n.ID] = &n
	r.emit(&n.ID, "createNote", map[string]interface{}{
		"name": n.Name, "color": n.Color, "boardId": boardID,
	})
	return &n, nil
}

// MoveNote 移动便签。位置先按容器钳制，乐观应用，写穿成功后广播。
func (r *Reconciler) MoveNote(noteID uint, x, y float64) error {
	r.mu.Lock()
	note, ok := r.notes[noteID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	x, y = clampPosition(x, y, float64(note.Width), float64(note.Height), r.container)
	prevX, prevY := note.PositionX, note.PositionY
	note.PositionX, note.PositionY = x, y
	boardID := r.boardID
	r.mu.Unlock()

	if err := r.gw.UpdatePosition(noteID, x, y); err != nil {
		r.revertPosition(noteID, prevX, prevY)
		return fmt.Errorf("move note %d: %w", noteID, err)
	}
	r.mu.Lock()
	r.emit(&noteID, "updatePosition", map[string]interface{}{
		"positionX": x, "positionY": y, "boardId": boardID,
	})
	r.mu.Unlock()
	return nil
}

// ResizeNote 缩放便签，尺寸钳制在允许区间内。
func (r *Reconciler) ResizeNote(noteID uint, width, height int) error {
	r.mu.Lock()
	note, ok := r.notes[noteID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	width = clampInt(width, MinNoteWidth, MaxNoteWidth)
	height = clampInt(height, MinNoteHeight, MaxNoteHeight)
	prevW, prevH := note.Width, note.Height
	note.Width, note.Height = width, height
	boardID := r.boardID
	r.mu.Unlock()

	if err := r.gw.UpdateDimensions(noteID, width, height); err != nil {
		r.mu.Lock()
		if n, ok := r.notes[noteID]; ok {
			n.Width, n.Height = prevW, prevH
		}
		r.mu.Unlock()
		return fmt.Errorf("resize note %d: %w", noteID, err)
	}
	r.mu.Lock()
	r.emit(&noteID, "editDimensions", map[string]interface{}{
		"width": width, "height": height, "boardId": boardID,
	})
	r.mu.Unlock()
	return nil
}

// EditNote 修改标题和正文，写穿成功后分别广播标题和内容。
func (r *Reconciler) EditNote(noteID uint, name, text string) error {
	r.mu.Lock()
	note, ok := r.notes[noteID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	prevName, prevText := note.Name, note.Text
	note.Name, note.Text = name, text
	boardID := r.boardID
	r.mu.Unlock()

	if err := r.gw.UpdateContent(noteID, name, text); err != nil {
		r.mu.Lock()
		if n, ok := r.notes[noteID]; ok {
			n.Name, n.Text = prevName, prevText
		}
		r.mu.Unlock()
		return fmt.Errorf("edit note %d: %w", noteID, err)
	}
	r.mu.Lock()
	r.emit(&noteID, "updateTitle", map[string]interface{}{"title": name, "boardId": boardID})
	r.emit(&noteID, "updateContent", map[string]interface{}{"content": text, "boardId": boardID})
	r.mu.Unlock()
	return nil
}

// DeleteNote 删除便签，写穿成功后从本地视图移除并广播。
func (r *Reconciler) DeleteNote(noteID uint) error {
	if err := r.gw.DeleteNote(noteID); err != nil {
		return fmt.Errorf("delete note %d: %w", noteID, err)
	}
	r.mu.Lock()
	delete(r.notes, noteID)
	boardID := r.boardID
	r.emit(&noteID, "deleteNote", map[string]interface{}{"boardId": boardID})
	r.mu.Unlock()
	return nil
}

// CreateBoard 创建 board 并广播 createBoard（board 级动作，id 为 null）。
func (r *Reconciler) CreateBoard(name, tag string, isPrivate bool, password string) (*Board, string, string, error) {
	board, token, refresh, err := r.gw.CreateBoard(name, tag, isPrivate, password)
	if err != nil {
		return nil, "", "", fmt.Errorf("create board: %w", err)
	}
	r.mu.Lock()
	r.boards = append(r.boards, *board)
	r.emit(nil, "createBoard", nil)
	r.mu.Unlock()
	return board, token, refresh, nil
}

// DeleteBoard 删除 board 并广播 deleteBoard。
func (r *Reconciler) DeleteBoard(boardID uint) error {
	if err := r.gw.DeleteBoard(boardID); err != nil {
		return fmt.Errorf("delete board %d: %w", boardID, err)
	}
	r.mu.Lock()
	r.boards = removeBoard(r.boards, boardID)
	if r.boardID == boardID {
		r.boardID = 0
		r.notes = make(map[uint]*Note)
	}
	r.emit(&boardID, "deleteBoard", nil)
	r.mu.Unlock()
	return nil
}

// incoming 是入站消息里可能出现的全部字段，按 action 择取。
type incoming struct {
	ID        uint     `json:"id"`
	Action    string   `json:"action"`
	BoardID   uint     `json:"boardId"`
	PositionX *float64 `json:"positionX"`
	PositionY *float64 `json:"positionY"`
	Content   *string  `json:"content"`
	Title     *string  `json:"title"`
	Width     *int     `json:"width"`
	Height    *int     `json:"height"`
	Users     []string `json:"users"`
}

// Apply 把一条入站广播应用到本地视图。内容、位置、尺寸更新是幂等的就地
// 补丁，不触发重新拉取；createNote/createBoard/deleteBoard 以及删掉最后
// 一张便签的 deleteNote 是结构性变更，必须整单重拉，因为本地没有它不
// 认识的实体的任何记录。指向未渲染实体的补丁直接忽略。
func (r *Reconciler) Apply(raw []byte) error {
	var msg incoming
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Msg("reconciler drop malformed message")
		return nil
	}
	switch msg.Action {
	case "updatePosition":
		r.patch(msg.ID, func(n *Note) {
			if msg.PositionX != nil {
				n.PositionX = *msg.PositionX
			}
			if msg.PositionY != nil {
				n.PositionY = *msg.PositionY
			}
		})
	case "updateContent":
		r.patch(msg.ID, func(n *Note) {
			if msg.Content != nil {
				n.Text = *msg.Content
			}
		})
	case "updateTitle":
		r.patch(msg.ID, func(n *Note) {
			if msg.Title != nil {
				n.Name = *msg.Title
			}
		})
	case "editDimensions":
		r.patch(msg.ID, func(n *Note) {
			if msg.Width != nil {
				n.Width = *msg.Width
			}
			if msg.Height != nil {
				n.Height = *msg.Height
			}
		})
	case "deleteNote":
		r.mu.Lock()
		delete(r.notes, msg.ID)
		empty := len(r.notes) == 0
		boardID := r.boardID
		r.mu.Unlock()
		if empty && boardID != 0 {
			return r.refetchNotes(boardID)
		}
	case "createNote":
		r.mu.Lock()
		boardID := r.boardID
		r.mu.Unlock()
		if boardID != 0 && msg.BoardID == boardID {
			return r.refetchNotes(boardID)
		}
	case "createBoard", "deleteBoard":
		return r.RefreshBoards()
	case "connectedUsersList", "userJoined", "userLeft":
		r.mu.Lock()
		r.roomUsers = msg.Users
		r.mu.Unlock()
	case "globalUserListUpdate":
		r.mu.Lock()
		r.globalUsers = msg.Users
		r.mu.Unlock()
	default:
		log.Warn().Str("action", msg.Action).Msg("reconciler drop unknown action")
	}
	return nil
}

// Notes 返回当前 board 便签的快照，按 id 升序。
func (r *Reconciler) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Note, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Boards 返回 board 列表的快照。
func (r *Reconciler) Boards() []Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Board, len(r.boards))
	copy(out, r.boards)
	return out
}

// RoomUsers 返回当前房间成员的快照。
func (r *Reconciler) RoomUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roomUsers...)
}

// GlobalUsers 返回全局在线用户的快照。
func (r *Reconciler) GlobalUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.globalUsers...)
}

func removeBoard(boards []Board, boardID uint) []Board {
	out := boards[:0]
	for _, b := range boards {
		if b.ID != boardID {
			out = append(out, b)
		}
	}
	return out
}

func (r *Reconciler) patch(noteID uint, fn func(*Note)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.notes[noteID]; ok {
		fn(n)
	}
}

func (r *Reconciler) refetchNotes(boardID uint) error {
	notes, err := r.gw.Notes(boardID)
	if err != nil {
		return fmt.Errorf("refetch board %d: %w", boardID, err)
	}
	r.mu.Lock()
	r.replaceNotesLocked(notes)
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) replaceNotesLocked(notes []Note) {
	r.notes = make(map[uint]*Note, len(notes))
	for i := range notes {
		n := notes[i]
		r.notes[n.ID] = &n
	}
}

func (r *Reconciler) revertPosition(noteID uint, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.notes[noteID]; ok {
		n.PositionX, n.PositionY = x, y
	}
}

// clampPosition 把便签位置钳制在容器内：两个轴都限制在
// [0, 容器尺寸-便签尺寸]。
func clampPosition(x, y, noteW, noteH float64, c Bounds) (float64, float64) {
	maxX := c.Width - noteW
	maxY := c.Height - noteH
	if maxX < 0 {
		maxX = 0
	}
	if maxY < 0 {
		maxY = 0
	}
	if x < 0 {
		x = 0
	} else if x > maxX {
		x = maxX
	}
	if y < 0 {
		y = 0
	} else if y > maxY {
		y = maxY
	}
	return x, y
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
