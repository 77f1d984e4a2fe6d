package ws

import (
	"encoding/json"
	"sort"
	"sync"

	"stickyboard/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Hub 持有进程内唯一的连接注册表：全局名册加上 boardId 到房间成员的映射。
// 没有持久化，进程重启后客户端重连即可重建。所有访问（包括投递，投递本身
// 不阻塞）都在同一把锁下进行，这样 close(send) 和写入永远串行。
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	rooms   map[uint]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[uint]map[*Client]bool),
	}
}

// Register 把新连接加入全局名册并向所有连接推送新的全局用户列表。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	metrics.WsConnections.Inc()
	h.broadcastGlobalUsersLocked()
}

// Unregister 同步移除连接：先退出所在房间，再从名册删除并关闭发送通道。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	h.leaveRoomLocked(c)
	delete(h.clients, c)
	close(c.send)
	metrics.WsConnections.Dec()
	h.broadcastGlobalUsersLocked()
}

// JoinBoard 把连接移入 boardID 对应的房间，自动离开之前的房间。
// 加入后整个房间收到最新成员列表和 userJoined，所有连接收到全局用户列表。
func (h *Hub) JoinBoard(c *Client, boardID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveRoomLocked(c)
	room := h.rooms[boardID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[boardID] = room
	}
	room[c] = true
	c.boardID = &boardID

	members := h.roomMembersLocked(boardID)
	users := usernames(members)
	deliver(members, marshal(map[string]interface{}{"action": ActionConnectedUsersList, "users": users}))
	deliver(members, marshal(map[string]interface{}{
		"action":  ActionUserJoined,
		"message": c.username + " joined the board",
		"users":   users,
	}))
	h.broadcastGlobalUsersLocked()
}

// Route 处理来自客户端的一条消息：只解析信封做路由，负载原样转发。
// 发送者自己已经做过乐观更新，永远不会被回显。
func (h *Hub) Route(sender *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Str("user", sender.username).Msg("ws drop malformed message")
		metrics.WsDroppedTotal.Inc()
		return
	}
	switch {
	case env.Action == ActionConnectBoard:
		if env.ID == nil {
			metrics.WsDroppedTotal.Inc()
			return
		}
		h.JoinBoard(sender, *env.ID)
	case globalScoped(env.Action):
		h.mu.Lock()
		deliver(h.allLocked(sender), raw)
		h.mu.Unlock()
		metrics.WsMessagesTotal.Inc()
	case roomScoped(env.Action):
		h.mu.Lock()
		var targets []*Client
		if sender.boardID != nil {
			for member := range h.rooms[*sender.boardID] {
				if member != sender {
					targets = append(targets, member)
				}
			}
		}
		deliver(targets, raw)
		h.mu.Unlock()
		metrics.WsMessagesTotal.Inc()
	default:
		// 不认识的 action 记录后丢弃，绝不中断连接。
		log.Warn().Str("action", env.Action).Str("user", sender.username).Msg("ws drop unknown action")
		metrics.WsDroppedTotal.Inc()
	}
}

// Online 返回房间当前成员数，供 REST 层复用。
func (h *Hub) Online(boardID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[boardID])
}

// GlobalUsers 返回当前所有连接的去重用户名列表。
func (h *Hub) GlobalUsers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.globalUsersLocked()
}

func (h *Hub) leaveRoomLocked(c *Client) {
	if c.boardID == nil {
		return
	}
	boardID := *c.boardID
	room := h.rooms[boardID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, boardID)
	}
	c.boardID = nil

	remaining := h.roomMembersLocked(boardID)
	users := usernames(remaining)
	deliver(remaining, marshal(map[string]interface{}{
		"action":  ActionUserLeft,
		"message": c.username + " left the board",
		"users":   users,
	}))
	deliver(remaining, marshal(map[string]interface{}{"action": ActionConnectedUsersList, "users": users}))
}

func (h *Hub) broadcastGlobalUsersLocked() {
	deliver(h.allLocked(nil), marshal(map[string]interface{}{
		"action": ActionGlobalUserList,
		"users":  h.globalUsersLocked(),
	}))
}

func (h *Hub) roomMembersLocked(boardID uint) []*Client {
	room := h.rooms[boardID]
	members := make([]*Client, 0, len(room))
	for member := range room {
		members = append(members, member)
	}
	return members
}

func (h *Hub) allLocked(except *Client) []*Client {
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets = append(targets, c)
		}
	}
	return targets
}

func (h *Hub) globalUsersLocked() []string {
	seen := make(map[string]struct{}, len(h.clients))
	users := make([]string, 0, len(h.clients))
	for c := range h.clients {
		if _, ok := seen[c.username]; ok {
			continue
		}
		seen[c.username] = struct{}{}
		users = append(users, c.username)
	}
	sort.Strings(users)
	return users
}

func usernames(clients []*Client) []string {
	users := make([]string, 0, len(clients))
	for _, c := range clients {
		users = append(users, c.username)
	}
	sort.Strings(users)
	return users
}

// deliver 尽力投递：缓冲满的慢客户端直接丢消息，不重试不回放。
func deliver(targets []*Client, msg []byte) {
	if msg == nil {
		return
	}
	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			metrics.WsDroppedTotal.Inc()
		}
	}
}
