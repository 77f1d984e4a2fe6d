package ws

import (
	"net/http"
	"time"

	"stickyboard/internal/auth"
	"stickyboard/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Client 是一条已经通过握手的推送通道连接。boardID 指向当前加入的房间，
// 由 Hub 的锁保护。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   uint
	username string
	boardID  *uint
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 处理推送通道握手。凭证走连接 URI 的查询参数，校验失败在升级前
// 拒绝，不进入任何消息交换。
func Serve(h *Hub, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("access_token")
		username := c.Query("user")
		if token == "" || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		claims, err := auth.ParseUserAccess(token, cfg.AccessSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{
			hub:      h,
			conn:     conn,
			send:     make(chan []byte, 256),
			userID:   claims.UserID,
			username: username,
		}
		h.Register(client)

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.hub.Route(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
