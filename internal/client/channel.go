package client

import (
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Channel 是推送通道的客户端。凭证走连接 URI 的查询参数；拨号失败是
// 唯一对用户可见的通道错误，之后整个会话降级，不再重连。
type Channel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialChannel 建立推送通道连接并启动读循环，收到的每条消息交给 onMessage。
// 返回 ErrChannelUnreachable 表示会话从此降级。
func DialChannel(baseURL, token, username string, onMessage func([]byte)) (*Channel, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("access_token", token)
	q.Set("user", username)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, ErrChannelUnreachable
	}
	ch := &Channel{conn: conn}
	go ch.readLoop(onMessage)
	return ch, nil
}

func (ch *Channel) readLoop(onMessage func([]byte)) {
	for {
		_, data, err := ch.conn.ReadMessage()
		if err != nil {
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

// Emit 发送一条 {id, action, ...} 消息。发送即忘：写失败只记日志，
// 丢失由持久化路径兜底。
func (ch *Channel) Emit(id *uint, action string, payload map[string]interface{}) error {
	msg := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		msg[k] = v
	}
	msg["action"] = action
	if id != nil {
		msg["id"] = *id
	} else {
		msg["id"] = nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if err := ch.conn.WriteJSON(msg); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("channel emit")
	}
	return nil
}

func (ch *Channel) Close() error {
	return ch.conn.Close()
}
