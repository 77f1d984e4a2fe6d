package ws

import "encoding/json"

// 消息信封：id 指向受影响的 note/board（board 级动作可为 null），action 决定路由。
// 其余字段对服务器不透明，按原始字节原样转发。
type Envelope struct {
	ID     *uint  `json:"id"`
	Action string `json:"action"`
}

const (
	ActionConnectBoard       = "connectBoard"
	ActionCreateBoard        = "createBoard"
	ActionDeleteBoard        = "deleteBoard"
	ActionCreateNote         = "createNote"
	ActionDeleteNote         = "deleteNote"
	ActionUpdatePosition     = "updatePosition"
	ActionUpdateContent      = "updateContent"
	ActionUpdateTitle        = "updateTitle"
	ActionEditDimensions     = "editDimensions"
	ActionConnectedUsersList = "connectedUsersList"
	ActionUserJoined         = "userJoined"
	ActionUserLeft           = "userLeft"
	ActionGlobalUserList     = "globalUserListUpdate"
)

// roomScoped 报告一个客户端动作是否只在所在房间内扩散。
func roomScoped(action string) bool {
	switch action {
	case ActionCreateNote, ActionDeleteNote, ActionUpdatePosition,
		ActionUpdateContent, ActionUpdateTitle, ActionEditDimensions:
		return true
	}
	return false
}

// globalScoped 报告一个客户端动作是否扩散到所有连接。
func globalScoped(action string) bool {
	return action == ActionCreateBoard || action == ActionDeleteBoard
}

func marshal(v map[string]interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
