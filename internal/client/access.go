package client

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// refreshLead 是主动刷新的提前量：在 access token 过期前 5 分钟由客户端
// 定时器触发，与请求活动无关。
const refreshLead = 5 * time.Minute

// boardCredentials 是一块私有 board 的缓存凭证对。
type boardCredentials struct {
	Access  string
	Refresh string
}

// credentialAPI 是 AccessController 依赖的最小接口，便于测试注入。
type credentialAPI interface {
	VerifyBoardPassword(boardID uint, password string) (bool, string, string, error)
	RefreshBoardToken(refresh string) (string, error)
}

// AccessController 决定每次打开 board 时走哪条路：创建者直接放行，公开
// board 直接放行，有缓存的有效 board 凭证放行，否则进入密码质询。答对
// 密码后凭证对只签发缓存一次，之后靠刷新周期透明续期。
type AccessController struct {
	api    credentialAPI
	userID uint

	mu     sync.Mutex
	cache  map[uint]*boardCredentials
	timers []*time.Timer
}

func NewAccessController(api credentialAPI, userID uint) *AccessController {
	return &AccessController{api: api, userID: userID, cache: make(map[uint]*boardCredentials)}
}

// Authorize 返回访问 board 要用的 token。空串表示走用户级 token；
// ErrPasswordRequired 表示必须先通过 SubmitPassword 的质询。
func (ac *AccessController) Authorize(board Board) (string, error) {
	if board.UserID == ac.userID {
		return "", nil
	}
	if !board.IsPrivate {
		return "", nil
	}
	ac.mu.Lock()
	creds := ac.cache[board.ID]
	ac.mu.Unlock()
	if creds != nil {
		if exp, err := tokenExpiry(creds.Access); err == nil && time.Now().Before(exp) {
			return creds.Access, nil
		}
	}
	return "", ErrPasswordRequired
}

// SubmitPassword 提交密码质询。答错返回 false 并停留在质询状态；答对
// 缓存签发的凭证对并安排主动刷新。
func (ac *AccessController) SubmitPassword(boardID uint, password string) (bool, error) {
	ok, access, refresh, err := ac.api.VerifyBoardPassword(boardID, password)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	ac.Store(boardID, access, refresh)
	return true, nil
}

// Store 缓存 board 凭证对并安排刷新，创建私有 board 时服务端直接发的
// 凭证也从这里进来。
func (ac *AccessController) Store(boardID uint, access, refresh string) {
	ac.mu.Lock()
	ac.cache[boardID] = &boardCredentials{Access: access, Refresh: refresh}
	ac.mu.Unlock()
	ac.scheduleBoardRefresh(boardID, access)
}

// scheduleBoardRefresh 在过期前 refreshLead 触发 board token 刷新并重新排程。
// 刷新失败说明 refresh token 也到期了，丢掉缓存，下次访问重新质询。
func (ac *AccessController) scheduleBoardRefresh(boardID uint, access string) {
	exp, err := tokenExpiry(access)
	if err != nil {
		log.Warn().Err(err).Uint("board_id", boardID).Msg("board token without expiry")
		return
	}
	delay := time.Until(exp) - refreshLead
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, func() {
		ac.mu.Lock()
		creds := ac.cache[boardID]
		ac.mu.Unlock()
		if creds == nil {
			return
		}
		newAccess, err := ac.api.RefreshBoardToken(creds.Refresh)
		if err != nil {
			log.Warn().Err(err).Uint("board_id", boardID).Msg("board token refresh")
			ac.mu.Lock()
			delete(ac.cache, boardID)
			ac.mu.Unlock()
			return
		}
		ac.mu.Lock()
		creds.Access = newAccess
		ac.mu.Unlock()
		ac.scheduleBoardRefresh(boardID, newAccess)
	})
	ac.mu.Lock()
	ac.timers = append(ac.timers, timer)
	ac.mu.Unlock()
}

// Close 停掉所有刷新定时器。
func (ac *AccessController) Close() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	for _, t := range ac.timers {
		t.Stop()
	}
	ac.timers = nil
}

// ScheduleUserRefresh 为用户级 access token 安排同样的主动刷新周期。
// 刷新失败意味着会话过期，交给 onExpired 处理（通常是强制重新登录）。
func ScheduleUserRefresh(api *API, onExpired func()) *time.Timer {
	exp, err := tokenExpiry(api.Session().Token)
	if err != nil {
		log.Warn().Err(err).Msg("access token without expiry")
		return nil
	}
	delay := time.Until(exp) - refreshLead
	if delay < 0 {
		delay = 0
	}
	return time.AfterFunc(delay, func() {
		if _, err := api.RefreshToken(); err != nil {
			log.Warn().Err(err).Msg("access token refresh")
			if onExpired != nil {
				onExpired()
			}
			return
		}
		ScheduleUserRefresh(api, onExpired)
	})
}

// tokenExpiry 不校验签名，只解出 JWT 载荷里的 exp，换算成本地时刻。
func tokenExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, errors.New("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == 0 {
		return time.Time{}, errors.New("token without exp")
	}
	return time.Unix(claims.Exp, 0), nil
}
