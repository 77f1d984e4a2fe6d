package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// 过期和无效必须是两种不同的错误：过期触发静默刷新，无效强制重新登录。
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// StatusTokenExpired 是 access token 过期时返回的状态码，区别于 401/403。
const StatusTokenExpired = 222

// UserClaims 是用户级 access token 的载荷，携带用户自己创建的 board id 列表。
type UserClaims struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Boards   []uint `json:"boards,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims 是用户级 refresh token 的载荷，只带 userId。
type RefreshClaims struct {
	UserID uint `json:"userId"`
	jwt.RegisteredClaims
}

// BoardClaims 是 board 级 token 的载荷，access 和 refresh 共用同一结构、不同密钥。
type BoardClaims struct {
	BoardID uint `json:"boardId"`
	UserID  uint `json:"userId"`
	jwt.RegisteredClaims
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

// GenerateUserAccess 签发用户级 access token，有效期 ttlMinutes 分钟。
func GenerateUserAccess(userID uint, username string, boardIDs []uint, secret string, ttlMinutes int) (string, error) {
	claims := UserClaims{
		UserID:           userID,
		Username:         username,
		Boards:           boardIDs,
		RegisteredClaims: registered(strconv.FormatUint(uint64(userID), 10), time.Duration(ttlMinutes)*time.Minute),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GenerateUserRefresh 签发用户级 refresh token，有效期 ttlDays 天。
func GenerateUserRefresh(userID uint, secret string, ttlDays int) (string, error) {
	claims := RefreshClaims{
		UserID:           userID,
		RegisteredClaims: registered(strconv.FormatUint(uint64(userID), 10), time.Duration(ttlDays)*24*time.Hour),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GenerateBoardToken 签发 board 级 token。access 和 refresh 只差密钥和有效期。
func GenerateBoardToken(boardID, userID uint, secret string, ttl time.Duration) (string, error) {
	claims := BoardClaims{
		BoardID:          boardID,
		UserID:           userID,
		RegisteredClaims: registered(strconv.FormatUint(uint64(boardID), 10), ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parse 解析并校验 token，把 jwt 库的错误归并为 ErrTokenExpired / ErrTokenInvalid 两类。
func parse(tokenStr, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func ParseUserAccess(tokenStr, secret string) (*UserClaims, error) {
	claims := &UserClaims{}
	if err := parse(tokenStr, secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func ParseUserRefresh(tokenStr, secret string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(tokenStr, secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func ParseBoardToken(tokenStr, secret string) (*BoardClaims, error) {
	claims := &BoardClaims{}
	if err := parse(tokenStr, secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
