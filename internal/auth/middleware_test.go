package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newAuthedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireUserAccess(secret), func(c *gin.Context) {
		claims := UserFrom(c)
		c.JSON(http.StatusOK, gin.H{"username": claims.Username})
	})
	return r
}

func TestRequireUserAccess(t *testing.T) {
	secret := "test-secret"
	valid, err := GenerateUserAccess(1, "alice", nil, secret, 60)
	if err != nil {
		t.Fatalf("GenerateUserAccess() error = %v", err)
	}
	expired, err := GenerateUserAccess(1, "alice", nil, secret, -1)
	if err != nil {
		t.Fatalf("GenerateUserAccess() error = %v", err)
	}

	tests := []struct {
		name       string
		authz      string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, StatusTokenExpired},
		{"garbage token", "Bearer not.a.token", http.StatusForbidden},
		{"wrong secret", "Bearer " + mustToken(t, "other-secret"), http.StatusForbidden},
	}

	r := newAuthedRouter(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := GenerateUserAccess(1, "alice", nil, secret, 60)
	if err != nil {
		t.Fatalf("GenerateUserAccess() error = %v", err)
	}
	return token
}

func TestRequireBoardAccess(t *testing.T) {
	secret := "board-secret"
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/board", RequireBoardAccess(secret), func(c *gin.Context) {
		claims := BoardFrom(c)
		c.JSON(http.StatusOK, gin.H{"boardId": claims.BoardID})
	})

	valid, err := GenerateBoardToken(7, 1, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateBoardToken() error = %v", err)
	}

	tests := []struct {
		name       string
		authz      string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/board", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name  string
		authz string
		want  string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"empty", "", ""},
		{"no scheme", "abc123", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authz != "" {
				c.Request.Header.Set("Authorization", tt.authz)
			}
			if got := BearerToken(c); got != tt.want {
				t.Errorf("BearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
