package client

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeCredentialAPI plays the server side of the password challenge.
type fakeCredentialAPI struct {
	password    string
	refreshErr  error
	verifyCalls int
}

func (f *fakeCredentialAPI) VerifyBoardPassword(boardID uint, password string) (bool, string, string, error) {
	f.verifyCalls++
	if password != f.password {
		return false, "", "", nil
	}
	return true, unsignedToken(time.Now().Add(time.Hour)), "refresh-token", nil
}

func (f *fakeCredentialAPI) RefreshBoardToken(refresh string) (string, error) {
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return unsignedToken(time.Now().Add(time.Hour)), nil
}

// unsignedToken builds a structurally valid JWT carrying only exp; the
// controller never checks the signature.
func unsignedToken(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

func TestAuthorize(t *testing.T) {
	const me = uint(42)
	tests := []struct {
		name      string
		board     Board
		wantToken bool
		wantErr   error
	}{
		{"own private board", Board{ID: 1, UserID: me, IsPrivate: true}, false, nil},
		{"public board", Board{ID: 2, UserID: 7, IsPrivate: false}, false, nil},
		{"foreign private board", Board{ID: 3, UserID: 7, IsPrivate: true}, false, ErrPasswordRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := NewAccessController(&fakeCredentialAPI{}, me)
			defer ac.Close()

			token, err := ac.Authorize(tt.board)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authorize() error = %v, want %v", err, tt.wantErr)
			}
			if (token != "") != tt.wantToken {
				t.Errorf("Authorize() token = %q, wantToken %v", token, tt.wantToken)
			}
		})
	}
}

func TestPasswordChallengeFlow(t *testing.T) {
	api := &fakeCredentialAPI{password: "letmein"}
	ac := NewAccessController(api, 42)
	defer ac.Close()
	board := Board{ID: 3, UserID: 7, IsPrivate: true}

	// Wrong password keeps the challenge open.
	ok, err := ac.SubmitPassword(board.ID, "wrong")
	if err != nil {
		t.Fatalf("SubmitPassword() error = %v", err)
	}
	if ok {
		t.Fatal("SubmitPassword() = true for wrong password")
	}
	if _, err := ac.Authorize(board); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("Authorize() error = %v, want ErrPasswordRequired", err)
	}

	// The correct password caches a credential pair.
	ok, err = ac.SubmitPassword(board.ID, "letmein")
	if err != nil {
		t.Fatalf("SubmitPassword() error = %v", err)
	}
	if !ok {
		t.Fatal("SubmitPassword() = false for correct password")
	}
	token, err := ac.Authorize(board)
	if err != nil {
		t.Fatalf("Authorize() after challenge error = %v", err)
	}
	if token == "" {
		t.Error("Authorize() returned empty token after successful challenge")
	}

	// Further opens reuse the cache without a second challenge.
	calls := api.verifyCalls
	if _, err := ac.Authorize(board); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if api.verifyCalls != calls {
		t.Errorf("verifyCalls = %d, want %d (cached)", api.verifyCalls, calls)
	}
}

func TestAuthorizeExpiredCacheRechallenges(t *testing.T) {
	ac := NewAccessController(&fakeCredentialAPI{}, 42)
	defer ac.Close()
	board := Board{ID: 3, UserID: 7, IsPrivate: true}

	ac.mu.Lock()
	ac.cache[board.ID] = &boardCredentials{Access: unsignedToken(time.Now().Add(-time.Minute))}
	ac.mu.Unlock()

	if _, err := ac.Authorize(board); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("Authorize() error = %v, want ErrPasswordRequired for expired cache", err)
	}
}

// A token already inside the refresh lead triggers an immediate refresh; when
// the refresh fails the cache is dropped and the next open re-challenges.
func TestFailedRefreshDropsCache(t *testing.T) {
	api := &fakeCredentialAPI{refreshErr: errors.New("refresh expired")}
	ac := NewAccessController(api, 42)
	defer ac.Close()
	board := Board{ID: 3, UserID: 7, IsPrivate: true}

	ac.Store(board.ID, unsignedToken(time.Now().Add(time.Minute)), "stale-refresh")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ac.mu.Lock()
		_, cached := ac.cache[board.ID]
		ac.mu.Unlock()
		if !cached {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := ac.Authorize(board); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("Authorize() error = %v, want ErrPasswordRequired after failed refresh", err)
	}
}

func TestSuccessfulRefreshKeepsCache(t *testing.T) {
	api := &fakeCredentialAPI{}
	ac := NewAccessController(api, 42)
	defer ac.Close()
	board := Board{ID: 3, UserID: 7, IsPrivate: true}

	old := unsignedToken(time.Now().Add(time.Minute))
	ac.Store(board.ID, old, "refresh-token")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ac.mu.Lock()
		creds := ac.cache[board.ID]
		rotated := creds != nil && creds.Access != old
		ac.mu.Unlock()
		if rotated {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	token, err := ac.Authorize(board)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if token == old {
		t.Error("access token not rotated by refresh")
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, err := tokenExpiry(unsignedToken(exp))
	if err != nil {
		t.Fatalf("tokenExpiry() error = %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("tokenExpiry() = %v, want %v", got, exp)
	}

	noExp := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`not json`))
	tests := []struct {
		name  string
		token string
	}{
		{"two segments", "a.b"},
		{"bad base64", "a.!!!.c"},
		{"payload not json", "a." + notJSON + ".c"},
		{"missing exp", "a." + noExp + ".c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokenExpiry(tt.token); err == nil {
				t.Error("tokenExpiry() error = nil, want error")
			}
		})
	}
}
