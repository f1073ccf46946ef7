package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, logChatID int64, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token", logChatID, zap.NewNop())
	c.baseURL = srv.URL
	return c
}

func TestCheckMessageExists(t *testing.T) {
	t.Run("message exists", func(t *testing.T) {
		var deletes int32
		c := newTestClient(t, -100500, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.Contains(r.URL.Path, "copyMessage"):
				w.Write([]byte(`{"ok":true,"result":{"message_id":777}}`))
			case strings.Contains(r.URL.Path, "deleteMessage"):
				atomic.AddInt32(&deletes, 1)
				if r.URL.Query().Get("message_id") != "777" {
					t.Errorf("deleting wrong message: %s", r.URL.Query().Get("message_id"))
				}
				w.Write([]byte(`{"ok":true,"result":true}`))
			default:
				t.Errorf("unexpected call %s", r.URL.Path)
			}
		})

		ok, err := c.CheckMessageExists(context.Background(), -1001, 42)
		if err != nil || !ok {
			t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
		}
		if atomic.LoadInt32(&deletes) != 1 {
			t.Error("probe copy was not deleted")
		}
	})

	t.Run("message deleted", func(t *testing.T) {
		c := newTestClient(t, -100500, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":false,"description":"Bad Request: message to copy not found"}`))
		})
		ok, err := c.CheckMessageExists(context.Background(), -1001, 42)
		if err != nil || ok {
			t.Fatalf("got (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("message_id_invalid", func(t *testing.T) {
		c := newTestClient(t, -100500, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":false,"description":"Bad Request: MESSAGE_ID_INVALID"}`))
		})
		ok, err := c.CheckMessageExists(context.Background(), -1001, 42)
		if err != nil || ok {
			t.Fatalf("got (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("rate limited via parameters", func(t *testing.T) {
		c := newTestClient(t, -100500, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":false,"description":"Too Many Requests: retry later","parameters":{"retry_after":17}}`))
		})
		_, err := c.CheckMessageExists(context.Background(), -1001, 42)
		var rl *RateLimitedError
		if !errors.As(err, &rl) {
			t.Fatalf("err = %v, want RateLimitedError", err)
		}
		if rl.RetryAfter != 17 {
			t.Errorf("RetryAfter = %d, want 17", rl.RetryAfter)
		}
	})

	t.Run("rate limited via description", func(t *testing.T) {
		c := newTestClient(t, -100500, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":false,"description":"flood control: retry_after 30"}`))
		})
		_, err := c.CheckMessageExists(context.Background(), -1001, 42)
		var rl *RateLimitedError
		if !errors.As(err, &rl) {
			t.Fatalf("err = %v, want RateLimitedError", err)
		}
	})

	t.Run("other errors propagate", func(t *testing.T) {
		c := newTestClient(t, -100500, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was kicked"}`))
		})
		ok, err := c.CheckMessageExists(context.Background(), -1001, 42)
		if err == nil || ok {
			t.Fatalf("got (%v, %v), want error", ok, err)
		}
		var rl *RateLimitedError
		if errors.As(err, &rl) {
			t.Error("kicked bot should not classify as rate limit")
		}
	})

	t.Run("no log chat configured", func(t *testing.T) {
		c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no HTTP call expected")
		})
		_, err := c.CheckMessageExists(context.Background(), -1001, 42)
		if !errors.Is(err, ErrNotConfigured) {
			t.Errorf("err = %v, want ErrNotConfigured", err)
		}
	})
}

func TestGetMeCaches(t *testing.T) {
	var calls int32
	c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"ok":true,"result":{"id":12345,"is_bot":true,"username":"settlement_bot"}}`))
	})

	for i := 0; i < 3; i++ {
		me, err := c.GetMe(context.Background())
		if err != nil {
			t.Fatalf("getMe: %v", err)
		}
		if me.ID != 12345 || me.Username != "settlement_bot" {
			t.Errorf("unexpected identity: %+v", me)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("getMe hit the API %d times, want 1", got)
	}
}

func TestDisabledClient(t *testing.T) {
	c := NewClient("", 0, zap.NewNop())
	if c.Enabled() {
		t.Error("client without token should be disabled")
	}
	if err := c.SendMessage(context.Background(), 1, "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
