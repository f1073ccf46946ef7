package tonapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "", zap.NewNop())
	c.minInterval = 0
	return c
}

func TestGetAccountTonBalance(t *testing.T) {
	t.Run("initialized account", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"address":"0:ab","balance":1500000000,"status":"active"}`))
		})
		got, err := c.GetAccountTonBalance(context.Background(), "0:ab")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Int64() != 1500000000 {
			t.Errorf("balance = %s, want 1500000000", got)
		}
	})

	t.Run("uninitialized account is zero", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		got, err := c.GetAccountTonBalance(context.Background(), "0:ab")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Sign() != 0 {
			t.Errorf("balance = %s, want 0", got)
		}
	})

	t.Run("server error propagates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		if _, err := c.GetAccountTonBalance(context.Background(), "0:ab"); err == nil {
			t.Error("expected error for 500 response")
		}
	})
}

func TestGetTransactionSeqno(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		want     int64
		wantOK   bool
		wantErr  bool
	}{
		{"mc_block_seqno preferred", `{"hash":"h","mc_block_seqno":1000,"block":{"seqno":5}}`, 200, 1000, true, false},
		{"block seqno fallback", `{"hash":"h","block":{"seqno":777}}`, 200, 777, true, false},
		{"no seqno at all", `{"hash":"h"}`, 200, 0, false, false},
		{"not yet indexed", ``, 404, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 200 {
					w.WriteHeader(tt.status)
					return
				}
				w.Write([]byte(tt.body))
			})
			got, ok, err := c.GetTransactionSeqno(context.Background(), "h")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGetJettonDecimals(t *testing.T) {
	t.Run("from metadata string", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"metadata":{"decimals":"6","symbol":"USDT"}}`))
		})
		got, err := c.GetJettonDecimals(context.Background(), "0:m")
		if err != nil || got != 6 {
			t.Errorf("got (%d, %v), want (6, nil)", got, err)
		}
	})

	t.Run("top-level fallback", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"decimals":9,"metadata":{}}`))
		})
		got, err := c.GetJettonDecimals(context.Background(), "0:m")
		if err != nil || got != 9 {
			t.Errorf("got (%d, %v), want (9, nil)", got, err)
		}
	})

	t.Run("missing decimals is an error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"metadata":{"symbol":"X"}}`))
		})
		if _, err := c.GetJettonDecimals(context.Background(), "0:m"); err == nil {
			t.Error("expected error for jetton without decimals")
		}
	})

	t.Run("garbage decimals is an error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"metadata":{"decimals":"six"}}`))
		})
		if _, err := c.GetJettonDecimals(context.Background(), "0:m"); err == nil {
			t.Error("expected error for non-numeric decimals")
		}
	})
}

func TestGetJettonWalletAddress(t *testing.T) {
	master := "0:00000000000000000000000000000000000000000000000000000000000000aa"
	wallet := "0:00000000000000000000000000000000000000000000000000000000000000bb"

	t.Run("primary endpoint", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/jetton-wallets") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"jetton_wallets":[{"address":"` + wallet + `","jetton":"` + master + `"}]}`))
		})
		got, err := c.GetJettonWalletAddress(context.Background(), "0:owner", master)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != wallet {
			t.Errorf("wallet = %q, want %q", got, wallet)
		}
	})

	t.Run("fallback to balances endpoint", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/jetton-wallets") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"balances":[{"wallet_address":{"address":"` + wallet + `"},"jetton":{"address":"` + master + `"}}]}`))
		})
		got, err := c.GetJettonWalletAddress(context.Background(), "0:owner", master)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != wallet {
			t.Errorf("wallet = %q, want %q", got, wallet)
		}
	})

	t.Run("wallet not deployed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"jetton_wallets":[]}`))
		})
		got, err := c.GetJettonWalletAddress(context.Background(), "0:owner", master)
		if err != nil || got != "" {
			t.Errorf("got (%q, %v), want empty and nil", got, err)
		}
	})
}

func TestNormalizeAddress(t *testing.T) {
	raw := "0:00000000000000000000000000000000000000000000000000000000000000cc"
	addr, err := address.ParseRawAddr(raw)
	if err != nil {
		t.Fatalf("parse raw: %v", err)
	}

	bounceable := addr.Bounce(true).String()
	nonBounceable := addr.Bounce(false).String()

	forms := []string{raw, strings.ToUpper(raw), bounceable, nonBounceable, "  " + raw + "  "}
	for _, f := range forms {
		if got := NormalizeAddress(f); got != raw {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", f, got, raw)
		}
	}

	if got := NormalizeAddress("not-an-address"); got != "not-an-address" {
		t.Errorf("unparseable input should be lowercased passthrough, got %q", got)
	}
	if got := NormalizeAddress(""); got != "" {
		t.Errorf("empty input should stay empty, got %q", got)
	}
}
