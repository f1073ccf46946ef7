package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/zyra-market/backend/internal/ton"
)

// recordingSender фиксирует отправленные переводы по их комментариям и
// умеет падать на заданном.
type recordingSender struct {
	sent   []string
	failOn string
}

func (r *recordingSender) SendJetton(_ context.Context, p ton.JettonTransferParams) (string, error) {
	if r.failOn != "" && p.Comment == r.failOn {
		return "", errors.New("insufficient gas on escrow wallet")
	}
	r.sent = append(r.sent, p.Comment)
	return fmt.Sprintf("seqno:%d", len(r.sent)), nil
}

func TestRunApplicationTransfers(t *testing.T) {
	ctx := context.Background()
	commission := &ton.JettonTransferParams{Comment: "campaign_commission_1_2"}
	payout := ton.JettonTransferParams{Comment: "campaign_payout_1_2"}

	t.Run("commission then payout then decrement", func(t *testing.T) {
		sender := &recordingSender{}
		decrements := 0
		token, err := runApplicationTransfers(ctx, sender, commission, payout, func(context.Context) error {
			if len(sender.sent) != 2 {
				t.Errorf("pool decremented after %d transfers, want 2", len(sender.sent))
			}
			decrements++
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if token == "" {
			t.Error("payout token is empty")
		}
		if decrements != 1 {
			t.Errorf("decrements = %d, want 1", decrements)
		}
		want := []string{"campaign_commission_1_2", "campaign_payout_1_2"}
		for i, c := range want {
			if sender.sent[i] != c {
				t.Errorf("sent[%d] = %q, want %q", i, sender.sent[i], c)
			}
		}
	})

	t.Run("no commission leg", func(t *testing.T) {
		sender := &recordingSender{}
		token, err := runApplicationTransfers(ctx, sender, nil, payout, func(context.Context) error { return nil })
		if err != nil || token == "" {
			t.Fatalf("got (%q, %v)", token, err)
		}
		if len(sender.sent) != 1 || sender.sent[0] != "campaign_payout_1_2" {
			t.Errorf("sent = %v, want only payout", sender.sent)
		}
	})

	// сорвавшийся перевод не трогает пул: remaining_usdt остаётся
	// доступным для повтора выплаты
	t.Run("commission failure leaves pool intact", func(t *testing.T) {
		sender := &recordingSender{failOn: "campaign_commission_1_2"}
		token, err := runApplicationTransfers(ctx, sender, commission, payout, func(context.Context) error {
			t.Error("pool decremented though no jettons moved")
			return nil
		})
		if err == nil || token != "" {
			t.Fatalf("got (%q, %v), want empty token and error", token, err)
		}
	})

	t.Run("payout failure leaves pool intact", func(t *testing.T) {
		sender := &recordingSender{failOn: "campaign_payout_1_2"}
		token, err := runApplicationTransfers(ctx, sender, commission, payout, func(context.Context) error {
			t.Error("pool decremented though payout did not go out")
			return nil
		})
		if err == nil || token != "" {
			t.Fatalf("got (%q, %v), want empty token and error", token, err)
		}
	})

	t.Run("decrement failure still returns token", func(t *testing.T) {
		sender := &recordingSender{}
		token, err := runApplicationTransfers(ctx, sender, nil, payout, func(context.Context) error {
			return errors.New("connection reset")
		})
		if err == nil {
			t.Fatal("expected decrement error")
		}
		if token == "" {
			t.Error("token lost: a sent payout must stay recorded")
		}
	})
}
