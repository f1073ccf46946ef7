package services

import (
	"testing"
	"time"

	"github.com/zyra-market/backend/internal/tonapi"
)

const (
	escrowRaw = "0:00000000000000000000000000000000000000000000000000000000000000aa"
	walletRaw = "0:00000000000000000000000000000000000000000000000000000000000000bb"
	masterRaw = "0:00000000000000000000000000000000000000000000000000000000000000cc"
	payerRaw  = "0:00000000000000000000000000000000000000000000000000000000000000dd"
)

func transferEvent(eventID string, tr tonapi.JettonTransfer) tonapi.Event {
	return tonapi.Event{
		EventID:   eventID,
		Timestamp: 1700000000,
		Actions:   []tonapi.Action{{Type: "JettonTransfer", JettonTransfer: &tr}},
	}
}

func goodTransfer() tonapi.JettonTransfer {
	return tonapi.JettonTransfer{
		Sender:           &tonapi.AccountAddress{Address: payerRaw},
		Recipient:        &tonapi.AccountAddress{Address: escrowRaw},
		RecipientsWallet: walletRaw,
		Amount:           "1000000",
		Comment:          "pay_1_abc order",
		Jetton:           &tonapi.JettonPreview{Address: masterRaw, Decimals: 6},
		Transaction:      &tonapi.TransactionRef{Hash: "txhash1"},
		TxHash:           "txhash2",
	}
}

func expectation() MatchExpectation {
	return MatchExpectation{
		AmountBaseUnits: "1000000",
		Reference:       "pay_1_abc",
		RecipientAddrs:  []string{escrowRaw, walletRaw},
		JettonMasters:   []string{masterRaw},
	}
}

func TestMatchIncomingTransfer(t *testing.T) {
	t.Run("matches and collects hashes in order", func(t *testing.T) {
		ev := transferEvent("evt1", goodTransfer())
		ev.BaseTransactions = []string{"base1", "txhash1", "base2"}

		m, ok := MatchIncomingTransfer([]tonapi.Event{ev}, expectation())
		if !ok {
			t.Fatal("expected a match")
		}
		if m.PayerAddress != payerRaw {
			t.Errorf("payer = %q, want %q", m.PayerAddress, payerRaw)
		}
		want := []string{"txhash1", "txhash2", "evt1", "base1", "base2"}
		if len(m.TxHashes) != len(want) {
			t.Fatalf("hashes = %v, want %v", m.TxHashes, want)
		}
		for i := range want {
			if m.TxHashes[i] != want[i] {
				t.Errorf("hash[%d] = %q, want %q", i, m.TxHashes[i], want[i])
			}
		}
	})

	t.Run("recipient may match via recipients_wallet only", func(t *testing.T) {
		tr := goodTransfer()
		tr.Recipient = nil
		_, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", tr)}, expectation())
		if !ok {
			t.Error("expected match through recipients_wallet")
		}
	})

	t.Run("wrong recipient rejected", func(t *testing.T) {
		tr := goodTransfer()
		tr.Recipient = &tonapi.AccountAddress{Address: payerRaw}
		tr.RecipientsWallet = payerRaw
		if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", tr)}, expectation()); ok {
			t.Error("transfer to another account must not match")
		}
	})

	t.Run("amount must be exact", func(t *testing.T) {
		for _, amount := range []string{"999999", "1000001", "100000", "10000000"} {
			tr := goodTransfer()
			tr.Amount = amount
			if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", tr)}, expectation()); ok {
				t.Errorf("amount %s must not match expected 1000000", amount)
			}
		}
	})

	t.Run("comment must contain reference", func(t *testing.T) {
		tr := goodTransfer()
		tr.Comment = "pay_1_xyz"
		if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", tr)}, expectation()); ok {
			t.Error("wrong reference must not match")
		}

		tr.Comment = "prefix pay_1_abc suffix"
		if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", tr)}, expectation()); !ok {
			t.Error("reference as substring should match")
		}
	})

	t.Run("wrong jetton rejected", func(t *testing.T) {
		tr := goodTransfer()
		tr.Jetton = &tonapi.JettonPreview{Address: payerRaw}
		if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", tr)}, expectation()); ok {
			t.Error("wrong jetton master must not match")
		}
	})

	t.Run("empty master set disables jetton check", func(t *testing.T) {
		tr := goodTransfer()
		tr.Jetton = nil
		exp := expectation()
		exp.JettonMasters = nil
		if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", tr)}, exp); !ok {
			t.Error("jetton check should be skipped when no masters expected")
		}
	})

	t.Run("first matching event wins", func(t *testing.T) {
		newer := transferEvent("newer", goodTransfer())
		older := transferEvent("older", goodTransfer())
		m, ok := MatchIncomingTransfer([]tonapi.Event{newer, older}, expectation())
		if !ok || m.EventID != "newer" {
			t.Errorf("got event %q, want %q", m.EventID, "newer")
		}
	})

	t.Run("non-transfer actions skipped", func(t *testing.T) {
		ev := tonapi.Event{
			EventID: "e",
			Actions: []tonapi.Action{
				{Type: "TonTransfer"},
				{Type: "JettonTransfer", JettonTransfer: ptrTransfer(goodTransfer())},
			},
		}
		if _, ok := MatchIncomingTransfer([]tonapi.Event{ev}, expectation()); !ok {
			t.Error("match should survive mixed actions")
		}
	})

	t.Run("missing reference or amount never matches", func(t *testing.T) {
		exp := expectation()
		exp.Reference = ""
		if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", goodTransfer())}, exp); ok {
			t.Error("empty reference must not match anything")
		}

		exp = expectation()
		exp.AmountBaseUnits = ""
		if _, ok := MatchIncomingTransfer([]tonapi.Event{transferEvent("e", goodTransfer())}, exp); ok {
			t.Error("empty amount must not match anything")
		}
	})
}

func ptrTransfer(tr tonapi.JettonTransfer) *tonapi.JettonTransfer { return &tr }

func TestConfirmations(t *testing.T) {
	tests := []struct {
		head, tx int64
		want     int
	}{
		{1000, 995, 6},
		{1000, 1000, 1},
		{1000, 1001, 0},
		{5, 100, 0},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := Confirmations(tt.head, tt.tx); got != tt.want {
			t.Errorf("Confirmations(%d, %d) = %d, want %d", tt.head, tt.tx, got, tt.want)
		}
	}
}

func TestFallbackConfirmations(t *testing.T) {
	now := time.Unix(1700000600, 0)

	t.Run("old event assumed final", func(t *testing.T) {
		eventTime := time.Unix(1700000000, 0) // 600s назад
		if got := FallbackConfirmations(eventTime, now, 5, 10); got != 10 {
			t.Errorf("got %d, want 10", got)
		}
	})

	t.Run("fresh event not confirmed", func(t *testing.T) {
		eventTime := now.Add(-10 * time.Second)
		if got := FallbackConfirmations(eventTime, now, 5, 10); got != 0 {
			t.Errorf("got %d, want 0", got)
		}
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		eventTime := now.Add(-50 * time.Second) // ровно required*block
		if got := FallbackConfirmations(eventTime, now, 5, 10); got != 10 {
			t.Errorf("got %d, want 10", got)
		}
	})
}
