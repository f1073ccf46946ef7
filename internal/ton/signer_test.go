package ton

import (
	"math/big"
	"strings"
	"testing"

	"github.com/xssnick/tonutils-go/address"
)

func TestBuildJettonTransferBody(t *testing.T) {
	dest, err := address.ParseRawAddr("0:00000000000000000000000000000000000000000000000000000000000000aa")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := address.ParseRawAddr("0:00000000000000000000000000000000000000000000000000000000000000bb")
	if err != nil {
		t.Fatal(err)
	}

	amount := big.NewInt(12340000)
	body := BuildJettonTransferBody(amount, dest, resp, "payout_pay_1_abcd1234")

	s := body.BeginParse()

	op, err := s.LoadUInt(32)
	if err != nil || op != jettonTransferOp {
		t.Fatalf("op = %#x (%v), want %#x", op, err, uint64(jettonTransferOp))
	}

	queryID, err := s.LoadUInt(64)
	if err != nil || queryID != 0 {
		t.Errorf("query_id = %d (%v), want 0", queryID, err)
	}

	gotAmount, err := s.LoadBigCoins()
	if err != nil || gotAmount.Cmp(amount) != 0 {
		t.Errorf("amount = %s (%v), want %s", gotAmount, err, amount)
	}

	gotDest, err := s.LoadAddr()
	if err != nil || gotDest.StringRaw() != dest.StringRaw() {
		t.Errorf("destination = %s (%v), want %s", gotDest, err, dest)
	}

	gotResp, err := s.LoadAddr()
	if err != nil || gotResp.StringRaw() != resp.StringRaw() {
		t.Errorf("response destination = %s (%v), want %s", gotResp, err, resp)
	}

	customPayload, err := s.LoadBoolBit()
	if err != nil || customPayload {
		t.Errorf("custom_payload bit = %v (%v), want false", customPayload, err)
	}

	forward, err := s.LoadBigCoins()
	if err != nil || forward.Int64() != forwardTonNano {
		t.Errorf("forward amount = %s (%v), want %d", forward, err, forwardTonNano)
	}

	inRef, err := s.LoadBoolBit()
	if err != nil || !inRef {
		t.Fatalf("forward_payload ref bit = %v (%v), want true", inRef, err)
	}

	ref, err := s.LoadRef()
	if err != nil {
		t.Fatalf("load forward payload ref: %v", err)
	}
	refOp, err := ref.LoadUInt(32)
	if err != nil || refOp != 0 {
		t.Errorf("comment op = %d (%v), want 0", refOp, err)
	}
	comment, err := ref.LoadStringSnake()
	if err != nil || comment != "payout_pay_1_abcd1234" {
		t.Errorf("comment = %q (%v), want %q", comment, err, "payout_pay_1_abcd1234")
	}
}

func TestInsufficientGasError(t *testing.T) {
	err := &InsufficientGasError{Required: big.NewInt(50000000), Available: big.NewInt(100)}
	msg := err.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}
	for _, want := range []string{"50000000", "100"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should mention %q", msg, want)
		}
	}
}
