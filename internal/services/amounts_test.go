package services

import "testing"

func TestSplitPayoutAmount(t *testing.T) {
	tests := []struct {
		name           string
		total          string
		percent        float64
		wantPayout     string
		wantCommission string
		wantErr        bool
	}{
		{"standard 20 percent", "100.00", 0.2, "80.00", "20.00", false},
		{"rounding half up", "10.01", 0.2, "8.01", "2.00", false},
		{"zero commission", "55.50", 0, "55.50", "0.00", false},
		{"small amount", "0.10", 0.2, "0.08", "0.02", false},
		{"repeating fraction", "33.33", 0.1, "30.00", "3.33", false},

		{"commission eats everything", "0.01", 0.99, "", "", true},
		{"zero amount", "0", 0.2, "", "", true},
		{"negative amount", "-5", 0.2, "", "", true},
		{"garbage amount", "12abc", 0.2, "", "", true},
		{"percent above one", "100", 1.5, "", "", true},
		{"negative percent", "100", -0.1, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payout, commission, err := SplitPayoutAmount(tt.total, tt.percent)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if payout != tt.wantPayout || commission != tt.wantCommission {
				t.Errorf("SplitPayoutAmount(%q, %v) = (%q, %q), want (%q, %q)",
					tt.total, tt.percent, payout, commission, tt.wantPayout, tt.wantCommission)
			}
		})
	}
}

func TestSubtractMoney(t *testing.T) {
	got, err := SubtractMoney("100.00", "12.34")
	if err != nil || got != "87.66" {
		t.Errorf("got (%q, %v), want (87.66, nil)", got, err)
	}

	got, err = SubtractMoney("5.00", "7.50")
	if err != nil || got != "-2.50" {
		t.Errorf("got (%q, %v), want (-2.50, nil)", got, err)
	}

	if _, err := SubtractMoney("x", "1"); err == nil {
		t.Error("expected error for malformed amount")
	}
}

func TestMoneyGTE(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"10.00", "10.00", true},
		{"10.01", "10.00", true},
		{"9.99", "10.00", false},
		{"0", "0.00", true},
	}
	for _, tt := range tests {
		got, err := MoneyGTE(tt.a, tt.b)
		if err != nil || got != tt.want {
			t.Errorf("MoneyGTE(%q, %q) = (%v, %v), want %v", tt.a, tt.b, got, err, tt.want)
		}
	}
}
