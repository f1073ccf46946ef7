package ton

import "testing"

func TestToJettonAmount(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		decimals int
		want     string
		wantErr  bool
	}{
		{"integer", "12", 6, "12000000", false},
		{"two decimals", "12.34", 6, "12340000", false},
		{"full precision", "0.000001", 6, "1", false},
		{"excess precision truncated", "1.1234567", 6, "1123456", false},
		{"zero", "0", 6, "0", false},
		{"zero with fraction", "0.00", 6, "0", false},
		{"leading zeros stripped", "007.5", 6, "7500000", false},
		{"bare fraction", ".5", 6, "500000", false},
		{"whitespace tolerated", " 2.5 ", 6, "2500000", false},
		{"nine decimals", "1.5", 9, "1500000000", false},
		{"zero decimals", "42", 0, "42", false},

		{"empty", "", 6, "", true},
		{"negative", "-1", 6, "", true},
		{"two dots", "1.2.3", 6, "", true},
		{"letters", "12a", 6, "", true},
		{"letters in fraction", "1.2b", 6, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToJettonAmount(tt.display, tt.decimals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ToJettonAmount(%q, %d) = %q, want %q", tt.display, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseSeqno(t *testing.T) {
	tests := []struct {
		token  string
		want   uint64
		wantOK bool
	}{
		{"seqno:0", 0, true},
		{"seqno:42", 42, true},
		{"seqno:18446744073709551615", 18446744073709551615, true},
		{" seqno:7 ", 7, true},
		{"seqno:", 0, false},
		{"seqno:abc", 0, false},
		{"seqno:-1", 0, false},
		{"", 0, false},
		{"a1b2c3realhash", 0, false},
		{"xseqno:5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParseSeqno(tt.token)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseSeqno(%q) = (%d, %v), want (%d, %v)", tt.token, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
