package ton

import (
	"fmt"
	"regexp"
	"strings"
)

var seqnoTokenRe = regexp.MustCompile(`^seqno:(\d+)$`)

// ParseSeqno извлекает номер из корреляционного токена вида "seqno:N".
// Такие токены записываются в *_tx_hash до появления настоящего хеша.
func ParseSeqno(token string) (uint64, bool) {
	m := seqnoTokenRe.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, false
	}
	var n uint64
	if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// ToJettonAmount переводит десятичную сумму ("12.34") в строку базовых
// единиц жетона. Работает на строках, без float: лишние знаки после
// запятой отбрасываются, недостающие добиваются нулями.
func ToJettonAmount(display string, decimals int) (string, error) {
	s := strings.TrimSpace(display)
	if s == "" {
		return "", fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return "", fmt.Errorf("negative amount %q", display)
	}
	if decimals < 0 {
		return "", fmt.Errorf("negative decimals %d", decimals)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return "", fmt.Errorf("malformed amount %q", display)
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return "", fmt.Errorf("malformed amount %q", display)
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		combined = "0"
	}
	return combined, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
