package escrow

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/xssnick/tonutils-go/address"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestNewCipherRejectsBadKey(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewCipher(make([]byte, n)); err == nil {
			t.Errorf("NewCipher accepted %d-byte key", n)
		}
	}
	if _, err := NewCipher(testKey(1)); err != nil {
		t.Errorf("NewCipher rejected 32-byte key: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(7))
	if err != nil {
		t.Fatal(err)
	}

	plain := []byte("sensitive escrow secret key material")
	blob, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if parts := strings.Split(blob, ":"); len(parts) != 3 {
		t.Fatalf("blob has %d segments, want 3 (iv:tag:cipher)", len(parts))
	}

	got, err := c.Decrypt(blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("round trip mismatch: got %q", got)
	}

	// Второй процесс с тем же ключом должен расшифровать тот же блоб
	c2, _ := NewCipher(testKey(7))
	got2, err := c2.Decrypt(blob)
	if err != nil || !bytes.Equal(got2, plain) {
		t.Errorf("decrypt with fresh cipher failed: %v", err)
	}
}

func TestEncryptProducesUniqueIVs(t *testing.T) {
	c, _ := NewCipher(testKey(7))
	a, _ := c.Encrypt([]byte("same input"))
	b, _ := c.Encrypt([]byte("same input"))
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptFailures(t *testing.T) {
	c, _ := NewCipher(testKey(7))
	blob, _ := c.Encrypt([]byte("payload"))

	t.Run("wrong key", func(t *testing.T) {
		other, _ := NewCipher(testKey(8))
		if _, err := other.Decrypt(blob); !errors.Is(err, ErrDecryption) {
			t.Errorf("err = %v, want ErrDecryption", err)
		}
	})

	t.Run("truncated blob", func(t *testing.T) {
		parts := strings.Split(blob, ":")
		for _, bad := range []string{
			parts[0] + ":" + parts[1],
			parts[0],
			"",
			"a:b:c:d",
		} {
			if _, err := c.Decrypt(bad); !errors.Is(err, ErrDecryption) {
				t.Errorf("Decrypt(%q) err = %v, want ErrDecryption", bad, err)
			}
		}
	})

	t.Run("corrupted ciphertext", func(t *testing.T) {
		parts := strings.Split(blob, ":")
		corrupted := parts[0] + ":" + parts[1] + ":QUFBQQ=="
		if _, err := c.Decrypt(corrupted); !errors.Is(err, ErrDecryption) {
			t.Errorf("err = %v, want ErrDecryption", err)
		}
	})

	t.Run("not base64", func(t *testing.T) {
		if _, err := c.Decrypt("!!:!!:!!"); !errors.Is(err, ErrDecryption) {
			t.Errorf("err = %v, want ErrDecryption", err)
		}
	})
}

func TestGenerateWallet(t *testing.T) {
	c, _ := NewCipher(testKey(3))
	g := NewGenerator(c, "mainnet")

	w, err := g.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if w.Address == "" || w.AddressRaw == "" || w.SecretKeyEncrypted == "" {
		t.Fatalf("wallet has empty fields: %+v", w)
	}

	// raw и friendly формы должны указывать на один адрес
	parsed, err := address.ParseAddr(w.Address)
	if err != nil {
		t.Fatalf("friendly address does not parse: %v", err)
	}
	if parsed.StringRaw() != w.AddressRaw {
		t.Errorf("raw = %q, friendly resolves to %q", w.AddressRaw, parsed.StringRaw())
	}
	if parsed.IsBounceable() {
		t.Error("escrow address should be non-bounceable")
	}

	// расшифрованный ключ валиден и соответствует 64-байтному ed25519
	priv, err := g.DecryptKey(w.SecretKeyEncrypted)
	if err != nil {
		t.Fatalf("decrypt key: %v", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		t.Errorf("key length = %d, want %d", len(priv), ed25519.PrivateKeySize)
	}

	// два кошелька не совпадают
	w2, _ := g.Generate()
	if w2.AddressRaw == w.AddressRaw {
		t.Error("two generated wallets share an address")
	}
}

func TestParsePrivateKey(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)

	t.Run("seed expands to full key", func(t *testing.T) {
		got, err := ParsePrivateKey(hex.EncodeToString(priv.Seed()))
		if err != nil {
			t.Fatalf("parse seed: %v", err)
		}
		if !bytes.Equal(got, priv) {
			t.Error("seed did not expand to the original key")
		}
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		if _, err := ParsePrivateKey(hex.EncodeToString(make([]byte, 16))); err == nil {
			t.Error("expected error for 16-byte key")
		}
	})
}
