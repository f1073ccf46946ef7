package escrow

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrDecryption возвращается при любом сбое расшифровки: неверный ключ,
// повреждённый блоб, неправильный формат. Детали не раскрываются.
var ErrDecryption = errors.New("escrow: decryption failed")

const gcmIVSize = 12

// Cipher шифрует приватные ключи эскроу-кошельков перед записью в БД.
// Формат блоба: ivB64:tagB64:cipherB64 (AES-256-GCM, стандартный base64).
type Cipher struct {
	key []byte
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("escrow: encryption key must be 32 bytes, got %d", len(key))
	}
	return &Cipher{key: key}, nil
}

func (c *Cipher) Encrypt(plain []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcmIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, plain, nil)
	// Seal возвращает ciphertext||tag, в блобе они хранятся раздельно
	tagAt := len(sealed) - gcm.Overhead()
	ct, tag := sealed[:tagAt], sealed[tagAt:]

	return base64.StdEncoding.EncodeToString(iv) + ":" +
		base64.StdEncoding.EncodeToString(tag) + ":" +
		base64.StdEncoding.EncodeToString(ct), nil
}

func (c *Cipher) Decrypt(blob string) ([]byte, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return nil, ErrDecryption
	}
	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != gcmIVSize {
		return nil, ErrDecryption
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrDecryption
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, ErrDecryption
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryption
	}
	if len(tag) != gcm.Overhead() {
		return nil, ErrDecryption
	}

	plain, err := gcm.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plain, nil
}
