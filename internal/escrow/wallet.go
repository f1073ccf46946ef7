package escrow

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/xssnick/tonutils-go/ton/wallet"
)

// Wallet — одноразовый эскроу-кошелёк под конкретный платёж.
// Приватный ключ существует в открытом виде только в памяти.
type Wallet struct {
	Address            string // user-friendly, non-bounceable
	AddressRaw         string // workchain:hex
	SecretKeyEncrypted string
}

// Generator создаёт эскроу-кошельки V5R1 и шифрует их ключи.
type Generator struct {
	cipher  *Cipher
	testnet bool
}

func NewGenerator(cipher *Cipher, network string) *Generator {
	return &Generator{cipher: cipher, testnet: network == "testnet"}
}

func (g *Generator) walletConfig() wallet.ConfigV5R1Final {
	networkID := int32(wallet.MainnetGlobalID)
	if g.testnet {
		networkID = wallet.TestnetGlobalID
	}
	return wallet.ConfigV5R1Final{NetworkGlobalID: networkID}
}

// Generate создаёт свежую ed25519-пару и считает адрес кошелька V5R1.
// Деплоить контракт не нужно: входящие жетоны принимает и
// неинициализированный адрес, деплой происходит при первой исходящей.
func (g *Generator) Generate() (*Wallet, error) {
	if g.cipher == nil {
		return nil, fmt.Errorf("escrow: encryption is not configured")
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("escrow: keygen failed: %w", err)
	}

	addr, err := wallet.AddressFromPubKey(pub, g.walletConfig(), wallet.DefaultSubwallet)
	if err != nil {
		return nil, fmt.Errorf("escrow: address derivation failed: %w", err)
	}

	encrypted, err := g.cipher.Encrypt([]byte(base64.StdEncoding.EncodeToString(priv)))
	if err != nil {
		return nil, fmt.Errorf("escrow: key encryption failed: %w", err)
	}

	friendly := addr.Bounce(false).Testnet(g.testnet).String()
	return &Wallet{
		Address:            friendly,
		AddressRaw:         addr.StringRaw(),
		SecretKeyEncrypted: encrypted,
	}, nil
}

// DecryptKey восстанавливает приватный ключ из зашифрованного блоба.
// Принимает base64 и hex, ключ может быть 64-байтным либо 32-байтным seed.
func (g *Generator) DecryptKey(blob string) (ed25519.PrivateKey, error) {
	plain, err := g.cipher.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(string(plain))
}

// ParsePrivateKey декодирует ed25519-ключ из hex или base64.
// Кодировка определяется по длине результата: hex-строка из 64 символов
// декодируется и как base64, поэтому перебираем оба варианта.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	var candidates [][]byte
	if b, err := hex.DecodeString(s); err == nil {
		candidates = append(candidates, b)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("escrow: secret key is neither hex nor base64")
	}

	for _, raw := range candidates {
		switch len(raw) {
		case ed25519.PrivateKeySize:
			return ed25519.PrivateKey(raw), nil
		case ed25519.SeedSize:
			return ed25519.NewKeyFromSeed(raw), nil
		}
	}
	return nil, fmt.Errorf("escrow: secret key must be %d or %d bytes",
		ed25519.SeedSize, ed25519.PrivateKeySize)
}
