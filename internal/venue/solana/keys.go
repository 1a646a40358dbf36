package solana

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"tradexec/internal/domain"
)

// keyDecoder is one attempt in the ordered decoding chain.
type keyDecoder struct {
	name   string
	decode func(string) (solanago.PrivateKey, error)
}

// Wallet keys arrive in three encodings in the wild: raw hex, base58 and the
// JSON byte array produced by solana-keygen. Decoders run in order and the
// first success wins.
var keyDecoders = []keyDecoder{
	{"hex", decodeHexKey},
	{"base58", decodeBase58Key},
	{"json-array", decodeJSONArrayKey},
}

// ParsePrivateKey decodes a private key supplied in any supported encoding.
// It fails with "invalid key format" only after every decoder has failed.
func ParsePrivateKey(raw string) (solanago.PrivateKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, domain.NewInputError("solana private key missing", nil)
	}

	for _, d := range keyDecoders {
		key, err := d.decode(trimmed)
		if err == nil {
			return key, nil
		}
	}
	return nil, domain.NewInputError("invalid key format: not hex, base58 or JSON byte array", nil)
}

// keyFromBytes accepts either a full 64-byte ed25519 key or a 32-byte seed.
func keyFromBytes(b []byte) (solanago.PrivateKey, error) {
	switch len(b) {
	case ed25519.PrivateKeySize:
		return solanago.PrivateKey(b), nil
	case ed25519.SeedSize:
		return solanago.PrivateKey(ed25519.NewKeyFromSeed(b)), nil
	default:
		return nil, fmt.Errorf("unexpected key length %d", len(b))
	}
}

func decodeHexKey(s string) (solanago.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	return keyFromBytes(b)
}

func decodeBase58Key(s string) (solanago.PrivateKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	return keyFromBytes(b)
}

func decodeJSONArrayKey(s string) (solanago.PrivateKey, error) {
	var ints []int
	if err := json.Unmarshal([]byte(s), &ints); err != nil {
		return nil, err
	}
	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte out of range at index %d", i)
		}
		b[i] = byte(v)
	}
	return keyFromBytes(b)
}
