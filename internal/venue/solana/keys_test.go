package solana

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mr-tron/base58"

	"tradexec/internal/domain"
)

// Deterministic test key built from a fixed seed.
func testKeyBytes() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return []byte(ed25519.NewKeyFromSeed(seed))
}

// The same wallet key in its three wild encodings must parse to the same
// signing identity.
func TestParsePrivateKeyEncodings(t *testing.T) {
	full := testKeyBytes()

	jsonArr := make([]int, len(full))
	for i, b := range full {
		jsonArr[i] = int(b)
	}
	jsonEnc, err := json.Marshal(jsonArr)
	if err != nil {
		t.Fatal(err)
	}

	encodings := map[string]string{
		"hex":          hex.EncodeToString(full),
		"hex-prefixed": "0x" + hex.EncodeToString(full),
		"base58":       base58.Encode(full),
		"json-array":   string(jsonEnc),
		// A 32-byte seed expands to the same key.
		"hex-seed": hex.EncodeToString(full[:ed25519.SeedSize]),
	}

	var wantPubkey string
	for name, enc := range encodings {
		key, err := ParsePrivateKey(enc)
		if err != nil {
			t.Errorf("ParsePrivateKey(%s): %v", name, err)
			continue
		}
		pub := key.PublicKey().String()
		if wantPubkey == "" {
			wantPubkey = pub
		} else if pub != wantPubkey {
			t.Errorf("%s encoding derives pubkey %s, others derive %s", name, pub, wantPubkey)
		}
	}
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not-a-key!!",
		"[1,2,3]",            // wrong length
		"0xdeadbeef",         // wrong length
		`[256,0,0]`,          // byte out of range
		`{"key":"deadbeef"}`, // wrong JSON shape
	}

	for _, c := range cases {
		_, err := ParsePrivateKey(c)
		if err == nil {
			t.Errorf("ParsePrivateKey(%q): expected error", c)
			continue
		}
		if domain.KindOf(err) != domain.KindInput {
			t.Errorf("ParsePrivateKey(%q): kind %v, want input", c, domain.KindOf(err))
		}
		if c != "" && c != "   " && !strings.Contains(err.Error(), "invalid key format") {
			t.Errorf("ParsePrivateKey(%q): message %q should name all attempted formats", c, err)
		}
	}
}
