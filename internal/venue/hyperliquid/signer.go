package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"tradexec/internal/domain"
)

// Signature is the venue wire form of a recoverable secp256k1 signature.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer produces L1-action signatures: the order action is content-addressed
// by hashing its canonical serialization together with the nonce, then the
// hash is signed with the account key.
type Signer struct {
	key *ecdsa.PrivateKey

	mu        sync.Mutex
	lastNonce int64
}

// NewSigner parses the hex-encoded account private key. Malformed key
// material fails here, before any network call.
func NewSigner(privateKeyHex string) (*Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if trimmed == "" {
		return nil, domain.NewInputError("hyperliquid private key missing", nil)
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, domain.NewInputError("hyperliquid private key malformed", err)
	}
	return &Signer{key: key}, nil
}

// Address returns the signing account's address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Nonce returns a strictly increasing wall-clock-millisecond nonce. Two calls
// in the same millisecond still yield distinct values; the venue rejects
// replayed nonces per account.
func (s *Signer) Nonce() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := time.Now().UnixMilli()
	if nonce <= s.lastNonce {
		nonce = s.lastNonce + 1
	}
	s.lastNonce = nonce
	return nonce
}

// SignAction hashes the canonical JSON serialization of the action together
// with the nonce and optional vault address, and signs the digest.
func (s *Signer) SignAction(action any, nonce int64, vaultAddress string) (Signature, error) {
	data, err := json.Marshal(action)
	if err != nil {
		return Signature{}, domain.NewInputError("marshal action", err)
	}

	buf := make([]byte, 0, len(data)+1+8+common.AddressLength)
	buf = append(buf, data...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(nonce))
	if vaultAddress == "" {
		buf = append(buf, 0x00)
	} else {
		buf = append(buf, 0x01)
		buf = append(buf, common.HexToAddress(vaultAddress).Bytes()...)
	}

	hash := crypto.Keccak256(buf)
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return Signature{}, fmt.Errorf("sign action hash: %w", err)
	}

	return Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: int(sig[64]) + 27,
	}, nil
}
