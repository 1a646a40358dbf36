package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// RecvWindow is the freshness tolerance the venue uses to reject stale
// requests, in milliseconds.
const RecvWindow = "5000"

// Signer handles Bybit V5 API authentication.
// It stores keys as []byte to allow memory wiping after the execution.
type Signer struct {
	apiKey    []byte
	apiSecret []byte

	mu     sync.Mutex
	lastTS int64
}

// NewSigner creates a new signer. Malformed key material fails here, before
// any network call is made.
func NewSigner(apiKey, apiSecret string) (*Signer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("bybit credentials missing")
	}
	return &Signer{
		apiKey:    []byte(apiKey),
		apiSecret: []byte(apiSecret),
	}, nil
}

// Headers creates the signed request headers. The timestamp is generated
// here, immediately before the call; headers must not be reused across
// retries or the venue rejects the request as stale.
func (s *Signer) Headers(payload string) map[string]string {
	timestamp := fmt.Sprintf("%d", s.timestamp())
	signature := s.sign(timestamp, payload)

	return map[string]string{
		"X-BAPI-API-KEY":     string(s.apiKey),
		"X-BAPI-TIMESTAMP":   timestamp,
		"X-BAPI-SIGN":        signature,
		"X-BAPI-RECV-WINDOW": RecvWindow,
		"Content-Type":       "application/json",
	}
}

// timestamp returns a strictly increasing wall-clock-millisecond timestamp.
// Two signed calls in the same millisecond still get distinct values, so
// consecutive requests are always sequenced.
func (s *Signer) timestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

// sign computes hex(HMAC-SHA256(timestamp + apiKey + recvWindow + payload)).
// payload is the JSON body for POST or the query string for GET.
func (s *Signer) sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, s.apiSecret)
	mac.Write([]byte(timestamp))
	mac.Write(s.apiKey)
	mac.Write([]byte(RecvWindow))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipeSlice(s.apiKey)
	wipeSlice(s.apiSecret)
}

func wipeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
