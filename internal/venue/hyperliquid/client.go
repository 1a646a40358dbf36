package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tradexec/internal/domain"
	"tradexec/internal/infra"
	"tradexec/internal/ledger"
)

// Client talks to the venue's info (read) and exchange (write) endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *infra.RateLimiter
	tracer     ledger.Tracer
}

// NewClient creates a new Hyperliquid API client.
func NewClient(baseURL string, tracer ledger.Tracer) *Client {
	if tracer == nil {
		tracer = ledger.NopTracer{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    infra.VenueLimiter(string(domain.VenueHyperliquid)),
		tracer:     tracer,
	}
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	c.limiter.Wait()

	data, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewInputError("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewTransportError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	c.tracer.Trace(domain.VenueHyperliquid, "request "+path, data)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError("read response", err)
	}
	c.tracer.Trace(domain.VenueHyperliquid, "response "+path, raw)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewTransportError(fmt.Sprintf("%s: status %d: %s", path, resp.StatusCode, raw), nil)
	}
	return raw, nil
}

// Asset is one entry of the venue's tradable universe.
type Asset struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}

type metaResponse struct {
	Universe []Asset `json:"universe"`
}

// Meta fetches the tradable-asset universe.
func (c *Client) Meta(ctx context.Context) ([]Asset, error) {
	raw, err := c.post(ctx, "/info", map[string]string{"type": "meta"})
	if err != nil {
		return nil, err
	}
	var meta metaResponse
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, domain.NewTransportError("decode meta", err)
	}
	return meta.Universe, nil
}

// AllMids fetches the current mid price per instrument name.
func (c *Client) AllMids(ctx context.Context) (map[string]string, error) {
	raw, err := c.post(ctx, "/info", map[string]string{"type": "allMids"})
	if err != nil {
		return nil, err
	}
	var mids map[string]string
	if err := json.Unmarshal(raw, &mids); err != nil {
		return nil, domain.NewTransportError("decode allMids", err)
	}
	return mids, nil
}

// ExchangeRequest is the signed write payload:
// {action, nonce, signature, vaultAddress}.
type ExchangeRequest struct {
	Action       any       `json:"action"`
	Nonce        int64     `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress string    `json:"vaultAddress,omitempty"`
}

// ExchangeResponse is the venue acknowledgement. Statuses is the opaque
// per-order fill status array, surfaced verbatim to callers.
type ExchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses json.RawMessage `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// Exchange submits a signed action. Success criterion is status "ok".
func (c *Client) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, json.RawMessage, error) {
	raw, err := c.post(ctx, "/exchange", req)
	if err != nil {
		return nil, nil, err
	}

	var out ExchangeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, domain.NewTransportError("decode exchange response", err)
	}
	if out.Status != "ok" {
		return &out, raw, domain.NewRejectionError(out.Status, string(raw))
	}
	return &out, raw, nil
}
