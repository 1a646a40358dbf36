package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tradexec/internal/domain"
	"tradexec/internal/infra"
	"tradexec/internal/ledger"
)

// JupiterClient talks to the aggregator's quote and swap-build endpoints.
// The aggregator constructs the transaction body; this process only ever
// signs it. That is the trust boundary.
type JupiterClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *infra.RateLimiter
	tracer     ledger.Tracer
}

// NewJupiterClient creates a new aggregator client.
func NewJupiterClient(baseURL string, tracer ledger.Tracer) *JupiterClient {
	if tracer == nil {
		tracer = ledger.NopTracer{}
	}
	return &JupiterClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    infra.VenueLimiter(string(domain.VenueSolana)),
		tracer:     tracer,
	}
}

// QuoteRequest asks for a swap route. Amount is in the input mint's raw units.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// QuoteResponse is the aggregator's route quote. Raw preserves the exact
// response for the swap-build call.
type QuoteResponse struct {
	InputMint      string          `json:"inputMint"`
	InAmount       string          `json:"inAmount"`
	OutputMint     string          `json:"outputMint"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct"`
	RoutePlan      json.RawMessage `json:"routePlan"`
	ErrorMsg       string          `json:"error"`

	Raw json.RawMessage `json:"-"`
}

// Quote requests a swap quote. A venue-reported error inside a 200 response
// is a rejection, not a transport failure.
func (c *JupiterClient) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	c.limiter.Wait()

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	endpoint := c.baseURL + "/quote?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewTransportError("build quote request", err)
	}
	httpReq.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewTransportError("quote", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError("read quote response", err)
	}
	c.tracer.Trace(domain.VenueSolana, "quote response", raw)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewTransportError(fmt.Sprintf("quote: status %d: %s", resp.StatusCode, raw), nil)
	}

	var quote QuoteResponse
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, domain.NewTransportError("decode quote", err)
	}
	if quote.ErrorMsg != "" {
		return nil, domain.NewRejectionError("quote_error", quote.ErrorMsg)
	}
	if quote.OutAmount == "" {
		return nil, domain.NewRejectionError("quote_error", "empty route")
	}
	quote.Raw = raw
	return &quote, nil
}

type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	ErrorMsg        string `json:"error"`
}

// SwapTransaction asks the aggregator to build the unsigned swap transaction
// for a quote. Returns the raw transaction bytes decoded from base64.
func (c *JupiterClient) SwapTransaction(ctx context.Context, quote *QuoteResponse, userPublicKey string) ([]byte, error) {
	c.limiter.Wait()

	body, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, domain.NewInputError("marshal swap request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewTransportError("build swap request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", infra.DefaultUserAgent)

	c.tracer.Trace(domain.VenueSolana, "swap request", body)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewTransportError("swap", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError("read swap response", err)
	}
	c.tracer.Trace(domain.VenueSolana, "swap response", raw)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewTransportError(fmt.Sprintf("swap: status %d: %s", resp.StatusCode, raw), nil)
	}

	var out swapResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.NewTransportError("decode swap response", err)
	}
	if out.ErrorMsg != "" {
		return nil, domain.NewRejectionError("swap_error", out.ErrorMsg)
	}
	if out.SwapTransaction == "" {
		return nil, domain.NewRejectionError("swap_error", "no transaction returned")
	}

	txBytes, err := base64.StdEncoding.DecodeString(out.SwapTransaction)
	if err != nil {
		return nil, domain.NewTransportError("decode swap transaction", err)
	}
	return txBytes, nil
}
