package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tradexec/internal/domain"
	"tradexec/internal/infra"
	"tradexec/internal/ledger"
)

// Venue return codes.
const (
	retCodeOK                  = 0
	retCodeLeverageNotModified = 110043 // leverage already at requested value
)

// Client handles Bybit V5 REST communication for order execution.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	limiter    *infra.RateLimiter
	tracer     ledger.Tracer
}

// NewClient creates a new Bybit REST client.
func NewClient(baseURL string, signer *Signer, tracer ledger.Tracer) *Client {
	if tracer == nil {
		tracer = ledger.NopTracer{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		signer:     signer,
		limiter:    infra.VenueLimiter(string(domain.VenueBybit)),
		tracer:     tracer,
	}
}

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// postSigned sends a signed POST. The body must already be serialized so the
// signature covers the exact bytes on the wire.
func (c *Client) postSigned(ctx context.Context, path string, body []byte) (*apiResponse, error) {
	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewTransportError("build request", err)
	}
	for k, v := range c.signer.Headers(string(body)) {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	c.tracer.Trace(domain.VenueBybit, "request "+path, body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError("read response", err)
	}
	c.tracer.Trace(domain.VenueBybit, "response "+path, raw)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewTransportError(fmt.Sprintf("%s: status %d", path, resp.StatusCode), nil)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.NewTransportError("decode response", err)
	}
	return &out, nil
}

// getPublic sends an unsigned GET for public market data.
func (c *Client) getPublic(ctx context.Context, pathAndQuery string) (*apiResponse, error) {
	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, domain.NewTransportError("build request", err)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(pathAndQuery, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError("read response", err)
	}
	c.tracer.Trace(domain.VenueBybit, "response "+pathAndQuery, raw)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewTransportError(fmt.Sprintf("%s: status %d", pathAndQuery, resp.StatusCode), nil)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.NewTransportError("decode response", err)
	}
	return &out, nil
}

type leverageRequest struct {
	Category     string `json:"category"`
	Symbol       string `json:"symbol"`
	BuyLeverage  string `json:"buyLeverage"`
	SellLeverage string `json:"sellLeverage"`
}

// SetLeverage issues a signed leverage-set request. The venue's "leverage not
// modified" code is an idempotent no-op and treated as success.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	body, err := json.Marshal(leverageRequest{
		Category:     "linear",
		Symbol:       symbol,
		BuyLeverage:  lev,
		SellLeverage: lev,
	})
	if err != nil {
		return domain.NewInputError("marshal leverage request", err)
	}

	resp, err := c.postSigned(ctx, "/v5/position/set-leverage", body)
	if err != nil {
		return err
	}

	switch resp.RetCode {
	case retCodeOK, retCodeLeverageNotModified:
		return nil
	default:
		return domain.NewRejectionError(strconv.Itoa(resp.RetCode), resp.RetMsg)
	}
}

// OrderRequest is the market-order payload for /v5/order/create.
type OrderRequest struct {
	Category  string `json:"category"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	Qty       string `json:"qty"`
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// CreateOrder submits a pre-serialized order body. Success criterion is the
// venue's zero return code; anything else is a venue rejection carrying the
// venue's own code and message.
func (c *Client) CreateOrder(ctx context.Context, body []byte) (orderID, orderLinkID string, raw json.RawMessage, err error) {
	resp, err := c.postSigned(ctx, "/v5/order/create", body)
	if err != nil {
		return "", "", nil, err
	}
	if resp.RetCode != retCodeOK {
		return "", "", nil, domain.NewRejectionError(strconv.Itoa(resp.RetCode), resp.RetMsg)
	}

	var res orderResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return "", "", nil, domain.NewTransportError("decode order result", err)
	}
	return res.OrderID, res.OrderLinkID, resp.Result, nil
}

type tickerResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// LastPrice fetches the current last traded price for a symbol. Used as the
// executed-price estimate when the live ticker stream is not running.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := c.getPublic(ctx, "/v5/market/tickers?category=linear&symbol="+symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.RetCode != retCodeOK {
		return decimal.Zero, domain.NewRejectionError(strconv.Itoa(resp.RetCode), resp.RetMsg)
	}

	var res tickerResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return decimal.Zero, domain.NewTransportError("decode ticker result", err)
	}
	if len(res.List) == 0 {
		return decimal.Zero, domain.NewResolutionError("ticker not found: " + symbol)
	}
	return decimal.NewFromString(res.List[0].LastPrice)
}
