package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"tradexec/internal/domain"
	"tradexec/internal/ledger"
)

// Aggressive limit offsets emulating a market order: the venue has no native
// market-order type, so an immediate-or-cancel limit is priced through the
// mid by 5%.
var (
	buyAggression  = decimal.NewFromFloat(1.05)
	sellAggression = decimal.NewFromFloat(0.95)
)

// Quote-currency suffixes stripped during symbol resolution: "BTC",
// "BTC/USDT" and "BTCUSDT" all resolve to instrument "BTC".
var quoteSuffixes = []string{"USDT", "USDC", "USD", "PERP"}

// Adapter executes one trade intent against Hyperliquid perpetuals.
type Adapter struct {
	client *Client
	signer *Signer
	vault  string

	// Execution-scoped order context captured during BuildOrder.
	price decimal.Decimal
	size  decimal.Decimal
}

// NewAdapter builds an execution-scoped adapter. The private key is parsed
// up front so malformed key material aborts before any network call.
func NewAdapter(apiURL string, creds domain.VenueCredentials, tracer ledger.Tracer) (*Adapter, error) {
	signer, err := NewSigner(creds.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client: NewClient(apiURL, tracer),
		signer: signer,
		vault:  creds.WalletAddress,
	}, nil
}

func (a *Adapter) Name() domain.Venue { return domain.VenueHyperliquid }

// ResolveMarket maps the human symbol onto the venue's integer asset index by
// case-insensitive match against the instrument name, with or without a
// quote-currency suffix.
func (a *Adapter) ResolveMarket(ctx context.Context, intent domain.TradeIntent) (domain.MarketRef, error) {
	universe, err := a.client.Meta(ctx)
	if err != nil {
		return domain.MarketRef{}, err
	}

	candidates := symbolCandidates(intent.Symbol)
	for i, asset := range universe {
		name := strings.ToUpper(asset.Name)
		for _, cand := range candidates {
			if name == cand {
				return domain.MarketRef{
					Venue:      domain.VenueHyperliquid,
					Symbol:     asset.Name,
					AssetIndex: i,
					SzDecimals: asset.SzDecimals,
				}, nil
			}
		}
	}
	return domain.MarketRef{}, domain.NewResolutionError("asset not found: " + intent.Symbol)
}

// symbolCandidates normalizes a symbol into the instrument names it may
// refer to: the symbol itself and the symbol with a quote suffix stripped.
func symbolCandidates(symbol string) []string {
	norm := strings.ToUpper(symbol)
	for _, sep := range []string{"/", "-", "_", " "} {
		norm = strings.ReplaceAll(norm, sep, "")
	}

	candidates := []string{norm}
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(norm, suffix) && len(norm) > len(suffix) {
			candidates = append(candidates, strings.TrimSuffix(norm, suffix))
		}
	}
	return candidates
}

// orderSpec is the venue's compact order encoding.
type orderSpec struct {
	Asset      int       `json:"a"`
	IsBuy      bool      `json:"b"`
	Price      string    `json:"p"`
	Size       string    `json:"s"`
	ReduceOnly bool      `json:"r"`
	Type       orderType `json:"t"`
}

type orderType struct {
	Limit *limitType `json:"limit,omitempty"`
}

type limitType struct {
	Tif string `json:"tif"`
}

type orderAction struct {
	Type     string      `json:"type"`
	Orders   []orderSpec `json:"orders"`
	Grouping string      `json:"grouping"`
}

// BuildOrder fetches the current mid and synthesizes an aggressive IOC limit
// emulating a market order.
func (a *Adapter) BuildOrder(ctx context.Context, intent domain.TradeIntent, market domain.MarketRef) (domain.UnsignedOrder, error) {
	mids, err := a.client.AllMids(ctx)
	if err != nil {
		return domain.UnsignedOrder{}, err
	}
	midStr, ok := mids[market.Symbol]
	if !ok {
		return domain.UnsignedOrder{}, domain.NewResolutionError("no mid price for " + market.Symbol)
	}
	mid, err := decimal.NewFromString(midStr)
	if err != nil || mid.LessThanOrEqual(decimal.Zero) {
		return domain.UnsignedOrder{}, domain.NewResolutionError(fmt.Sprintf("bad mid price %q for %s", midStr, market.Symbol))
	}

	price := mid.Mul(buyAggression)
	if intent.Side == domain.SideSell {
		price = mid.Mul(sellAggression)
	}
	price = roundPrice(price, market.SzDecimals)
	size := intent.Amount.Round(int32(market.SzDecimals))
	if size.LessThanOrEqual(decimal.Zero) {
		return domain.UnsignedOrder{}, domain.NewInputError(
			fmt.Sprintf("amount %s rounds to zero at %d size decimals", intent.Amount, market.SzDecimals), nil)
	}

	a.price = price
	a.size = size

	slog.Info("Hyperliquid synthetic market order",
		slog.String("asset", market.Symbol),
		slog.String("mid", mid.String()),
		slog.String("limit", price.String()),
		slog.String("size", size.String()))

	action := orderAction{
		Type: "order",
		Orders: []orderSpec{{
			Asset:      market.AssetIndex,
			IsBuy:      intent.Side == domain.SideBuy,
			Price:      price.String(),
			Size:       size.String(),
			ReduceOnly: false,
			Type:       orderType{Limit: &limitType{Tif: "Ioc"}},
		}},
		Grouping: "na",
	}

	return domain.UnsignedOrder{Market: market, Payload: action}, nil
}

// roundPrice constrains a price to the venue's tick rules: at most five
// significant figures and at most 6-szDecimals decimal places; integer
// prices are always allowed.
func roundPrice(p decimal.Decimal, szDecimals int) decimal.Decimal {
	maxDecimals := 6 - szDecimals
	if maxDecimals < 0 {
		maxDecimals = 0
	}

	intDigits := len(p.Truncate(0).Abs().String())
	if p.Truncate(0).IsZero() {
		intDigits = 0
	}
	sigDecimals := 5 - intDigits
	if sigDecimals < 0 {
		sigDecimals = 0
	}
	if sigDecimals < maxDecimals {
		maxDecimals = sigDecimals
	}
	return p.Round(int32(maxDecimals))
}

// Sign draws a fresh nonce and signs the action hash.
func (a *Adapter) Sign(_ domain.TradeIntent, order domain.UnsignedOrder) (domain.SignedOrder, error) {
	action, ok := order.Payload.(orderAction)
	if !ok {
		return domain.SignedOrder{}, domain.NewInputError("unexpected order payload type", nil)
	}

	nonce := a.signer.Nonce()
	sig, err := a.signer.SignAction(action, nonce, a.vault)
	if err != nil {
		return domain.SignedOrder{}, err
	}

	return domain.SignedOrder{
		Market: order.Market,
		Payload: ExchangeRequest{
			Action:       action,
			Nonce:        nonce,
			Signature:    sig,
			VaultAddress: a.vault,
		},
	}, nil
}

// Submit posts the signed action. Status "ok" is the acceptance criterion;
// the per-order statuses array is carried through opaque.
func (a *Adapter) Submit(ctx context.Context, signed domain.SignedOrder) (domain.Submission, error) {
	req, ok := signed.Payload.(ExchangeRequest)
	if !ok {
		return domain.Submission{}, domain.NewInputError("unexpected signed payload type", nil)
	}

	resp, _, err := a.client.Exchange(ctx, req)
	if err != nil {
		return domain.Submission{}, err
	}

	statuses := resp.Response.Data.Statuses
	if rejection := firstStatusError(statuses); rejection != "" {
		return domain.Submission{}, domain.NewRejectionError("order_error", rejection)
	}

	return domain.Submission{Market: signed.Market, Raw: statuses, OrderID: firstOrderID(statuses)}, nil
}

// Confirm surfaces the venue-reported fill statuses verbatim. Fill price and
// size are taken from the venue's "filled" status when present; nothing is
// reconstructed beyond what the venue reports.
func (a *Adapter) Confirm(_ context.Context, sub domain.Submission) (domain.Settlement, error) {
	st := domain.Settlement{
		State:          domain.StateConfirmed,
		OrderID:        sub.OrderID,
		ExecutedAmount: a.size,
		ExecutedPrice:  a.price,
		Raw:            sub.Raw,
	}

	var statuses []struct {
		Filled *struct {
			AvgPx   string `json:"avgPx"`
			TotalSz string `json:"totalSz"`
			Oid     int64  `json:"oid"`
		} `json:"filled"`
	}
	if err := json.Unmarshal(sub.Raw, &statuses); err == nil {
		for _, s := range statuses {
			if s.Filled == nil {
				continue
			}
			if px, err := decimal.NewFromString(s.Filled.AvgPx); err == nil {
				st.ExecutedPrice = px
			}
			if sz, err := decimal.NewFromString(s.Filled.TotalSz); err == nil {
				st.ExecutedAmount = sz
			}
			break
		}
	}
	return st, nil
}

// firstStatusError scans the opaque statuses array for a venue-reported
// per-order error.
func firstStatusError(raw json.RawMessage) string {
	var statuses []struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statuses); err != nil {
		return ""
	}
	for _, s := range statuses {
		if s.Error != "" {
			return s.Error
		}
	}
	return ""
}

// firstOrderID extracts the venue order id from a resting or filled status.
func firstOrderID(raw json.RawMessage) string {
	var statuses []struct {
		Resting *struct {
			Oid int64 `json:"oid"`
		} `json:"resting"`
		Filled *struct {
			Oid int64 `json:"oid"`
		} `json:"filled"`
	}
	if err := json.Unmarshal(raw, &statuses); err != nil {
		return ""
	}
	for _, s := range statuses {
		if s.Filled != nil {
			return fmt.Sprintf("%d", s.Filled.Oid)
		}
		if s.Resting != nil {
			return fmt.Sprintf("%d", s.Resting.Oid)
		}
	}
	return ""
}
