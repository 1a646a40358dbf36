package bybit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradexec/internal/domain"
	"tradexec/internal/ledger"
)

// Adapter executes one trade intent against Bybit V5 linear perpetuals.
// One adapter instance serves exactly one execution.
type Adapter struct {
	client *Client
	signer *Signer
	ticker *TickerWorker // optional live price stream

	// Execution-scoped context captured during BuildOrder.
	qty decimal.Decimal
}

// NewAdapter builds an execution-scoped adapter. Missing credentials fail
// here, before any network call.
func NewAdapter(baseURL string, creds domain.VenueCredentials, tracer ledger.Tracer, ticker *TickerWorker) (*Adapter, error) {
	signer, err := NewSigner(creds.APIKey, creds.APISecret)
	if err != nil {
		return nil, domain.NewInputError("bybit credentials", err)
	}
	return &Adapter{
		client: NewClient(baseURL, signer, tracer),
		signer: signer,
		ticker: ticker,
	}, nil
}

func (a *Adapter) Name() domain.Venue { return domain.VenueBybit }

// PairSymbol formats a human symbol into the venue pair string: separators
// stripped, uppercased, quote suffix appended when absent. Returns "" for a
// symbol with no content.
func PairSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, sep := range []string{"/", "-", "_", " "} {
		s = strings.ReplaceAll(s, sep, "")
	}
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(s, "USDT") && !strings.HasSuffix(s, "USDC") && !strings.HasSuffix(s, "PERP") {
		s += "USDT"
	}
	return s
}

// ResolveMarket formats the human symbol into the venue pair string.
func (a *Adapter) ResolveMarket(_ context.Context, intent domain.TradeIntent) (domain.MarketRef, error) {
	symbol := PairSymbol(intent.Symbol)
	if symbol == "" {
		return domain.MarketRef{}, domain.NewResolutionError("empty symbol")
	}
	return domain.MarketRef{Venue: domain.VenueBybit, Symbol: symbol}, nil
}

// BuildOrder sets leverage when requested, then constructs the market-order
// payload. A leverage rejection other than the idempotent "not modified" code
// is surfaced as a warning, not a failure: the order placement still proceeds.
func (a *Adapter) BuildOrder(ctx context.Context, intent domain.TradeIntent, market domain.MarketRef) (domain.UnsignedOrder, error) {
	if intent.Leverage > 1 {
		if err := a.client.SetLeverage(ctx, market.Symbol, intent.Leverage); err != nil {
			if domain.KindOf(err) == domain.KindVenueRejection {
				slog.Warn("leverage set rejected, proceeding with order",
					slog.String("symbol", market.Symbol),
					slog.Int("leverage", intent.Leverage),
					slog.Any("error", err))
			} else {
				return domain.UnsignedOrder{}, err
			}
		}
	}

	a.qty = intent.Amount

	side := "Buy"
	if intent.Side == domain.SideSell {
		side = "Sell"
	}

	return domain.UnsignedOrder{
		Market: market,
		Payload: OrderRequest{
			Category:  "linear",
			Symbol:    market.Symbol,
			Side:      side,
			OrderType: "Market",
			Qty:       intent.Amount.String(),
		},
	}, nil
}

// signedBody carries the serialized order. The HMAC binds a timestamp
// generated at submission time, so the signature itself is applied when the
// request leaves; Sign fixes the exact bytes the signature will cover.
type signedBody struct {
	body []byte
}

// Sign serializes the order payload. Key material was validated at
// construction; this stage performs no network calls.
func (a *Adapter) Sign(_ domain.TradeIntent, order domain.UnsignedOrder) (domain.SignedOrder, error) {
	req, ok := order.Payload.(OrderRequest)
	if !ok {
		return domain.SignedOrder{}, domain.NewInputError("unexpected order payload type", nil)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.SignedOrder{}, domain.NewInputError("marshal order", err)
	}
	return domain.SignedOrder{Market: order.Market, Payload: signedBody{body: body}}, nil
}

// Submit sends the order. The venue-side zero return code is the success
// criterion; the response carries the venue order id and correlation id.
func (a *Adapter) Submit(ctx context.Context, signed domain.SignedOrder) (domain.Submission, error) {
	sb, ok := signed.Payload.(signedBody)
	if !ok {
		return domain.Submission{}, domain.NewInputError("unexpected signed payload type", nil)
	}

	orderID, orderLinkID, raw, err := a.client.CreateOrder(ctx, sb.body)
	if err != nil {
		return domain.Submission{}, err
	}

	slog.Info("Bybit order accepted",
		slog.String("symbol", signed.Market.Symbol),
		slog.String("orderId", orderID),
		slog.String("orderLinkId", orderLinkID))

	return domain.Submission{Market: signed.Market, OrderID: orderID, Raw: raw}, nil
}

// Confirm resolves immediately: a CEX market order is filled or rejected at
// submission. The executed price is estimated from the live ticker stream
// when available, otherwise from the REST ticker.
func (a *Adapter) Confirm(ctx context.Context, sub domain.Submission) (domain.Settlement, error) {
	price := decimal.Zero
	if a.ticker != nil {
		if p, ok := a.ticker.Price(sub.Market.Symbol); ok {
			price = p
		}
	}
	if price.IsZero() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if p, err := a.client.LastPrice(ctx, sub.Market.Symbol); err == nil {
			price = p
		} else {
			slog.Warn("executed price estimate unavailable", slog.Any("error", err))
		}
	}

	return domain.Settlement{
		State:          domain.StateConfirmed,
		OrderID:        sub.OrderID,
		ExecutedAmount: a.qty,
		ExecutedPrice:  price,
		Raw:            sub.Raw,
	}, nil
}
