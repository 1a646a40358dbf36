package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"tradexec/internal/domain"
	"tradexec/internal/infra"
	"tradexec/internal/ledger"
)

// DefaultSlippageBps is the swap slippage tolerance when the intent sets none.
const DefaultSlippageBps = 100

const confirmPollInterval = 2 * time.Second

// Well-known token mints for human symbols. Anything else must be supplied
// as a raw mint address.
var wellKnownMints = map[string]string{
	"SOL":  "So11111111111111111111111111111111111111112",
	"WSOL": "So11111111111111111111111111111111111111112",
	"USDC": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"USDT": "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	"JUP":  "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
	"BONK": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
}

// Shared per-venue broadcast breaker: an RPC outage fails fast instead of
// burning the retry budget on every intent.
var broadcastBreaker = infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("solana-broadcast"))

// Config wires the adapter to its node and aggregator.
type Config struct {
	RPCURL            string
	JupiterURL        string
	Commitment        string
	QuoteMint         string
	SlippageBps       int
	BroadcastAttempts int
	ConfirmTimeout    time.Duration
}

// Adapter executes swaps through the Jupiter aggregator: buy intents swap the
// stable quote asset into the target token, sell intents liquidate the entire
// token balance back to the quote asset ("close").
type Adapter struct {
	rpc ChainRPC
	jup *JupiterClient
	cfg Config

	key   solanago.PrivateKey
	owner solanago.PublicKey

	// Execution-scoped context captured during BuildOrder.
	quote        *QuoteResponse
	inDecimals   int
	outDecimals  int
	side         domain.Side
	confirmLimit time.Duration
}

// NewAdapter parses key material up front: a malformed key aborts before any
// network call. The node transport is injectable for tests.
func NewAdapter(cfg Config, creds domain.VenueCredentials, tracer ledger.Tracer, node ChainRPC) (*Adapter, error) {
	key, err := ParsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	if cfg.BroadcastAttempts <= 0 {
		cfg.BroadcastAttempts = 3
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if node == nil {
		node = NewChainRPC(cfg.RPCURL, cfg.Commitment)
	}
	return &Adapter{
		rpc:   node,
		jup:   NewJupiterClient(cfg.JupiterURL, tracer),
		cfg:   cfg,
		key:   key,
		owner: key.PublicKey(),
	}, nil
}

func (a *Adapter) Name() domain.Venue { return domain.VenueSolana }

// ResolveMarket maps a symbol onto a token mint: either a well-known ticker
// or a literal mint address.
func (a *Adapter) ResolveMarket(_ context.Context, intent domain.TradeIntent) (domain.MarketRef, error) {
	symbol := strings.TrimSpace(intent.Symbol)

	if mint, ok := wellKnownMints[strings.ToUpper(symbol)]; ok {
		return domain.MarketRef{Venue: domain.VenueSolana, Symbol: strings.ToUpper(symbol), Mint: mint}, nil
	}
	if pk, err := solanago.PublicKeyFromBase58(symbol); err == nil {
		return domain.MarketRef{Venue: domain.VenueSolana, Symbol: symbol, Mint: pk.String()}, nil
	}
	return domain.MarketRef{}, domain.NewResolutionError("unknown token: " + symbol)
}

// BuildOrder quotes the swap and asks the aggregator for the unsigned
// transaction. A sell against a zero balance short-circuits with
// domain.ErrNoPosition: closing nothing is a successful no-op.
func (a *Adapter) BuildOrder(ctx context.Context, intent domain.TradeIntent, market domain.MarketRef) (domain.UnsignedOrder, error) {
	mint, err := solanago.PublicKeyFromBase58(market.Mint)
	if err != nil {
		return domain.UnsignedOrder{}, domain.NewResolutionError("bad mint: " + market.Mint)
	}
	quoteMint, err := solanago.PublicKeyFromBase58(a.cfg.QuoteMint)
	if err != nil {
		return domain.UnsignedOrder{}, domain.NewInputError("bad quote mint: "+a.cfg.QuoteMint, nil)
	}

	slippage := a.cfg.SlippageBps
	if intent.Constraints.MaxSlippageBps > 0 {
		slippage = intent.Constraints.MaxSlippageBps
	}
	a.side = intent.Side
	a.confirmLimit = a.cfg.ConfirmTimeout
	if intent.Constraints.TimeLimit > 0 {
		a.confirmLimit = intent.Constraints.TimeLimit
	}

	var req QuoteRequest
	switch intent.Side {
	case domain.SideSell:
		// Close: liquidate the entire token balance to the quote asset.
		balance, decimals, err := a.rpc.TokenBalance(ctx, a.owner, mint)
		if err != nil {
			return domain.UnsignedOrder{}, err
		}
		if balance == 0 {
			return domain.UnsignedOrder{}, domain.ErrNoPosition
		}
		a.inDecimals = decimals
		a.outDecimals, err = a.rpc.MintDecimals(ctx, quoteMint)
		if err != nil {
			return domain.UnsignedOrder{}, err
		}
		req = QuoteRequest{
			InputMint:   market.Mint,
			OutputMint:  a.cfg.QuoteMint,
			Amount:      balance,
			SlippageBps: slippage,
		}

	case domain.SideBuy:
		// Open: spend `amount` of the quote asset on the target token.
		quoteDecimals, err := a.rpc.MintDecimals(ctx, quoteMint)
		if err != nil {
			return domain.UnsignedOrder{}, err
		}
		raw := intent.Amount.Shift(int32(quoteDecimals)).Truncate(0)
		if raw.LessThanOrEqual(decimal.Zero) || !raw.BigInt().IsUint64() {
			return domain.UnsignedOrder{}, domain.NewInputError(
				fmt.Sprintf("amount %s is not a valid quote-asset quantity", intent.Amount), nil)
		}
		// The wallet must already hold the quote asset it is about to spend;
		// an unfunded wallet fails here, before the aggregator is contacted.
		held, _, err := a.rpc.TokenBalance(ctx, a.owner, quoteMint)
		if err != nil {
			return domain.UnsignedOrder{}, err
		}
		if held < raw.BigInt().Uint64() {
			return domain.UnsignedOrder{}, domain.NewInputError(
				fmt.Sprintf("quote asset balance %d below required %s", held, raw), nil)
		}
		a.inDecimals = quoteDecimals
		a.outDecimals, err = a.rpc.MintDecimals(ctx, mint)
		if err != nil {
			return domain.UnsignedOrder{}, err
		}
		req = QuoteRequest{
			InputMint:   a.cfg.QuoteMint,
			OutputMint:  market.Mint,
			Amount:      raw.BigInt().Uint64(),
			SlippageBps: slippage,
		}

	default:
		return domain.UnsignedOrder{}, domain.NewInputError(fmt.Sprintf("invalid side: %q", intent.Side), nil)
	}

	quote, err := a.jup.Quote(ctx, req)
	if err != nil {
		return domain.UnsignedOrder{}, err
	}
	if !intent.Constraints.MinLiquidity.IsZero() {
		out, err := decimal.NewFromString(quote.OutAmount)
		if err == nil && out.Shift(-int32(a.outDecimals)).LessThan(intent.Constraints.MinLiquidity) {
			return domain.UnsignedOrder{}, domain.NewRejectionError("min_liquidity",
				fmt.Sprintf("quote output below minimum: %s", quote.OutAmount))
		}
	}
	a.quote = quote

	txBytes, err := a.jup.SwapTransaction(ctx, quote, a.owner.String())
	if err != nil {
		return domain.UnsignedOrder{}, err
	}

	return domain.UnsignedOrder{Market: market, Payload: txBytes}, nil
}

// Sign deserializes the aggregator-built transaction, signs it in place with
// the holder's key and keeps it ready for broadcast. The signer never
// constructs the transaction body itself.
func (a *Adapter) Sign(_ domain.TradeIntent, order domain.UnsignedOrder) (domain.SignedOrder, error) {
	txBytes, ok := order.Payload.([]byte)
	if !ok {
		return domain.SignedOrder{}, domain.NewInputError("unexpected order payload type", nil)
	}

	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return domain.SignedOrder{}, domain.NewInputError("deserialize swap transaction", err)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return domain.SignedOrder{}, domain.NewInputError("serialize transaction message", err)
	}
	sig, err := a.key.Sign(msg)
	if err != nil {
		return domain.SignedOrder{}, domain.NewInputError("sign transaction", err)
	}
	tx.Signatures = []solanago.Signature{sig}

	return domain.SignedOrder{Market: order.Market, Payload: tx}, nil
}

// Submit broadcasts with a bounded transport-level retry. Only the send is
// retried; the transaction is never re-signed, so a resend after a transient
// failure cannot produce two terminal states.
func (a *Adapter) Submit(ctx context.Context, signed domain.SignedOrder) (domain.Submission, error) {
	tx, ok := signed.Payload.(*solanago.Transaction)
	if !ok {
		return domain.Submission{}, domain.NewInputError("unexpected signed payload type", nil)
	}

	var lastErr error
	for attempt := 0; attempt < a.cfg.BroadcastAttempts; attempt++ {
		if !broadcastBreaker.Allow() {
			return domain.Submission{}, domain.NewTransportError("broadcast circuit open", nil)
		}
		if attempt > 0 {
			if err := infra.SleepBackoff(ctx, infra.BroadcastBackoff(attempt-1)); err != nil {
				return domain.Submission{}, domain.NewTransportError("broadcast cancelled", err)
			}
		}

		sig, err := a.rpc.SendTransaction(ctx, tx)
		if err == nil {
			broadcastBreaker.RecordSuccess()
			slog.Info("Solana transaction broadcast",
				slog.String("signature", sig.String()),
				slog.Int("attempt", attempt+1))
			return domain.Submission{Market: signed.Market, TxHash: sig.String()}, nil
		}

		broadcastBreaker.RecordFailure()
		lastErr = err
		slog.Warn("Solana broadcast attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}
	return domain.Submission{}, domain.NewTransportError(
		fmt.Sprintf("broadcast failed after %d attempts", a.cfg.BroadcastAttempts), lastErr)
}

// Confirm polls settlement at the configured commitment with a bounded wait.
// Broadcast success and settlement success are distinct: a landed transaction
// carrying an on-chain error is a failure, and a confirmation timeout is the
// ambiguous TimedOut outcome, never coerced to either side.
func (a *Adapter) Confirm(ctx context.Context, sub domain.Submission) (domain.Settlement, error) {
	sig, err := solanago.SignatureFromBase58(sub.TxHash)
	if err != nil {
		return domain.Settlement{}, domain.NewInputError("bad transaction signature", err)
	}

	deadline := time.Now().Add(a.confirmLimit)
	for {
		status, err := a.rpc.SignatureStatus(ctx, sig)
		if err != nil {
			slog.Warn("Solana status poll failed", slog.Any("error", err))
		} else if status != nil {
			if status.Err != nil {
				return domain.Settlement{State: domain.StateFailed, TxHash: sub.TxHash},
					domain.NewRejectionError("onchain_error",
						fmt.Sprintf("transaction %s failed on-chain: %v", sub.TxHash, status.Err))
			}
			if status.Landed {
				return a.settled(sub), nil
			}
		}

		if time.Now().After(deadline) {
			return domain.Settlement{State: domain.StateTimedOut, TxHash: sub.TxHash},
				domain.NewAmbiguousError(
					fmt.Sprintf("transaction %s unconfirmed after %s; it may still land", sub.TxHash, a.confirmLimit))
		}
		if err := infra.SleepBackoff(ctx, confirmPollInterval); err != nil {
			return domain.Settlement{State: domain.StateTimedOut, TxHash: sub.TxHash},
				domain.NewAmbiguousError("confirmation wait cancelled: " + err.Error())
		}
	}
}

// settled converts the consumed quote into the settlement report.
func (a *Adapter) settled(sub domain.Submission) domain.Settlement {
	st := domain.Settlement{
		State:  domain.StateConfirmed,
		TxHash: sub.TxHash,
	}
	if a.quote == nil {
		return st
	}

	in, errIn := decimal.NewFromString(a.quote.InAmount)
	out, errOut := decimal.NewFromString(a.quote.OutAmount)
	if errIn != nil || errOut != nil {
		return st
	}
	inHuman := in.Shift(-int32(a.inDecimals))
	outHuman := out.Shift(-int32(a.outDecimals))

	if a.side == domain.SideSell {
		// Sold the token: amount is tokens in, price is quote out per token.
		st.ExecutedAmount = inHuman
		if !inHuman.IsZero() {
			st.ExecutedPrice = outHuman.Div(inHuman)
		}
	} else {
		// Bought the token: amount is tokens out, price is quote in per token.
		st.ExecutedAmount = outHuman
		if !outHuman.IsZero() {
			st.ExecutedPrice = inHuman.Div(outHuman)
		}
	}

	if impact, err := decimal.NewFromString(a.quote.PriceImpactPct); err == nil {
		// Price impact arrives as a percentage; the ledger records basis points.
		st.SlippageBps = impact.Mul(decimal.NewFromInt(100)).IntPart()
	}
	return st
}
