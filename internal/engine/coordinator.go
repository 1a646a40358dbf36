// Package engine drives a trade intent through its venue adapter and owns the
// output contract: exactly one ExecutionResult and one ledger append per
// attempt, no matter how the attempt ends.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradexec/internal/domain"
	"tradexec/internal/ledger"
	"tradexec/internal/venue"
)

// AdapterFactory builds an execution-scoped adapter for one intent. Factories
// fail fast on malformed credentials, before any network call.
type AdapterFactory func(intent domain.TradeIntent) (venue.Adapter, error)

// Coordinator sequences the fixed stage pipeline for one intent at a time.
type Coordinator struct {
	factories map[domain.Venue]AdapterFactory
	sink      ledger.Sink
}

// NewCoordinator creates a coordinator over the registered venues. A nil sink
// means results are not persisted.
func NewCoordinator(factories map[domain.Venue]AdapterFactory, sink ledger.Sink) *Coordinator {
	return &Coordinator{factories: factories, sink: sink}
}

// Execute runs one intent end to end and returns its result. The result is
// always produced and always appended to the ledger exactly once, including
// on panic inside an adapter; the error mirrors result.Success for callers
// that want control flow.
func (c *Coordinator) Execute(ctx context.Context, intent domain.TradeIntent) (res domain.ExecutionResult, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Execution panicked",
				slog.String("intent_id", intent.ID),
				slog.Any("panic", r))
			err = domain.NewTransportError(fmt.Sprintf("execution panicked: %v", r), nil)
			res = domain.FailureResult(intent, "", err, time.Since(start))
		}
		c.append(ctx, res)
	}()

	if verr := intent.Validate(); verr != nil {
		return domain.FailureResult(intent, venue.StageResolve, verr, time.Since(start)), verr
	}

	factory, ok := c.factories[intent.Venue]
	if !ok {
		verr := domain.NewInputError(fmt.Sprintf("no adapter registered for venue %q", intent.Venue), nil)
		return domain.FailureResult(intent, venue.StageResolve, verr, time.Since(start)), verr
	}
	adapter, aerr := factory(intent)
	if aerr != nil {
		return domain.FailureResult(intent, venue.StageResolve, aerr, time.Since(start)), aerr
	}

	slog.Info("Executing intent",
		slog.String("intent_id", intent.ID),
		slog.String("venue", string(intent.Venue)),
		slog.String("symbol", intent.Symbol),
		slog.String("side", string(intent.Side)),
		slog.String("amount", intent.Amount.String()))

	market, merr := adapter.ResolveMarket(ctx, intent)
	if merr != nil {
		return domain.FailureResult(intent, venue.StageResolve, merr, time.Since(start)), merr
	}

	order, berr := adapter.BuildOrder(ctx, intent, market)
	if berr != nil {
		// Closing a position that does not exist is a successful no-op.
		if errors.Is(berr, domain.ErrNoPosition) {
			slog.Info("Nothing to execute",
				slog.String("intent_id", intent.ID),
				slog.String("reason", berr.Error()))
			return domain.NoopResult(intent, berr.Error(), time.Since(start)), nil
		}
		return domain.FailureResult(intent, venue.StageBuild, berr, time.Since(start)), berr
	}

	signed, serr := adapter.Sign(intent, order)
	if serr != nil {
		return domain.FailureResult(intent, venue.StageSign, serr, time.Since(start)), serr
	}

	sub, suberr := adapter.Submit(ctx, signed)
	if suberr != nil {
		return domain.FailureResult(intent, venue.StageSubmit, suberr, time.Since(start)), suberr
	}

	settlement, cerr := adapter.Confirm(ctx, sub)
	if cerr != nil {
		return domain.FailureResult(intent, venue.StageConfirm, cerr, time.Since(start)), cerr
	}

	res = domain.SuccessResult(intent, settlement, time.Since(start))
	slog.Info("Execution settled",
		slog.String("intent_id", intent.ID),
		slog.String("state", res.State),
		slog.String("order_id", res.OrderID),
		slog.String("tx_hash", res.TxHash),
		slog.Duration("elapsed", res.ExecutionTime))
	return res, nil
}

// append persists the result. A ledger fault never changes the execution
// outcome; it is logged and dropped.
func (c *Coordinator) append(ctx context.Context, res domain.ExecutionResult) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Append(ctx, res); err != nil {
		slog.Warn("Ledger append failed",
			slog.String("intent_id", res.IntentID),
			slog.Any("error", err))
	}
}
