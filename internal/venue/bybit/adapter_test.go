package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"tradexec/internal/domain"
)

func TestPairSymbol(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ETH", "ETHUSDT"},
		{"eth/usdt", "ETHUSDT"},
		{"BTC-USDT", "BTCUSDT"},
		{"btc_usdc", "BTCUSDC"},
		{"SOL PERP", "SOLPERP"},
		{"BTCUSDT", "BTCUSDT"},
		{"", ""},
		{" / ", ""},
	}
	for _, c := range cases {
		if got := PairSymbol(c.in); got != c.want {
			t.Errorf("PairSymbol(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// fakeVenue is an httptest stand-in for the V5 REST API. It verifies each
// signed request's HMAC with the shared secret and records the signed
// timestamps in arrival order.
type fakeVenue struct {
	t *testing.T

	mu          sync.Mutex
	leverageReq *http.Request
	leverageRet int
	orderBodies [][]byte
	timestamps  []int64
}

func (f *fakeVenue) verify(r *http.Request, body []byte) {
	ts := r.Header.Get("X-BAPI-TIMESTAMP")
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(ts + "test-key" + RecvWindow + string(body)))
	want := hex.EncodeToString(mac.Sum(nil))
	if got := r.Header.Get("X-BAPI-SIGN"); got != want {
		f.t.Errorf("bad signature on %s: got %s want %s", r.URL.Path, got, want)
	}
	if r.Header.Get("X-BAPI-RECV-WINDOW") != RecvWindow {
		f.t.Errorf("missing recv window header on %s", r.URL.Path)
	}

	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		f.t.Errorf("bad timestamp %q on %s", ts, r.URL.Path)
	}
	f.timestamps = append(f.timestamps, millis)
}

func (f *fakeVenue) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/position/set-leverage", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.verify(r, body)
		f.leverageReq = r
		ret := f.leverageRet
		w.Write([]byte(`{"retCode":` + strconv.Itoa(ret) + `,"retMsg":"","result":{}}`))
	})
	mux.HandleFunc("/v5/order/create", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.verify(r, body)
		f.orderBodies = append(f.orderBodies, body)
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"ord-42","orderLinkId":"link-42"}}`))
	})
	mux.HandleFunc("/v5/market/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"ETHUSDT","lastPrice":"3250.5"}]}}`))
	})
	return mux
}

func testCreds() domain.VenueCredentials {
	return domain.VenueCredentials{APIKey: "test-key", APISecret: "test-secret"}
}

func TestAdapterRequiresCredentials(t *testing.T) {
	if _, err := NewAdapter("http://localhost", domain.VenueCredentials{}, nil, nil); err == nil {
		t.Fatal("missing credentials must fail before any network call")
	}
}

// Full pipeline against the fake venue: leveraged buy sets leverage first,
// then places a market order, with a fresh strictly-increasing timestamp per
// signed call.
func TestAdapterLeveragedBuy(t *testing.T) {
	fake := &fakeVenue{t: t}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	adapter, err := NewAdapter(srv.URL, testCreds(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	intent := domain.NewTradeIntent("ETH", domain.SideBuy, decimal.NewFromInt(10), domain.VenueBybit)
	intent.Leverage = 5

	ctx := context.Background()
	market, err := adapter.ResolveMarket(ctx, intent)
	if err != nil {
		t.Fatal(err)
	}
	if market.Symbol != "ETHUSDT" {
		t.Fatalf("resolved symbol %q, want ETHUSDT", market.Symbol)
	}

	order, err := adapter.BuildOrder(ctx, intent, market)
	if err != nil {
		t.Fatal(err)
	}
	signed, err := adapter.Sign(intent, order)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := adapter.Submit(ctx, signed)
	if err != nil {
		t.Fatal(err)
	}
	if sub.OrderID != "ord-42" {
		t.Errorf("order id %q, want ord-42", sub.OrderID)
	}

	st, err := adapter.Confirm(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != domain.StateConfirmed {
		t.Errorf("state %v, want confirmed", st.State)
	}
	if !st.ExecutedAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("executed amount %s, want 10", st.ExecutedAmount)
	}
	if !st.ExecutedPrice.Equal(decimal.RequireFromString("3250.5")) {
		t.Errorf("executed price %s, want 3250.5", st.ExecutedPrice)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()

	if fake.leverageReq == nil {
		t.Fatal("leverage was never set")
	}
	if len(fake.orderBodies) != 1 {
		t.Fatalf("expected one order placement, got %d", len(fake.orderBodies))
	}
	var placed OrderRequest
	if err := json.Unmarshal(fake.orderBodies[0], &placed); err != nil {
		t.Fatal(err)
	}
	if placed.Symbol != "ETHUSDT" || placed.Side != "Buy" || placed.OrderType != "Market" || placed.Qty != "10" {
		t.Errorf("unexpected order payload: %+v", placed)
	}

	if len(fake.timestamps) != 2 {
		t.Fatalf("expected two signed calls, got %d", len(fake.timestamps))
	}
	if fake.timestamps[1] <= fake.timestamps[0] {
		t.Errorf("timestamps not strictly increasing: %v", fake.timestamps)
	}
}

// The venue's "leverage not modified" code means the leverage is already
// correct; the order still goes through.
func TestLeverageNotModifiedIsIdempotentSuccess(t *testing.T) {
	fake := &fakeVenue{t: t, leverageRet: 110043}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	adapter, err := NewAdapter(srv.URL, testCreds(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	intent := domain.NewTradeIntent("ETHUSDT", domain.SideBuy, decimal.NewFromInt(1), domain.VenueBybit)
	intent.Leverage = 5

	market, _ := adapter.ResolveMarket(context.Background(), intent)
	if _, err := adapter.BuildOrder(context.Background(), intent, market); err != nil {
		t.Fatalf("leverage-not-modified must not fail the build: %v", err)
	}
}

// A real leverage rejection is logged and the order placement proceeds.
func TestLeverageRejectionDoesNotAbortOrder(t *testing.T) {
	fake := &fakeVenue{t: t, leverageRet: 110013}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	adapter, err := NewAdapter(srv.URL, testCreds(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	intent := domain.NewTradeIntent("ETHUSDT", domain.SideSell, decimal.NewFromInt(2), domain.VenueBybit)
	intent.Leverage = 50

	ctx := context.Background()
	market, _ := adapter.ResolveMarket(ctx, intent)
	order, err := adapter.BuildOrder(ctx, intent, market)
	if err != nil {
		t.Fatalf("leverage rejection must not abort the build: %v", err)
	}
	signed, err := adapter.Sign(intent, order)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := adapter.Submit(ctx, signed); err != nil {
		t.Fatalf("order placement failed: %v", err)
	}
}
