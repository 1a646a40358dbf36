package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSide(t *testing.T) {
	cases := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"buy", SideBuy, false},
		{"BUY", SideBuy, false},
		{"long", SideBuy, false},
		{"sell", SideSell, false},
		{"short", SideSell, false},
		{" Sell ", SideSell, false},
		{"hold", "", true},
		{"", "", true},
	}

	for _, c := range cases {
		got, err := ParseSide(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseSide(%q): expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSide(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSide(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseVenue(t *testing.T) {
	cases := []struct {
		in      string
		want    Venue
		wantErr bool
	}{
		{"bybit", VenueBybit, false},
		{"Hyperliquid", VenueHyperliquid, false},
		{"solana", VenueSolana, false},
		{"jupiter", VenueSolana, false},
		{"binance", "", true},
		{"", "", true},
	}

	for _, c := range cases {
		got, err := ParseVenue(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseVenue(%q): expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVenue(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseVenue(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIntentValidate(t *testing.T) {
	valid := NewTradeIntent("BTCUSDT", SideBuy, decimal.NewFromInt(1), VenueBybit)
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid intent rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TradeIntent)
	}{
		{"missing id", func(i *TradeIntent) { i.ID = "" }},
		{"missing symbol", func(i *TradeIntent) { i.Symbol = "" }},
		{"bad side", func(i *TradeIntent) { i.Side = "hold" }},
		{"zero amount", func(i *TradeIntent) { i.Amount = decimal.Zero }},
		{"negative amount", func(i *TradeIntent) { i.Amount = decimal.NewFromInt(-1) }},
		{"negative leverage", func(i *TradeIntent) { i.Leverage = -3 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			intent := valid
			c.mutate(&intent)
			err := intent.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if KindOf(err) != KindInput {
				t.Errorf("expected input error, got %v", KindOf(err))
			}
		})
	}
}

func TestNewTradeIntentAssignsDistinctIDs(t *testing.T) {
	a := NewTradeIntent("BTC", SideBuy, decimal.NewFromInt(1), VenueBybit)
	b := NewTradeIntent("BTC", SideBuy, decimal.NewFromInt(1), VenueBybit)
	if a.ID == "" || b.ID == "" {
		t.Fatal("intent ID not assigned")
	}
	if a.ID == b.ID {
		t.Errorf("two intents share ID %s", a.ID)
	}
}
