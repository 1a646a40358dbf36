package domain

import "log/slog"

// VenueCredentials is a per-venue secret bundle. CEX venues use the API
// key/secret pair; on-chain venues use the private key plus an optional
// wallet address. Held in process memory only for the lifetime of one
// execution and never logged in plaintext.
type VenueCredentials struct {
	APIKey        string
	APISecret     string
	PrivateKey    string
	WalletAddress string
}

// HasAPIPair reports whether CEX-style credentials are present.
func (c VenueCredentials) HasAPIPair() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// HasPrivateKey reports whether on-chain signing material is present.
func (c VenueCredentials) HasPrivateKey() bool {
	return c.PrivateKey != ""
}

// String redacts all fields. Accidental %v formatting must not leak secrets.
func (c VenueCredentials) String() string {
	return "VenueCredentials(redacted)"
}

// LogValue redacts credentials in slog output.
func (c VenueCredentials) LogValue() slog.Value {
	return slog.StringValue("redacted")
}
