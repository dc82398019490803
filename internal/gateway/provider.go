package gateway

import "context"

// Provider defines the payment gateway operations the wallet depends on.
// Amounts cross this boundary in integer minor units.
type Provider interface {
	// Initialize starts a hosted checkout for a reference and returns the URL
	// the customer should be sent to.
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)

	// Verify asks the provider for the authoritative state of a reference.
	Verify(ctx context.Context, reference string) (*Verification, error)

	// ChargeAuthorization charges a stored card authorization synchronously.
	ChargeAuthorization(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

const (
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusAbandoned  = "abandoned"
	StatusPending    = "pending"
	StatusOngoing    = "ongoing"
	StatusProcessing = "processing"
	StatusQueued     = "queued"
)

// IsInFlight reports whether a provider status may still turn into success.
func IsInFlight(status string) bool {
	switch status {
	case StatusPending, StatusOngoing, StatusProcessing, StatusQueued:
		return true
	}
	return false
}

type InitializeRequest struct {
	Reference   string
	Email       string
	AmountMinor int64
	Currency    string
	CallbackURL string
}

type InitializeResponse struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// Authorization is a reusable card token returned by the provider.
type Authorization struct {
	AuthorizationCode string `json:"authorization_code"`
	CardType          string `json:"card_type"`
	Last4             string `json:"last4"`
	ExpMonth          string `json:"exp_month"`
	ExpYear           string `json:"exp_year"`
	Bank              string `json:"bank"`
	Reusable          bool   `json:"reusable"`
}

type Verification struct {
	Reference       string
	Status          string
	AmountMinor     int64
	Currency        string
	GatewayResponse string
	Authorization   *Authorization
}

func (v *Verification) Succeeded() bool {
	return v.Status == StatusSuccess
}

type ChargeRequest struct {
	Reference         string
	AuthorizationCode string
	Email             string
	AmountMinor       int64
	Currency          string
}

type ChargeResponse struct {
	Reference   string
	Status      string
	AmountMinor int64
	Message     string
}

func (r *ChargeResponse) Succeeded() bool {
	return r.Status == StatusSuccess
}
