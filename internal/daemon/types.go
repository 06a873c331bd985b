package daemon

import (
	"context"
	"time"

	"github.com/janekbaraniewski/tokenledger/internal/telemetry"
)

const APIVersion = "v1"

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Verbose         bool
}

// RangeQuerier answers range requests. *telemetry.RangeService satisfies it.
type RangeQuerier interface {
	Query(ctx context.Context, req telemetry.RangeRequest) telemetry.RangeResponse
}

type HealthResponse struct {
	Status        string `json:"status"`
	ServerVersion string `json:"server_version,omitempty"`
	APIVersion    string `json:"api_version,omitempty"`
}
