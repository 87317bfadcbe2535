package sources

import (
	"context"
	"net/http"

	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
)

//go:generate mockgen -destination=mock_sources.go -package=sources github.com/scholarsys/paperscout/pkg/sources Worker,Credentials,RateLimiter,HTTPClient

// Worker discovers related papers from one upstream source. Discover never
// returns an error: every failure is packaged into the result with
// Success=false and an error message.
type Worker interface {
	Source() models.DiscoverySource
	Discover(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.SourceDiscoveryResult
}

// Credentials resolves the API key a worker presents for a given user. The
// rate limiter never sees credentials.
type Credentials interface {
	CredentialsFor(ctx context.Context, source models.DiscoverySource, userID string) (string, error)
}

// RateLimiter grants permits for outbound calls. *ratelimit.Manager
// implements it.
type RateLimiter interface {
	Acquire(ctx context.Context, source models.DiscoverySource) (ratelimit.Permit, error)
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
