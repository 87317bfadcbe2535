package discovery

import (
	"context"

	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/models"
)

//go:generate mockgen -destination=mock_discovery.go -package=discovery github.com/scholarsys/paperscout/pkg/discovery ResultCache,Synthesizer

// ResultCache is the slice of the discovery cache the coordinator needs.
// *cache.DiscoveryCache implements it.
type ResultCache interface {
	Get(ctx context.Context, key string) (*cache.CachedDiscoveryResult, bool)
	Put(ctx context.Context, key string, result *models.UnifiedDiscoveryResult)
}

// Synthesizer merges per-source results into one ranked result.
// *synthesis.Engine implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration, results []*models.SourceDiscoveryResult) *models.UnifiedDiscoveryResult
}
