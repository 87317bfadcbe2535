package agent

import (
	"context"

	"github.com/scholarsys/paperscout/pkg/models"
)

//go:generate mockgen -destination=mock_agent.go -package=agent github.com/scholarsys/paperscout/pkg/agent PaperStore,DiscoveryRepository

// PaperStore is the read-only view of the external paper catalog the agent
// loads source papers from.
type PaperStore interface {
	GetSourcePaper(ctx context.Context, paperID string) (*models.SourcePaper, error)
}

// DiscoveryRepository persists the output of a completed discovery run.
// Implementations must upsert so repeated runs for the same paper update
// rows in place.
type DiscoveryRepository interface {
	// UpsertDiscoveredPapers writes papers keyed by their strongest
	// external identifier and rewrites each paper's ID in place to the
	// canonical stored id, so relationship edges built afterwards
	// reference real rows.
	UpsertDiscoveredPapers(ctx context.Context, papers []*models.DiscoveredPaper) error
	UpsertRelationships(ctx context.Context, relationships []*models.PaperRelationship) error
	InsertDiscoveryResult(ctx context.Context, record *models.DiscoveryResultRecord) error
}

// Coordinator executes one discovery run end to end.
// *discovery.Coordinator implements it.
type Coordinator interface {
	Run(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.UnifiedDiscoveryResult
}
