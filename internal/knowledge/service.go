// Package knowledge manages a bot's linked knowledge assets: explicit
// create/delete, indexing status transitions, and resolution of a bot's
// asset references for context assembly.
package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service wraps the knowledge bucket with lifecycle rules.
type Service struct {
	store store.KnowledgeStore
}

func NewService(st store.KnowledgeStore) *Service {
	return &Service{store: st}
}

// CreateAsset registers a new asset in pending state. Indexing is a status
// transition only; there is no background pipeline.
func (s *Service) CreateAsset(ctx context.Context, owner, name string, source models.AssetSourceType, ref string, size int64) (*models.KnowledgeAsset, error) {
	switch source {
	case models.AssetURL, models.AssetPDF, models.AssetDoc, models.AssetImage:
	default:
		return nil, fmt.Errorf("unknown asset source %q", source)
	}
	asset := &models.KnowledgeAsset{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		Ref:       ref,
		SizeBytes: size,
		Status:    models.IndexPending,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	log.Info().Str("asset", asset.ID).Str("source", string(source)).Msg("Knowledge asset registered")
	return asset, nil
}

// MarkIndexed settles a pending asset into ready or failed.
func (s *Service) MarkIndexed(ctx context.Context, id string, ok bool) (*models.KnowledgeAsset, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.Status != models.IndexPending {
		return nil, fmt.Errorf("asset %s is %s, only pending assets settle", id, asset.Status)
	}
	if ok {
		asset.Status = models.IndexReady
	} else {
		asset.Status = models.IndexFailed
	}
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	return asset, nil
}

// ListAssets returns the owner's assets.
func (s *Service) ListAssets(ctx context.Context, owner string) ([]models.KnowledgeAsset, error) {
	return s.store.ListAssets(ctx, owner)
}

// DeleteAsset removes an asset. Bots referencing it simply lose the
// context block; references are not back-tracked.
func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	return s.store.DeleteAsset(ctx, id)
}

// ResolveRefs maps a bot's asset references to the assets themselves,
// skipping ids that no longer resolve and assets that are not ready.
func (s *Service) ResolveRefs(ctx context.Context, bot *models.BotConfig) []models.KnowledgeAsset {
	var assets []models.KnowledgeAsset
	for _, ref := range bot.KnowledgeRefs {
		asset, err := s.store.GetAsset(ctx, ref)
		if err != nil {
			log.Warn().Str("asset", ref).Str("bot", bot.ID).Msg("Dangling knowledge reference skipped")
			continue
		}
		if asset.Status != models.IndexReady {
			continue
		}
		assets = append(assets, *asset)
	}
	return assets
}
