package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"popsim/internal/model"
	"popsim/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ZoneService manages zones and their demographic buckets
type ZoneService struct {
	zoneRepo        repository.ZoneRepo
	clusterRepo     repository.ClusterRepo
	agentRepo       repository.AgentRepo
	demographicRepo repository.DemographicRepo
	logger          *zap.Logger
}

// NewZoneService creates a new zone service
func NewZoneService(repos *repository.Repos, logger *zap.Logger) *ZoneService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZoneService{
		zoneRepo:        repos.Zones,
		clusterRepo:     repos.Clusters,
		agentRepo:       repos.Agents,
		demographicRepo: repos.Demographics,
		logger:          logger.Named("zones"),
	}
}

// Create stores a new zone
func (s *ZoneService) Create(ctx context.Context, zone *model.Zone) error {
	zone.Name = strings.TrimSpace(zone.Name)
	if zone.Name == "" {
		return &model.ValidationError{Field: "name", Reason: "is required"}
	}
	now := time.Now()
	zone.ID = uuid.New().String()
	zone.CreatedAt = now
	zone.UpdatedAt = now
	if err := s.zoneRepo.Create(ctx, zone); err != nil {
		return fmt.Errorf("failed to create zone: %w", err)
	}
	return nil
}

// Get returns a zone or an ErrNotFound error
func (s *ZoneService) Get(ctx context.Context, id string) (*model.Zone, error) {
	zone, err := s.zoneRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	if zone == nil {
		return nil, notFound("zone", id)
	}
	return zone, nil
}

// List returns every zone
func (s *ZoneService) List(ctx context.Context) ([]*model.Zone, error) {
	zones, err := s.zoneRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return zones, nil
}

// Update replaces a zone's name and description
func (s *ZoneService) Update(ctx context.Context, zone *model.Zone) (*model.Zone, error) {
	existing, err := s.Get(ctx, zone.ID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(zone.Name)
	if name == "" {
		return nil, &model.ValidationError{Field: "name", Reason: "is required"}
	}
	existing.Name = name
	existing.Description = zone.Description
	existing.UpdatedAt = time.Now()
	if err := s.zoneRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update zone: %w", err)
	}
	return existing, nil
}

// Delete removes a zone together with its clusters, their agents and the
// zone's demographics.
func (s *ZoneService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	clusters, err := s.clusterRepo.ListByZone(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}
	var agents int64
	for _, c := range clusters {
		n, err := s.agentRepo.DeleteByCluster(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("failed to delete agents of cluster %s: %w", c.ID, err)
		}
		agents += n
	}
	if _, err := s.clusterRepo.DeleteByZone(ctx, id); err != nil {
		return fmt.Errorf("failed to delete clusters: %w", err)
	}
	if _, err := s.demographicRepo.DeleteByZone(ctx, id); err != nil {
		return fmt.Errorf("failed to delete demographics: %w", err)
	}
	if err := s.zoneRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete zone: %w", err)
	}
	s.logger.Info("zone deleted",
		zap.String("zone_id", id),
		zap.Int("clusters", len(clusters)),
		zap.Int64("agents", agents))
	return nil
}

// AddDemographic stores a demographic bucket in an existing zone
func (s *ZoneService) AddDemographic(ctx context.Context, d *model.Demographic) error {
	if _, err := s.Get(ctx, d.ZoneID); err != nil {
		return err
	}
	switch d.Kind {
	case model.DemographicAge, model.DemographicRegion, model.DemographicSocioProfessional:
	default:
		return &model.ValidationError{Field: "kind", Reason: "must be age, region or socio_professional"}
	}
	d.Label = strings.TrimSpace(d.Label)
	if d.Label == "" {
		return &model.ValidationError{Field: "label", Reason: "is required"}
	}
	if d.Weight < 0 {
		return &model.ValidationError{Field: "weight", Reason: "must not be negative"}
	}
	d.ID = uuid.New().String()
	if err := s.demographicRepo.Create(ctx, d); err != nil {
		return fmt.Errorf("failed to create demographic: %w", err)
	}
	return nil
}

// Demographics lists the buckets of a zone
func (s *ZoneService) Demographics(ctx context.Context, zoneID string) ([]*model.Demographic, error) {
	list, err := s.demographicRepo.ListByZone(ctx, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list demographics: %w", err)
	}
	return list, nil
}

// DeleteDemographic removes one bucket. Agents keep their stale reference.
func (s *ZoneService) DeleteDemographic(ctx context.Context, id string) error {
	if err := s.demographicRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete demographic: %w", err)
	}
	return nil
}
