package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/leesurelye/relations-visualization/internal/domain"
	"github.com/leesurelye/relations-visualization/internal/graph"
)

// ErrNoSource is returned when a reload is requested but no dataset source
// or stored dataset is available.
var ErrNoSource = errors.New("no dataset source configured")

// ErrUnauthorized is returned for missing, unknown or expired tokens.
var ErrUnauthorized = errors.New("unauthorized")

// MapService owns the current graph model and every query over it. The model
// is built once per (re)load and swapped atomically; queries are pure
// projections so readers never block each other.
type MapService struct {
	repo   domain.DatasetRepository
	logger *slog.Logger
	layout domain.LayoutConfig

	source    domain.DatasetSource
	adminHash []byte

	mu    sync.RWMutex
	model *graph.Model
}

func NewMapService(repo domain.DatasetRepository, logger *slog.Logger, layout domain.LayoutConfig) *MapService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapService{
		repo:   repo,
		logger: logger,
		layout: layout,
		model:  graph.Build(nil, nil, logger),
	}
}

// SetSource attaches the external dataset source used by Reload.
func (s *MapService) SetSource(source domain.DatasetSource) {
	s.source = source
}

// SetAdminPassword hashes and stores the password that gates mutating
// operations.
func (s *MapService) SetAdminPassword(password string) error {
	if password == "" {
		return errors.New("admin password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.adminHash = hash
	return nil
}

// LoadRecords builds a fresh model from already-normalized records and swaps
// it in. Rebuilds are total and idempotent; there is no partial state to roll
// back.
func (s *MapService) LoadRecords(tags []domain.TagRecord, relations []domain.RelationRecord) {
	model := graph.Build(tags, relations, s.logger)
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	s.logger.Info("graph model rebuilt",
		"nodes", len(model.View().Nodes),
		"edges", len(model.View().Edges),
		"tenants", len(model.Tenants()))
}

// Reload fetches both datasets from the configured source, persists them and
// rebuilds the model. When no source is configured it falls back to the
// stored copy. On failure the previous model stays in place.
func (s *MapService) Reload(ctx context.Context) error {
	if s.source == nil {
		return s.LoadFromStore(ctx)
	}

	tags, relations, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load datasets: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.ReplaceDatasets(ctx, tags, relations); err != nil {
			return fmt.Errorf("persist datasets: %w", err)
		}
		_, _ = s.repo.CreateImportRun(ctx, domain.ImportRun{
			Source:        "reload",
			TagCount:      len(tags),
			RelationCount: len(relations),
			Checksum:      datasetChecksum(tags, relations),
		})
	}

	s.LoadRecords(tags, relations)
	return nil
}

// LoadFromStore rebuilds the model from the persisted dataset copy.
func (s *MapService) LoadFromStore(ctx context.Context) error {
	if s.repo == nil {
		return ErrNoSource
	}
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	relations, err := s.repo.ListRelations(ctx)
	if err != nil {
		return fmt.Errorf("list relations: %w", err)
	}
	s.LoadRecords(tags, relations)
	return nil
}

// ImportDatasets replaces the stored datasets with the given records,
// records the import and rebuilds the model.
func (s *MapService) ImportDatasets(ctx context.Context, tags []domain.TagRecord, relations []domain.RelationRecord, sourceLabel string) error {
	if len(tags) == 0 || len(relations) == 0 {
		return errors.New("both datasets must be non-empty")
	}
	if s.repo != nil {
		if err := s.repo.ReplaceDatasets(ctx, tags, relations); err != nil {
			return err
		}
		_, _ = s.repo.CreateImportRun(ctx, domain.ImportRun{
			Source:        sourceLabel,
			TagCount:      len(tags),
			RelationCount: len(relations),
			Checksum:      datasetChecksum(tags, relations),
		})
	}
	s.LoadRecords(tags, relations)
	return nil
}

func (s *MapService) current() *graph.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Graph returns the full or tenant-filtered view.
func (s *MapService) Graph(tenantID string) domain.View {
	return s.current().FilterByTenant(tenantID)
}

func (s *MapService) Tenants() []string {
	return s.current().Tenants()
}

func (s *MapService) TagStatistics() []domain.TagStat {
	return s.current().TagStatistics()
}

func (s *MapService) RelationByID(id int64) (domain.RelationRecord, error) {
	return s.current().RelationByID(id)
}

func (s *MapService) TagDetails(name string) (domain.TagDetails, error) {
	return s.current().TagDetailsByName(name)
}

// Search resolves a tag id to the edge set the renderer should highlight.
func (s *MapService) Search(tagID string) (domain.SearchResult, error) {
	return s.current().SearchTag(tagID)
}

// Export produces a uniquely identified snapshot of the current filtered
// model.
func (s *MapService) Export(tenantID string) domain.Snapshot {
	snap := s.current().Snapshot(tenantID)
	snap.SnapshotID = uuid.NewString()
	snap.GeneratedAt = time.Now().UTC()
	return snap
}

// Layout returns the force-simulation parameters for the external engine.
func (s *MapService) Layout() domain.LayoutConfig {
	return s.layout
}

func (s *MapService) ImportRuns(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	if s.repo == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 30
	}
	return s.repo.ListImportRuns(ctx, limit)
}

// Login exchanges the admin password for a bearer token valid for ttl.
func (s *MapService) Login(ctx context.Context, password, tokenName string, ttl time.Duration) (string, error) {
	if len(s.adminHash) == 0 {
		return "", errors.New("admin access is not configured")
	}
	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().UTC().Add(ttl)
	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}

// AuthenticateToken validates a bearer token against the stored hashes.
func (s *MapService) AuthenticateToken(ctx context.Context, token string) error {
	if token == "" || s.repo == nil {
		return ErrUnauthorized
	}
	stored, err := s.repo.GetAPITokenByHash(ctx, hashToken(token))
	if err != nil {
		return ErrUnauthorized
	}
	if stored.ExpiresAt != nil && stored.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.repo.DeleteAPITokenByHash(ctx, stored.TokenHash)
		return ErrUnauthorized
	}
	return nil
}

// Logout revokes a bearer token.
func (s *MapService) Logout(ctx context.Context, token string) error {
	if token == "" || s.repo == nil {
		return nil
	}
	return s.repo.DeleteAPITokenByHash(ctx, hashToken(token))
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

// datasetChecksum fingerprints an import so repeated ingestions of the same
// files are recognizable in the audit trail.
func datasetChecksum(tags []domain.TagRecord, relations []domain.RelationRecord) string {
	h := sha256.New()
	for _, t := range tags {
		fmt.Fprintf(h, "t:%s:%s:%s:%v:%v\n", t.TagID, t.TagName, t.TenantID, t.RelationIDs, t.IsDeleted)
	}
	for _, r := range relations {
		fmt.Fprintf(h, "r:%d:%s:%s:%s\n", r.ID, r.SrcTable, r.DstTable, r.Type)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func defaultString(input, fallback string) string {
	if input == "" {
		return fallback
	}
	return input
}
