// Package loader ingests the tag and relation datasets from local files or
// HTTP endpoints and normalizes them into domain records.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

// rawTag mirrors the upstream tag dataset. Relation ids arrive as decimal
// strings and are canonicalized to int64 here, at the ingestion boundary.
type rawTag struct {
	TagID       string   `json:"tag_id"`
	TagName     string   `json:"tag_name"`
	SrcDataset  string   `json:"src_dataset"`
	DstDataset  string   `json:"dst_dataset"`
	RelationIDs []string `json:"relation_ids"`
	TenantID    string   `json:"tenant_id"`
	IsDeleted   bool     `json:"is_deleted"`
}

type rawRelation struct {
	ID        json.Number     `json:"id"`
	SrcTable  string          `json:"src_table"`
	DstTable  string          `json:"dst_table"`
	Type      string          `json:"type"`
	Direction string          `json:"direction"`
	Condition json.RawMessage `json:"condition"`
}

// Source fetches both datasets. Paths may be local files or http(s) URLs.
type Source struct {
	tagsPath      string
	relationsPath string
	client        *http.Client
	logger        *slog.Logger
}

func NewSource(tagsPath, relationsPath string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		tagsPath:      tagsPath,
		relationsPath: relationsPath,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

// Load fetches and parses both datasets concurrently. Either dataset failing
// to fetch or parse fails the whole load; per-record anomalies are logged
// and skipped instead.
func (s *Source) Load(ctx context.Context) ([]domain.TagRecord, []domain.RelationRecord, error) {
	var (
		rawTags      []rawTag
		rawRelations []rawRelation
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.fetch(ctx, s.tagsPath)
		if err != nil {
			return fmt.Errorf("tags dataset: %w", err)
		}
		if err := json.Unmarshal(data, &rawTags); err != nil {
			return fmt.Errorf("tags dataset: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		data, err := s.fetch(ctx, s.relationsPath)
		if err != nil {
			return fmt.Errorf("relations dataset: %w", err)
		}
		if err := json.Unmarshal(data, &rawRelations); err != nil {
			return fmt.Errorf("relations dataset: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return s.normalizeTags(rawTags), s.normalizeRelations(rawRelations), nil
}

func (s *Source) fetch(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(path)
}

func (s *Source) normalizeTags(raw []rawTag) []domain.TagRecord {
	tags := make([]domain.TagRecord, 0, len(raw))
	for _, r := range raw {
		tag := domain.TagRecord{
			TagID:      r.TagID,
			TagName:    r.TagName,
			SrcDataset: r.SrcDataset,
			DstDataset: r.DstDataset,
			TenantID:   r.TenantID,
			IsDeleted:  r.IsDeleted,
		}
		tag.RelationIDs = make([]int64, 0, len(r.RelationIDs))
		for _, idStr := range r.RelationIDs {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				s.logger.Warn("skipping malformed relation id on tag",
					"tag_id", r.TagID, "relation_id", idStr)
				continue
			}
			tag.RelationIDs = append(tag.RelationIDs, id)
		}
		tags = append(tags, tag)
	}
	return tags
}

func (s *Source) normalizeRelations(raw []rawRelation) []domain.RelationRecord {
	relations := make([]domain.RelationRecord, 0, len(raw))
	for _, r := range raw {
		id, err := r.ID.Int64()
		if err != nil {
			s.logger.Warn("skipping relation with malformed id", "id", r.ID.String())
			continue
		}
		relType := domain.RelationType(r.Type)
		if relType != domain.RelationOneToOne && relType != domain.RelationOneToMany {
			s.logger.Warn("relation has unrecognized type", "id", id, "type", r.Type)
		}
		relations = append(relations, domain.RelationRecord{
			ID:        id,
			SrcTable:  r.SrcTable,
			DstTable:  r.DstTable,
			Type:      relType,
			Direction: r.Direction,
			Condition: r.Condition,
		})
	}
	return relations
}
