package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

type DatasetRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// ReplaceDatasets swaps the stored dataset copy in one transaction. Row
// positions record the incoming order, which ListTags and ListRelations
// replay.
func (r *DatasetRepository) ReplaceDatasets(ctx context.Context, tags []domain.TagRecord, relations []domain.RelationRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&TagModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&RelationModel{}).Error; err != nil {
			return err
		}

		for i, tag := range tags {
			relIDs, err := json.Marshal(tag.RelationIDs)
			if err != nil {
				return fmt.Errorf("encode relation ids for tag %s: %w", tag.TagID, err)
			}
			m := TagModel{
				TagID:       tag.TagID,
				TagName:     tag.TagName,
				SrcDataset:  tag.SrcDataset,
				DstDataset:  tag.DstDataset,
				RelationIDs: string(relIDs),
				TenantID:    tag.TenantID,
				IsDeleted:   tag.IsDeleted,
				Position:    i,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}

		for i, rel := range relations {
			m := RelationModel{
				ID:        rel.ID,
				SrcTable:  rel.SrcTable,
				DstTable:  rel.DstTable,
				Type:      string(rel.Type),
				Direction: rel.Direction,
				Condition: string(rel.Condition),
				Position:  i,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DatasetRepository) ListTags(ctx context.Context) ([]domain.TagRecord, error) {
	rows := make([]TagModel, 0)
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.TagRecord, 0, len(rows))
	for _, m := range rows {
		relIDs := make([]int64, 0)
		if m.RelationIDs != "" {
			if err := json.Unmarshal([]byte(m.RelationIDs), &relIDs); err != nil {
				return nil, fmt.Errorf("decode relation ids for tag %s: %w", m.TagID, err)
			}
		}
		result = append(result, domain.TagRecord{
			TagID:       m.TagID,
			TagName:     m.TagName,
			SrcDataset:  m.SrcDataset,
			DstDataset:  m.DstDataset,
			RelationIDs: relIDs,
			TenantID:    m.TenantID,
			IsDeleted:   m.IsDeleted,
		})
	}
	return result, nil
}

func (r *DatasetRepository) ListRelations(ctx context.Context) ([]domain.RelationRecord, error) {
	rows := make([]RelationModel, 0)
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.RelationRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.RelationRecord{
			ID:        m.ID,
			SrcTable:  m.SrcTable,
			DstTable:  m.DstTable,
			Type:      domain.RelationType(m.Type),
			Direction: m.Direction,
			Condition: json.RawMessage(m.Condition),
		})
	}
	return result, nil
}

func (r *DatasetRepository) CreateImportRun(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	m := ImportRunModel{
		Source:        run.Source,
		TagCount:      run.TagCount,
		RelationCount: run.RelationCount,
		Checksum:      run.Checksum,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.ImportRun{}, err
	}
	run.ID = m.ID
	run.CreatedAt = m.CreatedAt
	return run, nil
}

func (r *DatasetRepository) ListImportRuns(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 30
	}
	rows := make([]ImportRunModel, 0)
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.ImportRun, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ImportRun{
			ID:            m.ID,
			Source:        m.Source,
			TagCount:      m.TagCount,
			RelationCount: m.RelationCount,
			Checksum:      m.Checksum,
			CreatedAt:     m.CreatedAt,
		})
	}
	return result, nil
}

func (r *DatasetRepository) CreateAPIToken(ctx context.Context, token domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{
		Name:      token.Name,
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	token.ID = m.ID
	token.CreatedAt = m.CreatedAt
	return token, nil
}

func (r *DatasetRepository) GetAPITokenByHash(ctx context.Context, hash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	return domain.APIToken{
		ID:        m.ID,
		Name:      m.Name,
		TokenHash: m.TokenHash,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}, nil
}

func (r *DatasetRepository) DeleteAPITokenByHash(ctx context.Context, hash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&APITokenModel{}).Error
}
