package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

type memoryRepo struct {
	tags      []domain.TagRecord
	relations []domain.RelationRecord
	runs      []domain.ImportRun
	tokens    map[string]domain.APIToken
	failLoad  bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tokens: map[string]domain.APIToken{}}
}

func (m *memoryRepo) ReplaceDatasets(_ context.Context, tags []domain.TagRecord, relations []domain.RelationRecord) error {
	m.tags = tags
	m.relations = relations
	return nil
}

func (m *memoryRepo) ListTags(context.Context) ([]domain.TagRecord, error) {
	if m.failLoad {
		return nil, errors.New("db gone")
	}
	return m.tags, nil
}

func (m *memoryRepo) ListRelations(context.Context) ([]domain.RelationRecord, error) {
	if m.failLoad {
		return nil, errors.New("db gone")
	}
	return m.relations, nil
}

func (m *memoryRepo) CreateImportRun(_ context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	run.ID = uint(len(m.runs) + 1)
	run.CreatedAt = time.Now().UTC()
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *memoryRepo) ListImportRuns(_ context.Context, limit int) ([]domain.ImportRun, error) {
	if limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]domain.ImportRun, limit)
	copy(out, m.runs[len(m.runs)-limit:])
	return out, nil
}

func (m *memoryRepo) CreateAPIToken(_ context.Context, token domain.APIToken) (domain.APIToken, error) {
	token.ID = uint(len(m.tokens) + 1)
	token.CreatedAt = time.Now().UTC()
	m.tokens[token.TokenHash] = token
	return token, nil
}

func (m *memoryRepo) GetAPITokenByHash(_ context.Context, hash string) (domain.APIToken, error) {
	token, ok := m.tokens[hash]
	if !ok {
		return domain.APIToken{}, errors.New("token not found")
	}
	return token, nil
}

func (m *memoryRepo) DeleteAPITokenByHash(_ context.Context, hash string) error {
	delete(m.tokens, hash)
	return nil
}

type staticSource struct {
	tags      []domain.TagRecord
	relations []domain.RelationRecord
	err       error
}

func (s staticSource) Load(context.Context) ([]domain.TagRecord, []domain.RelationRecord, error) {
	return s.tags, s.relations, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleData() ([]domain.TagRecord, []domain.RelationRecord) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "billing", SrcDataset: "s.orders", DstDataset: "s.customers", RelationIDs: []int64{1}, TenantID: "acme"},
		{TagID: "T2", TagName: "reporting", SrcDataset: "s.customers", DstDataset: "s.addresses", RelationIDs: []int64{2}, TenantID: "globex"},
	}
	relations := []domain.RelationRecord{
		{ID: 1, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToMany, Direction: "forward"},
		{ID: 2, SrcTable: "s.customers", DstTable: "s.addresses", Type: domain.RelationOneToOne, Direction: "forward"},
	}
	return tags, relations
}

func TestLoadRecordsSwapsModel(t *testing.T) {
	svc := NewMapService(newMemoryRepo(), testLogger(), domain.DefaultLayout())

	assert.Empty(t, svc.Graph("").Nodes)

	tags, relations := sampleData()
	svc.LoadRecords(tags, relations)

	view := svc.Graph("")
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Edges, 2)
	assert.Equal(t, []string{"acme", "globex"}, svc.Tenants())
}

func TestReloadFromSourcePersistsAndRecordsImport(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewMapService(repo, testLogger(), domain.DefaultLayout())
	tags, relations := sampleData()
	svc.SetSource(staticSource{tags: tags, relations: relations})

	require.NoError(t, svc.Reload(context.Background()))

	assert.Len(t, repo.tags, 2)
	assert.Len(t, repo.relations, 2)
	require.Len(t, repo.runs, 1)
	assert.Equal(t, "reload", repo.runs[0].Source)
	assert.Equal(t, 2, repo.runs[0].TagCount)
	assert.NotEmpty(t, repo.runs[0].Checksum)
}

func TestReloadFailureKeepsPreviousModel(t *testing.T) {
	svc := NewMapService(newMemoryRepo(), testLogger(), domain.DefaultLayout())
	tags, relations := sampleData()
	svc.LoadRecords(tags, relations)

	svc.SetSource(staticSource{err: errors.New("upstream down")})
	err := svc.Reload(context.Background())
	require.Error(t, err)

	view := svc.Graph("")
	assert.Len(t, view.Nodes, 3, "previous model must survive a failed reload")
}

func TestReloadWithoutSourceFallsBackToStore(t *testing.T) {
	repo := newMemoryRepo()
	repo.tags, repo.relations = sampleData()
	svc := NewMapService(repo, testLogger(), domain.DefaultLayout())

	require.NoError(t, svc.Reload(context.Background()))
	assert.Len(t, svc.Graph("").Edges, 2)
}

func TestImportDatasetsRejectsEmptyInput(t *testing.T) {
	svc := NewMapService(newMemoryRepo(), testLogger(), domain.DefaultLayout())
	err := svc.ImportDatasets(context.Background(), nil, nil, "file")
	require.Error(t, err)
}

func TestExportStampsSnapshot(t *testing.T) {
	svc := NewMapService(newMemoryRepo(), testLogger(), domain.DefaultLayout())
	tags, relations := sampleData()
	svc.LoadRecords(tags, relations)

	snap := svc.Export("acme")
	assert.NotEmpty(t, snap.SnapshotID)
	assert.False(t, snap.GeneratedAt.IsZero())
	assert.Equal(t, "acme", snap.TenantID)
	assert.Len(t, snap.Edges, 1)

	other := svc.Export("acme")
	assert.NotEqual(t, snap.SnapshotID, other.SnapshotID)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewMapService(repo, testLogger(), domain.DefaultLayout())
	require.NoError(t, svc.SetAdminPassword("s3cret"))

	_, err := svc.Login(context.Background(), "wrong", "cli", time.Hour)
	require.Error(t, err)

	token, err := svc.Login(context.Background(), "s3cret", "cli", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.AuthenticateToken(context.Background(), token))
	assert.ErrorIs(t, svc.AuthenticateToken(context.Background(), "bogus"), ErrUnauthorized)

	require.NoError(t, svc.Logout(context.Background(), token))
	assert.ErrorIs(t, svc.AuthenticateToken(context.Background(), token), ErrUnauthorized)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewMapService(repo, testLogger(), domain.DefaultLayout())
	require.NoError(t, svc.SetAdminPassword("s3cret"))

	token, err := svc.Login(context.Background(), "s3cret", "cli", -time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.AuthenticateToken(context.Background(), token), ErrUnauthorized)
}
