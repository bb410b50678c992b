package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leesurelye/relations-visualization/internal/application"
	"github.com/leesurelye/relations-visualization/internal/domain"
)

type stubRepo struct {
	tokens map[string]domain.APIToken
	runs   []domain.ImportRun
}

func newStubRepo() *stubRepo {
	return &stubRepo{tokens: map[string]domain.APIToken{}}
}

func (s *stubRepo) ReplaceDatasets(context.Context, []domain.TagRecord, []domain.RelationRecord) error {
	return nil
}

func (s *stubRepo) ListTags(context.Context) ([]domain.TagRecord, error) { return nil, nil }

func (s *stubRepo) ListRelations(context.Context) ([]domain.RelationRecord, error) { return nil, nil }

func (s *stubRepo) CreateImportRun(_ context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	s.runs = append(s.runs, run)
	return run, nil
}

func (s *stubRepo) ListImportRuns(context.Context, int) ([]domain.ImportRun, error) {
	return s.runs, nil
}

func (s *stubRepo) CreateAPIToken(_ context.Context, token domain.APIToken) (domain.APIToken, error) {
	s.tokens[token.TokenHash] = token
	return token, nil
}

func (s *stubRepo) GetAPITokenByHash(_ context.Context, hash string) (domain.APIToken, error) {
	token, ok := s.tokens[hash]
	if !ok {
		return domain.APIToken{}, errors.New("not found")
	}
	return token, nil
}

func (s *stubRepo) DeleteAPITokenByHash(_ context.Context, hash string) error {
	delete(s.tokens, hash)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *application.MapService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewMapService(newStubRepo(), logger, domain.DefaultLayout())
	require.NoError(t, svc.SetAdminPassword("s3cret"))

	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "billing", SrcDataset: "s.orders", DstDataset: "s.customers", RelationIDs: []int64{1}, TenantID: "acme"},
		{TagID: "T2", TagName: "reporting", SrcDataset: "s.customers", DstDataset: "s.addresses", RelationIDs: []int64{2}, TenantID: "globex"},
	}
	relations := []domain.RelationRecord{
		{ID: 1, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToMany, Direction: "forward"},
		{ID: 2, SrcTable: "s.customers", DstTable: "s.addresses", Type: domain.RelationOneToOne, Direction: "forward"},
	}
	svc.LoadRecords(tags, relations)

	srv := httptest.NewServer(NewRouter(svc))
	t.Cleanup(srv.Close)
	return srv, svc
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestGraphEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var view domain.View
	resp := getJSON(t, srv.URL+"/api/graph", &view)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Edges, 2)
	assert.Contains(t, view.Colors, "billing")
}

func TestGraphEndpointTenantFilter(t *testing.T) {
	srv, _ := newTestServer(t)

	var view domain.View
	getJSON(t, srv.URL+"/api/graph?tenant=acme", &view)
	assert.Len(t, view.Edges, 1)
	assert.Equal(t, "relation-1", view.Edges[0].ID)
}

func TestTenantsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Tenants []string `json:"tenants"`
	}
	getJSON(t, srv.URL+"/api/tenants", &body)
	assert.Equal(t, []string{"acme", "globex"}, body.Tenants)
}

func TestTagStatisticsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Statistics []domain.TagStat `json:"statistics"`
	}
	getJSON(t, srv.URL+"/api/tags/statistics", &body)
	require.Len(t, body.Statistics, 2)
	assert.Equal(t, "billing", body.Statistics[0].TagName)
}

func TestTagDetailsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var details domain.TagDetails
	resp := getJSON(t, srv.URL+"/api/tags/billing", &details)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "billing", details.TagName)

	resp = getJSON(t, srv.URL+"/api/tags/nonsense", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRelationEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var relation domain.RelationRecord
	resp := getJSON(t, srv.URL+"/api/relations/1", &relation)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s.orders", relation.SrcTable)

	resp = getJSON(t, srv.URL+"/api/relations/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/relations/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var result domain.SearchResult
	resp := getJSON(t, srv.URL+"/api/search?tag_id=T1", &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"relation-1"}, result.EdgeIDs)

	resp = getJSON(t, srv.URL+"/api/search?tag_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var snap domain.Snapshot
	resp := getJSON(t, srv.URL+"/api/export?tenant=acme", &snap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, snap.SnapshotID)
	assert.Equal(t, "acme", snap.TenantID)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), snap.SnapshotID)
}

func TestLayoutEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var layout domain.LayoutConfig
	getJSON(t, srv.URL+"/api/layout", &layout)
	assert.Equal(t, domain.DefaultLayout(), layout)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getJSON(t, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReloadRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/datasets/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginAndAuthorizedReload(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"password": "s3cret", "token_name": "test"})
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/datasets/reload", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	client := &http.Client{Timeout: 5 * time.Second}
	reloadResp, err := client.Do(req)
	require.NoError(t, err)
	reloadResp.Body.Close()
	assert.Equal(t, http.StatusOK, reloadResp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"password": "wrong"})
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
