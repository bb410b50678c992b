package graph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureRelations() []domain.RelationRecord {
	return []domain.RelationRecord{
		{ID: 1, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToMany},
		{ID: 2, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToOne},
		{ID: 3, SrcTable: "s.customers", DstTable: "s.addresses", Type: domain.RelationOneToMany},
	}
}

func TestBuildWorkedExample(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "a", RelationIDs: []int64{1, 2}, TenantID: "x"},
	}
	relations := []domain.RelationRecord{
		{ID: 1, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToMany},
		{ID: 2, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToOne},
	}

	m := Build(tags, relations, discardLogger())
	view := m.View()

	require.Len(t, view.Nodes, 2)
	assert.Equal(t, "orders", view.Nodes[0].ID)
	assert.Equal(t, "customers", view.Nodes[1].ID)

	require.Len(t, view.Edges, 2)
	assert.Equal(t, 0, view.Edges[0].Offset)
	assert.Equal(t, 1, view.Edges[1].Offset)
	assert.Equal(t, view.Edges[0].Color, view.Edges[1].Color)

	filtered := m.FilterByTenant("x")
	assert.Len(t, filtered.Edges, 2)
	assert.Len(t, filtered.Nodes, 2)

	other := m.FilterByTenant("y")
	assert.Empty(t, other.Edges)
	assert.Empty(t, other.Nodes)
}

func TestBuildDeduplicatesRelationAcrossTags(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "billing", RelationIDs: []int64{1}, TenantID: "x"},
		{TagID: "T2", TagName: "reporting", RelationIDs: []int64{1, 3}, TenantID: "x"},
	}

	m := Build(tags, fixtureRelations(), discardLogger())
	edges := m.View().Edges

	require.Len(t, edges, 2)

	// Relation 1 yields a single edge attributed to the first tag but
	// annotated with both.
	e := edges[0]
	assert.Equal(t, int64(1), e.RelationID)
	assert.Equal(t, []string{"billing", "reporting"}, e.TagNames)
	assert.Equal(t, []string{"T1", "T2"}, e.TagIDs)
	assert.Equal(t, m.View().Colors["billing"], e.Color)
}

func TestBuildOffsetsShareUnorderedPair(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "a", RelationIDs: []int64{1, 2, 4}, TenantID: "x"},
	}
	relations := []domain.RelationRecord{
		{ID: 1, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToMany},
		{ID: 2, SrcTable: "s.orders", DstTable: "s.customers", Type: domain.RelationOneToOne},
		// Reversed direction still counts against the same pair.
		{ID: 4, SrcTable: "s.customers", DstTable: "s.orders", Type: domain.RelationOneToMany},
	}

	m := Build(tags, relations, discardLogger())
	edges := m.View().Edges

	require.Len(t, edges, 3)
	assert.Equal(t, 0, edges[0].Offset)
	assert.Equal(t, 1, edges[1].Offset)
	assert.Equal(t, 2, edges[2].Offset)
}

func TestBuildColorAssignmentIsStable(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "a", RelationIDs: []int64{1}, TenantID: "x"},
		{TagID: "T2", TagName: "b", RelationIDs: []int64{2}, TenantID: "x", IsDeleted: true},
		{TagID: "T3", TagName: "c", RelationIDs: []int64{3}, TenantID: "y"},
		{TagID: "T4", TagName: "a", RelationIDs: []int64{3}, TenantID: "y"},
	}

	first := Build(tags, fixtureRelations(), discardLogger())
	second := Build(tags, fixtureRelations(), discardLogger())

	assert.Equal(t, first.View().Colors, second.View().Colors)

	colors := first.View().Colors
	// Deleted tags still claim a palette slot so restores keep their color.
	assert.Equal(t, colorAt(0), colors["a"])
	assert.Equal(t, colorAt(1), colors["b"])
	assert.Equal(t, colorAt(2), colors["c"])
}

func TestBuildPaletteWrapsAtTwenty(t *testing.T) {
	tags := make([]domain.TagRecord, 0, 21)
	for i := 0; i < 21; i++ {
		tags = append(tags, domain.TagRecord{
			TagID:   "T",
			TagName: string(rune('A' + i)),
		})
	}

	colors := buildColorMap(tags)
	assert.Equal(t, colors["A"], colors["U"])
	assert.NotEqual(t, colors["A"], colors["B"])
}

func TestBuildNodesCollapseQualifiedNames(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "a", RelationIDs: []int64{1, 2}, TenantID: "x"},
	}
	relations := []domain.RelationRecord{
		{ID: 1, SrcTable: "tenant_a.orders", DstTable: "tenant_a.customers", Type: domain.RelationOneToMany},
		{ID: 2, SrcTable: "tenant_b.orders", DstTable: "tenant_b.customers", Type: domain.RelationOneToMany},
	}

	m := Build(tags, relations, discardLogger())
	nodes := m.View().Nodes

	// Same bare name from different qualifiers is one node, and the
	// relation list keeps every endpoint occurrence.
	require.Len(t, nodes, 2)
	assert.Equal(t, []int64{1, 2}, nodes[0].Relations)
	assert.Equal(t, []int64{1, 2}, nodes[1].Relations)
}

func TestBuildSelfReferenceListsRelationTwice(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "a", RelationIDs: []int64{1}, TenantID: "x"},
	}
	relations := []domain.RelationRecord{
		{ID: 1, SrcTable: "s.employees", DstTable: "s.employees", Type: domain.RelationOneToMany},
	}

	m := Build(tags, relations, discardLogger())
	nodes := m.View().Nodes

	require.Len(t, nodes, 1)
	assert.Equal(t, []int64{1, 1}, nodes[0].Relations)
}

func TestBuildSkipsDanglingRelationReference(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "a", RelationIDs: []int64{1, 99}, TenantID: "x"},
	}

	m := Build(tags, fixtureRelations(), discardLogger())
	edges := m.View().Edges

	require.Len(t, edges, 1)
	assert.Equal(t, int64(1), edges[0].RelationID)
}

func TestBuildIgnoresDeletedTags(t *testing.T) {
	tags := []domain.TagRecord{
		{TagID: "T1", TagName: "a", RelationIDs: []int64{1}, TenantID: "x", IsDeleted: true},
		{TagID: "T2", TagName: "b", RelationIDs: []int64{1, 2}, TenantID: "x"},
	}

	m := Build(tags, fixtureRelations(), discardLogger())
	edges := m.View().Edges

	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.NotContains(t, e.TagNames, "a")
	}
}

func TestBuildEmptyInputs(t *testing.T) {
	m := Build(nil, nil, discardLogger())
	assert.True(t, m.Empty())
	assert.Empty(t, m.View().Nodes)
	assert.Empty(t, m.View().Edges)

	m = Build([]domain.TagRecord{{TagID: "T1", TagName: "a"}}, nil, discardLogger())
	assert.True(t, m.Empty())
}

func TestBareTableName(t *testing.T) {
	assert.Equal(t, "orders", bareTableName("warehouse.public.orders"))
	assert.Equal(t, "orders", bareTableName("s.orders"))
	assert.Equal(t, "orders", bareTableName("orders"))
}
