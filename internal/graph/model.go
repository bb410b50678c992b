package graph

import (
	"errors"
	"sort"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

// ErrTagNotFound signals a tag-id search with zero matches. It is a user
// input miss, not a data error.
var ErrTagNotFound = errors.New("tag not found")

// ErrRelationNotFound signals a detail lookup for an unknown relation id.
var ErrRelationNotFound = errors.New("relation not found")

// Model is the fully built, immutable graph. Tenant filtering and every
// query below are pure projections: nothing here mutates the built state, so
// a single Model may be shared by concurrent readers.
type Model struct {
	nodes  []domain.Node
	edges  []domain.Edge
	colors map[string]string

	tags           []domain.TagRecord
	relations      map[int64]domain.RelationRecord
	nodeIndex      map[string]int
	edgeByRelation map[int64]int
}

// Empty reports whether the build produced no usable graph.
func (m *Model) Empty() bool {
	return len(m.nodes) == 0 && len(m.edges) == 0
}

// View returns the full unfiltered model.
func (m *Model) View() domain.View {
	return domain.View{Nodes: m.nodes, Edges: m.edges, Colors: m.colors}
}

// FilterByTenant projects the model down to the relations tagged for one
// tenant. An empty tenant id disables filtering. Colors, offsets and node
// relation lists are never recomputed; the projection references the objects
// built for the full model.
func (m *Model) FilterByTenant(tenantID string) domain.View {
	if tenantID == "" {
		return m.View()
	}

	relationIDs := make(map[int64]bool)
	for _, tag := range m.tags {
		if tag.IsDeleted || tag.TenantID != tenantID {
			continue
		}
		for _, id := range tag.RelationIDs {
			relationIDs[id] = true
		}
	}

	tableNames := make(map[string]bool)
	for id := range relationIDs {
		rel, ok := m.relations[id]
		if !ok {
			continue
		}
		tableNames[bareTableName(rel.SrcTable)] = true
		tableNames[bareTableName(rel.DstTable)] = true
	}

	nodes := make([]domain.Node, 0, len(tableNames))
	for _, n := range m.nodes {
		if tableNames[n.ID] {
			nodes = append(nodes, n)
		}
	}
	edges := make([]domain.Edge, 0, len(relationIDs))
	for _, e := range m.edges {
		if relationIDs[e.RelationID] {
			edges = append(edges, e)
		}
	}

	return domain.View{Nodes: nodes, Edges: edges, Colors: m.colors}
}

// Tenants returns the distinct non-deleted tenant ids, sorted ascending.
func (m *Model) Tenants() []string {
	seen := make(map[string]bool)
	for _, tag := range m.tags {
		if tag.IsDeleted || tag.TenantID == "" {
			continue
		}
		seen[tag.TenantID] = true
	}
	tenants := make([]string, 0, len(seen))
	for id := range seen {
		tenants = append(tenants, id)
	}
	sort.Strings(tenants)
	return tenants
}

// TagStatistics summarizes each tag name with at least one non-deleted
// occurrence: occurrence count, assigned color, and the distinct relation
// ids it references. Entries follow first-occurrence order.
func (m *Model) TagStatistics() []domain.TagStat {
	order := make([]string, 0)
	byName := make(map[string]*domain.TagStat)
	relSeen := make(map[string]map[int64]bool)

	for _, tag := range m.tags {
		if tag.IsDeleted {
			continue
		}
		stat, ok := byName[tag.TagName]
		if !ok {
			stat = &domain.TagStat{TagName: tag.TagName, Color: m.colors[tag.TagName]}
			byName[tag.TagName] = stat
			relSeen[tag.TagName] = make(map[int64]bool)
			order = append(order, tag.TagName)
		}
		stat.Count++
		for _, id := range tag.RelationIDs {
			if !relSeen[tag.TagName][id] {
				relSeen[tag.TagName][id] = true
				stat.RelationIDs = append(stat.RelationIDs, id)
			}
		}
	}

	stats := make([]domain.TagStat, 0, len(order))
	for _, name := range order {
		stats = append(stats, *byName[name])
	}
	return stats
}

// RelationByID is a direct lookup for the detail panel.
func (m *Model) RelationByID(id int64) (domain.RelationRecord, error) {
	rel, ok := m.relations[id]
	if !ok {
		return domain.RelationRecord{}, ErrRelationNotFound
	}
	return rel, nil
}

// TagDetailsByName returns the non-deleted occurrences of a tag name and the
// distinct relations they reference.
func (m *Model) TagDetailsByName(name string) (domain.TagDetails, error) {
	details := domain.TagDetails{TagName: name, Color: m.colors[name]}
	seen := make(map[int64]bool)
	for _, tag := range m.tags {
		if tag.IsDeleted || tag.TagName != name {
			continue
		}
		details.Occurrences = append(details.Occurrences, tag)
		for _, id := range tag.RelationIDs {
			if !seen[id] {
				seen[id] = true
				details.RelationIDs = append(details.RelationIDs, id)
			}
		}
	}
	if len(details.Occurrences) == 0 {
		return domain.TagDetails{}, ErrTagNotFound
	}
	return details, nil
}

// SearchTag resolves a tag id to the edges it should highlight: the union of
// relation ids over every non-deleted tag with that id. Zero matches return
// ErrTagNotFound so the caller can surface a transient "not found" message.
func (m *Model) SearchTag(tagID string) (domain.SearchResult, error) {
	result := domain.SearchResult{TagID: tagID}
	seen := make(map[int64]bool)
	for _, tag := range m.tags {
		if tag.IsDeleted || tag.TagID != tagID {
			continue
		}
		result.Tags = append(result.Tags, tag)
		for _, id := range tag.RelationIDs {
			if !seen[id] {
				seen[id] = true
				result.RelationIDs = append(result.RelationIDs, id)
			}
		}
	}
	if len(result.Tags) == 0 {
		return domain.SearchResult{}, ErrTagNotFound
	}

	for _, id := range result.RelationIDs {
		if i, ok := m.edgeByRelation[id]; ok {
			result.EdgeIDs = append(result.EdgeIDs, m.edges[i].ID)
		}
	}
	return result, nil
}

// Snapshot assembles the export dump for the given tenant scope. Deleted
// tags are excluded, matching every other derived view.
func (m *Model) Snapshot(tenantID string) domain.Snapshot {
	view := m.FilterByTenant(tenantID)

	tags := make([]domain.TagRecord, 0)
	for _, tag := range m.tags {
		if tag.IsDeleted {
			continue
		}
		if tenantID != "" && tag.TenantID != tenantID {
			continue
		}
		tags = append(tags, tag)
	}

	relations := make([]domain.RelationRecord, 0, len(view.Edges))
	for _, e := range view.Edges {
		if rel, ok := m.relations[e.RelationID]; ok {
			relations = append(relations, rel)
		}
	}

	return domain.Snapshot{
		TenantID:   tenantID,
		Nodes:      view.Nodes,
		Edges:      view.Edges,
		Tags:       tags,
		Relations:  relations,
		Statistics: m.TagStatistics(),
	}
}
