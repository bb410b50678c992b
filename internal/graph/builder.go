// Package graph turns the two flat relation-map datasets into the
// deduplicated node/edge model the layout engine consumes. Building is a
// single pass join: nodes come from the relation endpoints, edges from the
// tag -> relation references, colors from tag-name first occurrence.
package graph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leesurelye/relations-visualization/internal/domain"
)

// Build constructs the full model from the raw datasets. It never fails hard:
// empty or unusable input yields an empty-but-valid model with a diagnostic,
// and individual dangling references are skipped with a warning so the graph
// degrades to whatever is resolvable.
func Build(tags []domain.TagRecord, relations []domain.RelationRecord, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Model{
		colors:         buildColorMap(tags),
		tags:           tags,
		relations:      make(map[int64]domain.RelationRecord, len(relations)),
		nodeIndex:      make(map[string]int),
		edgeByRelation: make(map[int64]int),
	}

	if len(tags) == 0 || len(relations) == 0 {
		logger.Warn("graph build skipped: empty dataset",
			"tags", len(tags), "relations", len(relations))
		return m
	}

	for _, rel := range relations {
		m.relations[rel.ID] = rel
	}

	m.nodes = buildNodes(relations, m.nodeIndex)
	m.edges = buildEdges(tags, m, logger)
	for i, e := range m.edges {
		m.edgeByRelation[e.RelationID] = i
	}

	return m
}

// buildColorMap assigns palette colors to distinct tag names in
// first-occurrence order over the full tag set. Soft-deleted tags keep their
// slot so colors stay stable if a tag is later restored.
func buildColorMap(tags []domain.TagRecord) map[string]string {
	colors := make(map[string]string)
	next := 0
	for _, t := range tags {
		if _, ok := colors[t.TagName]; ok {
			continue
		}
		colors[t.TagName] = colorAt(next)
		next++
	}
	return colors
}

// buildNodes creates one node per distinct bare table name and appends the
// relation id for every endpoint occurrence. The list is intentionally not
// deduplicated: a relation touching a table on both ends lists it twice.
func buildNodes(relations []domain.RelationRecord, index map[string]int) []domain.Node {
	nodes := make([]domain.Node, 0)
	touch := func(qualified string, relationID int64) {
		name := bareTableName(qualified)
		i, ok := index[name]
		if !ok {
			i = len(nodes)
			index[name] = i
			nodes = append(nodes, domain.Node{ID: name, Name: name})
		}
		nodes[i].Relations = append(nodes[i].Relations, relationID)
	}

	for _, rel := range relations {
		touch(rel.SrcTable, rel.ID)
		touch(rel.DstTable, rel.ID)
	}
	return nodes
}

func buildEdges(tags []domain.TagRecord, m *Model, logger *slog.Logger) []domain.Edge {
	edges := make([]domain.Edge, 0)
	seen := make(map[int64]bool)
	pairSeq := make(map[[2]string]int)

	for _, tag := range tags {
		if tag.IsDeleted {
			continue
		}
		for _, relationID := range tag.RelationIDs {
			if seen[relationID] {
				continue
			}

			rel, ok := m.relations[relationID]
			if !ok {
				logger.Warn("tag references unknown relation",
					"tag", tag.TagName, "relation_id", relationID)
				continue
			}

			source := bareTableName(rel.SrcTable)
			target := bareTableName(rel.DstTable)
			if _, ok := m.nodeIndex[source]; !ok {
				logger.Warn("relation source table has no node",
					"relation_id", relationID, "table", rel.SrcTable)
				continue
			}
			if _, ok := m.nodeIndex[target]; !ok {
				logger.Warn("relation target table has no node",
					"relation_id", relationID, "table", rel.DstTable)
				continue
			}

			tagIDs, tagNames := referencingTags(tags, relationID)
			color := ""
			if len(tagNames) > 0 {
				color = m.colors[tagNames[0]]
			}

			edges = append(edges, domain.Edge{
				ID:         fmt.Sprintf("relation-%d", relationID),
				Source:     source,
				Target:     target,
				RelationID: relationID,
				TagIDs:     tagIDs,
				TagNames:   tagNames,
				Color:      color,
				Type:       rel.Type,
				Direction:  rel.Direction,
				Condition:  rel.Condition,
				Offset:     nextOffset(pairSeq, source, target),
			})
			seen[relationID] = true
		}
	}
	return edges
}

// nextOffset ranks edges sharing an unordered node pair. The counter is keyed
// by the directed pair but consulted forward-then-reverse, so A->B and B->A
// draw from the same sequence.
func nextOffset(pairSeq map[[2]string]int, source, target string) int {
	forward := [2]string{source, target}
	reverse := [2]string{target, source}

	if n, ok := pairSeq[forward]; ok {
		pairSeq[forward] = n + 1
		return n
	}
	if n, ok := pairSeq[reverse]; ok {
		pairSeq[reverse] = n + 1
		return n
	}
	pairSeq[forward] = 1
	return 0
}

// referencingTags collects every non-deleted tag whose relation list contains
// the given relation id, in tag iteration order.
func referencingTags(tags []domain.TagRecord, relationID int64) (ids, names []string) {
	for _, tag := range tags {
		if tag.IsDeleted {
			continue
		}
		for _, id := range tag.RelationIDs {
			if id == relationID {
				ids = append(ids, tag.TagID)
				names = append(names, tag.TagName)
				break
			}
		}
	}
	return ids, names
}

// bareTableName strips the dot qualifier: node identity is the last dot
// segment, so same-named tables from different tenants collapse into one
// node.
func bareTableName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
