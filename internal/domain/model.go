package domain

import (
	"encoding/json"
	"time"
)

// RelationType is the cardinality of a table relation.
type RelationType string

const (
	RelationOneToOne  RelationType = "ONE_TO_ONE"
	RelationOneToMany RelationType = "ONE_TO_MANY"
)

// TagRecord is a semantic label applied to one or more table relations,
// scoped to a tenant. Relation ids are normalized to int64 at the ingestion
// boundary; the external dataset encodes them as strings.
type TagRecord struct {
	TagID       string  `json:"tag_id"`
	TagName     string  `json:"tag_name"`
	SrcDataset  string  `json:"src_dataset"`
	DstDataset  string  `json:"dst_dataset"`
	RelationIDs []int64 `json:"relation_ids"`
	TenantID    string  `json:"tenant_id"`
	IsDeleted   bool    `json:"is_deleted"`
}

// RelationRecord is a directed join definition between two dot-qualified
// tables. Condition is an opaque structured join condition passed through
// to the display layer untouched.
type RelationRecord struct {
	ID        int64           `json:"id"`
	SrcTable  string          `json:"src_table"`
	DstTable  string          `json:"dst_table"`
	Type      RelationType    `json:"type"`
	Direction string          `json:"direction,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
}

// Node is a graph vertex for one bare (unqualified) table name. Relations
// lists every relation id touching the table, once per occurrence as source
// or destination.
type Node struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Relations []int64 `json:"relations"`
}

// Edge is a graph arc for exactly one relation, annotated with every
// non-deleted tag that references it. Offset ranks parallel edges between
// the same unordered node pair for visual separation.
type Edge struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Target     string          `json:"target"`
	RelationID int64           `json:"relation_id"`
	TagIDs     []string        `json:"tag_ids"`
	TagNames   []string        `json:"tag_names"`
	Color      string          `json:"color"`
	Type       RelationType    `json:"type"`
	Direction  string          `json:"direction,omitempty"`
	Condition  json.RawMessage `json:"condition,omitempty"`
	Offset     int             `json:"offset"`
}

// View is what the rendering engine consumes: node/edge sequences plus the
// tag-name color assignment. Filtered views share the color map of the full
// model so colors stay stable under tenant filtering.
type View struct {
	Nodes  []Node            `json:"nodes"`
	Edges  []Edge            `json:"edges"`
	Colors map[string]string `json:"colors"`
}

// TagStat summarizes one tag name over the built model.
type TagStat struct {
	TagName     string  `json:"tag_name"`
	Count       int     `json:"count"`
	Color       string  `json:"color"`
	RelationIDs []int64 `json:"relation_ids"`
}

// TagDetails backs the detail panel for a single tag name.
type TagDetails struct {
	TagName     string      `json:"tag_name"`
	Color       string      `json:"color"`
	Occurrences []TagRecord `json:"occurrences"`
	RelationIDs []int64     `json:"relation_ids"`
}

// SearchResult is the outcome of a tag-id search: the matching non-deleted
// tags, the union of their relation ids and the edges to highlight.
type SearchResult struct {
	TagID       string      `json:"tag_id"`
	Tags        []TagRecord `json:"tags"`
	RelationIDs []int64     `json:"relation_ids"`
	EdgeIDs     []string    `json:"edge_ids"`
}

// LayoutConfig carries the force-simulation tuning handed to the external
// layout engine. ContinuousAnimation keeps the simulation alive at low
// intensity instead of letting it settle; disable it for deterministic
// snapshots.
type LayoutConfig struct {
	LinkDistance        float64 `json:"link_distance" yaml:"link_distance"`
	LinkStrength        float64 `json:"link_strength" yaml:"link_strength"`
	ChargeStrength      float64 `json:"charge_strength" yaml:"charge_strength"`
	CollideRadius       float64 `json:"collide_radius" yaml:"collide_radius"`
	ContinuousAnimation bool    `json:"continuous_animation" yaml:"continuous_animation"`
}

// DefaultLayout returns the tuning used when no configuration overrides it.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		LinkDistance:        120,
		LinkStrength:        0.4,
		ChargeStrength:      -300,
		CollideRadius:       48,
		ContinuousAnimation: true,
	}
}

// Snapshot is the JSON dump produced by the export action for the current
// (possibly tenant-filtered) model.
type Snapshot struct {
	SnapshotID  string           `json:"snapshot_id"`
	TenantID    string           `json:"tenant_id,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
	Nodes       []Node           `json:"nodes"`
	Edges       []Edge           `json:"edges"`
	Tags        []TagRecord      `json:"tags"`
	Relations   []RelationRecord `json:"relations"`
	Statistics  []TagStat        `json:"statistics"`
}

// ImportRun records one dataset ingestion for audit purposes.
type ImportRun struct {
	ID            uint      `json:"id"`
	Source        string    `json:"source"`
	TagCount      int       `json:"tag_count"`
	RelationCount int       `json:"relation_count"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
}

// APIToken authorizes mutating operations (dataset reload, import over RPC).
type APIToken struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	TokenHash string     `json:"-"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
