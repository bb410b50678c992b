package domain

import "context"

// DatasetRepository persists the imported tag and relation datasets plus the
// auth/audit records around them.
type DatasetRepository interface {
	ReplaceDatasets(ctx context.Context, tags []TagRecord, relations []RelationRecord) error
	ListTags(ctx context.Context) ([]TagRecord, error)
	ListRelations(ctx context.Context) ([]RelationRecord, error)

	CreateImportRun(ctx context.Context, value ImportRun) (ImportRun, error)
	ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error)

	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByHash(ctx context.Context, tokenHash string) (APIToken, error)
	DeleteAPITokenByHash(ctx context.Context, tokenHash string) error
}

// DatasetSource loads the two raw datasets from their external
// representation. Both must resolve before graph construction begins.
type DatasetSource interface {
	Load(ctx context.Context) ([]TagRecord, []RelationRecord, error)
}

// Renderer is the capability an interaction layer implements against its
// graphics toolkit. The server never renders; it hands views and highlight
// sets across this boundary.
type Renderer interface {
	RenderGraph(view View) error
	HighlightEdges(edgeIDs []string) error
	HighlightNode(nodeID string) error
	ResetView() error
}
