package sqlite

import "time"

// Position preserves the upstream dataset order across a round-trip. Color
// assignment depends on first occurrence, so listing must replay the import
// order exactly.
type TagModel struct {
	ID          uint   `gorm:"primaryKey"`
	TagID       string `gorm:"not null;index"`
	TagName     string `gorm:"not null;index"`
	SrcDataset  string `gorm:"not null"`
	DstDataset  string `gorm:"not null"`
	RelationIDs string `gorm:"not null;default:'[]'"`
	TenantID    string `gorm:"not null;default:'';index"`
	IsDeleted   bool   `gorm:"not null;default:false"`
	Position    int    `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (TagModel) TableName() string { return "tags" }

type RelationModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	SrcTable  string `gorm:"not null"`
	DstTable  string `gorm:"not null"`
	Type      string `gorm:"not null"`
	Direction string `gorm:"not null;default:''"`
	Condition string `gorm:"not null;default:''"`
	Position  int    `gorm:"not null;index"`
	CreatedAt time.Time
}

func (RelationModel) TableName() string { return "relations" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type ImportRunModel struct {
	ID            uint   `gorm:"primaryKey"`
	Source        string `gorm:"not null"`
	TagCount      int    `gorm:"not null"`
	RelationCount int    `gorm:"not null"`
	Checksum      string `gorm:"not null;default:''"`
	CreatedAt     time.Time
}

func (ImportRunModel) TableName() string { return "import_runs" }
