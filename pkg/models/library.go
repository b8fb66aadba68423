package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Collection type constants. They gate which resolvers fire for a library's
// content.
const (
	CollectionTypeMovies = "movies"
	CollectionTypeMusic  = "music"
	CollectionTypeMixed  = "mixed"
)

type Library struct {
	bun.BaseModel `bun:"table:libraries,alias:l"`

	ID             int            `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Name           string         `bun:",nullzero" json:"name"`
	CollectionType string         `bun:",nullzero,default:'mixed'" json:"collection_type"`
	LibraryPaths   []*LibraryPath `bun:"rel:has-many" json:"library_paths,omitempty"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}
