package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// Item is the persisted form of a catalog entity. Scalar metadata lives in
// columns; the structured remainder is a JSON document in Data so the schema
// does not chase every descriptive field.
type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID               uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Kind             string     `bun:",nullzero" json:"kind"`
	Path             string     `bun:",nullzero" json:"path"`
	ParentID         *uuid.UUID `bun:",type:uuid" json:"parent_id,omitempty"`
	LibraryID        *int       `json:"library_id,omitempty"`
	Name             string     `bun:",nullzero" json:"name"`
	SortName         string     `bun:",nullzero" json:"sort_name"`
	DisplayMediaType string     `bun:",nullzero" json:"display_media_type"`
	Overview         string     `json:"overview,omitempty"`
	OfficialRating   string     `json:"official_rating,omitempty"`
	CommunityRating  *float64   `json:"community_rating,omitempty"`
	CriticRating     *float64   `json:"critic_rating,omitempty"`
	RunTimeSeconds   *int64     `json:"run_time_seconds,omitempty"`
	PremiereDate     *time.Time `json:"premiere_date,omitempty"`
	ProductionYear   *int       `json:"production_year,omitempty"`
	DateCreated      time.Time  `json:"date_created"`
	DateModified     time.Time  `json:"date_modified"`
	Stamp            string     `bun:",nullzero" json:"-"`
	Data             string     `bun:",nullzero" json:"-"`
	DataParsed       *ItemData  `bun:"-" json:"data,omitempty"`
}

// ItemData is the structured remainder of an item record, stored as a JSON
// string in the Data column.
type ItemData struct {
	Taglines            []string            `json:"taglines,omitempty"`
	Genres              []string            `json:"genres,omitempty"`
	Studios             []string            `json:"studios,omitempty"`
	Tags                []string            `json:"tags,omitempty"`
	ProductionLocations []string            `json:"production_locations,omitempty"`
	People              []media.Person      `json:"people,omitempty"`
	ProviderIDs         map[string]string   `json:"provider_ids,omitempty"`
	LockedFields        []string            `json:"locked_fields,omitempty"`
	LockedImages        []string            `json:"locked_images,omitempty"`
	LocalTrailerIDs     []uuid.UUID         `json:"local_trailer_ids,omitempty"`
	ThemeSongIDs        []uuid.UUID         `json:"theme_song_ids,omitempty"`
	ThemeVideoIDs       []uuid.UUID         `json:"theme_video_ids,omitempty"`
	UserData            *media.UserItemData `json:"user_data,omitempty"`
}

func (item *Item) UnmarshalData() error {
	item.DataParsed = &ItemData{}
	if item.Data == "" {
		return nil
	}

	err := json.Unmarshal([]byte(item.Data), item.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (item *Item) MarshalData() error {
	if item.DataParsed == nil {
		item.Data = ""
		return nil
	}

	data, err := json.Marshal(item.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	item.Data = string(data)

	return nil
}
