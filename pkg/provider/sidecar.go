package provider

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"time"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/afero"
)

// CurrentSidecarVersion is the current version of the sidecar file format.
// Increment this when making breaking changes to the schema.
const CurrentSidecarVersion = 1

// Sidecar is the user-editable metadata file stored next to an item. For
// folder-backed items it lives at {dir}/{dirname}.metadata.json, for
// file-backed items at {filepath}.metadata.json. Only fields present in the
// file are applied.
type Sidecar struct {
	Version             int               `json:"version"`
	Name                string            `json:"name,omitempty"`
	SortName            string            `json:"sort_name,omitempty"`
	Overview            *string           `json:"overview,omitempty"`
	Taglines            []string          `json:"taglines,omitempty"`
	Genres              []string          `json:"genres,omitempty"`
	Studios             []string          `json:"studios,omitempty"`
	Tags                []string          `json:"tags,omitempty"`
	ProductionLocations []string          `json:"production_locations,omitempty"`
	People              []media.Person    `json:"people,omitempty"`
	OfficialRating      *string           `json:"official_rating,omitempty"`
	CommunityRating     *float64          `json:"community_rating,omitempty"`
	CriticRating        *float64          `json:"critic_rating,omitempty"`
	RunTimeMinutes      *int              `json:"run_time_minutes,omitempty"`
	PremiereDate        *time.Time        `json:"premiere_date,omitempty"`
	ProductionYear      *int              `json:"production_year,omitempty"`
	ProviderIDs         map[string]string `json:"provider_ids,omitempty"`
	LockedFields        []string          `json:"locked_fields,omitempty"`
}

// SidecarPath returns the sidecar file path for an item. Folder-backed items
// keep the sidecar inside the folder, named after it; file-backed items get a
// sibling file.
func SidecarPath(item *media.Item) string {
	if item.Kind.IsFolder() {
		return filepath.Join(item.Path, filepath.Base(item.Path)+media.MetadataFileSuffix)
	}
	return item.Path + media.MetadataFileSuffix
}

// ReadSidecar reads and parses an item's sidecar. Returns nil, nil when no
// sidecar exists.
func ReadSidecar(afs afero.Fs, item *media.Item) (*Sidecar, error) {
	data, err := afero.ReadFile(afs, SidecarPath(item))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.WithStack(err)
	}
	return &s, nil
}

// WriteSidecar writes an item's descriptive metadata out as its sidecar.
// Sidecar files should be readable by users and other applications.
func WriteSidecar(afs afero.Fs, item *media.Item) error {
	s := SidecarFromItem(item)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(afero.WriteFile(afs, SidecarPath(item), data, 0644))
}

// SidecarFromItem captures an item's descriptive metadata as a sidecar
// document.
func SidecarFromItem(item *media.Item) *Sidecar {
	s := &Sidecar{
		Version:             CurrentSidecarVersion,
		Name:                item.Name(),
		SortName:            item.SortName(),
		Taglines:            item.Taglines,
		Genres:              item.Genres,
		Studios:             item.Studios,
		Tags:                item.Tags,
		ProductionLocations: item.ProductionLocations,
		People:              item.People,
		CommunityRating:     item.CommunityRating,
		CriticRating:        item.CriticRating,
		PremiereDate:        item.PremiereDate,
		ProductionYear:      item.ProductionYear,
		ProviderIDs:         item.ProviderIDs(),
	}
	if item.Overview != "" {
		s.Overview = &item.Overview
	}
	if item.OfficialRating != "" {
		s.OfficialRating = &item.OfficialRating
	}
	if item.RunTime != nil {
		minutes := int(*item.RunTime / time.Minute)
		s.RunTimeMinutes = &minutes
	}
	return s
}

// SidecarSource applies sidecar files. It is fast and always eligible.
type SidecarSource struct {
	afs afero.Fs
}

func NewSidecarSource(afs afero.Fs) *SidecarSource {
	return &SidecarSource{afs: afs}
}

func (s *SidecarSource) Name() string {
	return "sidecar"
}

func (s *SidecarSource) Slow() bool {
	return false
}

// Enrich applies the item's sidecar, if one exists. Locked fields are left
// alone. A malformed sidecar fails the refresh rather than silently losing
// operator edits.
func (s *SidecarSource) Enrich(ctx context.Context, item *media.Item, _ bool) (bool, error) {
	sc, err := ReadSidecar(s.afs, item)
	if err != nil {
		logger.FromContext(ctx).Err(err).Error("malformed sidecar", logger.Data{"path": SidecarPath(item)})
		return false, errcodes.ProviderFailure(s.Name())
	}
	if sc == nil {
		return false, nil
	}
	return applySidecar(item, sc), nil
}

func applySidecar(item *media.Item, sc *Sidecar) bool {
	changed := false

	if sc.Name != "" && !item.FieldLocked("name") && sc.Name != item.Name() {
		item.SetName(sc.Name)
		changed = true
	}
	if sc.SortName != "" && !item.FieldLocked("sort_name") && sc.SortName != item.SortName() {
		item.ForceSortName(sc.SortName)
		changed = true
	}
	if sc.Overview != nil && !item.FieldLocked("overview") && *sc.Overview != item.Overview {
		item.Overview = *sc.Overview
		changed = true
	}
	if sc.OfficialRating != nil && !item.FieldLocked("official_rating") && *sc.OfficialRating != item.OfficialRating {
		item.OfficialRating = *sc.OfficialRating
		changed = true
	}

	changed = applyList(&item.Taglines, sc.Taglines, item, "taglines") || changed
	changed = applyList(&item.Genres, sc.Genres, item, "genres") || changed
	changed = applyList(&item.Studios, sc.Studios, item, "studios") || changed
	changed = applyList(&item.Tags, sc.Tags, item, "tags") || changed
	changed = applyList(&item.ProductionLocations, sc.ProductionLocations, item, "production_locations") || changed

	if len(sc.People) > 0 && !item.FieldLocked("people") && !slices.Equal(sc.People, item.People) {
		item.People = slices.Clone(sc.People)
		changed = true
	}

	changed = applyScalar(&item.CommunityRating, sc.CommunityRating, item, "community_rating") || changed
	changed = applyScalar(&item.CriticRating, sc.CriticRating, item, "critic_rating") || changed
	changed = applyScalar(&item.ProductionYear, sc.ProductionYear, item, "production_year") || changed

	if sc.RunTimeMinutes != nil && !item.FieldLocked("run_time") {
		d := time.Duration(*sc.RunTimeMinutes) * time.Minute
		if item.RunTime == nil || *item.RunTime != d {
			item.RunTime = &d
			changed = true
		}
	}
	if sc.PremiereDate != nil && !item.FieldLocked("premiere_date") {
		if item.PremiereDate == nil || !item.PremiereDate.Equal(*sc.PremiereDate) {
			t := *sc.PremiereDate
			item.PremiereDate = &t
			changed = true
		}
	}

	for name, id := range sc.ProviderIDs {
		if item.GetProviderID(name) != id {
			item.SetProviderID(name, id)
			changed = true
		}
	}

	// Locks declared in the sidecar take effect after this pass's values are
	// applied, so the sidecar's own values are not blocked by them.
	for _, field := range sc.LockedFields {
		if !item.FieldLocked(field) {
			item.LockField(field)
			changed = true
		}
	}

	return changed
}

func applyList(dst *[]string, src []string, item *media.Item, field string) bool {
	if len(src) == 0 || item.FieldLocked(field) || slices.Equal(src, *dst) {
		return false
	}
	*dst = slices.Clone(src)
	return true
}

func applyScalar[T comparable](dst **T, src *T, item *media.Item, field string) bool {
	if src == nil || item.FieldLocked(field) {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}
