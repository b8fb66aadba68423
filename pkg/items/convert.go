package items

import (
	"sort"
	"time"

	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/models"
)

// ToModel flattens a runtime entity into its persisted record. Parent linkage
// survives as an identifier only.
func ToModel(item *media.Item) (*models.Item, error) {
	rec := &models.Item{
		ID:               item.ID,
		Kind:             string(item.Kind),
		Path:             item.Path,
		LibraryID:        item.LibraryID,
		Name:             item.Name(),
		SortName:         item.SortName(),
		DisplayMediaType: item.DisplayMediaType,
		Overview:         item.Overview,
		OfficialRating:   item.OfficialRating,
		CommunityRating:  item.CommunityRating,
		CriticRating:     item.CriticRating,
		PremiereDate:     item.PremiereDate,
		ProductionYear:   item.ProductionYear,
		DateCreated:      item.DateCreated,
		DateModified:     item.DateModified,
	}

	if parent := item.Parent(); parent != nil {
		id := parent.ID
		rec.ParentID = &id
	}
	if item.RunTime != nil {
		seconds := int64(*item.RunTime / time.Second)
		rec.RunTimeSeconds = &seconds
	}
	if stamp := item.KnownStamp(); !stamp.IsZero() {
		rec.Stamp = stamp.String()
	}

	rec.DataParsed = &models.ItemData{
		Taglines:            item.Taglines,
		Genres:              item.Genres,
		Studios:             item.Studios,
		Tags:                item.Tags,
		ProductionLocations: item.ProductionLocations,
		People:              item.People,
		ProviderIDs:         item.ProviderIDs(),
		LockedFields:        sortedKeys(item.LockedFields),
		LockedImages:        sortedKeys(item.LockedImages),
		LocalTrailerIDs:     item.LocalTrailerIDs,
		ThemeSongIDs:        item.ThemeSongIDs,
		ThemeVideoIDs:       item.ThemeVideoIDs,
		UserData:            item.UserData,
	}

	err := rec.MarshalData()
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// FromModel rebuilds the runtime entity from its persisted record. The parent
// pointer and resolve-args snapshot are left unset; the scanner reattaches
// both.
func FromModel(rec *models.Item) (*media.Item, error) {
	if rec.DataParsed == nil {
		err := rec.UnmarshalData()
		if err != nil {
			return nil, err
		}
	}
	data := rec.DataParsed

	item := media.New(media.Kind(rec.Kind), rec.Path)
	item.ID = rec.ID
	item.LibraryID = rec.LibraryID
	item.SetName(rec.Name)
	if rec.SortName != "" && rec.SortName != item.SortName() {
		item.ForceSortName(rec.SortName)
	}
	if rec.DisplayMediaType != "" {
		item.DisplayMediaType = rec.DisplayMediaType
	}

	item.Overview = rec.Overview
	item.OfficialRating = rec.OfficialRating
	item.CommunityRating = rec.CommunityRating
	item.CriticRating = rec.CriticRating
	item.PremiereDate = rec.PremiereDate
	item.ProductionYear = rec.ProductionYear
	item.DateCreated = rec.DateCreated
	item.DateModified = rec.DateModified
	if rec.RunTimeSeconds != nil {
		d := time.Duration(*rec.RunTimeSeconds) * time.Second
		item.RunTime = &d
	}

	item.Taglines = data.Taglines
	item.Genres = data.Genres
	item.Studios = data.Studios
	item.Tags = data.Tags
	item.ProductionLocations = data.ProductionLocations
	item.People = data.People
	item.SetProviderIDs(data.ProviderIDs)
	for _, field := range data.LockedFields {
		item.LockField(field)
	}
	item.LockedImages = setOf(data.LockedImages)
	item.LocalTrailerIDs = data.LocalTrailerIDs
	item.ThemeSongIDs = data.ThemeSongIDs
	item.ThemeVideoIDs = data.ThemeVideoIDs
	item.UserData = data.UserData

	return item, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setOf(keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
