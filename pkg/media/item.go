// Package media holds the catalog's entity model: the Item record, its
// transient resolve-args snapshot, and the file-system fingerprint used for
// change detection. Items cache derived state lazily and are safe to share
// between the scan worker and concurrent refresh tasks.
package media

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kinoteka/kinoteka/pkg/filesystem"
	"github.com/kinoteka/kinoteka/pkg/sortname"
)

// Person is a credited person with their role on the item.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	Type string `json:"type,omitempty"`
}

// Item is the catalog record for one media entity. The zero value is not
// usable; construct with New.
type Item struct {
	ID   uuid.UUID
	Kind Kind
	Path string

	// LibraryID attributes the item to the library whose root it was
	// discovered under. Nil for items outside any configured library.
	LibraryID *int

	// parent is a non-owning back-reference to the container that resolved
	// this item. An item never owns its parent.
	parent *Item

	name           string
	forcedSortName string

	DisplayMediaType    string
	Overview            string
	Taglines            []string
	Genres              []string
	Studios             []string
	Tags                []string
	ProductionLocations []string
	People              []Person
	OfficialRating      string
	CommunityRating     *float64
	CriticRating        *float64
	RunTime             *time.Duration
	PremiereDate        *time.Time
	ProductionYear      *int
	DateCreated         time.Time
	DateModified        time.Time

	providerIDs map[string]string

	// LockedFields and LockedImages are never auto-overwritten by the
	// enrichment pipeline.
	LockedFields map[string]struct{}
	LockedImages map[string]struct{}

	// Dependent-media identity lists, in discovery order. These record
	// membership; the referenced items are stored independently.
	LocalTrailerIDs []uuid.UUID
	ThemeSongIDs    []uuid.UUID
	ThemeVideoIDs   []uuid.UUID

	UserData *UserItemData

	mu          sync.Mutex
	resolveArgs *ResolveArgs
	sortName    string
	stamp       Fingerprint
	stampValid  bool
}

// idNamespace scopes the deterministic identifiers derived from paths.
var idNamespace = uuid.MustParse("8f9a2c54-11de-4b3c-9a7d-6f2e54c0a1b9")

// IDForPath derives the stable identifier for a file-system backed item. Two
// scans of the same path always reconcile to the same identity.
func IDForPath(kind Kind, path string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(string(kind)+"|"+path))
}

// New creates an item of the given kind at path. File-system backed items get
// a path-derived stable identity; virtual items get a random one.
func New(kind Kind, path string) *Item {
	id := uuid.New()
	if path != "" {
		id = IDForPath(kind, path)
	}
	return &Item{
		ID:               id,
		Kind:             kind,
		Path:             path,
		DisplayMediaType: kind.Label(),
	}
}

// LocationType is derived purely from the item's path: no path means the item
// exists virtually, a rooted path is file-system backed, anything else is
// remote.
func (i *Item) LocationType() LocationType {
	return locationOf(i.Path)
}

func (i *Item) Parent() *Item {
	return i.parent
}

func (i *Item) SetParent(parent *Item) {
	i.parent = parent
}

func (i *Item) Name() string {
	return i.name
}

// SetName sets the display name and invalidates the cached sort name.
func (i *Item) SetName(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.name = name
	i.sortName = ""
}

// ForceSortName pins the sort name, skipping the transform pipeline.
func (i *Item) ForceSortName(sortName string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forcedSortName = sortName
}

// SortName returns the cached sort form of the name, computing it on first
// use. A forced override always wins.
func (i *Item) SortName() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.forcedSortName != "" {
		return i.forcedSortName
	}
	if i.sortName == "" {
		i.sortName = sortname.Transform(i.name)
	}
	return i.sortName
}

// GetProviderID returns the external identifier recorded for the named
// provider. Lookup is case-insensitive.
func (i *Item) GetProviderID(provider string) string {
	return i.providerIDs[strings.ToLower(provider)]
}

// SetProviderID records an external identifier under the provider's name.
func (i *Item) SetProviderID(provider, id string) {
	if i.providerIDs == nil {
		i.providerIDs = map[string]string{}
	}
	i.providerIDs[strings.ToLower(provider)] = id
}

// ProviderIDs returns a copy of the provider identifier map.
func (i *Item) ProviderIDs() map[string]string {
	out := make(map[string]string, len(i.providerIDs))
	for k, v := range i.providerIDs {
		out[k] = v
	}
	return out
}

// SetProviderIDs replaces the provider identifier map, normalizing keys.
func (i *Item) SetProviderIDs(ids map[string]string) {
	i.providerIDs = make(map[string]string, len(ids))
	for k, v := range ids {
		i.providerIDs[strings.ToLower(k)] = v
	}
}

// LockField marks a metadata field as never auto-overwritten.
func (i *Item) LockField(field string) {
	if i.LockedFields == nil {
		i.LockedFields = map[string]struct{}{}
	}
	i.LockedFields[field] = struct{}{}
}

// FieldLocked reports whether enrichment may not touch the field.
func (i *Item) FieldLocked(field string) bool {
	_, ok := i.LockedFields[field]
	return ok
}

// ClearMetaValues resets all descriptive metadata and forces the display
// media type back to the item's own kind label. Identity, hierarchy, play
// state and lock flags are untouched.
func (i *Item) ClearMetaValues() {
	i.Overview = ""
	i.Taglines = nil
	i.Genres = nil
	i.Studios = nil
	i.Tags = nil
	i.ProductionLocations = nil
	i.People = nil
	i.OfficialRating = ""
	i.CommunityRating = nil
	i.CriticRating = nil
	i.RunTime = nil
	i.PremiereDate = nil
	i.ProductionYear = nil
	i.providerIDs = nil
	i.DisplayMediaType = i.Kind.Label()
}

// ResolveArgs returns the item's directory snapshot, building it on first use.
// The build runs at most once concurrently per item: overlapping callers block
// until the first completes and then observe its result. A build error is
// surfaced to every waiting caller and leaves the cache empty so a later call
// can retry.
func (i *Item) ResolveArgs(ctx context.Context, fsys filesystem.FS) (*ResolveArgs, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.resolveArgs != nil {
		return i.resolveArgs, nil
	}

	args, err := BuildResolveArgs(ctx, fsys, i.Path, BuildOptions{Parent: i.parent})
	if err != nil {
		return nil, err
	}
	i.resolveArgs = args
	i.applyTimestampsLocked(args)
	return args, nil
}

// SetResolveArgs replaces the cached snapshot (a refresh hands a freshly
// observed one to a reconciled item) and invalidates the dependent
// fingerprint cache.
func (i *Item) SetResolveArgs(args *ResolveArgs) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resolveArgs = args
	i.stampValid = false
	if args != nil {
		i.applyTimestampsLocked(args)
	}
}

// ResetResolveArgs drops the cached snapshot so the next file-system touch
// re-enumerates the directory. The fingerprint cache is invalidated with it.
func (i *Item) ResetResolveArgs() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resolveArgs = nil
	i.stampValid = false
}

// CachedResolveArgs returns the snapshot currently cached, or nil.
func (i *Item) CachedResolveArgs() *ResolveArgs {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.resolveArgs
}

// FileSystemStamp returns the fingerprint of the item's directory contents.
// It is the zero Fingerprint for anything that is not a file-system backed
// directory.
func (i *Item) FileSystemStamp(ctx context.Context, fsys filesystem.FS) (Fingerprint, error) {
	if i.LocationType() != LocationFileSystem {
		return Fingerprint{}, nil
	}

	args, err := i.ResolveArgs(ctx, fsys)
	if err != nil {
		return Fingerprint{}, err
	}
	if !args.IsDirectory {
		return Fingerprint{}, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.stampValid {
		i.stamp = Stamp(args.ChildNames(), args.MetadataFileNames())
		i.stampValid = true
	}
	return i.stamp, nil
}

// KnownStamp returns the fingerprint computed by the last FileSystemStamp
// call, or the zero Fingerprint when none is cached. It never touches the
// file system.
func (i *Item) KnownStamp() Fingerprint {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.stampValid {
		return Fingerprint{}
	}
	return i.stamp
}

// applyTimestampsLocked stamps creation/modification times from the freshest
// file-system evidence without regressing an already-set value.
func (i *Item) applyTimestampsLocked(args *ResolveArgs) {
	if args.FileInfo == nil {
		return
	}
	mod := args.FileInfo.ModTime
	if mod.IsZero() {
		return
	}
	if i.DateCreated.IsZero() {
		i.DateCreated = mod
	}
	if mod.After(i.DateModified) {
		i.DateModified = mod
	}
}
