// Package refresh drives the metadata-refresh protocol for catalog items: it
// invalidates caches, fans provider enrichment and dependent-media refreshes
// out, computes a changed verdict and persists on change. Collaborators are
// injected at construction; the orchestrator holds no global state.
package refresh

import (
	"context"

	"github.com/google/uuid"
	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/kinoteka/kinoteka/pkg/filesystem"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/sync/errgroup"
)

// Store is the persistent catalog the orchestrator reconciles against.
// Absence is not an error: FindByID returns (nil, nil) for unknown IDs.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*media.Item, error)
	Upsert(ctx context.Context, item *media.Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
}

// Provider enriches an item's descriptive metadata from external sources. It
// may be slow or network-bound and must honor cancellation.
type Provider interface {
	EnrichMetadata(ctx context.Context, item *media.Item, forceRefresh, allowSlowProviders bool) (bool, error)
}

// Resolver turns candidate paths into typed items against a parent hint.
type Resolver interface {
	ResolveMany(ctx context.Context, paths []string, parent *media.Item, want media.Kind) ([]*media.Item, error)
}

// Options adjust a single refresh invocation.
type Options struct {
	ForceSave          bool
	ForceRefresh       bool
	AllowSlowProviders bool
	ResetCache         bool
}

type Orchestrator struct {
	fsys     filesystem.FS
	store    Store
	provider Provider
	resolver Resolver
}

func New(fsys filesystem.FS, store Store, provider Provider, resolver Resolver) *Orchestrator {
	return &Orchestrator{
		fsys:     fsys,
		store:    store,
		provider: provider,
		resolver: resolver,
	}
}

type providerResult struct {
	changed bool
	err     error
}

// Refresh runs the refresh protocol on item and returns whether anything
// changed. The provider task runs concurrently with the dependent-media
// passes; the three dependent categories run in a fixed order (songs, videos,
// trailers) with each category's candidates refreshed concurrently.
// Cancellation is checked at every stage boundary and a cancelled refresh
// never persists partial state. Retry policy belongs to the caller.
func (o *Orchestrator) Refresh(ctx context.Context, item *media.Item, opts Options) (bool, error) {
	if item == nil {
		return false, errcodes.Invariant("an item is required to refresh")
	}
	log := logger.FromContext(ctx).Data(logger.Data{"item_id": item.ID, "kind": string(item.Kind)})

	if opts.ResetCache {
		item.ResetResolveArgs()
	}

	// The provider task is launched first so it overlaps the dependent-media
	// file-system work. The channel is buffered: an early error return must
	// not strand the goroutine.
	providerCh := make(chan providerResult, 1)
	go func() {
		changed, err := o.provider.EnrichMetadata(ctx, item, opts.ForceRefresh, opts.AllowSlowProviders)
		providerCh <- providerResult{changed: changed, err: err}
	}()

	if err := ctx.Err(); err != nil {
		return false, errors.WithStack(err)
	}

	dependentsChanged, err := o.refreshDependents(ctx, item, opts)
	if err != nil {
		return false, err
	}

	own := <-providerCh
	if own.err != nil {
		return false, own.err
	}

	changed := own.changed || opts.ForceSave || dependentsChanged

	if err := ctx.Err(); err != nil {
		return false, errors.WithStack(err)
	}

	if changed {
		log.Info("item changed, persisting")
		if err := o.store.Upsert(ctx, item); err != nil {
			return false, err
		}
	}

	return changed, nil
}

// refreshDependents discovers, reconciles and recursively refreshes the three
// dependent-media sets. Kinds without dependent media (the dependent items
// themselves) skip the pass entirely, which bounds the recursion.
func (o *Orchestrator) refreshDependents(ctx context.Context, item *media.Item, opts Options) (bool, error) {
	if !item.Kind.HasDependentMedia() {
		return false, nil
	}

	songsChanged, songIDs, err := o.refreshCategory(ctx, item, opts, media.KindThemeSong, item.ThemeSongIDs, o.discoverThemeSongs)
	if err != nil {
		return false, err
	}
	item.ThemeSongIDs = songIDs

	videosChanged, videoIDs, err := o.refreshCategory(ctx, item, opts, media.KindThemeVideo, item.ThemeVideoIDs, o.discoverThemeVideos)
	if err != nil {
		return false, err
	}
	item.ThemeVideoIDs = videoIDs

	trailersChanged, trailerIDs, err := o.refreshCategory(ctx, item, opts, media.KindTrailer, item.LocalTrailerIDs, o.discoverTrailers)
	if err != nil {
		return false, err
	}
	item.LocalTrailerIDs = trailerIDs

	return songsChanged || videosChanged || trailersChanged, nil
}

type discoverFunc func(ctx context.Context, item *media.Item) ([]string, error)

// refreshCategory runs one dependent-media category: discover candidates on
// disk, swap in persisted twins by identity, refresh every candidate
// concurrently and join them all before surfacing the first failure, then
// compare the discovered identifier sequence against the stored one. Order
// differences count as change.
func (o *Orchestrator) refreshCategory(ctx context.Context, item *media.Item, opts Options, want media.Kind, previous []uuid.UUID, discover discoverFunc) (bool, []uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, errors.WithStack(err)
	}

	paths, err := discover(ctx, item)
	if err != nil {
		return false, nil, err
	}

	candidates, err := o.resolver.ResolveMany(ctx, paths, item, want)
	if err != nil {
		return false, nil, err
	}

	fresh := make([]bool, len(candidates))
	for n, candidate := range candidates {
		reconciled, known, err := o.reconcile(ctx, item, candidate)
		if err != nil {
			return false, nil, err
		}
		if reconciled.LibraryID == nil {
			reconciled.LibraryID = item.LibraryID
		}
		candidates[n] = reconciled
		fresh[n] = !known
	}

	// Dependents never re-reset the cache: each candidate just received its
	// freshly observed snapshot. First-seen candidates are force-saved so the
	// owner's identifier lists only ever reference persisted records.
	var g errgroup.Group
	for n, candidate := range candidates {
		childOpts := Options{
			ForceSave:          fresh[n],
			ForceRefresh:       opts.ForceRefresh,
			AllowSlowProviders: opts.AllowSlowProviders,
		}
		g.Go(func() error {
			_, err := o.Refresh(ctx, candidate, childOpts)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, nil, err
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}

	// Dependent files live under folders the scanner skips, so records whose
	// files vanished are pruned here or not at all.
	for _, prev := range previous {
		if !containsID(ids, prev) {
			if err := o.store.DeleteItem(ctx, prev); err != nil {
				return false, nil, err
			}
		}
	}

	return !equalIDs(previous, ids), ids, nil
}

// reconcile swaps a freshly resolved candidate for its persisted twin when one
// exists, replacing only the twin's cached snapshot so provider-set metadata
// survives rescans. The swap is a single-owner replace, not a merge. The bool
// reports whether a twin was found.
func (o *Orchestrator) reconcile(ctx context.Context, parent *media.Item, candidate *media.Item) (*media.Item, bool, error) {
	stored, err := o.store.FindByID(ctx, candidate.ID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return candidate, false, nil
	}
	stored.SetResolveArgs(candidate.CachedResolveArgs())
	stored.SetParent(parent)
	return stored, true, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func equalIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}
