// Package items persists catalog entities. The service stores the flat
// record; parent pointers and resolve-args snapshots are runtime state that
// the scanner reattaches.
package items

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveItemOptions struct {
	ID   *uuid.UUID
	Path *string
}

type ListItemsOptions struct {
	Limit      *int
	Offset     *int
	Kinds      []string
	LibraryID  *int
	ParentID   *uuid.UUID
	PathPrefix *string

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// updateColumns is every column Upsert refreshes on an existing record.
// created_at is deliberately absent so the original insertion time survives
// rescans.
var updateColumns = []string{
	"updated_at",
	"kind",
	"path",
	"parent_id",
	"library_id",
	"name",
	"sort_name",
	"display_media_type",
	"overview",
	"official_rating",
	"community_rating",
	"critic_rating",
	"run_time_seconds",
	"premiere_date",
	"production_year",
	"date_created",
	"date_modified",
	"data",
}

// FindByID loads an item by identity. Absence is not an error: unknown IDs
// return nil, nil so reconciliation can branch without unwrapping.
func (svc *Service) FindByID(ctx context.Context, id uuid.UUID) (*media.Item, error) {
	rec, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		if errors.Is(err, errcodes.NotFound("Item")) {
			return nil, nil
		}
		return nil, err
	}
	return FromModel(rec)
}

// Upsert writes an item's current state, inserting or updating by identity.
func (svc *Service) Upsert(ctx context.Context, item *media.Item) error {
	rec, err := ToModel(item)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.UpdatedAt = now

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		columns := updateColumns
		if rec.Stamp != "" {
			columns = append(columns, "stamp")
		}

		res, err := tx.
			NewUpdate().
			Model(rec).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if affected > 0 {
			return nil
		}

		rec.CreatedAt = now
		_, err = tx.
			NewInsert().
			Model(rec).
			Exec(ctx)
		if err != nil {
			// The items table is unique on (path, kind): a violation means a
			// record with a different identity already claims this path.
			if isUniqueViolation(err) {
				return errcodes.Conflict("Item")
			}
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveItem(ctx context.Context, opts RetrieveItemOptions) (*models.Item, error) {
	item := &models.Item{}

	q := svc.db.
		NewSelect().
		Model(item)

	if opts.ID != nil {
		q = q.Where("i.id = ?", *opts.ID)
	}
	if opts.Path != nil {
		q = q.Where("i.path = ?", *opts.Path)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Item")
		}
		return nil, errors.WithStack(err)
	}

	err = item.UnmarshalData()
	if err != nil {
		return nil, err
	}

	return item, nil
}

func (svc *Service) ListItems(ctx context.Context, opts ListItemsOptions) ([]*models.Item, error) {
	items, _, err := svc.listItemsWithTotal(ctx, opts)
	return items, errors.WithStack(err)
}

func (svc *Service) ListItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	opts.includeTotal = true
	return svc.listItemsWithTotal(ctx, opts)
}

func (svc *Service) listItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	items := []*models.Item{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&items).
		Order("i.sort_name ASC", "i.path ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Kinds != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, k := range opts.Kinds {
				sq = sq.WhereOr("i.kind = ?", k)
			}
			return sq
		})
	}
	if opts.LibraryID != nil {
		q = q.Where("i.library_id = ?", *opts.LibraryID)
	}
	if opts.ParentID != nil {
		q = q.Where("i.parent_id = ?", *opts.ParentID)
	}
	if opts.PathPrefix != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("i.path = ?", *opts.PathPrefix).
				WhereOr("i.path LIKE ?", *opts.PathPrefix+"/%")
		})
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	for _, item := range items {
		err := item.UnmarshalData()
		if err != nil {
			return nil, 0, err
		}
	}

	return items, total, nil
}

// Both sqlite drivers report constraint violations by message only.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (svc *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.Item)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

// DeleteItemTree removes the record at path and everything beneath it. The
// match is on path segments, so /media/films does not take /media/films-hd
// with it.
func (svc *Service) DeleteItemTree(ctx context.Context, path string) (int, error) {
	res, err := svc.db.
		NewDelete().
		Model((*models.Item)(nil)).
		Where("path = ? OR path LIKE ?", path, path+"/%").
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(affected), nil
}
