package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"filevault/server/fileman/domain"
	"filevault/server/fileman/query"
)

const fileColumns = `f.id, f.name, f.extension, f.category, f.object_key, f.thumbnail_key, f.checksum,
	f.size_bytes, f.owner_id, f.shared_with, f.created_at, f.updated_at,
	COALESCE(u.id, ''), COALESCE(u.email, ''), COALESCE(u.full_name, ''), COALESCE(u.avatar_url, '')`

const fileFrom = `FROM files f LEFT JOIN users u ON u.id = f.owner_id`

type FileRepository struct {
	db DBTX
}

func NewFileRepository(db DBTX) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, item domain.FileRecord) (domain.FileRecord, error) {
	if item.SharedWith == nil {
		item.SharedWith = []string{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO files(name, extension, category, object_key, thumbnail_key, checksum, size_bytes, owner_id, shared_with)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, item.Name, item.Extension, string(item.Category), item.ObjectKey, item.ThumbnailKey, item.Checksum, item.Size, item.OwnerID, item.SharedWith).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return domain.FileRecord{}, fmt.Errorf("insert file: %w", err)
	}
	return r.Get(ctx, item.ID)
}

func (r *FileRepository) Get(ctx context.Context, id string) (domain.FileRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+fileColumns+` `+fileFrom+` WHERE f.id = $1`, id)
	item, err := scanFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FileRecord{}, domain.ErrNotFound
		}
		return domain.FileRecord{}, fmt.Errorf("get file: %w", err)
	}
	return item, nil
}

// Update applies patch and bumps updated_at. Only name and shared_with are
// writable; the immutable columns never appear in the SET list.
func (r *FileRepository) Update(ctx context.Context, id string, patch domain.FilePatch) (domain.FileRecord, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.SharedWith != nil {
		shared := *patch.SharedWith
		if shared == nil {
			shared = []string{}
		}
		args = append(args, shared)
		sets = append(sets, fmt.Sprintf("shared_with = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	tag, err := r.db.Exec(ctx, fmt.Sprintf(`UPDATE files SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return domain.FileRecord{}, fmt.Errorf("update file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.FileRecord{}, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *FileRepository) Query(ctx context.Context, plan query.Plan) ([]domain.FileRecord, error) {
	tail, args, err := renderPlan(plan)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, `SELECT `+fileColumns+` `+fileFrom+` `+tail, args...)
}

func (r *FileRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.FileRecord, error) {
	return r.list(ctx, `SELECT `+fileColumns+` `+fileFrom+` WHERE f.owner_id = $1 ORDER BY f.created_at DESC, f.id ASC`, ownerID)
}

func (r *FileRepository) list(ctx context.Context, sql string, args ...any) ([]domain.FileRecord, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	items := make([]domain.FileRecord, 0)
	for rows.Next() {
		item, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanFile(row pgx.Row) (domain.FileRecord, error) {
	var (
		item     domain.FileRecord
		category string
		owner    domain.User
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.Extension, &category, &item.ObjectKey, &item.ThumbnailKey, &item.Checksum,
		&item.Size, &item.OwnerID, &item.SharedWith, &item.CreatedAt, &item.UpdatedAt,
		&owner.ID, &owner.Email, &owner.FullName, &owner.AvatarURL,
	)
	if err != nil {
		return domain.FileRecord{}, err
	}
	item.Category = domain.Category(category)
	if item.SharedWith == nil {
		item.SharedWith = []string{}
	}
	if owner.ID != "" {
		item.Owner = &owner
	}
	return item, nil
}
