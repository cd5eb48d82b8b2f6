package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/0KvinayK0/android-pass/internal/dbx"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/keystore"
	"github.com/0KvinayK0/android-pass/internal/local/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements DataSource on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the local cache at dsn and runs
// pending schema migrations.
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local cache: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already-open database (tests).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const upsertItemQuery = `INSERT INTO items (
		share_id, item_id, revision, content_format_version, rotation_id, content,
		state, signature_email, alias_email, labels,
		create_time, modify_time, last_use_time, revision_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(share_id, item_id) DO UPDATE SET
		revision = excluded.revision,
		content_format_version = excluded.content_format_version,
		rotation_id = excluded.rotation_id,
		content = excluded.content,
		state = excluded.state,
		signature_email = excluded.signature_email,
		alias_email = excluded.alias_email,
		labels = excluded.labels,
		create_time = excluded.create_time,
		modify_time = excluded.modify_time,
		last_use_time = excluded.last_use_time,
		revision_time = excluded.revision_time`

// guardedUpsertItemQuery additionally discards stale incoming revisions,
// making event re-application idempotent.
const guardedUpsertItemQuery = upsertItemQuery + `
	WHERE excluded.revision >= items.revision`

func upsertItem(ctx context.Context, db dbx.DBTX, query string, it domain.Item) error {
	labels, err := json.Marshal(it.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	_, err = db.ExecContext(ctx, query,
		it.ShareID, it.ID, it.Revision, it.ContentFormatVersion, it.RotationID, it.Content,
		it.State, it.SignatureEmail, it.AliasEmail, string(labels),
		it.CreateTime, it.ModifyTime, it.LastUseTime, it.RevisionTime)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

// UpsertItems writes items unconditionally (used for reconciler-owned
// writes where the remote revision is already authoritative).
func (s *SQLiteStore) UpsertItems(ctx context.Context, items []domain.Item) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, it := range items {
			if err := upsertItem(ctx, tx, upsertItemQuery, it); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteItems(ctx context.Context, db dbx.DBTX, shareID domain.ShareID, ids []domain.ItemID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	query := fmt.Sprintf(`DELETE FROM items WHERE share_id = ? AND item_id IN (%s)`,
		placeholders[:len(placeholders)-1])

	args := make([]any, 0, len(ids)+1)
	args = append(args, shareID)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteItems(ctx context.Context, shareID domain.ShareID, ids []domain.ItemID) error {
	return deleteItems(ctx, s.db, shareID, ids)
}

const itemColumns = `share_id, item_id, revision, content_format_version, rotation_id, content,
	state, signature_email, alias_email, labels, create_time, modify_time, last_use_time, revision_time`

func scanItem(row interface{ Scan(...any) error }) (domain.Item, error) {
	var it domain.Item
	var labels string
	err := row.Scan(&it.ShareID, &it.ID, &it.Revision, &it.ContentFormatVersion, &it.RotationID, &it.Content,
		&it.State, &it.SignatureEmail, &it.AliasEmail, &labels,
		&it.CreateTime, &it.ModifyTime, &it.LastUseTime, &it.RevisionTime)
	if err != nil {
		return domain.Item{}, err
	}
	if err := json.Unmarshal([]byte(labels), &it.Labels); err != nil {
		return domain.Item{}, fmt.Errorf("parse labels: %w", err)
	}
	return it, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE share_id = ? AND item_id = ?`
	it, err := scanItem(s.db.QueryRowContext(ctx, query, shareID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &it, nil
}

func (s *SQLiteStore) GetItems(ctx context.Context, shareID domain.ShareID) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE share_id = ? ORDER BY item_id`
	rows, err := s.db.QueryContext(ctx, query, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyEventBatch applies one page of the event feed in a single
// transaction: stale upserts are discarded by the revision guard, and
// the cursor is persisted together with the batch so a crash mid-batch
// re-applies safely instead of leaving a gap.
func (s *SQLiteStore) ApplyEventBatch(ctx context.Context, shareID domain.ShareID, upserts []domain.Item, deletes []domain.ItemID, cursor string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, it := range upserts {
			if err := upsertItem(ctx, tx, guardedUpsertItemQuery, it); err != nil {
				return err
			}
		}
		if err := deleteItems(ctx, tx, shareID, deletes); err != nil {
			return err
		}
		return setCursor(ctx, tx, shareID, cursor)
	})
}

func (s *SQLiteStore) DeleteShare(ctx context.Context, shareID domain.ShareID) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, query := range []string{
			`DELETE FROM items WHERE share_id = ?`,
			`DELETE FROM item_keys WHERE share_id = ?`,
			`DELETE FROM vault_keys WHERE share_id = ?`,
			`DELETE FROM sync_cursors WHERE share_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, query, shareID); err != nil {
				return fmt.Errorf("failed to cascade share delete: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetCursor(ctx context.Context, shareID domain.ShareID) (string, error) {
	var cursor string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_event_id FROM sync_cursors WHERE share_id = ?`, shareID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query cursor: %w", err)
	}
	return cursor, nil
}

func setCursor(ctx context.Context, db dbx.DBTX, shareID domain.ShareID, eventID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sync_cursors (share_id, last_event_id) VALUES (?, ?)
		 ON CONFLICT(share_id) DO UPDATE SET last_event_id = excluded.last_event_id`,
		shareID, eventID)
	if err != nil {
		return fmt.Errorf("failed to upsert cursor: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetCursor(ctx context.Context, shareID domain.ShareID, eventID string) error {
	return setCursor(ctx, s.db, shareID, eventID)
}

func (s *SQLiteStore) UpsertItemKey(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, key keystore.ItemKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_keys (share_id, item_id, rotation_id, wrapped_key, signature)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(share_id, item_id) DO UPDATE SET
			rotation_id = excluded.rotation_id,
			wrapped_key = excluded.wrapped_key,
			signature = excluded.signature`,
		shareID, itemID, key.RotationID, key.WrappedKey, key.Signature)
	if err != nil {
		return fmt.Errorf("failed to upsert item key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetItemKey(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*keystore.ItemKey, error) {
	var key keystore.ItemKey
	err := s.db.QueryRowContext(ctx,
		`SELECT rotation_id, wrapped_key, signature FROM item_keys WHERE share_id = ? AND item_id = ?`,
		shareID, itemID).Scan(&key.RotationID, &key.WrappedKey, &key.Signature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item key for %s: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query item key: %w", err)
	}
	return &key, nil
}

func (s *SQLiteStore) ReferencedRotations(ctx context.Context, shareID domain.ShareID) (map[domain.RotationID]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT rotation_id FROM item_keys WHERE share_id = ?`, shareID)
	if err != nil {
		return nil, fmt.Errorf("query referenced rotations: %w", err)
	}
	defer rows.Close()

	referenced := make(map[domain.RotationID]bool)
	for rows.Next() {
		var id domain.RotationID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		referenced[id] = true
	}
	return referenced, rows.Err()
}

// Rotations returns a vault's key rotations ordered oldest first.
func (s *SQLiteStore) Rotations(ctx context.Context, shareID domain.ShareID) ([]keystore.VaultKeyRotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT share_id, rotation_id, key, created_at, is_current
		 FROM vault_keys WHERE share_id = ? ORDER BY created_at, rotation_id`, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to select rotations: %w", err)
	}
	defer rows.Close()

	var result []keystore.VaultKeyRotation
	for rows.Next() {
		var r keystore.VaultKeyRotation
		var key []byte
		if err := rows.Scan(&r.ShareID, &r.RotationID, &key, &r.CreatedAt, &r.Current); err != nil {
			return nil, err
		}
		r.Key = key
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) SaveRotations(ctx context.Context, rotations []keystore.VaultKeyRotation) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, r := range rotations {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO vault_keys (share_id, rotation_id, key, created_at, is_current)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(share_id, rotation_id) DO UPDATE SET
					key = excluded.key,
					created_at = excluded.created_at,
					is_current = excluded.is_current`,
				r.ShareID, r.RotationID, []byte(r.Key), r.CreatedAt, r.Current)
			if err != nil {
				return fmt.Errorf("failed to upsert rotation: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteRotations(ctx context.Context, shareID domain.ShareID, ids []domain.RotationID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	query := fmt.Sprintf(`DELETE FROM vault_keys WHERE share_id = ? AND rotation_id IN (%s)`,
		placeholders[:len(placeholders)-1])

	args := make([]any, 0, len(ids)+1)
	args = append(args, shareID)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete rotations: %w", err)
	}
	return nil
}
