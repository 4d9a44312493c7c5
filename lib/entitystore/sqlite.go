package entitystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cptracker-backend/lib/entitystore/db"
	"cptracker-backend/lib/model"
	"cptracker-backend/pkg/migrations"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SqliteStore keeps entities in sqlite (local file or libsql remote).
type SqliteStore struct {
	db    *sql.DB
	limit int
}

func OpenSqlite(ctx context.Context, path string, errorLogLimit int) (*SqliteStore, error) {
	sqlite, err := migrations.OpenAndMigrateDB(ctx, db.SqliteSchema, path)
	if err != nil {
		return nil, wrap("open", err)
	}
	return NewSqlite(sqlite, errorLogLimit), nil
}

func OpenRemoteSqlite(ctx context.Context, url, authToken string, errorLogLimit int) (*SqliteStore, error) {
	remote, err := migrations.OpenRemote(url, authToken)
	if err != nil {
		return nil, wrap("open", err)
	}
	err = migrations.Migrate(ctx, remote, db.SqliteSchema)
	if err != nil {
		remote.Close()
		return nil, wrap("open", err)
	}
	return NewSqlite(remote, errorLogLimit), nil
}

// NewSqlite wraps a database that already has the schema applied.
func NewSqlite(sqlite *sql.DB, errorLogLimit int) *SqliteStore {
	if errorLogLimit <= 0 {
		errorLogLimit = DefaultErrorLogLimit
	}
	return &SqliteStore{db: sqlite, limit: errorLogLimit}
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	err = fn(tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

const selectEntity = `select id, name, handles, profile_urls, profiles, last_refreshed_at from entity`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (model.Entity, error) {
	var doc entityDoc
	var lastRefreshed sql.NullInt64
	err := row.Scan(&doc.id, &doc.name, &doc.handles, &doc.profileUrls, &doc.profiles, &lastRefreshed)
	if err != nil {
		return model.Entity{}, err
	}
	e, err := doc.decode()
	if err != nil {
		return model.Entity{}, err
	}
	e.LastRefreshedAt = fromMillis(lastRefreshed)
	return e, nil
}

func (s *SqliteStore) findEntity(ctx context.Context, q querier, id string) (model.Entity, error) {
	e, err := scanEntity(q.QueryRowContext(ctx, selectEntity+" where id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entity{}, fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	if err != nil {
		return model.Entity{}, err
	}

	rows, err := q.QueryContext(
		ctx,
		"select source, kind, message, time from entity_error where entity_id = ? order by id",
		id,
	)
	if err != nil {
		return model.Entity{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var entry model.ErrorLogEntry
		var at int64
		err = rows.Scan(&entry.Source, &entry.Kind, &entry.Message, &at)
		if err != nil {
			return model.Entity{}, err
		}
		entry.Time = time.UnixMilli(at).UTC()
		e.Errors = append(e.Errors, entry)
	}
	return e, rows.Err()
}

func (s *SqliteStore) FindByKey(ctx context.Context, id string) (model.Entity, error) {
	e, err := s.findEntity(ctx, s.db, id)
	if err != nil {
		return model.Entity{}, wrap("find", err)
	}
	return e, nil
}

func (s *SqliteStore) List(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, selectEntity+" order by id")
	if err != nil {
		return nil, wrap("list", err)
	}
	defer rows.Close()

	var entities []model.Entity
	index := map[string]int{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, wrap("list", err)
		}
		index[e.ID] = len(entities)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list", err)
	}

	errRows, err := s.db.QueryContext(
		ctx,
		"select entity_id, source, kind, message, time from entity_error order by id",
	)
	if err != nil {
		return nil, wrap("list errors", err)
	}
	defer errRows.Close()
	for errRows.Next() {
		var entityId string
		var entry model.ErrorLogEntry
		var at int64
		err = errRows.Scan(&entityId, &entry.Source, &entry.Kind, &entry.Message, &at)
		if err != nil {
			return nil, wrap("list errors", err)
		}
		entry.Time = time.UnixMilli(at).UTC()
		i, ok := index[entityId]
		if !ok {
			continue
		}
		entities[i].Errors = append(entities[i].Errors, entry)
	}
	if err := errRows.Err(); err != nil {
		return nil, wrap("list errors", err)
	}
	return entities, nil
}

func (s *SqliteStore) Create(ctx context.Context, entity model.Entity) error {
	if entity.ID == "" {
		return wrap("create", fmt.Errorf("entity id is empty"))
	}
	doc, err := encodeEntity(entity)
	if err != nil {
		return wrap("create", err)
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "select count(*) from entity where id = ?", entity.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("entity %s already exists", entity.ID)
		}
		_, err = tx.ExecContext(
			ctx,
			`insert into entity (id, name, handles, profile_urls, profiles, last_refreshed_at)
			values (?, ?, ?, ?, ?, ?)`,
			doc.id, doc.name, string(doc.handles), string(doc.profileUrls), string(doc.profiles),
			toMillis(entity.LastRefreshedAt),
		)
		return err
	})
	if err != nil {
		return wrap("create", err)
	}
	return nil
}

func (s *SqliteStore) Delete(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "delete from entity_error where entity_id = ?", id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "delete from entity where id = ?", id)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
	if err != nil {
		return wrap("delete", err)
	}
	return nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	return nil
}

// updateDoc rewrites one json document column through `fn`.
func (s *SqliteStore) updateDoc(ctx context.Context, tx *sql.Tx, id, column string, fn func(doc []byte) ([]byte, error)) error {
	var doc []byte
	err := tx.QueryRowContext(ctx, fmt.Sprintf("select %s from entity where id = ?", column), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	if err != nil {
		return err
	}
	updated, err := fn(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("update entity set %s = ? where id = ?", column), string(updated), id)
	return err
}

func (s *SqliteStore) SetHandle(ctx context.Context, id string, source model.SourceKind, handle string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateDoc(ctx, tx, id, "handles", func(doc []byte) ([]byte, error) {
			return setKey(doc, source, handle)
		})
	})
	if err != nil {
		return wrap("set handle", err)
	}
	return nil
}

func (s *SqliteStore) SetProfileURL(ctx context.Context, id string, source model.SourceKind, url string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateDoc(ctx, tx, id, "profile_urls", func(doc []byte) ([]byte, error) {
			return setKey(doc, source, url)
		})
	})
	if err != nil {
		return wrap("set profile url", err)
	}
	return nil
}

func (s *SqliteStore) UpsertProfile(ctx context.Context, id string, source model.SourceKind, profile model.Profile) error {
	return s.apply(ctx, "upsert profile", id, Refresh{
		Profiles: map[model.SourceKind]model.Profile{source: profile},
	})
}

func (s *SqliteStore) AppendError(ctx context.Context, id string, entry model.ErrorLogEntry) error {
	return s.apply(ctx, "append error", id, Refresh{
		Failures: []model.ErrorLogEntry{entry},
	})
}

func (s *SqliteStore) SetLastRefreshed(ctx context.Context, id string, t time.Time) error {
	return s.apply(ctx, "set last refreshed", id, Refresh{RefreshedAt: t})
}

func (s *SqliteStore) ApplyRefresh(ctx context.Context, id string, refresh Refresh) error {
	return s.apply(ctx, "apply refresh", id, refresh)
}

// apply merges the non-empty parts of `refresh` in one transaction.
func (s *SqliteStore) apply(ctx context.Context, op, id string, refresh Refresh) error {
	err := validateProfiles(refresh.Profiles)
	if err != nil {
		return wrap(op, err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		err := s.updateDoc(ctx, tx, id, "profiles", func(doc []byte) ([]byte, error) {
			return mergeProfiles(doc, refresh.Profiles)
		})
		if err != nil {
			return err
		}

		for _, entry := range refresh.Failures {
			_, err = tx.ExecContext(
				ctx,
				"insert into entity_error (entity_id, source, kind, message, time) values (?, ?, ?, ?, ?)",
				id, string(entry.Source), string(entry.Kind), entry.Message, entry.Time.UnixMilli(),
			)
			if err != nil {
				return err
			}
		}
		if len(refresh.Failures) > 0 {
			_, err = tx.ExecContext(
				ctx,
				`delete from entity_error where entity_id = ? and id not in (
					select id from entity_error where entity_id = ? order by id desc limit ?
				)`,
				id, id, s.limit,
			)
			if err != nil {
				return err
			}
		}

		if !refresh.RefreshedAt.IsZero() {
			_, err = tx.ExecContext(
				ctx,
				"update entity set last_refreshed_at = ? where id = ?",
				toMillis(refresh.RefreshedAt), id,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrap(op, err)
	}
	return nil
}
