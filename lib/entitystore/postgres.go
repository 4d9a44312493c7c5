package entitystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cptracker-backend/lib/entitystore/db"
	"cptracker-backend/lib/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps entities in postgres, documents are jsonb columns.
type PostgresStore struct {
	pool  *pgxpool.Pool
	limit int
}

func OpenPostgres(ctx context.Context, connString string, errorLogLimit int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, wrap("open", err)
	}
	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, wrap("open", err)
	}
	_, err = pool.Exec(ctx, db.PostgresSchema)
	if err != nil {
		pool.Close()
		return nil, wrap("migrate", err)
	}
	if errorLogLimit <= 0 {
		errorLogLimit = DefaultErrorLogLimit
	}
	return &PostgresStore{pool: pool, limit: errorLogLimit}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgSelectEntity = `select id, name, handles, profile_urls, profiles, last_refreshed_at from entity`

func pgScanEntity(row pgx.Row) (model.Entity, error) {
	var doc entityDoc
	var lastRefreshed *time.Time
	err := row.Scan(&doc.id, &doc.name, &doc.handles, &doc.profileUrls, &doc.profiles, &lastRefreshed)
	if err != nil {
		return model.Entity{}, err
	}
	e, err := doc.decode()
	if err != nil {
		return model.Entity{}, err
	}
	if lastRefreshed != nil {
		e.LastRefreshedAt = lastRefreshed.UTC()
	}
	return e, nil
}

func pgScanError(row pgx.Row, entityId *string) (model.ErrorLogEntry, error) {
	var entry model.ErrorLogEntry
	var source, kind string
	var err error
	if entityId != nil {
		err = row.Scan(entityId, &source, &kind, &entry.Message, &entry.Time)
	} else {
		err = row.Scan(&source, &kind, &entry.Message, &entry.Time)
	}
	entry.Source = model.SourceKind(source)
	entry.Kind = model.ErrorKind(kind)
	entry.Time = entry.Time.UTC()
	return entry, err
}

func (s *PostgresStore) FindByKey(ctx context.Context, id string) (model.Entity, error) {
	e, err := pgScanEntity(s.pool.QueryRow(ctx, pgSelectEntity+" where id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Entity{}, wrap("find", fmt.Errorf("%s: %w", id, ErrEntityNotFound))
	}
	if err != nil {
		return model.Entity{}, wrap("find", err)
	}

	rows, err := s.pool.Query(
		ctx,
		"select source, kind, message, time from entity_error where entity_id = $1 order by id",
		id,
	)
	if err != nil {
		return model.Entity{}, wrap("find errors", err)
	}
	defer rows.Close()
	for rows.Next() {
		entry, err := pgScanError(rows, nil)
		if err != nil {
			return model.Entity{}, wrap("find errors", err)
		}
		e.Errors = append(e.Errors, entry)
	}
	if err := rows.Err(); err != nil {
		return model.Entity{}, wrap("find errors", err)
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx, pgSelectEntity+" order by id")
	if err != nil {
		return nil, wrap("list", err)
	}
	var entities []model.Entity
	index := map[string]int{}
	for rows.Next() {
		e, err := pgScanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, wrap("list", err)
		}
		index[e.ID] = len(entities)
		entities = append(entities, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap("list", err)
	}

	errRows, err := s.pool.Query(ctx, "select entity_id, source, kind, message, time from entity_error order by id")
	if err != nil {
		return nil, wrap("list errors", err)
	}
	defer errRows.Close()
	for errRows.Next() {
		var entityId string
		entry, err := pgScanError(errRows, &entityId)
		if err != nil {
			return nil, wrap("list errors", err)
		}
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

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *PostgresStore) Create(ctx context.Context, entity model.Entity) error {
	if entity.ID == "" {
		return wrap("create", fmt.Errorf("entity id is empty"))
	}
	doc, err := encodeEntity(entity)
	if err != nil {
		return wrap("create", err)
	}
	tag, err := s.pool.Exec(
		ctx,
		`insert into entity (id, name, handles, profile_urls, profiles, last_refreshed_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (id) do nothing`,
		doc.id, doc.name, string(doc.handles), string(doc.profileUrls), string(doc.profiles),
		nullableTime(entity.LastRefreshedAt),
	)
	if err != nil {
		return wrap("create", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("create", fmt.Errorf("entity %s already exists", entity.ID))
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "delete from entity_error where entity_id = $1", id)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, "delete from entity where id = $1", id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s: %w", id, ErrEntityNotFound)
		}
		return nil
	})
	if err != nil {
		return wrap("delete", err)
	}
	return nil
}

// updateDoc rewrites one jsonb column through `fn`, the row stays locked
// until the transaction ends.
func (s *PostgresStore) updateDoc(ctx context.Context, tx pgx.Tx, id, column string, fn func(doc []byte) ([]byte, error)) error {
	var doc []byte
	err := tx.QueryRow(ctx, fmt.Sprintf("select %s from entity where id = $1 for update", column), id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, ErrEntityNotFound)
	}
	if err != nil {
		return err
	}
	updated, err := fn(doc)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, fmt.Sprintf("update entity set %s = $1 where id = $2", column), string(updated), id)
	return err
}

func (s *PostgresStore) SetHandle(ctx context.Context, id string, source model.SourceKind, handle string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return s.updateDoc(ctx, tx, id, "handles", func(doc []byte) ([]byte, error) {
			return setKey(doc, source, handle)
		})
	})
	if err != nil {
		return wrap("set handle", err)
	}
	return nil
}

func (s *PostgresStore) SetProfileURL(ctx context.Context, id string, source model.SourceKind, url string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return s.updateDoc(ctx, tx, id, "profile_urls", func(doc []byte) ([]byte, error) {
			return setKey(doc, source, url)
		})
	})
	if err != nil {
		return wrap("set profile url", err)
	}
	return nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, id string, source model.SourceKind, profile model.Profile) error {
	return s.apply(ctx, "upsert profile", id, Refresh{
		Profiles: map[model.SourceKind]model.Profile{source: profile},
	})
}

func (s *PostgresStore) AppendError(ctx context.Context, id string, entry model.ErrorLogEntry) error {
	return s.apply(ctx, "append error", id, Refresh{
		Failures: []model.ErrorLogEntry{entry},
	})
}

func (s *PostgresStore) SetLastRefreshed(ctx context.Context, id string, t time.Time) error {
	return s.apply(ctx, "set last refreshed", id, Refresh{RefreshedAt: t})
}

func (s *PostgresStore) ApplyRefresh(ctx context.Context, id string, refresh Refresh) error {
	return s.apply(ctx, "apply refresh", id, refresh)
}

func (s *PostgresStore) apply(ctx context.Context, op, id string, refresh Refresh) error {
	err := validateProfiles(refresh.Profiles)
	if err != nil {
		return wrap(op, err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := s.updateDoc(ctx, tx, id, "profiles", func(doc []byte) ([]byte, error) {
			return mergeProfiles(doc, refresh.Profiles)
		})
		if err != nil {
			return err
		}

		if len(refresh.Failures) > 0 {
			batch := &pgx.Batch{}
			for _, entry := range refresh.Failures {
				batch.Queue(
					"insert into entity_error (entity_id, source, kind, message, time) values ($1, $2, $3, $4, $5)",
					id, string(entry.Source), string(entry.Kind), entry.Message, entry.Time,
				)
			}
			batch.Queue(
				`delete from entity_error where entity_id = $1 and id not in (
					select id from entity_error where entity_id = $1 order by id desc limit $2
				)`,
				id, s.limit,
			)
			err = tx.SendBatch(ctx, batch).Close()
			if err != nil {
				return err
			}
		}

		if !refresh.RefreshedAt.IsZero() {
			_, err = tx.Exec(ctx, "update entity set last_refreshed_at = $1 where id = $2", refresh.RefreshedAt, id)
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
