package provenance

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chartd/chartd/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

const recCols = `id, actor_id, action, entity_type, entity_id, entity_scope, source, recorded_at, metadata`

func (r *repoPG) Insert(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_record (id, actor_id, action, entity_type, entity_id, entity_scope, source, recorded_at, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.ID, rec.ActorID, rec.Action, rec.EntityType, rec.EntityID, rec.EntityScope,
		rec.Source, rec.RecordedAt, rec.Metadata,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Record, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_record`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM audit_record%s ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d`,
		recCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.ActorID, &rec.Action, &rec.EntityType, &rec.EntityID,
			&rec.EntityScope, &rec.Source, &rec.RecordedAt, &rec.Metadata,
		); err != nil {
			return nil, 0, err
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func buildFilter(f ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(col string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.ActorID != nil {
		add("actor_id", *f.ActorID)
	}
	if f.Action != nil {
		add("action", *f.Action)
	}
	if f.EntityType != nil {
		add("entity_type", *f.EntityType)
	}
	if f.EntityID != nil {
		add("entity_id", *f.EntityID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
