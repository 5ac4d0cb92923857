package investigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chartd/chartd/internal/platform/apperror"
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

const resultCols = `r.id, r.order_id, r.code, r.name, r.value, r.units,
	r.reference_low, r.reference_high, r.interpretation, r.performer,
	r.observed_at, r.reviewed, r.reviewer_id, r.reviewed_at, r.attachments,
	r.created_at, r.updated_at`

func (r *repoPG) GetResult(ctx context.Context, id uuid.UUID) (*Result, error) {
	res, err := scanResult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+resultCols+` FROM investigation_result r WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("investigation result")
	}
	return res, err
}

func (r *repoPG) MarkReviewed(ctx context.Context, id, reviewerID uuid.UUID, reviewedAt time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE investigation_result SET
			reviewed = TRUE, reviewer_id = $2, reviewed_at = $3, updated_at = NOW()
		WHERE id = $1 AND reviewed = FALSE`,
		id, reviewerID, reviewedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) ClearReview(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE investigation_result SET
			reviewed = FALSE, reviewer_id = NULL, reviewed_at = NULL, updated_at = NOW()
		WHERE id = $1`,
		id,
	)
	return err
}

func (r *repoPG) ListResults(ctx context.Context, f ListFilter, limit, offset int) ([]*Result, int, error) {
	where, args := buildFilter(f)
	from := ` FROM investigation_result r JOIN investigation_order o ON o.id = r.order_id`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s%s%s ORDER BY r.observed_at DESC NULLS LAST, r.created_at DESC LIMIT $%d OFFSET $%d`,
		resultCols, from, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func buildFilter(f ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(col string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.OrderID != nil {
		add("r.order_id", *f.OrderID)
	}
	if f.PatientID != nil {
		add("o.patient_id", *f.PatientID)
	}
	if f.Reviewed != nil {
		add("r.reviewed", *f.Reviewed)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	err := row.Scan(
		&res.ID, &res.OrderID, &res.Code, &res.Name, &res.Value, &res.Units,
		&res.ReferenceLow, &res.ReferenceHigh, &res.Interpretation, &res.Performer,
		&res.ObservedAt, &res.Reviewed, &res.ReviewerID, &res.ReviewedAt, &res.Attachments,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
