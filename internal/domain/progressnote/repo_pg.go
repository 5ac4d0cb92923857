package progressnote

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

const noteCols = `id, encounter_id, patient_id, author_id, status,
	subjective, objective, assessment, plan, summary, attachments,
	autosaved_at, finalized_at, signature_hash, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO progress_note (
			id, encounter_id, patient_id, author_id, status,
			subjective, objective, assessment, plan, summary, attachments
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		n.ID, n.EncounterID, n.PatientID, n.AuthorID, n.Status,
		n.Subjective, n.Objective, n.Assessment, n.Plan, n.Summary, n.Attachments,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	n, err := scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM progress_note WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("progress note")
	}
	return n, err
}

func (r *repoPG) UpdateDraftContent(ctx context.Context, n *Note) (bool, error) {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE progress_note SET
			subjective=$2, objective=$3, assessment=$4, plan=$5, summary=$6,
			attachments=$7, autosaved_at=NOW(), updated_at=NOW()
		WHERE id = $1 AND status = $8
		RETURNING autosaved_at, updated_at`,
		n.ID, n.Subjective, n.Objective, n.Assessment, n.Plan, n.Summary,
		n.Attachments, StatusDraft,
	).Scan(&n.AutosavedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repoPG) Finalize(ctx context.Context, id uuid.UUID, signatureHash string, finalizedAt time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE progress_note SET
			status=$2, signature_hash=$3, finalized_at=$4, updated_at=NOW()
		WHERE id = $1 AND status = $5`,
		id, StatusFinalized, signatureHash, finalizedAt, StatusDraft,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Note, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM progress_note`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM progress_note%s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		noteCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func buildFilter(f ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(col string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.EncounterID != nil {
		add("encounter_id", *f.EncounterID)
	}
	if f.PatientID != nil {
		add("patient_id", *f.PatientID)
	}
	if f.Status != nil {
		add("status", *f.Status)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(
		&n.ID, &n.EncounterID, &n.PatientID, &n.AuthorID, &n.Status,
		&n.Subjective, &n.Objective, &n.Assessment, &n.Plan, &n.Summary, &n.Attachments,
		&n.AutosavedAt, &n.FinalizedAt, &n.SignatureHash, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
