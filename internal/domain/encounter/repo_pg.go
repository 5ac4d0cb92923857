package encounter

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

const encCols = `id, patient_id, provider_id, appointment_id, type, mode,
	start_time, end_time, location, rendering_provider_id, status,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounter (
			id, patient_id, provider_id, appointment_id, type, mode,
			start_time, end_time, location, rendering_provider_id, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		enc.ID, enc.PatientID, enc.ProviderID, enc.AppointmentID, enc.Type, enc.Mode,
		enc.StartTime, enc.EndTime, enc.Location, enc.RenderingProviderID, enc.Status,
	).Scan(&enc.CreatedAt, &enc.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := scanEnc(r.conn(ctx).QueryRow(ctx, `SELECT `+encCols+` FROM encounter WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("encounter")
	}
	return enc, err
}

func (r *repoPG) Update(ctx context.Context, enc *Encounter) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter SET
			appointment_id=$2, type=$3, mode=$4, start_time=$5, end_time=$6,
			location=$7, rendering_provider_id=$8, updated_at=NOW()
		WHERE id = $1`,
		enc.ID, enc.AppointmentID, enc.Type, enc.Mode, enc.StartTime, enc.EndTime,
		enc.Location, enc.RenderingProviderID,
	)
	return err
}

func (r *repoPG) BeginVisit(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2`,
		id, StatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE encounter SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*ListItem, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounter e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	cols := prefixCols(encCols, "e.")
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s, n.id, n.status, n.summary, n.updated_at
		FROM encounter e
		LEFT JOIN LATERAL (
			SELECT id, status, summary, updated_at
			FROM progress_note
			WHERE encounter_id = e.id
			ORDER BY updated_at DESC
			LIMIT 1
		) n ON TRUE
		%s
		ORDER BY e.start_time DESC
		LIMIT $%d OFFSET $%d`,
		cols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ListItem
	for rows.Next() {
		var it ListItem
		var noteID *uuid.UUID
		var noteStatus, noteSummary *string
		var noteUpdatedAt *time.Time
		if err := rows.Scan(
			&it.ID, &it.PatientID, &it.ProviderID, &it.AppointmentID, &it.Type, &it.Mode,
			&it.StartTime, &it.EndTime, &it.Location, &it.RenderingProviderID, &it.Status,
			&it.CreatedAt, &it.UpdatedAt,
			&noteID, &noteStatus, &noteSummary, &noteUpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		if noteID != nil {
			it.LatestNote = &NoteProjection{
				ID:        *noteID,
				Status:    *noteStatus,
				Summary:   noteSummary,
				UpdatedAt: *noteUpdatedAt,
			}
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildFilter(f ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.PatientID != nil {
		add("e.patient_id = $%d", *f.PatientID)
	}
	if f.ProviderID != nil {
		add("e.provider_id = $%d", *f.ProviderID)
	}
	if f.Status != nil {
		add("e.status = $%d", *f.Status)
	}
	if f.DateFrom != nil {
		add("e.start_time >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("e.start_time <= $%d", *f.DateTo)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func prefixCols(cols, prefix string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(
		&e.ID, &e.PatientID, &e.ProviderID, &e.AppointmentID, &e.Type, &e.Mode,
		&e.StartTime, &e.EndTime, &e.Location, &e.RenderingProviderID, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
