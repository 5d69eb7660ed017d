package attendance

import (
	"context"
	"database/sql"
	"errors"
)

// Repository reads attendance records from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns a record by id, or nil when it no longer exists.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, student_id, status, is_pending, proposed_status, record_date
		FROM attendance_records WHERE id = $1
	`, id)
	var (
		rec      Record
		status   sql.NullString
		proposed sql.NullString
		date     sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &status, &rec.IsPending, &proposed, &date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Status = status.String
	rec.ProposedStatus = proposed.String
	if date.Valid {
		d := date.Time
		rec.Date = &d
	}
	return &rec, nil
}

// CountAbsences returns the student's total "Absent" records in a class. The
// status match is case-insensitive to tolerate free-text statuses.
func (r *Repository) CountAbsences(ctx context.Context, classID, studentID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM attendance_records
		WHERE class_id = $1 AND student_id = $2 AND LOWER(TRIM(status)) = 'absent'
	`, classID, studentID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
