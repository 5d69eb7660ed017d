// Package roster exposes read-only views of classes and enrolled students.
// Both are owned elsewhere; this core only queries them.
package roster

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Class describes a scheduled class. ReminderLeadMinutes overrides the default
// pre-class lookahead when set.
type Class struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Schedule            string `json:"schedule"`
	Room                string `json:"room,omitempty"`
	ReminderLeadMinutes *int   `json:"reminderLeadMinutes,omitempty"`
}

// DisplayName falls back to the id when the class has no name.
func (c Class) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Student is the slice of a user record the notifiers need.
type Student struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"fname,omitempty"`
	LastName  string `json:"lname,omitempty"`
}

// Repository reads roster data from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListClasses returns all classes.
func (r *Repository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, schedule, room, reminder_lead_minutes
		FROM classes
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []Class
	for rows.Next() {
		var (
			c    Class
			name sql.NullString
			sch  sql.NullString
			room sql.NullString
			lead sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &name, &sch, &room, &lead); err != nil {
			return nil, err
		}
		c.Name = name.String
		c.Schedule = sch.String
		c.Room = room.String
		if lead.Valid {
			minutes := int(lead.Int64)
			c.ReminderLeadMinutes = &minutes
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// GetClass returns a class by id, or nil when it does not exist.
func (r *Repository) GetClass(ctx context.Context, classID string) (*Class, error) {
	if classID == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, schedule, room, reminder_lead_minutes
		FROM classes WHERE id = $1
	`, classID)
	var (
		c    Class
		name sql.NullString
		sch  sql.NullString
		room sql.NullString
		lead sql.NullInt64
	)
	if err := row.Scan(&c.ID, &name, &sch, &room, &lead); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Name = name.String
	c.Schedule = sch.String
	c.Room = room.String
	if lead.Valid {
		minutes := int(lead.Int64)
		c.ReminderLeadMinutes = &minutes
	}
	return &c, nil
}

// StudentsInClass returns the students enrolled in a class.
func (r *Repository) StudentsInClass(ctx context.Context, classID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, fname, lname
		FROM users
		WHERE role = 'student' AND classes @> $1
	`, pq.Array([]string{classID}))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var (
			s     Student
			email sql.NullString
			fname sql.NullString
			lname sql.NullString
		)
		if err := rows.Scan(&s.ID, &email, &fname, &lname); err != nil {
			return nil, err
		}
		s.Email = email.String
		s.FirstName = fname.String
		s.LastName = lname.String
		students = append(students, s)
	}
	return students, rows.Err()
}

// GetStudent returns a student by id, or nil when it does not exist.
func (r *Repository) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	if studentID == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, fname, lname
		FROM users WHERE id = $1
	`, studentID)
	var (
		s     Student
		email sql.NullString
		fname sql.NullString
		lname sql.NullString
	)
	if err := row.Scan(&s.ID, &email, &fname, &lname); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Email = email.String
	s.FirstName = fname.String
	s.LastName = lname.String
	return &s, nil
}
