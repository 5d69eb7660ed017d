package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a notification id does not exist.
var ErrNotFound = errors.New("notification not found")

// Repository persists notification documents in Postgres. Document-shaped
// fields (payload, presentation options, dismissal timestamps) live in jsonb
// columns; recipient targets are a text[] so either the user id or the
// lowercased email can be matched with a membership query.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const notificationColumns = `
	id, user_id, user_email, targets, type, title, message, tone,
	action_label, action_href, payload, channel, surface_targets,
	toast, banner, read, dismissed_surfaces, acknowledged_at,
	created_at, updated_at, dedupe_key`

// FindByDedupeKey returns the notification with the exact composite dedupe
// key, or nil when none exists.
func (r *Repository) FindByDedupeKey(ctx context.Context, key string) (*Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications WHERE dedupe_key = $1 LIMIT 1
	`, key)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

// Insert writes a new notification document.
func (r *Repository) Insert(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	dismissed, err := json.Marshal(n.DismissedSurfaces)
	if err != nil {
		return fmt.Errorf("marshal dismissed surfaces: %w", err)
	}
	toast, err := marshalOptions(n.Toast)
	if err != nil {
		return err
	}
	banner, err := marshalOptions(n.Banner)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, user_email, targets, type, title, message, tone,
			action_label, action_href, payload, channel, surface_targets,
			toast, banner, read, dismissed_surfaces, acknowledged_at,
			created_at, updated_at, dedupe_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		n.ID, n.UserID, n.UserEmail, pq.Array(n.Targets), n.Type, n.Title, n.Message, n.Tone,
		n.ActionLabel, n.ActionHref, payload, string(n.Channel), pq.Array(surfaceStrings(n.SurfaceTargets)),
		toast, banner, n.Read, dismissed, n.AcknowledgedAt,
		n.CreatedAt, n.UpdatedAt, n.DedupeKey,
	)
	return err
}

// Get returns a notification by id.
func (r *Repository) Get(ctx context.Context, id string) (*Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications WHERE id = $1
	`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// ListForTargets returns the newest notifications whose targets intersect the
// given addressing keys (user id and/or lowercased email).
func (r *Repository) ListForTargets(ctx context.Context, targets []string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE targets && $1
		ORDER BY created_at DESC
		LIMIT $2
	`, pq.Array(targets), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification read and stamps acknowledgement.
func (r *Repository) MarkRead(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET read = TRUE, acknowledged_at = $2, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DismissSurface stamps a per-surface dismissal timestamp, optionally marking
// the notification read in the same update.
func (r *Repository) DismissSurface(ctx context.Context, id string, surface Surface, markRead bool, at time.Time) error {
	stamp, err := json.Marshal(map[string]time.Time{string(surface): at})
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET dismissed_surfaces = dismissed_surfaces || $2::jsonb,
		    read = (read OR $3),
		    updated_at = $4
		WHERE id = $1
	`, id, stamp, markRead, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n              Notification
		targets        pq.StringArray
		surfaceTargets pq.StringArray
		channel        string
		payload        []byte
		dismissed      []byte
		toast          sql.NullString
		banner         sql.NullString
	)
	err := row.Scan(
		&n.ID, &n.UserID, &n.UserEmail, &targets, &n.Type, &n.Title, &n.Message, &n.Tone,
		&n.ActionLabel, &n.ActionHref, &payload, &channel, &surfaceTargets,
		&toast, &banner, &n.Read, &dismissed, &n.AcknowledgedAt,
		&n.CreatedAt, &n.UpdatedAt, &n.DedupeKey,
	)
	if err != nil {
		return nil, err
	}
	n.Targets = targets
	n.Channel = Surface(channel)
	for _, s := range surfaceTargets {
		n.SurfaceTargets = append(n.SurfaceTargets, Surface(s))
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	n.DismissedSurfaces = map[string]time.Time{}
	if len(dismissed) > 0 {
		if err := json.Unmarshal(dismissed, &n.DismissedSurfaces); err != nil {
			return nil, fmt.Errorf("unmarshal dismissed surfaces: %w", err)
		}
	}
	if toast.Valid {
		var opts ToastOptions
		if err := json.Unmarshal([]byte(toast.String), &opts); err != nil {
			return nil, fmt.Errorf("unmarshal toast options: %w", err)
		}
		n.Toast = &opts
	}
	if banner.Valid {
		var opts BannerOptions
		if err := json.Unmarshal([]byte(banner.String), &opts); err != nil {
			return nil, fmt.Errorf("unmarshal banner options: %w", err)
		}
		n.Banner = &opts
	}
	return &n, nil
}

func marshalOptions(v any) (any, error) {
	switch opts := v.(type) {
	case *ToastOptions:
		if opts == nil {
			return nil, nil
		}
	case *BannerOptions:
		if opts == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal surface options: %w", err)
	}
	return data, nil
}

func surfaceStrings(surfaces []Surface) []string {
	out := make([]string, len(surfaces))
	for i, s := range surfaces {
		out[i] = string(s)
	}
	return out
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
