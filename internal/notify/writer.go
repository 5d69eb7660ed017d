package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary for notification documents. Lookups by
// composite dedupe key must be exact-match.
type Store interface {
	FindByDedupeKey(ctx context.Context, key string) (*Notification, error)
	Insert(ctx context.Context, n *Notification) error
}

// Writer persists one document per requested surface, skipping surfaces whose
// composite dedupe key already exists. The check-then-insert is not atomic;
// two racing writers can still produce a duplicate in a narrow window.
type Writer struct {
	store Store
	now   func() time.Time
}

// NewWriter creates a writer over a store.
func NewWriter(store Store) *Writer {
	return &Writer{store: store, now: time.Now}
}

// CompositeKey builds the per-surface, per-recipient dedupe key.
func CompositeKey(dedupeKey string, surface Surface, userID string) string {
	return fmt.Sprintf("%s:%s:%s", dedupeKey, surface, userID)
}

// Write fans the intent out across its surfaces concurrently. A dedup hit on
// one surface is not an error and does not affect the others.
func (w *Writer) Write(ctx context.Context, intent Intent) error {
	if intent.UserID == "" {
		return errors.New("notification intent requires a user id")
	}
	if len(intent.Surfaces) == 0 {
		return errors.New("notification intent requires at least one surface")
	}

	surfaces := dedupeSurfaces(intent.Surfaces)
	for _, surface := range surfaces {
		if !ValidSurface(surface) {
			return fmt.Errorf("unknown notification surface %q", surface)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(surfaces))
	for i, surface := range surfaces {
		wg.Add(1)
		go func(i int, surface Surface) {
			defer wg.Done()
			errs[i] = w.writeSurface(ctx, intent, surface, surfaces)
		}(i, surface)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (w *Writer) writeSurface(ctx context.Context, intent Intent, surface Surface, surfaces []Surface) error {
	key := CompositeKey(intent.DedupeKey, surface, intent.UserID)

	existing, err := w.store.FindByDedupeKey(ctx, key)
	if err != nil {
		return fmt.Errorf("dedupe lookup for %s: %w", key, err)
	}
	if existing != nil {
		dedupeHits.WithLabelValues(string(surface)).Inc()
		return nil
	}

	now := w.now().UTC()
	tone := intent.Tone
	if tone == "" {
		tone = "info"
	}

	doc := &Notification{
		ID:                uuid.NewString(),
		UserID:            intent.UserID,
		UserEmail:         optionalLowerEmail(intent.UserEmail),
		Targets:           resolveTargets(intent.UserID, intent.UserEmail),
		Type:              intent.Type,
		Title:             intent.Title,
		Message:           intent.Message,
		Tone:              tone,
		ActionLabel:       optional(intent.ActionLabel),
		ActionHref:        optional(intent.ActionHref),
		Payload:           sanitizePayload(intent.Payload),
		Channel:           surface,
		SurfaceTargets:    surfaces,
		Read:              false,
		DismissedSurfaces: map[string]time.Time{},
		CreatedAt:         now,
		UpdatedAt:         now,
		DedupeKey:         key,
	}

	switch surface {
	case SurfaceToast:
		toast := ToastOptions{AutoDismiss: true, DurationMS: 8000}
		if intent.Toast != nil {
			toast = *intent.Toast
		}
		doc.Toast = &toast
	case SurfaceBanner:
		banner := BannerOptions{Persistent: false}
		if intent.Banner != nil {
			banner = *intent.Banner
		}
		doc.Banner = &banner
	}

	if err := w.store.Insert(ctx, doc); err != nil {
		return fmt.Errorf("insert notification %s: %w", key, err)
	}
	notificationsWritten.WithLabelValues(string(surface), intent.Type).Inc()
	return nil
}

func dedupeSurfaces(in []Surface) []Surface {
	seen := map[Surface]bool{}
	out := make([]Surface, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalLowerEmail(email string) *string {
	lowered := lowerEmail(email)
	if lowered == "" {
		return nil
	}
	return &lowered
}
