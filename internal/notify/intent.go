// Package notify fans notification intents out across delivery surfaces with
// at-most-once delivery per (dedupe key, surface, recipient).
package notify

import (
	"context"
	"time"
)

// Surface identifies where a notification is rendered.
type Surface string

const (
	SurfaceBanner Surface = "banner"
	SurfaceToast  Surface = "toast"
	SurfaceInbox  Surface = "inbox"
)

// ValidSurface reports whether s is one of the three known surfaces.
func ValidSurface(s Surface) bool {
	switch s {
	case SurfaceBanner, SurfaceToast, SurfaceInbox:
		return true
	}
	return false
}

// ToastOptions controls toast presentation. When a caller supplies options they
// replace the defaults (autoDismiss true, 8000ms).
type ToastOptions struct {
	AutoDismiss bool `json:"autoDismiss"`
	DurationMS  int  `json:"duration"`
}

// BannerOptions controls banner presentation. Default is non-persistent.
type BannerOptions struct {
	Persistent bool `json:"persistent"`
}

// Intent is the ephemeral value an evaluator hands to a Sink. DedupeKey must be
// stable across repeated evaluation of the same logical event.
type Intent struct {
	UserID      string
	UserEmail   string
	Type        string
	Title       string
	Message     string
	Tone        string
	ActionLabel string
	ActionHref  string
	Payload     map[string]any
	Surfaces    []Surface
	DedupeKey   string
	Toast       *ToastOptions
	Banner      *BannerOptions
}

// Sink consumes notification intents. Evaluators depend on this rather than on
// the concrete writer so tests can capture intents directly.
type Sink interface {
	Write(ctx context.Context, intent Intent) error
}

// Notification is the persisted fan-out of one intent onto one surface for one
// recipient. DedupeKey here is the composite {intent key}:{surface}:{userId}.
type Notification struct {
	ID                string               `json:"id"`
	UserID            string               `json:"userId"`
	UserEmail         *string              `json:"userEmail"`
	Targets           []string             `json:"targets"`
	Type              string               `json:"type"`
	Title             string               `json:"title"`
	Message           string               `json:"message"`
	Tone              string               `json:"tone"`
	ActionLabel       *string              `json:"actionLabel,omitempty"`
	ActionHref        *string              `json:"actionHref,omitempty"`
	Payload           map[string]any       `json:"payload"`
	Channel           Surface              `json:"channel"`
	SurfaceTargets    []Surface            `json:"surfaceTargets"`
	Toast             *ToastOptions        `json:"toast,omitempty"`
	Banner            *BannerOptions       `json:"banner,omitempty"`
	Read              bool                 `json:"read"`
	DismissedSurfaces map[string]time.Time `json:"dismissedSurfaces"`
	AcknowledgedAt    *time.Time           `json:"acknowledgedAt,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
	DedupeKey         string               `json:"dedupeKey"`
}

// OwnedBy reports whether the given identity (user id and optional email) is
// among the notification's stored targets. Email comparison is case-insensitive
// because targets store lowercased addresses.
func (n *Notification) OwnedBy(userID, email string) bool {
	for _, target := range n.Targets {
		if userID != "" && target == userID {
			return true
		}
		if email != "" && target == lowerEmail(email) {
			return true
		}
	}
	return false
}
