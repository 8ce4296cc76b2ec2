package selfupdate

import (
	"context"
	"time"

	"github.com/vunamhung/antikit/pkg/logger"
)

const latestKey = "selfupdate.latest"

// StateStore persists the last seen release between runs.
type StateStore interface {
	Get(ctx context.Context, key string) (string, time.Time, bool, error)
	Set(ctx context.Context, key, value string) error
}

// LatestFetcher returns the newest release tag.
type LatestFetcher interface {
	Latest(ctx context.Context) (string, error)
}

// Notifier tells users about new releases, asking GitHub at most once per
// interval.
type Notifier struct {
	store    StateStore
	fetcher  LatestFetcher
	interval time.Duration
	now      func() time.Time
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithInterval sets how long a fetched release tag is reused.
func WithInterval(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.interval = d
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) {
		n.now = now
	}
}

// NewNotifier creates a Notifier.
func NewNotifier(store StateStore, fetcher LatestFetcher, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		store:    store,
		fetcher:  fetcher,
		interval: 6 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Latest returns the newest release tag, from the store when it is recent
// enough.
func (n *Notifier) Latest(ctx context.Context) (string, error) {
	log := logger.G(ctx)

	tag, updatedAt, ok, err := n.store.Get(ctx, latestKey)
	if err != nil {
		log.WithError(err).Debug("failed to read update check state")
	} else if ok && n.now().Sub(updatedAt) < n.interval {
		return tag, nil
	}

	tag, err = n.fetcher.Latest(ctx)
	if err != nil {
		return "", err
	}
	if err := n.store.Set(ctx, latestKey, tag); err != nil {
		log.WithError(err).Debug("failed to store update check state")
	}
	return tag, nil
}

// Notice returns the newer release tag when current is outdated. Failures
// are logged and reported as no update.
func (n *Notifier) Notice(ctx context.Context, current string) (string, bool) {
	if current == "" || current == "dev" {
		return "", false
	}
	latest, err := n.Latest(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("update check failed")
		return "", false
	}
	if !IsNewer(latest, current) {
		return "", false
	}
	return latest, true
}
