package pages

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gomorishita/portfolio/internal/cms"
	"github.com/gomorishita/portfolio/internal/telemetry/metrics"
	"github.com/gomorishita/portfolio/internal/telemetry/tracing"
)

type idSnapshot struct {
	ordered []string
	set     map[string]struct{}
}

// KnownIDs is the closed set of post ids the post page may serve.
// It starts empty; Replace swaps the whole set atomically.
type KnownIDs struct {
	snapshot atomic.Pointer[idSnapshot]
}

func NewKnownIDs(ids ...string) *KnownIDs {
	k := &KnownIDs{}
	k.Replace(ids)
	return k
}

func (k *KnownIDs) Replace(ids []string) {
	s := &idSnapshot{
		ordered: make([]string, 0, len(ids)),
		set:     make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.set[id]; ok {
			continue
		}
		s.set[id] = struct{}{}
		s.ordered = append(s.ordered, id)
	}
	k.snapshot.Store(s)
}

func (k *KnownIDs) load() *idSnapshot {
	if s := k.snapshot.Load(); s != nil {
		return s
	}
	return &idSnapshot{}
}

func (k *KnownIDs) Contains(id string) bool {
	_, ok := k.load().set[id]
	return ok
}

// List returns the ids in enumeration order.
func (k *KnownIDs) List() []string {
	ordered := k.load().ordered
	ids := make([]string, len(ordered))
	copy(ids, ordered)
	return ids
}

func (k *KnownIDs) Len() int {
	return len(k.load().ordered)
}

// Enumerator lists the post ids known ahead of time.
type Enumerator struct {
	source         contentSource
	limit          int
	metricsManager *metrics.Manager
}

func NewEnumerator(source contentSource, limit int, metricsManager *metrics.Manager) *Enumerator {
	if limit <= 0 {
		limit = DefaultKnownIDsLimit
	}
	return &Enumerator{
		source:         source,
		limit:          limit,
		metricsManager: metricsManager,
	}
}

// ListKnownIDs never fails, an unavailable source yields no ids.
func (e *Enumerator) ListKnownIDs(ctx context.Context) []string {
	ids, err := e.fetchIDs(ctx)
	if err != nil {
		logFeedError("list known ids", err)
		return []string{}
	}
	return ids
}

func (e *Enumerator) fetchIDs(ctx context.Context) ([]string, error) {
	ids, err := e.source.FetchIdentifiers(ctx, e.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch identifiers: %w", err)
	}
	return ids, nil
}

// Refresh re-enumerates the ids into known. When the source is unavailable the
// current set is kept and the error returned.
func (e *Enumerator) Refresh(ctx context.Context, known *KnownIDs) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "enumerator.refresh")
	defer func() { tracing.EndSpan(span, err) }()

	ids, err := e.fetchIDs(ctx)
	if err != nil {
		return err
	}

	known.Replace(ids)
	span.SetAttributes(attribute.Int("ids.count", known.Len()))
	if e.metricsManager != nil {
		e.metricsManager.GaugeKnownPostIDs.Set(float64(known.Len()))
	}
	log.Debugf("known post ids refreshed: %d", known.Len())

	return nil
}

// RefreshEvery keeps refreshing known until ctx is done.
func (e *Enumerator) RefreshEvery(ctx context.Context, known *KnownIDs, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugln("known ids refresher stopped")
			return
		case <-ticker.C:
			if err := e.Refresh(ctx, known); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("refresh known post ids: %s", err)
			}
		}
	}
}

func logFeedError(what string, err error) {
	if errors.Is(err, cms.ErrConfigMissing) {
		log.Debugf("%s: %s", what, err)
		return
	}
	log.Warnf("%s: %s", what, err)
}
