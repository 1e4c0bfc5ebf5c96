// Package exposure drives the periodic feed sync: fetch problematic events,
// merge them into the local store, recompute exposure matches against the
// check-in diary, and raise alerts for matches the user has not seen yet.
package exposure

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/mkraev/venuetrace/internal/client"
	"github.com/mkraev/venuetrace/internal/client/feedpb"
	"github.com/mkraev/venuetrace/internal/common"
	"github.com/mkraev/venuetrace/internal/logging"
	"github.com/mkraev/venuetrace/internal/matching"
	"github.com/mkraev/venuetrace/internal/notify"
	"github.com/mkraev/venuetrace/internal/repositories/diary"
	"github.com/mkraev/venuetrace/internal/repositories/events"
	"github.com/mkraev/venuetrace/internal/repositories/kvstore"
)

// DefaultRetentionDays bounds how far back diary records and problematic
// events are kept.
const DefaultRetentionDays = 14

// AutoCheckouter closes a stale open check-in. Implemented by
// checkin.Manager.
type AutoCheckouter interface {
	AutoCheckoutIfStale(ctx context.Context, now time.Time) (bool, error)
}

// Result summarizes one sync pass.
type Result struct {
	// HasNewData reports whether the feed delivered a decodable new batch.
	HasNewData bool

	// NeedsNotification reports whether the pass surfaced exposures the
	// user has not been alerted about before.
	NeedsNotification bool
}

// Engine runs sync passes. A new pass cancels the previous one, so at most
// one is in flight.
type Engine struct {
	diary    diary.Repository
	events   events.Repository
	kv       kvstore.Store
	api      client.API
	matcher  matching.Matcher
	notifier notify.Notifier
	checkins AutoCheckouter
	log      logging.Logger

	retentionDays int
	nowFn         func() time.Time

	mu         sync.Mutex
	cancelPrev context.CancelFunc
	passGen    uint64
	lastErr    error
	errSince   time.Time
}

// NewEngine wires an Engine with the default retention window.
func NewEngine(
	d diary.Repository,
	ev events.Repository,
	kv kvstore.Store,
	api client.API,
	m matching.Matcher,
	n notify.Notifier,
	ac AutoCheckouter,
	log logging.Logger,
) *Engine {
	return &Engine{
		diary:         d,
		events:        ev,
		kv:            kv,
		api:           api,
		matcher:       m,
		notifier:      n,
		checkins:      ac,
		log:           log,
		retentionDays: DefaultRetentionDays,
		nowFn:         time.Now,
	}
}

// SetRetentionDays overrides the retention window.
func (e *Engine) SetRetentionDays(days int) {
	if days > 0 {
		e.retentionDays = days
	}
}

// LastError returns the current sticky sync error and the time it first
// occurred. Both are zero after a clean pass.
func (e *Engine) LastError() (error, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr, e.errSince
}

// Sync runs one full pass. isBackground only changes how the pass is
// logged; background and foreground passes are otherwise identical, the
// caller decides how to present the result.
//
// Transport and status failures are returned and recorded as sticky state;
// an undecodable or unverifiable payload is not an error, the pass just
// yields no new data.
func (e *Engine) Sync(ctx context.Context, isBackground bool) (Result, error) {
	ctx, done := e.takeOver(ctx)
	defer done()

	log := e.log.With("background", isBackground)
	log.Debug(ctx, "sync started")

	if _, err := e.checkins.AutoCheckoutIfStale(ctx, e.nowFn()); err != nil {
		return Result{}, err
	}

	skip, err := e.shouldSkip(ctx)
	if err != nil {
		return Result{}, err
	}
	if skip {
		log.Debug(ctx, "sync skipped")
		return Result{}, nil
	}

	lastTag, ok, err := kvstore.GetJSON[int64](ctx, e.kv, kvstore.KeyBundleTag)
	if err != nil {
		return Result{}, err
	}
	var tagPtr *int64
	if ok {
		tagPtr = &lastTag
	}

	feed, err := e.api.FetchProblematicEvents(ctx, tagPtr)
	if err != nil {
		if errors.Is(err, common.ErrSignature) {
			// The payload cannot be trusted; the previously stored events
			// remain valid, so this is "nothing usable", not a failure.
			log.Warn(ctx, "feed signature rejected", "error", err)
			return Result{}, nil
		}
		e.recordFailure(ctx, err)
		return Result{}, err
	}

	// The cursor advances regardless of whether the payload decodes; the
	// server already considers this batch delivered.
	if feed.BundleTag != nil {
		if err := kvstore.SetJSON(ctx, e.kv, kvstore.KeyBundleTag, *feed.BundleTag); err != nil {
			return Result{}, err
		}
	}

	e.clearFailure(ctx)

	hasNew := false
	if len(feed.Raw) > 0 {
		batch, err := feedpb.DecodeBatch(feed.Raw)
		if err != nil {
			log.Warn(ctx, "feed batch undecodable, skipping", "error", err)
			return Result{}, nil
		}
		if len(batch) > 0 {
			if err := e.events.UpsertBatch(ctx, batch); err != nil {
				return Result{}, err
			}
			hasNew = true
		}
	}

	newCount, err := e.rematch(ctx)
	if err != nil {
		return Result{}, err
	}
	if newCount > 0 {
		e.notifier.ShowExposureAlert(ctx, newCount)
	}

	if hasNew {
		if err := e.prune(ctx); err != nil {
			return Result{}, err
		}
	}

	log.Info(ctx, "sync finished", "new_data", hasNew, "new_exposures", newCount)
	return Result{HasNewData: hasNew, NeedsNotification: newCount > 0}, nil
}

// RemoveExposure discards the exposure state for one check-in: the matcher
// forgets the matched events and the match rows go away. The notified-id
// set keeps the id on purpose, so the same exposure can never alert twice.
func (e *Engine) RemoveExposure(ctx context.Context, checkinID string) error {
	matches, err := e.events.Matches(ctx)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.CheckinID != checkinID {
			continue
		}
		if err := e.matcher.RemoveExposure(ctx, m.MatchedEventID); err != nil {
			return err
		}
	}
	return e.events.RemoveMatchesForCheckIn(ctx, checkinID)
}

// takeOver cancels any in-flight pass and registers this one. The returned
// done releases the pass's context and deregisters it, unless a newer pass
// has already taken over.
func (e *Engine) takeOver(ctx context.Context) (context.Context, func()) {
	e.mu.Lock()
	if e.cancelPrev != nil {
		e.cancelPrev()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancelPrev = cancel
	e.passGen++
	gen := e.passGen
	e.mu.Unlock()

	done := func() {
		cancel()
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.passGen == gen {
			e.cancelPrev = nil
		}
	}
	return ctx, done
}

// shouldSkip reports whether syncing would be pointless: after a real
// report the user's status is already known, and with no check-ins there
// is nothing to match against.
func (e *Engine) shouldSkip(ctx context.Context) (bool, error) {
	infected, ok, err := kvstore.GetJSON[bool](ctx, e.kv, kvstore.KeySelfReported)
	if err != nil {
		return false, err
	}
	if ok && infected {
		return true, nil
	}

	recs, err := e.diary.All(ctx)
	if err != nil {
		return false, err
	}
	if len(recs) > 0 {
		return false, nil
	}

	active, err := e.diary.ActiveCheckIn(ctx)
	if err != nil {
		return false, err
	}
	return active == nil, nil
}

// rematch recomputes the full match set and alerts on ids not seen before.
// It returns the number of newly notified check-ins.
func (e *Engine) rematch(ctx context.Context) (int, error) {
	recs, err := e.diary.All(ctx)
	if err != nil {
		return 0, err
	}
	stored, err := e.events.All(ctx)
	if err != nil {
		return 0, err
	}

	matches, err := e.matcher.Match(ctx, recs, stored)
	if err != nil {
		return 0, err
	}
	if err := e.events.ReplaceMatches(ctx, matches); err != nil {
		return 0, err
	}

	notified, _, err := kvstore.GetJSON[[]string](ctx, e.kv, kvstore.KeyNotifiedIDs)
	if err != nil {
		return 0, err
	}

	var fresh []string
	for _, m := range matches {
		if slices.Contains(notified, m.CheckinID) || slices.Contains(fresh, m.CheckinID) {
			continue
		}
		fresh = append(fresh, m.CheckinID)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	notified = append(notified, fresh...)
	if err := kvstore.SetJSON(ctx, e.kv, kvstore.KeyNotifiedIDs, notified); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func (e *Engine) prune(ctx context.Context) error {
	now := e.nowFn()
	if err := e.events.PruneOlderThan(ctx, now, e.retentionDays); err != nil {
		return err
	}
	if err := e.diary.PruneOlderThan(ctx, now, e.retentionDays); err != nil {
		return err
	}
	return e.matcher.CleanUpOldData(ctx, e.retentionDays)
}

// recordFailure keeps the first-occurrence timestamp across repeated
// failures; a cancelled pass is the next pass's doing, not a failure.
func (e *Engine) recordFailure(ctx context.Context, cause error) {
	if errors.Is(cause, context.Canceled) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = cause

	since, ok, err := kvstore.GetJSON[time.Time](ctx, e.kv, kvstore.KeySyncErrorSince)
	if err == nil && ok {
		e.errSince = since
		return
	}

	e.errSince = e.nowFn()
	if err := kvstore.SetJSON(context.WithoutCancel(ctx), e.kv, kvstore.KeySyncErrorSince, e.errSince); err != nil {
		e.log.Warn(ctx, "failed to persist sync error state", "error", err)
	}
}

func (e *Engine) clearFailure(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = nil
	e.errSince = time.Time{}
	if err := e.kv.Delete(ctx, kvstore.KeySyncErrorSince); err != nil {
		e.log.Warn(ctx, "failed to clear sync error state", "error", err)
	}
}
