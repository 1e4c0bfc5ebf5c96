// Package report implements the two-phase positive-test reporting protocol:
// validate a one-time code into a bearer token, then submit exposure keys
// and selected check-ins under it. Decoy reports run the identical path so
// an observer cannot tell them apart from real ones.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkraev/venuetrace/internal/client"
	"github.com/mkraev/venuetrace/internal/common"
	"github.com/mkraev/venuetrace/internal/interval"
	"github.com/mkraev/venuetrace/internal/logging"
	"github.com/mkraev/venuetrace/internal/models"
	"github.com/mkraev/venuetrace/internal/repositories/kvstore"
	"github.com/mkraev/venuetrace/internal/timex"
)

// Rescheduler advances the decoy schedule. Implemented by decoy.Scheduler.
type Rescheduler interface {
	Reschedule(ctx context.Context, force bool) (time.Time, error)
}

// Outcome is the result of a completed report.
type Outcome struct {
	// Onset is the infectiousness start date embedded in the bearer token.
	Onset time.Time
}

type tokenEntry struct {
	token string
	onset time.Time

	// keysSubmitted flips once phase 2's key upload succeeds, so retrying a
	// failed check-in submission never re-submits the keys.
	keysSubmitted bool
}

// Orchestrator drives the report protocol. The token cache is session
// scoped: a phase-2 failure can be retried without re-spending the
// single-use code, but nothing survives a restart.
type Orchestrator struct {
	api    client.API
	kv     kvstore.Store
	decoys Rescheduler
	log    logging.Logger

	mu     sync.Mutex
	tokens map[string]*tokenEntry
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(api client.API, kv kvstore.Store, decoys Rescheduler, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		api:    api,
		kv:     kv,
		decoys: decoys,
		log:    log,
		tokens: make(map[string]*tokenEntry),
	}
}

// Report runs both phases for the given one-time code. checkIns may be nil.
// On full success of a real report the self-reported flag is set and the
// decoy schedule is forced forward so the next decoy is not suspiciously
// close to the real submission.
func (o *Orchestrator) Report(ctx context.Context, code string, checkIns []models.CheckInRecord, fake bool) (*Outcome, error) {
	entry, err := o.validate(ctx, code, fake)
	if err != nil {
		return nil, err
	}

	if err := o.submit(ctx, entry, checkIns, fake); err != nil {
		return nil, err
	}

	if !fake {
		if err := kvstore.SetJSON(ctx, o.kv, kvstore.KeySelfReported, true); err != nil {
			o.log.Error(ctx, "failed to persist self-reported flag", "error", err)
		}
		if _, err := o.decoys.Reschedule(ctx, true); err != nil {
			o.log.Error(ctx, "failed to reschedule decoys", "error", err)
		}
	}

	return &Outcome{Onset: entry.onset}, nil
}

// validate performs phase 1, consulting the cache first. The entry is
// cached before phase 2 is ever attempted, so a later failure never forces
// re-validation of the single-use code. Invalid codes are never cached.
func (o *Orchestrator) validate(ctx context.Context, code string, fake bool) (*tokenEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if entry, ok := o.tokens[code]; ok {
		return entry, nil
	}

	token, err := o.api.ValidateCode(ctx, code, fake)
	if err != nil {
		return nil, err
	}

	onset, err := onsetFromToken(token)
	if err != nil {
		return nil, err
	}

	entry := &tokenEntry{token: token, onset: onset}
	o.tokens[code] = entry
	return entry, nil
}

// submit performs phase 2. Key upload and check-in upload are independently
// retryable.
func (o *Orchestrator) submit(ctx context.Context, entry *tokenEntry, checkIns []models.CheckInRecord, fake bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !entry.keysSubmitted {
		if err := o.api.SubmitKeys(ctx, entry.token, entry.onset, fake); err != nil {
			return fmt.Errorf("key submission failed: %w", err)
		}
		entry.keysSubmitted = true
	}

	if len(checkIns) > 0 {
		if err := o.api.SubmitCheckIns(ctx, entry.token, splitAtDayBoundaries(checkIns), fake); err != nil {
			return fmt.Errorf("check-in submission failed: %w", err)
		}
	}
	return nil
}

// splitAtDayBoundaries cuts every check-in at calendar-day boundaries, so
// a record spanning midnight is submitted as one piece per day. Open
// records are skipped, only finalized windows can be submitted.
func splitAtDayBoundaries(checkIns []models.CheckInRecord) []models.CheckInRecord {
	out := make([]models.CheckInRecord, 0, len(checkIns))
	for _, rec := range checkIns {
		window, ok := rec.Window()
		if !ok {
			continue
		}
		for day := timex.StartOfDay(window.Start); day.Before(window.End); day = day.AddDate(0, 0, 1) {
			piece, ok := window.Intersect(interval.Interval{Start: day, End: day.AddDate(0, 0, 1)})
			if !ok {
				continue
			}
			cp := rec
			dep := piece.End
			cp.Arrival = piece.Start
			cp.Departure = &dep
			out = append(out, cp)
		}
	}
	return out
}

// onsetFromToken extracts the onset date from the bearer token's claims.
// The token's signature is verified by the pinned transport; here only the
// payload segment is decoded. Claims may carry the date as "onset" or the
// older "keydate", both formatted yyyy-MM-dd.
func onsetFromToken(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", common.ErrParse, err)
	}

	raw, ok := claims["onset"]
	if !ok {
		raw, ok = claims["keydate"]
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%w: token carries no onset claim", common.ErrParse)
	}

	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: onset claim is not a string", common.ErrParse)
	}

	onset, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", common.ErrParse, err)
	}
	return onset, nil
}
