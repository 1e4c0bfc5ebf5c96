// Package decoy emits fake reports on a randomized schedule so that an
// observer of the network cannot distinguish a user who reports a positive
// test from one who never does.
package decoy

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	"math"
	"math/big"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mkraev/venuetrace/internal/logging"
	"github.com/mkraev/venuetrace/internal/models"
	"github.com/mkraev/venuetrace/internal/report"
	"github.com/mkraev/venuetrace/internal/repositories/kvstore"
)

// DefaultMeanInterval is the mean of the exponential distribution the next
// decoy fire time is drawn from.
const DefaultMeanInterval = 5 * 24 * time.Hour

const codeDigits = 12

// Reporter runs a report. Implemented by report.Orchestrator; decoys always
// call it with fake set.
type Reporter interface {
	Report(ctx context.Context, code string, checkIns []models.CheckInRecord, fake bool) (*report.Outcome, error)
}

// Scheduler persists a single next-fire timestamp and, once the wall clock
// passes it, sends one fake report through the real reporting path.
type Scheduler struct {
	kv       kvstore.Store
	log      logging.Logger
	reporter Reporter

	mean time.Duration

	// Injected for tests.
	randFn  func() float64
	nowFn   func() time.Time
	delayFn func(ctx context.Context, d time.Duration) error
}

// NewScheduler wires a Scheduler with the default mean interval. The
// reporter is attached separately via SetReporter because the orchestrator
// itself needs the scheduler to force a reschedule after a real report.
func NewScheduler(kv kvstore.Store, log logging.Logger) *Scheduler {
	return &Scheduler{
		kv:      kv,
		log:     log,
		mean:    DefaultMeanInterval,
		randFn:  rand.Float64,
		nowFn:   time.Now,
		delayFn: sleep,
	}
}

// SetReporter attaches the reporter used for decoy submissions.
func (s *Scheduler) SetReporter(r Reporter) { s.reporter = r }

// SetMeanInterval overrides the mean of the fire-time distribution.
func (s *Scheduler) SetMeanInterval(d time.Duration) {
	if d > 0 {
		s.mean = d
	}
}

// sample draws an exponentially distributed delay with mean s.mean.
func (s *Scheduler) sample() time.Duration {
	u := s.randFn()
	return time.Duration(-math.Log(1-u) * float64(s.mean))
}

// Reschedule ensures a next-fire time exists and returns it. Without force
// an existing future time is kept, so calling it repeatedly is a no-op and
// it is safe to call opportunistically; an absent or already-passed time is
// replaced with a fresh draw. With force a fresh time is always drawn; the
// orchestrator uses that after a real report so the next decoy is not
// suspiciously close to it.
func (s *Scheduler) Reschedule(ctx context.Context, force bool) (time.Time, error) {
	if !force {
		at, ok, err := kvstore.GetJSON[time.Time](ctx, s.kv, kvstore.KeyDecoyNextFire)
		if err != nil {
			return time.Time{}, err
		}
		if ok && s.nowFn().Before(at) {
			return at, nil
		}
	}

	at := s.nowFn().Add(s.sample())
	if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyDecoyNextFire, at); err != nil {
		return time.Time{}, err
	}

	s.log.Debug(ctx, "decoy scheduled", "at", at)
	return at, nil
}

// Fire checks whether the scheduled time has passed and, if so, submits one
// fake report. A failed submission leaves the schedule untouched so the next
// wake-up retries; only a successful decoy advances it. The stored time is
// read directly, Reschedule would refresh an overdue one.
func (s *Scheduler) Fire(ctx context.Context) error {
	at, ok, err := kvstore.GetJSON[time.Time](ctx, s.kv, kvstore.KeyDecoyNextFire)
	if err != nil {
		return err
	}
	if !ok {
		_, err := s.Reschedule(ctx, false)
		return err
	}
	if s.nowFn().Before(at) {
		return nil
	}

	// Small random delay decouples the submission from whatever periodic
	// trigger invoked us.
	jitter := 20*time.Second + time.Duration(s.randFn()*float64(10*time.Second))
	if err := s.delayFn(ctx, jitter); err != nil {
		return err
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("failed to generate decoy code: %w", err)
	}
	recs, err := s.fakeCheckIns()
	if err != nil {
		return fmt.Errorf("failed to generate decoy check-ins: %w", err)
	}

	if _, err := s.reporter.Report(ctx, code, recs, true); err != nil {
		return fmt.Errorf("decoy report failed: %w", err)
	}

	s.log.Info(ctx, "decoy report sent")

	_, err = s.Reschedule(ctx, true)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fakeCheckIns fabricates a small closed check-in so a decoy report issues
// the same request sequence as a real one, check-in submission included.
// An observer counting requests must not be able to tell them apart.
func (s *Scheduler) fakeCheckIns() ([]models.CheckInRecord, error) {
	token := make([]byte, 32)
	if _, err := cryptorand.Read(token); err != nil {
		return nil, err
	}

	now := s.nowFn()
	arrival := now.Add(-time.Duration((1 + s.randFn()*5) * float64(time.Hour)))
	departure := arrival.Add(time.Duration((0.5 + s.randFn()*2) * float64(time.Hour)))

	return []models.CheckInRecord{{
		VenueToken: token,
		Arrival:    arrival,
		Departure:  &departure,
	}}, nil
}

// randomCode produces a code shaped like a real verification code. The
// backend rejects it, but the request on the wire is indistinguishable.
func randomCode() (string, error) {
	var b strings.Builder
	b.Grow(codeDigits)
	for i := 0; i < codeDigits; i++ {
		n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
