package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"crave/map-core/internal/marker"
)

const DefaultPollInterval = 2 * time.Second

// ApplyFunc hands a new catalog to its consumer. It returns false when the
// consumer could not take it; the poller retries the same version later.
type ApplyFunc func(entries []marker.Entry) bool

type PollerOptions struct {
	Interval time.Duration
}

// Poller fetches from a Source and applies a result set only when its version changes.
type Poller struct {
	log      zerolog.Logger
	src      Source
	apply    ApplyFunc
	interval time.Duration

	lastVersion string
}

func NewPoller(log zerolog.Logger, src Source, apply ApplyFunc, opts PollerOptions) *Poller {
	iv := opts.Interval
	if iv <= 0 {
		iv = DefaultPollInterval
	}
	return &Poller{
		log:      log.With().Str("source", src.Name()).Logger(),
		src:      src,
		apply:    apply,
		interval: iv,
	}
}

// PollOnce fetches once and reports whether a new version was applied.
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	rs, err := p.src.Fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrNoResultSet) {
			p.log.Debug().Msg("no result set yet")
			return false, nil
		}
		return false, err
	}
	if rs.Version == p.lastVersion {
		return false, nil
	}
	if !p.apply(rs.Entries) {
		p.log.Warn().Str("version", rs.Version).Msg("result set not accepted, will retry")
		return false, nil
	}

	p.log.Info().
		Str("version", rs.Version).
		Int("markers", len(rs.Entries)).
		Msg("catalog updated")
	p.lastVersion = rs.Version
	return true, nil
}

// Version is the last applied version.
func (p *Poller) Version() string {
	return p.lastVersion
}

func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.src == nil {
		return
	}

	// First poll happens immediately so the map has data before the first interval.
	timer := time.NewTimer(0)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := p.PollOnce(ctx); err != nil {
			consecutiveFailures++
			p.log.Error().Err(err).Int("failures", consecutiveFailures).Msg("catalog poll failed")
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(p.interval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = DefaultPollInterval
	}
	if failures <= 0 {
		return base
	}

	// Exponential-ish backoff: base * 2^failures, capped.
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 10*time.Second {
		return 10 * time.Second
	}
	return d
}
