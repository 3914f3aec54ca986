package lod

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"crave/map-core/internal/camera"
	"crave/map-core/internal/marker"
	"crave/map-core/internal/metrics"
)

const (
	DefaultFrame         = 16 * time.Millisecond
	DefaultCommandBuffer = 64
)

// Snapshot is the immutable state published after every frame.
type Snapshot struct {
	Render      RenderSets `json:"render"`
	Counters    Counters   `json:"counters"`
	SelectedID  string     `json:"selected_id,omitempty"`
	CatalogSize int        `json:"catalog_size"`
	Moving      bool       `json:"moving"`
	TakenAt     time.Time  `json:"taken_at"`
}

type DriverOptions struct {
	Frame         time.Duration
	CommandBuffer int
	Now           func() time.Time
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

// Driver owns an Engine on a single goroutine. Camera events go through a
// one-slot mailbox where a newer event overwrites an unconsumed one; catalog,
// selection and tap commands go through a bounded queue. Readers only ever
// see the latest published Snapshot.
type Driver struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
	engine  *Engine
	frame   time.Duration
	now     func() time.Time

	inboxMu    sync.Mutex
	inboxEvent *camera.Event
	inboxAt    time.Time
	inboxEnded bool
	inboxIdle  bool
	inboxDrops uint64

	cmds chan func(*Engine)

	snap           atomic.Pointer[Snapshot]
	catalogApplied atomic.Bool
}

func NewDriver(engine *Engine, opts DriverOptions) *Driver {
	if opts.Frame <= 0 {
		opts.Frame = DefaultFrame
	}
	if opts.CommandBuffer <= 0 {
		opts.CommandBuffer = DefaultCommandBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := &Driver{
		log:     opts.Logger,
		metrics: opts.Metrics,
		engine:  engine,
		frame:   opts.Frame,
		now:     opts.Now,
		cmds:    make(chan func(*Engine), opts.CommandBuffer),
	}
	d.snap.Store(&Snapshot{})
	return d
}

// PublishViewport hands a raw camera event to the driver. It never blocks.
func (d *Driver) PublishViewport(ev camera.Event) {
	at := d.now()
	d.inboxMu.Lock()
	if d.inboxEvent != nil {
		atomic.AddUint64(&d.inboxDrops, 1)
	}
	d.inboxEvent = &ev
	d.inboxAt = at
	d.inboxMu.Unlock()
}

func (d *Driver) PublishInteractionEnded() {
	d.inboxMu.Lock()
	d.inboxEnded = true
	d.inboxMu.Unlock()
}

func (d *Driver) PublishIdle() {
	d.inboxMu.Lock()
	d.inboxIdle = true
	d.inboxMu.Unlock()
}

// Submit queues fn to run on the engine goroutine before the next frame. It
// returns false when the queue is full.
func (d *Driver) Submit(fn func(*Engine)) bool {
	select {
	case d.cmds <- fn:
		return true
	default:
		d.log.Warn().Msg("lod command queue full, command dropped")
		return false
	}
}

func (d *Driver) ReplaceCatalog(entries []marker.Entry) bool {
	return d.Submit(func(e *Engine) {
		e.ReplaceCatalog(entries)
		d.catalogApplied.Store(true)
	})
}

func (d *Driver) SetSelection(id string) bool {
	return d.Submit(func(e *Engine) { e.SetSelection(id) })
}

// Tap queues a tap; result receives whether the id was known. result may be nil.
func (d *Driver) Tap(s Selectable, result chan<- bool) bool {
	return d.Submit(func(e *Engine) {
		ok := e.Tap(s)
		if result != nil {
			result <- ok
		}
	})
}

// Snapshot returns the latest published state.
func (d *Driver) Snapshot() Snapshot {
	return *d.snap.Load()
}

// Ready reports whether at least one catalog has been applied.
func (d *Driver) Ready() bool {
	return d.catalogApplied.Load()
}

// MailboxDrops counts camera events overwritten before the engine saw them.
func (d *Driver) MailboxDrops() uint64 {
	return atomic.LoadUint64(&d.inboxDrops)
}

// Step runs one frame at now: pending commands, the newest camera event,
// then an engine tick, then publishes a snapshot.
func (d *Driver) Step(now time.Time) {
	d.drainCommands()

	d.inboxMu.Lock()
	ev, at := d.inboxEvent, d.inboxAt
	ended, idle := d.inboxEnded, d.inboxIdle
	d.inboxEvent = nil
	d.inboxEnded = false
	d.inboxIdle = false
	d.inboxMu.Unlock()

	if ev != nil {
		d.engine.ViewportChanged(*ev, at)
	}
	if ended {
		d.engine.InteractionEnded()
	}
	if idle {
		d.engine.Idle()
	}

	d.engine.Tick(now)
	d.publish(now)
}

func (d *Driver) drainCommands() {
	for {
		select {
		case fn := <-d.cmds:
			fn(d.engine)
		default:
			return
		}
	}
}

func (d *Driver) publish(now time.Time) {
	d.snap.Store(&Snapshot{
		Render:      d.engine.Render(),
		Counters:    d.engine.Counters(),
		SelectedID:  d.engine.SelectedID(),
		CatalogSize: d.engine.CatalogSize(),
		Moving:      d.engine.Moving(),
		TakenAt:     now,
	})
}

func (d *Driver) Run(ctx context.Context) {
	d.log.Info().Dur("frame", d.frame).Msg("lod driver started")

	ticker := time.NewTicker(d.frame)
	defer ticker.Stop()

	var reported uint64
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("lod driver stopped")
			return
		case <-ticker.C:
			d.Step(d.now())
			if drops := d.MailboxDrops(); drops > reported {
				d.metrics.AddCameraDropped(drops - reported)
				reported = drops
			}
		}
	}
}
