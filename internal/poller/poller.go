// Package poller fetches frames on a fixed interval and reconciles each
// layer into its views.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fleet-visualizer/internal/feed"
	"fleet-visualizer/internal/logging"
	"fleet-visualizer/internal/reconcile"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultInterval     = 5 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// View is one reconciled layer: its reconciler and current bindings.
type View struct {
	Layer      string
	reconciler *reconcile.Reconciler
	bindings   reconcile.Bindings
}

// Result is a completed fetch tagged with the sequence number it was
// issued under.
type Result struct {
	Seq   uint64
	Frame feed.Frame
	Err   error
}

// Stats summarizes poller activity.
type Stats struct {
	Issued      uint64    `json:"issued"`
	Applied     uint64    `json:"applied"`
	Stale       uint64    `json:"stale"`
	Failures    uint64    `json:"failures"`
	LastApplied time.Time `json:"last_applied"`
	LastError   string    `json:"last_error,omitempty"`
}

// Options configures a Poller.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	// DiscardStale drops responses older than the newest applied one.
	// Without it responses are applied in arrival order.
	DiscardStale bool
	// OnFrame is called on the apply goroutine after every applied frame.
	OnFrame func(seq uint64, f feed.Frame)
	// OnChange is called on the apply goroutine when a view's surface
	// changed.
	OnChange func(layer string, seq uint64, ch reconcile.Changes)
	Logger   *logging.Logger
}

// Poller maintains periodic fetches and reconciles the results.
type Poller struct {
	src          feed.Source
	interval     time.Duration
	fetchTimeout time.Duration
	discardStale bool
	onFrame      func(uint64, feed.Frame)
	onChange     func(string, uint64, reconcile.Changes)
	log          *logging.Logger

	views []*View
	seq   atomic.Uint64

	// lastApplied is touched only by the apply goroutine.
	lastApplied uint64

	mu    sync.Mutex
	stats Stats
}

// New returns a poller for src.
func New(src feed.Source, opts Options) *Poller {
	p := &Poller{
		src:          src,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		discardStale: opts.DiscardStale,
		onFrame:      opts.OnFrame,
		onChange:     opts.OnChange,
		log:          opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = DefaultFetchTimeout
	}
	if p.log == nil {
		p.log = logging.Default()
	}
	return p
}

// AddView reconciles layer into r on every frame that provides it. Views
// must be added before Run.
func (p *Poller) AddView(layer string, r *reconcile.Reconciler) *View {
	v := &View{Layer: layer, reconciler: r, bindings: reconcile.Bindings{}}
	p.views = append(p.views, v)
	return v
}

// Run polls until ctx is cancelled. The first fetch is issued immediately.
// Fetches run concurrently with each other, but results are applied one at
// a time on the calling goroutine. Results arriving after ctx is done are
// dropped.
func (p *Poller) Run(ctx context.Context) {
	results := make(chan Result)
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			seq := p.seq.Add(1)
			p.mu.Lock()
			p.stats.Issued = seq
			p.mu.Unlock()
			go p.fetch(ctx, seq, results)
			t.Reset(p.interval)
		case res := <-results:
			p.Apply(res)
		}
	}
}

func (p *Poller) fetch(ctx context.Context, seq uint64, out chan<- Result) {
	cctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()
	frame, err := p.src.Fetch(cctx)
	select {
	case out <- Result{Seq: seq, Frame: frame, Err: err}:
	case <-ctx.Done():
	}
}

// Apply reconciles one result into every view. It must not be called
// concurrently with itself or with Run.
func (p *Poller) Apply(res Result) {
	if res.Err != nil {
		p.log.Warn("poll error", "seq", res.Seq, "error", res.Err)
		p.mu.Lock()
		p.stats.Failures++
		p.stats.LastError = res.Err.Error()
		p.mu.Unlock()
		return
	}
	if p.discardStale && res.Seq <= p.lastApplied {
		p.log.Debug("discarding stale frame", "seq", res.Seq, "last_applied", p.lastApplied)
		p.mu.Lock()
		p.stats.Stale++
		p.mu.Unlock()
		return
	}
	if res.Seq > p.lastApplied {
		p.lastApplied = res.Seq
	}

	for _, v := range p.views {
		snap, ok := res.Frame.Layer(v.Layer)
		if !ok {
			continue
		}
		var ch reconcile.Changes
		v.bindings, ch = v.reconciler.Reconcile(v.bindings, snap)
		if !ch.Empty() {
			p.log.Info("layer updated", "layer", v.Layer, "seq", res.Seq, "live", len(v.bindings), "changes", ch)
			if p.onChange != nil {
				p.onChange(v.Layer, res.Seq, ch)
			}
		}
	}

	p.mu.Lock()
	p.stats.Applied++
	p.stats.LastApplied = time.Now()
	p.stats.LastError = ""
	p.mu.Unlock()

	if p.onFrame != nil {
		p.onFrame(res.Seq, res.Frame)
	}
}

// Stats returns a copy of the current counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Len returns the number of live bindings in v. Only safe on the apply
// goroutine or after Run has returned.
func (v *View) Len() int {
	return len(v.bindings)
}
