package monitoring

import (
	"log"
	"sync"
	"time"

	"github.com/banshee-data/seizure-classifier/internal/timeutil"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Progress reports completion of a fixed amount of work through Logf, once
// per tenth of the total. Safe for concurrent use.
type Progress struct {
	label string
	total int
	clock timeutil.Clock
	start time.Time

	mu       sync.Mutex
	done     int
	reported int
}

// NewProgress starts tracking total units of work under label. Elapsed
// times are measured on clock; nil uses the real clock.
func NewProgress(label string, total int, clock timeutil.Clock) *Progress {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Progress{label: label, total: total, clock: clock, start: clock.Now()}
}

// Add records n completed units.
func (p *Progress) Add(n int) {
	if p == nil || p.total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	decile := p.done * 10 / p.total
	if decile <= p.reported {
		return
	}
	p.reported = decile
	Logf("%s: %d/%d (%d%%) after %s", p.label, p.done, p.total, decile*10, p.clock.Since(p.start).Round(time.Millisecond))
}

// Done returns the number of completed units.
func (p *Progress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
