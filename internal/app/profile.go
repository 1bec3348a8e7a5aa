package app

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// profiler appends one CSV row per engine tick and per redraw so control
// loop jitter can be inspected offline.
type profiler struct {
	mu      sync.Mutex
	file    *os.File
	start   time.Time
	enabled bool
}

func newProfiler(path string, log logrus.FieldLogger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("profiler disabled")
		}
		return nil
	}
	p := &profiler{
		file:    f,
		enabled: true,
	}
	p.writeHeader()
	return p
}

func (p *profiler) writeHeader() {
	if p == nil || !p.enabled {
		return
	}
	fmt.Fprintln(p.file, "timestamp,section,tasks,delta_ms")
}

func (p *profiler) begin() {
	if p == nil || !p.enabled {
		return
	}
	p.start = time.Now()
}

func (p *profiler) mark(section string, tasks int) {
	if p == nil || !p.enabled {
		return
	}
	p.log(section, tasks, time.Since(p.start).Seconds()*1000)
}

func (p *profiler) Close() error {
	if p == nil || !p.enabled {
		return nil
	}
	return p.file.Close()
}

func (p *profiler) log(section string, tasks int, deltaMs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return
	}
	timestamp := time.Now().Format(time.RFC3339Nano)
	fmt.Fprintf(p.file, "%s,%s,%d,%.3f\n", timestamp, section, tasks, deltaMs)
}
