package telemetry

import (
	"slices"
	"sync"
)

type Report struct {
	Id     string
	Params []any
}

// Recorder is an API that keeps every report in memory so tests can
// assert on what broke.
type Recorder struct {
	mutex    sync.Mutex
	broken   []Report
	warnings []Report
	counts   map[string]int64
}

func NewRecorder() *Recorder {
	return &Recorder{counts: map[string]int64{}}
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.broken = append(r.broken, Report{Id: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.warnings = append(r.warnings, Report{Id: id, Params: params})
}

func (r *Recorder) ReportDebug(string, ...any) {}

func (r *Recorder) ReportCount(id string, count int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.counts[id] = count
}

func (r *Recorder) Broken() []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return slices.Clone(r.broken)
}

func (r *Recorder) Warnings() []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return slices.Clone(r.warnings)
}

func (r *Recorder) Count(id string) int64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.counts[id]
}

// WarningIds lists the ids of every warning in report order.
func (r *Recorder) WarningIds() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	ids := make([]string, len(r.warnings))
	for i, w := range r.warnings {
		ids[i] = w.Id
	}
	return ids
}

// BrokenIds lists the ids of every broken report in report order.
func (r *Recorder) BrokenIds() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	ids := make([]string, len(r.broken))
	for i, b := range r.broken {
		ids[i] = b.Id
	}
	return ids
}
