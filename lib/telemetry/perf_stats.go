package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type perfGauges struct {
	cpu        metric.Float64Gauge
	rss        metric.Int64Gauge
	heap       metric.Int64Gauge
	goroutines metric.Int64Gauge
}

// PerfSample is a single reading of the process, CPUPercent is -1 when it
// could not be read.
type PerfSample struct {
	CPUPercent float64
	RSSBytes   int64
	HeapBytes  int64
	Goroutines int
}

// SamplePerf reads the current process stats. the cpu reading blocks for
// `window`, a zero window compares against the previous call.
func SamplePerf(ctx context.Context, window time.Duration) PerfSample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	sample := PerfSample{
		CPUPercent: -1,
		HeapBytes:  int64(mem.HeapAlloc),
		Goroutines: runtime.NumGoroutine(),
	}

	usage, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		slog.DebugContext(ctx, "read cpu usage", "err", err)
	} else if len(usage) > 0 {
		sample.CPUPercent = usage[0]
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err == nil {
		info, err := proc.MemoryInfoWithContext(ctx)
		if err == nil {
			sample.RSSBytes = int64(info.RSS)
		}
	}
	return sample
}

// InstrumentPerfStats records a PerfSample every `interval` (30s when
// zero) until ctx is cancelled.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	meter := otel.Meter("cptracker/perf")
	var g perfGauges
	g.cpu, _ = meter.Float64Gauge("process.cpu.percent")
	g.rss, _ = meter.Int64Gauge("process.memory.rss", metric.WithUnit("By"))
	g.heap, _ = meter.Int64Gauge("process.memory.heap", metric.WithUnit("By"))
	g.goroutines, _ = meter.Int64Gauge("process.goroutines")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sample := SamplePerf(ctx, time.Second)
				if sample.CPUPercent >= 0 {
					g.cpu.Record(ctx, sample.CPUPercent)
				}
				if sample.RSSBytes > 0 {
					g.rss.Record(ctx, sample.RSSBytes)
				}
				g.heap.Record(ctx, sample.HeapBytes)
				g.goroutines.Record(ctx, int64(sample.Goroutines))
			case <-ctx.Done():
				return
			}
		}
	}()
}
