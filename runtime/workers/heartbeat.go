package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"collab-hub/contract"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*HeartbeatWorker)(nil)

// StatsProvider returns broker-level gauges (live connections, pending
// batch size, pending tokens) to enrich each heartbeat line.
type StatsProvider func() map[string]any

// HeartbeatWorker logs process health (CPU, RAM, Status) together with
// broker stats on a fixed interval. The broker is single-process, so a
// log line is the whole observability surface.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	stats    StatsProvider
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration, stats StatsProvider) *HeartbeatWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HeartbeatWorker{log: log, interval: interval, stats: stats}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting broker heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			args := []any{
				"pid", os.Getpid(),
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
			}
			if w.stats != nil {
				for k, v := range w.stats() {
					args = append(args, k, v)
				}
			}
			w.log.Info("Heartbeat", args...)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
