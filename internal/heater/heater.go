// Package heater implements the PID-driven heater worker (C5): a
// long-lived goroutine per heater that samples temperature, updates a
// PID, and writes a power duty cycle, direct port of
// _examples/original_source/cnc/heater.py and pid.py onto goroutines +
// channels + a mutex instead of Python threading.Thread.
package heater

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoopInterval and SensorTimeout mirror heater.py's LOOP_INTERVAL_S and
// SENSOR_TIMEOUT_S.
const (
	LoopInterval  = 500 * time.Millisecond
	SensorTimeout = 1 * time.Second
)

// ReadFunc samples the current temperature in Celsius.
type ReadFunc func() (float64, error)

// WriteFunc applies a power duty cycle in [0,100].
type WriteFunc func(percent float64) error

// Heater owns one PID loop running on its own goroutine. A single
// instance exists per physical heater at any time (spec §3 invariant 6);
// starting a new one after Stop is safe, but two concurrently driving the
// same WriteFunc is a caller error.
type Heater struct {
	name  string
	pid   *PID
	read  ReadFunc
	write WriteFunc
	log   *zap.SugaredLogger
	clock func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Heater targeting targetC, not yet started.
func New(name string, targetC float64, coeffs Coefficients, read ReadFunc, write WriteFunc, log *zap.SugaredLogger) *Heater {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Heater{
		name:  name,
		pid:   NewPID(targetC, coeffs),
		read:  read,
		write: write,
		log:   log,
		clock: time.Now,
	}
}

// Start launches the worker goroutine. It is a no-op if already running.
func (h *Heater) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.running = true
	h.done = make(chan struct{})
	go h.run(ctx)
}

func (h *Heater) run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(LoopInterval)
	defer ticker.Stop()

	var failingSince time.Time
	failing := false

	for {
		select {
		case <-ctx.Done():
			_ = h.write(0)
			return
		case now := <-ticker.C:
			h.mu.Lock()
			if !h.running {
				h.mu.Unlock()
				_ = h.write(0)
				return
			}
			h.mu.Unlock()

			temp, err := h.read()
			if err != nil {
				if !failing {
					failing = true
					failingSince = now
				}
				_ = h.write(0)
				if now.Sub(failingSince) >= SensorTimeout {
					h.log.Warnw("heater sensor failure exceeded timeout, stopping", "heater", h.name, "err", err)
					h.mu.Lock()
					h.running = false
					h.mu.Unlock()
					return
				}
				continue
			}
			failing = false

			power := h.pid.Update(temp, float64(now.UnixNano())/1e9) * 100
			if err := h.write(power); err != nil {
				h.log.Warnw("heater power write failed", "heater", h.name, "err", err)
			}
		}
	}
}

// Stop signals the worker to exit and writes 0 power, mirroring
// heater.py's mutex-guarded stop(): acquire the lock before clearing the
// run flag so the worker observes it between samples, release, then force
// the output to 0 regardless of whether the worker has noticed yet.
func (h *Heater) Stop() {
	h.mu.Lock()
	wasRunning := h.running
	h.running = false
	cancel := h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasRunning {
		<-h.done
	}
	_ = h.write(0)
}

// SetTarget updates the setpoint without restarting the worker.
func (h *Heater) SetTarget(targetC float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pid.SetTarget(targetC)
}

// IsFixed reports whether the PID has held within band for FixTimeS.
func (h *Heater) IsFixed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid.IsFixed()
}

// Wait blocks until IsFixed becomes true or ctx is cancelled, polling at
// a coarse interval the way heater.py's wait() does.
func (h *Heater) Wait(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	lastLog := h.clock()
	for {
		if h.IsFixed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("heater %s: wait cancelled: %w", h.name, ctx.Err())
		case now := <-ticker.C:
			if now.Sub(lastLog) >= 2*time.Second {
				h.log.Infow("waiting for heater to stabilize", "heater", h.name, "target", h.pid.Target())
				lastLog = now
			}
		}
	}
}
