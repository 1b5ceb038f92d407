package scan

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	hzPerMHz = 1e6

	defaultQueueCapacity = 512
	reconnectBaseDelay   = time.Second
	reconnectMaxDelay    = 30 * time.Second
	maxConsecutiveFails  = 5
)

// batchFrame is the wire representation of one scan batch. Frequencies are
// Hz on the wire and converted to MHz on receipt.
type batchFrame struct {
	Timestamp float64        `json:"ts"` // Unix seconds, fractional
	Config    map[string]any `json:"config"`
	Samples   []sampleFrame  `json:"samples"`
}

type sampleFrame struct {
	FrequencyHz float64 `json:"freq_hz"`
	PowerDB     float64 `json:"db"`
}

// Receiver ingests scan batches from one or more scanner WebSocket endpoints
// and implements Source. Each endpoint gets its own reader goroutine which
// reconnects with exponential backoff; an endpoint is declared dead after
// too many consecutive failures. The receiver is healthy while at least one
// endpoint is alive.
type Receiver struct {
	endpoints []string
	queue     *BatchQueue
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	dead         atomic.Int32
	shutdownOnce sync.Once
	shutdownErr  error
}

// WithQueueCapacity overrides the pending-batch queue capacity.
func WithQueueCapacity(n int) func(*Receiver) {
	return func(r *Receiver) {
		r.queue = NewBatchQueue(n)
	}
}

// NewReceiver creates a receiver for the given endpoints and starts its
// reader goroutines. Endpoints are WebSocket URLs, e.g. "ws://host:8001/scan".
func NewReceiver(endpoints []string, logger *slog.Logger, options ...func(*Receiver)) (*Receiver, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no scanner endpoints specified")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		endpoints: endpoints,
		queue:     NewBatchQueue(defaultQueueCapacity),
		logger:    logger,
		cancel:    cancel,
	}
	for _, option := range options {
		option(r)
	}

	for _, endpoint := range endpoints {
		r.wg.Add(1)
		go r.readLoop(ctx, endpoint)
	}
	return r, nil
}

// Poll returns the oldest pending batch, or nil when nothing is pending.
func (r *Receiver) Poll() *Batch {
	return r.queue.Pop()
}

// Healthy reports whether at least one endpoint reader is still alive.
func (r *Receiver) Healthy() bool {
	return int(r.dead.Load()) < len(r.endpoints)
}

// Shutdown stops all reader goroutines and waits for them to exit.
// It is safe to call more than once.
func (r *Receiver) Shutdown() error {
	r.shutdownOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
	})
	return r.shutdownErr
}

func (r *Receiver) readLoop(ctx context.Context, endpoint string) {
	defer r.wg.Done()

	fails := 0
	delay := reconnectBaseDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			fails++
			if fails >= maxConsecutiveFails {
				r.logger.Error("scanner endpoint unreachable, giving up",
					slog.String("endpoint", endpoint),
					slog.Int("attempts", fails))
				r.dead.Add(1)
				return
			}
			r.logger.Warn("scanner connect failed, retrying",
				slog.String("endpoint", endpoint),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}

		r.logger.Info("scanner connected", slog.String("endpoint", endpoint))
		fails = 0
		delay = reconnectBaseDelay

		r.consume(ctx, conn, endpoint)
		_ = conn.Close()
	}
}

// consume reads frames from an established connection until it breaks or the
// context is cancelled.
func (r *Receiver) consume(ctx context.Context, conn *websocket.Conn, endpoint string) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close() // unblock ReadJSON
		case <-done:
		}
	}()

	for {
		var frame batchFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("scanner read failed",
					slog.String("endpoint", endpoint),
					slog.String("error", err.Error()))
			}
			return
		}

		batch, err := frame.toBatch()
		if err != nil {
			r.logger.Warn("discarding malformed scan frame",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()))
			continue
		}
		if r.queue.Push(batch) {
			r.logger.Warn("scan queue full, dropped oldest batch",
				slog.String("endpoint", endpoint),
				slog.Uint64("totalDropped", r.queue.Dropped()))
		}
	}
}

func (f *batchFrame) toBatch() (*Batch, error) {
	if f.Timestamp <= 0 || math.IsNaN(f.Timestamp) {
		return nil, fmt.Errorf("invalid batch timestamp %f", f.Timestamp)
	}
	if len(f.Samples) == 0 {
		return nil, fmt.Errorf("batch has no samples")
	}

	sec, frac := math.Modf(f.Timestamp)
	batch := Batch{
		Timestamp: time.Unix(int64(sec), int64(frac*float64(time.Second))),
		Config:    f.Config,
		Samples:   make([]Sample, len(f.Samples)),
	}
	for i, s := range f.Samples {
		batch.Samples[i] = Sample{
			Frequency: s.FrequencyHz / hzPerMHz,
			Power:     s.PowerDB,
		}
	}
	return &batch, nil
}
