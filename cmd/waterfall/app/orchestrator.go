package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rfscan/waterfall/internal/detect"
	"github.com/rfscan/waterfall/internal/ledger"
	"github.com/rfscan/waterfall/internal/scan"
	"github.com/rfscan/waterfall/internal/storage"
	"github.com/rfscan/waterfall/internal/waterfall"
)

// State is the orchestrator lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateResetting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateResetting:
		return "resetting"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Power bounds used until the buffer holds its first valid cell.
const (
	seedDBMin = -220.0
	seedDBMax = -150.0
)

// WithStore attaches the SQLite detection index to the orchestrator.
func WithStore(store storage.Store, sessionID int64) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.sessionID = sessionID
	}
}

// WithDetector attaches a peak-finding strategy. Without one the engine only
// maintains the waterfall and its aggregates.
func WithDetector(d detect.Detector) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.detector = d
	}
}

// WithLedger attaches on-disk persistence rooted at savePath, rotated every
// rotateSecs seconds.
func WithLedger(l *ledger.Ledger, savePath string, rotateSecs int64) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.ledger = l
		o.savePath = savePath
		o.rotateSecs = rotateSecs
	}
}

// WithTopN enables busiest-bin ranking of the top n frequency bins.
func WithTopN(n int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.topN = n
	}
}

// WithSNR switches the published matrix to SNR-relative normalization.
func WithSNR(snrMin, snrMax float64) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.snrEnabled = true
		o.snrMin = snrMin
		o.snrMax = snrMax
	}
}

// WithPollInterval overrides the loop's rate-limiting sleep.
func WithPollInterval(d time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.pollInterval = d
	}
}

// Orchestrator drives the pipeline: drain ingestion, update the buffer,
// rebuild the aggregates, detect and merge peaks, persist. It is the single
// owner of the waterfall buffer, the scan-config history and all per-cycle
// derived state; nothing else mutates them.
type Orchestrator struct {
	source     scan.Source
	indexer    *waterfall.Indexer
	buffer     *waterfall.Buffer
	aggregator *waterfall.Aggregator
	history    *scan.History
	logger     *slog.Logger

	detector  detect.Detector
	ledger    *ledger.Ledger
	store     storage.Store
	sessionID int64

	savePath   string
	rotateSecs int64
	topN       int
	snrEnabled bool
	snrMin     float64
	snrMax     float64

	pollInterval time.Duration
	resetCh      chan struct{}

	state State

	// Per-cycle derived state, rebuilt by deriveCycleState.
	dbMin, dbMax float64
	psd          *waterfall.PSD
	topBins      []float64
	published    [][]float64
}

// NewOrchestrator wires the processing loop around an ingestion source.
func NewOrchestrator(source scan.Source, indexer *waterfall.Indexer, buffer *waterfall.Buffer,
	aggregator *waterfall.Aggregator, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {

	o := Orchestrator{
		source:       source,
		indexer:      indexer,
		buffer:       buffer,
		aggregator:   aggregator,
		history:      scan.NewHistory(buffer.Height()),
		logger:       logger,
		pollInterval: defaultPollIntervalMs * time.Millisecond,
		resetCh:      make(chan struct{}, 1),
		state:        StateInitializing,
		dbMin:        seedDBMin,
		dbMax:        seedDBMax,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// PSD returns the aggregate built in the last completed cycle.
func (o *Orchestrator) PSD() *waterfall.PSD { return o.psd }

// TopBins returns the busiest bin frequencies from the last completed cycle.
func (o *Orchestrator) TopBins() []float64 { return o.topBins }

// Published returns the last normalized matrix, the artifact an external
// presentation process would consume.
func (o *Orchestrator) Published() [][]float64 { return o.published }

// Reset requests a rebuild of cycle-scoped derived structures (edges, ranking
// caches) without losing buffer contents. Safe to call from other goroutines;
// coalesces when a reset is already pending.
func (o *Orchestrator) Reset() {
	select {
	case o.resetCh <- struct{}{}:
	default:
	}
}

// Run executes the processing loop until the context is cancelled or the
// source reports itself unhealthy. Batches drained in the current iteration
// are always processed to completion before the loop exits; the source is
// shut down on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.deriveCycleState()
	o.state = StateRunning
	o.logger.Info("processing loop started",
		slog.String("range", o.freqRange()),
		slog.Int("bins", o.indexer.NumBins()),
		slog.Int("height", o.buffer.Height()))

	for {
		if ctx.Err() != nil {
			o.logger.Info("cancellation requested, stopping")
			break
		}
		if !o.source.Healthy() {
			o.logger.Warn("ingestion source unhealthy, stopping")
			break
		}

		select {
		case <-o.resetCh:
			o.state = StateResetting
			o.deriveCycleState()
			o.state = StateRunning
			o.logger.Info("cycle state rebuilt")
		case <-time.After(o.pollInterval):
		case <-ctx.Done():
			continue
		}

		var batches []*scan.Batch
		for {
			b := o.source.Poll()
			if b == nil {
				break
			}
			batches = append(batches, b)
		}
		if len(batches) == 0 {
			continue
		}

		bucketDir, err := o.resolveBucketDir()
		if err != nil {
			o.logger.Error(err.Error())
			continue
		}

		for _, batch := range batches {
			if err := o.process(ctx, batch, bucketDir); err != nil {
				o.logger.Error(err.Error(),
					slog.Time("scanTime", batch.Timestamp))
			}
		}
	}

	o.state = StateStopped
	if err := o.source.Shutdown(); err != nil {
		return fmt.Errorf("shutting down ingestion source: %w", err)
	}
	return nil
}

// process runs one batch through the full pipeline in arrival order.
func (o *Orchestrator) process(ctx context.Context, batch *scan.Batch, bucketDir string) error {
	if err := o.buffer.Ingest(batch); err != nil {
		if errors.Is(err, waterfall.ErrOutOfRange) {
			o.logger.Info(fmt.Sprintf("scan is outside the configured frequency range (%s)", o.freqRange()),
				slog.Time("scanTime", batch.Timestamp))
			return nil
		}
		return fmt.Errorf("ingesting batch: %w", err)
	}

	if o.ledger != nil {
		o.history.Append(batch.Timestamp, batch.Config)
	}

	if dbMin, dbMax := o.buffer.Bounds(); dbMin < dbMax {
		o.dbMin, o.dbMax = dbMin, dbMax
	}
	o.psd = o.aggregator.Update(o.buffer, o.dbMin, o.dbMax)

	if o.topN > 0 {
		o.topBins = waterfall.TopN(o.buffer, o.indexer, o.topN)
	}

	if o.snrEnabled {
		o.published = o.buffer.NormalizedSNR(o.snrMin, o.snrMax)
	} else {
		o.published = o.buffer.Normalized()
	}

	if o.detector != nil {
		candidates := detect.Merge(o.detector.FindPeaks(o.buffer.Latest()))
		detections := detect.Translate(candidates, o.psd.FreqAt, batch.Timestamp, o.detector.Name())

		if len(detections) > 0 {
			o.logger.Debug("peaks detected",
				slog.Int("count", len(detections)),
				slog.Time("scanTime", batch.Timestamp))
		}
		if o.ledger != nil {
			o.persist(ctx, bucketDir, batch, detections)
		}
	}

	if o.ledger != nil {
		saved, err := o.ledger.MaybeSnapshotWaterfall(bucketDir, time.Now(), batch.Timestamp, o.history)
		if err != nil {
			o.logger.Error(fmt.Sprintf("writing waterfall snapshot: %s", err))
		} else if saved {
			o.logger.Info("waterfall snapshot saved", slog.String("dir", bucketDir))
		}
	}

	return nil
}

// persist writes a cycle's detections and any pending scan-config snapshot.
// Persistence failures are surfaced in the log but never abort the loop; the
// atomic rename discipline below guarantees the previous committed files
// stay valid.
func (o *Orchestrator) persist(ctx context.Context, bucketDir string, batch *scan.Batch, detections []detect.Detection) {
	written, err := o.ledger.WriteScanConfig(bucketDir, batch.Timestamp, batch.Config)
	if err != nil {
		o.logger.Error(fmt.Sprintf("writing scan config: %s", err))
	} else if written {
		o.logger.Info("scan config changed, snapshot written", slog.String("dir", bucketDir))
	}

	if len(detections) == 0 {
		return
	}

	if err := o.ledger.AppendDetections(bucketDir, detections); err != nil {
		o.logger.Error(fmt.Sprintf("appending detections: %s", err))
	}

	if o.store != nil {
		bucket := ledger.Bucket(batch.Timestamp, o.rotateSecs)
		if err := o.store.StoreDetections(ctx, o.sessionID, bucket, detections); err != nil {
			o.logger.Error(fmt.Sprintf("indexing detections: %s", err))
		}
	}
}

// resolveBucketDir returns the active output directory for this iteration,
// or "" when persistence is disabled.
func (o *Orchestrator) resolveBucketDir() (string, error) {
	if o.ledger == nil {
		return "", nil
	}
	dir, err := ledger.BucketDir(o.savePath, time.Now(), o.rotateSecs)
	if err != nil {
		return "", fmt.Errorf("resolving rotation bucket: %w", err)
	}
	return dir, nil
}

// deriveCycleState rebuilds everything scoped to a cycle: the PSD grid with
// fresh edges, the ranking cache and the published matrix. Buffer contents
// are preserved.
func (o *Orchestrator) deriveCycleState() {
	o.psd = o.aggregator.Update(o.buffer, o.dbMin, o.dbMax)
	o.topBins = nil
	if o.snrEnabled {
		o.published = o.buffer.NormalizedSNR(o.snrMin, o.snrMax)
	} else {
		o.published = o.buffer.Normalized()
	}
}

func (o *Orchestrator) freqRange() string {
	minV, minSuffix := humanize.ComputeSI(o.indexer.MinFreq() * 1e6)
	maxV, maxSuffix := humanize.ComputeSI(o.indexer.MaxFreq() * 1e6)
	return fmt.Sprintf("%.6g%sHz to %.6g%sHz", minV, minSuffix, maxV, maxSuffix)
}
