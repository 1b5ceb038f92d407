package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rfscan/waterfall/internal/detect"
	"github.com/rfscan/waterfall/internal/ledger"
	"github.com/rfscan/waterfall/internal/scan"
	"github.com/rfscan/waterfall/internal/storage"
	"github.com/rfscan/waterfall/internal/waterfall"
)

// Run wires the engine from configuration and drives it until the context is
// cancelled or the ingestion source dies.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	indexer, err := waterfall.NewIndexer(config.Scan.MinFreqMHz(), config.Scan.MaxFreqMHz(), config.Scan.ResolutionMHz())
	if err != nil {
		return fmt.Errorf("creating frequency indexer: %w", err)
	}

	buffer, err := waterfall.NewBuffer(indexer, config.Waterfall.Height)
	if err != nil {
		return fmt.Errorf("creating waterfall buffer: %w", err)
	}

	aggregator := waterfall.NewAggregator(indexer, config.Waterfall.PSDDBResolution)

	var receiverOpts []func(*scan.Receiver)
	if config.Source.QueueCapacity > 0 {
		receiverOpts = append(receiverOpts, scan.WithQueueCapacity(config.Source.QueueCapacity))
	}
	receiver, err := scan.NewReceiver(config.Source.Endpoints, logger, receiverOpts...)
	if err != nil {
		return fmt.Errorf("creating scan receiver: %w", err)
	}

	options := []func(*Orchestrator){
		WithPollInterval(config.Source.PollInterval()),
		WithTopN(config.Waterfall.TopN),
	}

	if config.Waterfall.SNR.Enabled {
		options = append(options, WithSNR(config.Waterfall.SNR.Min, config.Waterfall.SNR.Max))
	}

	var detector detect.Detector
	if config.Detection.Type != "" {
		if detector, err = detect.New(config.Detection.Type); err != nil {
			return fmt.Errorf("creating detector: %w", err)
		}
		options = append(options, WithDetector(detector))
	}

	if config.Persistence.SavePath != "" {
		if err = os.MkdirAll(config.Persistence.SavePath, 0o755); err != nil {
			return fmt.Errorf("creating save directory: %w", err)
		}

		l := ledger.New(config.Scan.MinFreqMHz(), config.Scan.MaxFreqMHz(), config.Persistence.SaveInterval())
		options = append(options, WithLedger(l, config.Persistence.SavePath, config.Persistence.RotateSecs))

		if config.Persistence.Sqlite.Enabled {
			store, sessionID, err := createStore(ctx, config, detector)
			if err != nil {
				return err
			}
			defer store.Close()

			options = append(options, WithStore(store, sessionID))
		}
	}

	orchestrator := NewOrchestrator(receiver, indexer, buffer, aggregator, logger, options...)
	return orchestrator.Run(ctx)
}

func createStore(ctx context.Context, config *Config, detector detect.Detector) (storage.Store, int64, error) {
	dbPath := config.Persistence.Sqlite.Path
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, 0, fmt.Errorf("creating database directory: %w", err)
		}
	}

	detectorName := ""
	if detector != nil {
		detectorName = detector.Name()
	}

	store := storage.NewSqliteStore(dbPath)
	sessionID, err := store.CreateSession(ctx, detectorName, config)
	if err != nil {
		_ = store.Close()
		return nil, 0, fmt.Errorf("creating session: %w", err)
	}
	return store, sessionID, nil
}
