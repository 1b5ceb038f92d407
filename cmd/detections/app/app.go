package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rfscan/waterfall/internal/detect"
	"github.com/rfscan/waterfall/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	out := io.Writer(os.Stdout)
	if config.OutputFile != "" {
		f, err := os.Create(config.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if config.ListSessions {
		return listSessions(ctx, store, out)
	}
	return reportDetections(ctx, store, config, out, logger)
}

func listSessions(ctx context.Context, store storage.Store, out io.Writer) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDETECTOR\tRUN ID")
	for _, s := range sessions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			s.ID, s.StartTime.Local().Format(time.DateTime), s.Detector, s.RunID)
	}
	return w.Flush()
}

func reportDetections(ctx context.Context, store storage.Store, config *Config, out io.Writer, logger *slog.Logger) error {
	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("reading session %d: %w", config.SessionID, err)
	}

	detections, err := store.Detections(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("reading detections: %w", err)
	}

	total := len(detections)
	detections = filter(detections, config)

	logger.Info("session report",
		slog.Group("session",
			slog.Int64("id", session.ID),
			slog.String("detector", session.Detector),
			slog.String("started", session.StartTime.Local().Format(time.DateTime)),
		),
		slog.Group("detections",
			slog.Int("total", total),
			slog.Int("matching", len(detections)),
		))

	if config.Format == FormatCSV {
		return writeCSV(out, detections)
	}
	return writeTable(out, detections)
}

// filter applies the CLI's frequency and type filters. A detection matches a
// frequency bound when any part of its band falls inside it.
func filter(detections []detect.Detection, config *Config) []detect.Detection {
	out := detections[:0]
	for _, d := range detections {
		if config.Type != "" && d.Type != config.Type {
			continue
		}
		if config.MinFrequency != nil && d.EndFreq < *config.MinFrequency {
			continue
		}
		if config.MaxFrequency != nil && d.StartFreq > *config.MaxFrequency {
			continue
		}
		out = append(out, d)
	}
	return out
}

func writeCSV(out io.Writer, detections []detect.Detection) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"timestamp", "start_freq", "end_freq", "dB", "type"}); err != nil {
		return err
	}
	for _, d := range detections {
		err := w.Write([]string{
			strconv.FormatInt(d.Timestamp.Unix(), 10),
			strconv.FormatFloat(d.StartFreq, 'f', -1, 64),
			strconv.FormatFloat(d.EndFreq, 'f', -1, 64),
			strconv.FormatFloat(d.Power, 'f', -1, 64),
			d.Type,
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeTable(out io.Writer, detections []detect.Detection) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBAND\tWIDTH\tPOWER\tTYPE")
	for _, d := range detections {
		fmt.Fprintf(w, "%s\t%s to %s\t%s\t%.1fdB\t%s\n",
			d.Timestamp.Local().Format(time.DateTime),
			formatFreq(d.StartFreq), formatFreq(d.EndFreq),
			formatFreq(d.EndFreq-d.StartFreq),
			d.Power, d.Type)
	}
	return w.Flush()
}

func formatFreq(mhz float64) string {
	v, suffix := humanize.ComputeSI(mhz * 1e6)
	return fmt.Sprintf("%.4g%sHz", v, suffix)
}
