package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	FormatCSV   = "csv"
	FormatTable = "table"
)

type OutputFormat string

type Config struct {
	DBPath       string
	SessionID    int64
	OutputFile   string
	Format       OutputFormat
	ListSessions bool

	MinFrequency *float64 // MHz
	MaxFrequency *float64 // MHz
	Type         string
}

var validOutputFormats = map[OutputFormat]struct{}{
	FormatCSV:   {},
	FormatTable: {},
}

func NewConfig() *Config {
	return &Config{
		Format: FormatTable,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var outputFormat string
	var minFreq, maxFreq float64
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file (default stdout)")
	flag.StringVar(&outputFormat, "f", string(FormatTable), "Output format. [table, csv]")
	flag.Float64Var(&minFreq, "min-freq", 0, "Keep detections ending at or above this frequency, MHz")
	flag.Float64Var(&maxFreq, "max-freq", 0, "Keep detections starting at or below this frequency, MHz")
	flag.StringVar(&c.Type, "type", "", "Keep detections of this type only")
	flag.BoolVar(&c.ListSessions, "list", false, "List recorded sessions and exit")
	flag.Parse()

	outputFormat = strings.ToLower(outputFormat)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-freq" {
			c.MinFrequency = &minFreq
		}
		if f.Name == "max-freq" {
			c.MaxFrequency = &maxFreq
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if !c.ListSessions && c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if _, ok := validOutputFormats[OutputFormat(outputFormat)]; !ok {
		err = fmt.Errorf("invalid output format: %s", outputFormat)
	} else if c.MinFrequency != nil && c.MaxFrequency != nil && *c.MaxFrequency < *c.MinFrequency {
		err = fmt.Errorf("invalid frequency range: min=%f, max=%f MHz", *c.MinFrequency, *c.MaxFrequency)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = OutputFormat(outputFormat)
	return c, nil
}
