// Command assess scores a patient CSV against current weather and prints a
// risk roster with population statistics.
//
// Usage:
//
//	go run ./cmd/assess -csv patients.csv [-zip 85001] [-risk-level high] \
//	  [-format table|json|csv] [-offline] [-breakdown]
//
// Without -offline the weather client reads WEATHER_API_KEY and related
// settings from the environment.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/csvimport"
	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/openweather"
	"github.com/couchcryptid/maternal-heat-risk/internal/config"
	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type options struct {
	csvPath   string
	zip       string
	riskLevel string
	format    string
	offline   bool
	breakdown bool
}

type jsonReport struct {
	Patients []domain.RosterEntry `json:"patients"`
	Summary  domain.Summary       `json:"summary"`
	Rejected []string             `json:"rejected"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var filter domain.RosterFilter
	filter.Location = opts.zip
	if opts.riskLevel != "" {
		level, ok := domain.ParseLevel(opts.riskLevel)
		if !ok {
			fmt.Fprintf(stderr, "unknown -risk-level %q\n", opts.riskLevel)
			return exitUsage
		}
		filter.RiskLevel = level
	}

	provider, err := weatherProvider(opts.offline, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	f, err := os.Open(opts.csvPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer f.Close() //nolint:errcheck // read-only

	res, err := csvimport.Decode(f)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", opts.csvPath, err)
		return exitError
	}
	rejected := make([]string, 0, len(res.Rejected))
	for _, re := range res.Rejected {
		rejected = append(rejected, re.Error())
		fmt.Fprintf(stderr, "%s: skipped %v\n", opts.csvPath, re)
	}

	for i := range res.Patients {
		res.Patients[i].ID = int64(i + 1)
	}
	entries := domain.RiskRoster(ctx, res.Patients, filter, provider, logger)
	summary := domain.Summarize(entries)
	if opts.breakdown {
		summary = domain.SummarizeDetailed(entries)
	}

	switch opts.format {
	case "json":
		err = writeJSON(stdout, jsonReport{Patients: entries, Summary: summary, Rejected: rejected})
	case "csv":
		err = csvimport.EncodeReport(stdout, entries)
	default:
		err = writeTable(stdout, entries, summary)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("assess", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.csvPath, "csv", "", "path to the patient CSV (required)")
	fs.StringVar(&opts.zip, "zip", "", "only assess patients in this zip code")
	fs.StringVar(&opts.riskLevel, "risk-level", "", "only report patients at this level (low, medium, high)")
	fs.StringVar(&opts.format, "format", "table", "output format: table, json or csv")
	fs.BoolVar(&opts.offline, "offline", false, "score with the default weather snapshot, no network")
	fs.BoolVar(&opts.breakdown, "breakdown", false, "add per-medication and per-condition risk splits to the summary")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.csvPath == "" {
		fs.Usage()
		return opts, errors.New("missing required flag: -csv")
	}
	switch opts.format {
	case "table", "json", "csv":
	default:
		return opts, fmt.Errorf("unknown -format %q", opts.format)
	}
	return opts, nil
}

func weatherProvider(offline bool, logger *slog.Logger) (domain.WeatherProvider, error) {
	if offline {
		return domain.OfflineProvider{}, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.WeatherAPIKey == "" {
		return nil, errors.New("WEATHER_API_KEY is not set; use -offline to assess without weather")
	}
	return openweather.NewClient(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.WeatherTimeout,
		observability.NewMetrics(), logger), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, entries []domain.RosterEntry, s domain.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGE\tWEEKS\tTRIMESTER\tZIP\tRISK\tSCORE\tHEAT WAVE")
	for _, e := range entries {
		a := e.Assessment
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%s\t%.1f\t%t\n",
			e.PatientID, e.Name, e.Age, e.PregnancyWeeks, domain.TrimesterLabel(a.Trimester),
			e.ZipCode, a.RiskLevel, a.RiskScore, a.HeatWaveRisk)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w,
		"\npatients: %d  at risk: %d  extreme heat: %d  average score: %.2f\nlow: %d (%.1f%%)  medium: %d (%.1f%%)  high: %d (%.1f%%)\n",
		s.TotalPatients, s.PatientsAtRisk, s.ExtremeHeatRisk, s.AverageRiskScore,
		s.RiskDistribution.Low, s.RiskPercentages.Low,
		s.RiskDistribution.Medium, s.RiskPercentages.Medium,
		s.RiskDistribution.High, s.RiskPercentages.High)
	if err != nil {
		return err
	}
	if err := writeRanked(w, "top medications", s.TopMedications); err != nil {
		return err
	}
	return writeRanked(w, "top conditions", s.TopConditions)
}

func writeRanked(w io.Writer, title string, items []domain.RankedItem) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\n%s:\n", title); err != nil {
		return err
	}
	for _, item := range items {
		l := item.RiskLevels
		if _, err := fmt.Fprintf(w, "  %-40s %3d  (low %d, medium %d, high %d)\n",
			item.Name, item.Count, l.Low, l.Medium, l.High); err != nil {
			return err
		}
	}
	return nil
}
