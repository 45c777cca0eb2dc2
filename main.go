package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"car-price-predictor/api"
	"car-price-predictor/config"
	"car-price-predictor/models"
	"car-price-predictor/services"
	"car-price-predictor/storage"
	"car-price-predictor/utils"
)

const usage = `usage: car-price-predictor <command> [flags]

commands:
  train     fit a variant on the CSV dataset and register the bundle
  evaluate  score a bundle on a sample of the CSV dataset
  predict   predict the price of one JSON record
  serve     serve predictions over HTTP
  history   list registered bundles and recorded runs
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger := utils.NewLoggerWithOptions(utils.LogOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, logger: logger}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "train":
		err = app.train(ctx, args)
	case "evaluate":
		err = app.evaluate(ctx, args)
	case "predict":
		var in io.Reader
		if stdinPiped() {
			in = os.Stdin
		}
		err = app.predict(ctx, args, in, os.Stdout)
	case "serve":
		err = app.serve(ctx, args)
	case "history":
		err = app.history(ctx, args, os.Stdout)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("%s failed: %v", os.Args[1], err)
		stop()
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *utils.Logger
}

func (a *app) train(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	variantName := fs.String("variant", a.cfg.ModelVariant, "training variant (baseline, lightgbm, finetuned or one from the variants file)")
	dataPath := fs.String("data", a.cfg.DataPath, "input CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}

	variants, err := config.LoadVariants(a.cfg.VariantsFile)
	if err != nil {
		return err
	}
	variant, err := config.Lookup(variants, *variantName)
	if err != nil {
		return err
	}

	a.logger.Info("=== Training variant %s ===", variant.Name)
	a.logger.Info("Config: data %s | features %s | encoding %s | target %s | regressor %s x%d",
		*dataPath, variant.FeatureSet, variant.Encoding, variant.TargetTransform,
		variant.Regressor.Kind, variant.Regressor.NEstimators)

	records, _, err := storage.NewCSVReader(a.logger).Load(*dataPath)
	if err != nil {
		return err
	}
	vehicles, stats := services.NewCleaner(a.logger).Clean(records, services.CleanOptions{
		RequirePrice:         true,
		DropNonPositivePrice: variant.DropNonPositivePrice,
	})
	if len(vehicles) == 0 {
		return services.ErrEmptyDataset
	}

	registry, err := storage.OpenRegistry(a.cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer registry.Close()

	version, err := registry.NextVersion(variant.Name)
	if err != nil {
		return err
	}

	bundle, err := services.NewTrainer(a.logger, a.cfg.MaxWorkers).Train(ctx, variant, vehicles, stats.Medians, version)
	if err != nil {
		return err
	}

	store, err := storage.NewBundleStore(a.cfg.ArtifactDir, a.logger)
	if err != nil {
		return err
	}
	info, err := store.Save(bundle)
	if err != nil {
		return err
	}
	if err := registry.Register(storage.NewBundleEntry(bundle, info)); err != nil {
		return err
	}

	services.NewEvaluator(a.logger).Print(os.Stdout, &bundle.Eval)
	a.writeReports(bundle.Name(), &bundle.Eval)
	a.recordRun(ctx, models.TrainingRun{
		BundleID: bundle.ID,
		Kind:     models.RunTrain,
		Variant:  variant.Name,
		Rows:     len(vehicles),
		Metrics:  bundle.Eval.Test,
		Duration: bundle.Eval.Duration,
	})

	fmt.Printf("  Done. Bundle %s → %s\n\n", bundle.Name(), info.Path)
	return nil
}

func (a *app) evaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	dataPath := fs.String("data", a.cfg.DataPath, "input CSV")
	sampleSize := fs.Int("n", a.cfg.EvalSampleSize, "rows to sample (0 = all)")
	seed := fs.Int64("seed", services.DefaultEvalSeed, "sampling seed")
	bundleFlags := a.bundleFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	bundle, err := a.loadBundle(bundleFlags)
	if err != nil {
		return err
	}
	records, _, err := storage.NewCSVReader(a.logger).Load(*dataPath)
	if err != nil {
		return err
	}

	evaluator := services.NewEvaluator(a.logger)
	eval, err := evaluator.Evaluate(ctx, bundle, records, services.EvalOptions{SampleSize: *sampleSize, Seed: *seed})
	if err != nil {
		return err
	}
	evaluator.Print(os.Stdout, eval)
	a.writeReports(bundle.Name(), eval)
	a.recordRun(ctx, models.TrainingRun{
		BundleID: bundle.ID,
		Kind:     models.RunEvaluate,
		Variant:  bundle.Schema.Variant,
		Rows:     eval.Test.Count,
		Metrics:  eval.Test,
		Duration: eval.Duration,
	})
	return nil
}

// predict scores one record. stdin is nil unless input is being piped in.
func (a *app) predict(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	input := fs.String("input", "", "JSON record file; '-' reads stdin (default: example Toyota Corolla)")
	bundleFlags := a.bundleFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	bundle, err := a.loadBundle(bundleFlags)
	if err != nil {
		return err
	}

	rec := models.ExampleRecord()
	switch {
	case *input == "-":
		if stdin == nil {
			stdin = os.Stdin
		}
		rec, err = decodeRecord(stdin)
	case *input != "":
		var f *os.File
		if f, err = os.Open(*input); err == nil {
			rec, err = decodeRecord(f)
			f.Close()
		}
	case stdin != nil:
		rec, err = decodeRecord(stdin)
	}
	if err != nil {
		return fmt.Errorf("predict: read input: %w", err)
	}

	out, err := services.NewPredictor(bundle, a.logger).Predict(ctx, rec)
	if err != nil {
		return err
	}
	if len(out.Unseen) > 0 {
		a.logger.Warn("[predict] Unseen categories remapped: %s", strings.Join(out.Unseen, ", "))
	}
	fmt.Fprintf(stdout, "Predicted Price: %s\n", formatDollars(out.Price))
	return nil
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.HTTPAddr, "listen address")
	bundleFlags := a.bundleFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	bundle, err := a.loadBundle(bundleFlags)
	if err != nil {
		return err
	}

	opts := api.DefaultOptions()
	opts.CORSOrigins = a.cfg.CORSOrigins
	server := api.NewServer(services.NewPredictor(bundle, a.logger), a.logger, opts)
	return server.ListenAndServe(ctx, *addr)
}

func (a *app) history(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	variant := fs.String("variant", "", "only this variant")
	limit := fs.Int("limit", 20, "runs to show from PostgreSQL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry, err := storage.OpenRegistry(a.cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer registry.Close()

	entries, err := registry.List(*variant)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%-20s %-36s %-20s %10s %10s %8s\n", "BUNDLE", "ID", "CREATED", "RMSE", "MAPE %", "ACC %")
	for _, e := range entries {
		fmt.Fprintf(stdout, "%-20s %-36s %-20s %10.2f %10.2f %8.2f\n",
			e.Name(), e.ID, e.CreatedAt.Format(time.DateTime), e.Metrics.RMSE, e.Metrics.MAPE, e.Metrics.ToleranceAccuracy)
	}

	if !a.cfg.PostgresEnabled {
		return nil
	}
	pg, err := storage.NewPostgresWriter(ctx, a.cfg.DSN(), a.logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	runs, err := pg.FetchRecent(ctx, *variant, *limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n%-9s %-12s %-20s %8s %10s %8s\n", "KIND", "VARIANT", "AT", "ROWS", "MAPE %", "ACC %")
	for _, r := range runs {
		fmt.Fprintf(stdout, "%-9s %-12s %-20s %8d %10.2f %8.2f\n",
			r.Kind, r.Variant, r.CreatedAt.Format(time.DateTime), r.Rows, r.Metrics.MAPE, r.Metrics.ToleranceAccuracy)
	}
	return nil
}

type bundleFlags struct {
	path    *string
	id      *string
	variant *string
}

func (a *app) bundleFlags(fs *flag.FlagSet) bundleFlags {
	return bundleFlags{
		path:    fs.String("bundle", a.cfg.BundlePath, "bundle file (default: latest registered for -variant)"),
		id:      fs.String("bundle-id", "", "registered bundle id to load instead of the latest"),
		variant: fs.String("variant", a.cfg.ModelVariant, "variant whose latest bundle to load"),
	}
}

// loadBundle loads the bundle file named by -bundle, the registered bundle
// with -bundle-id, or the latest bundle registered for -variant.
func (a *app) loadBundle(f bundleFlags) (*models.Bundle, error) {
	store, err := storage.NewBundleStore(a.cfg.ArtifactDir, a.logger)
	if err != nil {
		return nil, err
	}

	path := *f.path
	if path == "" {
		registry, err := storage.OpenRegistry(a.cfg.RegistryPath)
		if err != nil {
			return nil, err
		}
		entry, err := a.lookupEntry(registry, f)
		registry.Close()
		if errors.Is(err, storage.ErrBundleNotFound) && *f.id == "" {
			return nil, fmt.Errorf("no bundle registered for %q, run train first: %w", *f.variant, err)
		}
		if err != nil {
			return nil, err
		}
		path = entry.Path
	}

	bundle, err := store.Load(path)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Loaded bundle %s (%s, %d features)", bundle.Name(), bundle.ID, len(bundle.Schema.Features))
	return bundle, nil
}

func (a *app) lookupEntry(registry *storage.Registry, f bundleFlags) (storage.BundleEntry, error) {
	if *f.id == "" {
		return registry.Latest(*f.variant)
	}
	id, err := uuid.Parse(*f.id)
	if err != nil {
		return storage.BundleEntry{}, fmt.Errorf("bundle-id %q: %w", *f.id, err)
	}
	return registry.Get(id)
}

// writeReports writes the configured CSV/XLSX reports; failures are logged.
func (a *app) writeReports(name string, eval *models.Evaluation) {
	var writers []storage.ReportWriter
	if a.cfg.ReportCSVPath != "" {
		w, err := storage.NewCSVWriter(a.cfg.ReportCSVPath)
		if err != nil {
			a.logger.Error("Failed to create CSV report: %v", err)
		} else {
			writers = append(writers, w)
		}
	}
	if a.cfg.ReportXLSXPath != "" {
		w, err := storage.NewXLSXReport(a.cfg.ReportXLSXPath)
		if err != nil {
			a.logger.Error("Failed to create XLSX report: %v", err)
		} else {
			writers = append(writers, w)
		}
	}

	for _, w := range writers {
		if err := w.WriteEvaluation(name, eval); err != nil {
			a.logger.Error("Report write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			a.logger.Error("Report close failed: %v", err)
		}
	}
}

// recordRun stores run in PostgreSQL when enabled; failures are logged.
func (a *app) recordRun(ctx context.Context, run models.TrainingRun) {
	if !a.cfg.PostgresEnabled {
		return
	}
	var w storage.RunWriter
	pg, err := storage.NewPostgresWriter(ctx, a.cfg.DSN(), a.logger)
	if err != nil {
		a.logger.Error("Failed to connect to PostgreSQL: %v", err)
		return
	}
	w = pg
	defer w.Close()

	run.ID = uuid.New()
	run.CreatedAt = time.Now().UTC()
	if err := w.WriteRun(ctx, run); err != nil {
		a.logger.Error("PostgreSQL write failed: %v", err)
		return
	}
	a.logger.Info("Run %s stored in PostgreSQL (table: training_runs)", run.ID)
}

func decodeRecord(r io.Reader) (models.Record, error) {
	var req api.PredictRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return models.Record{}, err
	}
	return req.Record(), nil
}

func stdinPiped() bool {
	st, err := os.Stdin.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice == 0
}

// formatDollars renders v as "$12,345.67", or "-$12,345.67" when negative.
func formatDollars(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + frac
}
