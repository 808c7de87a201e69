package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/aggregate"
	"github.com/dvloznov/statement-insights/internal/classifier"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/oracle"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/source"
	"github.com/dvloznov/statement-insights/internal/statement"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "parse":
		runParse(log)
	case "classify":
		runClassify(log)
	case "upload":
		runUpload(log)
	case "categories":
		runCategories()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse       Parse an OFX statement and list its transactions")
	fmt.Println("  classify    Parse, classify and summarize an OFX statement")
	fmt.Println("  upload      Upload an OFX statement to GCS")
	fmt.Println("  categories  List the category labels")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func mustLoadConfig(log zerolog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	file := fs.String("file", "", "Path or gs:// URI of the OFX statement")
	encoding := fs.String("encoding", "", "Statement character encoding (default from STATEMENT_ENCODING)")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	cfg := mustLoadConfig(log)
	if *encoding == "" {
		*encoding = cfg.StatementEncoding
	}

	ctx := logger.WithContext(context.Background(), log)
	raw, err := source.NewLoader(source.GCSFetcher{CredentialsFile: cfg.GCSCredentialsFile}).Load(ctx, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load statement")
	}

	records, err := statement.Parse(raw, *encoding)
	if err != nil {
		log.Fatal().Err(err).Str("error_kind", string(domain.KindOf(err))).Msg("Parse failed")
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(records))
	for i, r := range records {
		fmt.Printf("\n%d. %s\n", i+1, r.Description)
		fmt.Printf("   Date:    %s\n", r.Date)
		fmt.Printf("   Amount:  %s\n", r.Amount.StringFixed(2))
		fmt.Printf("   Type:    %s\n", r.Type())
		fmt.Printf("   Account: %s\n", r.AccountID)
	}
	fmt.Println()
}

func runClassify(log zerolog.Logger) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	file := fs.String("file", "", "Path or gs:// URI of the OFX statement")
	encoding := fs.String("encoding", "", "Statement character encoding (default from STATEMENT_ENCODING)")
	month := fs.String("month", "", "Month to summarize, YYYY-MM (default: newest in the statement)")
	categories := fs.String("category", "", "Comma-separated categories to include (default: all)")
	top := fs.Int("top", aggregate.DefaultTopN, "Number of largest expenses to show")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall time limit")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	cfg := mustLoadConfig(log)
	if err := cfg.RequireOracleCredential(); err != nil {
		log.Fatal().Err(err).Msg("Oracle not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	gemini, err := oracle.NewGeminiOracle(ctx, oracle.Config{
		APIKey:          cfg.OracleAPIKey,
		Model:           cfg.OracleModel,
		Temperature:     cfg.OracleTemperature,
		ItemConcurrency: cfg.OracleItemConcurrency,
		Logger:          log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create oracle")
	}

	policy := classifier.Permissive
	if cfg.StrictLabels {
		policy = classifier.Strict
	}
	batcher, err := classifier.New(gemini,
		classifier.WithBatchSize(cfg.BatchSize),
		classifier.WithConcurrency(cfg.BatchConcurrency),
		classifier.WithCallTimeout(cfg.OracleCallTimeout),
		classifier.WithLabelPolicy(policy),
		classifier.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create classifier")
	}

	p := pipeline.NewStatementPipeline(pipeline.Deps{
		Loader:          source.NewLoader(source.GCSFetcher{CredentialsFile: cfg.GCSCredentialsFile}),
		Classifier:      batcher,
		DefaultEncoding: cfg.StatementEncoding,
	})

	state := &pipeline.PipelineState{
		Source:   *file,
		Encoding: *encoding,
		Progress: func(fraction float64) {
			fmt.Fprintf(os.Stderr, "\rClassifying... %3.0f%%", fraction*100)
		},
	}
	if err := p.Run(ctx, state); err != nil {
		fmt.Fprintln(os.Stderr)
		log.Fatal().Err(err).Str("error_kind", string(domain.KindOf(err))).Msg("Classification failed")
	}
	fmt.Fprintln(os.Stderr)

	sel := aggregate.Selection{Month: *month, TopN: *top}
	if *categories != "" {
		for _, c := range strings.Split(*categories, ",") {
			if c = strings.TrimSpace(c); c != "" {
				sel.Categories = append(sel.Categories, c)
			}
		}
	}
	printDashboard(aggregate.Build(state.Classified, sel))
}

func printDashboard(d aggregate.Dashboard) {
	fmt.Printf("\n=== Dashboard %s ===\n", d.Month)
	fmt.Printf("Available months:     %s\n", strings.Join(d.AvailableMonths, ", "))
	fmt.Printf("Selected categories:  %s\n", strings.Join(d.SelectedCategories, ", "))

	s := d.Summary
	fmt.Println("\n--- Summary ---")
	fmt.Printf("Total spent:   %s\n", s.TotalAbsoluteAmount.StringFixed(2))
	fmt.Printf("Transactions:  %d\n", s.TransactionCount)
	fmt.Printf("Average:       %s\n", s.AverageAmount.StringFixed(2))
	if s.TopCategory != "" {
		fmt.Printf("Top category:  %s (%s)\n", s.TopCategory, s.TopCategoryAmount.StringFixed(2))
	}

	fmt.Println("\n--- By category ---")
	for _, c := range d.ByCategory {
		fmt.Printf("%-32s %12s  (%d)\n", c.Category, c.Total.StringFixed(2), c.Count)
	}

	fmt.Println("\n--- By date ---")
	for _, day := range d.ByDate {
		fmt.Printf("%s %12s\n", day.Date, day.Total.StringFixed(2))
	}

	fmt.Printf("\n--- Top %d expenses ---\n", len(d.Top))
	for i, e := range d.Top {
		fmt.Printf("%d. %s  %s  %s [%s]\n", i+1, e.Date, e.AbsoluteAmount.StringFixed(2), e.Description, e.CategoryName())
	}
	fmt.Println()
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local OFX file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	cfg := mustLoadConfig(log)
	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading statement to GCS")

	uri, err := source.GCSFetcher{CredentialsFile: cfg.GCSCredentialsFile}.Upload(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runCategories() {
	for _, c := range domain.Categories {
		fmt.Println(c)
	}
}
