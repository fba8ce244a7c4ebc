package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/receipt-pipeline/internal/catalog"
	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/pipeline"
	"github.com/zombor/receipt-pipeline/internal/receipt"
	"github.com/zombor/receipt-pipeline/internal/scanning"
	"github.com/zombor/receipt-pipeline/internal/scanning/tesseract"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	th := extraction.DefaultThresholds()
	w := extraction.DefaultScoreWeights()
	pc := pipeline.DefaultConfig()

	fs := ff.NewFlagSet("receipt-pipeline")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "receipt-pipeline.db", "Database file path")
		storagePath = fs.StringLong("storage", "./receipts", "Receipt image directory")
		logLevel    = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_           = fs.StringLong("config", "", "Config file (optional)")

		cloudType   = fs.StringLong("cloud", "gemini", "Cloud extractor: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")

		noLocal    = fs.BoolLong("no-local", "Skip on-device OCR and always use the cloud extractor")
		ocrLangs   = fs.StringLong("ocr-langs", "fra,eng", "Comma separated Tesseract languages")
		currency   = fs.StringLong("default-currency", pc.DefaultCurrency, "Currency for local receipts that show none")
		localTO    = fs.DurationLong("local-timeout", pc.LocalTimeout, "Deadline for on-device extraction")
		cloudTO    = fs.DurationLong("cloud-timeout", pc.CloudTimeout, "Deadline for each cloud attempt")
		retries    = fs.IntLong("cloud-retries", pc.CloudMaxRetries, "Cloud retries after the first attempt, transport errors only")
		backoffMin = fs.DurationLong("cloud-backoff", pc.InitialBackoff, "Initial cloud retry backoff")
		backoffMax = fs.DurationLong("cloud-backoff-max", pc.MaxBackoff, "Maximum cloud retry backoff")

		acceptConf   = fs.Float64Long("accept-confidence", th.AcceptConfidence, "Minimum confidence to accept a local result")
		minQuality   = fs.Float64Long("min-text-quality", th.MinTextQuality, "Minimum OCR text quality to accept a local result")
		qualityIssue = fs.Float64Long("quality-issue-below", th.QualityIssueBelow, "Text quality below which validation fails")
		tolRatio     = fs.Float64Long("tolerance-ratio", th.ArithmeticToleranceRatio, "Allowed item sum gap as a fraction of the total")
		tolFloor     = fs.Float64Long("tolerance-floor", th.ArithmeticToleranceFloor, "Minimum allowed item sum gap")
		maxPrice     = fs.Float64Long("max-item-price", th.MaxItemPrice, "Largest plausible unit price")
		maxDecimals  = fs.IntLong("max-price-decimals", int(th.MaxPriceDecimals), "Most decimal places a price may have")
		minMerchant  = fs.IntLong("min-merchant-length", th.MinMerchantLength, "Shortest acceptable merchant name")

		wMerchant   = fs.Float64Long("weight-merchant", w.Merchant, "Confidence bonus for a merchant name")
		wTotal      = fs.Float64Long("weight-total", w.Total, "Confidence bonus for a total")
		wItems      = fs.Float64Long("weight-items", w.Items, "Confidence bonus for line items")
		wDate       = fs.Float64Long("weight-date", w.Date, "Confidence bonus for a date")
		wArithmetic = fs.Float64Long("weight-arithmetic", w.Arithmetic, "Confidence bonus when items add up to the total")
		wPrices     = fs.Float64Long("weight-prices", w.Prices, "Confidence bonus for plausible prices")

		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PIPELINE"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	mappings, err := catalog.NewBoltMappings(db.Bolt())
	if err != nil {
		slog.Error("Failed to initialize product mappings", "error", err)
		os.Exit(1)
	}
	products, err := catalog.NewNormalizer(catalog.DefaultCatalog(), mappings)
	if err != nil {
		slog.Error("Failed to build product catalog", "error", err)
		os.Exit(1)
	}

	var cloud scanning.CloudParser
	switch *cloudType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		gemini, err := scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		cloud = gemini
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		cloud = scanning.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid cloud extractor", "type", *cloudType, "valid", "gemini or ollama")
		os.Exit(1)
	}

	var local scanning.LocalExtractor
	if !*noLocal {
		engine := tesseract.NewEngine(splitList(*ocrLangs)...)
		slog.Info("Initializing Tesseract OCR...", "version", engine.Version(), "languages", *ocrLangs)
		local = scanning.NewLocalScanner(engine)
	} else {
		slog.Info("On-device OCR disabled")
	}

	thresholds := extraction.Thresholds{
		AcceptConfidence:         *acceptConf,
		MinTextQuality:           *minQuality,
		QualityIssueBelow:        *qualityIssue,
		ArithmeticToleranceRatio: *tolRatio,
		ArithmeticToleranceFloor: *tolFloor,
		MaxItemPrice:             *maxPrice,
		MaxPriceDecimals:         int32(*maxDecimals),
		MinMerchantLength:        *minMerchant,
	}
	weights := extraction.ScoreWeights{
		Merchant:   *wMerchant,
		Total:      *wTotal,
		Items:      *wItems,
		Date:       *wDate,
		Arithmetic: *wArithmetic,
		Prices:     *wPrices,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orchestrator := pipeline.NewOrchestrator(local, cloud,
		extraction.NewValidator(thresholds, weights),
		pipeline.WithConfig(pipeline.Config{
			LocalTimeout:    *localTO,
			CloudTimeout:    *cloudTO,
			CloudMaxRetries: *retries,
			InitialBackoff:  *backoffMin,
			MaxBackoff:      *backoffMax,
			DefaultCurrency: strings.ToUpper(*currency),
		}),
		pipeline.WithDiffRecorder(db),
		pipeline.WithMetrics(pipeline.NewMetrics(registry)),
	)

	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	receiptService := receipt.NewService(db, orchestrator, store, products)

	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *cloudTO+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
