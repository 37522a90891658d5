package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"ordersync/internal/cache"
	"ordersync/internal/config"
	"ordersync/internal/corrections"
	"ordersync/internal/manifest"
	"ordersync/internal/metrics"
	"ordersync/internal/odoo"
	"ordersync/internal/resolve"
	"ordersync/internal/run"
	"ordersync/internal/term"
)

// Config holds CLI flags for the reconcile pass.
type Config struct {
	InputPath    string
	OutDir       string
	EnvFile      string
	InvoiceParty string
	AutoSkip     bool
	PageSize     int
	WriteReport  bool
	CacheBackend string // memory|pebble|badger
	CacheDir     string
	// Kafka sinks
	KafkaBootstrap   string
	CorrectionsSink  string // file|kafka|both
	ManifestSink     string // file|kafka|both
	TopicCorrections string
	TopicManifest    string
	HTTPAddr         string
}

func main() {
	cfg := readFlags()
	res, err := runMain(cfg)
	if err != nil {
		if errors.Is(err, resolve.ErrAborted) {
			log.Printf("aborted by operator, no output written")
			os.Exit(1)
		}
		log.Printf("reconcile failed: %v", err)
		os.Exit(1)
	}
	if res.Empty {
		// Everything in the export was already imported, excluded or
		// deferred. Distinct status so wrappers can tell "nothing to do"
		// from success.
		os.Exit(3)
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.InputPath, "input", "orders_export.csv", "platform order export to reconcile")
	flag.StringVar(&cfg.OutDir, "out-dir", "./out", "output directory for import batches")
	flag.StringVar(&cfg.EnvFile, "env", ".env", "dotenv file with ERP credentials")
	flag.StringVar(&cfg.InvoiceParty, "invoice-party", "Shopify", "contact billed for every imported order")
	flag.BoolVar(&cfg.AutoSkip, "auto-skip", false, "skip every SKU issue without prompting (unattended)")
	flag.IntVar(&cfg.PageSize, "page-size", 10, "search results per page")
	flag.BoolVar(&cfg.WriteReport, "report", false, "write the Excel run report")
	flag.StringVar(&cfg.CacheBackend, "cache-backend", "pebble", "resolution cache backend: memory|pebble|badger")
	flag.StringVar(&cfg.CacheDir, "cache-dir", "./data/skucache", "resolution cache directory")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", config.KafkaBootstrap(), "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&cfg.CorrectionsSink, "corrections-sink", "file", "corrections sink: file|kafka|both")
	flag.StringVar(&cfg.ManifestSink, "manifest-sink", "file", "manifest sink: file|kafka|both")
	flag.StringVar(&cfg.TopicCorrections, "topic-corrections", "reconcile.sku-corrections", "kafka topic for correction events")
	flag.StringVar(&cfg.TopicManifest, "topic-manifest", "reconcile.manifests", "kafka topic for run manifests (compacted)")
	flag.StringVar(&cfg.HTTPAddr, "http", "", "http listen for /metrics, empty disables")
	flag.Parse()
	return cfg
}

func runMain(cfg Config) (run.Result, error) {
	creds, err := config.Load(cfg.EnvFile)
	if err != nil {
		return run.Result{}, err
	}
	client := odoo.NewClient(odoo.Config{
		URL:      creds.URL,
		Database: creds.Database,
		Username: creds.Username,
		Password: creds.Password,
	})
	ctx := context.Background()
	if err := client.Authenticate(ctx); err != nil {
		return run.Result{}, err
	}
	snap, err := client.LoadSnapshot(ctx)
	if err != nil {
		return run.Result{}, err
	}
	log.Printf("snapshot: %d orders, %d contacts, %d catalog references",
		len(snap.Orders), len(snap.Contacts), len(snap.SKUs))

	store, err := openStore(cfg)
	if err != nil {
		return run.Result{}, err
	}
	defer store.Close()

	var decider resolve.Decider
	if !cfg.AutoSkip {
		decider = term.NewPrompter(os.Stdin, os.Stdout, client, cfg.PageSize)
	}

	var corrSink corrections.Writer
	if (cfg.CorrectionsSink == "kafka" || cfg.CorrectionsSink == "both") && cfg.KafkaBootstrap != "" {
		corrSink = corrections.NewKafkaWriter(cfg.KafkaBootstrap, cfg.TopicCorrections)
	}

	maniFS := manifest.NewFilesystemManifest(cfg.OutDir)
	var mani manifest.Publisher = maniFS
	if (cfg.ManifestSink == "kafka" || cfg.ManifestSink == "both") && cfg.KafkaBootstrap != "" {
		maniK := manifest.NewKafkaManifest(cfg.KafkaBootstrap, cfg.TopicManifest, "reconcile-manifest-latest")
		if cfg.ManifestSink == "kafka" {
			mani = maniK
		} else {
			mani = manifest.MultiPublisher(maniFS, maniK)
		}
	}

	mreg := metrics.NewRegistry()
	if cfg.HTTPAddr != "" {
		go func() {
			http.Handle("/metrics", mreg.Handler())
			http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
			})
			_ = http.ListenAndServe(cfg.HTTPAddr, nil)
		}()
	}

	res, err := run.Run(
		run.Options{
			InputPath:    cfg.InputPath,
			OutDir:       cfg.OutDir,
			InvoiceParty: cfg.InvoiceParty,
			WriteReport:  cfg.WriteReport,
		},
		run.Deps{
			Store:       store,
			Decider:     decider,
			Snapshot:    snap,
			Corrections: corrSink,
			Manifest:    mani,
			Metrics:     mreg,
		})
	if err != nil {
		return run.Result{}, err
	}
	printSummary(res)

	// Leave the metrics endpoint up briefly for scrapes on short runs.
	if cfg.HTTPAddr != "" {
		time.Sleep(time.Second)
	}
	return res, nil
}

func openStore(cfg Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "pebble":
		return cache.NewPebbleStore(cfg.CacheDir)
	case "badger":
		return cache.NewBadgerStore(cfg.CacheDir)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

func printSummary(res run.Result) {
	log.Printf("run %s complete", res.RunID)
	log.Printf("  orders in export:   %d", res.TotalOrders)
	log.Printf("  imported:           %d", res.Processed)
	log.Printf("  already imported:   %d", res.AlreadyImported)
	log.Printf("  excluded:           %d", res.Excluded)
	log.Printf("  deferred:           %d", res.Unresolved)
	log.Printf("  lines resolved=%d skipped=%d cache-hits=%d prompts=%d",
		res.Stats.LinesResolved, res.Stats.LinesSkipped,
		res.Stats.CacheHits+res.Stats.StoreHits, res.Stats.Prompts)
	if res.Empty {
		log.Printf("nothing to import this run")
	}
}
