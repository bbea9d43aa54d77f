package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"runtime"
	"strings"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"biblioswap/internal/enrich"
	"biblioswap/internal/feed"
	"biblioswap/internal/logger"
	"biblioswap/internal/storage/catalog"
	"biblioswap/internal/types"
)

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

var (
	logLevel    = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "debug"))
	dbConnStr   = os.Getenv("DATABASE_URL")
	catalogCsv  = strings.TrimSpace(os.Getenv("CATALOG_CSV"))
	catalogFeed = strings.TrimSpace(os.Getenv("FEED_CATALOG"))
	lookupUrl   = getEnvOrDefault("BOOKS_LOOKUP_URL", enrich.DefaultBaseUrl)
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(logLevel))
	if err != nil {
		lvl = slog.LevelDebug
	}
	logger.SetupSLog(lvl, path.Dir(path.Dir(path.Dir(thisFile))), struct{}{})

	if err != nil {
		slog.Error("Invalid log level specified in LOG_LEVEL, one of debug, info, warn or error expected")
		os.Exit(1)
	}

	if catalogCsv == "" && catalogFeed == "" {
		slog.Error("You need to specify CATALOG_CSV and/or FEED_CATALOG env var")
		os.Exit(1)
	}

	cfg, err := pgxpool.ParseConfig(dbConnStr)
	if err != nil {
		slog.Error("Failed to parse DATABASE_URL: " + err.Error())
		os.Exit(1)
	}

	cfg.ConnConfig.Tracer = logger.NewPGXTracer()

	pg, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to create postgres pool: " + err.Error())
		os.Exit(1)
	}

	lookup := &enrich.GoogleBooks{
		Client:  http.DefaultClient,
		BaseUrl: lookupUrl,
		Logger:  slog.Default(),
	}

	consumer := feed.StoringConsumer{
		Logger:  slog.Default(),
		Catalog: catalog.NewPGXRepository(pg, slog.Default()),
	}

	seq := feed.NewSequence()

	if catalogCsv != "" {
		f, err := os.Open(catalogCsv)
		if err != nil {
			slog.Error("Failed to open CATALOG_CSV: " + err.Error())
			os.Exit(1)
		}

		books, err := feed.ParseCatalog(f, seq)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse catalog table: " + err.Error())
			os.Exit(1)
		}

		hydrateCovers(lookup, books)

		err = consumer.ConsumeBooks(books)
		if err != nil {
			slog.Error("Failed to store catalog table: " + err.Error())
			os.Exit(1)
		}

		slog.Info("Imported catalog table " + catalogCsv)
	}

	if catalogFeed != "" {
		feedUrl, err := url.Parse(catalogFeed)
		if err != nil {
			slog.Error("Invalid URL in FEED_CATALOG: " + err.Error())
			os.Exit(1)
		}

		importer := feed.OPDSImporter{Client: http.DefaultClient, Logger: slog.Default()}

		err = importer.Import(feedUrl, seq, &consumer)
		if err != nil {
			slog.Error("Catalog feed import failed: " + err.Error())
			os.Exit(1)
		}

		slog.Info("Imported catalog feed " + catalogFeed)
	}
}

// hydrateCovers replaces missing covers with the lookup's best match.
// Best-effort: a miss or failure leaves the row as parsed.
func hydrateCovers(lookup *enrich.GoogleBooks, books []*types.Book) {
	for _, b := range books {
		if b.Cover != "" {
			continue
		}

		meta, err := lookup.Lookup(context.Background(), b.Title, b.Author)
		if err != nil || meta == nil {
			continue
		}

		b.Cover = meta.Cover
		if b.Summary == "" {
			b.Summary = meta.Description
		}
		if b.Isbn == "" {
			b.Isbn = meta.Isbn
		}
	}
}
