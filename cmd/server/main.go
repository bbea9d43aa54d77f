package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sashabaranov/go-openai"

	"biblioswap/internal/enrich"
	"biblioswap/internal/logger"
	"biblioswap/internal/recommend"
	"biblioswap/internal/response"
	"biblioswap/internal/scan"
	"biblioswap/internal/server"
	"biblioswap/internal/storage/catalog"
	"biblioswap/internal/storage/residents"
	"biblioswap/internal/storage/shelves"
)

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

func getBoolEnv(key string) bool {
	if val := strings.ToLower(os.Getenv(key)); val == "yes" || val == "on" || val == "true" {
		return true
	}

	return false
}

var (
	logLevel      = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "debug"))
	dbConnStr     = os.Getenv("DATABASE_URL")
	bindAddr      = getEnvOrDefault("BIND_ADDR", ":8080")
	debugMode     = getBoolEnv("DEBUG_MODE")
	openaiKey     = os.Getenv("OPENAI_API_KEY")
	openaiModel   = getEnvOrDefault("OPENAI_MODEL", openai.GPT4oMini)
	openaiBaseUrl = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	lookupUrl     = getEnvOrDefault("BOOKS_LOOKUP_URL", enrich.DefaultBaseUrl)
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(logLevel))
	if err != nil {
		lvl = slog.LevelDebug
	}
	logger.SetupSLog(lvl, path.Dir(path.Dir(path.Dir(thisFile))), middleware.RequestIDKey)

	if err != nil {
		slog.Error("Invalid log level specified in LOG_LEVEL, one of debug, info, warn or error expected")
		os.Exit(1)
	}

	if openaiKey == "" {
		slog.Error("You need to specify OPENAI_API_KEY env var")
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

	aiCfg := openai.DefaultConfig(openaiKey)
	if openaiBaseUrl != "" {
		aiCfg.BaseURL = openaiBaseUrl
	}
	ai := openai.NewClientWithConfig(aiCfg)

	rec := recommend.NewRecommender(
		recommend.NewOpenAIEngine(ai, openaiModel, slog.Default()),
		recommend.DefaultOptions(),
		slog.Default(),
	)

	lookup := &enrich.GoogleBooks{
		Client:  http.DefaultClient,
		BaseUrl: lookupUrl,
		Logger:  slog.Default(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Mount("/api", server.Handler(
		catalog.NewPGXRepository(pg, slog.Default()),
		residents.NewPGXRepository(pg, slog.Default()),
		shelves.NewPGXRepository(pg, slog.Default()),
		rec,
		scan.NewScanner(ai, openaiModel, slog.Default()),
		lookup,
		&response.Responder{DebugMode: debugMode},
	))

	slog.Error("aborting: " + http.ListenAndServe(bindAddr, r).Error())
	os.Exit(1)
}
