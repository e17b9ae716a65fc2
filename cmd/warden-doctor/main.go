// warden-doctor inspects the tool-server configuration of this environment:
// which servers are registered, which are available, what guardrail rules
// they contribute, and what the decision engine would say about a given call.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warden-ai/warden/internal/audit"
	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/manager"
	"github.com/warden-ai/warden/internal/registry"
	"github.com/warden-ai/warden/internal/servers"
)

func main() {
	logger := mustBuildLogger(envOrDefault("WARDEN_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	configPath := envOrDefault("WARDEN_SERVERS_CONFIG", "")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	cacheTTL := envOrDefaultInt("WARDEN_REGISTRY_CACHE_TTL_S", 60)

	checkTool := flag.String("check", "", "dry-run the decision engine against a tool name")
	checkPath := flag.String("path", "", "path argument for -check")
	principal := flag.String("principal", "", "principal id for -check")
	readOnly := flag.Bool("read-only", true, "read-only policy for -check")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Audit trail: ClickHouse when configured, otherwise log-only.
	var writer audit.Writer
	if clickhouseDSN != "" {
		chWriter, err := audit.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = audit.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = audit.NewLogWriter(logger)
	}
	defer writer.Close()

	// Descriptor overlay from Postgres when a DSN is provided.
	var source *registry.PostgresSource
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("postgres unreachable, skipping descriptor overlay", zap.Error(err))
		} else {
			source = registry.NewPostgresSource(registry.PostgresSourceConfig{
				DB:       db,
				CacheTTL: time.Duration(cacheTTL) * time.Second,
				Logger:   logger,
			})
			logger.Info("postgres descriptor source connected")
		}
	}

	policy := guard.DefaultPolicy()
	policy.ReadOnly = *readOnly
	policy.PrincipalID = *principal

	opts := manager.Options{
		Providers:  servers.All(),
		ConfigPath: configPath,
		Policy:     policy,
		Logger:     logger,
		Audit:      writer,
	}
	if source != nil {
		opts.Source = source
	}
	mgr, err := manager.New(ctx, opts)
	if err != nil {
		logger.Fatal("manager init failed", zap.Error(err))
	}

	printDescriptors(mgr.Descriptors())

	if *checkTool != "" {
		runCheck(mgr, policy, logger, *checkTool, *checkPath)
	}
}

func printDescriptors(descriptors map[string]*registry.Descriptor) {
	keys := make([]string, 0, len(descriptors))
	for key := range descriptors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Printf("%-12s %-10s %-8s %s\n", "SERVER", "PREFIX", "STATUS", "DETAIL")
	for _, key := range keys {
		d := descriptors[key]
		status := "ready"
		detail := d.Command + " " + strings.Join(d.Args, " ")
		if !d.Enabled {
			status = "disabled"
		} else if missing := d.MissingEnv(); len(missing) > 0 {
			status = "blocked"
			detail = "missing env: " + strings.Join(missing, ", ")
		}
		prefix := d.ToolPrefix
		if prefix == "" {
			prefix = "-"
		}
		fmt.Printf("%-12s %-10s %-8s %s\n", key, prefix, status, detail)
	}
}

func runCheck(mgr *manager.Manager, policy *guard.Policy, logger *zap.Logger, tool, path string) {
	reg := registry.NewRegistry()
	reg.Discover(servers.All()...)

	checker := guard.NewChecker(policy, reg.RuleSets(), logger)

	kwargs := map[string]any{}
	if path != "" {
		kwargs["path"] = path
	}

	if err := checker.Check(tool, nil, kwargs); err != nil {
		fmt.Printf("\ncheck %s: BLOCKED: %v\n", tool, err)
		os.Exit(1)
	}
	fmt.Printf("\ncheck %s: allowed (run %s)\n", tool, mgr.RunID())
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
