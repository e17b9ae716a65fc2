package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ServerStore abstracts DB queries for testability.
type ServerStore interface {
	LookupServer(ctx context.Context, key string) (*serverRow, error)
	ListServers(ctx context.Context) ([]*serverRow, error)
}

type serverRow struct {
	Key         string
	Name        string
	Description sql.NullString
	Command     string
	Args        string // JSONB array as string
	Env         string // JSONB object as string
	Enabled     bool
	RequiredEnv string // JSONB array as string
	ToolPrefix  sql.NullString
}

// sqlServerStore is the real implementation using *sql.DB
// (pgx through database/sql).
type sqlServerStore struct {
	db *sql.DB
}

func (s *sqlServerStore) LookupServer(ctx context.Context, key string) (*serverRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, name, description, command, args, env,
		       enabled, required_env, tool_prefix
		FROM tool_servers
		WHERE key = $1
	`, key)

	var r serverRow
	if err := row.Scan(
		&r.Key, &r.Name, &r.Description, &r.Command, &r.Args, &r.Env,
		&r.Enabled, &r.RequiredEnv, &r.ToolPrefix,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqlServerStore) ListServers(ctx context.Context) ([]*serverRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, description, command, args, env,
		       enabled, required_env, tool_prefix
		FROM tool_servers
		ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*serverRow
	for rows.Next() {
		var r serverRow
		if err := rows.Scan(
			&r.Key, &r.Name, &r.Description, &r.Command, &r.Args, &r.Env,
			&r.Enabled, &r.RequiredEnv, &r.ToolPrefix,
		); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// PostgresSource loads descriptor overrides from the tool_servers table.
// Lookups go through a TTL cache with background refresh, so a slow or
// briefly unavailable database does not stall tool-server startup.
type PostgresSource struct {
	store  ServerStore
	cache  *descriptorCache
	logger *zap.Logger
}

// PostgresSourceConfig configures a PostgresSource.
type PostgresSourceConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewPostgresSource creates a descriptor source backed by Postgres.
func NewPostgresSource(cfg PostgresSourceConfig) *PostgresSource {
	return newPostgresSourceWithStore(&sqlServerStore{db: cfg.DB}, cfg.CacheTTL, cfg.Logger)
}

// newPostgresSourceWithStore creates a source with a custom store (for testing).
func newPostgresSourceWithStore(store ServerStore, cacheTTL time.Duration, logger *zap.Logger) *PostgresSource {
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{
		store:  store,
		cache:  newDescriptorCache(cacheTTL),
		logger: logger,
	}
}

// GetServer returns the descriptor stored under key, or nil when the
// source has no row for it.
func (s *PostgresSource) GetServer(ctx context.Context, key string) (*Descriptor, error) {
	cached := s.cache.Get(key)
	if cached.Hit {
		if cached.NeedsRefresh {
			go s.refreshInBackground(key)
		}
		return cached.Desc, nil
	}

	d, err := s.fetchFromDB(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Negative cache: server not configured.
			s.cache.Set(key, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("GetServer: %w", err)
	}

	s.cache.Set(key, d)
	return d, nil
}

// LoadAll returns every descriptor in the source keyed by server key.
// Used by the manager at startup to overlay builtin registrations.
func (s *PostgresSource) LoadAll(ctx context.Context) (map[string]*Descriptor, error) {
	rows, err := s.store.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadAll: %w", err)
	}

	out := make(map[string]*Descriptor, len(rows))
	for _, row := range rows {
		d, err := parseServerRow(row)
		if err != nil {
			return nil, fmt.Errorf("LoadAll: %w", err)
		}
		s.cache.Set(row.Key, d)
		out[row.Key] = d
	}
	return out, nil
}

func (s *PostgresSource) fetchFromDB(ctx context.Context, key string) (*Descriptor, error) {
	row, err := s.store.LookupServer(ctx, key)
	if err != nil {
		return nil, err
	}
	return parseServerRow(row)
}

func (s *PostgresSource) refreshInBackground(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := s.fetchFromDB(ctx, key)
	if err != nil {
		s.logger.Warn("background descriptor refresh failed",
			zap.String("server", key),
			zap.Error(err),
		)
		return
	}
	s.cache.Set(key, d)
}

func parseServerRow(row *serverRow) (*Descriptor, error) {
	d := &Descriptor{
		Name:    row.Name,
		Command: row.Command,
		Enabled: row.Enabled,
	}

	if row.Description.Valid {
		d.Description = row.Description.String
	}
	if row.ToolPrefix.Valid {
		d.ToolPrefix = row.ToolPrefix.String
	}

	if row.Args != "" && row.Args != "[]" {
		if err := json.Unmarshal([]byte(row.Args), &d.Args); err != nil {
			return nil, fmt.Errorf("parseServerRow: args: %w", err)
		}
	}
	if row.Env != "" && row.Env != "{}" {
		if err := json.Unmarshal([]byte(row.Env), &d.Env); err != nil {
			return nil, fmt.Errorf("parseServerRow: env: %w", err)
		}
	}
	if row.RequiredEnv != "" && row.RequiredEnv != "[]" {
		if err := json.Unmarshal([]byte(row.RequiredEnv), &d.RequiredEnv); err != nil {
			return nil, fmt.Errorf("parseServerRow: required_env: %w", err)
		}
	}

	return d, nil
}
