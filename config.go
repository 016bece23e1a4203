package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"library-service/api"
	"library-service/library"

	"github.com/spf13/cobra"
)

const dbFile = "library.db"

// config holds the global flags. Every flag falls back to a LIBRARY_*
// environment variable when not given on the command line.
type config struct {
	driver    string
	dsn       string
	addr      string
	auth      string
	logLevel  string
	logFormat string
	maxConns  int
}

func (c *config) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&c.driver, "driver", envOr("LIBRARY_DB_DRIVER", string(library.DialectSQLite)), "database driver (sqlite3 or pgx)")
	f.StringVar(&c.dsn, "dsn", envOr("LIBRARY_DB_DSN", dbFile), "database file (sqlite3) or connection URL (pgx)")
	f.StringVar(&c.addr, "addr", envOr("LIBRARY_ADDR", ":8000"), "HTTP listen address")
	f.StringVar(&c.auth, "auth", envOr("LIBRARY_AUTH", "basic"), "caller authentication (basic or header)")
	f.StringVar(&c.logLevel, "log-level", envOr("LIBRARY_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	f.StringVar(&c.logFormat, "log-format", envOr("LIBRARY_LOG_FORMAT", "text"), "log format (text or json)")
	f.IntVar(&c.maxConns, "max-conns", 10, "maximum open database connections")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (c *config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.logFormat) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", c.logFormat)
}

func (c *config) open(ctx context.Context, log *slog.Logger) (*library.Database, error) {
	opts := library.Options{
		Driver:       library.Dialect(c.driver),
		DSN:          c.dsn,
		MaxOpenConns: c.maxConns,
		Logger:       log,
	}
	if opts.Driver == library.DialectPostgres {
		opts.MaxIdleConns = c.maxConns / 2
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	return library.Open(ctx, opts)
}

func (c *config) authenticator(db *library.Database) (api.Authenticator, error) {
	switch strings.ToLower(c.auth) {
	case "basic":
		return api.BasicAuthenticator{Users: db, Realm: "library"}, nil
	case "header":
		return api.HeaderAuthenticator{}, nil
	}
	return nil, fmt.Errorf("invalid auth mode %q", c.auth)
}
