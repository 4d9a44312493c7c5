package entitystore

import (
	"context"
	"fmt"
	"strings"

	devenv "cptracker-backend/dev/env"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `json:"driver"`
	// File is the sqlite database path, it may use the <dev_state> prefix.
	File string `json:"file"`
	// Url is a libsql:// url for a remote sqlite database or a postgres
	// connection string.
	Url           string `json:"url"`
	AuthToken     string `json:"auth_token"`
	ErrorLogLimit int    `json:"error_log_limit"`
}

func (c Config) Validate() error {
	switch c.Driver {
	case "", DriverSqlite:
		if c.File == "" && c.Url == "" {
			return fmt.Errorf("database: sqlite needs either file or url")
		}
		if c.Url != "" && !strings.HasPrefix(c.Url, "libsql://") && !strings.HasPrefix(c.Url, "https://") {
			return fmt.Errorf("database: sqlite url must be a libsql:// url")
		}
	case DriverPostgres:
		if c.Url == "" {
			return fmt.Errorf("database: postgres needs a url")
		}
	default:
		return fmt.Errorf("database: unknown driver '%s'", c.Driver)
	}
	return nil
}

// Open connects to the configured database and applies its schema.
func Open(ctx context.Context, c Config) (Store, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}
	limit := c.ErrorLogLimit
	if limit <= 0 {
		limit = DefaultErrorLogLimit
	}

	if c.Driver == DriverPostgres {
		return OpenPostgres(ctx, c.Url, limit)
	}
	if c.Url != "" {
		return OpenRemoteSqlite(ctx, c.Url, c.AuthToken, limit)
	}
	path, err := devenv.ResolvePath(c.File)
	if err != nil {
		return nil, err
	}
	return OpenSqlite(ctx, path, limit)
}
