// Package gateway executes finished command text against a database and
// materializes what comes back. The mapping layer never touches
// database/sql directly; everything funnels through the Gateway
// contract, so tests and alternative transports can stand in for the
// real connection.
package gateway

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"tagsql/log"
)

// Result carries one execution's output: Rows when the caller asked for
// column-keyed records, otherwise Scalars with every cell read in
// row-major order.
type Result struct {
	Rows    []map[string]interface{}
	Scalars []interface{}
}

// Gateway runs rendered SQL text. When procedure is true, command names
// a stored routine and params are bound by name; plain statements carry
// their values as literal text and pass nil params. Driver failures
// surface unchanged apart from wrapping; the gateway never retries.
type Gateway interface {
	Execute(command string, procedure bool, params map[string]interface{}, wantRows bool) (*Result, error)
	ExecuteContext(ctx context.Context, command string, procedure bool, params map[string]interface{}, wantRows bool) (*Result, error)
}

// Config is the construction-time configuration of a DB gateway. There
// are no package-level knobs: two gateways with different timeouts or
// verbosity coexist without touching each other.
type Config struct {
	Driver  string        `mapstructure:"driver"`
	Source  string        `mapstructure:"source"`
	Timeout time.Duration `mapstructure:"timeout"`
	Verbose bool          `mapstructure:"verbose"`
}

// DB is the database/sql-backed Gateway.
type DB struct {
	db     *sql.DB
	cfg    Config
	logger log.Logger
}

// Open connects a gateway. Open may only validate its arguments, so the
// source is verified with a Ping before the gateway is handed out.
func Open(cfg Config) (*DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Driver)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", cfg.Driver)
	}
	return &DB{db: db, cfg: cfg, logger: log.Default()}, nil
}

// SetLogger replaces the diagnostic sink. The default writes through
// the package-level leveled logger.
func (d *DB) SetLogger(l log.Logger) {
	if l != nil {
		d.logger = l
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Execute(command string, procedure bool, params map[string]interface{}, wantRows bool) (*Result, error) {
	return d.ExecuteContext(context.Background(), command, procedure, params, wantRows)
}

// ExecuteContext runs the command. The configured timeout, if any, is
// applied here at the call boundary; cancellation observed by the
// caller carries whatever partial-effect guarantees the driver gives,
// nothing more.
func (d *DB) ExecuteContext(ctx context.Context, command string, procedure bool, params map[string]interface{}, wantRows bool) (*Result, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	var args []interface{}
	if procedure {
		for k, v := range params {
			args = append(args, sql.Named(k, v))
		}
	}
	if d.cfg.Verbose {
		d.logger.Infof("execute: %s", command)
	}
	rows, err := d.db.QueryContext(ctx, command, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "execute %q", command)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}
	blob := blobColumns(rows, cols)

	res := &Result{}
	for rows.Next() {
		cells := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		for i, cell := range cells {
			// Drivers hand text columns back as raw bytes; only declared
			// blob columns keep them.
			if b, ok := cell.([]byte); ok && !blob[i] {
				cells[i] = string(b)
			}
		}
		if wantRows {
			record := make(map[string]interface{}, len(cols))
			for i, c := range cols {
				record[c] = cells[i]
			}
			res.Rows = append(res.Rows, record)
		} else {
			res.Scalars = append(res.Scalars, cells...)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "execute %q", command)
	}
	return res, nil
}

func blobColumns(rows *sql.Rows, cols []string) []bool {
	blob := make([]bool, len(cols))
	types, err := rows.ColumnTypes()
	if err != nil {
		return blob
	}
	for i, t := range types {
		blob[i] = strings.Contains(strings.ToLower(t.DatabaseTypeName()), "blob")
	}
	return blob
}
