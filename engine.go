// Package tagsql maps attribute-tagged structs to SQL table rows:
// statement text is rendered from per-field tags and composable
// predicates, cleaned and validated values are written through an
// execution gateway, and result rows materialize back into models.
package tagsql

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"tagsql/dialect"
	"tagsql/gateway"
	"tagsql/log"
	"tagsql/schema"
)

// Engine owns the gateway connection and the dialect used for the DDL
// helpers. The Engine is long-lived and safe to share; the entities and
// predicates built around it are not.
type Engine struct {
	gw      *gateway.DB
	dialect dialect.Dialect
}

// NewEngine connects with just a driver name and source string.
func NewEngine(driver, source string) (*Engine, error) {
	return NewEngineWith(gateway.Config{Driver: driver, Source: source})
}

// NewEngineWith connects with a full gateway configuration.
func NewEngineWith(cfg gateway.Config) (*Engine, error) {
	d, ok := dialect.Get(cfg.Driver)
	if !ok {
		return nil, errors.Errorf("dialect %s not found", cfg.Driver)
	}
	gw, err := gateway.Open(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("connect database successfully.")
	return &Engine{gw: gw, dialect: d}, nil
}

// NewEngineFromConfig reads the gateway configuration from a file
// (yaml, toml or json, per the file extension). Keys: driver,
// source, timeout, verbose.
func NewEngineFromConfig(path string) (*Engine, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var cfg gateway.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite3"
	}
	return NewEngineWith(cfg)
}

// Gateway exposes the engine's execution gateway for the model layer.
func (e *Engine) Gateway() gateway.Gateway {
	return e.gw
}

func (e *Engine) Close() {
	if err := e.gw.Close(); err != nil {
		log.Error(err)
		return
	}
	log.Info("close database connection successfully.")
}

// CreateTable creates m's table from its schema metadata. This is a
// one-shot convenience for fresh databases and tests, not a migration
// tool: it never alters an existing table.
func (e *Engine) CreateTable(m schema.Model) error {
	s, err := schema.For(m)
	if err != nil {
		return err
	}
	columns := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		column := fmt.Sprintf("%s %s", f.Column, e.dialect.DataTypeOf(f.Type))
		if f.Identity {
			column += " PRIMARY KEY"
		}
		columns = append(columns, column)
	}
	command := fmt.Sprintf("create table %s (%s)", s.Table, strings.Join(columns, ", "))
	if _, err := e.gw.Execute(command, false, nil, false); err != nil {
		return errors.Wrapf(err, "create table %s", s.Table)
	}
	return nil
}

// DropTable drops m's table if it exists.
func (e *Engine) DropTable(m schema.Model) error {
	s, err := schema.For(m)
	if err != nil {
		return err
	}
	if _, err := e.gw.Execute(fmt.Sprintf("drop table if exists %s", s.Table), false, nil, false); err != nil {
		return errors.Wrapf(err, "drop table %s", s.Table)
	}
	return nil
}

// HasTable reports whether m's table exists. A gateway failure on this
// read is logged and reported as absent.
func (e *Engine) HasTable(m schema.Model) bool {
	s, err := schema.For(m)
	if err != nil {
		log.Error(err)
		return false
	}
	res, err := e.gw.Execute(e.dialect.TableExistSQL(s.Table), false, nil, true)
	if err != nil {
		log.Errorf("has table %s: %v", s.Table, err)
		return false
	}
	return len(res.Rows) > 0
}
