// Package dbmigrate applies embedded goose migrations and routes goose output through zap.
package dbmigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// goose keeps its dialect, base FS and logger in package globals.
var mu sync.Mutex

// Migrator applies the migrations found in one directory of an fs.FS.
type Migrator struct {
	db      *sql.DB
	dialect string
	fsys    fs.FS
	dir     string
	logger  *zap.Logger
}

func New(db *sql.DB, dialect string, fsys fs.FS, dir string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, dialect: dialect, fsys: fsys, dir: dir, logger: logger}
}

// Run applies every pending migration.
func (m *Migrator) Run(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if err := m.configure(); err != nil {
		return err
	}
	m.logger.Info("applying database migrations", zap.String("dialect", m.dialect))
	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (m *Migrator) configure() error {
	goose.SetBaseFS(m.fsys)
	goose.SetLogger(gooseLogger{m.logger.Sugar()})
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// gooseLogger adapts zap to goose.Logger.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }

// Fatalf logs at error level; goose calls it on unrecoverable migration state
// and the caller still receives the returned error.
func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Errorf(format, v...) }
