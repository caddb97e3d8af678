// Package sqlite records telemetry snapshots to a local SQLite database for
// later inspection of approach runs.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ericogr/rfid-deck/pkg/config"
	"github.com/ericogr/rfid-deck/pkg/output"
	"github.com/ericogr/rfid-deck/pkg/telemetry"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	defaultBatchSize = 100
	defaultDirPerm   = 0o755

	createTablesSQL = `
	CREATE TABLE IF NOT EXISTS samples (
	    timestamp INTEGER NOT NULL,
	    name      TEXT    NOT NULL,
	    value     INTEGER NOT NULL CHECK (typeof(value) = 'integer')
	);
	CREATE INDEX IF NOT EXISTS samples_name_ts ON samples (name, timestamp);`

	insertSampleSQL = `INSERT INTO samples (timestamp, name, value) VALUES (?, ?, ?)`
)

type Recorder struct {
	db     *sql.DB
	log    zerolog.Logger
	cfg    config.SQLiteConfig
	mu     sync.Mutex
	buffer []telemetry.Snapshot

	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewRecorder(cfg config.SQLiteConfig, log zerolog.Logger) (output.Output, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	r := &Recorder{
		db:            db,
		log:           log,
		cfg:           cfg,
		buffer:        make([]telemetry.Snapshot, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}
	if cfg.FlushMs > 0 {
		r.flushTicker = time.NewTicker(time.Duration(cfg.FlushMs) * time.Millisecond)
		go r.flusher()
	} else {
		close(r.flushDoneChan)
	}

	log.Info().
		Str("path", cfg.Path).
		Int("batch_size", cfg.BatchSize).
		Int("flush_ms", cfg.FlushMs).
		Msg("telemetry recorder opened")
	return r, nil
}

func (r *Recorder) Publish(s telemetry.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, s)
	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}
	return nil
}

func (r *Recorder) Close() error {
	close(r.shutdownChan)
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	<-r.flushDoneChan

	r.mu.Lock()
	err := r.flush()
	r.mu.Unlock()
	if err != nil {
		r.db.Close()
		return err
	}
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return fmt.Errorf("checkpoint wal: %w", err)
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	r.log.Info().Msg("telemetry recorder closed")
	return nil
}

func (r *Recorder) flusher() {
	defer close(r.flushDoneChan)
	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.log.Error().Err(err).Msg("periodic flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes the buffer in one transaction. Callers hold mu.
func (r *Recorder) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error().Err(rbErr).Msg("rollback failed")
		}
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for _, s := range r.buffer {
		ts := s.Timestamp.UnixMilli()
		for _, smp := range s.Samples {
			if _, err := stmt.Exec(ts, smp.Name, int64(smp.Value)); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					r.log.Error().Err(rbErr).Msg("rollback failed")
				}
				return fmt.Errorf("insert sample: %w", err)
			}
			rows++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.log.Debug().Int("rows", rows).Msg("flushed telemetry")
	r.buffer = r.buffer[:0]
	return nil
}
