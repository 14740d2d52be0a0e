// Package postgres implements the data access interfaces on PostgreSQL
// using database/sql over the pgx stdlib driver.
package postgres

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/logger"
)

// Store is the single handle for all Postgres-backed stores.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

var (
	_ domain.UserStore        = (*Store)(nil)
	_ domain.LeadStore        = (*Store)(nil)
	_ domain.RuleStore        = (*Store)(nil)
	_ domain.QuotaStore       = (*Store)(nil)
	_ domain.OpportunityStore = (*Store)(nil)
	_ domain.AssignmentStore  = (*Store)(nil)
)

// Open connects to Postgres and tunes the pool.
func Open(dsn string, log logger.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, log), nil
}

// New wraps an existing database handle, used by tests with sqlmock.
func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }
