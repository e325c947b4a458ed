package database

import (
	"context"
	"database/sql"
)

type PgPlatformRepository struct {
	conn *sql.DB
}

func NewPgPlatformRepository(dsn string) (*PgPlatformRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return newPgPlatformRepository(db), nil
}

func newPgPlatformRepository(db *sql.DB) *PgPlatformRepository {
	return &PgPlatformRepository{conn: db}
}

func (db *PgPlatformRepository) DB() *sql.DB {
	return db.conn
}

func (db *PgPlatformRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgPlatformRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
