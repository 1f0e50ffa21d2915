package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/yoshapihoff/bricks/authenticator/internal/config"
)

// Init initializes the database connection and returns a *sql.DB instance
func Init(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	// Test the database connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
