package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Postgres stores users in a table with the free-form fields in a JSONB column.
type Postgres struct {
	db     *sqlx.DB
	logger logger.Logger
}

type userRow struct {
	ID           string          `db:"id"`
	Username     string          `db:"username"`
	FirstName    string          `db:"first_name"`
	LastName     string          `db:"last_name"`
	Email        string          `db:"email"`
	PasswordHash string          `db:"password_hash"`
	Extra        json.RawMessage `db:"extra"`
	CreatedAt    time.Time       `db:"created_at"`
}

func NewPostgres(ctx context.Context, databaseURL string, log logger.Logger) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: empty postgres url", ErrNotConfigured)
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Connected to database", logger.String("driver", "postgres"))

	return &Postgres{db: db, logger: log}, nil
}

func initSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		extra JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func toRow(u *User) (userRow, error) {
	extra := u.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return userRow{}, fmt.Errorf("failed to marshal extra fields: %w", err)
	}
	return userRow{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Extra:        raw,
		CreatedAt:    u.CreatedAt,
	}, nil
}

func (p *Postgres) InsertUser(ctx context.Context, u *User) error {
	row, err := toRow(u)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, username, first_name, last_name, email, password_hash, extra, created_at)
		VALUES (:id, :username, :first_name, :last_name, :email, :password_hash, :extra, :created_at)
	`
	if _, err := p.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close(context.Context) error {
	return p.db.Close()
}
