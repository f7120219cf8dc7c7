package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/Alias1177/Cardeon/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CheckupStore is the checkup history used by the delivery surfaces.
type CheckupStore interface {
	EnsureUser(ctx context.Context, userID, chatID int64) error
	GetUser(ctx context.Context, userID int64) (*models.UserProfile, error)
	UpdateLastPredicted(ctx context.Context, userID int64, result *models.PredictionResult) error
	CreateCheckup(ctx context.Context, userID int64, date time.Time, notes, documentName string) (*models.Checkup, error)
	ListCheckups(ctx context.Context, userID int64) ([]models.Checkup, error)
	Ping(ctx context.Context) error
}

// DB represents a database connection
type DB struct {
	*sql.DB
}

var _ CheckupStore = (*DB)(nil)

// New creates a new database connection
func New(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			last_predicted TIMESTAMP,
			last_risk_category TEXT,
			last_probability DOUBLE PRECISION
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkups (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id),
			checkup_date DATE NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			document_name TEXT,
			created_at TIMESTAMP NOT NULL,
			reminded BOOLEAN NOT NULL DEFAULT FALSE
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS checkups_user_date_idx ON checkups (user_id, checkup_date DESC)
	`)
	return err
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// EnsureUser registers a user or refreshes their chat ID
func (db *DB) EnsureUser(ctx context.Context, userID, chatID int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (user_id, chat_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET chat_id = EXCLUDED.chat_id
	`, userID, chatID, time.Now())

	return err
}

const userColumns = `user_id, chat_id, created_at, last_predicted, last_risk_category, last_probability`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.UserProfile, error) {
	var user models.UserProfile
	var lastPredicted sql.NullTime
	var lastCategory sql.NullString
	var lastProbability sql.NullFloat64

	err := row.Scan(&user.UserID, &user.ChatID, &user.CreatedAt, &lastPredicted, &lastCategory, &lastProbability)
	if err != nil {
		return nil, err
	}

	if lastPredicted.Valid {
		user.LastPredicted = lastPredicted.Time
	}
	if lastCategory.Valid {
		user.LastRiskCategory = models.RiskCategory(lastCategory.String)
	}
	if lastProbability.Valid {
		user.LastProbability = lastProbability.Float64
	}
	return &user, nil
}

// GetUser retrieves a user's profile
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.UserProfile, error) {
	user, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns every registered user, oldest first.
func (db *DB) ListUsers(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserProfile
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateLastPredicted records the outcome of a user's latest prediction
func (db *DB) UpdateLastPredicted(ctx context.Context, userID int64, result *models.PredictionResult) error {
	_, err := db.ExecContext(ctx, `
		UPDATE users
		SET last_predicted = NOW(), last_risk_category = $1, last_probability = $2
		WHERE user_id = $3
	`, string(result.RiskCategory), result.Probability, userID)

	return err
}

// CreateCheckup stores a checkup for a user
func (db *DB) CreateCheckup(ctx context.Context, userID int64, date time.Time, notes, documentName string) (*models.Checkup, error) {
	checkup := &models.Checkup{
		ID:           uuid.NewString(),
		UserID:       userID,
		Date:         date,
		Notes:        notes,
		DocumentName: documentName,
		CreatedAt:    time.Now(),
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO checkups (id, user_id, checkup_date, notes, document_name, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, checkup.ID, checkup.UserID, checkup.Date, checkup.Notes, checkup.DocumentName, checkup.CreatedAt)
	if err != nil {
		return nil, err
	}

	return checkup, nil
}

// ListCheckups returns a user's checkups, most recent first
func (db *DB) ListCheckups(ctx context.Context, userID int64) ([]models.Checkup, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, checkup_date, notes, document_name, created_at
		FROM checkups
		WHERE user_id = $1
		ORDER BY checkup_date DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkups := []models.Checkup{}
	for rows.Next() {
		var c models.Checkup
		var documentName sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Date, &c.Notes, &documentName, &c.CreatedAt); err != nil {
			return nil, err
		}
		if documentName.Valid {
			c.DocumentName = documentName.String
		}
		checkups = append(checkups, c)
	}

	return checkups, rows.Err()
}

// DueCheckups returns unreminded checkups dated on or before until, with the
// chat to notify.
func (db *DB) DueCheckups(ctx context.Context, until time.Time) ([]models.CheckupReminder, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.checkup_date, c.notes, u.chat_id
		FROM checkups c
		JOIN users u ON u.user_id = c.user_id
		WHERE c.reminded = FALSE AND c.checkup_date <= $1
		ORDER BY c.checkup_date
	`, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []models.CheckupReminder
	for rows.Next() {
		var r models.CheckupReminder
		if err := rows.Scan(&r.Checkup.ID, &r.Checkup.UserID, &r.Checkup.Date, &r.Checkup.Notes, &r.ChatID); err != nil {
			return nil, err
		}
		due = append(due, r)
	}

	return due, rows.Err()
}

// MarkReminded flags a checkup so it is not announced twice
func (db *DB) MarkReminded(ctx context.Context, checkupID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE checkups
		SET reminded = TRUE
		WHERE id = $1
	`, checkupID)

	return err
}
