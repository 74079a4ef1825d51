package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	queryTimeout = 5 * time.Second
	txTimeout    = 10 * time.Second
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

var (
	_ types.SettlementStore = (*PostgresStore)(nil)
	_ types.UserStore       = (*PostgresStore)(nil)
)

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "vpn_bot"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "vpn_bot"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStore) RegisterUser(ctx context.Context, u types.User) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var created bool
	err := s.pool.QueryRow(ctx, `
INSERT INTO users (user_id, username, first_name)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  updated_at = NOW()
RETURNING (xmax = 0)
`, u.UserID, strings.TrimSpace(u.Username), strings.TrimSpace(u.FirstName)).Scan(&created)
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var u types.User
	err := s.pool.QueryRow(ctx, `
SELECT user_id, username, first_name, created_at
FROM users
WHERE user_id = $1
`, userID).Scan(&u.UserID, &u.Username, &u.FirstName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreatePayment(ctx context.Context, p types.PaymentRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	status := p.Status
	if status == "" {
		status = types.PaymentPending
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO payments (label, user_id, server, amount, days, status)
VALUES ($1, $2, $3, $4, $5, $6)
`, strings.TrimSpace(p.Label), p.UserID, strings.TrimSpace(p.Server), p.Amount, p.Days, string(status))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return types.ErrPaymentExists
	}
	return err
}

const selectPayment = `
SELECT label, user_id, server, amount, days, status, refunded_at, created_at, updated_at
FROM payments
`

func scanPayment(row pgx.Row) (*types.PaymentRecord, error) {
	var p types.PaymentRecord
	var status string
	err := row.Scan(&p.Label, &p.UserID, &p.Server, &p.Amount, &p.Days, &status, &p.RefundedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = types.PaymentStatus(status)
	return &p, nil
}

func (s *PostgresStore) GetPayment(ctx context.Context, label string) (*types.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanPayment(s.pool.QueryRow(ctx, selectPayment+`WHERE label = $1`, label))
}

func (s *PostgresStore) ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]types.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, selectPayment+`
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at
`, createdBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]types.PaymentRecord, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *PostgresStore) GetSubscription(ctx context.Context, userID int64) (*types.SubscriptionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var sub types.SubscriptionRecord
	err := s.pool.QueryRow(ctx, `
SELECT user_id, server, payment_label, start_date, end_date
FROM subscriptions
WHERE user_id = $1
`, userID).Scan(&sub.UserID, &sub.Server, &sub.PaymentLabel, &sub.StartDate, &sub.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) ReplaceSubscription(ctx context.Context, sub types.SubscriptionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := replaceSubscriptionTx(ctx, tx, sub); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func replaceSubscriptionTx(ctx context.Context, tx pgx.Tx, sub types.SubscriptionRecord) error {
	if _, err := tx.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, sub.UserID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
INSERT INTO subscriptions (user_id, server, payment_label, start_date, end_date)
VALUES ($1, $2, $3, $4, $5)
`, sub.UserID, strings.TrimSpace(sub.Server), sub.PaymentLabel, sub.StartDate.UTC(), sub.EndDate.UTC())
	return err
}

func (s *PostgresStore) DeleteSubscription(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// lockPayment reads the payment row under FOR UPDATE; concurrent settlers of the
// same label block here until the holder commits.
func lockPayment(ctx context.Context, tx pgx.Tx, label string) (*types.PaymentRecord, error) {
	return scanPayment(tx.QueryRow(ctx, selectPayment+`WHERE label = $1 FOR UPDATE`, label))
}

func (s *PostgresStore) SettleSuccess(ctx context.Context, label string, grant types.GrantFunc) (*types.PaymentRecord, *types.SubscriptionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := lockPayment(ctx, tx, label)
	if err != nil {
		return nil, nil, err
	}
	if !p.IsPending() {
		return p, nil, types.ErrAlreadyProcessed
	}

	sub := grant(*p)
	if err := replaceSubscriptionTx(ctx, tx, sub); err != nil {
		return nil, nil, err
	}
	if _, err := tx.Exec(ctx, `
UPDATE payments SET status = 'success', updated_at = NOW()
WHERE label = $1
`, label); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	p.Status = types.PaymentSuccess
	return p, &sub, nil
}

func (s *PostgresStore) SettleFailure(ctx context.Context, label string) (*types.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	p, err := scanPayment(s.pool.QueryRow(ctx, `
UPDATE payments SET status = 'failed', updated_at = NOW()
WHERE label = $1 AND status = 'pending'
RETURNING label, user_id, server, amount, days, status, refunded_at, created_at, updated_at
`, label))
	if errors.Is(err, types.ErrPaymentNotFound) {
		existing, getErr := s.GetPayment(ctx, label)
		if getErr != nil {
			return nil, getErr
		}
		return existing, types.ErrAlreadyProcessed
	}
	return p, err
}

func (s *PostgresStore) SettleRefund(ctx context.Context, label string, at time.Time) (*types.PaymentRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := lockPayment(ctx, tx, label)
	if err != nil {
		return nil, false, err
	}
	if p.RefundedAt != nil || p.Status == types.PaymentFailed {
		return p, false, types.ErrAlreadyProcessed
	}

	status := p.Status
	if status == types.PaymentPending {
		status = types.PaymentFailed
	}
	if _, err := tx.Exec(ctx, `
UPDATE payments SET status = $2, refunded_at = $3, updated_at = NOW()
WHERE label = $1
`, label, string(status), at.UTC()); err != nil {
		return nil, false, err
	}

	revoked := false
	if p.Status == types.PaymentSuccess {
		tag, err := tx.Exec(ctx, `
DELETE FROM subscriptions WHERE user_id = $1
`, p.UserID)
		if err != nil {
			return nil, false, err
		}
		revoked = tag.RowsAffected() > 0
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	refundedAt := at.UTC()
	p.Status = status
	p.RefundedAt = &refundedAt
	return p, revoked, nil
}
