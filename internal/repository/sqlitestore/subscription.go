package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
)

type subscriptionRepo struct{ db *sql.DB }

func (r *subscriptionRepo) scan(row interface{ Scan(...any) error }) (repository.Subscription, error) {
	var s repository.Subscription
	err := row.Scan(&s.ID, &s.Site, &s.HubID, &s.TopicURI, &s.EncryptedSecret, &s.LeaseExpiry, &s.PollingInterval)
	return s, err
}

func (r *subscriptionRepo) GetMultiple(ctx context.Context) ([]repository.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, site, hub_id, topic_uri, encrypted_secret, lease_expiry, polling_interval FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: subscriptions get multiple: %w", err)
	}
	defer rows.Close()
	var out []repository.Subscription
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: subscriptions scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *subscriptionRepo) Get(ctx context.Context, id int64) (repository.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, site, hub_id, topic_uri, encrypted_secret, lease_expiry, polling_interval FROM subscriptions WHERE id = ?`, id)
	s, err := r.scan(row)
	if err == sql.ErrNoRows {
		return repository.Subscription{}, repository.ErrNotFound
	}
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("sqlitestore: subscription get: %w", err)
	}
	return s, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, s repository.Subscription) (repository.Subscription, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (site, hub_id, topic_uri, encrypted_secret, lease_expiry, polling_interval) VALUES (?,?,?,?,?,?)`,
		s.Site, s.HubID, s.TopicURI, s.EncryptedSecret, s.LeaseExpiry, s.PollingInterval)
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("sqlitestore: subscription create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("sqlitestore: subscription last insert id: %w", err)
	}
	s.ID = id
	return s, nil
}

func (r *subscriptionRepo) Update(ctx context.Context, s repository.Subscription) (repository.Subscription, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET site=?, hub_id=?, topic_uri=?, encrypted_secret=?, lease_expiry=?, polling_interval=? WHERE id=?`,
		s.Site, s.HubID, s.TopicURI, s.EncryptedSecret, s.LeaseExpiry, s.PollingInterval, s.ID)
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("sqlitestore: subscription update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("sqlitestore: subscription rows affected: %w", err)
	}
	if n == 0 {
		return repository.Subscription{}, repository.ErrNotFound
	}
	return s, nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlitestore: subscription delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlitestore: subscription rows affected: %w", err)
	}
	return n > 0, nil
}
