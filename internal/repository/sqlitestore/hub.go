package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
)

type hubRepo struct{ db *sql.DB }

func (r *hubRepo) GetMultiple(ctx context.Context) ([]repository.Hub, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, url, subscription_api FROM hubs`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: hubs get multiple: %w", err)
	}
	defer rows.Close()
	var out []repository.Hub
	for rows.Next() {
		var h repository.Hub
		if err := rows.Scan(&h.ID, &h.Name, &h.URL, &h.SubscriptionAPI); err != nil {
			return nil, fmt.Errorf("sqlitestore: hubs scan: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *hubRepo) Get(ctx context.Context, id int64) (repository.Hub, error) {
	var h repository.Hub
	err := r.db.QueryRowContext(ctx, `SELECT id, name, url, subscription_api FROM hubs WHERE id = ?`, id).
		Scan(&h.ID, &h.Name, &h.URL, &h.SubscriptionAPI)
	if err == sql.ErrNoRows {
		return repository.Hub{}, repository.ErrNotFound
	}
	if err != nil {
		return repository.Hub{}, fmt.Errorf("sqlitestore: hub get: %w", err)
	}
	return h, nil
}

func (r *hubRepo) Create(ctx context.Context, h repository.Hub) (repository.Hub, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO hubs (name, url, subscription_api) VALUES (?,?,?)`, h.Name, h.URL, h.SubscriptionAPI)
	if err != nil {
		return repository.Hub{}, fmt.Errorf("sqlitestore: hub create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return repository.Hub{}, fmt.Errorf("sqlitestore: hub last insert id: %w", err)
	}
	h.ID = id
	return h, nil
}

func (r *hubRepo) Update(ctx context.Context, h repository.Hub) (repository.Hub, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE hubs SET name=?, url=?, subscription_api=? WHERE id=?`, h.Name, h.URL, h.SubscriptionAPI, h.ID)
	if err != nil {
		return repository.Hub{}, fmt.Errorf("sqlitestore: hub update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.Hub{}, fmt.Errorf("sqlitestore: hub rows affected: %w", err)
	}
	if n == 0 {
		return repository.Hub{}, repository.ErrNotFound
	}
	return h, nil
}

func (r *hubRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hubs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlitestore: hub delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlitestore: hub rows affected: %w", err)
	}
	return n > 0, nil
}
