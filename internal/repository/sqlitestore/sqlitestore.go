// Package sqlitestore implements internal/repository's contracts against a
// real SQLite database. Grounded on original_source/DAO.py and model.py's
// BaseWithUtils.get/get_multiple/create/update/delete shape, and on
// _examples/nugget-thane-ai-agent/internal/opstate/store.go for the Go
// database/sql + modernc.org/sqlite wiring idiom (migrate-on-open, one
// *sql.DB shared across calls, context-scoped queries).
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// Store holds the shared *sql.DB. TaskRepositoryFor returns a view scoped
// to one task kind (download/upload); Hub/Subscription access is
// kind-agnostic.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS download_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT, extension TEXT, path TEXT, url TEXT,
		wait_time INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL, priority INTEGER NOT NULL,
		attrs TEXT
	);
	CREATE TABLE IF NOT EXISTS upload_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT, extension TEXT, path TEXT, url TEXT,
		wait_time INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL, priority INTEGER NOT NULL,
		attrs TEXT
	);
	CREATE TABLE IF NOT EXISTS hubs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		subscription_api TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT, hub_id INTEGER NOT NULL,
		topic_uri TEXT NOT NULL DEFAULT '',
		encrypted_secret BLOB,
		lease_expiry INTEGER NOT NULL DEFAULT 0,
		polling_interval INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// TaskRepositoryFor returns a repository.TaskRepository scoped to kind's
// table. The two schedulers each hold their own.
func (s *Store) TaskRepositoryFor(kind task.Kind) repository.TaskRepository {
	table := "download_tasks"
	if kind == task.KindUpload {
		table = "upload_tasks"
	}
	return &taskRepo{db: s.db, table: table, kind: kind}
}

// HubRepository returns a repository.HubRepository backed by this store.
func (s *Store) HubRepository() repository.HubRepository { return &hubRepo{db: s.db} }

// SubscriptionRepository returns a repository.SubscriptionRepository
// backed by this store.
func (s *Store) SubscriptionRepository() repository.SubscriptionRepository {
	return &subscriptionRepo{db: s.db}
}

type taskRepo struct {
	db    *sql.DB
	table string
	kind  task.Kind
}

func (r *taskRepo) scan(row interface{ Scan(...any) error }) (task.Task, error) {
	var t task.Task
	var attrsJSON sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.Extension, &t.Path, &t.URL, &t.WaitTime, &t.State, &t.Priority, &attrsJSON); err != nil {
		return task.Task{}, err
	}
	t.Kind = r.kind
	if attrsJSON.Valid && attrsJSON.String != "" {
		if r.kind == task.KindDownload {
			var a task.DownloadAttrs
			if err := json.Unmarshal([]byte(attrsJSON.String), &a); err == nil {
				t.Download = &a
			}
		} else {
			var a task.UploadAttrs
			if err := json.Unmarshal([]byte(attrsJSON.String), &a); err == nil {
				t.Upload = &a
			}
		}
	}
	return t, nil
}

func (r *taskRepo) attrsJSON(t task.Task) (string, error) {
	var v any
	if r.kind == task.KindDownload {
		v = t.Download
	} else {
		v = t.Upload
	}
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *taskRepo) GetMultiple(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	query := fmt.Sprintf(`SELECT id, name, extension, path, url, wait_time, state, priority, attrs FROM %s`, r.table)
	var args []any
	if len(filter.States) > 0 {
		placeholders := ""
		for i, st := range filter.States {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, string(st))
		}
		op := "IN"
		if filter.FilterOut {
			op = "NOT IN"
		}
		query += fmt.Sprintf(" WHERE state %s (%s)", op, placeholders)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get multiple: %w", err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *taskRepo) Get(ctx context.Context, id int64) (task.Task, error) {
	query := fmt.Sprintf(`SELECT id, name, extension, path, url, wait_time, state, priority, attrs FROM %s WHERE id = ?`, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	t, err := r.scan(row)
	if err == sql.ErrNoRows {
		return task.Task{}, repository.ErrNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("sqlitestore: get: %w", err)
	}
	return t, nil
}

func (r *taskRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	attrs, err := r.attrsJSON(t)
	if err != nil {
		return task.Task{}, fmt.Errorf("sqlitestore: marshal attrs: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (name, extension, path, url, wait_time, state, priority, attrs) VALUES (?,?,?,?,?,?,?,?)`, r.table)
	res, err := r.db.ExecContext(ctx, query, t.Name, t.Extension, t.Path, t.URL, t.WaitTime, string(t.State), int(t.Priority), attrs)
	if err != nil {
		return task.Task{}, fmt.Errorf("sqlitestore: create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return task.Task{}, fmt.Errorf("sqlitestore: last insert id: %w", err)
	}
	t.ID = id
	t.Kind = r.kind
	return t, nil
}

func (r *taskRepo) Update(ctx context.Context, t task.Task) (task.Task, error) {
	attrs, err := r.attrsJSON(t)
	if err != nil {
		return task.Task{}, fmt.Errorf("sqlitestore: marshal attrs: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET name=?, extension=?, path=?, url=?, wait_time=?, state=?, priority=?, attrs=? WHERE id=?`, r.table)
	res, err := r.db.ExecContext(ctx, query, t.Name, t.Extension, t.Path, t.URL, t.WaitTime, string(t.State), int(t.Priority), attrs, t.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("sqlitestore: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return task.Task{}, fmt.Errorf("sqlitestore: rows affected: %w", err)
	}
	if n == 0 {
		return task.Task{}, repository.ErrNotFound
	}
	t.Kind = r.kind
	return t, nil
}

func (r *taskRepo) Delete(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("sqlitestore: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlitestore: rows affected: %w", err)
	}
	return n > 0, nil
}
