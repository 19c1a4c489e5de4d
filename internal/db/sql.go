package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// SQL is a Store backed by MySQL.
type SQL struct {
	db *sqlx.DB
}

// OpenSQL connects to dsn, waiting up to wait for the database to answer.
func OpenSQL(ctx context.Context, dsn string, wait time.Duration) (*SQL, error) {
	xdb, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	xdb.SetConnMaxLifetime(2 * time.Hour)
	xdb.SetMaxIdleConns(10)
	xdb.SetMaxOpenConns(50)

	deadline := time.Now().Add(wait)
	for {
		err = xdb.PingContext(ctx)
		if err == nil {
			return &SQL{db: xdb}, nil
		}
		if time.Now().After(deadline) {
			_ = xdb.Close()
			return nil, fmt.Errorf("database not reachable: %w", err)
		}
		select {
		case <-ctx.Done():
			_ = xdb.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (s *SQL) Close() error { return s.db.Close() }

// EnsureSchema creates the tables if needed. The DDL runs under the named
// advisory lock so concurrent instances do not race.
func (s *SQL) EnsureSchema(ctx context.Context, lockName string, lockTimeout int) error {
	return s.withLock(ctx, lockName, lockTimeout, s.createTables)
}

func (s *SQL) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			userid VARCHAR(255) NOT NULL PRIMARY KEY,
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS resources (
			seq BIGINT AUTO_INCREMENT NOT NULL UNIQUE,
			uri VARCHAR(255) COLLATE utf8mb4_bin NOT NULL PRIMARY KEY,
			class VARCHAR(32) NOT NULL,
			parent VARCHAR(255) COLLATE utf8mb4_bin NOT NULL DEFAULT '',
			name VARCHAR(255) COLLATE utf8mb4_bin NOT NULL DEFAULT '',
			properties JSON NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX (class, parent),
			INDEX (class, parent, name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

type resourceRow struct {
	URI        string    `db:"uri"`
	Class      string    `db:"class"`
	Parent     string    `db:"parent"`
	Properties []byte    `db:"properties"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row resourceRow) resource() (Resource, error) {
	props := map[string]any{}
	if err := json.Unmarshal(row.Properties, &props); err != nil {
		return Resource{}, fmt.Errorf("decode properties of %s: %w", row.URI, err)
	}
	return Resource{
		URI:        row.URI,
		Class:      row.Class,
		Parent:     row.Parent,
		Properties: props,
		CreatedAt:  row.CreatedAt,
	}, nil
}

const resourceColumns = "uri, class, parent, properties, created_at"

func (s *SQL) GetResource(ctx context.Context, uri string) (Resource, error) {
	var row resourceRow
	err := s.db.GetContext(ctx, &row, "SELECT "+resourceColumns+" FROM resources WHERE uri=?", uri)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, ErrNotFound
	}
	if err != nil {
		return Resource{}, err
	}
	return row.resource()
}

func (s *SQL) ListResources(ctx context.Context, class, parent string) ([]Resource, error) {
	q := "SELECT " + resourceColumns + " FROM resources WHERE class=?"
	args := []any{class}
	if parent != "" {
		q += " AND parent=?"
		args = append(args, parent)
	}
	q += " ORDER BY seq ASC"

	var rows []resourceRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(rows))
	for _, row := range rows {
		r, err := row.resource()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQL) PutResource(ctx context.Context, r Resource) error {
	props, err := json.Marshal(r.Properties)
	if err != nil {
		return fmt.Errorf("encode properties of %s: %w", r.URI, err)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resources (uri, class, parent, name, properties, created_at)
		 VALUES (?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE class=VALUES(class), parent=VALUES(parent),
		   name=VALUES(name), properties=VALUES(properties)`,
		r.URI, r.Class, r.Parent, r.Name(), props, created,
	)
	return err
}

func (s *SQL) DeleteResource(ctx context.Context, uri string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM resources WHERE uri=?", uri)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) FindResourceByName(ctx context.Context, class, parent, name string) (Resource, error) {
	var row resourceRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+resourceColumns+" FROM resources WHERE class=? AND parent=? AND name=? ORDER BY seq ASC LIMIT 1",
		class, parent, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, ErrNotFound
	}
	if err != nil {
		return Resource{}, err
	}
	return row.resource()
}

func (s *SQL) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, "SELECT userid, password_hash, created_at FROM users WHERE userid=?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *SQL) PutUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (userid, password_hash) VALUES (?,?)
		 ON DUPLICATE KEY UPDATE password_hash=VALUES(password_hash)`,
		u.UserID, u.PasswordHash)
	return err
}
