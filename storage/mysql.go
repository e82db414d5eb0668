package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/antgroup/valuestore/plumbing"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// MySQLStorage is the reference Storage backend: a `changes` table keyed by
// hash plus a `change_rels` parent→child edge table, matching the schema
// informatively described in spec.md §6.
//
//	CREATE TABLE changes (
//	    id      BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    hash    BINARY(32) NOT NULL UNIQUE,
//	    content LONGBLOB   NOT NULL
//	);
//	CREATE TABLE change_rels (
//	    parent BIGINT NOT NULL REFERENCES changes(id),
//	    child  BIGINT NOT NULL REFERENCES changes(id),
//	    PRIMARY KEY (child, parent)
//	);
type MySQLStorage struct {
	db *sql.DB
}

var _ Storage = (*MySQLStorage)(nil)

// NewMySQLStorage opens a connection pool against cfg, sized the way
// pkg/serve/database.NewDB sizes its own pool.
func NewMySQLStorage(cfg *mysql.Config) (*MySQLStorage, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("new connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxIdleConns(25)
	db.SetMaxOpenConns(50)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &MySQLStorage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

// AddChange is atomic across its hash insertion and parent-edge insertions:
// both happen inside one transaction, or neither does. Idempotent by hash —
// a second insert of the same hash returns the existing id and never
// touches change_rels again, so a retried or racing caller cannot duplicate
// parent edges.
func (s *MySQLStorage) AddChange(ctx context.Context, hash plumbing.Hash, content []byte, parents []plumbing.Hash) (ChangeID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "INSERT INTO changes (hash, content) VALUES (?, ?)", hash[:], content)
	switch {
	case err == nil:
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		for _, parent := range parents {
			var parentID int64
			row := tx.QueryRowContext(ctx, "SELECT id FROM changes WHERE hash = ?", parent[:])
			if err := row.Scan(&parentID); err != nil {
				return 0, fmt.Errorf("resolve parent %s: %w", parent, err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO change_rels (parent, child) VALUES (?, ?)", parentID, id); err != nil {
				return 0, fmt.Errorf("insert change_rels: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit: %w", err)
		}
		return ChangeID(id), nil
	case isDupEntry(err):
		logrus.Debugf("storage: change %s already present, skipping parent-edge insert", hash)
		var id int64
		row := tx.QueryRowContext(ctx, "SELECT id FROM changes WHERE hash = ?", hash[:])
		if scanErr := row.Scan(&id); scanErr != nil {
			return 0, fmt.Errorf("resolve existing change %s: %w", hash, scanErr)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit: %w", err)
		}
		return ChangeID(id), nil
	default:
		return 0, fmt.Errorf("insert change %s: %w", hash, err)
	}
}

// GetChangeID looks up the id of an already-persisted change by hash.
func (s *MySQLStorage) GetChangeID(ctx context.Context, hash plumbing.Hash) (ChangeID, bool, error) {
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM changes WHERE hash = ?", hash[:])
	if err := row.Scan(&id); err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get change id: %w", err)
	}
	return ChangeID(id), true, nil
}

// GetChangeRels returns id's parent ids, ordered by parent hash ascending,
// matching the order plumbing.Parents itself enforces.
func (s *MySQLStorage) GetChangeRels(ctx context.Context, id ChangeID) ([]ChangeID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT change_rels.parent FROM change_rels
		 JOIN changes ON change_rels.parent = changes.id
		 WHERE change_rels.child = ?
		 ORDER BY changes.hash ASC`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("get change rels: %w", err)
	}
	defer rows.Close()

	var out []ChangeID
	for rows.Next() {
		var parentID int64
		if err := rows.Scan(&parentID); err != nil {
			return nil, fmt.Errorf("scan change rel: %w", err)
		}
		out = append(out, ChangeID(parentID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change rels: %w", err)
	}
	return out, nil
}

// GetChangeContent returns the raw encoded bytes passed to AddChange for id.
func (s *MySQLStorage) GetChangeContent(ctx context.Context, id ChangeID) ([]byte, error) {
	var content []byte
	row := s.db.QueryRowContext(ctx, "SELECT content FROM changes WHERE id = ?", int64(id))
	if err := row.Scan(&content); err != nil {
		if isNoRows(err) {
			return nil, &ErrChangeNotFound{}
		}
		return nil, fmt.Errorf("get change content: %w", err)
	}
	return content, nil
}
