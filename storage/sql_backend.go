/*
Copyright (C) 2026  HyperKV Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// SQLBackend is the opportunistic larger-than-RAM Backend: it keeps
// the keyspace in an external RDBMS table instead of process memory,
// for deployments whose working set outgrows a single host's RAM.
// It is intentionally the simplest possible mapping of Backend onto
// SQL: one table, one blob column, no secondary indexing beyond the
// primary key.
type SQLBackend struct {
	db        *sql.DB
	tableName string
}

// NewSQLBackend opens (and, if necessary, creates) the backing table
// over a database/sql DSN understood by go-sql-driver/mysql.
func NewSQLBackend(dsn, tableName string) (*SQLBackend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: opening sql backend: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: connecting sql backend: %w", err)
	}
	s := &SQLBackend{db: db, tableName: tableName}
	createStmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS `%s` (`k` VARBINARY(512) PRIMARY KEY, `v` LONGBLOB NOT NULL, `expires_at` BIGINT NOT NULL DEFAULT 0)",
		tableName,
	)
	if _, err := db.Exec(createStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: creating sql backend table: %w", err)
	}
	return s, nil
}

func (s *SQLBackend) Get(key string) (Entry, bool, error) {
	row := s.db.QueryRow(fmt.Sprintf("SELECT `v`, `expires_at` FROM `%s` WHERE `k` = ?", s.tableName), key)
	var e Entry
	if err := row.Scan(&e.Value, &e.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *SQLBackend) Put(key string, e Entry) error {
	stmt := fmt.Sprintf(
		"INSERT INTO `%s` (`k`, `v`, `expires_at`) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE `v` = VALUES(`v`), `expires_at` = VALUES(`expires_at`)",
		s.tableName,
	)
	_, err := s.db.Exec(stmt, key, e.Value, e.ExpiresAt)
	return err
}

func (s *SQLBackend) Delete(key string) (bool, error) {
	res, err := s.db.Exec(fmt.Sprintf("DELETE FROM `%s` WHERE `k` = ?", s.tableName), key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLBackend) Exists(key string) (bool, error) {
	row := s.db.QueryRow(fmt.Sprintf("SELECT 1 FROM `%s` WHERE `k` = ?", s.tableName), key)
	var dummy int
	if err := row.Scan(&dummy); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SQLBackend) ScanFrom(cursor string, limit int) ([]string, string, error) {
	query := fmt.Sprintf("SELECT `k` FROM `%s` WHERE `k` >= ? ORDER BY `k` ASC", s.tableName)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit+1)
	}
	rows, err := s.db.Query(query, cursor)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, "", err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	if limit > 0 && len(keys) > limit {
		return keys[:limit], keys[limit], nil
	}
	return keys, "", nil
}

func (s *SQLBackend) Clear() error {
	_, err := s.db.Exec(fmt.Sprintf("TRUNCATE TABLE `%s`", s.tableName))
	return err
}

func (s *SQLBackend) Size() (int, error) {
	row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM `%s`", s.tableName))
	var n int
	err := row.Scan(&n)
	return n, err
}

func (s *SQLBackend) Close() error {
	return s.db.Close()
}
