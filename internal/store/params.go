package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Param is one durable parameter.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

var upper = cases.Upper(language.Und)

// CanonicalParamName normalizes a parameter name for storage and lookup:
// NFC, trimmed, upper case. "foll_ofs_z" and "FOLL_OFS_Z" name the same row.
func CanonicalParamName(name string) string {
	return upper.String(norm.NFC.String(strings.TrimSpace(name)))
}

// SaveParam writes a durable parameter value, replacing any previous one.
func (s *Store) SaveParam(ctx context.Context, name string, value float64) error {
	key := CanonicalParamName(name)
	if key == "" {
		return errors.New("save param: empty name")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("save param %s: non-finite value %v", key, value)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO params (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("save param %s: %w", key, err)
	}
	return nil
}

// Param returns a durable parameter. found is false when it was never saved.
func (s *Store) Param(ctx context.Context, name string) (value float64, found bool, err error) {
	key := CanonicalParamName(name)
	err = s.db.QueryRowContext(ctx, `SELECT value FROM params WHERE name = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read param %s: %w", key, err)
	}
	return value, true, nil
}

// DeleteParam removes a durable parameter. Deleting a missing one is a no-op.
func (s *Store) DeleteParam(ctx context.Context, name string) error {
	key := CanonicalParamName(name)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM params WHERE name = ?`, key); err != nil {
		return fmt.Errorf("delete param %s: %w", key, err)
	}
	return nil
}

// Params returns every durable parameter ordered by name.
func (s *Store) Params(ctx context.Context) ([]Param, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value FROM params
		ORDER BY name ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()

	var params []Param
	for rows.Next() {
		var p Param
		if err := rows.Scan(&p.Name, &p.Value); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate params: %w", err)
	}
	return params, nil
}
