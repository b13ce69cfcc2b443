package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// UpsertSource inserts src or updates the stored row when any field changed.
func (s *Store) UpsertSource(ctx context.Context, src Source) (UpsertResult, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(src.ID) == "" {
		return Ignored, errors.New("source id is required")
	}
	if src.Kind == "" {
		src.Kind = "m3u"
	}
	if src.Name == "" {
		src.Name = src.ID
	}

	existing, err := s.GetSource(ctx, src.ID)
	if err != nil {
		return Ignored, err
	}
	if existing == nil {
		_, err := s.execWithRetry(ctx,
			"INSERT INTO source (id, name, kind, base_url, username, password, max_connections) VALUES (?, ?, ?, ?, ?, ?, ?)",
			src.ID, src.Name, src.Kind,
			nullableString(src.BaseURL), nullableString(src.Username), nullableString(src.Password),
			nullableInt(src.MaxConnections),
		)
		if err != nil {
			return Ignored, fmt.Errorf("insert source %s: %w", src.ID, err)
		}
		return Inserted, nil
	}
	if sameSource(*existing, src) {
		return Ignored, nil
	}
	_, err = s.execWithRetry(ctx,
		"UPDATE source SET name = ?, kind = ?, base_url = ?, username = ?, password = ?, max_connections = ? WHERE id = ?",
		src.Name, src.Kind,
		nullableString(src.BaseURL), nullableString(src.Username), nullableString(src.Password),
		nullableInt(src.MaxConnections), src.ID,
	)
	if err != nil {
		return Ignored, fmt.Errorf("update source %s: %w", src.ID, err)
	}
	return Updated, nil
}

func sameSource(a, b Source) bool {
	if a.Name != b.Name || a.Kind != b.Kind || a.BaseURL != b.BaseURL || a.Username != b.Username || a.Password != b.Password {
		return false
	}
	if (a.MaxConnections == nil) != (b.MaxConnections == nil) {
		return false
	}
	return a.MaxConnections == nil || *a.MaxConnections == *b.MaxConnections
}

// GetSource fetches a source by id. It returns nil, nil when absent.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT id, name, kind, base_url, username, password, max_connections FROM source WHERE id = ?", id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	return src, nil
}

// ListSources returns every known source ordered by id.
func (s *Store) ListSources(ctx context.Context) ([]*Source, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT id, name, kind, base_url, username, password, max_connections FROM source ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []*Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func scanSource(scanner rowScanner) (*Source, error) {
	var (
		src      Source
		baseURL  sql.NullString
		username sql.NullString
		password sql.NullString
		maxConn  sql.NullInt64
	)
	if err := scanner.Scan(&src.ID, &src.Name, &src.Kind, &baseURL, &username, &password, &maxConn); err != nil {
		return nil, err
	}
	src.BaseURL = baseURL.String
	src.Username = username.String
	src.Password = password.String
	if maxConn.Valid {
		n := int(maxConn.Int64)
		src.MaxConnections = &n
	}
	return &src, nil
}
