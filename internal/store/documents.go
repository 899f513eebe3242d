package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/eventroom/internal/backend"
)

var _ backend.Store = (*Store)(nil)

// Create inserts a document under a new ID.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := s.ids.Generate()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insert(ctx, tx, collection, id, resolveFields(fields, s.stamps.Next))
	})
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	s.changed(ctx, collection)
	return id, nil
}

// Append inserts a document under a new ID, discarding the ID.
func (s *Store) Append(ctx context.Context, collection string, fields map[string]any) error {
	_, err := s.Create(ctx, collection, fields)
	return err
}

// Set writes the document at ref. With merge, fields already stored and
// not named in fields are kept; without it the document is replaced.
func (s *Store) Set(ctx context.Context, ref backend.DocumentRef, fields map[string]any, merge bool) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		resolved := resolveFields(fields, s.stamps.Next)
		current, found, err := s.load(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !found {
			return s.insert(ctx, tx, ref.Collection, ref.ID, resolved)
		}
		if merge {
			for k, v := range resolved {
				current[k] = v
			}
			resolved = current
		}
		return s.update(ctx, tx, ref, resolved)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", ref.Path(), err)
	}
	s.changed(ctx, ref.Collection)
	return nil
}

// AppendToSet adds value to the array field of an existing document unless
// an equal element is present. A missing or non-array field starts empty.
func (s *Store) AppendToSet(ctx context.Context, ref backend.DocumentRef, field string, value any) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, found, err := s.load(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !found {
			return backend.ErrNotFound
		}
		set, _ := current[field].([]any)
		if slices.ContainsFunc(set, func(v any) bool { return v == value }) {
			return nil
		}
		current[field] = append(set, value)
		return s.update(ctx, tx, ref, current)
	})
	if err != nil {
		return fmt.Errorf("append to set %s.%s: %w", ref.Path(), field, err)
	}
	s.changed(ctx, ref.Collection)
	return nil
}

// FetchAll returns every document of a collection in insertion order.
func (s *Store) FetchAll(ctx context.Context, collection string) ([]backend.Document, error) {
	docs, err := s.query(ctx, backend.Query{Collection: collection})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	return docs, nil
}

// Get returns one document, or an error wrapping backend.ErrNotFound.
func (s *Store) Get(ctx context.Context, ref backend.DocumentRef) (backend.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?
	`, ref.Collection, ref.ID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.Document{}, fmt.Errorf("get %s: %w", ref.Path(), backend.ErrNotFound)
	}
	if err != nil {
		return backend.Document{}, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	fields, err := unmarshalFields(data)
	if err != nil {
		return backend.Document{}, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return backend.Document{ID: ref.ID, Fields: fields}, nil
}

// query runs a collection query. Documents missing the order field sort
// first; ties keep insertion order.
func (s *Store) query(ctx context.Context, q backend.Query) ([]backend.Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if q.OrderBy == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data FROM documents
			WHERE collection = ?
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`, q.Collection)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data FROM documents
			WHERE collection = ?
			ORDER BY json_extract(data, ?) ASC, seq ASC, id COLLATE BINARY ASC
		`, q.Collection, "$."+q.OrderBy)
	}
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []backend.Document{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := unmarshalFields(data)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, backend.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, tx *sql.Tx, ref backend.DocumentRef) (map[string]any, bool, error) {
	var data string
	err := tx.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = ? AND id = ?
	`, ref.Collection, ref.ID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load: %w", err)
	}
	fields, err := unmarshalFields(data)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, collection, id string, fields map[string]any) error {
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}
	// Another connection may have inserted since this one last did.
	var floor int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM documents WHERE collection = ?
	`, collection).Scan(&floor); err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, seq)
		VALUES (?, ?, ?, ?)
	`, collection, id, data, s.seq.NextAfter(floor))
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, tx *sql.Tx, ref backend.DocumentRef, fields map[string]any) error {
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET data = ? WHERE collection = ? AND id = ?
	`, data, ref.Collection, ref.ID)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}
