package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord hydrates one row of a kind table into a record.
func scanRecord(kind types.Kind, row rowScanner) (types.Record, error) {
	var id, title, payload, site, created string
	if err := row.Scan(&id, &title, &payload, &site, &created); err != nil {
		return nil, err
	}
	r, err := types.NewRecord(kind)
	if err != nil {
		return nil, err
	}
	ts, err := types.ParseCreated(created)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidRecord, err)
	}
	m := r.Common()
	m.ID = id
	m.Title = title
	m.Site = site
	m.Created = ts
	types.SetPayload(r, payload)
	return r, nil
}

func selectColumns(t kindTable) string {
	return "SELECT id, title, " + t.payload + ", site, created FROM " + t.name
}

// GetAll returns every record of kind.
func (b *Backend) GetAll(ctx context.Context, kind types.Kind) ([]types.Record, error) {
	return b.query(ctx, "getAll", kind, "", "")
}

// GetBySite returns the records of kind whose site equals site. The lookup
// uses the table's site index.
func (b *Backend) GetBySite(ctx context.Context, kind types.Kind, site string) ([]types.Record, error) {
	return b.query(ctx, "getBySite", kind, " WHERE site = ?", site)
}

func (b *Backend) query(ctx context.Context, op string, kind types.Kind, where string, arg string) ([]types.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return nil, err
	}
	t, err := tableFor(kind)
	if err != nil {
		return nil, b.opFailed(op, kind, "", err)
	}

	var args []any
	if where != "" {
		args = append(args, arg)
	}
	rows, err := b.db.QueryContext(ctx, selectColumns(t)+where, args...)
	if err != nil {
		return nil, b.opFailed(op, kind, "", err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		r, err := scanRecord(kind, rows)
		if err != nil {
			return nil, b.opFailed(op, kind, "", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, b.opFailed(op, kind, "", err)
	}
	return out, nil
}

// Get looks up a record by ID. An absent record returns ok == false and a
// nil error.
func (b *Backend) Get(ctx context.Context, kind types.Kind, id string) (types.Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.ready(); err != nil {
		return nil, false, err
	}
	t, err := tableFor(kind)
	if err != nil {
		return nil, false, b.opFailed("get", kind, id, err)
	}
	if id == "" {
		return nil, false, b.opFailed("get", kind, id, types.ErrInvalidID)
	}

	row := b.db.QueryRowContext(ctx, selectColumns(t)+" WHERE id = ?", id)
	r, err := scanRecord(kind, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.opFailed("get", kind, id, err)
	}
	return r, true, nil
}

// Put inserts or replaces r keyed by its ID. When a record with the ID
// already exists its created timestamp is kept.
func (b *Backend) Put(ctx context.Context, r types.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	var kind types.Kind
	var id string
	if r != nil {
		kind, id = r.Kind(), r.Common().ID
	}
	if err := types.ValidateRecord(r); err != nil {
		return b.opFailed("put", kind, id, err)
	}
	t, _ := tableFor(kind)
	m := r.Common()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return b.opFailed("put", kind, id, err)
	}
	defer tx.Rollback()

	holder, err := kindHolding(ctx, tx, kind, m.ID)
	if err != nil {
		return b.opFailed("put", kind, id, err)
	}
	if holder != "" {
		return b.opFailed("put", kind, id, fmt.Errorf("%w: %s", types.ErrIDInUse, holder))
	}

	stmt := "INSERT INTO " + t.name + " (id, title, " + t.payload + ", site, created) VALUES (?, ?, ?, ?, ?)" +
		" ON CONFLICT(id) DO UPDATE SET title = excluded.title, " + t.payload + " = excluded." + t.payload +
		", site = excluded.site"
	if _, err := tx.ExecContext(ctx, stmt, m.ID, m.Title, types.Payload(r), m.Site, types.FormatCreated(m.Created)); err != nil {
		return b.opFailed("put", kind, id, err)
	}
	if err := tx.Commit(); err != nil {
		return b.opFailed("put", kind, id, err)
	}
	return nil
}

// kindHolding returns the kind other than kind whose table holds id, or ""
// when no other table does.
func kindHolding(ctx context.Context, tx *sql.Tx, kind types.Kind, id string) (types.Kind, error) {
	for _, other := range types.Kinds() {
		if other == kind {
			continue
		}
		t, _ := tableFor(other)
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name+" WHERE id = ?", id).Scan(&n); err != nil {
			return "", err
		}
		if n > 0 {
			return other, nil
		}
	}
	return "", nil
}

// Delete removes a record. Deleting an absent ID succeeds.
func (b *Backend) Delete(ctx context.Context, kind types.Kind, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}
	t, err := tableFor(kind)
	if err != nil {
		return b.opFailed("delete", kind, id, err)
	}
	if id == "" {
		return b.opFailed("delete", kind, id, types.ErrInvalidID)
	}
	if _, err := b.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id); err != nil {
		return b.opFailed("delete", kind, id, err)
	}
	return nil
}
