package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Record is one row of an entity table, keyed by column name.
type Record map[string]any

// recordTables is the fixed allow-list of parent entity tables.  Table names
// are interpolated into SQL, so nothing outside this set may reach a query.
var recordTables = map[string]bool{
	"students":        true,
	"volunteers":      true,
	"donors":          true,
	"projects":        true,
	"finance_reports": true,
	"board_members":   true,
}

// RecordTables lists the allow-listed tables in a stable order.
func RecordTables() []string {
	out := make([]string, 0, len(recordTables))
	for t := range recordTables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var columnName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,63}$`)

// protected columns are owned by the store or stamped by the server.
var protectedColumns = map[string]bool{"id": true, "modified_by": true, "modified_date": true}

// RecordRepo is the generic list/detail/create/update/delete collaborator
// over the allow-listed entity tables.
type RecordRepo struct{ DB *sql.DB }

func NewRecordRepo(db *sql.DB) *RecordRepo { return &RecordRepo{DB: db} }

func safeTable(table string) (string, error) {
	if !recordTables[table] {
		return "", ErrInvalidTable
	}
	return "`" + table + "`", nil
}

// columns validates payload keys and returns them sorted.
func columns(data Record) ([]string, error) {
	cols := make([]string, 0, len(data))
	for k := range data {
		if protectedColumns[k] {
			continue
		}
		if !columnName.MatchString(k) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

// List returns rows newest first.
func (r *RecordRepo) List(ctx context.Context, table string, limit, offset int) ([]Record, error) {
	t, err := safeTable(table)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, "SELECT * FROM "+t+" ORDER BY id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Get returns a single row by id.
func (r *RecordRepo) Get(ctx context.Context, table string, id uint64) (Record, error) {
	t, err := safeTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, "SELECT * FROM "+t+" WHERE id = ? LIMIT 1", id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// Create inserts data and returns the new id.
func (r *RecordRepo) Create(ctx context.Context, table string, data Record) (uint64, error) {
	t, err := safeTable(table)
	if err != nil {
		return 0, err
	}
	cols, err := columns(data)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("%w: empty payload", ErrInvalidColumn)
	}
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = "`" + c + "`"
		args[i] = data[c]
	}
	q := "INSERT INTO " + t + " (" + strings.Join(quoted, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update applies data to the row with this id and stamps modified_by and
// modified_date.
func (r *RecordRepo) Update(ctx context.Context, table string, id uint64, data Record, modifiedBy string, at time.Time) error {
	t, err := safeTable(table)
	if err != nil {
		return err
	}
	cols, err := columns(data)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(cols)+2)
	args := make([]any, 0, len(cols)+3)
	for _, c := range cols {
		sets = append(sets, "`"+c+"` = ?")
		args = append(args, data[c])
	}
	sets = append(sets, "`modified_by` = ?", "`modified_date` = ?")
	args = append(args, modifiedBy, at, id)
	res, err := r.DB.ExecContext(ctx, "UPDATE "+t+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row with this id.
func (r *RecordRepo) Delete(ctx context.Context, table string, id uint64) error {
	t, err := safeTable(table)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM "+t+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
