// Package tablestore is the durable backend the execution stage mutates:
// CSV tables under a data directory, one file per table, first header
// column as the primary key. Writes rewrite the whole file atomically.
package tablestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrDuplicateKey reports an insert whose key already exists. Callers treat
// it as a non-fatal conflict, not a backend failure.
var ErrDuplicateKey = errors.New("tablestore: duplicate key")

// ErrNotFound reports a missing row or table.
var ErrNotFound = errors.New("tablestore: not found")

// Row maps column name to value for one record.
type Row map[string]string

// Store manages the CSV tables in a single directory. All operations are
// safe for concurrent use.
type Store struct {
	dir string
	log *slog.Logger

	mu     sync.Mutex
	tables map[string]*sync.Mutex
}

func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("tablestore: data directory is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tablestore: create data dir: %w", err)
	}
	return &Store{dir: dir, log: log, tables: map[string]*sync.Mutex{}}, nil
}

func (s *Store) lock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tables[table]
	if !ok {
		m = &sync.Mutex{}
		s.tables[table] = m
	}
	return m
}

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

// Columns returns the table's header, in file order.
func (s *Store) Columns(table string) ([]string, error) {
	m := s.lock(table)
	m.Lock()
	defer m.Unlock()
	header, _, err := s.read(table)
	if err != nil {
		return nil, err
	}
	return header, nil
}

// Get returns the row whose key column equals key.
func (s *Store) Get(table, key string) (Row, error) {
	m := s.lock(table)
	m.Lock()
	defer m.Unlock()
	header, rows, err := s.read(table)
	if err != nil {
		return nil, err
	}
	for _, rec := range rows {
		if rec[0] == key {
			return toRow(header, rec), nil
		}
	}
	return nil, fmt.Errorf("%w: %s[%s]", ErrNotFound, table, key)
}

// Find returns every row whose column equals value. No matches is an empty
// slice, not an error.
func (s *Store) Find(table, column, value string) ([]Row, error) {
	m := s.lock(table)
	m.Lock()
	defer m.Unlock()
	header, rows, err := s.read(table)
	if err != nil {
		return nil, err
	}
	ci := columnIndex(header, column)
	if ci < 0 {
		return nil, fmt.Errorf("tablestore: table %s has no column %q", table, column)
	}
	var out []Row
	for _, rec := range rows {
		if ci < len(rec) && rec[ci] == value {
			out = append(out, toRow(header, rec))
		}
	}
	return out, nil
}

// Count returns the number of data rows in the table.
func (s *Store) Count(table string) (int, error) {
	m := s.lock(table)
	m.Lock()
	defer m.Unlock()
	_, rows, err := s.read(table)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Insert appends a row. The row's value for the key column must be non-empty
// and not already present; a clash returns ErrDuplicateKey and leaves the
// table untouched. Columns missing from the table header are created,
// missing values are written empty.
func (s *Store) Insert(table string, row Row) error {
	m := s.lock(table)
	m.Lock()
	defer m.Unlock()

	header, rows, err := s.read(table)
	if errors.Is(err, ErrNotFound) {
		header = sortedColumns(row)
		rows = nil
	} else if err != nil {
		return err
	}
	if len(header) == 0 {
		return fmt.Errorf("tablestore: table %s has no columns", table)
	}

	key := row[header[0]]
	if key == "" {
		return fmt.Errorf("tablestore: insert into %s: key column %q is empty", table, header[0])
	}
	for _, rec := range rows {
		if rec[0] == key {
			return fmt.Errorf("%w: %s[%s]", ErrDuplicateKey, table, key)
		}
	}

	header = mergeColumns(header, row)
	rec := make([]string, len(header))
	for i, col := range header {
		rec[i] = row[col]
	}
	rows = append(rows, rec)
	return s.write(table, header, rows)
}

// Update sets updateColumn to newValue on every row where searchColumn
// equals searchValue. Returns the number of rows changed; zero matches is
// not an error.
func (s *Store) Update(table, searchColumn, searchValue, updateColumn, newValue string) (int, error) {
	m := s.lock(table)
	m.Lock()
	defer m.Unlock()

	header, rows, err := s.read(table)
	if err != nil {
		return 0, err
	}
	si := columnIndex(header, searchColumn)
	ui := columnIndex(header, updateColumn)
	if si < 0 {
		return 0, fmt.Errorf("tablestore: table %s has no column %q", table, searchColumn)
	}
	if ui < 0 {
		return 0, fmt.Errorf("tablestore: table %s has no column %q", table, updateColumn)
	}

	changed := 0
	for _, rec := range rows {
		if rec[si] == searchValue && rec[ui] != newValue {
			rec[ui] = newValue
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.write(table, header, rows); err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *Store) read(table string) ([]string, [][]string, error) {
	f, err := os.Open(s.path(table))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: table %s", ErrNotFound, table)
		}
		return nil, nil, fmt.Errorf("tablestore: open %s: %w", table, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("tablestore: read %s: %w", table, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: table %s", ErrNotFound, table)
	}
	header := records[0]
	rows := records[1:]
	for i, rec := range rows {
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rows[i] = padded
		}
	}
	return header, rows, nil
}

func (s *Store) write(table string, header []string, rows [][]string) error {
	path := s.path(table)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("tablestore: write %s: %w", table, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("tablestore: write %s: %w", table, err)
	}
	for _, rec := range rows {
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("tablestore: write %s: %w", table, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("tablestore: write %s: %w", table, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("tablestore: write %s: %w", table, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("tablestore: write %s: %w", table, err)
	}
	return nil
}

// EnsureTable creates the table with the given header when it doesn't exist.
func (s *Store) EnsureTable(table string, columns []string) error {
	m := s.lock(table)
	m.Lock()
	defer m.Unlock()
	if _, _, err := s.read(table); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("tablestore: table %s needs at least one column", table)
	}
	return s.write(table, columns, nil)
}

func columnIndex(header []string, col string) int {
	for i, h := range header {
		if strings.EqualFold(h, col) {
			return i
		}
	}
	return -1
}

func toRow(header, rec []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		if i < len(rec) {
			row[col] = rec[i]
		}
	}
	return row
}

// sortedColumns builds a deterministic header for a brand-new table:
// ticket_id first when present, the rest alphabetical.
func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for i, c := range cols {
		if c == "ticket_id" && i != 0 {
			copy(cols[1:i+1], cols[:i])
			cols[0] = "ticket_id"
			break
		}
	}
	return cols
}

func mergeColumns(header []string, row Row) []string {
	extra := make([]string, 0)
	for c := range row {
		if columnIndex(header, c) < 0 {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}
