package netstatus

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// tableFiles maps table names to their CSV file in a data directory.
var tableFiles = map[string]string{
	"sos":          "dc_sos_data.csv",
	"firewall":     "dc_firewall_data.csv",
	"routers":      "dc_routers_data.csv",
	"router-rules": "dc_routers_rules.csv",
	"dc":           "dc_data.csv",
}

var (
	// ErrUnknownTable is returned for a name not in TableNames.
	ErrUnknownTable = stderrors.New("unknown table")
	// ErrNoData is returned when the data directory has no file for a table.
	ErrNoData = stderrors.New("no data")
)

// TableNames returns the known table names, sorted.
func TableNames() []string {
	names := make([]string, 0, len(tableFiles))
	for n := range tableFiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Table is a CSV data table. Every row has exactly len(Columns) cells.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Column returns the index of the named column (case-insensitive), or -1.
func (t Table) Column(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// ReadTable parses CSV with a header row. Short rows are padded and long
// rows truncated to the header's width.
func ReadTable(r io.Reader, name string) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("invalid CSV for table %s: %w", name, err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("table %s has no header row", name)
	}

	t := Table{Name: name, Columns: records[0], Rows: make([][]string, 0, len(records)-1)}
	width := len(t.Columns)
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Source serves status and tables from a data directory holding the attack
// log and the CSV files. An empty directory serves no tables and an all
// normal status.
type Source struct {
	dir string
}

// NewSource reads from dir.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the data directory.
func (s *Source) Dir() string {
	return s.dir
}

// Areas returns the current area status.
func (s *Source) Areas() ([]Area, error) {
	if s.dir == "" {
		return ParseAttackLog(""), nil
	}
	return ReadAttackLog(filepath.Join(s.dir, AttackLogFile))
}

// Table loads the named table.
func (s *Source) Table(name string) (Table, error) {
	file, ok := tableFiles[name]
	if !ok {
		return Table{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownTable, name, strings.Join(TableNames(), ", "))
	}
	if s.dir == "" {
		return Table{}, fmt.Errorf("%w for table %s: no data directory configured", ErrNoData, name)
	}

	f, err := os.Open(filepath.Join(s.dir, file))
	if err != nil {
		if os.IsNotExist(err) {
			return Table{}, fmt.Errorf("%w for table %s: %s not found", ErrNoData, name, file)
		}
		return Table{}, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	return ReadTable(f, name)
}
