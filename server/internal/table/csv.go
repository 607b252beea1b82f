package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/talentmanager/talentmanager/pkg/types"
)

type kind int

const (
	kindInt kind = iota
	kindFloat
	kindString
)

// decode parses a delimited file with a header row. Every column is typed
// from its non-missing cells: all integers → int64, all numbers → float64,
// anything else → string. The id column is always string. Missing cells
// (see isMissing) decode to nil.
func decode(r io.Reader, idColumn string) ([]string, []types.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty file: missing header row")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	columns := make([]string, len(header))
	copy(columns, header)

	var cells [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) > len(columns) {
			line, _ := cr.FieldPos(0)
			return nil, nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(row), len(columns))
		}
		cells = append(cells, row)
	}

	kinds := make([]kind, len(columns))
	for i, name := range columns {
		if name == idColumn {
			kinds[i] = kindString
			continue
		}
		kinds[i] = inferKind(cells, i)
	}

	rows := make([]types.Record, len(cells))
	for r, row := range cells {
		rec := make(types.Record, len(columns))
		for i, name := range columns {
			var s string
			if i < len(row) {
				s = row[i]
			}
			rec[i] = types.Field{Name: name, Value: parseCell(s, kinds[i])}
		}
		rows[r] = rec
	}
	return columns, rows, nil
}

// missing holds the cell texts that load as an empty value. The set is the
// one common data-frame readers use by default, so exported spreadsheets with
// "NA" or "#N/A" placeholders keep their numeric columns numeric.
var missing = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isMissing(s string) bool {
	_, ok := missing[s]
	return ok
}

func inferKind(cells [][]string, col int) kind {
	k := kindInt
	for _, row := range cells {
		if col >= len(row) || isMissing(row[col]) {
			continue
		}
		s := row[col]
		if k == kindInt {
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				continue
			}
			k = kindFloat
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return kindString
		}
	}
	return k
}

func parseCell(s string, k kind) any {
	if isMissing(s) {
		return nil
	}
	switch k {
	case kindInt:
		i, _ := strconv.ParseInt(s, 10, 64)
		return i
	case kindFloat:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	default:
		return s
	}
}

// encode writes the header and every row, one cell per column. Columns a row
// lacks are written as empty cells.
func encode(columns []string, rows []types.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	line := make([]string, len(columns))
	for _, rec := range rows {
		for i, name := range columns {
			v, _ := rec.Get(name)
			line[i] = types.Text(v)
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFile replaces path with data through a temp file and rename, keeping
// the existing file mode.
func writeFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
