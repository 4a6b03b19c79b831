package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// upsertRow rewrites the metrics table with all rows whose round precedes
// round, plus the new row. The rewrite goes through a temp file and a rename,
// never an in-place edit.
func (s *Sink) upsertRow(flat map[string]any, round int) error {
	header, rows, err := s.readTable()
	if err != nil {
		return err
	}

	// Union of the existing columns and the new row's paths, round first.
	cols := columns(flat)
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}
	extra := make([]string, 0)
	for _, c := range header {
		if !known[c] {
			extra = append(extra, c)
			known[c] = true
		}
	}
	sort.Strings(extra)
	cols = append(cols, extra...)

	index := make(map[string]int, len(header))
	for i, c := range header {
		index[c] = i
	}

	out := make([][]string, 0, len(rows)+2)
	out = append(out, cols)
	for _, row := range rows {
		prior, err := rowRound(row, index)
		if err != nil {
			return err
		}
		if prior >= round {
			continue
		}
		remapped := make([]string, len(cols))
		for i, c := range cols {
			if j, ok := index[c]; ok && j < len(row) {
				remapped[i] = row[j]
			}
		}
		out = append(out, remapped)
	}

	newRow := make([]string, len(cols))
	for i, c := range cols {
		if v, ok := flat[c]; ok {
			newRow[i] = formatValue(v)
		}
	}
	out = append(out, newRow)

	return atomicWriteCSV(s.metricsFile, out)
}

// readTable loads the existing table. A missing file is the cold-start path;
// a present-but-unreadable one is fatal.
func (s *Sink) readTable() ([]string, [][]string, error) {
	f, err := os.Open(s.metricsFile)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metrics table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrCorruptTable, s.metricsFile, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	return records[0], records[1:], nil
}

func rowRound(row []string, index map[string]int) (int, error) {
	i, ok := index["round"]
	if !ok || i >= len(row) {
		return 0, fmt.Errorf("%w: missing round column", ErrCorruptTable)
	}
	round, err := strconv.Atoi(row[i])
	if err != nil {
		return 0, fmt.Errorf("%w: bad round value %q", ErrCorruptTable, row[i])
	}

	return round, nil
}

func (s *Sink) writeHparams(hparams map[string]any) error {
	names := make([]string, 0, len(hparams))
	for name := range hparams {
		names = append(names, name)
	}
	sort.Strings(names)

	row := make([]string, len(names))
	for i, name := range names {
		row[i] = formatValue(hparams[name])
	}

	return atomicWriteCSV(s.hparamsFile, [][]string{names, row})
}

func atomicWriteCSV(path string, records [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to sync csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to close csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to commit csv: %w", err)
	}

	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
