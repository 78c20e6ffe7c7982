// Package reader parses deck files into foreign records.
package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/conorfennell/knolimport/internal/domain"
)

// DelimitedOptions configures ReadDelimited.
type DelimitedOptions struct {
	Delimiter rune
	// Header treats the first row as column names. Columns named after a
	// scheduling attribute or "tags" are lifted out of the field list.
	Header bool
}

type column int

const (
	fieldColumn column = iota
	tagsColumn
	repsColumn
	successiveColumn
	lapsesColumn
	intervalColumn
	factorColumn
)

var namedColumns = map[string]column{
	"tags":       tagsColumn,
	"reps":       repsColumn,
	"successive": successiveColumn,
	"lapses":     lapsesColumn,
	"interval":   intervalColumn,
	"factor":     factorColumn,
}

// ReadDelimited reads CSV/TSV rows. Lines starting with '#' are comments.
func ReadDelimited(r io.Reader, opts DelimitedOptions) ([]domain.ForeignRecord, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var columns []column
	var records []domain.ForeignRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if opts.Header && columns == nil {
			columns = headerColumns(row)
			continue
		}
		if isBlank(row) {
			continue
		}
		rec, err := toRecord(row, columns)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func headerColumns(row []string) []column {
	columns := make([]column, len(row))
	for i, name := range row {
		columns[i] = namedColumns[strings.ToLower(strings.TrimSpace(name))]
	}
	return columns
}

func toRecord(row []string, columns []column) (domain.ForeignRecord, error) {
	var rec domain.ForeignRecord
	for i, value := range row {
		col := fieldColumn
		if i < len(columns) {
			col = columns[i]
		}
		if err := assign(&rec, col, value); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func assign(rec *domain.ForeignRecord, col column, value string) error {
	v := strings.TrimSpace(value)
	var err error
	switch col {
	case fieldColumn:
		rec.Fields = append(rec.Fields, value)
	case tagsColumn:
		rec.Tags = v
	case repsColumn:
		rec.Sched.Reps, err = atoi(v)
	case successiveColumn:
		rec.Sched.Successive, err = atoi(v)
	case lapsesColumn:
		rec.Sched.Lapses, err = atoi(v)
	case intervalColumn:
		rec.Sched.Interval, err = atof(v)
	case factorColumn:
		rec.Sched.Factor, err = atof(v)
	}
	return err
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

func atof(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
