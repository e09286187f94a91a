package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/docsync"
)

// parseRFC3339 parses an RFC3339 formatted timestamp string.
// Returns an error if parsing fails with a descriptive message including the field name.
func parseRFC3339(value, fieldName string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", fieldName, err)
	}
	return t, nil
}

// placeholders returns "?, ?, ?" for n bind parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// int64Args converts ids to bind arguments.
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// scanRows reads every row into a column-keyed map.
func scanRows(rows *sql.Rows) ([]docsync.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []docsync.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(docsync.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// The accessors below read loosely typed column values. SQLite columns carry
// no fixed type, so each accepts every storage class that can hold the value.

func rowString(row docsync.Row, col string) string {
	switch v := row[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func rowInt64(row docsync.Row, col string) (int64, bool) {
	switch v := row[col].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func rowID(row docsync.Row, col string) int64 {
	n, _ := rowInt64(row, col)
	return n
}

func rowIntPtr(row docsync.Row, col string) *int {
	n, ok := rowInt64(row, col)
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

func rowInt64Ptr(row docsync.Row, col string) *int64 {
	n, ok := rowInt64(row, col)
	if !ok {
		return nil
	}
	return &n
}

func rowFloat(row docsync.Row, col string) float64 {
	switch v := row[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func rowBool(row docsync.Row, col string) bool {
	n, ok := rowInt64(row, col)
	return ok && n != 0
}

// rowTime reads a timestamp stored as epoch milliseconds or RFC3339 text.
func rowTime(row docsync.Row, col string) (*time.Time, error) {
	switch v := row[col].(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case int64:
		t := time.UnixMilli(v).UTC()
		return &t, nil
	case float64:
		t := time.UnixMilli(int64(v)).UTC()
		return &t, nil
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.UnixMilli(n).UTC()
			return &t, nil
		}
		t, err := parseRFC3339(v, col)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, fmt.Errorf("failed to parse %s: unsupported type %T", col, row[col])
}

// rowJSON decodes a JSON object column. Empty and NULL columns yield nil.
func rowJSON(row docsync.Row, col string) (map[string]any, error) {
	s := rowString(row, col)
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", col, err)
	}
	return m, nil
}

// rowImage builds an image reference from prefixed join columns.
// Returns nil when the referencing column is NULL or the join found no URL.
func rowImage(row docsync.Row, idCol, prefix string) *docsync.Image {
	id, ok := rowInt64(row, idCol)
	if !ok {
		return nil
	}
	u := rowString(row, prefix+"Url")
	if u == "" {
		return nil
	}
	return &docsync.Image{
		ID:    id,
		Crawl: rowBool(row, prefix+"Crawl"),
		CRC:   rowString(row, prefix+"Crc"),
		Size:  rowInt64Ptr(row, prefix+"Size"),
		Type:  rowString(row, prefix+"Type"),
		URL:   u,
	}
}
