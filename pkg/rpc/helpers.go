package rpc

import "strconv"

// SDS rows are positional arrays of mixed scalars; numbers occasionally
// arrive as strings. These helpers coerce a cell without failing the row.

func cellString(row []any, idx int) string {
	if idx >= len(row) {
		return ""
	}
	if s, ok := row[idx].(string); ok {
		return s
	}
	return ""
}

func cellFloat(row []any, idx int) float64 {
	if idx >= len(row) {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func cellInt64(row []any, idx int) int64 {
	if idx >= len(row) {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
