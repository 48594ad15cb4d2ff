package repos

import (
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// Filters narrows list queries by field name. Field names are resolved against a per-table
// allow-list before they reach SQL.
type Filters map[string]string

type UnknownFilterError struct {
	Table string
	Field string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter field %q for table %s", e.Field, e.Table)
}

type filterColumn struct {
	name    string
	numeric bool
}

func col(name string) filterColumn    { return filterColumn{name: name} }
func intCol(name string) filterColumn { return filterColumn{name: name, numeric: true} }

func applyFilters(q *gorm.DB, table string, allowed map[string]filterColumn, filters Filters) (*gorm.DB, error) {
	for field, value := range filters {
		c, ok := allowed[field]
		if !ok {
			return nil, &UnknownFilterError{Table: table, Field: field}
		}
		if c.numeric {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("filter %s.%s: %w", table, field, err)
			}
			q = q.Where(c.name+" = ?", n)
			continue
		}
		q = q.Where(c.name+" = ?", value)
	}
	return q, nil
}
