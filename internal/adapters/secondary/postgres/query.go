package postgres

import (
	"fmt"
	"strings"
)

// whereBuilder accumulates AND conditions with positional arguments.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func (w *whereBuilder) add(column string, value interface{}) {
	w.args = append(w.args, value)
	w.conditions = append(w.conditions, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return "1=1"
	}
	return strings.Join(w.conditions, " AND ")
}

// page appends LIMIT and OFFSET placeholders. A non-positive limit means all rows.
func (w *whereBuilder) page(limit, offset int) string {
	if limit <= 0 {
		w.args = append(w.args, offset)
		return fmt.Sprintf("OFFSET $%d", len(w.args))
	}
	w.args = append(w.args, limit, offset)
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}
