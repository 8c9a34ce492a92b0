package core

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// All disables a pagination bound when passed as both start and end.
const All = -1

// Completion filters tasks by their completion state.
type Completion int

const (
	CompletionAny Completion = iota
	CompletionCompleted
	CompletionPending
)

func (c Completion) String() string {
	switch c {
	case CompletionCompleted:
		return "completed"
	case CompletionPending:
		return "pending"
	default:
		return "any"
	}
}

// Matches returns true if a task with the given ended state passes the filter.
func (c Completion) Matches(ended bool) bool {
	switch c {
	case CompletionCompleted:
		return ended
	case CompletionPending:
		return !ended
	default:
		return true
	}
}

// ParseCompletion parses "", "any", "true"/"completed" and "false"/"pending".
func ParseCompletion(s string) (Completion, error) {
	switch strings.ToLower(s) {
	case "", "any", "all":
		return CompletionAny, nil
	case "true", "completed":
		return CompletionCompleted, nil
	case "false", "pending":
		return CompletionPending, nil
	}

	return CompletionAny, fmt.Errorf("invalid completion filter %q", s)
}

type OrderByField string

const (
	OrderByID             OrderByField = "id"
	OrderByName           OrderByField = "name"
	OrderByCreateDate     OrderByField = "create_date"
	OrderByDueDate        OrderByField = "due_date"
	OrderByCompletionDate OrderByField = "completion_date"
	OrderByPriority       OrderByField = "priority"
)

type OrderByColumn struct {
	Field     OrderByField
	Ascending bool
}

// OrderBy orders task instances by one or more columns. Ties are always broken by ascending id,
// so any OrderBy yields a stable order.
type OrderBy struct {
	Columns []OrderByColumn
}

func NewOrderBy(field OrderByField, ascending bool) *OrderBy {
	return &OrderBy{Columns: []OrderByColumn{{Field: field, Ascending: ascending}}}
}

// ParseOrderBy parses a comma separated list of fields, each optionally followed by " asc" or " desc",
// e.g. "due_date desc,name".
func ParseOrderBy(s string) (*OrderBy, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	ob := &OrderBy{}
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, fmt.Errorf("invalid order by clause %q", part)
		}

		field := OrderByField(strings.ToLower(fields[0]))
		if !field.valid() {
			return nil, fmt.Errorf("unknown order by field %q", fields[0])
		}

		asc := true
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				asc = false
			default:
				return nil, fmt.Errorf("invalid order by direction %q", fields[1])
			}
		}

		ob.Columns = append(ob.Columns, OrderByColumn{Field: field, Ascending: asc})
	}

	return ob, nil
}

func (f OrderByField) valid() bool {
	switch f {
	case OrderByID, OrderByName, OrderByCreateDate, OrderByDueDate, OrderByCompletionDate, OrderByPriority:
		return true
	}

	return false
}

// Compare compares two task instances. Missing dates sort before present ones.
func (ob *OrderBy) Compare(a, b *TaskInstance) int {
	if ob != nil {
		for _, col := range ob.Columns {
			c := compareField(col.Field, a, b)
			if !col.Ascending {
				c = -c
			}

			if c != 0 {
				return c
			}
		}
	}

	return cmp.Compare(a.ID, b.ID)
}

func compareField(f OrderByField, a, b *TaskInstance) int {
	switch f {
	case OrderByID:
		return cmp.Compare(a.ID, b.ID)
	case OrderByName:
		return cmp.Compare(a.Name, b.Name)
	case OrderByCreateDate:
		return a.CreatedAt.Compare(b.CreatedAt)
	case OrderByDueDate:
		return compareTimes(a.DueAt, b.DueAt)
	case OrderByCompletionDate:
		return compareTimes(a.EndedAt, b.EndedAt)
	case OrderByPriority:
		return cmp.Compare(a.Priority, b.Priority)
	}

	return 0
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	return a.Compare(*b)
}
