package storage

import (
	"database/sql"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
)

// Args accumulates positional query arguments and hands out $n placeholders.
// Placeholders are numbered in order of first use, which both PostgreSQL and
// SQLite bind positionally.
type Args struct {
	values []any
}

// Add appends a value and returns its placeholder
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// In returns a parenthesised placeholder list for ids
func (a *Args) In(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = a.Add(id)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Values returns the accumulated arguments
func (a *Args) Values() []any {
	return a.values
}

// OrderBy validates an ordering expression ("created_at", "-created_at")
// against the allowed columns, falling back to def
func OrderBy(ordering string, allowed map[string]string, def string) string {
	desc := strings.HasPrefix(ordering, "-")
	column, ok := allowed[strings.TrimPrefix(ordering, "-")]
	if ordering == "" || !ok {
		return def
	}
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}

// FilterKind is the type a filter parameter is parsed as
type FilterKind int

const (
	FilterText FilterKind = iota
	FilterInt
	FilterTime
)

// Field maps a query parameter onto a column
type Field struct {
	Column string
	Kind   FilterKind
}

// ListOptions describes how one resource may be filtered and ordered
type ListOptions struct {
	Fields        map[string]Field
	SearchColumns []string
	Orderings     map[string]string
	DefaultOrder  string
}

// ListFilter narrows a listing query to a visibility scope plus the
// caller's equality filters, search term and ordering
type ListFilter struct {
	// All disables the account restriction
	All        bool
	AccountIDs []int64
	Equals     map[string]any
	Search     string
	Ordering   string
}

// ParseListParams reads equality filters, "search" and "ordering" from
// params. Unknown parameters are ignored; malformed values are a
// validation error naming the parameter.
func ParseListParams(params url.Values, opts ListOptions) (ListFilter, error) {
	filter := ListFilter{
		Equals:   make(map[string]any),
		Search:   strings.TrimSpace(params.Get("search")),
		Ordering: params.Get("ordering"),
	}

	invalid := make(map[string]string)
	for name, field := range opts.Fields {
		if !params.Has(name) {
			continue
		}
		raw := params.Get(name)
		switch field.Kind {
		case FilterInt:
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				invalid[name] = "Enter a whole number."
				continue
			}
			filter.Equals[field.Column] = v
		case FilterTime:
			v, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				invalid[name] = "Enter a valid date/time."
				continue
			}
			filter.Equals[field.Column] = v.UTC()
		default:
			filter.Equals[field.Column] = raw
		}
	}
	if len(invalid) > 0 {
		return ListFilter{}, apierrors.ValidationFields(invalid)
	}
	return filter, nil
}

// Where renders the WHERE clause for the filter, scoping rows by
// scopeColumn. It returns "" when nothing restricts the listing.
func (f ListFilter) Where(args *Args, scopeColumn string, opts ListOptions) string {
	var conds []string
	if !f.All {
		if len(f.AccountIDs) == 0 {
			conds = append(conds, "1 = 0")
		} else {
			conds = append(conds, scopeColumn+" IN "+args.In(f.AccountIDs))
		}
	}

	columns := make([]string, 0, len(f.Equals))
	for column := range f.Equals {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		conds = append(conds, column+" = "+args.Add(f.Equals[column]))
	}

	if f.Search != "" && len(opts.SearchColumns) > 0 {
		term := args.Add("%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%")
		var parts []string
		for _, column := range opts.SearchColumns {
			parts = append(parts, "LOWER("+column+") LIKE "+term+` ESCAPE '\'`)
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}

	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// likeEscaper makes search terms match literally inside LIKE ... ESCAPE '\'
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// OrderClause renders the ORDER BY clause, with id as the tiebreaker
func (f ListFilter) OrderClause(opts ListOptions) string {
	return " ORDER BY " + OrderBy(f.Ordering, opts.Orderings, opts.DefaultOrder) + ", id ASC"
}

// StringPtr converts a nullable string column
func StringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// Int64Ptr converts a nullable integer column
func Int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// TimePtr converts a nullable timestamp column to UTC
func TimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
