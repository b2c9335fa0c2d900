// Package query composes parameterized read statements from an ordered list of
// predicates. Values never reach the SQL text: fragments carry '?' markers that
// are renumbered to $1..$n in emission order, so the argument slice always lines
// up with the placeholders.
package query

import (
	"strconv"
	"strings"
)

// Statement is a ready to execute SQL template with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

type fragment struct {
	text string
	args []any
}

// Builder accumulates a base SELECT, predicates, ordering and limit.
type Builder struct {
	base    fragment
	preds   []fragment
	orderBy string
	limit   *int
}

// New starts a statement. base may contain '?' markers bound to args.
func New(base string, args ...any) *Builder {
	return &Builder{base: fragment{text: base, args: args}}
}

// Where appends a predicate joined with AND.
func (b *Builder) Where(frag string, args ...any) *Builder {
	b.preds = append(b.preds, fragment{text: frag, args: args})
	return b
}

// WhereIf appends the predicate only when cond holds.
func (b *Builder) WhereIf(cond bool, frag string, args ...any) *Builder {
	if cond {
		return b.Where(frag, args...)
	}
	return b
}

// OrderBy sets the trailing ordering. It is structural text, never a value.
func (b *Builder) OrderBy(expr string) *Builder {
	b.orderBy = expr
	return b
}

// Limit binds the row limit as the last argument.
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Build emits the statement.
func (b *Builder) Build() Statement {
	var sb strings.Builder
	args := make([]any, 0, len(b.base.args)+len(b.preds)+1)
	n := 0
	write := func(f fragment) {
		for _, r := range f.text {
			if r == '?' {
				n++
				sb.WriteByte('$')
				sb.WriteString(strconv.Itoa(n))
				continue
			}
			sb.WriteRune(r)
		}
		args = append(args, f.args...)
	}

	write(b.base)
	for i, p := range b.preds {
		if i == 0 {
			sb.WriteString("\nWHERE ")
		} else {
			sb.WriteString("\n  AND ")
		}
		write(p)
	}
	if b.orderBy != "" {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit != nil {
		sb.WriteString("\n")
		write(fragment{text: "LIMIT ?", args: []any{*b.limit}})
	}
	return Statement{SQL: sb.String(), Args: args}
}

// Placeholders counts the $n markers in a statement.
func (s Statement) Placeholders() int {
	count := 0
	for i := 0; i < len(s.SQL); i++ {
		if s.SQL[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(s.SQL) && s.SQL[j] >= '0' && s.SQL[j] <= '9' {
			j++
		}
		if j > i+1 {
			count++
		}
		i = j - 1
	}
	return count
}
