package sqlmap

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Binder turns a template plus a parameter source into a Statement. It never
// interpolates values into the SQL text: every value travels as a Param.
// A Binder is immutable and safe for concurrent use.
type Binder struct {
	dialect Dialect
	config  Config
}

// Statement is a template after binding: the SQL actually prepared, the
// placeholder names in textual order (named mode only) and one Param per
// marker, in marker order.
type Statement struct {
	SQL    string
	Names  []string
	Params []Param
}

// Args returns the params as database/sql arguments.
func (s Statement) Args() []any {
	return lo.Map(s.Params, func(p Param, _ int) any { return p })
}

// scan modes
const (
	modePositional = iota
	modeNamed
)

// NewBinder returns a Binder for the given dialect. Optionally provide a
// Config; unspecified fields fall back to per-dialect defaults.
func NewBinder(dialect Dialect, cfg ...Config) *Binder {
	return &Binder{dialect: dialect, config: defaultConfig(dialect, cfg...)}
}

// Dialect returns the dialect markers are rendered for.
func (b *Binder) Dialect() Dialect {
	return b.dialect
}

// Positional binds args, in order, to the anonymous markers of query. The
// number of args must match the number of markers found outside quoted
// text and comments.
func (b *Binder) Positional(query string, args ...any) (Statement, error) {
	_, _, markers, err := scan(b.dialect, query, modePositional, b.config)
	if err != nil {
		return Statement{}, err
	}
	if markers != len(args) {
		return Statement{}, &BindError{
			Err: fmt.Errorf("%w: %d markers, %d args", ErrArity, markers, len(args)),
		}
	}
	if err := b.checkLimit(len(args)); err != nil {
		return Statement{}, err
	}

	params := make([]Param, len(args))
	for i, a := range args {
		p, err := ParamOf(a)
		if err != nil {
			return Statement{}, &BindError{Pos: i + 1, Type: fmt.Sprintf("%T", a), Err: err}
		}
		params[i] = p
	}
	st := Statement{SQL: query, Params: params}
	b.trace(st)
	return st, nil
}

// Named rewrites every #{name} placeholder of query into the dialect's
// anonymous marker and binds, in textual order, the value src reports for
// that name. Repeated names are bound once per occurrence.
func (b *Binder) Named(query string, src Fields) (Statement, error) {
	out, names, _, err := scan(b.dialect, query, modeNamed, b.config)
	if err != nil {
		return Statement{}, err
	}
	if err := b.checkLimit(len(names)); err != nil {
		return Statement{}, err
	}

	params := make([]Param, len(names))
	for i, name := range names {
		var (
			v  any
			ok bool
		)
		if src != nil {
			v, ok = src.Field(name)
		}
		if !ok {
			return Statement{}, &BindError{Pos: i + 1, Name: name, Err: ErrFieldMissing}
		}
		if a, isAmbiguous := v.(ambiguousSentinel); isAmbiguous {
			return Statement{}, &BindError{Pos: i + 1, Name: a.name, Err: ErrFieldAmbiguous}
		}
		p, err := ParamOf(v)
		if err != nil {
			return Statement{}, &BindError{Pos: i + 1, Name: name, Type: fmt.Sprintf("%T", v), Err: err}
		}
		params[i] = p
	}
	st := Statement{SQL: out, Names: names, Params: params}
	b.trace(st)
	return st, nil
}

func (b *Binder) checkLimit(n int) error {
	if b.config.MaxParams > 0 && n > b.config.MaxParams {
		return &BindError{Err: fmt.Errorf("%w: requested=%d, limit=%d", ErrTooManyParams, n, b.config.MaxParams)}
	}
	return nil
}

func (b *Binder) trace(st Statement) {
	b.config.Logger.Debug("sqlmap: bind",
		slog.String("sql", st.SQL),
		slog.Any("names", st.Names),
		slog.Any("kinds", lo.Map(st.Params, func(p Param, _ int) string { return p.Kind().String() })),
	)
}

// scan walks the template, skipping quoted strings, quoted identifiers,
// comments and dollar-quoted bodies. In named mode it rewrites #{name}
// tokens into markers and collects the names; in positional mode it leaves
// the text alone and counts the markers already present.
func scan(dialect Dialect, q string, mode int, config Config) (string, []string, int, error) {
	var buf strings.Builder
	var names []string
	if mode == modeNamed {
		est := strings.Count(q, "#{")
		names = make([]string, 0, est)
		extraPer := 1
		switch dialect {
		case Postgres, SQLServer:
			extraPer = 4
		}
		buf.Grow(len(q) + est*extraPer)
	}
	write := func(s string) {
		if mode == modeNamed {
			buf.WriteString(s)
		}
	}
	writeByte := func(c byte) {
		if mode == modeNamed {
			buf.WriteByte(c)
		}
	}

	markers := 0
	var dqTag string // active dollar-quoted tag (Postgres-like)
	escapes := false // backslash escapes inside the current quoted string

	// State machine for safe parsing through strings, comments, identifiers, etc.
	const (
		sText = iota
		sSQ   // '...'
		sDQ   // "..."
		sBT   // `...` (MySQL/SQLite)
		sBR   // [...] (SQL Server)
		sLC   // line comment -- or # (MySQL only)
		sBC   // block comment /* ... */
		sDQD  // $tag$ ... $tag$ (dollar-quoted)
	)
	state := sText

	for i := 0; i < len(q); {
		c := q[i]

		switch state {
		case sText:
			// #{name} takes precedence over MySQL's # comments.
			if c == '#' && i+1 < len(q) && q[i+1] == '{' {
				if mode == modePositional {
					i += 2
					continue
				}
				name, k, ok := readName(q, i+2)
				if !ok {
					return "", nil, 0, &BindError{Err: fmt.Errorf("%w at offset %d", ErrPlaceholderMalformed, i)}
				}
				if config.MaxNameLen > 0 && len(name) > config.MaxNameLen {
					return "", nil, 0, &BindError{Name: name, Err: fmt.Errorf("%w: %d > %d", ErrParamNameTooLong, len(name), config.MaxNameLen)}
				}
				names = append(names, name)
				writePlaceholder(&buf, dialect, len(names))
				i = k
				continue
			}

			// Enter/exit helper states while preserving the raw text
			if c == '-' && i+1 < len(q) && q[i+1] == '-' {
				state = sLC
				write("--")
				i += 2
				continue
			}
			if c == '#' && dialect == MySQL {
				state = sLC
				writeByte('#')
				i++
				continue
			}
			if c == '/' && i+1 < len(q) && q[i+1] == '*' {
				state = sBC
				write("/*")
				i += 2
				continue
			}
			if c == '\'' {
				state = sSQ
				escapes = dialect == MySQL
				writeByte(c)
				i++
				continue
			}
			// Postgres E'...' strings honor backslash escapes.
			if (c == 'E' || c == 'e') && dialect == Postgres && i+1 < len(q) && q[i+1] == '\'' &&
				(i == 0 || !isAlphaNumUnderscore(q[i-1])) {
				state = sSQ
				escapes = true
				write(q[i : i+2])
				i += 2
				continue
			}
			if c == '"' {
				state = sDQ
				escapes = dialect == MySQL
				writeByte(c)
				i++
				continue
			}
			if c == '`' && (dialect == MySQL || dialect == SQLite) {
				state = sBT
				writeByte(c)
				i++
				continue
			}
			if c == '[' && dialect == SQLServer {
				state = sBR
				writeByte(c)
				i++
				continue
			}

			// Positional markers: ?, $N, @pN
			if mode == modePositional {
				if k, n, ok := readMarker(dialect, q, i); ok {
					if n > 0 {
						markers = max(markers, n)
					} else {
						markers++
					}
					i = k
					continue
				}
			}

			if c == '$' {
				if tag, ok := readDollarTag(q[i:]); ok {
					state = sDQD
					dqTag = tag
					write(tag)
					i += len(tag)
					continue
				}
			}

			writeByte(c)
			i++

		case sSQ:
			if c == '\\' && escapes {
				writeByte(c)
				i++
				if i < len(q) {
					writeByte(q[i])
					i++
				}
				continue
			}
			writeByte(c)
			i++
			if c == '\'' {
				if i < len(q) && q[i] == '\'' {
					writeByte(q[i])
					i++
				} else {
					state = sText
				}
			}

		case sDQ:
			if c == '\\' && escapes {
				writeByte(c)
				i++
				if i < len(q) {
					writeByte(q[i])
					i++
				}
				continue
			}
			writeByte(c)
			i++
			if c == '"' {
				if i < len(q) && q[i] == '"' {
					writeByte(q[i])
					i++
				} else {
					state = sText
				}
			}

		case sBT:
			writeByte(c)
			i++
			if c == '`' {
				if i < len(q) && q[i] == '`' {
					writeByte(q[i])
					i++
				} else {
					state = sText
				}
			}

		case sBR:
			writeByte(c)
			i++
			if c == ']' {
				if i < len(q) && q[i] == ']' {
					writeByte(q[i])
					i++
				} else {
					state = sText
				}
			}

		case sLC:
			writeByte(c)
			i++
			if c == '\n' || c == '\r' {
				state = sText
			}

		case sBC:
			writeByte(c)
			i++
			if c == '*' && i < len(q) && q[i] == '/' {
				writeByte('/')
				i++
				state = sText
			}

		case sDQD:
			if dqTag == "" {
				write(q[i:])
				i = len(q)
				break
			}
			p := strings.Index(q[i:], dqTag)
			if p < 0 {
				write(q[i:])
				i = len(q)
			} else {
				write(q[i : i+p])
				write(dqTag)
				i += p + len(dqTag)
				dqTag = ""
				state = sText
			}
		}
	}

	if mode == modePositional {
		return q, nil, markers, nil
	}
	return buf.String(), names, len(names), nil
}

// writePlaceholder emits a dialect-specific placeholder token for argument idx.
func writePlaceholder(b *strings.Builder, d Dialect, idx int) {
	switch d {
	case Postgres:
		b.WriteByte('$')
		var tmp [20]byte
		n := strconv.AppendInt(tmp[:0], int64(idx), 10)
		b.Write(n)
	case SQLServer:
		b.WriteString("@p")
		var tmp [20]byte
		n := strconv.AppendInt(tmp[:0], int64(idx), 10)
		b.Write(n)
	default: // MySQL, SQLite
		b.WriteByte('?')
	}
}

// readMarker detects a positional marker at q[i]. It returns the index after
// the marker and its ordinal, or 0 for an anonymous "?" that takes the next
// slot. SQLite accepts both "?" and "?NNN".
func readMarker(d Dialect, q string, i int) (int, int, bool) {
	switch d {
	case Postgres:
		return readOrdinal(q, i, "$")
	case SQLServer:
		return readOrdinal(q, i, "@p")
	case SQLite:
		if k, n, ok := readOrdinal(q, i, "?"); ok {
			return k, n, true
		}
	}
	if q[i] == '?' {
		return i + 1, 0, true
	}
	return 0, 0, false
}

// readOrdinal reads prefix followed by a positive decimal number.
func readOrdinal(q string, i int, prefix string) (int, int, bool) {
	if !strings.HasPrefix(q[i:], prefix) {
		return 0, 0, false
	}
	j := i + len(prefix)
	k := j
	for k < len(q) && q[k] >= '0' && q[k] <= '9' {
		k++
	}
	if k == j || q[j] == '0' {
		return 0, 0, false
	}
	n, err := strconv.Atoi(q[j:k])
	if err != nil {
		return 0, 0, false
	}
	return k, n, true
}

// readName parses "identifier}" starting at i (just past "#{") and returns
// the identifier and the index after '}'.
func readName(q string, i int) (string, int, bool) {
	j := i
	for j < len(q) && isAlphaNum(q[j]) {
		j++
	}
	if j == i || j >= len(q) || q[j] != '}' {
		return "", 0, false
	}
	return q[i:j], j + 1, true
}

// isAlphaNum reports whether b is [A-Za-z0-9] .
func isAlphaNum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// isAlphaNumUnderscore reports whether b is [A-Za-z0-9_] .
func isAlphaNumUnderscore(b byte) bool {
	return isAlphaNum(b) || b == '_'
}

// readDollarTag detects a dollar-quoted opening tag ("$tag$") at the start of s.
// It returns the full tag (e.g. "$tag$") and true if found.
func readDollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	j := 1
	for j < len(s) && isAlphaNumUnderscore(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '$' {
		return s[:j+1], true
	}
	return "", false
}
