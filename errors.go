package sqlmap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// BindError reports a parameter that could not be attached to a statement.
// Nothing is executed when binding fails.
type BindError struct {
	Pos  int    // 1-based marker position, 0 when not tied to one marker
	Name string // placeholder name, empty in positional mode
	Type string // Go type of the offending value, if any
	Err  error
}

func (e *BindError) Error() string {
	var b strings.Builder
	b.WriteString("sqlmap: bind")
	if e.Pos > 0 {
		fmt.Fprintf(&b, " #%d", e.Pos)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " #{%s}", e.Name)
	}
	if e.Type != "" {
		fmt.Fprintf(&b, " (%s)", e.Type)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *BindError) Unwrap() error { return e.Err }

// ExecutionError reports a failure after binding succeeded: acquiring the
// connection, preparing, executing, reading rows or closing resources.
type ExecutionError struct {
	Op    string
	Query string
	// Code is the SQLSTATE reported by the driver, when it exposes one.
	Code string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sqlmap: %s [%s]: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("sqlmap: %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func newExecutionError(op, query string, err error) *ExecutionError {
	return &ExecutionError{Op: op, Query: query, Code: translateError(err), Err: err}
}

// translateError extracts the SQLSTATE from driver errors that carry one.
func translateError(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		return coded.SQLState()
	}
	return ""
}
