// Package driver registers a database/sql/driver.Driver for this
// module's engine, grounded on the teacher's driver/driver.go. Since
// there is no SQL compiler in scope, queries use a tiny convention —
// "table|op|args..." — documented here purely so database/sql's Conn/
// Stmt machinery has something concrete to dispatch to engine.Engine.
// This is a test/demo harness, not a query language.
package driver

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pagedb/pagedb/engine"
	"github.com/pagedb/pagedb/types"
)

func init() {
	sql.Register("pagedb", &pagedbDriver{})
}

type pagedbDriver struct{}

// Open treats name == ":memory:" as an in-memory engine, anything else
// as a file path, mirroring the teacher's driver.Open convention.
func (d *pagedbDriver) Open(name string) (driver.Conn, error) {
	eng, err := engine.New(engine.Options{
		UseMemory: name == ":memory:",
		Path:      name,
	})
	if err != nil {
		return nil, err
	}
	return &conn{eng: eng}, nil
}

type conn struct {
	eng *engine.Engine
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{eng: c.eng, query: query}, nil
}

func (c *conn) Close() error { return c.eng.Close() }

func (c *conn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("pagedb: transactions not implemented")
}

type stmt struct {
	eng   *engine.Engine
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	table, op, rest, err := parse(s.query)
	if err != nil {
		return nil, err
	}
	switch op {
	case "insert":
		vals := make([]types.Value, len(rest))
		for i, a := range rest {
			vals[i] = argToValue(a)
		}
		rid, err := s.eng.Insert(table, types.Tuple{Values: vals})
		if err != nil {
			return nil, err
		}
		return execResult{rid: int64(rid.SlotNum)}, nil
	case "delete":
		if len(rest) != 1 {
			return nil, fmt.Errorf("pagedb: delete requires one key argument")
		}
		_, err := s.eng.Delete(table, argToValue(rest[0]))
		return execResult{}, err
	default:
		return nil, fmt.Errorf("pagedb: %q is not an Exec operation", op)
	}
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	table, op, rest, err := parse(s.query)
	if err != nil {
		return nil, err
	}
	switch op {
	case "get":
		if len(rest) != 1 {
			return nil, fmt.Errorf("pagedb: get requires one key argument")
		}
		t, err := s.eng.Read(table, argToValue(rest[0]))
		if err != nil {
			return nil, err
		}
		return &rows{tuples: []types.Tuple{t}}, nil
	case "scan":
		scanned, err := s.eng.Scan(table)
		if err != nil {
			return nil, err
		}
		tuples := make([]types.Tuple, len(scanned))
		for i, r := range scanned {
			tuples[i] = r.Tuple
		}
		return &rows{tuples: tuples}, nil
	default:
		return nil, fmt.Errorf("pagedb: %q is not a Query operation", op)
	}
}

// parse splits "table|op|arg1|arg2" into its parts.
func parse(query string) (table, op string, args []string, err error) {
	parts := strings.Split(query, "|")
	if len(parts) < 2 {
		return "", "", nil, fmt.Errorf("pagedb: malformed query %q, want table|op[|args...]", query)
	}
	return parts[0], parts[1], parts[2:], nil
}

func argToValue(a string) types.Value {
	if n, err := strconv.ParseInt(a, 10, 64); err == nil {
		return types.NewInteger(n)
	}
	return types.NewString(a)
}

type execResult struct{ rid int64 }

func (r execResult) LastInsertId() (int64, error) { return r.rid, nil }
func (r execResult) RowsAffected() (int64, error) { return 1, nil }

type rows struct {
	tuples []types.Tuple
	pos    int
}

func (r *rows) Columns() []string {
	if len(r.tuples) == 0 {
		return nil
	}
	cols := make([]string, len(r.tuples[0].Values))
	for i := range cols {
		cols[i] = fmt.Sprintf("col%d", i)
	}
	return cols
}

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.tuples) {
		return io.EOF
	}
	t := r.tuples[r.pos]
	r.pos++
	for i, v := range t.Values {
		if v.IsNull {
			dest[i] = nil
		} else {
			dest[i] = v.String()
		}
	}
	return nil
}
