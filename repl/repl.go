// Package repl is a line-oriented front end over the engine façade: get,
// delete, and scan commands against tables the caller has already
// created through the engine package directly, no SQL compilation. Row
// rendering is kept close to the teacher's repl/repl.go, since NULL
// formatting is orthogonal to whether a SQL layer sits above the engine.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pagedb/pagedb/engine"
	"github.com/pagedb/pagedb/types"
)

// Repl reads commands from in and writes results to out.
type Repl struct {
	eng *engine.Engine
	in  *bufio.Scanner
	out io.Writer
}

func New(eng *engine.Engine, in io.Reader, out io.Writer) *Repl {
	return &Repl{eng: eng, in: bufio.NewScanner(in), out: out}
}

// Run reads commands until .exit or EOF.
func (r *Repl) Run() {
	for {
		fmt.Fprint(r.out, "pagedb > ")
		if !r.in.Scan() {
			return
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		if line == ".exit" {
			return
		}
		if err := r.dispatch(line); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

// dispatch handles one line. The grammar is deliberately tiny since there
// is no SQL compiler backing it: "get <table> <key>", "delete <table>
// <key>", "scan <table>".
func (r *Repl) dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "get":
		if len(fields) != 3 {
			return fmt.Errorf("usage: get <table> <key>")
		}
		key := parseIntKey(fields[2])
		t, err := r.eng.Read(fields[1], key)
		if err != nil {
			return err
		}
		printRows(r.out, []types.Tuple{t})
		return nil
	case "delete":
		if len(fields) != 3 {
			return fmt.Errorf("usage: delete <table> <key>")
		}
		key := parseIntKey(fields[2])
		_, err := r.eng.Delete(fields[1], key)
		return err
	case "scan":
		if len(fields) != 2 {
			return fmt.Errorf("usage: scan <table>")
		}
		rows, err := r.eng.Scan(fields[1])
		if err != nil {
			return err
		}
		tuples := make([]types.Tuple, len(rows))
		for i, row := range rows {
			tuples[i] = row.Tuple
		}
		printRows(r.out, tuples)
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseIntKey(s string) types.Value {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return types.NewString(s)
	}
	return types.NewInteger(n)
}

func printRows(out io.Writer, rows []types.Tuple) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "(0 rows)")
		return
	}
	for _, row := range rows {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			if v.IsNull {
				cells[i] = "NULL"
			} else {
				cells[i] = v.String()
			}
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
}
