// Command pagedb starts an interactive repl over a pagedb storage
// engine instance, either backed by a file given as the first argument
// or, with no arguments, an in-memory instance.
package main

import (
	"log"
	"os"

	"github.com/pagedb/pagedb/engine"
	"github.com/pagedb/pagedb/repl"
)

func main() {
	opts := engine.Options{UseMemory: true}
	if len(os.Args) > 1 {
		opts = engine.Options{Path: os.Args[1]}
	}
	eng, err := engine.New(opts)
	if err != nil {
		log.Fatalf("pagedb: %v", err)
	}
	defer eng.Close()

	repl.New(eng, os.Stdin, os.Stdout).Run()
}
