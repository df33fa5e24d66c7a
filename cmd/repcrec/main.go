package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mnohosten/repcrec/internal/coordinator"
)

func main() {
	inputPath := flag.String("input", "", "Path to the input script (default: read from stdin)")
	trace := flag.Bool("trace", true, "Print human-readable per-command trace output")
	dumpOnExit := flag.Bool("dump-on-exit", false, "Dump all site state once more after clean EOF")
	flag.Parse()

	input := os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "repcrec: failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		input = f
	}

	cfg := coordinator.Config{
		Input:      input,
		Output:     os.Stdout,
		Trace:      *trace,
		DumpOnExit: *dumpOnExit,
	}

	if err := coordinator.New(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "repcrec: %v\n", err)
		os.Exit(1)
	}
}
