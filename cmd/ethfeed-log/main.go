// Command ethfeed-log is a tool for viewing and analyzing ethfeed protocol
// capture files.
//
// Capture files are created by running ethfeed-watch with the -capture
// flag, or by any program that wires a log.FileLogger into its client.
//
// Usage:
//
//	ethfeed-log <command> [flags] <file.eflog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSON or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	ethfeed-log view session.eflog
//
//	# View only wire-layer events
//	ethfeed-log view --layer wire session.eflog
//
//	# View the lifecycle of one subscription
//	ethfeed-log view --local-id 0x1f40... session.eflog
//
//	# Export to JSONL
//	ethfeed-log export --format jsonl session.eflog
//
//	# Filter by connection and save to new file
//	ethfeed-log filter --conn-id abc12345 -o filtered.eflog session.eflog
//
//	# Show statistics
//	ethfeed-log stats session.eflog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethfeed/ethfeed-go/cmd/ethfeed-log/commands"
)

const usage = `ethfeed-log - ethfeed Protocol Capture Analyzer

Usage:
  ethfeed-log <command> [flags] <file.eflog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSON or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "ethfeed-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ethfeed-log view - View capture file in human-readable format

Usage:
  ethfeed-log view [flags] <file.eflog>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (transport, wire, client)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, subscription, state, error)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	method := fs.String("method", "", "Filter by request method")
	localID := fs.String("local-id", "", "Filter by subscription local ID")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	filter, err := commands.BuildFilter(commands.FilterFlags{
		ConnID:    *connID,
		Layer:     *layer,
		Direction: *direction,
		Category:  *category,
		Method:    *method,
		LocalID:   *localID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ethfeed-log export - Export capture file to JSON or CSV format

Usage:
  ethfeed-log export [flags] <file.eflog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ethfeed-log filter - Filter capture file and write to new file

Usage:
  ethfeed-log filter [flags] <file.eflog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	method := fs.String("method", "", "Filter by request method")
	localID := fs.String("local-id", "", "Filter by subscription local ID")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (transport, wire, client)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, subscription, state, error)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	filter, err := commands.BuildFilter(commands.FilterFlags{
		ConnID:    *connID,
		Layer:     *layer,
		Direction: *direction,
		Category:  *category,
		Method:    *method,
		LocalID:   *localID,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	count, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d events to %s\n", count, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ethfeed-log stats - Show statistics about the capture file

Usage:
  ethfeed-log stats <file.eflog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
