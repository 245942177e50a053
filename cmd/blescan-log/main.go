// Command blescan-log views and analyzes session trail files.
//
// Trail files are written by blescan and blescan-bridge when a trail path
// is configured (-trail flag or log.trail in the configuration file).
//
// Usage:
//
//	blescan-log <command> [flags] <file.blog>
//
// Commands:
//
//	view     View trail file in human-readable format
//	export   Export trail file to JSONL or CSV format
//	filter   Filter trail file and write to new file
//	stats    Show statistics about the trail file
//
// Examples:
//
//	# View all events of one device
//	blescan-log view -address C0:FF:EE:00:00:01 session.blog
//
//	# View only requests issued to peripherals
//	blescan-log view -direction out session.blog
//
//	# Export to CSV
//	blescan-log export -format csv -o session.csv session.blog
//
//	# Keep one connection attempt
//	blescan-log filter -conn-id abc12345-... -o one.blog session.blog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/oblakr24/blescanner/cmd/blescan-log/commands"
)

const usage = `blescan-log - Session Trail Analyzer

Usage:
  blescan-log <command> [flags] <file.blog>

Commands:
  view     View trail file in human-readable format
  export   Export trail file to JSONL or CSV format
  filter   Filter trail file and write to new file
  stats    Show statistics about the trail file

Use "blescan-log <command> -help" for more information about a command.
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

// filterFlags registers the selection flags shared by view and filter.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Address, "address", "", "Filter by peripheral address")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (radio, bridge, session)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (attribute, scan, state, error, frame)")
	return opts
}

// parse parses args and returns the trail path, exiting when it is missing.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trail file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `blescan-log view - View trail file in human-readable format

Usage:
  blescan-log view [flags] <file.blog>

Flags:
`)
		fs.PrintDefaults()
	}
	opts := filterFlags(fs)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `blescan-log export - Export trail file to JSONL or CSV format

Usage:
  blescan-log export [flags] <file.blog>

Flags:
`)
		fs.PrintDefaults()
	}
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `blescan-log filter - Filter trail file and write to new file

Usage:
  blescan-log filter [flags] <file.blog>

Flags:
`)
		fs.PrintDefaults()
	}
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, *output, *opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `blescan-log stats - Show statistics about the trail file

Usage:
  blescan-log stats <file.blog>

`)
	}
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
