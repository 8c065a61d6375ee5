package main

import (
	"fmt"
	"os"

	"tally/repl"
	"tally/spreadsheet"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "-h", "--help", "help":
		usage()
		return
	case "repl":
		repl.Start(os.Stdin, os.Stdout)
	case "serve":
		os.Exit(serveCommand(os.Args[2:]))
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  tally <command> [arguments]\n")
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  repl               start the interactive sheet shell\n")
	fmt.Fprintf(os.Stderr, "  serve [addr]       start the reactive spreadsheet server (default :8080)\n")
	fmt.Fprintf(os.Stderr, "  run <file>         load a saved sheet and print every cell\n")
}

func serveCommand(args []string) int {
	addr := ":8080"
	if len(args) > 0 {
		addr = args[0]
	}
	server := spreadsheet.NewServer()
	if err := server.Start(addr); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	return 0
}

func runCommand(args []string) int {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "run: missing sheet file\n")
		return 2
	}
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 1
	}
	defer f.Close()

	sheet := spreadsheet.NewSheet(nil)
	if err := sheet.Load(f); err != nil {
		fmt.Fprintf(os.Stderr, "run: %s: %v\n", args[0], err)
	}
	for _, cellname := range sheet.CellNames() {
		fmt.Printf("%-6s %-28q => %s\n", cellname, sheet.RawText(cellname), sheet.DisplayText(cellname))
	}
	return 0
}
