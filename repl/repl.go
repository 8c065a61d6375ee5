// Package repl is the interactive terminal driver for a sheet: lines in
// the persistence format ("A1 =SUM(B1:B3)") edit cells, colon commands
// manage the session.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"tally/cell"
	"tally/parser"
	"tally/spreadsheet"
)

const PROMPT = "tally> "

// consoleView echoes every display update of the sheet to the session
// output, indented under the command that caused it.
type consoleView struct {
	out io.Writer
}

func (v *consoleView) ClearCells() {
	fmt.Fprintf(v.out, "  (all cells cleared)\n")
}

func (v *consoleView) DisplayCell(cellname, text string) {
	fmt.Fprintf(v.out, "  %s = %s\n", cellname, text)
}

// Start begins an interactive session, in raw TTY mode when in/out are
// a terminal and line-buffered otherwise.
func Start(in io.Reader, out io.Writer) {
	var (
		tty     *ttyInput
		scanner *bufio.Scanner
	)
	if ti, ok := newTTYInput(in, out); ok {
		tty = ti
		defer tty.Close()
	} else {
		scanner = bufio.NewScanner(in)
	}

	sessionOut := out
	if tty != nil {
		// In raw TTY mode, normalize LF to CRLF so lines start in column 0.
		sessionOut = newTTYLineWriter(out)
	}

	view := &consoleView{out: sessionOut}
	sheet := spreadsheet.NewSheet(view)

	fmt.Fprintf(sessionOut, "tally — reactive spreadsheet shell\n")
	fmt.Fprintf(sessionOut, "\n")
	fmt.Fprintf(sessionOut, "Set cells with \"<cell> <text>\", e.g.  A1 5  or  A3 =A1+A2\n")
	fmt.Fprintf(sessionOut, "Commands: :help, :quit, :clear, :cells, :save <file>, :load <file>\n\n")

	for {
		var (
			line string
			ok   bool
		)
		if tty != nil {
			line, ok = tty.readLine(PROMPT)
			if !ok {
				return
			}
		} else {
			fmt.Fprint(out, PROMPT)
			if !scanner.Scan() {
				return
			}
			line = scanner.Text()
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if handleCommand(line, sessionOut, sheet) {
				return
			}
			continue
		}

		cellname, rawText, hasText := strings.Cut(line, " ")
		if !hasText {
			rawText = ""
		}
		cellname = strings.ToUpper(cellname)
		if !cell.IsValidName(cellname) {
			fmt.Fprintf(sessionOut, "not a cell name: %q (try :help)\n", cellname)
			continue
		}
		if err := sheet.SetCell(cellname, rawText); err != nil {
			fmt.Fprintf(sessionOut, "%s\n", parser.FormatParseError(err, rawText))
		}
	}
}

// handleCommand runs one colon command. Returns true when the session
// should end.
func handleCommand(line string, out io.Writer, sheet *spreadsheet.Sheet) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":quit", ":q", ":exit":
		fmt.Fprintf(out, "bye\n")
		return true
	case ":help", ":h":
		fmt.Fprintf(out, "  <cell> <text>   set a cell, e.g.  A1 5   B2 =SUM(A1:A9)\n")
		fmt.Fprintf(out, "  :cells          list every non-empty cell\n")
		fmt.Fprintf(out, "  :clear          clear the sheet\n")
		fmt.Fprintf(out, "  :save <file>    save the sheet\n")
		fmt.Fprintf(out, "  :load <file>    load a saved sheet\n")
		fmt.Fprintf(out, "  :quit           leave\n")
	case ":clear":
		sheet.Clear()
	case ":cells":
		names := sheet.CellNames()
		if len(names) == 0 {
			fmt.Fprintf(out, "  (empty sheet)\n")
		}
		for _, cellname := range names {
			fmt.Fprintf(out, "  %-6s %-24q => %s\n", cellname, sheet.RawText(cellname), sheet.DisplayText(cellname))
		}
	case ":save":
		if arg == "" {
			fmt.Fprintf(out, ":save needs a file name\n")
			break
		}
		f, err := os.Create(arg)
		if err != nil {
			fmt.Fprintf(out, "save failed: %v\n", err)
			break
		}
		err = sheet.Save(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintf(out, "save failed: %v\n", err)
		} else {
			fmt.Fprintf(out, "saved %d cells to %s\n", len(sheet.CellNames()), arg)
		}
	case ":load":
		if arg == "" {
			fmt.Fprintf(out, ":load needs a file name\n")
			break
		}
		f, err := os.Open(arg)
		if err != nil {
			fmt.Fprintf(out, "load failed: %v\n", err)
			break
		}
		err = sheet.Load(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(out, "load finished with errors: %v\n", err)
		}
	default:
		fmt.Fprintf(out, "unknown command %q (try :help)\n", cmd)
	}
	return false
}
