// Package spreadsheet owns the live cells, their expressions, and the
// dependency graph between them, and drives recomputation and display
// when a cell changes.
package spreadsheet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"tally/cell"
	"tally/expr"
	"tally/parser"
)

// ErrCircularReference reports an edit that would introduce a directed
// cycle through the edited cell.
var ErrCircularReference = errors.New("circular reference")

// vertex is one cell in the dependency graph. expr is nil when the cell
// was created only as the target of another cell's reference and has
// never been edited. An edge u -> v (v in u's out set) means u's
// expression directly references v.
type vertex struct {
	expr expr.Expr
	out  map[string]bool
	in   map[string]bool
}

func newVertex() *vertex {
	return &vertex{out: make(map[string]bool), in: make(map[string]bool)}
}

// Sheet is the cell graph and driver. It exclusively owns every
// expression tree; the View is borrowed for the duration of each call.
type Sheet struct {
	cells map[string]*vertex
	view  View
}

func NewSheet(view View) *Sheet {
	if view == nil {
		view = NopView{}
	}
	return &Sheet{cells: make(map[string]*vertex), view: view}
}

// SetCell parses rawText, rejects edits that would create a reference
// cycle, installs the new expression, rewrites the cell's outgoing
// edges, and recomputes and redisplays every dependent cell. On any
// error the sheet is left unchanged.
func (s *Sheet) SetCell(cellname, rawText string) error {
	e, err := parser.ParseExpression(rawText)
	if err != nil {
		return err
	}

	refs := referencedCells(e)
	if err := s.checkCircle(cellname, refs); err != nil {
		return err
	}

	v := s.ensureVertex(cellname)
	s.removeOutgoingEdges(cellname)
	v.expr = e
	for _, ref := range refs {
		s.ensureVertex(ref)
		v.out[ref] = true
		s.cells[ref].in[cellname] = true
	}

	if _, err := e.Eval(s); err != nil {
		return err
	}
	if err := s.updateDependents(cellname); err != nil {
		return err
	}
	s.display(cellname)
	return nil
}

// CalculatedValue returns the cached value of the named cell, or 0.0
// when the cell is unknown or empty. Referencing an empty cell is not
// an error.
func (s *Sheet) CalculatedValue(cellname string) float64 {
	v := s.cells[cellname]
	if v == nil || v.expr == nil {
		return 0.0
	}
	return v.expr.Value()
}

// RawText returns the source text the named cell was set from, or ""
// when the cell is unknown or empty.
func (s *Sheet) RawText(cellname string) string {
	v := s.cells[cellname]
	if v == nil || v.expr == nil {
		return ""
	}
	return v.expr.RawText()
}

// IsFormula reports whether the named cell holds a formula (a cell
// reference, a compound expression, or a range function).
func (s *Sheet) IsFormula(cellname string) bool {
	v := s.cells[cellname]
	if v == nil || v.expr == nil {
		return false
	}
	return v.expr.IsFormula()
}

// FillFromRange appends the current value of each cell in the range in
// column-major order, 0.0 for unknown or empty cells.
func (s *Sheet) FillFromRange(rng cell.Range, values *[]float64) {
	for _, cellname := range rng.AllCellNames() {
		*values = append(*values, s.CalculatedValue(cellname))
	}
}

// DisplayText returns the text the View shows for the named cell: the
// raw text for a text cell, the formatted value otherwise.
func (s *Sheet) DisplayText(cellname string) string {
	v := s.cells[cellname]
	if v == nil || v.expr == nil {
		return ""
	}
	if !v.expr.IsFormula() {
		if v.expr.Type() == expr.TypeText {
			return v.expr.RawText()
		}
		return expr.FormatReal(s.CalculatedValue(cellname))
	}
	return expr.FormatReal(v.expr.Value())
}

// CellNames returns the name of every cell holding an expression,
// sorted.
func (s *Sheet) CellNames() []string {
	names := make([]string, 0, len(s.cells))
	for cellname, v := range s.cells {
		if v.expr != nil {
			names = append(names, cellname)
		}
	}
	sort.Strings(names)
	return names
}

// Clear drops every expression and vertex and clears the display.
func (s *Sheet) Clear() {
	s.cells = make(map[string]*vertex)
	s.view.ClearCells()
}

// Load clears the sheet and reads cells in the persistence format: one
// cell per line, a whitespace-delimited cell name followed by the rest
// of the line as raw text. Reading continues to the end of the stream;
// per-line SetCell errors are collected and returned joined.
func (s *Sheet) Load(r io.Reader) error {
	s.Clear()
	scanner := bufio.NewScanner(r)
	var errs []error
	for scanner.Scan() {
		line := strings.TrimLeft(scanner.Text(), " \t")
		if line == "" {
			continue
		}
		cellname := line
		rawText := ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			cellname = line[:i]
			rawText = strings.TrimPrefix(line[i:], " ")
		}
		if err := s.SetCell(cellname, rawText); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cellname, err))
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Save writes every non-empty cell as "<cellname> <rawtext>\n", sorted
// by name.
func (s *Sheet) Save(w io.Writer) error {
	for _, cellname := range s.CellNames() {
		if _, err := fmt.Fprintf(w, "%s %s\n", cellname, s.cells[cellname].expr.RawText()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sheet) ensureVertex(cellname string) *vertex {
	v, ok := s.cells[cellname]
	if !ok {
		v = newVertex()
		s.cells[cellname] = v
	}
	return v
}

func (s *Sheet) removeOutgoingEdges(cellname string) {
	v := s.cells[cellname]
	for ref := range v.out {
		delete(s.cells[ref].in, cellname)
	}
	v.out = make(map[string]bool)
}

// checkCircle reports whether installing an expression with the given
// direct references at cellname would close a cycle. It runs before any
// state is touched: the would-be new edges first, then the committed
// edges of every reachable cell.
func (s *Sheet) checkCircle(cellname string, refs []string) error {
	for _, ref := range refs {
		if ref == cellname || s.reaches(ref, cellname) {
			return fmt.Errorf("%w: %s -> %s", ErrCircularReference, cellname, ref)
		}
	}
	return nil
}

// reaches walks committed outgoing edges from one cell looking for
// another, with an explicit stack.
func (s *Sheet) reaches(from, target string) bool {
	stack := []string{from}
	seen := make(map[string]bool)
	for len(stack) > 0 {
		cellname := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cellname == target {
			return true
		}
		if seen[cellname] {
			continue
		}
		seen[cellname] = true
		if v := s.cells[cellname]; v != nil {
			for ref := range v.out {
				stack = append(stack, ref)
			}
		}
	}
	return false
}

// updateDependents re-evaluates and redisplays every cell that depends
// on cellname, directly or transitively, then cellname itself. Each
// inverse neighbor is evaluated before its own dependents recurse and
// re-evaluated afterwards, so a dependent always gets a final pass once
// all its children hold new values.
func (s *Sheet) updateDependents(cellname string) error {
	for _, name := range s.inverseNeighbors(cellname) {
		nv := s.cells[name]
		if nv == nil || nv.expr == nil {
			continue
		}
		if _, err := nv.expr.Eval(s); err != nil {
			return err
		}
		s.display(name)
		if err := s.updateDependents(name); err != nil {
			return err
		}
	}
	if v := s.cells[cellname]; v != nil && v.expr != nil {
		if _, err := v.expr.Eval(s); err != nil {
			return err
		}
		s.display(cellname)
	}
	return nil
}

func (s *Sheet) inverseNeighbors(cellname string) []string {
	v := s.cells[cellname]
	if v == nil {
		return nil
	}
	names := make([]string, 0, len(v.in))
	for name := range v.in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Sheet) display(cellname string) {
	s.view.DisplayCell(cellname, s.DisplayText(cellname))
}

// referencedCells collects the cells an expression directly references,
// deduplicated, in first-occurrence order (column-major within ranges).
func referencedCells(e expr.Expr) []string {
	var refs []string
	seen := make(map[string]bool)
	add := func(cellname string) {
		if !seen[cellname] {
			seen[cellname] = true
			refs = append(refs, cellname)
		}
	}
	var walk func(expr.Expr)
	walk = func(e expr.Expr) {
		switch node := e.(type) {
		case *expr.Compound:
			walk(node.Lhs)
			walk(node.Rhs)
		case *expr.Identifier:
			add(node.Name())
		case *expr.RangeFunc:
			for _, cellname := range node.Cells().AllCellNames() {
				add(cellname)
			}
		}
	}
	walk(e)
	return refs
}
