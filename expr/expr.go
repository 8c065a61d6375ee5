// Package expr defines the expression tree a parsed cell formula turns
// into, and evaluates it against a live spreadsheet model.
//
// There are five node kinds:
//
//  1. Number     -- a numeric constant              (such as 3.14 or 42)
//  2. Text       -- a text string constant          (such as "hello")
//  3. Identifier -- a reference to another cell     (such as "A5")
//  4. Compound   -- two expressions joined by an operator ("B1+A2")
//  5. RangeFunc  -- a function aggregating a cell range  ("SUM(B2:B5)")
package expr

import (
	"errors"
	"fmt"
	"strconv"

	"tally/cell"
)

var (
	// ErrUnknownCell reports an identifier that is not a valid cell name.
	ErrUnknownCell = errors.New("unknown cell")
	// ErrIllegalOperator reports a compound operator outside + - * /.
	ErrIllegalOperator = errors.New("illegal operator")
)

type ExprType int

const (
	TypeNumber ExprType = iota
	TypeText
	TypeIdentifier
	TypeCompound
	TypeRange
)

// Model is the slice of the spreadsheet that evaluation needs: cached
// cell values by name, and the values of every cell in a range in
// column-major order.
type Model interface {
	CalculatedValue(cellname string) float64
	FillFromRange(rng cell.Range, values *[]float64)
}

// Expr is a node in an expression tree. Eval recomputes the node against
// the model and caches the result; Value returns the cached result
// without recalculating (0.0 before the first Eval, except for a Number,
// which holds its constant from construction).
type Expr interface {
	Eval(m Model) (float64, error)
	Type() ExprType
	IsFormula() bool
	Value() float64
	// RawText is the raw source the root of the tree was parsed from,
	// such as "=A2+SUM(B1:B6)*5". Empty on every non-root node.
	RawText() string
	SetRawText(rawText string)
	String() string
}

// base carries the two data fields every node has.
type base struct {
	rawText string
	value   float64
}

func (b *base) RawText() string           { return b.rawText }
func (b *base) SetRawText(rawText string) { b.rawText = rawText }
func (b *base) Value() float64            { return b.value }
func (b *base) setValue(value float64)    { b.value = value }

// Number is a numeric constant.
type Number struct {
	base
}

func NewNumber(value float64) *Number {
	n := &Number{}
	n.setValue(value)
	return n
}

func (n *Number) Eval(m Model) (float64, error) { return n.Value(), nil }
func (n *Number) Type() ExprType                { return TypeNumber }
func (n *Number) IsFormula() bool               { return false }
func (n *Number) String() string                { return FormatReal(n.Value()) }

// Text is a text string constant. It has no numeric value.
type Text struct {
	base
	text string
}

func NewText(text string) *Text {
	return &Text{text: text}
}

func (t *Text) Eval(m Model) (float64, error) { return 0.0, nil }
func (t *Text) Type() ExprType                { return TypeText }
func (t *Text) IsFormula() bool               { return false }
func (t *Text) String() string                { return t.text }

// Identifier is a reference to another cell, such as "A2".
type Identifier struct {
	base
	name string
}

func NewIdentifier(name string) *Identifier {
	return &Identifier{name: name}
}

func (i *Identifier) Name() string { return i.name }

func (i *Identifier) Eval(m Model) (float64, error) {
	if !cell.IsValidName(i.name) {
		return 0, fmt.Errorf("%w: %s is not a valid cell name", ErrUnknownCell, i.name)
	}
	result := m.CalculatedValue(i.name)
	i.setValue(result)
	return result, nil
}

func (i *Identifier) Type() ExprType  { return TypeIdentifier }
func (i *Identifier) IsFormula() bool { return true }
func (i *Identifier) String() string  { return i.name }

// Compound joins two subexpressions with a binary operator.
// Invariant: Lhs and Rhs are non-nil; the tree has no sharing.
type Compound struct {
	base
	Op  string
	Lhs Expr
	Rhs Expr
}

func NewCompound(op string, lhs, rhs Expr) *Compound {
	return &Compound{Op: op, Lhs: lhs, Rhs: rhs}
}

func (c *Compound) Eval(m Model) (float64, error) {
	switch c.Op {
	case "+", "-", "*", "/":
	default:
		return 0, fmt.Errorf("%w: %s", ErrIllegalOperator, c.Op)
	}
	// The right operand is evaluated first, then the left.
	right, err := c.Rhs.Eval(m)
	if err != nil {
		return 0, err
	}
	left, err := c.Lhs.Eval(m)
	if err != nil {
		return 0, err
	}
	var result float64
	switch c.Op {
	case "+":
		result = left + right
	case "-":
		result = left - right
	case "*":
		result = left * right
	case "/":
		result = left / right // divide by 0.0 gives +/- Inf
	}
	c.setValue(result)
	return result, nil
}

func (c *Compound) Type() ExprType  { return TypeCompound }
func (c *Compound) IsFormula() bool { return true }

func (c *Compound) String() string {
	return "(" + c.Lhs.String() + " " + c.Op + " " + c.Rhs.String() + ")"
}

// RangeFunc applies an aggregate function to a range of cell values.
type RangeFunc struct {
	base
	function string
	cells    cell.Range
}

func NewRangeFunc(function string, cells cell.Range) *RangeFunc {
	return &RangeFunc{function: normalizeFunction(function), cells: cells}
}

func (r *RangeFunc) Function() string  { return r.function }
func (r *RangeFunc) Cells() cell.Range { return r.cells }

func (r *RangeFunc) Eval(m Model) (float64, error) {
	if !cell.IsKnownFunctionName(r.function) {
		return 0, fmt.Errorf("unknown function name: %s", r.function)
	}
	var values []float64
	m.FillFromRange(r.cells, &values)
	var result float64
	switch r.function {
	case "AVERAGE", "MEAN":
		result = average(values)
	case "SUM":
		result = sum(values)
	case "PRODUCT":
		result = product(values)
	case "MAX":
		result = maxOf(values)
	case "MIN":
		result = minOf(values)
	case "MEDIAN":
		result = median(values)
	case "STDEV":
		result = stdev(values)
	}
	r.setValue(result)
	return result, nil
}

func (r *RangeFunc) Type() ExprType  { return TypeRange }
func (r *RangeFunc) IsFormula() bool { return true }

func (r *RangeFunc) String() string {
	return r.function + "(" + r.cells.String() + ")"
}

// FormatReal renders a float the way cells display it: the shortest
// form that reads back as the same value, with no trailing zeros and no
// decimal point on whole numbers. Magnitudes of one million or more, or
// below 0.0001, use exponent form ("1.234567e+06", "1e-05").
func FormatReal(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
