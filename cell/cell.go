// Package cell maps between 0-based (row, column) coordinates and
// spreadsheet-style cell names such as "A1" or "AA17", and provides the
// rectangular Range type used by range functions.
package cell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgument reports a negative coordinate or an out-of-order
// range handed to a constructor.
var ErrInvalidArgument = errors.New("invalid argument")

// functionNames holds every function allowed in a range expression.
var functionNames = map[string]bool{
	"AVERAGE": true,
	"MAX":     true,
	"MEAN":    true,
	"MEDIAN":  true,
	"MIN":     true,
	"PRODUCT": true,
	"STDEV":   true,
	"SUM":     true,
}

// IsKnownFunctionName reports whether function names a range aggregate,
// ignoring case.
func IsKnownFunctionName(function string) bool {
	return functionNames[strings.ToUpper(function)]
}

// ToCellName converts a 0-based row and column into a cell name such as
// "A1". The column letters use the same quasi base-26 scheme the rest of
// the engine expects: 0 -> "A", 25 -> "Z", 26 -> "AA", 52 -> "BA".
func ToCellName(row, column int) (string, error) {
	if row < 0 || column < 0 {
		return "", fmt.Errorf("%w: row/column cannot be negative", ErrInvalidArgument)
	}
	var colStr string
	col := column + 1
	for col > 0 {
		col--
		colStr = string(rune('A'+col%26)) + colStr
		col /= 26
	}
	return colStr + strconv.Itoa(row+1), nil
}

// ToRowColumn converts a cell name into its 0-based row and column.
// The name is trimmed and upper-cased first. ok is false when either the
// letter run or the digit run is absent or malformed.
func ToRowColumn(cellname string) (row, column int, ok bool) {
	row = toRow(cellname)
	column = toColumn(cellname)
	if row < 0 || column < 0 {
		return -1, -1, false
	}
	return row, column, true
}

// IsValidName reports whether cellname parses as a cell name.
func IsValidName(cellname string) bool {
	_, _, ok := ToRowColumn(cellname)
	return ok
}

func toColumn(cellname string) int {
	colStr := strings.TrimSpace(strings.ToUpper(cellname))
	for len(colStr) > 0 && !isAlpha(colStr[len(colStr)-1]) {
		colStr = colStr[:len(colStr)-1]
	}
	if len(colStr) == 0 || !isAlpha(colStr[0]) {
		return -1
	}
	colNum := 0
	for i := 0; i < len(colStr); i++ {
		ch := colStr[i]
		if !isAlpha(ch) {
			return -1
		}
		colNum = colNum*26 + int(ch-'A'+1)
	}
	return colNum - 1
}

func toRow(cellname string) int {
	rowStr := strings.TrimSpace(strings.ToUpper(cellname))
	for len(rowStr) > 0 && !isDigit(rowStr[0]) {
		rowStr = rowStr[1:]
	}
	n, err := strconv.Atoi(rowStr)
	if err != nil {
		return -1
	}
	return n - 1
}

func isAlpha(ch byte) bool {
	return 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
