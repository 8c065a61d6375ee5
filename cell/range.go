package cell

import "fmt"

// Range is a rectangular block of cells identified by its top-left and
// bottom-right cell names.
type Range struct {
	startCellName string
	endCellName   string
}

// NewRange builds a range from 0-based corner coordinates. It fails when
// a coordinate is negative or the corners are out of order.
func NewRange(startRow, startColumn, endRow, endColumn int) (Range, error) {
	start, err := ToCellName(startRow, startColumn)
	if err != nil {
		return Range{}, err
	}
	end, err := ToCellName(endRow, endColumn)
	if err != nil {
		return Range{}, err
	}
	r := Range{startCellName: start, endCellName: end}
	if !r.IsValid() {
		return Range{}, fmt.Errorf("%w: invalid range: %s", ErrInvalidArgument, r)
	}
	return r, nil
}

// NewRangeFromNames builds a range from two cell names. Only the names
// are validated here; order is checked by IsValid.
func NewRangeFromNames(startCellName, endCellName string) (Range, error) {
	if !IsValidName(startCellName) {
		return Range{}, fmt.Errorf("%w: invalid start cell name: %s", ErrInvalidArgument, startCellName)
	}
	if !IsValidName(endCellName) {
		return Range{}, fmt.Errorf("%w: invalid end cell name: %s", ErrInvalidArgument, endCellName)
	}
	return Range{startCellName: startCellName, endCellName: endCellName}, nil
}

func (r Range) StartCellName() string { return r.startCellName }
func (r Range) EndCellName() string   { return r.endCellName }

func (r Range) StartRow() int {
	row, _, _ := ToRowColumn(r.startCellName)
	return row
}

func (r Range) StartColumn() int {
	_, col, _ := ToRowColumn(r.startCellName)
	return col
}

func (r Range) EndRow() int {
	row, _, _ := ToRowColumn(r.endCellName)
	return row
}

func (r Range) EndColumn() int {
	_, col, _ := ToRowColumn(r.endCellName)
	return col
}

// IsValid reports whether both corners parse and the start corner is at
// or above and left of the end corner.
func (r Range) IsValid() bool {
	startRow, startCol, ok := ToRowColumn(r.startCellName)
	if !ok {
		return false
	}
	endRow, endCol, ok := ToRowColumn(r.endCellName)
	if !ok {
		return false
	}
	return 0 <= startRow && startRow <= endRow &&
		0 <= startCol && startCol <= endCol
}

// AllCellNames enumerates every cell in the range in column-major order:
// all rows of the first column, then all rows of the next.
func (r Range) AllCellNames() []string {
	startRow, startCol := r.StartRow(), r.StartColumn()
	endRow, endCol := r.EndRow(), r.EndColumn()
	var cellnames []string
	for col := startCol; col <= endCol; col++ {
		for row := startRow; row <= endRow; row++ {
			name, err := ToCellName(row, col)
			if err != nil {
				continue
			}
			cellnames = append(cellnames, name)
		}
	}
	return cellnames
}

func (r Range) String() string {
	return r.startCellName + ":" + r.endCellName
}
