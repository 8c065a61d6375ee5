package spreadsheet

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/cell"
)

// recordingView keeps the last text displayed per cell and counts
// clears.
type recordingView struct {
	cleared int
	shown   map[string]string
}

func newRecordingView() *recordingView {
	return &recordingView{shown: make(map[string]string)}
}

func (v *recordingView) ClearCells() {
	v.cleared++
	v.shown = make(map[string]string)
}

func (v *recordingView) DisplayCell(cellname, text string) {
	v.shown[cellname] = text
}

func mustSetCell(t *testing.T, s *Sheet, cellname, rawText string) {
	t.Helper()
	require.NoError(t, s.SetCell(cellname, rawText), "SetCell(%s, %q)", cellname, rawText)
}

func TestSetCellArithmeticAndPropagation(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "5")
	mustSetCell(t, s, "A2", "7")
	mustSetCell(t, s, "A3", "=A1+A2")

	assert.Equal(t, 12.0, s.CalculatedValue("A3"))

	mustSetCell(t, s, "A1", "10")
	assert.Equal(t, 17.0, s.CalculatedValue("A3"))
}

func TestCircularReferenceIsRejectedAndStateUnchanged(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "=A2")

	err := s.SetCell("A2", "=A1")
	require.ErrorIs(t, err, ErrCircularReference)

	assert.Equal(t, "", s.RawText("A2"))
	assert.Equal(t, 0.0, s.CalculatedValue("A2"))
	assert.False(t, s.IsFormula("A2"))

	// A1 is untouched as well.
	assert.Equal(t, "=A2", s.RawText("A1"))
}

func TestDirectSelfReferenceIsRejected(t *testing.T) {
	s := NewSheet(nil)
	err := s.SetCell("A1", "=A1+1")
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, "", s.RawText("A1"))
}

func TestRangeCycleIsRejected(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "B1", "1")
	// B2 lies inside the summed range.
	err := s.SetCell("B2", "=SUM(B1:B3)")
	require.ErrorIs(t, err, ErrCircularReference)
	assert.Equal(t, "", s.RawText("B2"))
}

func TestRangeFunctions(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "B1", "1")
	mustSetCell(t, s, "B2", "2")
	mustSetCell(t, s, "B3", "3")

	mustSetCell(t, s, "B4", "=SUM(B1:B3)")
	assert.Equal(t, 6.0, s.CalculatedValue("B4"))

	mustSetCell(t, s, "B5", "=AVERAGE(B1:B3)")
	assert.Equal(t, 2.0, s.CalculatedValue("B5"))

	mustSetCell(t, s, "B6", "=STDEV(B1:B3)")
	assert.InDelta(t, math.Sqrt(6.0/9.0), s.CalculatedValue("B6"), 1e-12)
}

func TestRangeAggregatesFollowSourceCells(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "B1", "1")
	mustSetCell(t, s, "B2", "2")
	mustSetCell(t, s, "B3", "3")
	mustSetCell(t, s, "B4", "=SUM(B1:B3)")

	mustSetCell(t, s, "B2", "10")
	assert.Equal(t, 14.0, s.CalculatedValue("B4"))
}

func TestPrecedenceScenario(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "C1", "=2+3*4")
	assert.Equal(t, 14.0, s.CalculatedValue("C1"))
}

func TestTextCell(t *testing.T) {
	view := newRecordingView()
	s := NewSheet(view)
	mustSetCell(t, s, "D1", "hello world")

	assert.Equal(t, 0.0, s.CalculatedValue("D1"))
	assert.False(t, s.IsFormula("D1"))
	assert.Equal(t, "hello world", view.shown["D1"])
}

func TestDivisionByZeroGivesInfinity(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "E1", "=1/0")
	assert.True(t, math.IsInf(s.CalculatedValue("E1"), 1))
}

func TestDashRangeSeparator(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "1")
	mustSetCell(t, s, "A2", "2")
	mustSetCell(t, s, "A3", "3")
	mustSetCell(t, s, "F1", "=SUM(A1-A3)")
	assert.Equal(t, 6.0, s.CalculatedValue("F1"))
}

func TestEmptyRawTextMakesEmptyTextCell(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "")
	assert.Equal(t, 0.0, s.CalculatedValue("A1"))
	assert.False(t, s.IsFormula("A1"))
	assert.Equal(t, "", s.RawText("A1"))

	// No edges: editing another cell never touches A1.
	assert.Empty(t, s.cells["A1"].out)
}

func TestRawTextRoundTrip(t *testing.T) {
	s := NewSheet(nil)
	texts := []string{"5", "=A1+A2 ", " hi there", "=SUM(B1:B9)"}
	names := []string{"A1", "A2", "A3", "A4"}
	for i, cellname := range names {
		mustSetCell(t, s, cellname, texts[i])
		assert.Equal(t, texts[i], s.RawText(cellname))
	}
}

func TestIsFormula(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "5")
	mustSetCell(t, s, "A2", "words")
	mustSetCell(t, s, "A3", "=A1")
	mustSetCell(t, s, "A4", "=A1*2")
	mustSetCell(t, s, "A5", "=SUM(A1:A2)")

	assert.False(t, s.IsFormula("A1"))
	assert.False(t, s.IsFormula("A2"))
	assert.True(t, s.IsFormula("A3"))
	assert.True(t, s.IsFormula("A4"))
	assert.True(t, s.IsFormula("A5"))
	assert.False(t, s.IsFormula("NOPE9"))
}

func TestFillFromRangeColumnMajorWithUnknownCells(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "1")
	mustSetCell(t, s, "A2", "2")
	mustSetCell(t, s, "B1", "3")
	// B2 is never set.

	rng, err := cell.NewRangeFromNames("A1", "B2")
	require.NoError(t, err)

	var values []float64
	s.FillFromRange(rng, &values)
	assert.Equal(t, []float64{1, 2, 3, 0}, values)
}

func TestEdgesAreRewrittenOnEdit(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "1")
	mustSetCell(t, s, "A2", "=A1")
	assert.Equal(t, 1.0, s.CalculatedValue("A2"))

	// Replace the formula with a constant; A2 must stop following A1.
	mustSetCell(t, s, "A2", "7")
	mustSetCell(t, s, "A1", "100")
	assert.Equal(t, 7.0, s.CalculatedValue("A2"))

	// And the old cycle restriction is gone.
	mustSetCell(t, s, "A1", "=A2")
	assert.Equal(t, 7.0, s.CalculatedValue("A1"))
}

func TestTransitivePropagation(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "1")
	mustSetCell(t, s, "B1", "=A1+1")
	mustSetCell(t, s, "C1", "=B1*2")

	assert.Equal(t, 4.0, s.CalculatedValue("C1"))

	mustSetCell(t, s, "A1", "2")
	assert.Equal(t, 3.0, s.CalculatedValue("B1"))
	assert.Equal(t, 6.0, s.CalculatedValue("C1"))
}

func TestDiamondDependencyGetsFinalValues(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "1")
	mustSetCell(t, s, "B1", "=A1")
	mustSetCell(t, s, "C1", "=A1+B1")

	mustSetCell(t, s, "A1", "5")
	assert.Equal(t, 5.0, s.CalculatedValue("B1"))
	assert.Equal(t, 10.0, s.CalculatedValue("C1"))
}

func TestDisplayRule(t *testing.T) {
	view := newRecordingView()
	s := NewSheet(view)

	mustSetCell(t, s, "A1", "hello")
	mustSetCell(t, s, "A2", "5")
	mustSetCell(t, s, "A3", "=A2*2")

	assert.Equal(t, "hello", view.shown["A1"])
	assert.Equal(t, "5", view.shown["A2"])
	assert.Equal(t, "10", view.shown["A3"])

	assert.Equal(t, "hello", s.DisplayText("A1"))
	assert.Equal(t, "5", s.DisplayText("A2"))
	assert.Equal(t, "10", s.DisplayText("A3"))
	assert.Equal(t, "", s.DisplayText("Z99"))
}

func TestDependentsAreRedisplayed(t *testing.T) {
	view := newRecordingView()
	s := NewSheet(view)
	mustSetCell(t, s, "A1", "1")
	mustSetCell(t, s, "B1", "=A1*10")

	mustSetCell(t, s, "A1", "3")
	assert.Equal(t, "30", view.shown["B1"])
	assert.Equal(t, "3", view.shown["A1"])
}

func TestClear(t *testing.T) {
	view := newRecordingView()
	s := NewSheet(view)
	mustSetCell(t, s, "A1", "5")
	mustSetCell(t, s, "A2", "=A1")

	s.Clear()
	assert.Equal(t, 1, view.cleared)
	assert.Equal(t, 0.0, s.CalculatedValue("A1"))
	assert.Equal(t, "", s.RawText("A2"))
	assert.Empty(t, s.CellNames())

	// A fresh edit works and sees no stale edges.
	mustSetCell(t, s, "A2", "=A1")
	assert.Equal(t, 0.0, s.CalculatedValue("A2"))
}

func TestSaveFormat(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "5")
	mustSetCell(t, s, "A3", "=A1+1")
	mustSetCell(t, s, "B2", "hello world")

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	assert.Equal(t, "A1 5\nA3 =A1+1\nB2 hello world\n", buf.String())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "5")
	mustSetCell(t, s, "A2", "7")
	mustSetCell(t, s, "A3", "=A1+A2")
	mustSetCell(t, s, "B1", "=SUM(A1:A3)")
	mustSetCell(t, s, "C1", "note to self")
	mustSetCell(t, s, "D1", "")

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	loaded := NewSheet(nil)
	require.NoError(t, loaded.Load(bytes.NewReader(buf.Bytes())))

	for _, cellname := range []string{"A1", "A2", "A3", "B1", "C1", "D1"} {
		assert.Equal(t, s.RawText(cellname), loaded.RawText(cellname), "raw text of %s", cellname)
		assert.Equal(t, s.CalculatedValue(cellname), loaded.CalculatedValue(cellname), "value of %s", cellname)
	}
	assert.Equal(t, 24.0, loaded.CalculatedValue("B1"))
}

func TestLoadClearsExistingState(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "Z9", "999")

	require.NoError(t, s.Load(strings.NewReader("A1 1\n")))
	assert.Equal(t, "", s.RawText("Z9"))
	assert.Equal(t, 1.0, s.CalculatedValue("A1"))
}

func TestLoadForwardReferencesSettle(t *testing.T) {
	// B1 references C1 before C1 is loaded; the reactive update fixes
	// it up once C1 arrives.
	input := "B1 =C1*2\nC1 21\n"
	s := NewSheet(nil)
	require.NoError(t, s.Load(strings.NewReader(input)))
	assert.Equal(t, 42.0, s.CalculatedValue("B1"))
}

func TestLoadContinuesPastBadLines(t *testing.T) {
	input := "A1 5\nB1 =1+\nC1 7\n"
	s := NewSheet(nil)
	err := s.Load(strings.NewReader(input))
	require.Error(t, err)
	assert.Equal(t, 5.0, s.CalculatedValue("A1"))
	assert.Equal(t, 7.0, s.CalculatedValue("C1"))
	assert.Equal(t, "", s.RawText("B1"))
}

func TestFailedSetCellIsANoOp(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "A1", "1")
	mustSetCell(t, s, "A2", "=A1")

	require.Error(t, s.SetCell("A2", "=1+"))

	assert.Equal(t, "=A1", s.RawText("A2"))
	assert.Equal(t, 1.0, s.CalculatedValue("A2"))

	// Edges survived: A2 still follows A1.
	mustSetCell(t, s, "A1", "9")
	assert.Equal(t, 9.0, s.CalculatedValue("A2"))
}

func TestCellNames(t *testing.T) {
	s := NewSheet(nil)
	mustSetCell(t, s, "B2", "1")
	mustSetCell(t, s, "A1", "=B2")
	// C9 exists only as a reference target and stays unnamed.
	mustSetCell(t, s, "D1", "=C9")

	assert.Equal(t, []string{"A1", "B2", "D1"}, s.CellNames())
}
