package parser

import (
	"fmt"
	"strings"

	"tally/token"
)

// ParseError is a syntax error in raw cell text, carrying the token it
// was detected at.
type ParseError struct {
	Message string
	Token   token.Token
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Message
}

// FormatParseError renders err with a caret pointing at the offending
// token in source. Falls back to the bare message when the error is not
// a ParseError or carries no position.
func FormatParseError(err error, source string) string {
	perr, ok := err.(*ParseError)
	if !ok || perr.Token.Column == 0 || source == "" {
		return err.Error()
	}
	col := perr.Token.Column
	if col > len(source)+1 {
		col = len(source) + 1
	}
	caret := strings.Repeat(" ", col-1) + "^"
	return fmt.Sprintf("%s\n  %s\n  %s", perr.Error(), source, caret)
}
