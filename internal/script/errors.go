package script

import "fmt"

// ParseError reports a source that cannot be split into blocks, such as an
// unterminated block or string or an unbalanced delimiter.
type ParseError struct {
	Path   string
	Line   int
	Col    int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Col > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Reason)
	}
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
}
