package script

import (
	"fmt"
	"strings"
)

// Kind classifies a token.
type Kind int

const (
	Ident Kind = iota
	String
	Number
	Punct
	Newline
)

func (k Kind) String() string {
	switch k {
	case Ident:
		return "ident"
	case String:
		return "string"
	case Number:
		return "number"
	case Punct:
		return "punct"
	default:
		return "newline"
	}
}

// Token is a lexical unit. For strings Text holds the unquoted value and
// Interpolated reports whether it contained a $ template.
type Token struct {
	Kind         Kind
	Text         string
	Interpolated bool
	Line         int
	Col          int
	Pos          int
	End          int
}

// Is reports whether t is the punctuation p.
func (t Token) Is(p string) bool {
	return t.Kind == Punct && t.Text == p
}

// IsIdent reports whether t is the identifier name.
func (t Token) IsIdent(name string) bool {
	return t.Kind == Ident && t.Text == name
}

// two-character operators recognised as single tokens
var operators = []string{"?.", "::", "->", "==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "?:", "..", "!!"}

type lexer struct {
	src       SourceFile
	text      string
	i         int
	line      int
	lineStart int
	toks      []Token
}

// Tokenize splits a source into tokens. Comments are dropped; newlines are
// kept because they terminate statements.
func Tokenize(src SourceFile) ([]Token, error) {
	lx := &lexer{src: src, text: src.Text, line: 1}
	if strings.HasPrefix(lx.text, "#!") {
		for lx.i < len(lx.text) && lx.text[lx.i] != '\n' {
			lx.i++
		}
	}
	for lx.i < len(lx.text) {
		if err := lx.next(); err != nil {
			return nil, err
		}
	}
	return lx.toks, nil
}

func (lx *lexer) errorf(line, col int, format string, args ...any) error {
	return &ParseError{Path: lx.src.Path, Line: line, Col: col, Reason: fmt.Sprintf(format, args...)}
}

func (lx *lexer) col() int { return lx.i - lx.lineStart + 1 }

func (lx *lexer) newline() {
	lx.line++
	lx.lineStart = lx.i + 1
}

func (lx *lexer) emit(k Kind, text string, start, line, col int) {
	lx.toks = append(lx.toks, Token{Kind: k, Text: text, Line: line, Col: col, Pos: start, End: lx.i})
}

func (lx *lexer) next() error {
	c := lx.text[lx.i]
	line, col, start := lx.line, lx.col(), lx.i
	switch {
	case c == '\n':
		lx.i++
		lx.emit(Newline, "\n", start, line, col)
		lx.line++
		lx.lineStart = lx.i
		return nil
	case c == ' ' || c == '\t' || c == '\r' || c == '\f':
		lx.i++
		return nil
	case c == '/' && lx.peek(1) == '/':
		for lx.i < len(lx.text) && lx.text[lx.i] != '\n' {
			lx.i++
		}
		return nil
	case c == '/' && lx.peek(1) == '*':
		lx.i += 2
		for {
			if lx.i >= len(lx.text) {
				return lx.errorf(line, col, "unterminated comment")
			}
			if lx.text[lx.i] == '*' && lx.peek(1) == '/' {
				lx.i += 2
				return nil
			}
			if lx.text[lx.i] == '\n' {
				lx.newline()
			}
			lx.i++
		}
	case c == '"' || c == '\'':
		return lx.str(c, line, col)
	case c == '/' && lx.src.Syntax == Groovy && lx.valueExpected():
		if lx.slashy(line, col) {
			return nil
		}
	case c == '$' && lx.peek(1) == '/' && lx.src.Syntax == Groovy:
		if lx.dollarSlashy(line, col) {
			return nil
		}
	case c == '`':
		end := strings.IndexAny(lx.text[lx.i+1:], "`\n")
		if end < 0 || lx.text[lx.i+1+end] != '`' {
			return lx.errorf(line, col, "unterminated quoted identifier")
		}
		lx.i += end + 2
		lx.emit(Ident, lx.text[start+1:lx.i-1], start, line, col)
		return nil
	case isDigit(c):
		for lx.i < len(lx.text) {
			d := lx.text[lx.i]
			if isIdentChar(d) || (d == '.' && isDigit(lx.peek(1))) {
				lx.i++
				continue
			}
			break
		}
		lx.emit(Number, lx.text[start:lx.i], start, line, col)
		return nil
	case isIdentStart(c):
		for lx.i < len(lx.text) && isIdentChar(lx.text[lx.i]) {
			lx.i++
		}
		lx.emit(Ident, lx.text[start:lx.i], start, line, col)
		return nil
	}

	for _, op := range operators {
		if strings.HasPrefix(lx.text[lx.i:], op) {
			lx.i += len(op)
			if op == "?." {
				op = "."
			}
			lx.emit(Punct, op, start, line, col)
			return nil
		}
	}
	lx.i++
	lx.emit(Punct, string(c), start, line, col)
	return nil
}

func (lx *lexer) peek(n int) byte {
	if lx.i+n < len(lx.text) {
		return lx.text[lx.i+n]
	}
	return 0
}

// str lexes single, double and triple quoted strings.
func (lx *lexer) str(q byte, line, col int) error {
	start := lx.i
	triple := lx.peek(1) == q && lx.peek(2) == q
	if triple {
		lx.i += 3
	} else {
		lx.i++
	}
	var sb strings.Builder
	interpolated := false
	for {
		if lx.i >= len(lx.text) {
			return lx.errorf(line, col, "unterminated string")
		}
		c := lx.text[lx.i]
		switch {
		case triple && c == q && lx.peek(1) == q && lx.peek(2) == q:
			lx.i += 3
			lx.toks = append(lx.toks, Token{Kind: String, Text: sb.String(), Interpolated: interpolated, Line: line, Col: col, Pos: start, End: lx.i})
			return nil
		case !triple && c == q:
			lx.i++
			lx.toks = append(lx.toks, Token{Kind: String, Text: sb.String(), Interpolated: interpolated, Line: line, Col: col, Pos: start, End: lx.i})
			return nil
		case c == '\n':
			if !triple {
				return lx.errorf(line, col, "unterminated string")
			}
			sb.WriteByte(c)
			lx.newline()
			lx.i++
		case c == '\\' && !triple:
			if lx.i+1 < len(lx.text) {
				sb.WriteByte(lx.text[lx.i+1])
			}
			lx.i += 2
		case c == '$' && q == '"' && lx.peek(1) == '{':
			interpolated = true
			end, err := lx.template(line, col)
			if err != nil {
				return err
			}
			sb.WriteString(lx.text[lx.i:end])
			lx.i = end
		case c == '$' && q == '"' && isIdentStart(lx.peek(1)):
			interpolated = true
			sb.WriteByte(c)
			lx.i++
		default:
			sb.WriteByte(c)
			lx.i++
		}
	}
}

// valueExpected reports whether an operand may start at lx.i, which is
// where a Groovy '/' opens a slashy string instead of dividing.
func (lx *lexer) valueExpected() bool {
	if len(lx.toks) == 0 {
		return true
	}
	prev := lx.toks[len(lx.toks)-1]
	switch prev.Kind {
	case Newline:
		return true
	case Punct:
		return !(prev.Is(")") || prev.Is("]") || prev.Is("}"))
	case Ident:
		return slashyKeywords[prev.Text]
	}
	return false
}

var slashyKeywords = map[string]bool{"return": true, "in": true, "case": true, "assert": true, "println": true}

// slashy lexes a /.../ string. Only \/ is an escape. It leaves lx untouched
// and returns false when no closing slash follows, so the '/' is lexed as an
// operator.
func (lx *lexer) slashy(line, col int) bool {
	start := lx.i
	var sb strings.Builder
	interpolated := false
	lines := 0
	lastNL := -1
	j := lx.i + 1
	for ; j < len(lx.text); j++ {
		c := lx.text[j]
		if c == '/' {
			break
		}
		switch {
		case c == '\\' && j+1 < len(lx.text) && lx.text[j+1] == '/':
			sb.WriteByte('/')
			j++
			continue
		case c == '\n':
			lines++
			lastNL = j
		case c == '$' && j+1 < len(lx.text) && (lx.text[j+1] == '{' || isIdentStart(lx.text[j+1])):
			interpolated = true
		}
		sb.WriteByte(c)
	}
	if j >= len(lx.text) {
		return false
	}
	lx.i = j + 1
	if lines > 0 {
		lx.line += lines
		lx.lineStart = lastNL + 1
	}
	lx.toks = append(lx.toks, Token{Kind: String, Text: sb.String(), Interpolated: interpolated, Line: line, Col: col, Pos: start, End: lx.i})
	return true
}

// dollarSlashy lexes a $/.../$ string, where $$ and $/ escape $ and /.
func (lx *lexer) dollarSlashy(line, col int) bool {
	start := lx.i
	var sb strings.Builder
	interpolated := false
	lines := 0
	lastNL := -1
	for j := lx.i + 2; j < len(lx.text); j++ {
		c := lx.text[j]
		var next byte
		if j+1 < len(lx.text) {
			next = lx.text[j+1]
		}
		switch {
		case c == '/' && next == '$':
			lx.i = j + 2
			if lines > 0 {
				lx.line += lines
				lx.lineStart = lastNL + 1
			}
			lx.toks = append(lx.toks, Token{Kind: String, Text: sb.String(), Interpolated: interpolated, Line: line, Col: col, Pos: start, End: lx.i})
			return true
		case c == '$' && (next == '$' || next == '/'):
			sb.WriteByte(next)
			j++
			continue
		case c == '$' && (next == '{' || isIdentStart(next)):
			interpolated = true
		case c == '\n':
			lines++
			lastNL = j
		}
		sb.WriteByte(c)
	}
	return false
}

// template returns the offset just past the '}' closing the ${ at lx.i.
func (lx *lexer) template(line, col int) (int, error) {
	depth := 0
	for j := lx.i + 1; j < len(lx.text); j++ {
		switch c := lx.text[j]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j + 1, nil
			}
		case '"', '\'':
			k := j + 1
			for k < len(lx.text) && lx.text[k] != c && lx.text[k] != '\n' {
				if lx.text[k] == '\\' {
					k++
				}
				k++
			}
			j = k
		case '\n':
			return 0, lx.errorf(line, col, "unterminated string template")
		}
	}
	return 0, lx.errorf(line, col, "unterminated string template")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
