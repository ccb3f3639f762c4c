package script

import "strings"

// Arg is one call argument. Name is set for named arguments written as
// "name = value" or "name: value".
type Arg struct {
	Name   string
	Tokens []Token
}

// Literal returns the token of an argument made of a single string literal.
func (a Arg) Literal() (Token, bool) {
	if len(a.Tokens) == 1 && a.Tokens[0].Kind == String {
		return a.Tokens[0], true
	}
	return Token{}, false
}

// Text returns the argument as written, tokens joined without spaces.
func (a Arg) Text() string {
	return Join(a.Tokens)
}

// Chain parses the argument as an expression chain.
func (a Arg) Chain() Chain {
	return ParseChain(a.Tokens)
}

// Segment is one link of a call chain such as plugins, apply("x") or
// version "1.0".
type Segment struct {
	Name     string
	TypeArgs []Token
	Index    []Token
	Args     []Arg
	Called   bool
}

// Arg returns the named argument, or the positional argument at pos when
// name is empty.
func (s Segment) Arg(name string, pos int) (Arg, bool) {
	if name != "" {
		for _, a := range s.Args {
			if a.Name == name {
				return a, true
			}
		}
		return Arg{}, false
	}
	n := 0
	for _, a := range s.Args {
		if a.Name != "" {
			continue
		}
		if n == pos {
			return a, true
		}
		n++
	}
	return Arg{}, false
}

// Chain is a statement read as receiver segments joined by dots, Groovy
// command arguments or Kotlin infix calls, optionally followed by an
// assignment.
type Chain struct {
	Segments []Segment
	Op       string
	Value    []Token
	Rest     []Token
}

// Names returns the dotted segment names, e.g. "project.plugins.apply".
func (c Chain) Names() string {
	names := make([]string, len(c.Segments))
	for i, s := range c.Segments {
		names[i] = s.Name
	}
	return strings.Join(names, ".")
}

// Head returns the first segment name.
func (c Chain) Head() string {
	if len(c.Segments) == 0 {
		return ""
	}
	return c.Segments[0].Name
}

// Segment returns the first segment with the given name.
func (c Chain) Segment(name string) (Segment, int, bool) {
	for i, s := range c.Segments {
		if s.Name == name {
			return s, i, true
		}
	}
	return Segment{}, -1, false
}

// ParseChain reads tokens as a call chain. Tokens it cannot place are
// returned in Rest.
func ParseChain(toks []Token) Chain {
	var c Chain
	i := 0
	n := len(toks)
	for i < n {
		t := toks[i]
		if t.Kind != Ident {
			break
		}
		seg := Segment{Name: t.Text}
		i++
		if i < n && toks[i].Is("<") {
			if j := matchAngle(toks, i); j > 0 {
				seg.TypeArgs = toks[i+1 : j]
				i = j + 1
			}
		}
		if i < n && toks[i].Is("(") {
			j := matchClose(toks, i)
			seg.Args = splitArgs(toks[i+1 : j])
			seg.Called = true
			i = j + 1
		}
		if i < n && toks[i].Is("[") && !seg.Called {
			j := matchClose(toks, i)
			seg.Index = toks[i+1 : j]
			i = j + 1
		}
		if i >= n {
			c.Segments = append(c.Segments, seg)
			break
		}
		nt := toks[i]
		switch {
		case nt.Is("."):
			c.Segments = append(c.Segments, seg)
			i++
			continue
		case nt.Is("=") || nt.Is("+="):
			c.Segments = append(c.Segments, seg)
			c.Op = nt.Text
			c.Value = toks[i+1:]
			return c
		case nt.Kind == Ident && seg.Called:
			c.Segments = append(c.Segments, seg)
			continue
		case startsArg(nt):
			var args []Arg
			for i < n {
				var a Arg
				a, i = commandArg(toks, i)
				args = append(args, a)
				if i < n && toks[i].Is(",") {
					i++
					continue
				}
				break
			}
			seg.Args = append(seg.Args, args...)
			seg.Called = true
			c.Segments = append(c.Segments, seg)
			if i < n && (toks[i].Is("=") || toks[i].Is("+=")) {
				c.Op = toks[i].Text
				c.Value = toks[i+1:]
				return c
			}
			if i < n && toks[i].Kind == Ident {
				continue
			}
		default:
			c.Segments = append(c.Segments, seg)
		}
		break
	}
	if i < n {
		c.Rest = toks[i:]
	}
	return c
}

func startsArg(t Token) bool {
	switch t.Kind {
	case Ident, String, Number:
		return true
	case Punct:
		return t.Text == "[" || t.Text == "(" || t.Text == "-" || t.Text == "!"
	}
	return false
}

// commandArg reads one Groovy command argument starting at i.
func commandArg(toks []Token, i int) (Arg, int) {
	var a Arg
	n := len(toks)
	if i+1 < n && toks[i].Kind == Ident && toks[i+1].Is(":") {
		a.Name = toks[i].Text
		i += 2
	}
	start := i
	i = primary(toks, i)
	for i < n && toks[i].Kind == Punct && binaryOps[toks[i].Text] {
		i = primary(toks, i+1)
	}
	a.Tokens = toks[start:i]
	return a, i
}

var binaryOps = map[string]bool{"+": true, "-": true, "*": true, "?:": true, "==": true, "!=": true, "&&": true, "||": true, "..": true}

// primary returns the index just past the expression starting at i.
func primary(toks []Token, i int) int {
	n := len(toks)
	if i >= n {
		return i
	}
	switch t := toks[i]; {
	case t.Is("(") || t.Is("["):
		i = matchClose(toks, i) + 1
	case t.Is("-") || t.Is("!"):
		return primary(toks, i+1)
	default:
		i++
	}
	for i < n {
		switch {
		case (toks[i].Is(".") || toks[i].Is("::")) && i+1 < n && toks[i+1].Kind == Ident:
			i += 2
		case toks[i].Is("(") || toks[i].Is("["):
			i = matchClose(toks, i) + 1
		case toks[i].Is("<"):
			j := matchAngle(toks, i)
			if j < 0 {
				return i
			}
			i = j + 1
		default:
			return i
		}
	}
	return i
}

// matchClose returns the index of the bracket closing toks[i].
func matchClose(toks []Token, i int) int {
	depth := 0
	for j := i; j < len(toks); j++ {
		t := toks[j]
		if t.Kind != Punct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(toks) - 1
}

// matchAngle returns the index of the '>' closing a type argument list at
// i, or -1 when the '<' is a comparison.
func matchAngle(toks []Token, i int) int {
	depth := 0
	for j := i; j < len(toks); j++ {
		t := toks[j]
		switch {
		case t.Is("<"):
			depth++
		case t.Is(">"):
			depth--
			if depth == 0 {
				return j
			}
		case t.Kind == Ident, t.Is("."), t.Is(","), t.Is("?"), t.Is("*"):
		default:
			return -1
		}
	}
	return -1
}

func splitArgs(toks []Token) []Arg {
	if len(toks) == 0 {
		return nil
	}
	var args []Arg
	depth := 0
	start := 0
	add := func(part []Token) {
		for len(part) > 0 && part[0].Kind == Newline {
			part = part[1:]
		}
		if len(part) == 0 {
			return
		}
		a := Arg{Tokens: part}
		if len(part) > 2 && part[0].Kind == Ident && (part[1].Is("=") || part[1].Is(":")) {
			a.Name = part[0].Text
			a.Tokens = part[2:]
		}
		args = append(args, a)
	}
	for j, t := range toks {
		if t.Kind == Newline {
			continue
		}
		switch {
		case t.Is("(") || t.Is("[") || t.Is("{"):
			depth++
		case t.Is(")") || t.Is("]") || t.Is("}"):
			depth--
		case t.Is(",") && depth == 0:
			add(stripNewlines(toks[start:j]))
			start = j + 1
		}
	}
	add(stripNewlines(toks[start:]))
	return args
}

func stripNewlines(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind != Newline {
			out = append(out, t)
		}
	}
	return out
}

// Join renders tokens compactly, quoting strings.
func Join(toks []Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && t.Kind != Punct && toks[i-1].Kind != Punct {
			sb.WriteByte(' ')
		}
		switch t.Kind {
		case String:
			sb.WriteByte('"')
			sb.WriteString(t.Text)
			sb.WriteByte('"')
		case Newline:
		default:
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}
