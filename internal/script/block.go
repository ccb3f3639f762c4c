package script

import (
	"fmt"
	"sort"
	"strings"
)

// Statement is one logical line of a block body.
type Statement struct {
	Tokens []Token
	Line   int
	Seq    int
	Raw    string
	// Apply is set when the statement applies a plugin imperatively.
	Apply *ApplyCall
}

// Block is a named brace-delimited section. The file itself is the root
// block with an empty name.
type Block struct {
	Name       string
	Header     []Token
	Line       int
	Seq        int
	Statements []Statement
	Children   []*Block
}

// Node is either a statement or a child block.
type Node struct {
	Statement *Statement
	Block     *Block
}

// Nodes returns statements and child blocks merged in source order.
func (b *Block) Nodes() []Node {
	nodes := make([]Node, 0, len(b.Statements)+len(b.Children))
	for i := range b.Statements {
		nodes = append(nodes, Node{Statement: &b.Statements[i]})
	}
	for _, c := range b.Children {
		nodes = append(nodes, Node{Block: c})
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].seq() < nodes[j].seq() })
	return nodes
}

func (n Node) seq() int {
	if n.Block != nil {
		return n.Block.Seq
	}
	return n.Statement.Seq
}

// Walk visits b and every descendant block depth-first in source order.
func (b *Block) Walk(fn func(*Block)) {
	fn(b)
	for _, c := range b.Children {
		c.Walk(fn)
	}
}

// Find returns the direct children named name.
func (b *Block) Find(name string) []*Block {
	var out []*Block
	for _, c := range b.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Call parses the block header as a call chain.
func (b *Block) Call() Chain {
	return ParseChain(b.Header)
}

func (b *Block) String() string {
	return fmt.Sprintf("%s@%d{%d stmts, %d blocks}", b.Name, b.Line, len(b.Statements), len(b.Children))
}

// Extract splits a source file into its block tree. It returns a
// *ParseError when the file is structurally unreadable.
func Extract(src SourceFile) (*Block, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root := &Block{Line: 1}
	if err := p.body(root, false); err != nil {
		return nil, err
	}
	recognizeApply(root)
	if src.Dialect == Programmatic {
		keepApplies(root)
	}
	return root, nil
}

type parser struct {
	src  SourceFile
	toks []Token
	pos  int
	seq  int
}

func (p *parser) errorAt(t Token, format string, args ...any) error {
	return &ParseError{Path: p.src.Path, Line: t.Line, Col: t.Col, Reason: fmt.Sprintf(format, args...)}
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

// body reads statements and child blocks until the closing brace (when
// closing is set) or end of input.
func (p *parser) body(b *Block, closing bool) error {
	var buf []Token
	var open []Token
	flush := func() {
		if len(buf) == 0 {
			return
		}
		p.seq++
		b.Statements = append(b.Statements, Statement{
			Tokens: buf,
			Line:   buf[0].Line,
			Seq:    p.seq,
			Raw:    p.raw(buf),
		})
		buf = nil
	}

	p.skipClosureParams()
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch {
		case t.Kind == Newline:
			p.pos++
			if len(open) > 0 || len(buf) == 0 {
				continue
			}
			if continues(buf, p.peekSignificant()) {
				continue
			}
			flush()
		case t.Is(";") && len(open) == 0:
			p.pos++
			flush()
		case t.Is("(") || t.Is("["):
			open = append(open, t)
			buf = append(buf, t)
			p.pos++
		case t.Is("{") && len(open) > 0:
			open = append(open, t)
			buf = append(buf, t)
			p.pos++
		case t.Is("{"):
			p.pos++
			p.seq++
			child := &Block{Name: blockName(buf), Header: buf, Line: t.Line, Seq: p.seq}
			if len(buf) > 0 {
				child.Line = buf[0].Line
			}
			buf = nil
			if err := p.body(child, true); err != nil {
				return err
			}
			b.Children = append(b.Children, child)
		case t.Is("}") && len(open) == 0:
			if !closing {
				return p.errorAt(t, "unexpected '}'")
			}
			p.pos++
			flush()
			return nil
		case t.Is(")") || t.Is("]") || t.Is("}"):
			if len(open) == 0 {
				return p.errorAt(t, "unbalanced '%s'", t.Text)
			}
			top := open[len(open)-1]
			if closers[top.Text] != t.Text {
				return p.errorAt(t, "unbalanced '%s': '%s' opened at line %d", t.Text, top.Text, top.Line)
			}
			open = open[:len(open)-1]
			buf = append(buf, t)
			p.pos++
		default:
			buf = append(buf, t)
			p.pos++
		}
	}
	if len(open) > 0 {
		top := open[len(open)-1]
		return p.errorAt(top, "unclosed '%s'", top.Text)
	}
	if closing {
		return &ParseError{Path: p.src.Path, Line: b.Line, Reason: fmt.Sprintf("unterminated block %q", b.Name)}
	}
	flush()
	return nil
}

// skipClosureParams drops a leading "a, b ->" closure parameter list.
func (p *parser) skipClosureParams() {
	i := p.pos
	for i < len(p.toks) && p.toks[i].Kind == Newline {
		i++
	}
	start := i
	for i < len(p.toks) {
		t := p.toks[i]
		switch {
		case t.Is("->"):
			if i > start {
				p.pos = i + 1
			}
			return
		case t.Kind == Ident, t.Is(","), t.Is(":"), t.Is("<"), t.Is(">"), t.Is("."), t.Is("?"):
			i++
		default:
			return
		}
	}
}

func (p *parser) peekSignificant() *Token {
	for i := p.pos; i < len(p.toks); i++ {
		if p.toks[i].Kind != Newline {
			return &p.toks[i]
		}
	}
	return nil
}

func (p *parser) raw(buf []Token) string {
	text := p.src.Text[buf[0].Pos:buf[len(buf)-1].End]
	return strings.Join(strings.Fields(text), " ")
}

var trailingContinuation = map[string]bool{
	".": true, ",": true, "=": true, "+": true, "-": true, "*": true,
	"&&": true, "||": true, "?:": true, "+=": true, "-=": true, "::": true,
}

// continues reports whether a statement carries on past a newline.
func continues(buf []Token, next *Token) bool {
	last := buf[len(buf)-1]
	if last.Kind == Punct && trailingContinuation[last.Text] {
		return true
	}
	if next == nil {
		return false
	}
	return next.Is(".") || next.Is("?:") || next.Is("&&") || next.Is("||")
}

// blockName is the leading dotted identifier chain of a header.
func blockName(header []Token) string {
	var parts []string
	for i := 0; i < len(header); i++ {
		if header[i].Kind != Ident {
			break
		}
		parts = append(parts, header[i].Text)
		if i+1 >= len(header) || !header[i+1].Is(".") {
			break
		}
		i++
	}
	return strings.Join(parts, ".")
}

func keepApplies(b *Block) {
	kept := b.Statements[:0]
	for _, s := range b.Statements {
		if s.Apply != nil {
			kept = append(kept, s)
		}
	}
	b.Statements = kept
	for _, c := range b.Children {
		keepApplies(c)
	}
}
