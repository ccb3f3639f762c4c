package script

import "strings"

// ApplyCall is an imperative plugin application such as
// project.plugins.apply("x") or apply plugin: 'x'. A plugin applied by
// class rather than by id has an empty PluginID and the class name in Class.
type ApplyCall struct {
	PluginID string
	Class    string
	Callee   string
}

var pluginContainers = map[string]bool{
	"plugins":          true,
	"pluginManager":    true,
	"getPlugins":       true,
	"getPluginManager": true,
}

func recognizeApply(b *Block) {
	inApply := (b.Name == "apply" || strings.HasSuffix(b.Name, ".apply")) && !hasCall(b.Header)
	for i := range b.Statements {
		s := &b.Statements[i]
		s.Apply = detectApply(s.Tokens, inApply)
	}
	for _, c := range b.Children {
		recognizeApply(c)
	}
}

func hasCall(header []Token) bool {
	for _, t := range header {
		if t.Is("(") {
			return true
		}
	}
	return false
}

// detectApply recognises the plugin application call forms in toks.
// inApplyBlock is set for statements directly inside an apply { } block,
// where plugin("x") applies x.
func detectApply(toks []Token, inApplyBlock bool) *ApplyCall {
	c := ParseChain(toks)
	if len(c.Segments) == 0 || c.Op != "" {
		return nil
	}
	if inApplyBlock && len(c.Segments) == 1 && c.Segments[0].Name == "plugin" {
		if a, ok := c.Segments[0].Arg("", 0); ok {
			return pluginRef(a, "apply.plugin")
		}
	}
	for k, seg := range c.Segments {
		if seg.Name != "apply" || !seg.Called {
			continue
		}
		callee := joinNames(c.Segments[:k+1])
		if k > 0 && pluginContainers[c.Segments[k-1].Name] {
			if a, ok := seg.Arg("", 0); ok {
				return pluginRef(a, callee)
			}
			return nil
		}
		if !receiversOnly(c.Segments[:k]) {
			return nil
		}
		if len(seg.TypeArgs) > 0 {
			return pluginRef(Arg{Tokens: seg.TypeArgs}, callee)
		}
		if a, ok := seg.Arg("plugin", 0); ok {
			return pluginRef(a, callee)
		}
		return nil
	}
	return nil
}

// receiversOnly reports whether segs are plain receivers like project or
// getProject() and not part of a plugins-block infix chain.
func receiversOnly(segs []Segment) bool {
	for _, s := range segs {
		if s.Called && s.Name != "getProject" {
			return false
		}
	}
	return true
}

func pluginRef(a Arg, callee string) *ApplyCall {
	if t, ok := a.Literal(); ok {
		if t.Text == "" {
			return &ApplyCall{Callee: callee}
		}
		return &ApplyCall{PluginID: t.Text, Callee: callee}
	}
	// class references: Foo, Foo::class, Foo::class.java, Foo.class, pkg.Foo
	var last string
	for _, t := range a.Tokens {
		if t.Kind != Ident {
			if t.Is(".") || t.Is("::") {
				continue
			}
			return nil
		}
		if t.Text == "class" || t.Text == "java" {
			break
		}
		last = t.Text
	}
	if last == "" {
		return nil
	}
	return &ApplyCall{Class: last, Callee: callee}
}

func joinNames(segs []Segment) string {
	names := make([]string, len(segs))
	for i, s := range segs {
		names[i] = s.Name
	}
	return strings.Join(names, ".")
}
