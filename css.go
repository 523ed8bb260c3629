package pagefold

import (
	"strings"
)

// StyleProp identifies a recognized style property. The property set is
// deliberately small: visual fidelity degrades gracefully and unknown
// properties are ignored, never an error.
type StyleProp uint8

const (
	PropFontWeight StyleProp = iota + 1
	PropFontStyle
	PropFontSize
	PropColor
	PropTextDecoration
	PropTextAlign
)

var knownProps = map[string]StyleProp{
	"font-weight":     PropFontWeight,
	"font-style":      PropFontStyle,
	"font-size":       PropFontSize,
	"color":           PropColor,
	"text-decoration": PropTextDecoration,
	"text-align":      PropTextAlign,
}

// Declaration is one recognized property-value pair.
type Declaration struct {
	Prop  StyleProp
	Value string
}

// Declarations is an ordered list of declarations; later entries override
// earlier ones for the same property.
type Declarations []Declaration

// Specificity is CSS selector specificity: (ids, classes, elements).
// Ties are broken by source order, never by selector text.
type Specificity struct {
	IDs      int
	Classes  int
	Elements int
}

func (s Specificity) less(o Specificity) bool {
	if s.IDs != o.IDs {
		return s.IDs < o.IDs
	}
	if s.Classes != o.Classes {
		return s.Classes < o.Classes
	}
	return s.Elements < o.Elements
}

// compound is one compound selector: optional tag, optional #id, classes.
type compound struct {
	tag     string // "" or "*" matches any element
	id      string
	classes []string
}

// selector is a descendant chain of compounds; the last is the subject.
type selector []compound

// rule is one parsed cascade rule.
type rule struct {
	sel   selector
	spec  Specificity
	order int
	decls Declarations
}

// Cascade is an ordered set of stylesheet rules ready for resolution.
// Multiple stylesheets append into one cascade; order is declaration order
// across all of them.
type Cascade struct {
	rules    []rule
	matchBuf []*rule // reused per-element match set
}

// parseStylesheet parses stylesheet bytes under the given budget and
// returns a cascade. Selectors using unsupported syntax and unknown
// properties are skipped silently; a budget breach is a LimitError with
// kind LimitCSSBytes.
func parseStylesheet(data []byte, budget int) (*Cascade, error) {
	c := &Cascade{}
	if err := c.appendStylesheet(data, budget); err != nil {
		return nil, err
	}
	return c, nil
}

// appendStylesheet parses one stylesheet into the cascade, continuing the
// global source order.
func (c *Cascade) appendStylesheet(data []byte, budget int) error {
	if len(data) > budget {
		return limitErr(LimitCSSBytes, len(data), budget)
	}
	css := string(stripBOM(data))
	i := 0
	for i < len(css) {
		i = skipCSSSpaceAndComments(css, i)
		if i >= len(css) {
			break
		}

		// At-rules: @import-style statements skip to ';', block at-rules
		// (@media, @font-face) skip their whole block.
		if css[i] == '@' {
			i = skipAtRule(css, i)
			continue
		}

		// Selector list runs to '{'.
		open := indexFrom(css, i, '{')
		if open < 0 {
			break // trailing garbage
		}
		selText := css[i:open]
		close_ := blockEnd(css, open)
		body := css[open+1 : close_]
		i = close_ + 1

		decls := parseDeclarations(body)
		if len(decls) == 0 {
			continue
		}
		for _, one := range strings.Split(selText, ",") {
			sel, spec, ok := parseSelector(one)
			if !ok {
				continue
			}
			c.rules = append(c.rules, rule{
				sel:   sel,
				spec:  spec,
				order: len(c.rules),
				decls: decls,
			})
		}
	}
	return nil
}

// parseInlineStyle parses a style attribute value under its own budget.
func parseInlineStyle(data []byte, budget int) (Declarations, error) {
	if len(data) > budget {
		return nil, limitErr(LimitInlineStyle, len(data), budget)
	}
	return parseDeclarations(string(data)), nil
}

// parseDeclarations splits a declaration block into recognized
// declarations, honoring string literals inside values.
func parseDeclarations(body string) Declarations {
	var decls Declarations
	i := 0
	for i < len(body) {
		i = skipCSSSpaceAndComments(body, i)
		end := declarationEnd(body, i)
		decl := strings.TrimSpace(body[i:end])
		i = end + 1
		if decl == "" {
			continue
		}
		colon := strings.IndexByte(decl, ':')
		if colon <= 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(decl[:colon]))
		value := strings.TrimSpace(decl[colon+1:])
		// "!important" changes ordering rules this resolver does not
		// implement; the declaration still applies in source order.
		value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		prop, ok := knownProps[name]
		if !ok || value == "" {
			continue
		}
		decls = append(decls, Declaration{Prop: prop, Value: strings.ToLower(value)})
	}
	return decls
}

// declarationEnd finds the ';' terminating the declaration at pos,
// skipping string literals.
func declarationEnd(body string, pos int) int {
	for i := pos; i < len(body); i++ {
		switch body[i] {
		case ';':
			return i
		case '"', '\'':
			quote := body[i]
			i++
			for i < len(body) {
				if body[i] == '\\' {
					i++
				} else if body[i] == quote {
					break
				}
				i++
			}
		}
	}
	return len(body)
}

// parseSelector parses a descendant chain of compound selectors. Selectors
// using combinators, pseudo-classes, or attribute syntax are unsupported
// and reported as not-ok so the rule is skipped.
func parseSelector(text string) (selector, Specificity, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, Specificity{}, false
	}
	var sel selector
	var spec Specificity
	for _, f := range fields {
		if strings.ContainsAny(f, ">+~:[]()") {
			return nil, Specificity{}, false
		}
		comp, ok := parseCompound(f)
		if !ok {
			return nil, Specificity{}, false
		}
		if comp.tag != "" && comp.tag != "*" {
			spec.Elements++
		}
		if comp.id != "" {
			spec.IDs++
		}
		spec.Classes += len(comp.classes)
		sel = append(sel, comp)
	}
	return sel, spec, true
}

// parseCompound parses tag, #id and .class parts of one compound selector.
func parseCompound(f string) (compound, bool) {
	var comp compound
	for len(f) > 0 {
		switch f[0] {
		case '.':
			end := compoundPartEnd(f[1:])
			if end == 0 {
				return comp, false
			}
			comp.classes = append(comp.classes, strings.ToLower(f[1:1+end]))
			f = f[1+end:]
		case '#':
			end := compoundPartEnd(f[1:])
			if end == 0 || comp.id != "" {
				return comp, false
			}
			comp.id = f[1 : 1+end]
			f = f[1+end:]
		default:
			if comp.tag != "" || comp.id != "" || len(comp.classes) > 0 {
				return comp, false
			}
			end := compoundPartEnd(f)
			if end == 0 {
				return comp, false
			}
			comp.tag = strings.ToLower(f[:end])
			f = f[end:]
		}
	}
	return comp, comp.tag != "" || comp.id != "" || len(comp.classes) > 0
}

// compoundPartEnd returns the length of the identifier prefix of f.
func compoundPartEnd(f string) int {
	for i := 0; i < len(f); i++ {
		if f[i] == '.' || f[i] == '#' {
			return i
		}
	}
	return len(f)
}

// skipCSSSpaceAndComments advances past whitespace and /* */ comments.
func skipCSSSpaceAndComments(s string, i int) int {
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r' || s[i] == ';':
			i++
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return len(s)
			}
			i += end + 4
		default:
			return i
		}
	}
	return i
}

// skipAtRule advances past an at-rule: either to the end of its ';' or
// past its brace block (nested blocks included).
func skipAtRule(s string, i int) int {
	for ; i < len(s); i++ {
		if s[i] == ';' {
			return i + 1
		}
		if s[i] == '{' {
			return blockEnd(s, i) + 1
		}
	}
	return i
}

// blockEnd returns the index of the '}' closing the block opened at open,
// tracking nesting. Unterminated blocks run to end of input.
func blockEnd(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s) - 1
}

func indexFrom(s string, from int, b byte) int {
	idx := strings.IndexByte(s[from:], b)
	if idx < 0 {
		return -1
	}
	return from + idx
}
