package pagefold

import (
	"sort"
	"strconv"
	"strings"
)

// FontWeight is a two-level weight model; e-ink targets render either
// regular or bold strokes.
type FontWeight uint8

const (
	WeightNormal FontWeight = iota
	WeightBold
)

// SizeClass buckets font sizes into the discrete steps a paginator can
// measure against. Absolute units collapse into the nearest class.
type SizeClass uint8

const (
	SizeSmall SizeClass = iota
	SizeNormal
	SizeLarge
	SizeXLarge
	SizeXXLarge
)

// Alignment is block text alignment.
type Alignment uint8

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
	AlignJustify
)

// StyleSnapshot is the fully resolved style of a text run. Snapshots are
// small value types; runs carry them by value so a run stays meaningful
// after the resolver moves on.
type StyleSnapshot struct {
	Weight    FontWeight
	Italic    bool
	Size      SizeClass
	Color     uint32 // 0xRRGGBB
	Underline bool
	Strike    bool
	Align     Alignment
}

// DefaultStyle is the root style before any rule applies.
func DefaultStyle() StyleSnapshot {
	return StyleSnapshot{Size: SizeNormal, Align: AlignLeft}
}

// ElementRef identifies one open element for selector matching.
type ElementRef struct {
	Tag     string
	ID      string
	Classes []string
}

// Resolve computes the style of the innermost element on path, cascading
// tag defaults, matching stylesheet rules and inherited values from the
// outside in. Inline declarations apply last and always win.
func (c *Cascade) Resolve(path []ElementRef, inline Declarations) StyleSnapshot {
	snap := DefaultStyle()
	for i := range path {
		applyTagDefaults(&snap, path[i].Tag)
		c.applyMatching(path[:i+1], &snap)
	}
	for _, d := range inline {
		applyDeclaration(&snap, d)
	}
	return snap
}

// applyMatching applies every rule whose selector matches the innermost
// element of path, in (specificity, source order) order.
func (c *Cascade) applyMatching(path []ElementRef, snap *StyleSnapshot) {
	if c == nil || len(c.rules) == 0 {
		return
	}
	c.matchBuf = c.matchBuf[:0]
	for i := range c.rules {
		if matchSelector(c.rules[i].sel, path) {
			c.matchBuf = append(c.matchBuf, &c.rules[i])
		}
	}
	if len(c.matchBuf) == 0 {
		return
	}
	sort.SliceStable(c.matchBuf, func(a, b int) bool {
		if c.matchBuf[a].spec != c.matchBuf[b].spec {
			return c.matchBuf[a].spec.less(c.matchBuf[b].spec)
		}
		return c.matchBuf[a].order < c.matchBuf[b].order
	})
	for _, r := range c.matchBuf {
		for _, d := range r.decls {
			applyDeclaration(snap, d)
		}
	}
}

// matchSelector reports whether the descendant chain matches with the
// last compound on the innermost element of path.
func matchSelector(sel selector, path []ElementRef) bool {
	if len(sel) == 0 || len(path) == 0 {
		return false
	}
	if !matchCompound(sel[len(sel)-1], path[len(path)-1]) {
		return false
	}
	// Remaining compounds match ancestors in order, any gaps allowed.
	si := len(sel) - 2
	for pi := len(path) - 2; pi >= 0 && si >= 0; pi-- {
		if matchCompound(sel[si], path[pi]) {
			si--
		}
	}
	return si < 0
}

func matchCompound(comp compound, el ElementRef) bool {
	if comp.tag != "" && comp.tag != "*" && comp.tag != el.Tag {
		return false
	}
	if comp.id != "" && comp.id != el.ID {
		return false
	}
	for _, class := range comp.classes {
		if !hasClass(el.Classes, class) {
			return false
		}
	}
	return true
}

func hasClass(classes []string, want string) bool {
	for _, c := range classes {
		if c == want {
			return true
		}
	}
	return false
}

// applyTagDefaults seeds the snapshot with the rendering defaults of
// structural tags before stylesheet rules cascade over them.
func applyTagDefaults(snap *StyleSnapshot, tag string) {
	switch tag {
	case "h1":
		snap.Size = SizeXXLarge
		snap.Weight = WeightBold
	case "h2":
		snap.Size = SizeXLarge
		snap.Weight = WeightBold
	case "h3":
		snap.Size = SizeLarge
		snap.Weight = WeightBold
	case "h4", "h5", "h6":
		snap.Weight = WeightBold
	case "b", "strong":
		snap.Weight = WeightBold
	case "i", "em", "cite", "dfn", "var":
		snap.Italic = true
	case "u", "ins":
		snap.Underline = true
	case "s", "del", "strike":
		snap.Strike = true
	case "small", "sub", "sup":
		snap.Size = SizeSmall
	case "big":
		snap.Size = SizeLarge
	case "center":
		snap.Align = AlignCenter
	}
}

// applyDeclaration folds one declaration into the snapshot. Values the
// resolver cannot interpret leave the snapshot unchanged.
func applyDeclaration(snap *StyleSnapshot, d Declaration) {
	switch d.Prop {
	case PropFontWeight:
		switch {
		case d.Value == "bold" || d.Value == "bolder":
			snap.Weight = WeightBold
		case d.Value == "normal" || d.Value == "lighter":
			snap.Weight = WeightNormal
		default:
			if n, err := strconv.Atoi(d.Value); err == nil {
				if n >= 600 {
					snap.Weight = WeightBold
				} else {
					snap.Weight = WeightNormal
				}
			}
		}
	case PropFontStyle:
		switch d.Value {
		case "italic", "oblique":
			snap.Italic = true
		case "normal":
			snap.Italic = false
		}
	case PropFontSize:
		if sz, ok := parseFontSize(d.Value); ok {
			snap.Size = sz
		}
	case PropColor:
		if rgb, ok := parseColor(d.Value); ok {
			snap.Color = rgb
		}
	case PropTextDecoration:
		switch d.Value {
		case "none":
			snap.Underline = false
			snap.Strike = false
		default:
			for _, part := range strings.Fields(d.Value) {
				switch part {
				case "underline":
					snap.Underline = true
				case "line-through":
					snap.Strike = true
				}
			}
		}
	case PropTextAlign:
		switch d.Value {
		case "left", "start":
			snap.Align = AlignLeft
		case "center":
			snap.Align = AlignCenter
		case "right", "end":
			snap.Align = AlignRight
		case "justify":
			snap.Align = AlignJustify
		}
	}
}

// parseFontSize buckets named, relative and absolute sizes into classes.
// The bucket thresholds treat 1em / 100% / 16px / 12pt as SizeNormal.
func parseFontSize(v string) (SizeClass, bool) {
	switch v {
	case "xx-small", "x-small", "small", "smaller":
		return SizeSmall, true
	case "medium", "normal":
		return SizeNormal, true
	case "large", "larger":
		return SizeLarge, true
	case "x-large":
		return SizeXLarge, true
	case "xx-large", "xxx-large":
		return SizeXXLarge, true
	}
	scale, ok := sizeScale(v)
	if !ok {
		return SizeNormal, false
	}
	switch {
	case scale < 0.85:
		return SizeSmall, true
	case scale < 1.15:
		return SizeNormal, true
	case scale < 1.45:
		return SizeLarge, true
	case scale < 1.85:
		return SizeXLarge, true
	default:
		return SizeXXLarge, true
	}
}

// sizeScale normalizes a dimensioned size to a multiple of the base size.
func sizeScale(v string) (float64, bool) {
	type unit struct {
		suffix string
		base   float64
	}
	for _, u := range []unit{
		{"px", 16}, {"pt", 12}, {"em", 1}, {"rem", 1}, {"%", 100},
	} {
		if strings.HasSuffix(v, u.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSuffix(v, u.suffix), 64)
			if err != nil || n <= 0 {
				return 0, false
			}
			return n / u.base, true
		}
	}
	return 0, false
}

var namedColors = map[string]uint32{
	"black":   0x000000,
	"white":   0xffffff,
	"gray":    0x808080,
	"grey":    0x808080,
	"silver":  0xc0c0c0,
	"red":     0xff0000,
	"maroon":  0x800000,
	"green":   0x008000,
	"lime":    0x00ff00,
	"blue":    0x0000ff,
	"navy":    0x000080,
	"yellow":  0xffff00,
	"olive":   0x808000,
	"purple":  0x800080,
	"fuchsia": 0xff00ff,
	"aqua":    0x00ffff,
	"teal":    0x008080,
	"orange":  0xffa500,
	"brown":   0xa52a2a,
}

// parseColor handles #rgb, #rrggbb and a small named palette.
func parseColor(v string) (uint32, bool) {
	if rgb, ok := namedColors[v]; ok {
		return rgb, true
	}
	if !strings.HasPrefix(v, "#") {
		return 0, false
	}
	hex := v[1:]
	switch len(hex) {
	case 3:
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, false
		}
		r := (n >> 8) & 0xf
		g := (n >> 4) & 0xf
		b := n & 0xf
		return uint32(r<<20 | r<<16 | g<<12 | g<<8 | b<<4 | b), true
	case 6:
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	}
	return 0, false
}
