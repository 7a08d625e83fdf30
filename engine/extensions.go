package engine

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown/parser"
)

// Extensions selects optional markdown syntax. The bit values match
// sundown's MKDEXT_* values.
type Extensions uint32

const (
	ExtNoIntraEmphasis Extensions = 1 << 0
	ExtTables          Extensions = 1 << 1
	ExtFencedCode      Extensions = 1 << 2
	ExtAutolink        Extensions = 1 << 3
	ExtStrikethrough   Extensions = 1 << 4
	ExtSpaceHeaders    Extensions = 1 << 6
	ExtSuperscript     Extensions = 1 << 7
	ExtLaxSpacing      Extensions = 1 << 8
)

// DefaultMaxNesting is the nesting depth used when none is given.
const DefaultMaxNesting = 16

var extensionNames = []struct {
	ext  Extensions
	name string
}{
	{ExtNoIntraEmphasis, "no_intra_emphasis"},
	{ExtTables, "tables"},
	{ExtFencedCode, "fenced_code"},
	{ExtAutolink, "autolink"},
	{ExtStrikethrough, "strikethrough"},
	{ExtSpaceHeaders, "space_headers"},
	{ExtSuperscript, "superscript"},
	{ExtLaxSpacing, "lax_spacing"},
}

func (e Extensions) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	rest := e
	for _, n := range extensionNames {
		if e&n.ext != 0 {
			parts = append(parts, n.name)
			rest &^= n.ext
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseExtensions parses a comma separated list of extension names such as
// "tables,fenced_code". Names are case-insensitive and "all" enables every
// extension.
func ParseExtensions(s string) (Extensions, error) {
	var e Extensions
	for _, field := range strings.Split(s, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		if field == "all" {
			for _, n := range extensionNames {
				e |= n.ext
			}
			continue
		}
		found := false
		for _, n := range extensionNames {
			if n.name == field {
				e |= n.ext
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown extension %q", field)
		}
	}
	return e, nil
}

func (e Extensions) parserExtensions() parser.Extensions {
	var x parser.Extensions
	if e&ExtNoIntraEmphasis != 0 {
		x |= parser.NoIntraEmphasis
	}
	if e&ExtTables != 0 {
		x |= parser.Tables
	}
	if e&ExtFencedCode != 0 {
		x |= parser.FencedCode
	}
	if e&ExtAutolink != 0 {
		x |= parser.Autolink
	}
	if e&ExtStrikethrough != 0 {
		x |= parser.Strikethrough
	}
	if e&ExtSpaceHeaders != 0 {
		x |= parser.SpaceHeadings
	}
	if e&ExtSuperscript != 0 {
		x |= parser.SuperSubscript
	}
	if e&ExtLaxSpacing != 0 {
		x |= parser.NoEmptyLineBeforeBlock
	}
	return x
}
