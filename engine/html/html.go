// Package html provides the default HTML callbacks for the engine.
//
// The callbacks expect the *Options returned by NewRenderer as their opaque
// argument. A callback moved into another table keeps working as long as it
// is called with that same Options value.
package html

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
)

// Flags tune the HTML output. The values match sundown's HTML_* flags.
type Flags uint32

const (
	SkipHTML   Flags = 1 << 0
	SkipStyle  Flags = 1 << 1
	SkipImages Flags = 1 << 2
	SkipLinks  Flags = 1 << 3
	ExpandTabs Flags = 1 << 4
	Safelink   Flags = 1 << 5
	TOC        Flags = 1 << 6
	HardWrap   Flags = 1 << 7
	UseXHTML   Flags = 1 << 8
	Escape     Flags = 1 << 9
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{SkipHTML, "skip_html"},
	{SkipStyle, "skip_style"},
	{SkipImages, "skip_images"},
	{SkipLinks, "skip_links"},
	{ExpandTabs, "expand_tabs"},
	{Safelink, "safelink"},
	{TOC, "toc"},
	{HardWrap, "hard_wrap"},
	{UseXHTML, "use_xhtml"},
	{Escape, "escape"},
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	rest := f
	for _, n := range flagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseFlags parses a comma separated list of flag names such as
// "safelink,use_xhtml".
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, field := range strings.Split(s, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		found := false
		for _, n := range flagNames {
			if n.name == field {
				f |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown html flag %q", field)
		}
	}
	return f, nil
}

// Options is the opaque state shared by the HTML callbacks.
type Options struct {
	Flags Flags

	headers atomic.Int32
}

// Reset clears per-document state. It is called before every render.
func (o *Options) Reset() { o.headers.Store(0) }

func (o *Options) xhtml() bool { return o.Flags&UseXHTML != 0 }

var defaultOptions = &Options{}

func options(opaque any) *Options {
	if o, ok := opaque.(*Options); ok && o != nil {
		return o
	}
	return defaultOptions
}

// NewRenderer returns the HTML callback table for flags together with the
// Options value that must be passed as the table's opaque argument.
func NewRenderer(flags Flags) (*engine.Callbacks, *Options) {
	cb := &engine.Callbacks{
		BlockCode:  blockCode,
		BlockQuote: blockQuote,
		BlockHTML:  blockHTML,
		Header:     header,
		HRule:      hrule,
		List:       list,
		ListItem:   listItem,
		Paragraph:  paragraph,
		Table:      table,
		TableRow:   tableRow,
		TableCell:  tableCell,

		Autolink:       autolink,
		CodeSpan:       codeSpan,
		DoubleEmphasis: doubleEmphasis,
		Emphasis:       emphasis,
		Image:          image,
		LineBreak:      lineBreak,
		Link:           link,
		RawHTMLTag:     rawHTMLTag,
		TripleEmphasis: tripleEmphasis,
		Strikethrough:  strikethrough,
		Superscript:    superscript,

		NormalText: normalText,
	}
	if flags&SkipImages != 0 {
		cb.Image = nil
	}
	if flags&SkipLinks != 0 {
		cb.Link = nil
		cb.Autolink = nil
	}
	return cb, &Options{Flags: flags}
}

// separate starts a new block on its own line.
func separate(ob *buffer.Buffer) {
	if ob.Len() > 0 {
		ob.PutByte('\n')
	}
}

func blockCode(ob *buffer.Buffer, text, lang []byte, opaque any) error {
	o := options(opaque)
	separate(ob)
	if langs := bytes.Fields(lang); len(langs) > 0 {
		ob.PutString(`<pre><code class="`)
		for i, l := range langs {
			if i > 0 {
				ob.PutByte(' ')
			}
			escapeHTML(ob, bytes.TrimPrefix(l, []byte(".")))
		}
		ob.PutString(`">`)
	} else {
		ob.PutString("<pre><code>")
	}
	if o.Flags&ExpandTabs != 0 {
		text = expandTabs(text)
	}
	escapeHTML(ob, text)
	ob.PutString("</code></pre>\n")
	return nil
}

func blockQuote(ob *buffer.Buffer, text []byte, _ any) error {
	separate(ob)
	ob.PutString("<blockquote>\n")
	ob.Put(text)
	ob.PutString("</blockquote>\n")
	return nil
}

func blockHTML(ob *buffer.Buffer, text []byte, opaque any) error {
	o := options(opaque)
	text = bytes.Trim(text, "\n")
	if len(text) == 0 || o.Flags&SkipHTML != 0 {
		return nil
	}
	separate(ob)
	if o.Flags&Escape != 0 {
		ob.PutString("<p>")
		escapeHTML(ob, text)
		ob.PutString("</p>\n")
		return nil
	}
	ob.Put(text)
	ob.PutByte('\n')
	return nil
}

func header(ob *buffer.Buffer, text []byte, level int, opaque any) error {
	o := options(opaque)
	separate(ob)
	if o.Flags&TOC != 0 {
		fmt.Fprintf(ob, `<h%d id="toc_%d">`, level, o.headers.Add(1)-1)
	} else {
		fmt.Fprintf(ob, "<h%d>", level)
	}
	ob.Put(text)
	fmt.Fprintf(ob, "</h%d>\n", level)
	return nil
}

func hrule(ob *buffer.Buffer, opaque any) error {
	separate(ob)
	if options(opaque).xhtml() {
		ob.PutString("<hr/>\n")
	} else {
		ob.PutString("<hr>\n")
	}
	return nil
}

func list(ob *buffer.Buffer, text []byte, flags int, _ any) error {
	separate(ob)
	tag := "ul"
	if flags&engine.ListOrdered != 0 {
		tag = "ol"
	}
	fmt.Fprintf(ob, "<%s>\n", tag)
	ob.Put(text)
	fmt.Fprintf(ob, "</%s>\n", tag)
	return nil
}

func listItem(ob *buffer.Buffer, text []byte, _ int, _ any) error {
	ob.PutString("<li>")
	ob.Put(bytes.TrimRight(text, "\n"))
	ob.PutString("</li>\n")
	return nil
}

func paragraph(ob *buffer.Buffer, text []byte, opaque any) error {
	o := options(opaque)
	separate(ob)
	text = bytes.TrimLeft(text, " \t\n")
	if len(text) == 0 {
		return nil
	}
	ob.PutString("<p>")
	if o.Flags&HardWrap != 0 {
		lines := bytes.Split(bytes.TrimRight(text, "\n"), []byte("\n"))
		for i, line := range lines {
			if i > 0 {
				if _, err := lineBreak(ob, opaque); err != nil {
					return err
				}
			}
			ob.Put(line)
		}
	} else {
		ob.Put(text)
	}
	ob.PutString("</p>\n")
	return nil
}

func table(ob *buffer.Buffer, head, body []byte, _ any) error {
	separate(ob)
	ob.PutString("<table><thead>\n")
	ob.Put(head)
	ob.PutString("</thead><tbody>\n")
	ob.Put(body)
	ob.PutString("</tbody></table>\n")
	return nil
}

func tableRow(ob *buffer.Buffer, text []byte, _ any) error {
	ob.PutString("<tr>\n")
	ob.Put(text)
	ob.PutString("</tr>\n")
	return nil
}

func tableCell(ob *buffer.Buffer, text []byte, flags int, _ any) error {
	tag := "td"
	if flags&engine.TableHeader != 0 {
		tag = "th"
	}
	ob.PutString("<" + tag)
	switch flags & engine.TableAlignMask {
	case engine.TableAlignCenter:
		ob.PutString(` align="center">`)
	case engine.TableAlignLeft:
		ob.PutString(` align="left">`)
	case engine.TableAlignRight:
		ob.PutString(` align="right">`)
	default:
		ob.PutByte('>')
	}
	ob.Put(text)
	ob.PutString("</" + tag + ">\n")
	return nil
}

func autolink(ob *buffer.Buffer, link []byte, kind int, opaque any) (int, error) {
	o := options(opaque)
	if len(link) == 0 {
		return 0, nil
	}
	if o.Flags&Safelink != 0 && kind != engine.AutolinkEmail && !IsSafeLink(link) {
		return 0, nil
	}
	ob.PutString(`<a href="`)
	if kind == engine.AutolinkEmail {
		ob.PutString("mailto:")
	}
	escapeHref(ob, link)
	ob.PutString(`">`)
	escapeHTML(ob, bytes.TrimPrefix(link, []byte("mailto:")))
	ob.PutString("</a>")
	return 1, nil
}

func codeSpan(ob *buffer.Buffer, text []byte, _ any) (int, error) {
	ob.PutString("<code>")
	escapeHTML(ob, text)
	ob.PutString("</code>")
	return 1, nil
}

func wrap(ob *buffer.Buffer, text []byte, start, end string) (int, error) {
	if len(text) == 0 {
		return 0, nil
	}
	ob.PutString(start)
	ob.Put(text)
	ob.PutString(end)
	return 1, nil
}

func doubleEmphasis(ob *buffer.Buffer, text []byte, _ any) (int, error) {
	return wrap(ob, text, "<strong>", "</strong>")
}

func emphasis(ob *buffer.Buffer, text []byte, _ any) (int, error) {
	return wrap(ob, text, "<em>", "</em>")
}

func tripleEmphasis(ob *buffer.Buffer, text []byte, _ any) (int, error) {
	return wrap(ob, text, "<strong><em>", "</em></strong>")
}

func strikethrough(ob *buffer.Buffer, text []byte, _ any) (int, error) {
	return wrap(ob, text, "<del>", "</del>")
}

func superscript(ob *buffer.Buffer, text []byte, _ any) (int, error) {
	return wrap(ob, text, "<sup>", "</sup>")
}

func image(ob *buffer.Buffer, link, title, alt []byte, opaque any) (int, error) {
	if len(link) == 0 {
		return 0, nil
	}
	ob.PutString(`<img src="`)
	escapeHref(ob, link)
	ob.PutString(`" alt="`)
	escapeHTML(ob, alt)
	if len(title) > 0 {
		ob.PutString(`" title="`)
		escapeHTML(ob, title)
	}
	if options(opaque).xhtml() {
		ob.PutString(`"/>`)
	} else {
		ob.PutString(`">`)
	}
	return 1, nil
}

func lineBreak(ob *buffer.Buffer, opaque any) (int, error) {
	if options(opaque).xhtml() {
		ob.PutString("<br/>\n")
	} else {
		ob.PutString("<br>\n")
	}
	return 1, nil
}

func link(ob *buffer.Buffer, dest, title, content []byte, opaque any) (int, error) {
	if options(opaque).Flags&Safelink != 0 && !IsSafeLink(dest) {
		return 0, nil
	}
	ob.PutString(`<a href="`)
	escapeHref(ob, dest)
	if len(title) > 0 {
		ob.PutString(`" title="`)
		escapeHTML(ob, title)
	}
	ob.PutString(`">`)
	ob.Put(content)
	ob.PutString("</a>")
	return 1, nil
}

func rawHTMLTag(ob *buffer.Buffer, text []byte, opaque any) (int, error) {
	f := options(opaque).Flags
	switch {
	case f&Escape != 0:
		escapeHTML(ob, text)
		return 1, nil
	case f&SkipHTML != 0:
		return 1, nil
	case f&SkipStyle != 0 && isTag(text, "style"):
		return 1, nil
	case f&SkipLinks != 0 && isTag(text, "a"):
		return 1, nil
	case f&SkipImages != 0 && isTag(text, "img"):
		return 1, nil
	}
	ob.Put(text)
	return 1, nil
}

func normalText(ob *buffer.Buffer, text []byte, _ any) error {
	escapeHTML(ob, text)
	return nil
}

var safePrefixes = []string{"/", "http://", "https://", "ftp://", "mailto:"}

// IsSafeLink reports whether link uses a scheme considered safe for
// untrusted input.
func IsSafeLink(link []byte) bool {
	for _, p := range safePrefixes {
		n := len(p)
		if len(link) > n && strings.EqualFold(string(link[:n]), p) && isAlnum(link[n]) {
			return true
		}
	}
	return false
}

// isTag reports whether text is an opening or closing tag named name.
func isTag(text []byte, name string) bool {
	if len(text) < 3 || text[0] != '<' {
		return false
	}
	i := 1
	if text[i] == '/' {
		i++
	}
	rest := text[i:]
	if len(rest) < len(name) || !strings.EqualFold(string(rest[:len(name)]), name) {
		return false
	}
	if len(rest) == len(name) {
		return false
	}
	c := rest[len(name)]
	return c == '>' || c == ' ' || c == '\t' || c == '\n' || c == '/'
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func expandTabs(text []byte) []byte {
	if bytes.IndexByte(text, '\t') < 0 {
		return text
	}
	out := make([]byte, 0, len(text)+16)
	col := 0
	for _, c := range text {
		switch c {
		case '\t':
			for {
				out = append(out, ' ')
				col++
				if col%4 == 0 {
					break
				}
			}
		case '\n':
			out = append(out, c)
			col = 0
		default:
			out = append(out, c)
			col++
		}
	}
	return out
}
