package engine

import (
	"bytes"
	"regexp"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/benmills/robotskirt/buffer"
)

const (
	blockUnit = 256
	spanUnit  = 64
)

var (
	newline = []byte("\n")
	space   = []byte(" ")
	crlf    = []byte("\r\n")

	entityPattern = regexp.MustCompile(`&(?:#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[A-Za-z][A-Za-z0-9]{1,31});`)
)

// Render parses input and writes the document to ob through cb.
//
// Children are rendered before their parent and handed to the parent's
// callback as text. opaque is passed unchanged to every callback. A
// container nested deeper than maxNesting is not rendered at all; a
// maxNesting of zero or less selects DefaultMaxNesting.
//
// The first error returned by a callback aborts the render and is returned
// as is.
func Render(ob *buffer.Buffer, input []byte, ext Extensions, maxNesting int, cb *Callbacks, opaque any) error {
	if cb == nil {
		cb = &Callbacks{}
	}
	if maxNesting <= 0 {
		maxNesting = DefaultMaxNesting
	}

	// ReplaceAll always copies, so the parser never sees the caller's slice.
	src := bytes.ReplaceAll(input, crlf, newline)
	doc := parser.NewWithExtensions(ext.parserExtensions()).Parse(src)

	r := &renderer{cb: cb, opaque: opaque, maxNesting: maxNesting}
	if cb.DocHeader != nil {
		if err := cb.DocHeader(ob, opaque); err != nil {
			return err
		}
	}
	for _, child := range doc.GetChildren() {
		if err := r.render(ob, child, 1); err != nil {
			return err
		}
	}
	if cb.DocFooter != nil {
		if err := cb.DocFooter(ob, opaque); err != nil {
			return err
		}
	}
	return nil
}

type renderer struct {
	cb         *Callbacks
	opaque     any
	maxNesting int
}

func (r *renderer) render(ob *buffer.Buffer, node ast.Node, depth int) error {
	if node.AsContainer() != nil && depth > r.maxNesting {
		return nil
	}

	switch n := node.(type) {
	case *ast.Text:
		return r.text(ob, n.Literal)
	case *ast.Softbreak:
		return r.text(ob, newline)
	case *ast.NonBlockingSpace:
		return r.text(ob, space)
	case *ast.Hardbreak:
		return r.linebreak(ob)

	case *ast.Paragraph:
		text, err := r.content(n, depth, blockUnit)
		if err != nil {
			return err
		}
		if tightParagraph(n) {
			ob.Put(text)
			return nil
		}
		if r.cb.Paragraph == nil {
			return nil
		}
		return r.cb.Paragraph(ob, text, r.opaque)

	case *ast.Heading:
		text, err := r.content(n, depth, blockUnit)
		if err != nil || r.cb.Header == nil {
			return err
		}
		return r.cb.Header(ob, text, n.Level, r.opaque)

	case *ast.HorizontalRule:
		if r.cb.HRule == nil {
			return nil
		}
		return r.cb.HRule(ob, r.opaque)

	case *ast.CodeBlock:
		if r.cb.BlockCode == nil {
			return nil
		}
		code := n.Literal
		if !bytes.HasSuffix(code, newline) {
			code = append(bytes.Clone(code), '\n')
		}
		return r.cb.BlockCode(ob, code, bytes.TrimSpace(n.Info), r.opaque)

	case *ast.HTMLBlock:
		if r.cb.BlockHTML == nil {
			return nil
		}
		return r.cb.BlockHTML(ob, n.Literal, r.opaque)

	case *ast.BlockQuote:
		text, err := r.content(n, depth, blockUnit)
		if err != nil || r.cb.BlockQuote == nil {
			return err
		}
		return r.cb.BlockQuote(ob, text, r.opaque)

	case *ast.List:
		text, err := r.content(n, depth, blockUnit)
		if err != nil || r.cb.List == nil {
			return err
		}
		return r.cb.List(ob, text, listFlags(n.ListFlags), r.opaque)

	case *ast.ListItem:
		flags := 0
		if list, ok := n.GetParent().(*ast.List); ok {
			flags = listFlags(list.ListFlags)
		}
		if n.ListFlags&ast.ListItemContainsBlock != 0 {
			flags |= ListItemBlock
		}
		text, err := r.content(n, depth, blockUnit)
		if err != nil || r.cb.ListItem == nil {
			return err
		}
		return r.cb.ListItem(ob, text, flags, r.opaque)

	case *ast.Table:
		return r.table(ob, n, depth)

	case *ast.TableRow:
		text, err := r.content(n, depth, blockUnit)
		if err != nil || r.cb.TableRow == nil {
			return err
		}
		return r.cb.TableRow(ob, text, r.opaque)

	case *ast.TableCell:
		flags := int(n.Align) & TableAlignMask
		if n.IsHeader {
			flags |= TableHeader
		}
		text, err := r.content(n, depth, spanUnit)
		if err != nil || r.cb.TableCell == nil {
			return err
		}
		return r.cb.TableCell(ob, text, flags, r.opaque)

	case *ast.Emph:
		if inner, ok := soleChild(n).(*ast.Strong); ok {
			return r.triple(ob, inner, depth+1)
		}
		return r.emphasis(ob, n, depth, r.cb.Emphasis, "*")

	case *ast.Strong:
		if inner, ok := soleChild(n).(*ast.Emph); ok {
			return r.triple(ob, inner, depth+1)
		}
		return r.emphasis(ob, n, depth, r.cb.DoubleEmphasis, "**")

	case *ast.Del:
		return r.emphasis(ob, n, depth, r.cb.Strikethrough, "~~")

	case *ast.Superscript:
		text, err := r.inlineText(n, depth)
		if err != nil {
			return err
		}
		return r.span(ob, r.cb.Superscript, text, "^", "")

	case *ast.Subscript:
		text, err := r.inlineText(n, depth)
		if err != nil {
			return err
		}
		return r.span(ob, nil, text, "~", "~")

	case *ast.Code:
		if r.cb.CodeSpan != nil {
			handled, err := r.cb.CodeSpan(ob, n.Literal, r.opaque)
			if err != nil || handled != 0 {
				return err
			}
		}
		return r.literal(ob, "`", n.Literal, "`")

	case *ast.HTMLSpan:
		if r.cb.RawHTMLTag != nil {
			handled, err := r.cb.RawHTMLTag(ob, n.Literal, r.opaque)
			if err != nil || handled != 0 {
				return err
			}
		}
		return r.text(ob, n.Literal)

	case *ast.Link:
		return r.link(ob, n, depth)

	case *ast.Image:
		alt := plainText(n)
		if r.cb.Image != nil {
			handled, err := r.cb.Image(ob, n.Destination, n.Title, alt, r.opaque)
			if err != nil || handled != 0 {
				return err
			}
		}
		return r.literal(ob, "![", alt, "]("+string(n.Destination)+")")
	}

	if leaf := node.AsLeaf(); leaf != nil {
		return r.text(ob, leaf.Literal)
	}
	for _, child := range node.GetChildren() {
		if err := r.render(ob, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// content renders the children of n into a fresh work buffer.
func (r *renderer) content(n ast.Node, depth, unit int) ([]byte, error) {
	work := buffer.New(unit)
	for _, child := range n.GetChildren() {
		if err := r.render(work, child, depth+1); err != nil {
			return nil, err
		}
	}
	return work.Bytes(), nil
}

// inlineText renders n's children, or its literal when n is a leaf.
func (r *renderer) inlineText(n ast.Node, depth int) ([]byte, error) {
	if leaf := n.AsLeaf(); leaf != nil {
		work := buffer.New(spanUnit)
		if err := r.text(work, leaf.Literal); err != nil {
			return nil, err
		}
		return work.Bytes(), nil
	}
	return r.content(n, depth, spanUnit)
}

func (r *renderer) table(ob *buffer.Buffer, n *ast.Table, depth int) error {
	header := buffer.New(blockUnit)
	body := buffer.New(blockUnit)
	for _, section := range n.GetChildren() {
		dst := body
		if _, ok := section.(*ast.TableHeader); ok {
			dst = header
		}
		if err := r.render(dst, section, depth+1); err != nil {
			return err
		}
	}
	if r.cb.Table == nil {
		return nil
	}
	return r.cb.Table(ob, header.Bytes(), body.Bytes(), r.opaque)
}

func (r *renderer) emphasis(ob *buffer.Buffer, n ast.Node, depth int, fn IntBuf2Func, marker string) error {
	text, err := r.content(n, depth, spanUnit)
	if err != nil {
		return err
	}
	return r.span(ob, fn, text, marker, marker)
}

func (r *renderer) triple(ob *buffer.Buffer, inner ast.Node, depth int) error {
	if depth > r.maxNesting {
		return nil
	}
	text, err := r.content(inner, depth, spanUnit)
	if err != nil {
		return err
	}
	return r.span(ob, r.cb.TripleEmphasis, text, "***", "***")
}

// span calls fn with already rendered text. When fn is missing or declines,
// the markers are emitted as normal text around the content.
func (r *renderer) span(ob *buffer.Buffer, fn IntBuf2Func, text []byte, prefix, suffix string) error {
	if fn != nil {
		handled, err := fn(ob, text, r.opaque)
		if err != nil || handled != 0 {
			return err
		}
	}
	if err := r.text(ob, []byte(prefix)); err != nil {
		return err
	}
	ob.Put(text)
	if suffix == "" {
		return nil
	}
	return r.text(ob, []byte(suffix))
}

// literal emits prefix, raw and suffix as normal text.
func (r *renderer) literal(ob *buffer.Buffer, prefix string, raw []byte, suffix string) error {
	if err := r.text(ob, []byte(prefix)); err != nil {
		return err
	}
	if err := r.text(ob, raw); err != nil {
		return err
	}
	return r.text(ob, []byte(suffix))
}

func (r *renderer) link(ob *buffer.Buffer, n *ast.Link, depth int) error {
	if kind, ok := autolinkKind(n); ok {
		dest := n.Destination
		if kind == AutolinkEmail {
			dest = bytes.TrimPrefix(dest, []byte("mailto:"))
		}
		if r.cb.Autolink != nil {
			handled, err := r.cb.Autolink(ob, dest, kind, r.opaque)
			if err != nil || handled != 0 {
				return err
			}
		}
		return r.text(ob, dest)
	}

	content, err := r.content(n, depth, spanUnit)
	if err != nil {
		return err
	}
	if r.cb.Link != nil {
		handled, err := r.cb.Link(ob, n.Destination, n.Title, content, r.opaque)
		if err != nil || handled != 0 {
			return err
		}
	}
	if err := r.text(ob, []byte("[")); err != nil {
		return err
	}
	ob.Put(content)
	tail := "](" + string(n.Destination)
	if len(n.Title) > 0 {
		tail += ` "` + string(n.Title) + `"`
	}
	return r.text(ob, []byte(tail+")"))
}

func (r *renderer) linebreak(ob *buffer.Buffer) error {
	if r.cb.LineBreak != nil {
		handled, err := r.cb.LineBreak(ob, r.opaque)
		if err != nil || handled != 0 {
			return err
		}
	}
	return r.text(ob, newline)
}

// text splits s into entity references and plain runs.
func (r *renderer) text(ob *buffer.Buffer, s []byte) error {
	for len(s) > 0 {
		loc := entityPattern.FindIndex(s)
		if loc == nil {
			return r.normalText(ob, s)
		}
		if loc[0] > 0 {
			if err := r.normalText(ob, s[:loc[0]]); err != nil {
				return err
			}
		}
		if err := r.entity(ob, s[loc[0]:loc[1]]); err != nil {
			return err
		}
		s = s[loc[1]:]
	}
	return nil
}

func (r *renderer) normalText(ob *buffer.Buffer, s []byte) error {
	if r.cb.NormalText == nil {
		ob.Put(s)
		return nil
	}
	return r.cb.NormalText(ob, s, r.opaque)
}

func (r *renderer) entity(ob *buffer.Buffer, s []byte) error {
	if r.cb.Entity == nil {
		ob.Put(s)
		return nil
	}
	return r.cb.Entity(ob, s, r.opaque)
}

func listFlags(t ast.ListType) int {
	if t&ast.ListTypeOrdered != 0 {
		return ListOrdered
	}
	return 0
}

// tightParagraph reports whether p sits directly in an item of a tight
// list, in which case its text is emitted without a paragraph callback.
func tightParagraph(p *ast.Paragraph) bool {
	item := p.GetParent()
	if item == nil {
		return false
	}
	list, ok := item.GetParent().(*ast.List)
	return ok && list.Tight
}

func soleChild(n ast.Node) ast.Node {
	children := n.GetChildren()
	if len(children) != 1 {
		return nil
	}
	return children[0]
}

func autolinkKind(n *ast.Link) (int, bool) {
	if len(n.Title) > 0 {
		return 0, false
	}
	text, ok := soleChild(n).(*ast.Text)
	if !ok {
		return 0, false
	}
	switch {
	case bytes.Equal(text.Literal, n.Destination):
		if bytes.HasPrefix(n.Destination, []byte("mailto:")) {
			return AutolinkEmail, true
		}
		return AutolinkNormal, true
	case bytes.Equal(append([]byte("mailto:"), text.Literal...), n.Destination):
		return AutolinkEmail, true
	}
	return 0, false
}

// plainText concatenates the literals of every leaf under n.
func plainText(n ast.Node) []byte {
	var out []byte
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if leaf := node.AsLeaf(); leaf != nil && entering {
			out = append(out, leaf.Literal...)
		}
		return ast.GoToNext
	})
	return out
}
