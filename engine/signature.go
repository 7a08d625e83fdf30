// Package engine drives a markdown document through a fixed table of
// callback slots.
//
// The table mirrors the classic sundown callback contract: every slot has
// one of eight function shapes ([Signature]), children are rendered first
// and handed to their parent's callback as text, and a missing callback
// either drops the construct (blocks) or falls back to literal text (spans).
// Parsing is delegated to gomarkdown.
package engine

import "fmt"

// Signature identifies one of the eight callback shapes.
// Void signatures report no result; int signatures report whether they
// handled the construct (nonzero) or declined it (zero).
type Signature int32

const (
	VoidBuf1    Signature = iota // (out) -> void
	VoidBuf2                     // (out, text) -> void
	VoidBuf2Int                  // (out, text, flags) -> void
	VoidBuf3                     // (out, a, b) -> void
	IntBuf1                      // (out) -> int
	IntBuf2                      // (out, text) -> int
	IntBuf2Int                   // (out, text, flags) -> int
	IntBuf4                      // (out, link, title, content) -> int
)

var signatureNames = [...]string{
	VoidBuf1:    "VoidBuf1",
	VoidBuf2:    "VoidBuf2",
	VoidBuf2Int: "VoidBuf2Int",
	VoidBuf3:    "VoidBuf3",
	IntBuf1:     "IntBuf1",
	IntBuf2:     "IntBuf2",
	IntBuf2Int:  "IntBuf2Int",
	IntBuf4:     "IntBuf4",
}

// Valid reports whether s is one of the eight known signatures.
func (s Signature) Valid() bool { return s >= VoidBuf1 && s <= IntBuf4 }

// ReturnsInt reports whether functions of this shape return a handled flag.
func (s Signature) ReturnsInt() bool { return s >= IntBuf1 && s <= IntBuf4 }

// Buffers returns how many text arguments the shape takes besides the
// output buffer.
func (s Signature) Buffers() int {
	switch s {
	case VoidBuf1, IntBuf1:
		return 0
	case VoidBuf2, VoidBuf2Int, IntBuf2, IntBuf2Int:
		return 1
	case VoidBuf3:
		return 2
	case IntBuf4:
		return 3
	}
	return 0
}

// HasInt reports whether the shape takes a trailing integer argument.
func (s Signature) HasInt() bool { return s == VoidBuf2Int || s == IntBuf2Int }

func (s Signature) String() string {
	if s.Valid() {
		return signatureNames[s]
	}
	return fmt.Sprintf("Signature(%d)", int32(s))
}

// Slot identifies one entry of the callback table.
type Slot int32

const (
	BlockCode Slot = iota
	BlockQuote
	BlockHTML
	Header
	HRule
	List
	ListItem
	Paragraph
	Table
	TableRow
	TableCell
	Autolink
	CodeSpan
	DoubleEmphasis
	Emphasis
	Image
	LineBreak
	Link
	RawHTMLTag
	TripleEmphasis
	Strikethrough
	Superscript
	Entity
	NormalText
	DocHeader
	DocFooter

	// NumSlots is the size of the callback table.
	NumSlots
)

var slotInfo = [NumSlots]struct {
	name string
	sig  Signature
}{
	BlockCode:      {"blockcode", VoidBuf3},
	BlockQuote:     {"blockquote", VoidBuf2},
	BlockHTML:      {"blockhtml", VoidBuf2},
	Header:         {"header", VoidBuf2Int},
	HRule:          {"hrule", VoidBuf1},
	List:           {"list", VoidBuf2Int},
	ListItem:       {"listitem", VoidBuf2Int},
	Paragraph:      {"paragraph", VoidBuf2},
	Table:          {"table", VoidBuf3},
	TableRow:       {"table_row", VoidBuf2},
	TableCell:      {"table_cell", VoidBuf2Int},
	Autolink:       {"autolink", IntBuf2Int},
	CodeSpan:       {"codespan", IntBuf2},
	DoubleEmphasis: {"double_emphasis", IntBuf2},
	Emphasis:       {"emphasis", IntBuf2},
	Image:          {"image", IntBuf4},
	LineBreak:      {"linebreak", IntBuf1},
	Link:           {"link", IntBuf4},
	RawHTMLTag:     {"raw_html_tag", IntBuf2},
	TripleEmphasis: {"triple_emphasis", IntBuf2},
	Strikethrough:  {"strikethrough", IntBuf2},
	Superscript:    {"superscript", IntBuf2},
	Entity:         {"entity", VoidBuf2},
	NormalText:     {"normal_text", VoidBuf2},
	DocHeader:      {"doc_header", VoidBuf1},
	DocFooter:      {"doc_footer", VoidBuf1},
}

// Valid reports whether s names a table entry.
func (s Slot) Valid() bool { return s >= 0 && s < NumSlots }

// Signature returns the shape every function in this slot must have.
func (s Slot) Signature() Signature {
	if !s.Valid() {
		return -1
	}
	return slotInfo[s].sig
}

// String returns the slot's table name, e.g. "hrule" or "table_cell".
func (s Slot) String() string {
	if s.Valid() {
		return slotInfo[s].name
	}
	return fmt.Sprintf("Slot(%d)", int32(s))
}

// Slots returns every slot in table order.
func Slots() []Slot {
	out := make([]Slot, NumSlots)
	for i := range out {
		out[i] = Slot(i)
	}
	return out
}

// SlotByName looks a slot up by its table name.
func SlotByName(name string) (Slot, bool) {
	for i, info := range slotInfo {
		if info.name == name {
			return Slot(i), true
		}
	}
	return -1, false
}

// Flag values passed as the integer argument of list, listitem,
// table_cell and autolink callbacks.
const (
	ListOrdered   = 1
	ListItemBlock = 2

	TableAlignLeft   = 1
	TableAlignRight  = 2
	TableAlignCenter = 3
	TableAlignMask   = 3
	TableHeader      = 4

	AutolinkNormal = 1
	AutolinkEmail  = 2
)
