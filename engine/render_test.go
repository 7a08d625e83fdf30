package engine_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
)

func tagged() *engine.Callbacks {
	return &engine.Callbacks{
		Header: func(ob *buffer.Buffer, text []byte, level int, _ any) error {
			fmt.Fprintf(ob, "<h%d>%s</h%d>", level, text, level)
			return nil
		},
		Paragraph: func(ob *buffer.Buffer, text []byte, _ any) error {
			fmt.Fprintf(ob, "<p>%s</p>", text)
			return nil
		},
		BlockQuote: func(ob *buffer.Buffer, text []byte, _ any) error {
			fmt.Fprintf(ob, "<bq>%s</bq>", text)
			return nil
		},
		HRule: func(ob *buffer.Buffer, _ any) error {
			ob.PutString("<hr>")
			return nil
		},
	}
}

func render(t *testing.T, input string, ext engine.Extensions, maxNesting int, cb *engine.Callbacks) string {
	t.Helper()
	ob := buffer.New(buffer.DefaultUnit)
	if err := engine.Render(ob, []byte(input), ext, maxNesting, cb, nil); err != nil {
		t.Fatalf("render %q: %v", input, err)
	}
	return ob.String()
}

func TestRenderHeader(t *testing.T) {
	got := render(t, "# Hello", 0, 0, tagged())
	if got != "<h1>Hello</h1>" {
		t.Errorf("got %q, want %q", got, "<h1>Hello</h1>")
	}
}

func TestRenderNilBlockIsDropped(t *testing.T) {
	cb := tagged()
	cb.Paragraph = nil
	got := render(t, "# Title\n\nsome text\n", 0, 0, cb)
	if got != "<h1>Title</h1>" {
		t.Errorf("got %q", got)
	}
}

func TestRenderSpanFallback(t *testing.T) {
	decline := func(ob *buffer.Buffer, text []byte, _ any) (int, error) { return 0, nil }

	tests := []struct {
		name  string
		input string
		setup func(cb *engine.Callbacks)
		want  string
	}{
		{"nil emphasis", "a *b* c", nil, "<p>a *b* c</p>"},
		{"declined emphasis", "*b*", func(cb *engine.Callbacks) { cb.Emphasis = decline }, "<p>*b*</p>"},
		{"declined double emphasis", "**b**", func(cb *engine.Callbacks) { cb.DoubleEmphasis = decline }, "<p>**b**</p>"},
		{"nil codespan", "use `x`", nil, "<p>use `x`</p>"},
		{"nil link", "[a](http://x)", nil, "<p>[a](http://x)</p>"},
		{"handled emphasis", "*b*", func(cb *engine.Callbacks) {
			cb.Emphasis = func(ob *buffer.Buffer, text []byte, _ any) (int, error) {
				fmt.Fprintf(ob, "<em>%s</em>", text)
				return 1, nil
			}
		}, "<p><em>b</em></p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := tagged()
			if tt.setup != nil {
				tt.setup(cb)
			}
			if got := render(t, tt.input, 0, 0, cb); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderNormalTextSeesMarkers(t *testing.T) {
	var runs []string
	cb := tagged()
	cb.NormalText = func(ob *buffer.Buffer, text []byte, _ any) error {
		runs = append(runs, string(text))
		ob.Put(text)
		return nil
	}
	render(t, "*b*", 0, 0, cb)
	joined := strings.Join(runs, "|")
	if !strings.Contains(joined, "*") {
		t.Errorf("emphasis markers did not pass through normal_text: %q", joined)
	}
}

func TestRenderEntity(t *testing.T) {
	cb := tagged()
	cb.Entity = func(ob *buffer.Buffer, text []byte, _ any) error {
		fmt.Fprintf(ob, "[%s]", text)
		return nil
	}
	got := render(t, "a &copy; b", 0, 0, cb)
	if !strings.Contains(got, "[&copy;]") {
		t.Errorf("got %q, want entity routed through callback", got)
	}
}

func TestRenderMaxNesting(t *testing.T) {
	input := "> > > > > > > > deep\n"
	got := render(t, input, 0, 4, tagged())
	n := strings.Count(got, "<bq>")
	if n == 0 || n > 4 {
		t.Errorf("blockquote count %d, want 1..4 (output %q)", n, got)
	}
	if strings.Contains(got, "deep") {
		t.Errorf("content past the nesting limit was rendered: %q", got)
	}

	got = render(t, input, 0, 16, tagged())
	if !strings.Contains(got, "deep") {
		t.Errorf("content within the limit was dropped: %q", got)
	}
}

func TestRenderCallbackErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	cb := tagged()
	cb.HRule = func(ob *buffer.Buffer, _ any) error {
		calls++
		return boom
	}
	ob := buffer.New(0)
	err := engine.Render(ob, []byte("---\n\n---\n"), 0, 0, cb, nil)
	if err != boom {
		t.Fatalf("got %v, want the callback's error unchanged", err)
	}
	if calls != 1 {
		t.Errorf("render continued after error: %d calls", calls)
	}
}

func TestRenderOpaque(t *testing.T) {
	type state struct{ seen int }
	st := &state{}
	cb := &engine.Callbacks{
		HRule: func(ob *buffer.Buffer, opaque any) error {
			opaque.(*state).seen++
			return nil
		},
	}
	if err := engine.Render(buffer.New(0), []byte("***\n"), 0, 0, cb, st); err != nil {
		t.Fatal(err)
	}
	if st.seen != 1 {
		t.Errorf("opaque seen %d times, want 1", st.seen)
	}
}

func TestRenderDocHeaderFooter(t *testing.T) {
	cb := tagged()
	cb.DocHeader = func(ob *buffer.Buffer, _ any) error { ob.PutString("[["); return nil }
	cb.DocFooter = func(ob *buffer.Buffer, _ any) error { ob.PutString("]]"); return nil }
	if got := render(t, "---", 0, 0, cb); got != "[[<hr>]]" {
		t.Errorf("got %q", got)
	}
}

func TestRenderListFlags(t *testing.T) {
	var lists, items []int
	cb := &engine.Callbacks{
		List: func(ob *buffer.Buffer, text []byte, flags int, _ any) error {
			lists = append(lists, flags)
			return nil
		},
		ListItem: func(ob *buffer.Buffer, text []byte, flags int, _ any) error {
			items = append(items, flags)
			return nil
		},
	}
	render(t, "1. one\n2. two\n", 0, 0, cb)
	if len(lists) != 1 || lists[0]&engine.ListOrdered == 0 {
		t.Errorf("ordered list flags: %v", lists)
	}
	for _, f := range items {
		if f&engine.ListOrdered == 0 {
			t.Errorf("item of ordered list missing ListOrdered: %d", f)
		}
	}

	lists, items = nil, nil
	render(t, "- one\n- two\n", 0, 0, cb)
	if len(lists) != 1 || lists[0]&engine.ListOrdered != 0 {
		t.Errorf("bullet list flags: %v", lists)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2", len(items))
	}
}

func TestRenderTableCellFlags(t *testing.T) {
	var cells []int
	var header, body string
	cb := &engine.Callbacks{
		TableCell: func(ob *buffer.Buffer, text []byte, flags int, _ any) error {
			cells = append(cells, flags)
			ob.Put(text)
			return nil
		},
		TableRow: func(ob *buffer.Buffer, text []byte, _ any) error {
			ob.Put(text)
			return nil
		},
		Table: func(ob *buffer.Buffer, h, b []byte, _ any) error {
			header, body = string(h), string(b)
			return nil
		},
	}
	render(t, "| a | b |\n|:--|--:|\n| 1 | 2 |\n", engine.ExtTables, 0, cb)
	want := []int{
		engine.TableAlignLeft | engine.TableHeader,
		engine.TableAlignRight | engine.TableHeader,
		engine.TableAlignLeft,
		engine.TableAlignRight,
	}
	if fmt.Sprint(cells) != fmt.Sprint(want) {
		t.Errorf("cell flags: got %v, want %v", cells, want)
	}
	squash := func(s string) string { return strings.Join(strings.Fields(s), "") }
	if squash(header) != "ab" || squash(body) != "12" {
		t.Errorf("table sections: header %q body %q", header, body)
	}
}

func TestRenderCodeBlockEndsWithNewline(t *testing.T) {
	var code, lang string
	cb := &engine.Callbacks{
		BlockCode: func(ob *buffer.Buffer, text, info []byte, _ any) error {
			code, lang = string(text), string(info)
			return nil
		},
	}
	render(t, "```go\nx := 1\n```\n", engine.ExtFencedCode, 0, cb)
	if !strings.HasSuffix(code, "\n") || !strings.Contains(code, "x := 1") {
		t.Errorf("code: %q", code)
	}
	if lang != "go" {
		t.Errorf("lang: got %q, want %q", lang, "go")
	}
}

func TestRenderNilTable(t *testing.T) {
	if got := render(t, "---\n\ntext", 0, 0, nil); got != "" {
		t.Errorf("empty table rendered %q", got)
	}
}

func TestRenderDoesNotModifyInput(t *testing.T) {
	input := []byte("line one\r\nline two\r\n")
	orig := string(input)
	if err := engine.Render(buffer.New(0), input, 0, 0, tagged(), nil); err != nil {
		t.Fatal(err)
	}
	if string(input) != orig {
		t.Errorf("input modified: %q", input)
	}
}
