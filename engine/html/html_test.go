package html_test

import (
	"strings"
	"testing"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
	"github.com/benmills/robotskirt/engine/html"
)

func toHTML(t *testing.T, input string, ext engine.Extensions, flags html.Flags) string {
	t.Helper()
	cb, opts := html.NewRenderer(flags)
	ob := buffer.New(buffer.DefaultUnit)
	if err := engine.Render(ob, []byte(input), ext, 0, cb, opts); err != nil {
		t.Fatal(err)
	}
	return ob.String()
}

func TestRenderer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ext   engine.Extensions
		flags html.Flags
		want  string
	}{
		{"header", "# Hello", 0, 0, "<h1>Hello</h1>\n"},
		{"hrule", "---", 0, 0, "<hr>\n"},
		{"hrule xhtml", "---", 0, html.UseXHTML, "<hr/>\n"},
		{"emphasis", "*b*", 0, 0, "<p><em>b</em></p>\n"},
		{"strong", "**b**", 0, 0, "<p><strong>b</strong></p>\n"},
		{"codespan", "`a<b`", 0, 0, "<p><code>a&lt;b</code></p>\n"},
		{"escaped text", "a < b & c", 0, 0, "<p>a &lt; b &amp; c</p>\n"},
		{"link", `[x](http://example.com "T")`, 0, 0, `<p><a href="http://example.com" title="T">x</a></p>` + "\n"},
		{"strikethrough", "~~x~~", engine.ExtStrikethrough, 0, "<p><del>x</del></p>\n"},
		{"escape inline html", "x <b>hi</b>", 0, html.Escape, "<p>x &lt;b&gt;hi&lt;/b&gt;</p>\n"},
		{"skip inline html", "x <b>hi</b>", 0, html.SkipHTML, "<p>x hi</p>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toHTML(t, tt.input, tt.ext, tt.flags); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRendererList(t *testing.T) {
	got := toHTML(t, "- a\n- b\n", 0, 0)
	if !strings.HasPrefix(got, "<ul>\n") || !strings.Contains(got, "<li>a</li>") || !strings.Contains(got, "<li>b</li>") {
		t.Errorf("got %q", got)
	}
	got = toHTML(t, "1. a\n2. b\n", 0, 0)
	if !strings.HasPrefix(got, "<ol>\n") {
		t.Errorf("got %q", got)
	}
}

func TestRendererTable(t *testing.T) {
	got := toHTML(t, "| a | b |\n|:-:|---|\n| 1 | 2 |\n", engine.ExtTables, 0)
	for _, want := range []string{"<table><thead>", `<th align="center">`, "<td>", "</tbody></table>"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestRendererSafelink(t *testing.T) {
	got := toHTML(t, "[x](javascript:alert)", 0, html.Safelink)
	if strings.Contains(got, "<a") {
		t.Errorf("unsafe link rendered: %q", got)
	}
	got = toHTML(t, "[x](https://example.com)", 0, html.Safelink)
	if !strings.Contains(got, `<a href="https://example.com">x</a>`) {
		t.Errorf("safe link dropped: %q", got)
	}
}

func TestRendererSkipLinks(t *testing.T) {
	got := toHTML(t, "[x](http://example.com)", 0, html.SkipLinks)
	if strings.Contains(got, "<a") {
		t.Errorf("got %q", got)
	}
}

func TestRendererTOC(t *testing.T) {
	cb, opts := html.NewRenderer(html.TOC)
	render := func() string {
		opts.Reset()
		ob := buffer.New(0)
		if err := engine.Render(ob, []byte("# a\n\n## b\n"), 0, 0, cb, opts); err != nil {
			t.Fatal(err)
		}
		return ob.String()
	}
	first := render()
	if !strings.Contains(first, `<h1 id="toc_0">a</h1>`) || !strings.Contains(first, `<h2 id="toc_1">b</h2>`) {
		t.Errorf("got %q", first)
	}
	if second := render(); second != first {
		t.Errorf("render after reset differs:\n%q\n%q", first, second)
	}
}

func TestIsSafeLink(t *testing.T) {
	tests := []struct {
		link string
		want bool
	}{
		{"http://x", true},
		{"HTTPS://x", true},
		{"ftp://x", true},
		{"/path", true},
		{"mailto:a@b", true},
		{"javascript:alert(1)", false},
		{"http://", false},
		{"//evil", false},
	}
	for _, tt := range tests {
		if got := html.IsSafeLink([]byte(tt.link)); got != tt.want {
			t.Errorf("IsSafeLink(%q) = %v, want %v", tt.link, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	f, err := html.ParseFlags("safelink, use_xhtml")
	if err != nil {
		t.Fatal(err)
	}
	if f != html.Safelink|html.UseXHTML {
		t.Errorf("got %v", f)
	}
	if _, err := html.ParseFlags("nope"); err == nil {
		t.Error("unknown flag accepted")
	}
}
