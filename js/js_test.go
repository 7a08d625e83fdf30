package js

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

func newVM(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	Enable(vm, nil)
	if _, err := vm.RunString("var rs = robotskirt;"); err != nil {
		t.Fatal(err)
	}
	return vm
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	if err != nil {
		t.Fatalf("RunString(%q): %v", src, err)
	}
	return v
}

func TestRenderOutput(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "toHtmlSync",
			src:  `rs.toHtmlSync("# Hello")`,
			want: "<h1>Hello</h1>\n",
		},
		{
			name: "markdownSync",
			src:  `rs.markdownSync(new rs.HtmlRenderer(), "*hi*")`,
			want: "<p><em>hi</em></p>\n",
		},
		{
			name: "script hrule",
			src: `var r = new rs.HtmlRenderer();
				r.hrule = function () { return "<HR/>"; };
				new rs.Markdown(r).renderSync("---")`,
			want: "<HR/>",
		},
		{
			name: "declined span falls back to literal",
			src: `var r = new rs.HtmlRenderer();
				r.emphasis = function () { return false; };
				new rs.Markdown(r).renderSync("*hi*")`,
			want: "<p>*hi*</p>\n",
		},
		{
			name: "empty string declines span",
			src: `var r = new rs.HtmlRenderer();
				r.emphasis = function () { return ""; };
				new rs.Markdown(r).renderSync("*hi*")`,
			want: "<p>*hi*</p>\n",
		},
		{
			name: "zero declines span",
			src: `var r = new rs.HtmlRenderer();
				r.codespan = function () { return 0; };
				new rs.Markdown(r).renderSync("a ` + "`b`" + `")`,
			want: "<p>a `b`</p>\n",
		},
		{
			name: "NaN declines span",
			src: `var r = new rs.HtmlRenderer();
				r.double_emphasis = function () { return NaN; };
				new rs.Markdown(r).renderSync("**hi**")`,
			want: "<p>**hi**</p>\n",
		},
		{
			name: "script sees int argument",
			src: `var r = new rs.HtmlRenderer();
				r.header = function (text, level) { return "[" + level + ":" + text + "]"; };
				new rs.Markdown(r).renderSync("## Two")`,
			want: "[2:Two]",
		},
		{
			name: "forwarded to plain renderer",
			src: `var h = new rs.HtmlRenderer();
				var r = new rs.Renderer();
				r.paragraph = h.paragraph;
				new rs.Markdown(r).renderSync("x")`,
			want: "<p>x</p>\n",
		},
		{
			name: "unset slot on plain renderer",
			src:  `new rs.Markdown(new rs.Renderer()).renderSync("---")`,
			want: "",
		},
		{
			name: "extensions",
			src: `var md = new rs.Markdown(new rs.HtmlRenderer(), [rs.EXT_STRIKETHROUGH]);
				md.renderSync("~~x~~")`,
			want: "<p><del>x</del></p>\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newVM(t)
			if got := run(t, vm, tt.src).String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThrows(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "non-function",
			src:  `new rs.HtmlRenderer().hrule = 5`,
			want: "TypeError: Value must be a function!",
		},
		{
			name: "unset slot",
			src: `var r = new rs.HtmlRenderer();
				r.hrule = null;
				new rs.Markdown(r).renderSync("---")`,
			want: "TypeError: No function was set for this action.",
		},
		{
			name: "falsy void return",
			src: `var r = new rs.HtmlRenderer();
				r.hrule = function () { return false; };
				new rs.Markdown(r).renderSync("---")`,
			want: "TypeError: hrule callback must return a string or a buffer, got a falsy value",
		},
		{
			name: "empty string void return",
			src: `var r = new rs.HtmlRenderer();
				r.hrule = function () { return ""; };
				new rs.Markdown(r).renderSync("---")`,
			want: "TypeError: hrule callback must return a string or a buffer, got a falsy value",
		},
		{
			name: "zero void return",
			src: `var r = new rs.HtmlRenderer();
				r.paragraph = function () { return 0; };
				new rs.Markdown(r).renderSync("x")`,
			want: "TypeError: paragraph callback must return a string or a buffer, got a falsy value",
		},
		{
			name: "render without input",
			src:  `new rs.Markdown(new rs.HtmlRenderer()).renderSync()`,
			want: "TypeError: You must provide a String or Buffer!",
		},
		{
			name: "render number",
			src:  `rs.toHtmlSync(5)`,
			want: "TypeError: You must provide a String or Buffer!",
		},
		{
			name: "async render number",
			src:  `rs.toHtml(5, function () {})`,
			want: "TypeError: You must provide a String or Buffer!",
		},
		{
			name: "plugin from number",
			src:  `rs.loadPlugin(5)`,
			want: "TypeError: You must provide a Buffer!",
		},
		{
			name: "wrong return type",
			src: `var r = new rs.HtmlRenderer();
				r.paragraph = function () { return 42; };
				new rs.Markdown(r).renderSync("x")`,
			want: "TypeError: paragraph callback must return a string or a buffer, got a number",
		},
		{
			name: "mismatched handle",
			src: `var r = new rs.HtmlRenderer();
				r.hrule = r.paragraph`,
			want: "TypeError: native function has signature VoidBuf2, slot expects VoidBuf1",
		},
		{
			name: "bad flags",
			src:  `new rs.HtmlRenderer("x")`,
			want: "TypeError: You must provide an integer!",
		},
		{
			name: "no renderer",
			src:  `new rs.Markdown({})`,
			want: "TypeError: You must provide a Renderer!",
		},
		{
			name: "nesting out of range",
			src:  `new rs.Markdown(new rs.Renderer(), 0, 0)`,
			want: "TypeError: max nesting 0 out of range [1, 256]",
		},
		{
			name: "async without loop",
			src:  `new rs.Markdown(new rs.Renderer()).render("x", function () {})`,
			want: "TypeError: render needs an event loop",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newVM(t)
			_, err := vm.RunString(tt.src)
			if err == nil {
				t.Fatal("expected an exception")
			}
			ex, ok := err.(*goja.Exception)
			if !ok {
				t.Fatalf("err = %T %v, want *goja.Exception", err, err)
			}
			if got := ex.Value().String(); got != tt.want {
				t.Errorf("thrown %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExceptionIdentity(t *testing.T) {
	vm := newVM(t)
	v := run(t, vm, `
		var thrown = new Error("boom");
		var r = new rs.HtmlRenderer();
		r.paragraph = function () { throw thrown; };
		var caught;
		try {
			new rs.Markdown(r).renderSync("x");
		} catch (e) {
			caught = e;
		}
		caught === thrown`)
	if !v.ToBoolean() {
		t.Error("renderSync did not rethrow the script's own exception")
	}
}

func TestSlotIdentity(t *testing.T) {
	vm := newVM(t)
	checks := []string{
		`var f = function () { return "x"; };
		 var r = new rs.Renderer();
		 r.hrule = f;
		 r.hrule === f`,
		`var h = new rs.HtmlRenderer();
		 h.hrule === h.hrule`,
		`var a = new rs.HtmlRenderer();
		 var b = new rs.Renderer();
		 b.link = a.link;
		 b.link === a.link`,
		`String(new rs.HtmlRenderer().hrule) === "<Native function>"`,
		`new rs.Renderer().hrule === undefined`,
		`var r = new rs.HtmlRenderer(); r.hrule = false; r.hrule === undefined`,
		`new rs.HtmlRenderer() instanceof rs.Renderer`,
	}
	for _, src := range checks {
		if !run(t, vm, src).ToBoolean() {
			t.Errorf("false: %s", src)
		}
	}
}

func TestNativeHandleCall(t *testing.T) {
	vm := newVM(t)
	tests := []struct {
		src  string
		want string
	}{
		{`new rs.HtmlRenderer().emphasis("hi")`, "<em>hi</em>"},
		{`new rs.HtmlRenderer().hrule()`, "<hr>\n"},
		{`new rs.HtmlRenderer(rs.HTML_USE_XHTML).hrule()`, "<hr/>\n"},
		{`new rs.HtmlRenderer().header("T", 3)`, "<h3>T</h3>\n"},
		{`new rs.HtmlRenderer().emphasis("")`, "false"},
	}
	for _, tt := range tests {
		if got := run(t, vm, tt.src).String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestProperties(t *testing.T) {
	vm := newVM(t)
	tests := []struct {
		src  string
		want int64
	}{
		{`rs.EXT_TABLES`, 2},
		{`rs.EXT_LAX_SPACING`, 256},
		{`rs.HTML_TOC`, 64},
		{`rs.HTML_ESCAPE`, 512},
		{`new rs.HtmlRenderer([rs.HTML_SKIP_HTML, rs.HTML_TOC]).flags`, 65},
		{`new rs.HtmlRenderer().flags`, 0},
		{`new rs.Markdown(new rs.Renderer(), [rs.EXT_TABLES, rs.EXT_FENCED_CODE]).extensions`, 6},
		{`new rs.Markdown(new rs.Renderer()).maxNesting`, 16},
		{`new rs.Markdown(new rs.Renderer(), 0, 4).maxNesting`, 4},
	}
	for _, tt := range tests {
		if got := run(t, vm, tt.src).ToInteger(); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.src, got, tt.want)
		}
	}
	if !run(t, vm, `var r = new rs.Renderer(); new rs.Markdown(r).renderer === r`).ToBoolean() {
		t.Error("Markdown.renderer is not the renderer it was built with")
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	vm := newVM(t)
	v := run(t, vm, `
		var md = new rs.Markdown(new rs.HtmlRenderer(rs.HTML_TOC));
		var a = md.renderSync("# One\n\n# Two");
		var b = md.renderSync("# One\n\n# Two");
		a === b ? a : "differ: " + a + " / " + b`)
	want := "<h1 id=\"toc_0\">One</h1>\n\n<h1 id=\"toc_1\">Two</h1>\n"
	if got := v.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBinaryInput(t *testing.T) {
	vm := newVM(t)
	v := run(t, vm, `
		var buf = new Uint8Array([0x23, 0x20, 0x48, 0x69]).buffer;
		rs.toHtmlSync(buf)`)
	ab, ok := v.Export().(goja.ArrayBuffer)
	if !ok {
		t.Fatalf("output is %T, want an ArrayBuffer", v.Export())
	}
	if got := string(ab.Bytes()); got != "<h1>Hi</h1>\n" {
		t.Errorf("got %q", got)
	}
}

func TestAsyncRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "offloaded",
			src:  `new rs.Markdown(new rs.HtmlRenderer()).render("# Hi", done)`,
			want: "<h1>Hi</h1>\n",
		},
		{
			name: "script bound renders on the loop",
			src: `var r = new rs.HtmlRenderer();
				r.hrule = function () { return "<HR/>"; };
				new rs.Markdown(r).render("---", done)`,
			want: "<HR/>",
		},
		{
			name: "toHtml",
			src:  `rs.toHtml("*a*", done)`,
			want: "<p><em>a</em></p>\n",
		},
		{
			name: "error",
			src: `var r = new rs.HtmlRenderer();
				r.hrule = null;
				rs.markdown(r, "---", done)`,
			want: "error: TypeError: No function was set for this action.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := eventloop.NewEventLoop()
			var got string
			loop.Run(func(vm *goja.Runtime) {
				Enable(vm, &Options{Loop: loop})
				vm.Set("done", func(call goja.FunctionCall) goja.Value {
					if err := call.Argument(0); !goja.IsNull(err) && !goja.IsUndefined(err) {
						got = "error: " + err.String()
					} else {
						got = call.Argument(1).String()
					}
					return goja.Undefined()
				})
				if _, err := vm.RunString("var rs = robotskirt;\n" + tt.src); err != nil {
					t.Errorf("RunString: %v", err)
				}
			})
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	registry := require.NewRegistry()
	Register(registry, nil)
	vm := goja.New()
	registry.Enable(vm)

	v, err := vm.RunString(`require("robotskirt").toHtmlSync("# Req")`)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.String(); !strings.Contains(got, "<h1>Req</h1>") {
		t.Errorf("got %q", got)
	}
}

func TestEval(t *testing.T) {
	m := New(goja.New(), nil)
	tests := []struct {
		code string
		want string
	}{
		{`"Hello, World!"`, "Hello, World!"},
		{`2 + 2`, "4"},
		{``, "undefined"},
	}
	for _, tt := range tests {
		v, err := m.Eval(tt.code, nil)
		if err != nil {
			t.Fatalf("Eval(%q): %v", tt.code, err)
		}
		if got := v.String(); got != tt.want {
			t.Errorf("Eval(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}

	_, err := m.Eval(`throw new TypeError("bad")`, &EvalOptions{Filename: "bad.js"})
	ex, ok := err.(*goja.Exception)
	if !ok {
		t.Fatalf("err = %T, want *goja.Exception", err)
	}
	if !strings.Contains(ex.String(), "bad.js") {
		t.Errorf("exception %q does not name the file", ex.String())
	}
}
