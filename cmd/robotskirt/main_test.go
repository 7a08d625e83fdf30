package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWithArgs(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.md", "# One\n")
	two := writeFile(t, dir, "two.md", "*two*\n")
	three := writeFile(t, dir, "three.md", "---\n")
	hrule := writeFile(t, dir, "hrule.js", `renderer.hrule = function () { return "<HR/>"; };`)
	plain := writeFile(t, dir, "plain.js", `
		renderer = new robotskirt.Renderer();
		renderer.paragraph = function (text) { return "[" + text + "]"; };`)
	throws := writeFile(t, dir, "throws.js", `renderer.hrule = function () { throw new Error("nope"); };`)
	helper := writeFile(t, dir, "helper.js", `
		var out = render("# x");
		renderer.doc_footer = function () { return "<!-- " + out.trim() + " -->"; };`)

	tests := []struct {
		name     string
		args     []string
		stdin    string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{
			name:    "stdin",
			stdin:   "# Hello\n",
			wantOut: "<h1>Hello</h1>\n",
		},
		{
			name:    "files in order",
			args:    []string{one, two},
			wantOut: "<h1>One</h1>\n<p><em>two</em></p>\n",
		},
		{
			name:    "parallel files in order",
			args:    []string{"-j", "4", one, two, three},
			wantOut: "<h1>One</h1>\n<p><em>two</em></p>\n<hr>\n",
		},
		{
			name:    "html flags",
			args:    []string{"-html", "use_xhtml", three},
			wantOut: "<hr/>\n",
		},
		{
			name:    "extensions",
			args:    []string{"-ext", "strikethrough"},
			stdin:   "~~x~~\n",
			wantOut: "<p><del>x</del></p>\n",
		},
		{
			name:    "script",
			args:    []string{"-script", hrule, three},
			wantOut: "<HR/>",
		},
		{
			name:    "script replaces renderer",
			args:    []string{"-script", plain},
			stdin:   "x\n",
			wantOut: "[x]",
		},
		{
			name:    "script helper",
			args:    []string{"-script", helper},
			stdin:   "y\n",
			wantOut: "<p>y</p>\n<!-- <h1>x</h1> -->",
		},
		{
			name:     "script exception",
			args:     []string{"-script", throws, three},
			wantCode: 1,
			wantErr:  "nope",
		},
		{
			name:     "unknown html flag",
			args:     []string{"-html", "bogus"},
			wantCode: 2,
			wantErr:  `unknown html flag "bogus"`,
		},
		{
			name:     "unknown extension",
			args:     []string{"-ext", "bogus"},
			wantCode: 2,
			wantErr:  `unknown extension "bogus"`,
		},
		{
			name:     "nesting out of range",
			args:     []string{"-max-nesting", "0"},
			wantCode: 2,
			wantErr:  "max nesting 0 out of range",
		},
		{
			name:     "missing file",
			args:     []string{filepath.Join(dir, "missing.md")},
			wantCode: 1,
			wantErr:  "missing.md",
		},
		{
			name:     "missing plugin",
			args:     []string{"-plugin", filepath.Join(dir, "missing.wasm")},
			wantCode: 1,
			wantErr:  "read plugin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := runWithArgs(tt.args, strings.NewReader(tt.stdin), &stdout, &stderr)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if tt.wantOut != "" || tt.wantCode == 0 {
				if got := stdout.String(); got != tt.wantOut {
					t.Errorf("stdout = %q, want %q", got, tt.wantOut)
				}
			}
			if tt.wantErr != "" && !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantErr)
			}
		})
	}
}
