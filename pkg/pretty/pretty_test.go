package pretty

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/weave/pkg/bytecode"
)

func TestPrinterLayout(t *testing.T) {
	p := New(20).
		KV("Target", "%s", "demo/A").
		KV("Frame Size", "%d", 3).
		HR().
		Add("row %d", 1)

	out := p.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6:\n%s", len(lines), out)
	}
	width := len(lines[0])
	for i, l := range lines {
		if len(l) != width {
			t.Errorf("line %d width = %d, want %d: %q", i, len(l), width, l)
		}
	}
	if !strings.HasPrefix(lines[1], "/*     Target : demo/A") {
		t.Errorf("key not right-aligned: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "/* Frame Size : 3") {
		t.Errorf("line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "/* ----") {
		t.Errorf("rule = %q", lines[3])
	}
}

func TestPrinterGrowsToContent(t *testing.T) {
	long := strings.Repeat("x", 50)
	out := New(10).Add("%s", long).String()
	first := strings.SplitN(out, "\n", 2)[0]
	if len(first) != 50+6 {
		t.Errorf("border width = %d, want %d", len(first), 56)
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	if err := New(0).Add("hello").Print(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "/* hello") {
		t.Errorf("Print() = %q", buf.String())
	}
}

func TestSignature(t *testing.T) {
	tests := []struct {
		name, desc string
		args       []string
		want       string
	}{
		{"tick", "(ILweave/lang/String;)V", []string{"delta", "label"}, "void tick(int delta, String label)"},
		{"f", "(J[I)Z", nil, "boolean f(long, int[])"},
		{"g", "bogus", nil, "gbogus"},
	}
	for _, tt := range tests {
		if got := Signature(tt.name, tt.desc, tt.args); got != tt.want {
			t.Errorf("Signature(%s%s) = %q, want %q", tt.name, tt.desc, got, tt.want)
		}
	}
	if got := TypeName(bytecode.ArrayOf(bytecode.StringType)); got != "String[]" {
		t.Errorf("TypeName() = %q", got)
	}
}
