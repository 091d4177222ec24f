package scripting

import (
	"context"
	"testing"
)

func TestInspect_BenignScript(t *testing.T) {
	insp, err := NewInspector().Inspect(context.Background(), []byte(`var x = 1 + 2;`))
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !insp.Compiles {
		t.Fatalf("benign script should compile: %s", insp.CompileError)
	}
	if insp.Suspicious() {
		t.Fatalf("unexpected findings: %v", insp.Findings)
	}
}

func TestInspect_EvalDetected(t *testing.T) {
	insp, err := NewInspector().Inspect(context.Background(), []byte(`eval(payload);`))
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !insp.Suspicious() {
		t.Fatal("eval call not flagged")
	}
}

func TestInspect_KnownExploitAPI(t *testing.T) {
	src := []byte(`var s = unescape("%u9090%u9090"); util.printf("%45000f", 0);`)
	insp, err := NewInspector().Inspect(context.Background(), src)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if len(insp.Findings) < 3 {
		t.Fatalf("expected unescape, NOP sled and util.printf findings, got %v", insp.Findings)
	}
}

func TestInspect_BrokenSyntaxStillMatched(t *testing.T) {
	src := []byte(`this is not javascript but mentions String.fromCharCode anyway`)
	insp, err := NewInspector().Inspect(context.Background(), src)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if insp.Compiles {
		t.Fatal("garbage should not compile")
	}
	if insp.CompileError == "" {
		t.Fatal("expected a compile error message")
	}
	if !insp.Suspicious() {
		t.Fatal("pattern in non-compiling source not flagged")
	}
}
