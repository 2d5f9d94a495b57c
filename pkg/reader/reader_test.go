package reader

import (
	"testing"

	"slip/interpreter-go/pkg/runtime"
)

func readOne(t *testing.T, h *runtime.Heap, in *runtime.Interner, src string) runtime.Value {
	t.Helper()
	forms, err := ReadAll(h, in, src)
	if err != nil {
		t.Fatalf("read of %q failed: %v", src, err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected one form in %q, got %d", src, len(forms))
	}
	return forms[0]
}

func TestReadNumber(t *testing.T) {
	h := runtime.NewHeap(runtime.Config{})
	in := runtime.NewInterner()
	val := readOne(t, h, in, "42")
	if val.Kind != runtime.KindNumber || val.Num != 42 {
		t.Fatalf("unexpected value %#v", val)
	}
	val = readOne(t, h, in, "-2.5")
	if val.Kind != runtime.KindNumber || val.Num != -2.5 {
		t.Fatalf("unexpected value %#v", val)
	}
}

func TestReadSymbol(t *testing.T) {
	h := runtime.NewHeap(runtime.Config{})
	in := runtime.NewInterner()
	val := readOne(t, h, in, "foo")
	if val.Kind != runtime.KindSymbol || in.Name(val.Sym) != "foo" {
		t.Fatalf("unexpected value %#v", val)
	}
	// A lone minus is a symbol, not a number.
	val = readOne(t, h, in, "-")
	if val.Kind != runtime.KindSymbol || in.Name(val.Sym) != "-" {
		t.Fatalf("unexpected value %#v", val)
	}
}

func TestReadNestedList(t *testing.T) {
	h := runtime.NewHeap(runtime.Config{})
	in := runtime.NewInterner()
	val := readOne(t, h, in, "(1 (2 3) ())")
	if got := runtime.Render(h, in, val); got != "(1 (2 3) ())" {
		t.Fatalf("round trip produced %q", got)
	}
}

func TestReadQuoteShorthand(t *testing.T) {
	h := runtime.NewHeap(runtime.Config{})
	in := runtime.NewInterner()
	val := readOne(t, h, in, "'(1 2)")
	if got := runtime.Render(h, in, val); got != "(quote (1 2))" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestReadSkipsComments(t *testing.T) {
	h := runtime.NewHeap(runtime.Config{})
	in := runtime.NewInterner()
	val := readOne(t, h, in, "; heading\n(+ 1 2) ; trailing")
	if got := runtime.Render(h, in, val); got != "(+ 1 2)" {
		t.Fatalf("unexpected form %q", got)
	}
}

func TestReadMultipleForms(t *testing.T) {
	h := runtime.NewHeap(runtime.Config{})
	in := runtime.NewInterner()
	forms, err := ReadAll(h, in, "(define x 1)\nx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forms) != 2 {
		t.Fatalf("expected 2 forms, got %d", len(forms))
	}
}

func TestReadErrors(t *testing.T) {
	h := runtime.NewHeap(runtime.Config{})
	in := runtime.NewInterner()

	if _, err := ReadAll(h, in, "(1 2"); runtime.CodeOf(err) != runtime.ErrMalformedExpression {
		t.Fatalf("expected malformed_expression for open list, got %v", err)
	}
	if _, err := ReadAll(h, in, ")"); runtime.CodeOf(err) != runtime.ErrMalformedExpression {
		t.Fatalf("expected malformed_expression for stray close, got %v", err)
	}
	if _, err := ReadAll(h, in, "'"); runtime.CodeOf(err) != runtime.ErrMalformedExpression {
		t.Fatalf("expected malformed_expression for dangling quote, got %v", err)
	}
}

func TestBalanced(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"", true},
		{"(+ 1 2)", true},
		{"(define f (lambda (x)", false},
		{"(a (b) ", false},
		{"; (comment only", true},
	}
	for _, tc := range cases {
		if got := Balanced(tc.src); got != tc.want {
			t.Fatalf("Balanced(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestReadSurvivesCollectionPressure(t *testing.T) {
	// With a tiny threshold the reader's own allocations trigger
	// collections mid-parse; partially-built lists must stay rooted.
	h := runtime.NewHeap(runtime.Config{GCThreshold: 4})
	in := runtime.NewInterner()
	mark := h.SaveRoots()
	defer h.RestoreRoots(mark)

	val := readOne(t, h, in, "(1 (2 (3 (4 (5 6 7 8)))) 9 10 11 12)")
	if got := runtime.Render(h, in, val); got != "(1 (2 (3 (4 (5 6 7 8)))) 9 10 11 12)" {
		t.Fatalf("round trip produced %q", got)
	}
}
