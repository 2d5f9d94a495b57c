package interpreter

import (
	"testing"

	"slip/interpreter-go/pkg/reader"
	"slip/interpreter-go/pkg/runtime"
)

func newTestInterp(t *testing.T, cfg runtime.Config) *Interpreter {
	t.Helper()
	interp, err := New(cfg)
	if err != nil {
		t.Fatalf("interpreter construction failed: %v", err)
	}
	return interp
}

// evalSource reads and evaluates every form in src against the global
// environment, returning the last result.
func evalSource(t *testing.T, interp *Interpreter, src string) (runtime.Value, error) {
	t.Helper()
	heap := interp.Heap()
	mark := heap.SaveRoots()
	defer heap.RestoreRoots(mark)

	r := reader.New(heap, interp.Symbols(), src)
	last := runtime.Nil
	for {
		form, ok, err := r.Read()
		if err != nil {
			t.Fatalf("read error in %q: %v", src, err)
		}
		if !ok {
			return last, nil
		}
		last, err = interp.Eval(form, interp.GlobalEnvironment())
		if err != nil {
			return runtime.Nil, err
		}
	}
}

func mustEval(t *testing.T, interp *Interpreter, src string) runtime.Value {
	t.Helper()
	val, err := evalSource(t, interp, src)
	if err != nil {
		t.Fatalf("evaluation of %q failed: %v", src, err)
	}
	return val
}

func wantNumber(t *testing.T, val runtime.Value, want float64) {
	t.Helper()
	if val.Kind != runtime.KindNumber || val.Num != want {
		t.Fatalf("expected number %v, got %#v", want, val)
	}
}

func wantCode(t *testing.T, err error, code runtime.ErrorCode) {
	t.Helper()
	if runtime.CodeOf(err) != code {
		t.Fatalf("expected %v, got %v", code, err)
	}
}

func TestSelfEvaluatingForms(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	val, err := interp.Eval(runtime.Number(42), interp.GlobalEnvironment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantNumber(t, val, 42)

	val, err = interp.Eval(runtime.Nil, interp.GlobalEnvironment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val.Kind != runtime.KindNil {
		t.Fatalf("expected nil, got %#v", val)
	}
}

func TestQuoteReturnsUnevaluated(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	val := mustEval(t, interp, "(quote (1 2 3))")
	if got := interp.Render(val); got != "(1 2 3)" {
		t.Fatalf("unexpected quote result %q", got)
	}
}

func TestQuoteArity(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(quote)")
	wantCode(t, err, runtime.ErrArityMismatch)
	_, err = evalSource(t, interp, "(quote 1 2)")
	wantCode(t, err, runtime.ErrArityMismatch)
}

func TestDefineThenLookup(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	wantNumber(t, mustEval(t, interp, "(define x 10)"), 10)
	wantNumber(t, mustEval(t, interp, "x"), 10)
}

func TestArithmetic(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	wantNumber(t, mustEval(t, interp, "(+ 1 2 3)"), 6)
	wantNumber(t, mustEval(t, interp, "(* 2 3 4)"), 24)
	wantNumber(t, mustEval(t, interp, "(- 10 3 2)"), 5)
	wantNumber(t, mustEval(t, interp, "(- 5)"), -5)
	wantNumber(t, mustEval(t, interp, "(+)"), 0)
	wantNumber(t, mustEval(t, interp, "(*)"), 1)
}

func TestClosureApplication(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	wantNumber(t, mustEval(t, interp, "((lambda (x) (* x x)) 7)"), 49)
}

func TestArgumentsEvaluateLeftToRight(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	// Each argument redefines order; the final binding shows the last
	// evaluation performed.
	mustEval(t, interp, "(+ (define order 1) (define order 2) (define order 3))")
	wantNumber(t, mustEval(t, interp, "order"), 3)
}

func TestLexicalScoping(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	mustEval(t, interp, "(define make (lambda (y) (lambda (x) (* x y))))")
	mustEval(t, interp, "(define times10 (make 10))")
	// Later unrelated defines in the global frame must not disturb the
	// captured y.
	mustEval(t, interp, "(define y 99)")
	mustEval(t, interp, "(define unrelated 1)")
	wantNumber(t, mustEval(t, interp, "(times10 2)"), 20)
}

func TestClosureSharesDefiningFrame(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	// Both closures capture the same invocation frame of make, so they
	// observe the same binding, by reference.
	mustEval(t, interp, "(define make (lambda (n) (list (lambda () n) (lambda () n))))")
	mustEval(t, interp, "(define pair (make 5))")
	wantNumber(t, mustEval(t, interp, "((reduce (lambda (a b) b) 0 pair))"), 5)
}

func TestIfSelectsBranchLazily(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	// The untaken branch would fail with unbound_symbol if evaluated.
	wantNumber(t, mustEval(t, interp, "(if 1 42 nonexistent)"), 42)
	wantNumber(t, mustEval(t, interp, "(if 0 nonexistent 43)"), 43)
}

func TestIfConditionMustBeNumber(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(if (quote a) 1 2)")
	wantCode(t, err, runtime.ErrWrongType)
}

func TestIfShape(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(if 1 2)")
	wantCode(t, err, runtime.ErrMalformedExpression)
}

func TestIfUsableAsValue(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	// In value position the symbol resolves to the eager builtin.
	wantNumber(t, mustEval(t, interp, "((lambda (f) (f 1 10 20)) if)"), 10)
}

func TestTailCallIteration(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	mustEval(t, interp, "(define loop (lambda (n) (if (eq? n 0) 0 (loop (- n 1)))))")
	wantNumber(t, mustEval(t, interp, "(loop 1000000)"), 0)
}

func TestMutualTailCalls(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	mustEval(t, interp, "(define even? (lambda (n) (if (eq? n 0) 1 (odd? (- n 1)))))")
	mustEval(t, interp, "(define odd? (lambda (n) (if (eq? n 0) 0 (even? (- n 1)))))")
	wantNumber(t, mustEval(t, interp, "(even? 100001)"), 0)
}

func TestUnboundSymbol(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "nonexistent")
	wantCode(t, err, runtime.ErrUnboundSymbol)
}

func TestNotAFunction(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(1 2 3)")
	wantCode(t, err, runtime.ErrNotAFunction)
}

func TestClosureArityMismatch(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "((lambda (x y) x) 1)")
	wantCode(t, err, runtime.ErrArityMismatch)
}

func TestWrongTypeArithmetic(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(+ 1 (quote a))")
	wantCode(t, err, runtime.ErrWrongType)
}

func TestMalformedDefine(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(define x)")
	wantCode(t, err, runtime.ErrMalformedExpression)
	_, err = evalSource(t, interp, "(define 3 4)")
	wantCode(t, err, runtime.ErrMalformedExpression)
}

func TestMalformedLambda(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(lambda (x 1) x)")
	wantCode(t, err, runtime.ErrMalformedExpression)
	_, err = evalSource(t, interp, "(lambda (x x) x)")
	wantCode(t, err, runtime.ErrMalformedExpression)
	_, err = evalSource(t, interp, "(lambda (x))")
	wantCode(t, err, runtime.ErrMalformedExpression)
}

func TestDefineSideEffectsSurviveLaterFailure(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	_, err := evalSource(t, interp, "(+ (define a 5) (quote b))")
	wantCode(t, err, runtime.ErrWrongType)
	// The binding made before the failure stays visible.
	wantNumber(t, mustEval(t, interp, "a"), 5)
}

func TestResourceExhausted(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{MaxSteps: 1000})
	mustEval(t, interp, "(define spin (lambda (n) (spin n)))")
	_, err := evalSource(t, interp, "(spin 0)")
	wantCode(t, err, runtime.ErrResourceExhausted)

	// The budget is per Eval call; the session stays usable.
	wantNumber(t, mustEval(t, interp, "(+ 1 2)"), 3)
}

func TestCollectDuringEvaluation(t *testing.T) {
	// A tiny threshold forces collections at arbitrary allocation points
	// inside builtins and the reader; rooted temporaries must survive.
	interp := newTestInterp(t, runtime.Config{GCThreshold: 16})
	src := "(reduce + 0 (map (lambda (x) (* x x)) (list 1 2 3 4 5 6 7 8 9 10)))"
	for round := 0; round < 50; round++ {
		wantNumber(t, mustEval(t, interp, src), 385)
	}
}

func TestEvalResultPinnedAcrossCollect(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	val := mustEval(t, interp, "(list 1 2 3)")
	interp.Collect()
	if got := interp.Render(val); got != "(1 2 3)" {
		t.Fatalf("result reclaimed by explicit collection: %q", got)
	}
}

func TestExplicitCollectStats(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	baselineStats := interp.Collect()
	mustEval(t, interp, "(define keep (quote (1 2 3)))")
	interp.Heap().ClearPins()

	stats := interp.Collect()
	if stats.Retained < baselineStats.Retained+3 {
		t.Fatalf("kept list not retained: %+v (baseline %+v)", stats, baselineStats)
	}

	again := interp.Collect()
	if again.Freed != 0 {
		t.Fatalf("idempotence violated, second collect freed %d", again.Freed)
	}
}

func TestInterpreterInstancesAreIsolated(t *testing.T) {
	a := newTestInterp(t, runtime.Config{})
	b := newTestInterp(t, runtime.Config{})
	mustEval(t, a, "(define x 1)")
	_, err := evalSource(t, b, "x")
	wantCode(t, err, runtime.ErrUnboundSymbol)
}

func TestGlobalFrameSurvivesCollections(t *testing.T) {
	interp := newTestInterp(t, runtime.Config{})
	mustEval(t, interp, "(define x 10)")
	interp.Collect()
	interp.Collect()
	wantNumber(t, mustEval(t, interp, "x"), 10)
}
