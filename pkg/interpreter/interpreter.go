package interpreter

import (
	"slip/interpreter-go/pkg/runtime"
)

// Interpreter is one self-contained evaluation instance: heap, symbol
// table, builtin table, and global environment. Instances are independent;
// values and handles from one must not be passed to another.
type Interpreter struct {
	heap     *runtime.Heap
	symbols  *runtime.Interner
	builtins []builtinEntry
	global   runtime.Handle

	maxSteps int
	steps    int

	symQuote  runtime.SymbolID
	symDefine runtime.SymbolID
	symLambda runtime.SymbolID
	symIf     runtime.SymbolID
}

// New constructs an interpreter whose global frame is pre-populated with the
// builtin library.
func New(cfg runtime.Config) (*Interpreter, error) {
	i := &Interpreter{
		heap:     runtime.NewHeap(cfg),
		symbols:  runtime.NewInterner(),
		maxSteps: cfg.MaxSteps,
	}
	i.symQuote = i.symbols.Intern("quote")
	i.symDefine = i.symbols.Intern("define")
	i.symLambda = i.symbols.Intern("lambda")
	i.symIf = i.symbols.Intern("if")

	global, err := i.heap.NewFrame(runtime.InvalidHandle)
	if err != nil {
		return nil, err
	}
	i.global = global
	i.heap.AddPersistentRoot(global)

	if err := i.installBuiltins(); err != nil {
		return nil, err
	}
	return i, nil
}

// NewDefault constructs an interpreter with default limits.
func NewDefault() (*Interpreter, error) {
	return New(runtime.Config{})
}

// Heap exposes the instance's allocator, for the reader and for host
// diagnostics.
func (i *Interpreter) Heap() *runtime.Heap {
	return i.heap
}

// Symbols exposes the instance's interner.
func (i *Interpreter) Symbols() *runtime.Interner {
	return i.symbols
}

// GlobalEnvironment returns the global frame handle.
func (i *Interpreter) GlobalEnvironment() runtime.Handle {
	return i.global
}

// Collect triggers an explicit collection and reports what it freed.
func (i *Interpreter) Collect() runtime.Stats {
	return i.heap.Collect()
}

// Render formats a value in its external textual form.
func (i *Interpreter) Render(v runtime.Value) string {
	return runtime.Render(i.heap, i.symbols, v)
}

// Eval evaluates one expression in the given environment. The result is
// pinned on the heap until the next Eval, so hosts may collect between
// calls without losing it.
func (i *Interpreter) Eval(expr runtime.Value, env runtime.Handle) (runtime.Value, error) {
	i.steps = 0
	i.heap.ClearPins()
	val, err := i.eval(expr, env)
	if err != nil {
		return runtime.Nil, err
	}
	i.heap.Pin(val)
	return val, nil
}

// eval is the trampoline: an explicit loop over (expression, environment)
// pairs. A closure call in tail position replaces the pair and continues
// the loop, so tail calls consume no native stack.
func (i *Interpreter) eval(expr runtime.Value, env runtime.Handle) (runtime.Value, error) {
	h := i.heap
	mark := h.SaveRoots()
	defer h.RestoreRoots(mark)

	for {
		i.steps++
		if i.maxSteps > 0 && i.steps > i.maxSteps {
			return runtime.Nil, runtime.NewError(runtime.ErrResourceExhausted,
				"evaluation exceeded %d steps", i.maxSteps)
		}

		// Only the current expression and environment survive a loop
		// iteration; temporaries from the previous one are dropped.
		h.RestoreRoots(mark)
		h.PushRoot(expr)
		h.PushFrameRoot(env)

		switch expr.Kind {
		case runtime.KindNumber, runtime.KindNil, runtime.KindClosure, runtime.KindBuiltin:
			return expr, nil

		case runtime.KindSymbol:
			val, err := h.Lookup(env, expr.Sym)
			if err != nil {
				if runtime.CodeOf(err) == runtime.ErrUnboundSymbol {
					return runtime.Nil, runtime.NewError(runtime.ErrUnboundSymbol,
						"unbound symbol '%s'", i.symbols.Name(expr.Sym))
				}
				return runtime.Nil, err
			}
			return val, nil

		case runtime.KindPair:
			p, err := h.Pair(expr)
			if err != nil {
				return runtime.Nil, err
			}
			head, tail := p.Head, p.Tail

			if head.Kind == runtime.KindSymbol {
				switch head.Sym {
				case i.symQuote:
					return i.evalQuote(tail)
				case i.symDefine:
					return i.evalDefine(tail, env)
				case i.symLambda:
					return i.evalLambda(tail, env)
				case i.symIf:
					branch, err := i.evalIf(tail, env)
					if err != nil {
						return runtime.Nil, err
					}
					// The taken branch is a tail position.
					expr = branch
					continue
				}
			}

			op, err := i.eval(head, env)
			if err != nil {
				return runtime.Nil, err
			}
			h.PushRoot(op)

			args, err := i.evalArgs(tail, env)
			if err != nil {
				return runtime.Nil, err
			}

			switch op.Kind {
			case runtime.KindBuiltin:
				return i.invokeBuiltin(op.Builtin, env, args)

			case runtime.KindClosure:
				cl, err := h.Closure(op)
				if err != nil {
					return runtime.Nil, err
				}
				frame, err := i.bindCall(cl, args)
				if err != nil {
					return runtime.Nil, err
				}
				// Tail call: continue the loop with the closure's body in
				// the new frame instead of recursing.
				expr = cl.Body
				env = frame
				continue

			default:
				return runtime.Nil, runtime.NewError(runtime.ErrNotAFunction,
					"%s is not a function", i.Render(op))
			}

		default:
			return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
				"cannot evaluate %s", expr.Kind)
		}
	}
}

// evalArgs evaluates an argument list left to right, rooting each result.
// The order is fixed and observable.
func (i *Interpreter) evalArgs(list runtime.Value, env runtime.Handle) ([]runtime.Value, error) {
	var args []runtime.Value
	for list.Kind != runtime.KindNil {
		p, err := i.heap.Pair(list)
		if err != nil {
			return nil, runtime.NewError(runtime.ErrMalformedExpression,
				"improper argument list")
		}
		val, err := i.eval(p.Head, env)
		if err != nil {
			return nil, err
		}
		i.heap.PushRoot(val)
		args = append(args, val)
		list = p.Tail
	}
	return args, nil
}

// evalQuote handles (quote x): one required argument, returned unevaluated.
func (i *Interpreter) evalQuote(tail runtime.Value) (runtime.Value, error) {
	forms, err := i.listElements(tail)
	if err != nil {
		return runtime.Nil, err
	}
	if len(forms) != 1 {
		return runtime.Nil, runtime.NewError(runtime.ErrArityMismatch,
			"quote takes one argument, got %d", len(forms))
	}
	return forms[0], nil
}

// evalDefine handles (define name expr): the value is evaluated first, then
// bound in the current frame. A failure after the evaluation leaves earlier
// side effects visible, matching imperative order.
func (i *Interpreter) evalDefine(tail runtime.Value, env runtime.Handle) (runtime.Value, error) {
	forms, err := i.listElements(tail)
	if err != nil {
		return runtime.Nil, err
	}
	if len(forms) != 2 {
		return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
			"define takes a name and a value, got %d forms", len(forms))
	}
	name := forms[0]
	if name.Kind != runtime.KindSymbol {
		return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
			"define requires a symbol name, got %s", name.Kind)
	}
	val, err := i.eval(forms[1], env)
	if err != nil {
		return runtime.Nil, err
	}
	i.heap.PushRoot(val)
	if err := i.heap.Define(env, name.Sym, val); err != nil {
		return runtime.Nil, err
	}
	return val, nil
}

// evalLambda handles (lambda (params...) body): a new closure capturing env
// by reference. The body is not evaluated yet.
func (i *Interpreter) evalLambda(tail runtime.Value, env runtime.Handle) (runtime.Value, error) {
	forms, err := i.listElements(tail)
	if err != nil {
		return runtime.Nil, err
	}
	if len(forms) != 2 {
		return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
			"lambda takes a parameter list and a body, got %d forms", len(forms))
	}
	paramForms, err := i.listElements(forms[0])
	if err != nil {
		return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
			"lambda parameters must be a list")
	}
	params := make([]runtime.SymbolID, 0, len(paramForms))
	for _, pf := range paramForms {
		if pf.Kind != runtime.KindSymbol {
			return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
				"lambda parameter must be a symbol, got %s", pf.Kind)
		}
		for _, seen := range params {
			if seen == pf.Sym {
				return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
					"duplicate lambda parameter '%s'", i.symbols.Name(pf.Sym))
			}
		}
		params = append(params, pf.Sym)
	}
	return i.heap.AllocClosure(params, forms[1], env)
}

// evalIf handles (if cond then else) as a special form: only the taken
// branch is evaluated, which is what lets conditional self-tail-calls
// terminate. The condition must be a number; nonzero selects then. The
// symbol is also bound to an eager builtin for value position, but in
// application position the special form wins.
func (i *Interpreter) evalIf(tail runtime.Value, env runtime.Handle) (runtime.Value, error) {
	forms, err := i.listElements(tail)
	if err != nil {
		return runtime.Nil, err
	}
	if len(forms) != 3 {
		return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
			"if takes a condition and two branches, got %d forms", len(forms))
	}
	cond, err := i.eval(forms[0], env)
	if err != nil {
		return runtime.Nil, err
	}
	if cond.Kind != runtime.KindNumber {
		return runtime.Nil, runtime.NewError(runtime.ErrWrongType,
			"if condition must be a number, got %s", cond.Kind)
	}
	if cond.Num != 0 {
		return forms[1], nil
	}
	return forms[2], nil
}

// bindCall allocates the one frame a closure invocation gets, parented at
// the captured frame (not the caller's), and binds parameters positionally.
func (i *Interpreter) bindCall(cl *runtime.Closure, args []runtime.Value) (runtime.Handle, error) {
	if len(args) != len(cl.Params) {
		return runtime.InvalidHandle, runtime.NewError(runtime.ErrArityMismatch,
			"function takes %d arguments, got %d", len(cl.Params), len(args))
	}
	frame, err := i.heap.NewFrame(cl.Env)
	if err != nil {
		return runtime.InvalidHandle, err
	}
	i.heap.PushFrameRoot(frame)
	for idx, sym := range cl.Params {
		if err := i.heap.Define(frame, sym, args[idx]); err != nil {
			return runtime.InvalidHandle, err
		}
	}
	return frame, nil
}

// listElements collects a proper list's elements, failing on dotted tails.
func (i *Interpreter) listElements(list runtime.Value) ([]runtime.Value, error) {
	var out []runtime.Value
	for list.Kind != runtime.KindNil {
		p, err := i.heap.Pair(list)
		if err != nil {
			return nil, runtime.NewError(runtime.ErrMalformedExpression, "improper list")
		}
		out = append(out, p.Head)
		list = p.Tail
	}
	return out, nil
}
