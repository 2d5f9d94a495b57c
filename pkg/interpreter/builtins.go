package interpreter

import (
	"slip/interpreter-go/pkg/runtime"
)

// CallContext gives a builtin access to the evaluator that invoked it, so
// function arguments (closures or builtins alike) run through the same
// application machinery as any other call.
type CallContext struct {
	interp *Interpreter
	env    runtime.Handle
}

// Interp exposes the invoking interpreter.
func (c *CallContext) Interp() *Interpreter {
	return c.interp
}

// Protect roots a temporary for the rest of the builtin invocation.
// Builtins must protect accumulators and partially-built results, since any
// allocation may trigger a collection.
func (c *CallContext) Protect(v runtime.Value) {
	c.interp.heap.PushRoot(v)
}

// Apply calls fn with already-evaluated arguments. The caller is
// responsible for keeping fn and args rooted.
func (c *CallContext) Apply(fn runtime.Value, args []runtime.Value) (runtime.Value, error) {
	switch fn.Kind {
	case runtime.KindBuiltin:
		return c.interp.invokeBuiltin(fn.Builtin, c.env, args)
	case runtime.KindClosure:
		cl, err := c.interp.heap.Closure(fn)
		if err != nil {
			return runtime.Nil, err
		}
		frame, err := c.interp.bindCall(cl, args)
		if err != nil {
			return runtime.Nil, err
		}
		return c.interp.eval(cl.Body, frame)
	default:
		return runtime.Nil, runtime.NewError(runtime.ErrNotAFunction,
			"%s is not a function", c.interp.Render(fn))
	}
}

// BuiltinFunc receives the fully evaluated argument list, in call order.
type BuiltinFunc func(ctx *CallContext, args []runtime.Value) (runtime.Value, error)

type builtinEntry struct {
	name string
	fn   BuiltinFunc
}

func (i *Interpreter) invokeBuiltin(id runtime.BuiltinID, env runtime.Handle, args []runtime.Value) (runtime.Value, error) {
	if id < 0 || int(id) >= len(i.builtins) {
		return runtime.Nil, runtime.NewError(runtime.ErrNotAFunction,
			"unknown builtin %d", id)
	}
	mark := i.heap.SaveRoots()
	defer i.heap.RestoreRoots(mark)
	ctx := &CallContext{interp: i, env: env}
	return i.builtins[id].fn(ctx, args)
}

// installBuiltins registers the builtin library and binds it in the global
// frame. Registration order fixes the BuiltinIDs for an instance.
func (i *Interpreter) installBuiltins() error {
	entries := []builtinEntry{
		{"+", builtinAdd},
		{"-", builtinSub},
		{"*", builtinMul},
		{"if", builtinIf},
		{"eq?", builtinEq},
		{"list", builtinList},
		{"map", builtinMap},
		{"filter", builtinFilter},
		{"reduce", builtinReduce},
	}
	i.builtins = entries
	for id, e := range entries {
		sym := i.symbols.Intern(e.name)
		if err := i.heap.Define(i.global, sym, runtime.BuiltinRef(runtime.BuiltinID(id))); err != nil {
			return err
		}
	}
	return nil
}

func numberArg(name string, args []runtime.Value, idx int) (float64, error) {
	if args[idx].Kind != runtime.KindNumber {
		return 0, runtime.NewError(runtime.ErrWrongType,
			"%s requires number arguments, got %s", name, args[idx].Kind)
	}
	return args[idx].Num, nil
}

// builtinAdd folds + over any arity, seeded with its identity 0.
func builtinAdd(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	result := 0.0
	for idx := range args {
		n, err := numberArg("+", args, idx)
		if err != nil {
			return runtime.Nil, err
		}
		result += n
	}
	return runtime.Number(result), nil
}

// builtinSub needs at least one argument; a single argument is negated.
func builtinSub(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	if len(args) == 0 {
		return runtime.Nil, runtime.NewError(runtime.ErrArityMismatch,
			"- requires at least one argument")
	}
	first, err := numberArg("-", args, 0)
	if err != nil {
		return runtime.Nil, err
	}
	if len(args) == 1 {
		return runtime.Number(-first), nil
	}
	result := first
	for idx := 1; idx < len(args); idx++ {
		n, err := numberArg("-", args, idx)
		if err != nil {
			return runtime.Nil, err
		}
		result -= n
	}
	return runtime.Number(result), nil
}

// builtinMul folds * over any arity, seeded with its identity 1.
func builtinMul(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	result := 1.0
	for idx := range args {
		n, err := numberArg("*", args, idx)
		if err != nil {
			return runtime.Nil, err
		}
		result *= n
	}
	return runtime.Number(result), nil
}

// builtinIf selects between two already-evaluated branches on a numeric
// condition. It is an ordinary builtin, so both branches are evaluated
// before it runs.
func builtinIf(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	if len(args) != 3 {
		return runtime.Nil, runtime.NewError(runtime.ErrArityMismatch,
			"if takes three arguments, got %d", len(args))
	}
	cond, err := numberArg("if", args, 0)
	if err != nil {
		return runtime.Nil, err
	}
	if cond != 0 {
		return args[1], nil
	}
	return args[2], nil
}

// builtinEq compares by value identity and yields 1 or 0.
func builtinEq(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	if len(args) != 2 {
		return runtime.Nil, runtime.NewError(runtime.ErrArityMismatch,
			"eq? takes two arguments, got %d", len(args))
	}
	if runtime.Eq(args[0], args[1]) {
		return runtime.Number(1), nil
	}
	return runtime.Number(0), nil
}

// builtinList builds a proper list of its arguments.
func builtinList(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	return buildList(ctx, args)
}

// buildList conses a slice into a Nil-terminated chain, right to left. Each
// partial list is the tail of the next allocation, which AllocPair roots,
// so a mid-build collection cannot reclaim it.
func buildList(ctx *CallContext, elems []runtime.Value) (runtime.Value, error) {
	acc := runtime.Nil
	for idx := len(elems) - 1; idx >= 0; idx-- {
		var err error
		acc, err = ctx.interp.heap.AllocPair(elems[idx], acc)
		if err != nil {
			return runtime.Nil, err
		}
	}
	return acc, nil
}

func functionArg(name string, args []runtime.Value, idx int) (runtime.Value, error) {
	if !runtime.IsFunction(args[idx]) {
		return runtime.Nil, runtime.NewError(runtime.ErrWrongType,
			"%s requires a function, got %s", name, args[idx].Kind)
	}
	return args[idx], nil
}

func listArg(ctx *CallContext, name string, args []runtime.Value, idx int) ([]runtime.Value, error) {
	if !runtime.IsList(args[idx]) {
		return nil, runtime.NewError(runtime.ErrWrongType,
			"%s requires a proper list, got %s", name, args[idx].Kind)
	}
	elems, err := ctx.interp.listElements(args[idx])
	if err != nil {
		return nil, runtime.NewError(runtime.ErrWrongType,
			"%s requires a proper list", name)
	}
	return elems, nil
}

// builtinMap applies fn to each element in list order and returns a new
// list of the results. The input list is never mutated.
func builtinMap(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	if len(args) != 2 {
		return runtime.Nil, runtime.NewError(runtime.ErrArityMismatch,
			"map takes two arguments, got %d", len(args))
	}
	fn, err := functionArg("map", args, 0)
	if err != nil {
		return runtime.Nil, err
	}
	elems, err := listArg(ctx, "map", args, 1)
	if err != nil {
		return runtime.Nil, err
	}
	results := make([]runtime.Value, 0, len(elems))
	callArgs := make([]runtime.Value, 1)
	for _, elem := range elems {
		callArgs[0] = elem
		val, err := ctx.Apply(fn, callArgs)
		if err != nil {
			return runtime.Nil, err
		}
		ctx.Protect(val)
		results = append(results, val)
	}
	return buildList(ctx, results)
}

// builtinFilter keeps the elements for which fn yields a nonzero number,
// preserving order.
func builtinFilter(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	if len(args) != 2 {
		return runtime.Nil, runtime.NewError(runtime.ErrArityMismatch,
			"filter takes two arguments, got %d", len(args))
	}
	fn, err := functionArg("filter", args, 0)
	if err != nil {
		return runtime.Nil, err
	}
	elems, err := listArg(ctx, "filter", args, 1)
	if err != nil {
		return runtime.Nil, err
	}
	var kept []runtime.Value
	callArgs := make([]runtime.Value, 1)
	for _, elem := range elems {
		callArgs[0] = elem
		verdict, err := ctx.Apply(fn, callArgs)
		if err != nil {
			return runtime.Nil, err
		}
		if verdict.Kind != runtime.KindNumber {
			return runtime.Nil, runtime.NewError(runtime.ErrWrongType,
				"filter predicate must yield a number, got %s", verdict.Kind)
		}
		if verdict.Num != 0 {
			kept = append(kept, elem)
		}
	}
	return buildList(ctx, kept)
}

// builtinReduce left-folds fn(accumulator, element) over the list, seeded
// with initial. An empty list yields initial unchanged.
func builtinReduce(ctx *CallContext, args []runtime.Value) (runtime.Value, error) {
	if len(args) != 3 {
		return runtime.Nil, runtime.NewError(runtime.ErrArityMismatch,
			"reduce takes three arguments, got %d", len(args))
	}
	fn, err := functionArg("reduce", args, 0)
	if err != nil {
		return runtime.Nil, err
	}
	elems, err := listArg(ctx, "reduce", args, 2)
	if err != nil {
		return runtime.Nil, err
	}
	acc := args[1]
	callArgs := make([]runtime.Value, 2)
	for _, elem := range elems {
		callArgs[0] = acc
		callArgs[1] = elem
		acc, err = ctx.Apply(fn, callArgs)
		if err != nil {
			return runtime.Nil, err
		}
		ctx.Protect(acc)
	}
	return acc, nil
}
