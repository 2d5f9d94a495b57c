package runtime

import "fmt"

// Kind identifies the runtime value category.
type Kind int

const (
	KindNil Kind = iota
	KindNumber
	KindSymbol
	KindPair
	KindClosure
	KindBuiltin
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindNumber:
		return "number"
	case KindSymbol:
		return "symbol"
	case KindPair:
		return "pair"
	case KindClosure:
		return "closure"
	case KindBuiltin:
		return "builtin"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// SymbolID is the interned identity of a symbol. Two symbols with the same
// text always carry the same id within one Interner.
type SymbolID int32

// BuiltinID indexes the interpreter's builtin table.
type BuiltinID int32

// Handle references a heap object inside a Heap's registry. Handles are only
// produced by the Heap and stay valid until the object is reclaimed.
type Handle int32

// InvalidHandle is the absent-handle sentinel (for example, the global
// frame's parent).
const InvalidHandle Handle = -1

// Value is the tagged representation of every runtime datum. Numbers,
// symbols, builtins, and the empty list are immediate; pairs and closures
// reference heap objects through their Handle.
type Value struct {
	Kind    Kind
	Num     float64
	Sym     SymbolID
	Builtin BuiltinID
	Handle  Handle
}

// Nil is the empty-list marker. The zero Value is Nil.
var Nil = Value{Kind: KindNil}

func Number(v float64) Value {
	return Value{Kind: KindNumber, Num: v}
}

func Symbol(id SymbolID) Value {
	return Value{Kind: KindSymbol, Sym: id}
}

func BuiltinRef(id BuiltinID) Value {
	return Value{Kind: KindBuiltin, Builtin: id}
}

func pairRef(h Handle) Value {
	return Value{Kind: KindPair, Handle: h}
}

func closureRef(h Handle) Value {
	return Value{Kind: KindClosure, Handle: h}
}

// Eq reports value identity: numbers compare by IEEE-754 equality, symbols
// and builtins by id, pairs and closures by handle, and Nil equals Nil.
// This matches Lisp eq? semantics, not structural equality.
func Eq(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindNumber:
		return a.Num == b.Num
	case KindSymbol:
		return a.Sym == b.Sym
	case KindBuiltin:
		return a.Builtin == b.Builtin
	default:
		return a.Handle == b.Handle
	}
}

// IsList reports whether v is Nil or a pair, i.e. can head a proper list.
func IsList(v Value) bool {
	return v.Kind == KindNil || v.Kind == KindPair
}

// IsFunction reports whether v can sit in application position.
func IsFunction(v Value) bool {
	return v.Kind == KindClosure || v.Kind == KindBuiltin
}
