// Package reader turns source text into runtime value trees of numbers,
// symbols, pairs, and Nil. It is the parser collaborator in front of the
// evaluator: it produces proper Nil-terminated lists only, never cycles or
// dotted tails.
package reader

import (
	"strconv"

	"slip/interpreter-go/pkg/runtime"
)

// Reader tokenizes and parses one source string against a specific
// interpreter heap and interner.
type Reader struct {
	heap    *runtime.Heap
	symbols *runtime.Interner
	tokens  []string
	index   int
}

// New prepares a reader for src. Values it builds are allocated on heap and
// interned in symbols, so they belong to that interpreter instance.
func New(heap *runtime.Heap, symbols *runtime.Interner, src string) *Reader {
	return &Reader{heap: heap, symbols: symbols, tokens: tokenize(src)}
}

// ReadAll parses every top-level form in the source. Each returned value is
// rooted on the heap; the caller restores the root stack once it is done
// with them (typically after evaluating each form).
func ReadAll(heap *runtime.Heap, symbols *runtime.Interner, src string) ([]runtime.Value, error) {
	r := New(heap, symbols, src)
	var forms []runtime.Value
	for {
		form, ok, err := r.Read()
		if err != nil {
			return nil, err
		}
		if !ok {
			return forms, nil
		}
		forms = append(forms, form)
	}
}

// Read parses the next top-level form. ok is false at end of input. The
// form is pushed onto the heap's root stack so a collection triggered by
// later allocations cannot reclaim it.
func (r *Reader) Read() (form runtime.Value, ok bool, err error) {
	if _, more := r.peek(); !more {
		return runtime.Nil, false, nil
	}
	form, err = r.readForm()
	if err != nil {
		return runtime.Nil, false, err
	}
	r.heap.PushRoot(form)
	return form, true, nil
}

func (r *Reader) peek() (string, bool) {
	if r.index >= len(r.tokens) {
		return "", false
	}
	return r.tokens[r.index], true
}

func (r *Reader) next() (string, bool) {
	tok, ok := r.peek()
	if ok {
		r.index++
	}
	return tok, ok
}

func (r *Reader) readForm() (runtime.Value, error) {
	tok, ok := r.next()
	if !ok {
		return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
			"unexpected end of input")
	}
	switch tok {
	case "(":
		return r.readList()
	case ")":
		return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
			"unexpected ')'")
	case "'":
		quoted, err := r.readForm()
		if err != nil {
			return runtime.Nil, err
		}
		return r.quoteForm(quoted)
	default:
		return r.readAtom(tok)
	}
}

// readList parses forms up to the closing paren and conses them right to
// left. Elements are rooted while the list is under construction, so the
// collector may run at any allocation point in between.
func (r *Reader) readList() (runtime.Value, error) {
	mark := r.heap.SaveRoots()
	defer r.heap.RestoreRoots(mark)

	var elems []runtime.Value
	for {
		tok, ok := r.peek()
		if !ok {
			return runtime.Nil, runtime.NewError(runtime.ErrMalformedExpression,
				"unterminated list")
		}
		if tok == ")" {
			r.index++
			break
		}
		elem, err := r.readForm()
		if err != nil {
			return runtime.Nil, err
		}
		r.heap.PushRoot(elem)
		elems = append(elems, elem)
	}

	list := runtime.Nil
	for idx := len(elems) - 1; idx >= 0; idx-- {
		var err error
		list, err = r.heap.AllocPair(elems[idx], list)
		if err != nil {
			return runtime.Nil, err
		}
	}
	return list, nil
}

// quoteForm wraps v as (quote v).
func (r *Reader) quoteForm(v runtime.Value) (runtime.Value, error) {
	mark := r.heap.SaveRoots()
	defer r.heap.RestoreRoots(mark)
	r.heap.PushRoot(v)

	tail, err := r.heap.AllocPair(v, runtime.Nil)
	if err != nil {
		return runtime.Nil, err
	}
	return r.heap.AllocPair(runtime.Symbol(r.symbols.Intern("quote")), tail)
}

func (r *Reader) readAtom(tok string) (runtime.Value, error) {
	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		return runtime.Number(n), nil
	}
	return runtime.Symbol(r.symbols.Intern(tok)), nil
}

// Balanced reports whether src has no unclosed lists, so a REPL knows
// whether to prompt for a continuation line.
func Balanced(src string) bool {
	depth := 0
	for _, tok := range tokenize(src) {
		switch tok {
		case "(":
			depth++
		case ")":
			depth--
		}
	}
	return depth <= 0
}

func tokenize(input string) []string {
	tokens := make([]string, 0, 16)
	for pos := 0; pos < len(input); {
		c := input[pos]
		switch c {
		case ' ', '\t', '\r', '\n':
			pos++
		case '(', ')', '\'':
			tokens = append(tokens, string(c))
			pos++
		case ';':
			for pos < len(input) && input[pos] != '\n' {
				pos++
			}
		default:
			end := pos + 1
		scan:
			for end < len(input) {
				switch input[end] {
				case ' ', '\t', '\r', '\n', '(', ')', '\'', ';':
					break scan
				}
				end++
			}
			tokens = append(tokens, input[pos:end])
			pos = end
		}
	}
	return tokens
}
