package runtime

import (
	"strconv"
	"strings"
)

// Render produces the external textual form of a value: numbers as a
// canonical decimal string, symbols as their interned text, pair chains as
// (a b c), Nil as (), and functions as an opaque token.
func Render(h *Heap, symbols *Interner, v Value) string {
	var b strings.Builder
	renderInto(&b, h, symbols, v)
	return b.String()
}

func renderInto(b *strings.Builder, h *Heap, symbols *Interner, v Value) {
	switch v.Kind {
	case KindNil:
		b.WriteString("()")
	case KindNumber:
		b.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
	case KindSymbol:
		b.WriteString(symbols.Name(v.Sym))
	case KindClosure, KindBuiltin:
		b.WriteString("<function>")
	case KindPair:
		b.WriteByte('(')
		for {
			p, err := h.Pair(v)
			if err != nil {
				b.WriteString("<corrupt>")
				break
			}
			renderInto(b, h, symbols, p.Head)
			if p.Tail.Kind == KindNil {
				break
			}
			if p.Tail.Kind != KindPair {
				// The reader never builds dotted tails, but render
				// them rather than lie about the structure.
				b.WriteString(" . ")
				renderInto(b, h, symbols, p.Tail)
				break
			}
			b.WriteByte(' ')
			v = p.Tail
		}
		b.WriteByte(')')
	default:
		b.WriteString("<corrupt>")
	}
}
