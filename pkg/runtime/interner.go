package runtime

// Interner assigns a stable integer identity to each distinct symbol text,
// so symbol comparison after creation is by id, never by string. The table
// is owned by the interpreter instance and is never swept: an interned id
// stays valid for the instance's lifetime.
type Interner struct {
	names []string
	ids   map[string]SymbolID
}

func NewInterner() *Interner {
	return &Interner{ids: make(map[string]SymbolID)}
}

// Intern returns the id for text, allocating one on first sight. Calling it
// twice with equal text returns the same id.
func (in *Interner) Intern(text string) SymbolID {
	if id, ok := in.ids[text]; ok {
		return id
	}
	id := SymbolID(len(in.names))
	in.names = append(in.names, text)
	in.ids[text] = id
	return id
}

// Name returns the text for an interned id, or the empty string for an id
// this interner never produced.
func (in *Interner) Name(id SymbolID) string {
	if id < 0 || int(id) >= len(in.names) {
		return ""
	}
	return in.names[id]
}

// Len reports how many distinct symbols have been interned.
func (in *Interner) Len() int {
	return len(in.names)
}
