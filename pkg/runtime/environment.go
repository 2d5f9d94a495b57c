package runtime

// Environment frames are ordinary heap objects with the same lifetime rules
// as pairs and closures: created by NewFrame, reclaimed only by the sweep
// phase once unreachable. A closure call allocates exactly one frame,
// parented at the closure's captured frame, which is what makes scoping
// lexical rather than dynamic.

// NewFrame registers a fresh, empty frame under parent. Pass InvalidHandle
// for the global frame.
func (h *Heap) NewFrame(parent Handle) (Handle, error) {
	mark := h.SaveRoots()
	defer h.RestoreRoots(mark)
	h.PushFrameRoot(parent)

	handle, err := h.allocate(objFrame)
	if err != nil {
		return InvalidHandle, err
	}
	h.objects[handle].frame = Frame{parent: parent}
	return handle, nil
}

// Define inserts or overwrites a binding in frame itself, never in a
// parent: defining x in a child shadows, it does not mutate, an outer x.
func (h *Heap) Define(frame Handle, sym SymbolID, val Value) error {
	obj, err := h.object(frame, objFrame)
	if err != nil {
		return err
	}
	for i := range obj.frame.binds {
		if obj.frame.binds[i].sym == sym {
			obj.frame.binds[i].val = val
			return nil
		}
	}
	obj.frame.binds = append(obj.frame.binds, binding{sym: sym, val: val})
	return nil
}

// Lookup searches frame's own bindings, then its parent chain. The chain is
// acyclic and ends at the global frame; exhausting it reports
// ErrUnboundSymbol (the caller supplies the symbol's text).
func (h *Heap) Lookup(frame Handle, sym SymbolID) (Value, error) {
	for frame != InvalidHandle {
		obj, err := h.object(frame, objFrame)
		if err != nil {
			return Nil, err
		}
		for i := range obj.frame.binds {
			if obj.frame.binds[i].sym == sym {
				return obj.frame.binds[i].val, nil
			}
		}
		frame = obj.frame.parent
	}
	return Nil, NewError(ErrUnboundSymbol, "unbound symbol")
}

// Parent exposes a frame's enclosing scope, InvalidHandle for the global
// frame.
func (h *Heap) Parent(frame Handle) (Handle, error) {
	obj, err := h.object(frame, objFrame)
	if err != nil {
		return InvalidHandle, err
	}
	return obj.frame.parent, nil
}
