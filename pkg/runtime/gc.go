package runtime

// Stats summarizes one collection pass.
type Stats struct {
	Freed    int
	Retained int
}

// Collect runs one stop-the-world mark-and-sweep pass over the registry.
// The root set is: persistent frame roots (the global environment), the
// frame root stack (environments of in-flight trampoline steps), the value
// root stack (evaluator and builtin temporaries), and pinned results.
// Collection itself cannot fail; marking is O(live), sweeping O(allocated).
func (h *Heap) Collect() Stats {
	h.collecting = true
	defer func() { h.collecting = false }()

	// Mark phase. An explicit worklist of handles replaces native
	// recursion, so deep lists cannot overflow the Go stack.
	work := make([]Handle, 0, 64)
	for _, f := range h.persistent {
		work = append(work, f)
	}
	work = append(work, h.frameRoots...)
	for _, v := range h.valueRoots {
		work = appendChild(work, v)
	}
	for _, v := range h.pinned {
		work = appendChild(work, v)
	}

	for len(work) > 0 {
		handle := work[len(work)-1]
		work = work[:len(work)-1]
		if handle == InvalidHandle {
			continue
		}
		obj := &h.objects[handle]
		if obj.marked || obj.kind == objFree {
			continue
		}
		obj.marked = true
		switch obj.kind {
		case objPair:
			work = appendChild(work, obj.pair.Head)
			work = appendChild(work, obj.pair.Tail)
		case objClosure:
			work = appendChild(work, obj.closure.Body)
			work = append(work, obj.closure.Env)
		case objFrame:
			for i := range obj.frame.binds {
				work = appendChild(work, obj.frame.binds[i].val)
			}
			work = append(work, obj.frame.parent)
		}
	}

	// Sweep phase: reclaim unmarked records, clear the mark bit on
	// survivors so it is false outside a collection pass.
	var stats Stats
	for i := range h.objects {
		obj := &h.objects[i]
		if obj.kind == objFree {
			continue
		}
		if obj.marked {
			obj.marked = false
			stats.Retained++
			continue
		}
		*obj = object{kind: objFree}
		h.free = append(h.free, Handle(i))
		h.live--
		stats.Freed++
	}
	return stats
}

// appendChild queues a value's heap object, if it has one. Numbers,
// symbols, builtins, and Nil are immediate and need no marking.
func appendChild(work []Handle, v Value) []Handle {
	if v.Kind == KindPair || v.Kind == KindClosure {
		work = append(work, v.Handle)
	}
	return work
}
