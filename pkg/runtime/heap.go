package runtime

// Pair is a two-field heap cell used to build cons lists.
type Pair struct {
	Head Value
	Tail Value
}

// Closure is a user-defined function: positional parameters, an unevaluated
// body expression, and the environment frame captured at creation time. The
// frame is captured by reference; several closures may share one frame.
type Closure struct {
	Params []SymbolID
	Body   Value
	Env    Handle
}

// Frame is one lexical scope: an ordered binding list plus the enclosing
// frame. The global frame has parent InvalidHandle.
type Frame struct {
	parent Handle
	binds  []binding
}

type binding struct {
	sym SymbolID
	val Value
}

type objectKind uint8

const (
	objFree objectKind = iota
	objPair
	objClosure
	objFrame
)

func (k objectKind) String() string {
	switch k {
	case objFree:
		return "free"
	case objPair:
		return "pair"
	case objClosure:
		return "closure"
	case objFrame:
		return "frame"
	default:
		return "corrupt"
	}
}

// object is one registry record: variant tag, payload, and the transient
// mark bit. Every heap allocation — pairs, closures, and environment frames
// alike — goes through this registry, so the sweep phase reclaims all kinds
// uniformly.
type object struct {
	kind    objectKind
	marked  bool
	pair    Pair
	closure Closure
	frame   Frame
}

// Config bounds a Heap and its interpreter.
type Config struct {
	// GCThreshold is the live-object count that triggers a collection on
	// the next allocation. It doubles whenever a collection fails to bring
	// the live count back under it.
	GCThreshold int
	// MaxObjects caps the live-object count; 0 means unlimited. Allocation
	// fails with OutOfMemory only after a full collection could not get
	// below the cap.
	MaxObjects int
	// MaxSteps caps evaluator trampoline steps per Eval call; 0 means
	// unlimited.
	MaxSteps int
}

// DefaultGCThreshold matches the reference runtime's allocation trigger.
const DefaultGCThreshold = 1024

func (c Config) withDefaults() Config {
	if c.GCThreshold <= 0 {
		c.GCThreshold = DefaultGCThreshold
	}
	return c
}

// RootMark is a saved position in the heap's root stacks, restored to drop
// temporaries when a scope ends.
type RootMark struct {
	values int
	frames int
}

// Heap owns every heap-allocated runtime object behind stable handles and
// runs the mark-and-sweep collector over them. It is single-threaded state:
// one Heap belongs to exactly one interpreter instance.
type Heap struct {
	objects []object
	free    []Handle
	live    int

	threshold  int
	maxObjects int

	// Root stacks. valueRoots and frameRoots hold the evaluator's and the
	// builtins' in-flight temporaries; persistent holds frames that stay
	// rooted for the heap's lifetime (the global frame); pinned holds the
	// most recent evaluation results handed to the host.
	valueRoots []Value
	frameRoots []Handle
	persistent []Handle
	pinned     []Value

	collecting bool
}

func NewHeap(cfg Config) *Heap {
	cfg = cfg.withDefaults()
	return &Heap{
		threshold:  cfg.GCThreshold,
		maxObjects: cfg.MaxObjects,
	}
}

// Live reports the number of registered, unreclaimed objects.
func (h *Heap) Live() int {
	return h.live
}

// SaveRoots records the current root-stack depth.
func (h *Heap) SaveRoots() RootMark {
	return RootMark{values: len(h.valueRoots), frames: len(h.frameRoots)}
}

// RestoreRoots drops every root pushed since the corresponding SaveRoots.
func (h *Heap) RestoreRoots(m RootMark) {
	h.valueRoots = h.valueRoots[:m.values]
	h.frameRoots = h.frameRoots[:m.frames]
}

// PushRoot keeps v reachable across allocations until the enclosing
// RestoreRoots.
func (h *Heap) PushRoot(v Value) {
	h.valueRoots = append(h.valueRoots, v)
}

// PushFrameRoot keeps an environment frame reachable across allocations
// until the enclosing RestoreRoots.
func (h *Heap) PushFrameRoot(f Handle) {
	if f != InvalidHandle {
		h.frameRoots = append(h.frameRoots, f)
	}
}

// AddPersistentRoot roots a frame for the heap's lifetime. Used for the
// global environment.
func (h *Heap) AddPersistentRoot(f Handle) {
	if f != InvalidHandle {
		h.persistent = append(h.persistent, f)
	}
}

// Pin roots a value until the next ClearPins. The interpreter pins each
// top-level result so the host may hold it across an explicit collection.
func (h *Heap) Pin(v Value) {
	h.pinned = append(h.pinned, v)
}

// ClearPins drops all pinned values.
func (h *Heap) ClearPins() {
	h.pinned = h.pinned[:0]
}

// allocate hands out one registry slot, collecting first when the live
// count has reached the threshold. Growth beyond MaxObjects after a full
// collection is the only allocation failure.
func (h *Heap) allocate(kind objectKind) (Handle, error) {
	if h.collecting {
		// No allocation may occur during a collection pass.
		return InvalidHandle, NewError(ErrOutOfMemory, "heap: allocation during collection")
	}
	if h.live >= h.threshold || (h.maxObjects > 0 && h.live >= h.maxObjects) {
		h.Collect()
		if h.maxObjects > 0 && h.live >= h.maxObjects {
			return InvalidHandle, NewError(ErrOutOfMemory,
				"heap: %d live objects after collection, cap is %d", h.live, h.maxObjects)
		}
		if h.live >= h.threshold {
			h.threshold *= 2
		}
	}
	var handle Handle
	if n := len(h.free); n > 0 {
		handle = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		h.objects = append(h.objects, object{})
		handle = Handle(len(h.objects) - 1)
	}
	obj := &h.objects[handle]
	obj.kind = kind
	obj.marked = false
	h.live++
	return handle, nil
}

// AllocPair registers a new cons cell. head and tail are rooted for the
// duration, so an allocation-triggered collection cannot reclaim them.
func (h *Heap) AllocPair(head, tail Value) (Value, error) {
	mark := h.SaveRoots()
	defer h.RestoreRoots(mark)
	h.PushRoot(head)
	h.PushRoot(tail)

	handle, err := h.allocate(objPair)
	if err != nil {
		return Nil, err
	}
	h.objects[handle].pair = Pair{Head: head, Tail: tail}
	return pairRef(handle), nil
}

// AllocClosure registers a new closure capturing env by reference.
func (h *Heap) AllocClosure(params []SymbolID, body Value, env Handle) (Value, error) {
	mark := h.SaveRoots()
	defer h.RestoreRoots(mark)
	h.PushRoot(body)
	h.PushFrameRoot(env)

	handle, err := h.allocate(objClosure)
	if err != nil {
		return Nil, err
	}
	h.objects[handle].closure = Closure{Params: params, Body: body, Env: env}
	return closureRef(handle), nil
}

// Pair dereferences a pair value. A non-pair value or a stale handle is an
// internal invariant violation, reported rather than misinterpreted.
func (h *Heap) Pair(v Value) (*Pair, error) {
	if v.Kind != KindPair {
		return nil, NewError(ErrWrongType, "expected pair, got %s", v.Kind)
	}
	obj, err := h.object(v.Handle, objPair)
	if err != nil {
		return nil, err
	}
	return &obj.pair, nil
}

// Closure dereferences a closure value.
func (h *Heap) Closure(v Value) (*Closure, error) {
	if v.Kind != KindClosure {
		return nil, NewError(ErrWrongType, "expected closure, got %s", v.Kind)
	}
	obj, err := h.object(v.Handle, objClosure)
	if err != nil {
		return nil, err
	}
	return &obj.closure, nil
}

func (h *Heap) object(handle Handle, want objectKind) (*object, error) {
	if handle < 0 || int(handle) >= len(h.objects) {
		return nil, NewError(ErrWrongType, "heap: handle %d out of range", handle)
	}
	obj := &h.objects[handle]
	if obj.kind != want {
		return nil, NewError(ErrWrongType, "heap: handle %d holds %s, wanted %s", handle, obj.kind, want)
	}
	return obj, nil
}

// frameAt is the unchecked internal accessor used once a handle's kind is
// already established.
func (h *Heap) frameAt(handle Handle) *Frame {
	return &h.objects[handle].frame
}
