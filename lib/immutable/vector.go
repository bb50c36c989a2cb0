package immutable

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dFlux/lib/fault"
)

// --------------------------------------------------------------------------
// Vector
// --------------------------------------------------------------------------

// Vector is a persistent indexed sequence backed by a 32-way trie with a
// separate tail block, so appends and lookups stay close to O(1).
// A nil *Vector behaves like the empty vector.
//
// Thread-safety: a Vector may be read from any number of goroutines.
type Vector struct {
	size  int
	shift uint
	root  *vnode
	tail  *vnode
	hash  hashCache
}

// vnode is a trie node. Inner nodes hold *vnode children in all branching
// slots, leaves hold the values. A tail holds between 1 and branching values.
type vnode struct {
	owner *owner
	array []any
}

var (
	emptyVNode  = &vnode{array: make([]any, branching)}
	emptyVector = &Vector{shift: shiftBits, root: emptyVNode, tail: &vnode{}}
)

// EmptyVector returns the shared empty vector
func EmptyVector() *Vector {
	return emptyVector
}

// VectorOf builds a vector holding values in order
func VectorOf(values ...any) *Vector {
	return emptyVector.WithMutations(func(b *VectorBuilder) {
		for _, v := range values {
			b.Push(v)
		}
	})
}

func (v *Vector) orEmpty() *Vector {
	if v == nil {
		return emptyVector
	}
	return v
}

// Len returns the number of elements
func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return v.size
}

// Get returns the element at index i
func (v *Vector) Get(i int) (any, bool) {
	if v == nil || i < 0 || i >= v.size {
		return nil, false
	}
	return arrayFor(v.size, v.shift, v.root, v.tail, i)[i&mask], true
}

// GetOr returns the element at index i or notSetValue if i is out of range
func (v *Vector) GetOr(i int, notSetValue any) any {
	if e, ok := v.Get(i); ok {
		return e
	}
	return notSetValue
}

// Set returns a vector with index i set to value. Setting index Len() appends.
// It panics with a fault.CodeInvalidPath error for any other out of range index.
func (v *Vector) Set(i int, value any) *Vector {
	v = v.orEmpty()
	t := v.transient(nil)
	t.set(i, value)
	return t.persist(v)
}

// Push returns a vector with value appended
func (v *Vector) Push(value any) *Vector {
	v = v.orEmpty()
	t := v.transient(nil)
	t.push(value)
	return t.persist(v)
}

// Pop returns a vector without its last element. Popping the empty vector
// returns the empty vector.
func (v *Vector) Pop() *Vector {
	v = v.orEmpty()
	t := v.transient(nil)
	t.pop()
	return t.persist(v)
}

// Remove returns a vector without the element at index i; later elements
// shift down by one. Out of range indexes return the receiver.
func (v *Vector) Remove(i int) *Vector {
	v = v.orEmpty()
	if i < 0 || i >= v.size {
		return v
	}
	if i == v.size-1 {
		return v.Pop()
	}
	return v.WithMutations(func(b *VectorBuilder) {
		for j := i; j < v.size-1; j++ {
			next, _ := v.Get(j + 1)
			b.Set(j, next)
		}
		b.Pop()
	})
}

// Range calls fn for every element in order until fn returns false
func (v *Vector) Range(fn func(i int, value any) bool) {
	if v == nil {
		return
	}
	for base := 0; base < v.size; base += branching {
		arr := arrayFor(v.size, v.shift, v.root, v.tail, base)
		for j := 0; j < branching && base+j < v.size; j++ {
			if !fn(base+j, arr[j]) {
				return
			}
		}
	}
}

// ToSlice copies the elements into a new slice
func (v *Vector) ToSlice() []any {
	out := make([]any, 0, v.Len())
	v.Range(func(_ int, e any) bool {
		out = append(out, e)
		return true
	})
	return out
}

// WithMutations applies a batch of changes through a transient builder.
// The builder must not be used after fn returns.
func (v *Vector) WithMutations(fn func(b *VectorBuilder)) *Vector {
	v = v.orEmpty()
	b := &VectorBuilder{t: v.transient(&owner{})}
	fn(b)
	res := b.t.persist(v)
	b.t = nil
	return res
}

// Equals reports whether other is a *Vector with equal elements in the same order
func (v *Vector) Equals(other any) bool {
	o, ok := other.(*Vector)
	if !ok {
		return false
	}
	if v.orEmpty() == o.orEmpty() {
		return true
	}
	if v.Len() != o.Len() {
		return false
	}
	if h1, ok1 := v.hash.load(); ok1 {
		if h2, ok2 := o.hash.load(); ok2 && h1 != h2 {
			return false
		}
	}

	equal := true
	v.Range(func(i int, e any) bool {
		oe, _ := o.Get(i)
		equal = Is(e, oe)
		return equal
	})
	return equal
}

// Hash returns the ordered structural hash of the vector
func (v *Vector) Hash() uint32 {
	v = v.orEmpty()
	if h, ok := v.hash.load(); ok {
		return h
	}
	h := uint32(1)
	v.Range(func(_ int, e any) bool {
		h = 31*h + Hash(e)
		return true
	})
	h = murmurHashOfSize(v.size, h)
	v.hash.store(h)
	return h
}

// String renders the vector for logs and debugging
func (v *Vector) String() string {
	var sb strings.Builder
	sb.WriteString("Vector[")
	v.Range(func(i int, e any) bool {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", e)
		return true
	})
	sb.WriteString("]")
	return sb.String()
}

// --------------------------------------------------------------------------
// VectorBuilder
// --------------------------------------------------------------------------

// VectorBuilder is the transient (mutable) view of a Vector handed to WithMutations.
type VectorBuilder struct {
	t *vtransient
}

func (b *VectorBuilder) check() {
	if b.t == nil {
		panic(fault.New(fault.CodeInvariant, "vector builder used after WithMutations returned"))
	}
}

// Len returns the current number of elements
func (b *VectorBuilder) Len() int {
	b.check()
	return b.t.size
}

// Get returns the element at index i
func (b *VectorBuilder) Get(i int) (any, bool) {
	b.check()
	if i < 0 || i >= b.t.size {
		return nil, false
	}
	return arrayFor(b.t.size, b.t.shift, b.t.root, b.t.tail, i)[i&mask], true
}

// Set stores value at index i (index Len() appends)
func (b *VectorBuilder) Set(i int, value any) *VectorBuilder {
	b.check()
	b.t.set(i, value)
	return b
}

// Push appends value
func (b *VectorBuilder) Push(value any) *VectorBuilder {
	b.check()
	b.t.push(value)
	return b
}

// Pop removes the last element
func (b *VectorBuilder) Pop() *VectorBuilder {
	b.check()
	b.t.pop()
	return b
}

// --------------------------------------------------------------------------
// Trie Operations
// --------------------------------------------------------------------------

// vtransient carries the working state of one or more vector edits. With a
// nil owner every touched node is copied, which gives plain persistent updates.
type vtransient struct {
	owner   *owner
	size    int
	shift   uint
	root    *vnode
	tail    *vnode
	altered bool
}

func (v *Vector) transient(o *owner) *vtransient {
	return &vtransient{owner: o, size: v.size, shift: v.shift, root: v.root, tail: v.tail}
}

func (t *vtransient) persist(orig *Vector) *Vector {
	if !t.altered {
		return orig
	}
	return t.snapshot()
}

// snapshot returns the current state as a Vector regardless of whether it changed
func (t *vtransient) snapshot() *Vector {
	if t.size == 0 {
		return emptyVector
	}
	return &Vector{size: t.size, shift: t.shift, root: t.root, tail: t.tail}
}

func tailOffset(size int) int {
	if size < branching {
		return 0
	}
	return ((size - 1) >> shiftBits) << shiftBits
}

func arrayFor(size int, shift uint, root, tail *vnode, i int) []any {
	if i >= tailOffset(size) {
		return tail.array
	}
	n := root
	for level := shift; level > 0; level -= shiftBits {
		n = n.array[(i>>level)&mask].(*vnode)
	}
	return n.array
}

// editable returns n itself if it belongs to o, a copy owned by o otherwise
func editable(o *owner, n *vnode) *vnode {
	if o != nil && n.owner == o {
		return n
	}
	arr := make([]any, len(n.array), branching)
	copy(arr, n.array)
	return &vnode{owner: o, array: arr}
}

func (t *vtransient) set(i int, value any) {
	if i == t.size {
		t.push(value)
		return
	}
	if i < 0 || i > t.size {
		panic(fault.Newf(fault.CodeInvalidPath, "index %d out of range for vector of length %d", i, t.size))
	}

	if i >= tailOffset(t.size) {
		if identical(t.tail.array[i&mask], value) {
			return
		}
		t.tail = editable(t.owner, t.tail)
		t.tail.array[i&mask] = value
		t.altered = true
		return
	}

	if identical(arrayFor(t.size, t.shift, t.root, t.tail, i)[i&mask], value) {
		return
	}
	t.root = t.assoc(t.shift, t.root, i, value)
	t.altered = true
}

func (t *vtransient) assoc(level uint, n *vnode, i int, value any) *vnode {
	ret := editable(t.owner, n)
	if level == 0 {
		ret.array[i&mask] = value
		return ret
	}
	sub := (i >> level) & mask
	ret.array[sub] = t.assoc(level-shiftBits, n.array[sub].(*vnode), i, value)
	return ret
}

func (t *vtransient) push(value any) {
	t.altered = true

	if t.size-tailOffset(t.size) < branching {
		t.tail = editable(t.owner, t.tail)
		t.tail.array = append(t.tail.array, value)
		t.size++
		return
	}

	// the tail is full: move it into the trie
	full := t.tail
	if (t.size >> shiftBits) > (1 << t.shift) {
		root := &vnode{owner: t.owner, array: make([]any, branching)}
		root.array[0] = t.root
		root.array[1] = newPath(t.owner, t.shift, full)
		t.root = root
		t.shift += shiftBits
	} else {
		t.root = t.pushTail(t.shift, t.root, full)
	}

	tail := make([]any, 1, branching)
	tail[0] = value
	t.tail = &vnode{owner: t.owner, array: tail}
	t.size++
}

func (t *vtransient) pushTail(level uint, parent, tail *vnode) *vnode {
	sub := ((t.size - 1) >> level) & mask
	ret := editable(t.owner, parent)
	if level == shiftBits {
		ret.array[sub] = tail
		return ret
	}
	if child, ok := parent.array[sub].(*vnode); ok {
		ret.array[sub] = t.pushTail(level-shiftBits, child, tail)
	} else {
		ret.array[sub] = newPath(t.owner, level-shiftBits, tail)
	}
	return ret
}

func newPath(o *owner, level uint, n *vnode) *vnode {
	if level == 0 {
		return n
	}
	ret := &vnode{owner: o, array: make([]any, branching)}
	ret.array[0] = newPath(o, level-shiftBits, n)
	return ret
}

func (t *vtransient) pop() {
	if t.size == 0 {
		return
	}
	t.altered = true

	if t.size == 1 {
		t.size = 0
		t.shift = shiftBits
		t.root = emptyVNode
		t.tail = &vnode{}
		return
	}

	if t.size-tailOffset(t.size) > 1 {
		t.tail = editable(t.owner, t.tail)
		last := len(t.tail.array) - 1
		t.tail.array[last] = nil
		t.tail.array = t.tail.array[:last]
		t.size--
		return
	}

	// the tail becomes empty: pull the last leaf out of the trie
	leaf := arrayFor(t.size, t.shift, t.root, t.tail, t.size-2)
	tail := make([]any, len(leaf), branching)
	copy(tail, leaf)

	root := t.popTail(t.shift, t.root)
	if root == nil {
		root = emptyVNode
	}
	shift := t.shift
	if shift > shiftBits && root.array[1] == nil {
		root = root.array[0].(*vnode)
		shift -= shiftBits
	}

	t.root = root
	t.shift = shift
	t.tail = &vnode{owner: t.owner, array: tail}
	t.size--
}

func (t *vtransient) popTail(level uint, n *vnode) *vnode {
	sub := ((t.size - 2) >> level) & mask
	if level > shiftBits {
		child := t.popTail(level-shiftBits, n.array[sub].(*vnode))
		if child == nil && sub == 0 {
			return nil
		}
		ret := editable(t.owner, n)
		if child == nil {
			ret.array[sub] = nil
		} else {
			ret.array[sub] = child
		}
		return ret
	}
	if sub == 0 {
		return nil
	}
	ret := editable(t.owner, n)
	ret.array[sub] = nil
	return ret
}
