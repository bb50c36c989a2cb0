package immutable

import "math/bits"

// --------------------------------------------------------------------------
// Trie Constants
// --------------------------------------------------------------------------

const (
	shiftBits = 5
	branching = 1 << shiftBits
	mask      = branching - 1

	// a bitmapIndexedNode is promoted to an arrayNode beyond this many children
	maxBitmapIndexedSize = branching / 2
	// an arrayNode is packed back into a bitmapIndexedNode below this many children
	minArrayNodeSize = branching / 4
)

// owner marks nodes created within one builder scope. Only nodes carrying the
// builder's owner may be edited in place; all other nodes are copied on write.
type owner struct{ _ byte }

// entry is a single key/value pair
type entry struct {
	key   any
	value any
}

// change records the effect of an update on the trie
type change struct {
	altered     bool
	sizeChanged bool
}

// node is the common interface of all HAMT node kinds.
// A nil node is the empty trie.
type node interface {
	get(shift uint, hash uint32, key any) (any, bool)
	// update sets key to value, or removes key if remove is set.
	// It returns the (possibly identical) replacement node, nil if the node became empty.
	update(o *owner, shift uint, hash uint32, key, value any, remove bool, ch *change) node
	iterate(fn func(key, value any) bool) bool
}

// leafNode is implemented by nodes that hold entries of a single hash
type leafNode interface {
	node
	keyHash() uint32
}

func fragment(hash uint32, shift uint) uint32 {
	return (hash >> shift) & mask
}

func canEdit(o, nodeOwner *owner) bool {
	return o != nil && o == nodeOwner
}

// updateNode updates n, creating a value node if n is nil.
func updateNode(n node, o *owner, shift uint, hash uint32, key, value any, remove bool, ch *change) node {
	if n == nil {
		if remove {
			return nil
		}
		ch.altered = true
		ch.sizeChanged = true
		return &valueNode{owner: o, hash: hash, entry: entry{key, value}}
	}
	return n.update(o, shift, hash, key, value, remove, ch)
}

// mergeIntoNode joins an existing leaf with a new entry of a different key,
// creating as many bitmap levels as are needed to tell the hashes apart.
func mergeIntoNode(leaf leafNode, o *owner, shift uint, hash uint32, e entry) node {
	if leaf.keyHash() == hash {
		return &hashCollisionNode{owner: o, hash: hash, entries: []entry{leaf.(*valueNode).entry, e}}
	}

	idx1 := fragment(leaf.keyHash(), shift)
	idx2 := fragment(hash, shift)

	var nodes []node
	if idx1 == idx2 {
		nodes = []node{mergeIntoNode(leaf, o, shift+shiftBits, hash, e)}
	} else {
		n := &valueNode{owner: o, hash: hash, entry: e}
		if idx1 < idx2 {
			nodes = []node{leaf, n}
		} else {
			nodes = []node{n, leaf}
		}
	}
	return &bitmapIndexedNode{owner: o, bitmap: 1<<idx1 | 1<<idx2, nodes: nodes}
}

// --------------------------------------------------------------------------
// Value Node
// --------------------------------------------------------------------------

type valueNode struct {
	owner *owner
	hash  uint32
	entry entry
}

func (n *valueNode) keyHash() uint32 { return n.hash }

func (n *valueNode) get(_ uint, _ uint32, key any) (any, bool) {
	if Is(key, n.entry.key) {
		return n.entry.value, true
	}
	return nil, false
}

func (n *valueNode) update(o *owner, shift uint, hash uint32, key, value any, remove bool, ch *change) node {
	keyMatch := Is(key, n.entry.key)
	if remove {
		if !keyMatch {
			return n
		}
		ch.altered = true
		ch.sizeChanged = true
		return nil
	}

	if keyMatch {
		if identical(value, n.entry.value) {
			return n
		}
		ch.altered = true
		if canEdit(o, n.owner) {
			n.entry.value = value
			return n
		}
		return &valueNode{owner: o, hash: n.hash, entry: entry{n.entry.key, value}}
	}

	ch.altered = true
	ch.sizeChanged = true
	return mergeIntoNode(n, o, shift, hash, entry{key, value})
}

func (n *valueNode) iterate(fn func(key, value any) bool) bool {
	return fn(n.entry.key, n.entry.value)
}

// --------------------------------------------------------------------------
// Hash Collision Node
// --------------------------------------------------------------------------

type hashCollisionNode struct {
	owner   *owner
	hash    uint32
	entries []entry
}

func (n *hashCollisionNode) keyHash() uint32 { return n.hash }

func (n *hashCollisionNode) get(_ uint, _ uint32, key any) (any, bool) {
	for _, e := range n.entries {
		if Is(key, e.key) {
			return e.value, true
		}
	}
	return nil, false
}

func (n *hashCollisionNode) update(o *owner, shift uint, hash uint32, key, value any, remove bool, ch *change) node {
	if hash != n.hash {
		if remove {
			return n
		}
		ch.altered = true
		ch.sizeChanged = true
		return n.split(o, shift, hash, entry{key, value})
	}

	idx := -1
	for i, e := range n.entries {
		if Is(key, e.key) {
			idx = i
			break
		}
	}
	exists := idx >= 0

	if exists && !remove && identical(n.entries[idx].value, value) {
		return n
	}
	if !exists && remove {
		return n
	}

	ch.altered = true
	if remove || !exists {
		ch.sizeChanged = true
	}

	if remove && len(n.entries) == 2 {
		return &valueNode{owner: o, hash: n.hash, entry: n.entries[idx^1]}
	}

	editable := canEdit(o, n.owner)
	entries := n.entries
	if !editable {
		entries = make([]entry, len(n.entries), len(n.entries)+1)
		copy(entries, n.entries)
	}

	switch {
	case remove:
		last := len(entries) - 1
		entries[idx] = entries[last]
		entries[last] = entry{}
		entries = entries[:last]
	case exists:
		entries[idx] = entry{key, value}
	default:
		entries = append(entries, entry{key, value})
	}

	if editable {
		n.entries = entries
		return n
	}
	return &hashCollisionNode{owner: o, hash: n.hash, entries: entries}
}

// split places a collision node and an entry with a different hash below a
// new bitmap node.
func (n *hashCollisionNode) split(o *owner, shift uint, hash uint32, e entry) node {
	idx1 := fragment(n.hash, shift)
	idx2 := fragment(hash, shift)
	if idx1 == idx2 {
		return &bitmapIndexedNode{owner: o, bitmap: 1 << idx1, nodes: []node{n.split(o, shift+shiftBits, hash, e)}}
	}

	v := &valueNode{owner: o, hash: hash, entry: e}
	nodes := []node{n, v}
	if idx2 < idx1 {
		nodes = []node{v, n}
	}
	return &bitmapIndexedNode{owner: o, bitmap: 1<<idx1 | 1<<idx2, nodes: nodes}
}

func (n *hashCollisionNode) iterate(fn func(key, value any) bool) bool {
	for _, e := range n.entries {
		if !fn(e.key, e.value) {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Bitmap Indexed Node
// --------------------------------------------------------------------------

type bitmapIndexedNode struct {
	owner  *owner
	bitmap uint32
	nodes  []node
}

func (n *bitmapIndexedNode) get(shift uint, hash uint32, key any) (any, bool) {
	bit := uint32(1) << fragment(hash, shift)
	if n.bitmap&bit == 0 {
		return nil, false
	}
	idx := bits.OnesCount32(n.bitmap & (bit - 1))
	return n.nodes[idx].get(shift+shiftBits, hash, key)
}

func (n *bitmapIndexedNode) update(o *owner, shift uint, hash uint32, key, value any, remove bool, ch *change) node {
	frag := fragment(hash, shift)
	bit := uint32(1) << frag
	exists := n.bitmap&bit != 0
	if !exists && remove {
		return n
	}

	idx := bits.OnesCount32(n.bitmap & (bit - 1))
	var child node
	if exists {
		child = n.nodes[idx]
	}

	newChild := updateNode(child, o, shift+shiftBits, hash, key, value, remove, ch)
	if newChild == child {
		return n
	}

	if !exists && newChild != nil && len(n.nodes) >= maxBitmapIndexedSize {
		return expandNodes(o, n.nodes, n.bitmap, frag, newChild)
	}

	if exists && newChild == nil && len(n.nodes) == 2 {
		if leaf, ok := n.nodes[idx^1].(leafNode); ok {
			return leaf
		}
	}

	if exists && newChild != nil && len(n.nodes) == 1 {
		if leaf, ok := newChild.(leafNode); ok {
			return leaf
		}
	}

	editable := canEdit(o, n.owner)
	var newBitmap uint32
	var newNodes []node
	switch {
	case exists && newChild != nil:
		newBitmap = n.bitmap
		newNodes = setAt(n.nodes, idx, newChild, editable)
	case exists:
		newBitmap = n.bitmap ^ bit
		newNodes = spliceOut(n.nodes, idx, editable)
	default:
		newBitmap = n.bitmap | bit
		newNodes = spliceIn(n.nodes, idx, newChild, editable)
	}

	if editable {
		n.bitmap = newBitmap
		n.nodes = newNodes
		return n
	}
	return &bitmapIndexedNode{owner: o, bitmap: newBitmap, nodes: newNodes}
}

func (n *bitmapIndexedNode) iterate(fn func(key, value any) bool) bool {
	for _, c := range n.nodes {
		if !c.iterate(fn) {
			return false
		}
	}
	return true
}

// expandNodes promotes a full bitmap node to an array node
func expandNodes(o *owner, nodes []node, bitmap uint32, including uint32, n node) node {
	expanded := make([]node, branching)
	count := 0
	for i := uint32(0); bitmap != 0; i++ {
		if bitmap&1 != 0 {
			expanded[i] = nodes[count]
			count++
		}
		bitmap >>= 1
	}
	expanded[including] = n
	return &arrayNode{owner: o, count: count + 1, nodes: expanded}
}

// --------------------------------------------------------------------------
// Array Node
// --------------------------------------------------------------------------

type arrayNode struct {
	owner *owner
	count int
	nodes []node // always branching slots, nil for empty ones
}

func (n *arrayNode) get(shift uint, hash uint32, key any) (any, bool) {
	child := n.nodes[fragment(hash, shift)]
	if child == nil {
		return nil, false
	}
	return child.get(shift+shiftBits, hash, key)
}

func (n *arrayNode) update(o *owner, shift uint, hash uint32, key, value any, remove bool, ch *change) node {
	idx := int(fragment(hash, shift))
	child := n.nodes[idx]
	if remove && child == nil {
		return n
	}

	newChild := updateNode(child, o, shift+shiftBits, hash, key, value, remove, ch)
	if newChild == child {
		return n
	}

	count := n.count
	if child == nil {
		count++
	} else if newChild == nil {
		count--
		if count < minArrayNodeSize {
			return packNodes(o, n.nodes, count, idx)
		}
	}

	editable := canEdit(o, n.owner)
	nodes := setAt(n.nodes, idx, newChild, editable)
	if editable {
		n.count = count
		n.nodes = nodes
		return n
	}
	return &arrayNode{owner: o, count: count, nodes: nodes}
}

func (n *arrayNode) iterate(fn func(key, value any) bool) bool {
	for _, c := range n.nodes {
		if c != nil && !c.iterate(fn) {
			return false
		}
	}
	return true
}

// packNodes demotes an array node to a bitmap node, leaving out one slot
func packNodes(o *owner, nodes []node, count int, excluding int) node {
	packed := make([]node, 0, count)
	var bitmap uint32
	for i, c := range nodes {
		if c != nil && i != excluding {
			packed = append(packed, c)
			bitmap |= 1 << uint32(i)
		}
	}
	return &bitmapIndexedNode{owner: o, bitmap: bitmap, nodes: packed}
}

// --------------------------------------------------------------------------
// Slice Helpers
// --------------------------------------------------------------------------

func setAt(nodes []node, idx int, n node, inPlace bool) []node {
	if inPlace {
		nodes[idx] = n
		return nodes
	}
	out := make([]node, len(nodes))
	copy(out, nodes)
	out[idx] = n
	return out
}

func spliceIn(nodes []node, idx int, n node, inPlace bool) []node {
	if inPlace {
		nodes = append(nodes, nil)
		copy(nodes[idx+1:], nodes[idx:])
		nodes[idx] = n
		return nodes
	}
	out := make([]node, len(nodes)+1)
	copy(out, nodes[:idx])
	out[idx] = n
	copy(out[idx+1:], nodes[idx:])
	return out
}

func spliceOut(nodes []node, idx int, inPlace bool) []node {
	if inPlace {
		copy(nodes[idx:], nodes[idx+1:])
		nodes[len(nodes)-1] = nil
		return nodes[:len(nodes)-1]
	}
	out := make([]node, len(nodes)-1)
	copy(out, nodes[:idx])
	copy(out[idx:], nodes[idx+1:])
	return out
}
