package atree

import (
	"github.com/tidwall/btree"
)

type nodeKind uint8

const (
	nodeLeaf nodeKind = iota
	nodeInternal
	nodeRoot
)

// dagEntry is one slot of the shared DAG store: a leaf (L), internal (I) or
// root (R) node as described in spec §3. Slots are never reused once freed
// (see SPEC_FULL.md's Open Question Decisions) — entry.live is cleared
// instead, and the slot's index is retired for good.
type dagEntry[T comparable] struct {
	exprID uint64
	kind   nodeKind
	live   bool

	pred *Predicate // leaf only

	op       Operator
	children [2]int // internal/root; ascending-cost order inherited from optimizedNode

	parents []int

	level    int
	cost     uint64
	useCount int

	isRoot bool
	subs   []T
}

// dagStore is the append-indexed node pool plus the expression-id -> index
// map that enforces structural sharing (spec §2/§3).
type dagStore[T comparable] struct {
	pool       []dagEntry[T]
	exprIndex  btree.Map[uint64, int]
	subIndex   map[T]int
	roots      map[int]struct{}
	frontier   map[int]struct{}
	maxLevel   int
}

func newDAGStore[T comparable]() *dagStore[T] {
	return &dagStore[T]{
		subIndex: make(map[T]int),
		roots:    make(map[int]struct{}),
		frontier: make(map[int]struct{}),
		maxLevel: 1,
	}
}

func (d *dagStore[T]) alloc(e dagEntry[T]) int {
	idx := len(d.pool)
	d.pool = append(d.pool, e)
	return idx
}

func (d *dagStore[T]) addParent(childIdx, parentIdx int) {
	d.pool[childIdx].parents = append(d.pool[childIdx].parents, parentIdx)
}

// linkChild wires a freshly created binary node (internal or root) to its
// two already-inserted children, per spec §4.3 point 3: an Or activates
// both children (wakes on any true child); an And activates only its
// cheaper "access child" (propagation on demand — an And short-circuits on
// its first false child, so priming the cheapest leaf suffices).
func (d *dagStore[T]) linkChild(parentIdx, leftIdx, rightIdx int, op Operator) {
	if op == OpOr {
		d.addParent(leftIdx, parentIdx)
		d.addParent(rightIdx, parentIdx)
		if d.pool[leftIdx].kind == nodeLeaf {
			d.frontier[leftIdx] = struct{}{}
		}
		if d.pool[rightIdx].kind == nodeLeaf {
			d.frontier[rightIdx] = struct{}{}
		}
		return
	}
	// And: leftIdx is already the cheaper child because optimizedNode
	// children are canonically ordered by ascending cost (ast.go).
	d.addParent(leftIdx, parentIdx)
	if d.pool[leftIdx].kind == nodeLeaf {
		d.frontier[leftIdx] = struct{}{}
	}
}

// insertChild interns opt as a non-root (L or I) node, returning its index.
// Structural sharing: if opt.id already names a live node, that node's
// use-count is bumped and its index is returned directly.
func (d *dagStore[T]) insertChild(opt *optimizedNode) int {
	if idx, ok := d.exprIndex.Get(opt.id); ok {
		d.pool[idx].useCount++
		return idx
	}
	if opt.kind == treeValue {
		idx := d.alloc(dagEntry[T]{exprID: opt.id, kind: nodeLeaf, pred: opt.pred, cost: opt.cost, level: 1, useCount: 1, live: true})
		d.exprIndex.Set(opt.id, idx)
		return idx
	}
	leftIdx := d.insertChild(opt.left)
	rightIdx := d.insertChild(opt.right)
	op := OpAnd
	if opt.kind == treeOr {
		op = OpOr
	}
	level := 1 + maxInt(d.pool[leftIdx].level, d.pool[rightIdx].level)
	idx := d.alloc(dagEntry[T]{
		exprID: opt.id, kind: nodeInternal, op: op,
		children: [2]int{leftIdx, rightIdx}, cost: opt.cost, level: level, useCount: 1, live: true,
	})
	d.exprIndex.Set(opt.id, idx)
	d.linkChild(idx, leftIdx, rightIdx, op)
	return idx
}

// insertRoot interns the rewritten expression as a root and attaches
// subscriptionID to it, following spec §4.3's insert_root algorithm.
func (d *dagStore[T]) insertRoot(subscriptionID T, opt *optimizedNode) {
	if idx, ok := d.exprIndex.Get(opt.id); ok {
		d.pool[idx].useCount++
		if !d.pool[idx].isRoot {
			// An existing leaf or internal node now carries subscriptions:
			// mark it as a root so Match reports them, and put a leaf in
			// the frontier so it is evaluated on every event.
			d.pool[idx].isRoot = true
			d.roots[idx] = struct{}{}
			if d.pool[idx].kind == nodeLeaf {
				d.frontier[idx] = struct{}{}
			}
		}
		d.attachSubscription(idx, subscriptionID)
		if d.pool[idx].level > d.maxLevel {
			d.maxLevel = d.pool[idx].level
		}
		return
	}

	var idx int
	if opt.kind == treeValue {
		idx = d.alloc(dagEntry[T]{exprID: opt.id, kind: nodeLeaf, pred: opt.pred, cost: opt.cost, level: 1, useCount: 1, live: true, isRoot: true})
		d.exprIndex.Set(opt.id, idx)
		// A bare-predicate root is trivially its own frontier member —
		// there is no binary parent to gate it on (original source's
		// insert_root pushes a Value-root onto `predicates`
		// unconditionally).
		d.frontier[idx] = struct{}{}
	} else {
		leftIdx := d.insertChild(opt.left)
		rightIdx := d.insertChild(opt.right)
		op := OpAnd
		if opt.kind == treeOr {
			op = OpOr
		}
		level := 1 + maxInt(d.pool[leftIdx].level, d.pool[rightIdx].level)
		idx = d.alloc(dagEntry[T]{
			exprID: opt.id, kind: nodeRoot, op: op,
			children: [2]int{leftIdx, rightIdx}, cost: opt.cost, level: level, useCount: 1, live: true, isRoot: true,
		})
		d.exprIndex.Set(opt.id, idx)
		d.linkChild(idx, leftIdx, rightIdx, op)
	}
	d.roots[idx] = struct{}{}
	d.attachSubscription(idx, subscriptionID)
	if d.pool[idx].level > d.maxLevel {
		d.maxLevel = d.pool[idx].level
	}
}

// attachSubscription records subscriptionID on the root at idx. A
// subscription id can only ever point at one node at a time; re-adding it
// elsewhere detaches it from its previous node first.
func (d *dagStore[T]) attachSubscription(idx int, subscriptionID T) {
	if oldIdx, ok := d.subIndex[subscriptionID]; ok {
		if oldIdx == idx {
			d.pool[idx].useCount++
			return
		}
		d.removeSubscription(subscriptionID)
	}
	d.pool[idx].subs = append(d.pool[idx].subs, subscriptionID)
	d.subIndex[subscriptionID] = idx
}

// removeRule implements spec §4.3's deletion algorithm: decrement the
// root's use-count, and if it drops to zero, tombstone it and cascade the
// decrement into its children.
func (d *dagStore[T]) removeRule(subscriptionID T) {
	d.removeSubscription(subscriptionID)
	d.recomputeMaxLevel()
}

func (d *dagStore[T]) removeSubscription(subscriptionID T) {
	idx, ok := d.subIndex[subscriptionID]
	if !ok {
		return // unknown subscription id: no-op, per spec §4.5
	}
	delete(d.subIndex, subscriptionID)
	e := &d.pool[idx]
	for i, s := range e.subs {
		if s == subscriptionID {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			break
		}
	}
	d.decrementUseCount(idx)
}

func (d *dagStore[T]) decrementUseCount(idx int) {
	e := &d.pool[idx]
	if !e.live {
		return
	}
	e.useCount--
	if e.useCount > 0 {
		return
	}
	d.destroy(idx)
}

func (d *dagStore[T]) destroy(idx int) {
	e := &d.pool[idx]
	e.live = false
	d.exprIndex.Delete(e.exprID)
	delete(d.roots, idx)
	delete(d.frontier, idx)
	if e.kind != nodeLeaf {
		children := e.children
		d.decrementUseCount(children[0])
		d.decrementUseCount(children[1])
	}
}

func (d *dagStore[T]) recomputeMaxLevel() {
	maxLevel := 1
	for idx := range d.roots {
		if d.pool[idx].level > maxLevel {
			maxLevel = d.pool[idx].level
		}
	}
	d.maxLevel = maxLevel
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
