// Package dominators computes dominator trees over include graphs and uses
// them to attribute size to the edges that are solely responsible for it.
package dominators

// Tree is the dominator tree of the nodes reachable from a root. A Tree
// memoizes dominator sets and must not be shared between goroutines.
type Tree[K comparable] struct {
	keys  []K
	index map[K]int
	idom  []int
	memo  [][]K
}

type frame[K comparable] struct {
	v    int
	succ []K
	next int
}

// Compute builds the dominator tree with the simple Lengauer-Tarjan
// algorithm. Traversal and path compression are iterative, so deep include
// chains do not grow the stack.
func Compute[K comparable](root K, successors func(K) []K) *Tree[K] {
	t := &Tree[K]{index: map[K]int{}}
	var (
		parent []int
		pred   [][]int
	)
	visit := func(k K, from int) int {
		v := len(t.keys)
		t.index[k] = v
		t.keys = append(t.keys, k)
		parent = append(parent, from)
		pred = append(pred, nil)
		return v
	}

	// Step 1: number nodes in DFS preorder; numbers double as node ids.
	stack := []frame[K]{{v: visit(root, -1), succ: successors(root)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.succ) {
			stack = stack[:len(stack)-1]
			continue
		}
		k := top.succ[top.next]
		top.next++
		v := top.v
		w, seen := t.index[k]
		if !seen {
			w = visit(k, v)
			stack = append(stack, frame[K]{v: w, succ: successors(k)})
		}
		pred[w] = append(pred[w], v)
	}

	n := len(t.keys)
	semi := make([]int, n)
	label := make([]int, n)
	ancestor := make([]int, n)
	bucket := make([][]int, n)
	t.idom = make([]int, n)
	for v := 0; v < n; v++ {
		semi[v] = v
		label[v] = v
		ancestor[v] = -1
	}

	var chain []int
	compress := func(v int) {
		chain = append(chain[:0], v)
		for u := v; ancestor[ancestor[u]] != -1; u = ancestor[u] {
			chain = append(chain, ancestor[u])
		}
		for i := len(chain) - 2; i >= 0; i-- {
			x := chain[i]
			a := ancestor[x]
			if semi[label[a]] < semi[label[x]] {
				label[x] = label[a]
			}
			ancestor[x] = ancestor[a]
		}
	}
	eval := func(v int) int {
		if ancestor[v] == -1 {
			return v
		}
		compress(v)
		return label[v]
	}

	for w := n - 1; w > 0; w-- {
		// Step 2: semidominators.
		for _, v := range pred[w] {
			if u := eval(v); semi[u] < semi[w] {
				semi[w] = semi[u]
			}
		}
		bucket[semi[w]] = append(bucket[semi[w]], w)
		p := parent[w]
		ancestor[w] = p

		// Step 3: implicit immediate dominators.
		for _, v := range bucket[p] {
			if u := eval(v); semi[u] < semi[v] {
				t.idom[v] = u
			} else {
				t.idom[v] = p
			}
		}
		bucket[p] = nil
	}

	// Step 4: explicit immediate dominators.
	t.idom[0] = -1
	for w := 1; w < n; w++ {
		if t.idom[w] != semi[w] {
			t.idom[w] = t.idom[t.idom[w]]
		}
	}
	t.memo = make([][]K, n)
	return t
}

func (t *Tree[K]) Root() K {
	return t.keys[0]
}

// Reachable reports whether k was reached from the root.
func (t *Tree[K]) Reachable(k K) bool {
	_, ok := t.index[k]
	return ok
}

// Nodes lists the reachable nodes in DFS preorder.
func (t *Tree[K]) Nodes() []K {
	return append([]K(nil), t.keys...)
}

// Idom returns the immediate dominator of k. ok is false for the root and for
// unreachable nodes.
func (t *Tree[K]) Idom(k K) (idom K, ok bool) {
	v, ok := t.index[k]
	if !ok || t.idom[v] < 0 {
		return idom, false
	}
	return t.keys[t.idom[v]], true
}

// Dominators returns k followed by every node dominating it, nearest first,
// ending with the root. Nil for unreachable nodes.
func (t *Tree[K]) Dominators(k K) []K {
	v, ok := t.index[k]
	if !ok {
		return nil
	}
	return t.dominators(v)
}

func (t *Tree[K]) dominators(v int) []K {
	if t.memo[v] != nil {
		return t.memo[v]
	}
	// Walk up to the nearest memoized ancestor, then fill in downwards.
	var path []int
	for u := v; u >= 0 && t.memo[u] == nil; u = t.idom[u] {
		path = append(path, u)
	}
	for i := len(path) - 1; i >= 0; i-- {
		u := path[i]
		var up []K
		if t.idom[u] >= 0 {
			up = t.memo[t.idom[u]]
		}
		set := make([]K, 0, len(up)+1)
		set = append(set, t.keys[u])
		t.memo[u] = append(set, up...)
	}
	return t.memo[v]
}

// walk calls fn with v and every dominator of v, nearest first.
func (t *Tree[K]) walk(k K, fn func(K)) {
	v, ok := t.index[k]
	if !ok {
		return
	}
	for ; v >= 0; v = t.idom[v] {
		fn(t.keys[v])
	}
}
