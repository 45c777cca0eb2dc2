package regressor

import "container/heap"

// Node is one node of a regression tree. Leaves have Left == -1.
type Node struct {
	Feature   int
	Bin       int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a binary regression tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for raw feature values: x <= Threshold goes left.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// predictBinned walks the tree for one row of pre-binned training data.
func (t *Tree) predictBinned(bins [][]uint8, row int) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if int(bins[n.Feature][row]) <= n.Bin {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) scale(factor float64) {
	for i := range t.Nodes {
		t.Nodes[i].Value *= factor
	}
}

// growOptions bounds the shape of one tree. Zero MaxLeaves or MaxDepth means unbounded.
type growOptions struct {
	MaxLeaves int
	MaxDepth  int
	MinLeaf   int
}

// treeGrower grows one tree over binned data with squared-error splits,
// always expanding the leaf whose best split has the highest gain.
type treeGrower struct {
	bins     [][]uint8
	binner   *binner
	target   []float64
	features []int
	opts     growOptions

	sums   [256]float64
	counts [256]int
}

type split struct {
	feature   int
	bin       int
	gain      float64
	leftSum   float64
	leftCount int
}

type frontier struct {
	node  int
	rows  []int
	depth int
	sum   float64
	best  split
}

// frontierHeap orders splittable leaves by gain, then by node index.
type frontierHeap []*frontier

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].best.gain != h[j].best.gain {
		return h[i].best.gain > h[j].best.gain
	}
	return h[i].node < h[j].node
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x any)   { *h = append(*h, x.(*frontier)) }
func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

const minGain = 1e-12

func (g *treeGrower) grow(rows []int) Tree {
	if g.opts.MinLeaf < 1 {
		g.opts.MinLeaf = 1
	}
	rootSum := g.sum(rows)
	tree := Tree{Nodes: []Node{leaf(rootSum, len(rows))}}

	open := &frontierHeap{}
	g.push(open, 0, rows, 0, rootSum)
	leaves := 1
	for open.Len() > 0 && (g.opts.MaxLeaves <= 0 || leaves < g.opts.MaxLeaves) {
		c := heap.Pop(open).(*frontier)

		left, right := g.partition(c.rows, c.best)
		rightSum := c.sum - c.best.leftSum

		li := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, leaf(c.best.leftSum, len(left)), leaf(rightSum, len(right)))
		parent := &tree.Nodes[c.node]
		parent.Feature = c.best.feature
		parent.Bin = c.best.bin
		parent.Threshold = g.binner.uppers[c.best.feature][c.best.bin]
		parent.Left = li
		parent.Right = li + 1
		leaves++

		g.push(open, li, left, c.depth+1, c.best.leftSum)
		g.push(open, li+1, right, c.depth+1, rightSum)
	}
	return tree
}

func leaf(sum float64, n int) Node {
	v := 0.0
	if n > 0 {
		v = sum / float64(n)
	}
	return Node{Left: -1, Right: -1, Value: v}
}

func (g *treeGrower) sum(rows []int) float64 {
	s := 0.0
	for _, r := range rows {
		s += g.target[r]
	}
	return s
}

// push queues a node for splitting if it can still be split profitably.
func (g *treeGrower) push(open *frontierHeap, node int, rows []int, depth int, sum float64) {
	if g.opts.MaxDepth > 0 && depth >= g.opts.MaxDepth {
		return
	}
	if len(rows) < 2*g.opts.MinLeaf {
		return
	}
	best, ok := g.bestSplit(rows, sum)
	if !ok {
		return
	}
	heap.Push(open, &frontier{node: node, rows: rows, depth: depth, sum: sum, best: best})
}

// bestSplit scans per-feature histograms for the split maximising
// SL²/nL + SR²/nR - S²/n. Ties keep the earliest feature and bin.
func (g *treeGrower) bestSplit(rows []int, total float64) (split, bool) {
	n := len(rows)
	parentScore := total * total / float64(n)
	best := split{gain: minGain}
	found := false

	for _, f := range g.features {
		nb := g.binner.numBins(f)
		if nb < 2 {
			continue
		}
		for b := 0; b < nb; b++ {
			g.sums[b] = 0
			g.counts[b] = 0
		}
		col := g.bins[f]
		for _, r := range rows {
			b := col[r]
			g.sums[b] += g.target[r]
			g.counts[b]++
		}

		leftSum, leftCount := 0.0, 0
		for b := 0; b < nb-1; b++ {
			leftSum += g.sums[b]
			leftCount += g.counts[b]
			rightCount := n - leftCount
			if leftCount < g.opts.MinLeaf {
				continue
			}
			if rightCount < g.opts.MinLeaf {
				break
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(leftCount) + rightSum*rightSum/float64(rightCount) - parentScore
			if gain > best.gain {
				best = split{feature: f, bin: b, gain: gain, leftSum: leftSum, leftCount: leftCount}
				found = true
			}
		}
	}
	return best, found
}

func (g *treeGrower) partition(rows []int, s split) (left, right []int) {
	left = make([]int, 0, s.leftCount)
	right = make([]int, 0, len(rows)-s.leftCount)
	col := g.bins[s.feature]
	for _, r := range rows {
		if int(col[r]) <= s.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}
