package tree

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/taxitip/core/parallel"
)

// Node is one node of a flattened tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64 // mean label of the samples reaching the node
	Impurity  float64 // variance of those labels
	Samples   int
	Gain      float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a fitted regression tree. Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

// PredictRow walks the tree for one feature vector. Values equal to a
// threshold go left.
func (t *Tree) PredictRow(row []float64) float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.IsLeaf() {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Depth returns the depth of the tree. A single leaf has depth 0.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		n := &t.Nodes[idx]
		if n.IsLeaf() {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	leaves := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// GrowConfig controls how a single tree is grown.
type GrowConfig struct {
	MaxDepth            int     // 0 grows a single leaf
	MinInstancesPerNode int     // minimum samples on each side of a split
	MinInfoGain         float64 // minimum impurity decrease to accept a split
	FeatureSubset       int     // features considered per node, <= 0 means all
	ParallelSplits      bool    // search features concurrently on large nodes
}

// parallelRowThreshold is the node size above which ParallelSplits takes effect.
const parallelRowThreshold = 4096

type split struct {
	feature int
	bin     int
	gain    float64
	nLeft   int
}

// Grow fits a regression tree on the given rows of ds. Rows may repeat, which
// is how bootstrap samples are represented. rng drives the per-node feature
// subsets and may be nil when cfg.FeatureSubset selects every feature.
//
// The returned importances hold, per feature, the sum of gain × samples over
// the nodes split on it. They are not normalised.
func Grow(ds *Dataset, y []float64, rows []int, cfg GrowConfig, rng *rand.Rand) (*Tree, []float64) {
	g := &grower{
		ds:          ds,
		y:           y,
		cfg:         cfg,
		rng:         rng,
		importances: make([]float64, ds.NFeatures),
	}
	g.build(append([]int(nil), rows...), 0)
	return &Tree{Nodes: g.nodes}, g.importances
}

type grower struct {
	ds          *Dataset
	y           []float64
	cfg         GrowConfig
	rng         *rand.Rand
	nodes       []Node
	importances []float64
}

func (g *grower) build(rows []int, depth int) int {
	idx := len(g.nodes)

	var sum, sumSq float64
	for _, r := range rows {
		sum += g.y[r]
		sumSq += g.y[r] * g.y[r]
	}
	n := float64(len(rows))
	mean := sum / n
	impurity := sumSq/n - mean*mean
	if impurity < 0 {
		impurity = 0
	}

	g.nodes = append(g.nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    mean,
		Impurity: impurity,
		Samples:  len(rows),
	})

	if depth >= g.cfg.MaxDepth || len(rows) < 2*max(g.cfg.MinInstancesPerNode, 1) || impurity == 0 {
		return idx
	}

	best, ok := g.bestSplit(rows, sum)
	if !ok {
		return idx
	}

	bins := g.ds.Bins[best.feature]
	left := make([]int, 0, best.nLeft)
	right := make([]int, 0, len(rows)-best.nLeft)
	for _, r := range rows {
		if int(bins[r]) <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	g.importances[best.feature] += best.gain * n

	leftIdx := g.build(left, depth+1)
	rightIdx := g.build(right, depth+1)

	node := &g.nodes[idx]
	node.Feature = best.feature
	node.Threshold = g.ds.Thresholds[best.feature][best.bin]
	node.Gain = best.gain
	node.Left = leftIdx
	node.Right = rightIdx
	return idx
}

func (g *grower) candidateFeatures() []int {
	nf := g.ds.NFeatures
	k := g.cfg.FeatureSubset
	if k <= 0 || k >= nf || g.rng == nil {
		feats := make([]int, nf)
		for i := range feats {
			feats[i] = i
		}
		return feats
	}
	feats := g.rng.Perm(nf)[:k]
	sort.Ints(feats)
	return feats
}

// bestSplit scans the histograms of the candidate features. Ties keep the
// lowest feature index, then the lowest threshold.
func (g *grower) bestSplit(rows []int, total float64) (split, bool) {
	feats := g.candidateFeatures()
	results := make([]split, len(feats))
	found := make([]bool, len(feats))

	threshold := len(feats)
	if g.cfg.ParallelSplits && len(rows) >= parallelRowThreshold {
		threshold = 1
	}
	parallel.ParallelizeWithThreshold(len(feats), threshold, func(start, end int) {
		for i := start; i < end; i++ {
			results[i], found[i] = g.bestSplitForFeature(rows, feats[i], total)
		}
	})

	var best split
	ok := false
	for i := range feats {
		if found[i] && (!ok || results[i].gain > best.gain) {
			best, ok = results[i], true
		}
	}
	return best, ok
}

func (g *grower) bestSplitForFeature(rows []int, feature int, total float64) (split, bool) {
	th := g.ds.Thresholds[feature]
	if len(th) == 0 {
		return split{}, false
	}

	nb := len(th) + 1
	counts := make([]int, nb)
	sums := make([]float64, nb)
	bins := g.ds.Bins[feature]
	for _, r := range rows {
		b := bins[r]
		counts[b]++
		sums[b] += g.y[r]
	}

	n := len(rows)
	nf := float64(n)
	parentTerm := total * total / nf
	minInst := max(g.cfg.MinInstancesPerNode, 1)

	best := split{feature: feature}
	ok := false
	nLeft := 0
	sumLeft := 0.0
	for k := 0; k < len(th); k++ {
		nLeft += counts[k]
		sumLeft += sums[k]
		nRight := n - nLeft
		if nLeft < minInst {
			continue
		}
		if nRight < minInst {
			break
		}
		sumRight := total - sumLeft
		gain := (sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight) - parentTerm) / nf
		if gain <= 0 || gain < g.cfg.MinInfoGain {
			continue
		}
		if !ok || gain > best.gain {
			best.bin, best.gain, best.nLeft = k, gain, nLeft
			ok = true
		}
	}
	return best, ok
}

// NormalizeImportances scales v to sum 1 in place. An all-zero vector is left unchanged.
func NormalizeImportances(v []float64) []float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total > 0 {
		for i := range v {
			v[i] /= total
		}
	}
	return v
}

// AggregateImportances averages per-tree importances after normalising each
// tree, then normalises the result.
func AggregateImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		norm := NormalizeImportances(append([]float64(nil), imp...))
		for f, v := range norm {
			out[f] += v
		}
	}
	return NormalizeImportances(out)
}
