package risk

import (
	"math/rand/v2"
	"sort"
)

// NumFeatures is the width of every feature vector: temperature, humidity, precipitation.
const NumFeatures = 3

// Forest is a bagged ensemble of binary CART trees split on gini impurity.
type Forest struct {
	trees []*node
}

// node is either a split (left when x[feature] <= threshold) or a leaf holding the class-1 fraction.
type node struct {
	leaf      bool
	p1        float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

// ForestParams controls training.
type ForestParams struct {
	Trees int
	// MaxFeatures is how many non-constant features, in random order, are evaluated per split.
	// The first one that lowers impurity wins; a node becomes a leaf when none does.
	MaxFeatures int
	Seed        uint64
}

// TrainForest fits a forest on rows x with binary labels y (0 or 1).
// The same inputs and params always give the same forest.
func TrainForest(x [][NumFeatures]float64, y []int, params ForestParams) *Forest {
	if params.Trees <= 0 {
		params.Trees = 1
	}
	if params.MaxFeatures <= 0 || params.MaxFeatures > NumFeatures {
		params.MaxFeatures = NumFeatures
	}
	rng := rand.New(rand.NewPCG(params.Seed, params.Seed))
	b := builder{x: x, y: y, maxFeatures: params.MaxFeatures, rng: rng}

	f := &Forest{trees: make([]*node, 0, params.Trees)}
	for t := 0; t < params.Trees; t++ {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.IntN(len(x))
		}
		f.trees = append(f.trees, b.build(sample))
	}
	return f
}

// PredictProba returns the mean class-1 probability over all trees.
func (f *Forest) PredictProba(features [NumFeatures]float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		n := t
		for !n.leaf {
			if features[n.feature] <= n.threshold {
				n = n.left
			} else {
				n = n.right
			}
		}
		sum += n.p1
	}
	return sum / float64(len(f.trees))
}

// Size returns the number of trees.
func (f *Forest) Size() int {
	return len(f.trees)
}

type builder struct {
	x           [][NumFeatures]float64
	y           []int
	maxFeatures int
	rng         *rand.Rand
}

func (b *builder) build(idx []int) *node {
	ones := b.countOnes(idx)
	if len(idx) == 0 {
		return &node{leaf: true}
	}
	leaf := &node{leaf: true, p1: float64(ones) / float64(len(idx))}
	if ones == 0 || ones == len(idx) {
		return leaf
	}

	parent := gini(ones, len(idx))
	tried := 0
	for _, f := range b.rng.Perm(NumFeatures) {
		if tried >= b.maxFeatures {
			break
		}
		thr, impurity, ok := b.bestSplit(idx, f)
		if !ok {
			// constant feature in this node; does not count towards maxFeatures
			continue
		}
		tried++
		if parent-impurity <= 1e-12 {
			continue
		}
		var left, right []int
		for _, i := range idx {
			if b.x[i][f] <= thr {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		return &node{
			feature:   f,
			threshold: thr,
			left:      b.build(left),
			right:     b.build(right),
		}
	}
	return leaf
}

// bestSplit scans midpoints between consecutive distinct values of feature f and returns the
// threshold with the lowest weighted child gini. ok is false when f is constant over idx.
func (b *builder) bestSplit(idx []int, f int) (threshold, impurity float64, ok bool) {
	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return b.x[sorted[i]][f] < b.x[sorted[j]][f]
	})

	total := len(sorted)
	totalOnes := b.countOnes(sorted)
	leftOnes := 0
	impurity = 2
	for i := 0; i < total-1; i++ {
		leftOnes += b.y[sorted[i]]
		lo, hi := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
		if lo == hi {
			continue
		}
		nl, nr := i+1, total-i-1
		w := (float64(nl)*gini(leftOnes, nl) + float64(nr)*gini(totalOnes-leftOnes, nr)) / float64(total)
		if w < impurity {
			impurity = w
			threshold = lo + (hi-lo)/2
			ok = true
		}
	}
	return threshold, impurity, ok
}

func (b *builder) countOnes(idx []int) int {
	n := 0
	for _, i := range idx {
		n += b.y[i]
	}
	return n
}

func gini(ones, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(ones) / float64(n)
	return 2 * p * (1 - p)
}
