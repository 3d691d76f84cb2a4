// Package forest implements the random-forest classifier behind the
// eligibility model: bagged decision trees with Gini splits, sqrt feature
// subsampling and balanced class weights.
package forest

import (
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ErrTooFewClasses is returned when the training labels contain fewer than
// two classes; a classifier cannot be fit on a single class.
var ErrTooFewClasses = errors.New("training data contains fewer than two classes")

// Params are the ensemble hyperparameters.
type Params struct {
	NumTrees        int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"random_state"`
}

// DefaultParams mirrors the production classifier configuration.
func DefaultParams() Params {
	return Params{
		NumTrees:        150,
		MaxDepth:        12,
		MinSamplesSplit: 10,
		MinSamplesLeaf:  5,
		Seed:            42,
	}
}

// Node is one decision-tree node. Leaf nodes carry the class-weighted
// positive-class probability; internal nodes route on feature <= threshold.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Proba     float64 `json:"proba"`
}

// Tree is a single decision tree, nodes stored breadth-agnostically in a
// slice with index links.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a trained ensemble. It serializes to JSON in full so the model
// bundle can be persisted and reloaded without retraining.
type Forest struct {
	Params      Params    `json:"params"`
	NumFeatures int       `json:"num_features"`
	Trees       []Tree    `json:"trees"`
	Importance  []float64 `json:"feature_importance"`
}

// Fit trains an ensemble on X (row-major feature vectors) and boolean labels.
// Trees are built in parallel across available compute units; each tree seeds
// its own RNG from Params.Seed, so the fit is deterministic for a fixed seed
// regardless of scheduling.
func Fit(x [][]float64, y []bool, p Params) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("empty or mismatched training data")
	}

	var pos, neg int
	for _, label := range y {
		if label {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, ErrTooFewClasses
	}

	// Balanced class weights: n_samples / (n_classes * class_count).
	n := float64(len(y))
	wPos := n / (2 * float64(pos))
	wNeg := n / (2 * float64(neg))

	f := &Forest{
		Params:      p,
		NumFeatures: len(x[0]),
		Trees:       make([]Tree, p.NumTrees),
	}

	importances := make([][]float64, p.NumTrees)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < p.NumTrees; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(p.Seed + int64(i)*7919))
			b := &treeBuilder{
				x:          x,
				y:          y,
				wPos:       wPos,
				wNeg:       wNeg,
				params:     p,
				rng:        rng,
				mtry:       maxInt(1, int(math.Sqrt(float64(f.NumFeatures)))),
				importance: make([]float64, f.NumFeatures),
			}
			f.Trees[i] = b.build()
			importances[i] = b.importance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.Importance = averageImportance(importances, f.NumFeatures)
	return f, nil
}

// PredictProba returns the positive-class probability for one feature vector:
// the mean of the per-tree leaf probabilities.
func (f *Forest) PredictProba(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Predict returns the class label at the fixed 0.5 threshold. Label and
// probability come from the same ensemble average, so they never disagree.
func (f *Forest) Predict(x []float64) bool {
	return f.PredictProba(x) >= 0.5
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Leaf {
			return node.Proba
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// averageImportance normalizes per-tree importances, averages them, and
// renormalizes so the final weights sum to 1.
func averageImportance(perTree [][]float64, numFeatures int) []float64 {
	total := make([]float64, numFeatures)
	for _, imp := range perTree {
		var sum float64
		for _, v := range imp {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for j, v := range imp {
			total[j] += v / sum
		}
	}
	var sum float64
	for _, v := range total {
		sum += v
	}
	if sum > 0 {
		for j := range total {
			total[j] /= sum
		}
	}
	return total
}

type treeBuilder struct {
	x          [][]float64
	y          []bool
	wPos, wNeg float64
	params     Params
	rng        *rand.Rand
	mtry       int
	importance []float64
	nodes      []Node
	rootWeight float64
}

func (b *treeBuilder) build() Tree {
	// Bootstrap sample, with replacement, same size as the training set.
	n := len(b.x)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = b.rng.Intn(n)
	}
	b.rootWeight = b.setWeight(indices)
	b.grow(indices, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) weight(i int) float64 {
	if b.y[i] {
		return b.wPos
	}
	return b.wNeg
}

func (b *treeBuilder) setWeight(indices []int) float64 {
	var w float64
	for _, i := range indices {
		w += b.weight(i)
	}
	return w
}

// gini returns the weighted Gini impurity and the total/positive weight of
// the index set.
func (b *treeBuilder) gini(indices []int) (impurity, total, positive float64) {
	for _, i := range indices {
		w := b.weight(i)
		total += w
		if b.y[i] {
			positive += w
		}
	}
	if total == 0 {
		return 0, 0, 0
	}
	p := positive / total
	return 1 - p*p - (1-p)*(1-p), total, positive
}

// grow appends the subtree for the given sample set and returns its node
// index.
func (b *treeBuilder) grow(indices []int, depth int) int {
	impurity, total, positive := b.gini(indices)

	idx := len(b.nodes)
	if depth >= b.params.MaxDepth || len(indices) < b.params.MinSamplesSplit || impurity == 0 {
		b.nodes = append(b.nodes, Node{Leaf: true, Proba: positive / total})
		return idx
	}

	feature, threshold, decrease, ok := b.bestSplit(indices, impurity, total)
	if !ok {
		b.nodes = append(b.nodes, Node{Leaf: true, Proba: positive / total})
		return idx
	}

	b.importance[feature] += total / b.rootWeight * decrease

	var left, right []int
	for _, i := range indices {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	// Reserve the slot before recursing so child indices land after it.
	b.nodes = append(b.nodes, Node{Feature: feature, Threshold: threshold})
	leftIdx := b.grow(left, depth+1)
	rightIdx := b.grow(right, depth+1)
	b.nodes[idx].Left = leftIdx
	b.nodes[idx].Right = rightIdx
	return idx
}

type sampleValue struct {
	value float64
	label bool
}

// bestSplit searches a random mtry-feature subset for the threshold with the
// largest impurity decrease, honoring the minimum leaf size.
func (b *treeBuilder) bestSplit(indices []int, parentImpurity, parentWeight float64) (feature int, threshold, decrease float64, ok bool) {
	features := b.rng.Perm(len(b.x[0]))[:b.mtry]

	bestDecrease := 0.0
	for _, f := range features {
		samples := make([]sampleValue, len(indices))
		for i, idx := range indices {
			samples[i] = sampleValue{value: b.x[idx][f], label: b.y[idx]}
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i].value < samples[j].value })

		totalW := parentWeight
		var leftW, leftPos, totalPos float64
		for _, s := range samples {
			if s.label {
				totalPos += b.wPos
			}
		}

		for i := 0; i < len(samples)-1; i++ {
			w := b.wNeg
			if samples[i].label {
				w = b.wPos
				leftPos += w
			}
			leftW += w

			if samples[i].value == samples[i+1].value {
				continue
			}
			if i+1 < b.params.MinSamplesLeaf || len(samples)-i-1 < b.params.MinSamplesLeaf {
				continue
			}

			rightW := totalW - leftW
			rightPos := totalPos - leftPos
			d := parentImpurity - (leftW/totalW)*giniOf(leftPos, leftW) - (rightW/totalW)*giniOf(rightPos, rightW)
			if d > bestDecrease {
				bestDecrease = d
				feature = f
				threshold = (samples[i].value + samples[i+1].value) / 2
				ok = true
			}
		}
	}
	return feature, threshold, bestDecrease, ok
}

func giniOf(positive, total float64) float64 {
	if total == 0 {
		return 0
	}
	p := positive / total
	return 1 - p*p - (1-p)*(1-p)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
