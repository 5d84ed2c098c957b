package forecast

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
)

// ForestParams controls Forest fitting.
type ForestParams struct {
	Estimators     int
	MinSamplesLeaf int
	Seed           int64
}

// Forest is a bagged ensemble of regression trees. Each tree is grown on a
// bootstrap sample with variance-reduction splits over all features; the
// prediction is the mean of the trees.
type Forest struct {
	Model     string    `json:"model"`
	Features  []string  `json:"features"`
	TrainedAt time.Time `json:"trained_at"`
	TrainRows int       `json:"train_rows"`
	Trees     []Tree    `json:"trees"`
}

// Tree is a flattened binary regression tree; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split (Left/Right index into Tree.Nodes) or, when Leaf is set, a
// constant prediction.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// FitForest grows a forest on x (rows of features) and y. Fitting is
// deterministic for a given seed.
func FitForest(x [][]float64, y []float64, p ForestParams) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("fit forest on %d rows and %d targets: %w", len(x), len(y), apperr.ErrInvalidArgument)
	}
	if p.Estimators <= 0 {
		return nil, fmt.Errorf("estimators %d: %w", p.Estimators, apperr.ErrInvalidArgument)
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), width, apperr.ErrInvalidArgument)
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	f := &Forest{TrainRows: len(x), Trees: make([]Tree, 0, p.Estimators)}
	n := len(x)
	for t := 0; t < p.Estimators; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		g := grower{x: x, y: y, minLeaf: p.MinSamplesLeaf}
		g.grow(sample)
		f.Trees = append(f.Trees, Tree{Nodes: g.nodes})
	}
	return f, nil
}

// Predict returns the mean tree prediction for one feature vector.
func (f *Forest) Predict(features []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("forest has no trees")
	}
	if len(f.Features) > 0 && len(features) != len(f.Features) {
		return 0, fmt.Errorf("got %d features, model expects %d: %w", len(features), len(f.Features), apperr.ErrInvalidArgument)
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(features)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictAll predicts every row of x.
func (f *Forest) PredictAll(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := f.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t Tree) predict(features []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type grower struct {
	x       [][]float64
	y       []float64
	minLeaf int
	nodes   []Node
}

// grow appends the subtree for idx and returns its node index.
func (g *grower) grow(idx []int) int {
	self := len(g.nodes)
	g.nodes = append(g.nodes, Node{})

	mean := g.mean(idx)
	feature, threshold, ok := g.bestSplit(idx)
	if !ok {
		g.nodes[self] = Node{Leaf: true, Value: mean}
		return self
	}

	var left, right []int
	for _, i := range idx {
		if g.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		g.nodes[self] = Node{Leaf: true, Value: mean}
		return self
	}
	l := g.grow(left)
	r := g.grow(right)
	g.nodes[self] = Node{Value: mean, Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

func (g *grower) mean(idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += g.y[i]
	}
	return s / float64(len(idx))
}

// bestSplit finds the feature and threshold with the lowest summed squared
// error of the two children. ok is false when no split leaves at least
// minLeaf samples on each side and reduces the error.
func (g *grower) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	if n < 2*g.minLeaf {
		return 0, 0, false
	}

	var total, totalSq float64
	for _, i := range idx {
		total += g.y[i]
		totalSq += g.y[i] * g.y[i]
	}
	parentSSE := totalSq - total*total/float64(n)
	if parentSSE <= 1e-12 {
		return 0, 0, false
	}

	best := parentSSE
	sorted := make([]int, n)
	for f := range g.x[idx[0]] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			xa, xb := g.x[sorted[a]][f], g.x[sorted[b]][f]
			if xa != xb {
				return xa < xb
			}
			return sorted[a] < sorted[b]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yv := g.y[sorted[k]]
			leftSum += yv
			leftSq += yv * yv
			nl := k + 1
			nr := n - nl
			if nl < g.minLeaf || nr < g.minLeaf {
				continue
			}
			lo, hi := g.x[sorted[k]][f], g.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < best-1e-12 {
				best = sse
				feature = f
				threshold = (lo + hi) / 2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}
