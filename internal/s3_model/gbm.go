package s3_model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// Params are the gradient boosting hyperparameters
type Params struct {
	NEstimators     int     `yaml:"n_estimators" json:"n_estimators" default:"200" validate:"min=1,max=5000"`
	MaxDepth        int     `yaml:"max_depth" json:"max_depth" default:"5" validate:"min=1,max=16"`
	LearningRate    float64 `yaml:"learning_rate" json:"learning_rate" default:"0.05" validate:"gt=0,lte=1"`
	Subsample       float64 `yaml:"subsample" json:"subsample" default:"0.8" validate:"gt=0,lte=1"`
	ColsampleByTree float64 `yaml:"colsample_bytree" json:"colsample_bytree" default:"0.8" validate:"gt=0,lte=1"`
	Lambda          float64 `yaml:"reg_lambda" json:"reg_lambda" default:"1" validate:"gte=0"`
	Gamma           float64 `yaml:"gamma" json:"gamma" validate:"gte=0"`
	MinChildWeight  float64 `yaml:"min_child_weight" json:"min_child_weight" default:"1" validate:"gte=0"`
	Seed            int64   `yaml:"random_state" json:"random_state" default:"42"`
}

// DefaultParams returns the production hyperparameters
func DefaultParams() Params {
	return Params{
		NEstimators:     200,
		MaxDepth:        5,
		LearningRate:    0.05,
		Subsample:       0.8,
		ColsampleByTree: 0.8,
		Lambda:          1,
		MinChildWeight:  1,
		Seed:            42,
	}
}

// node is one split or leaf in a flat tree.
// Leaf weights already include the learning rate.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Leaf      bool    `json:"leaf"`
	Weight    float64 `json:"w"`
	Gain      float64 `json:"g,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Weight
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// GBM is a gradient-boosted decision tree binary classifier with logistic loss.
// Trees are grown level-wise with exact greedy splits on second-order statistics.
type GBM struct {
	Params      Params  `json:"params"`
	BaseScore   float64 `json:"base_score"`
	NumFeatures int     `json:"num_features"`
	Trees       []tree  `json:"trees"`
}

// NewGBM creates an unfitted model
func NewGBM(params Params) *GBM {
	return &GBM{Params: params}
}

// Fit trains on X (rows x features) and binary labels y.
// The context is checked between trees.
func (m *GBM) Fit(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("fit: no rows")
	}
	if len(y) != n {
		return fmt.Errorf("fit: %d rows but %d labels", n, len(y))
	}
	nf := len(X[0])
	for i, row := range X {
		if len(row) != nf {
			return fmt.Errorf("fit: row %d has %d features, want %d", i, len(row), nf)
		}
	}

	p := m.Params
	rng := rand.New(rand.NewSource(p.Seed))

	positives := 0
	for _, label := range y {
		positives += label
	}
	mean := clamp(float64(positives)/float64(n), 1e-6, 1-1e-6)

	m.BaseScore = math.Log(mean / (1 - mean))
	m.NumFeatures = nf
	m.Trees = m.Trees[:0]

	order := presort(X, nf)
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = m.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	for round := 0; round < p.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := range margin {
			prob := sigmoid(margin[i])
			grad[i] = prob - float64(y[i])
			hess[i] = math.Max(prob*(1-prob), 1e-16)
		}

		rows := sampleRows(rng, n, p.Subsample)
		cols := sampleCols(rng, nf, p.ColsampleByTree)

		t := m.growTree(X, grad, hess, rows, cols, order)
		for i := range margin {
			margin[i] += t.predict(X[i])
		}
		m.Trees = append(m.Trees, t)
	}

	return nil
}

// splitScan accumulates left-side statistics for one node while scanning a feature
type splitScan struct {
	gl, hl   float64
	last     float64
	seen     bool
	bestGain float64
	bestFeat int
	bestThr  float64
}

func (m *GBM) growTree(X [][]float64, grad, hess []float64, rows []bool, cols []int, order [][]int) tree {
	p := m.Params
	t := tree{Nodes: []node{{}}}

	// pos[i] is the open node a sampled row belongs to, -1 otherwise
	pos := make([]int, len(X))
	for i := range pos {
		if rows[i] {
			pos[i] = 0
		} else {
			pos[i] = -1
		}
	}

	open := []int{0}
	for depth := 0; len(open) > 0; depth++ {
		sumG := make(map[int]float64, len(open))
		sumH := make(map[int]float64, len(open))
		for i, nid := range pos {
			if nid >= 0 {
				sumG[nid] += grad[i]
				sumH[nid] += hess[i]
			}
		}

		if depth == p.MaxDepth {
			for _, nid := range open {
				t.Nodes[nid] = leaf(sumG[nid], sumH[nid], p)
			}
			break
		}

		scans := make(map[int]*splitScan, len(open))
		for _, nid := range open {
			scans[nid] = &splitScan{bestFeat: -1}
		}

		for _, f := range cols {
			for _, s := range scans {
				s.gl, s.hl, s.seen = 0, 0, false
			}
			for _, i := range order[f] {
				nid := pos[i]
				if nid < 0 {
					continue
				}
				s := scans[nid]
				x := X[i][f]
				if s.seen && x != s.last {
					g, h := sumG[nid], sumH[nid]
					gr, hr := g-s.gl, h-s.hl
					if s.hl >= p.MinChildWeight && hr >= p.MinChildWeight {
						gain := 0.5*(s.gl*s.gl/(s.hl+p.Lambda)+gr*gr/(hr+p.Lambda)-g*g/(h+p.Lambda)) - p.Gamma
						if gain > s.bestGain {
							s.bestGain = gain
							s.bestFeat = f
							s.bestThr = (s.last + x) / 2
						}
					}
				}
				s.gl += grad[i]
				s.hl += hess[i]
				s.last = x
				s.seen = true
			}
		}

		var next []int
		split := make(map[int]bool, len(open))
		for _, nid := range open {
			s := scans[nid]
			if s.bestFeat < 0 {
				t.Nodes[nid] = leaf(sumG[nid], sumH[nid], p)
				continue
			}
			left := len(t.Nodes)
			t.Nodes = append(t.Nodes, node{}, node{})
			t.Nodes[nid] = node{Feature: s.bestFeat, Threshold: s.bestThr, Left: left, Right: left + 1, Gain: s.bestGain}
			split[nid] = true
			next = append(next, left, left+1)
		}

		for i, nid := range pos {
			if nid < 0 {
				continue
			}
			if !split[nid] {
				pos[i] = -1
				continue
			}
			n := t.Nodes[nid]
			if X[i][n.Feature] < n.Threshold {
				pos[i] = n.Left
			} else {
				pos[i] = n.Right
			}
		}
		open = next
	}

	return t
}

func leaf(g, h float64, p Params) node {
	return node{Leaf: true, Weight: -g / (h + p.Lambda) * p.LearningRate}
}

// FeatureImportance totals split gain per feature across all trees, highest first.
// Features that never split are listed with zero gain so the result always covers names.
func (m *GBM) FeatureImportance(names []string) ([]contracts.FeatureImportance, error) {
	if len(names) != m.NumFeatures {
		return nil, fmt.Errorf("importance: got %d names, want %d", len(names), m.NumFeatures)
	}

	out := make([]contracts.FeatureImportance, len(names))
	for i, name := range names {
		out[i].Feature = name
	}
	total := 0.0
	for _, t := range m.Trees {
		for _, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			out[n.Feature].Gain += n.Gain
			out[n.Feature].Splits++
			total += n.Gain
		}
	}
	if total > 0 {
		for i := range out {
			out[i].Share = out[i].Gain / total
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Gain != out[b].Gain {
			return out[a].Gain > out[b].Gain
		}
		return out[a].Splits > out[b].Splits
	})
	return out, nil
}

// PredictProba returns P(class 1) for one feature vector
func (m *GBM) PredictProba(x []float64) (float64, error) {
	if len(x) != m.NumFeatures {
		return 0, fmt.Errorf("predict: got %d features, want %d", len(x), m.NumFeatures)
	}
	margin := m.BaseScore
	for i := range m.Trees {
		margin += m.Trees[i].predict(x)
	}
	return sigmoid(margin), nil
}

// PredictProbaBatch returns P(class 1) for every row
func (m *GBM) PredictProbaBatch(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		prob, err := m.PredictProba(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = prob
	}
	return out, nil
}

// presort returns, per feature, row indices ordered by value
func presort(X [][]float64, nf int) [][]int {
	order := make([][]int, nf)
	for f := 0; f < nf; f++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return X[idx[a]][f] < X[idx[b]][f] })
		order[f] = idx
	}
	return order
}

func sampleRows(rng *rand.Rand, n int, rate float64) []bool {
	rows := make([]bool, n)
	if rate >= 1 {
		for i := range rows {
			rows[i] = true
		}
		return rows
	}
	picked := 0
	for i := range rows {
		if rng.Float64() < rate {
			rows[i] = true
			picked++
		}
	}
	if picked == 0 {
		rows[rng.Intn(n)] = true
	}
	return rows
}

func sampleCols(rng *rand.Rand, nf int, rate float64) []int {
	k := int(math.Round(rate * float64(nf)))
	if k < 1 {
		k = 1
	}
	if k >= nf {
		cols := make([]int, nf)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	cols := rng.Perm(nf)[:k]
	sort.Ints(cols)
	return cols
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
