package model

import (
	"fmt"

	"github.com/born-ml/nncnn/internal/graph"
	"github.com/born-ml/nncnn/internal/instance"
)

// pooler is implemented by the max, min and avg pooling nodes.
type pooler interface {
	graph.Node
	SetParam(maxSize int)
	Init(dim int, dropProb float64, pool *graph.MemoryPool)
	Forward(g *graph.Graph, ins []graph.Node)
}

// ComputationGraph wires the nodes of one forward pass.
//
// Branches:
//   - words: lookup [+ external lookup] -> window -> uni(relu) -> pooling
//   - attributes: lookup -> avg/max/min pooling -> concat
//   - evaluations: per span chars lookup -> window -> uni(tanh) -> max/min/avg
//     pooling -> concat; across spans max/min/avg pooling -> concat
//   - polarity: lookup -> uni(sigmoid)
//
// The four branch summaries meet in a four-input layer followed by the linear
// output layer. Empty groups are replaced by zero buckets.
type ComputationGraph struct {
	*graph.Graph

	hp     *HyperParams
	hasExt bool

	wordInputs    []graph.Lookup
	extWordInputs []graph.Lookup
	wordConcats   []graph.Concat // word ⊕ external word, only with external embeddings
	wordWindow    graph.Window
	hidden        []graph.Uni
	wordPoolings  []pooler
	wordPoolCat   graph.Concat
	wordBucket    graph.Bucket

	attInputs  []graph.Lookup
	attBucket  graph.Bucket
	attAvgPool graph.AvgPool
	attMaxPool graph.MaxPool
	attMinPool graph.MinPool
	attPoolCat graph.Concat

	evalCharInputs   [][]graph.Lookup
	evalCharWindows  []graph.Window
	evalCharHiddens  [][]graph.Uni
	evalCharMaxPools []graph.MaxPool
	evalCharMinPools []graph.MinPool
	evalCharAvgPools []graph.AvgPool
	evalCharPoolCats []graph.Concat
	evalCharBucket   graph.Bucket // stands in for the hidden states of an empty span

	evalMaxPool graph.MaxPool
	evalMinPool graph.MinPool
	evalAvgPool graph.AvgPool
	evalBucket  graph.Bucket
	evalPoolCat graph.Concat

	polarInput  graph.Lookup
	polarHidden graph.Uni

	segAttEvalPolar graph.Four
	output          graph.Linear
}

// NewComputationGraph creates an empty graph whose dropout masks use seed.
func NewComputationGraph(seed uint64) *ComputationGraph {
	return &ComputationGraph{Graph: graph.New(seed)}
}

// CreateNodes allocates enough nodes for the given maxima.
func (cg *ComputationGraph) CreateNodes(sentLength, attSize, evalSize, evalLength int) {
	cg.wordInputs = make([]graph.Lookup, sentLength)
	cg.extWordInputs = make([]graph.Lookup, sentLength)
	cg.wordConcats = make([]graph.Concat, sentLength)
	cg.wordWindow.Resize(sentLength)
	cg.hidden = make([]graph.Uni, sentLength)

	cg.attInputs = make([]graph.Lookup, attSize)
	cg.attAvgPool.SetParam(attSize)
	cg.attMaxPool.SetParam(attSize)
	cg.attMinPool.SetParam(attSize)

	cg.evalCharInputs = make([][]graph.Lookup, evalSize)
	cg.evalCharWindows = make([]graph.Window, evalSize)
	cg.evalCharHiddens = make([][]graph.Uni, evalSize)
	cg.evalCharMaxPools = make([]graph.MaxPool, evalSize)
	cg.evalCharMinPools = make([]graph.MinPool, evalSize)
	cg.evalCharAvgPools = make([]graph.AvgPool, evalSize)
	cg.evalCharPoolCats = make([]graph.Concat, evalSize)
	for i := 0; i < evalSize; i++ {
		cg.evalCharInputs[i] = make([]graph.Lookup, evalLength)
		cg.evalCharWindows[i].Resize(evalLength)
		cg.evalCharHiddens[i] = make([]graph.Uni, evalLength)
		cg.evalCharMaxPools[i].SetParam(evalLength)
		cg.evalCharMinPools[i].SetParam(evalLength)
		cg.evalCharAvgPools[i].SetParam(evalLength)
	}

	cg.evalMaxPool.SetParam(evalSize)
	cg.evalMinPool.SetParam(evalSize)
	cg.evalAvgPool.SetParam(evalSize)
}

// CreateNodesFor allocates nodes for the limits in hp.
func (cg *ComputationGraph) CreateNodesFor(hp *HyperParams) {
	cg.CreateNodes(hp.MaxSentenceLength, hp.MaxAttSize, hp.MaxEvalSize, hp.MaxEvalLength)
}

// Initial binds parameters and allocates node buffers from pool.
func (cg *ComputationGraph) Initial(m *ModelParams, hp *HyperParams, pool *graph.MemoryPool) {
	cg.hp = hp
	cg.hasExt = m.ExtWords != nil
	if cg.hasExt != (hp.ExtWordDim > 0) {
		panic(fmt.Sprintf("model: ext word dim %d disagrees with external table presence %v", hp.ExtWordDim, cg.hasExt))
	}

	for i := range cg.wordInputs {
		cg.wordInputs[i].SetParam(m.Words)
		cg.wordInputs[i].Init(hp.WordDim, hp.DropProb, pool)
		if cg.hasExt {
			cg.extWordInputs[i].SetParam(m.ExtWords)
			cg.extWordInputs[i].Init(hp.ExtWordDim, hp.DropProb, pool)
			cg.wordConcats[i].Init(hp.WordInputDim(), -1, pool)
		}
		cg.hidden[i].SetParam(m.Hidden)
		cg.hidden[i].Init(hp.WordHiddenSize, hp.DropProb, pool)
		cg.hidden[i].SetFunctions(graph.ReLU)
	}
	cg.wordWindow.Init(hp.WordInputDim(), hp.WordContext, pool)
	cg.wordPoolings = cg.wordPoolings[:0]
	for _, name := range hp.WordPoolings {
		p := newPooler(name)
		p.SetParam(len(cg.wordInputs))
		p.Init(hp.WordHiddenSize, -1, pool)
		cg.wordPoolings = append(cg.wordPoolings, p)
	}
	cg.wordPoolCat.Init(hp.WordSummaryDim(), -1, pool)
	cg.wordBucket.Init(hp.WordSummaryDim(), pool)

	for i := range cg.attInputs {
		cg.attInputs[i].SetParam(m.Atts)
		cg.attInputs[i].Init(hp.AttDim, hp.DropProb, pool)
	}
	cg.attBucket.Init(hp.AttDim, pool)
	cg.attAvgPool.Init(hp.AttDim, -1, pool)
	cg.attMaxPool.Init(hp.AttDim, -1, pool)
	cg.attMinPool.Init(hp.AttDim, -1, pool)
	cg.attPoolCat.Init(hp.AttSummaryDim(), -1, pool)

	for i := range cg.evalCharInputs {
		for j := range cg.evalCharInputs[i] {
			cg.evalCharInputs[i][j].SetParam(m.EvalChars)
			cg.evalCharInputs[i][j].Init(hp.EvalCharDim, hp.DropProb, pool)
			cg.evalCharHiddens[i][j].SetParam(m.EvalCharHidden)
			cg.evalCharHiddens[i][j].Init(hp.EvalCharHiddenSize, hp.DropProb, pool)
		}
		cg.evalCharWindows[i].Init(hp.EvalCharDim, hp.EvalCharContext, pool)
		cg.evalCharMaxPools[i].Init(hp.EvalCharHiddenSize, -1, pool)
		cg.evalCharMinPools[i].Init(hp.EvalCharHiddenSize, -1, pool)
		cg.evalCharAvgPools[i].Init(hp.EvalCharHiddenSize, -1, pool)
		cg.evalCharPoolCats[i].Init(hp.EvalSpanDim(), -1, pool)
	}
	cg.evalCharBucket.Init(hp.EvalCharHiddenSize, pool)
	cg.evalMaxPool.Init(hp.EvalSpanDim(), -1, pool)
	cg.evalMinPool.Init(hp.EvalSpanDim(), -1, pool)
	cg.evalAvgPool.Init(hp.EvalSpanDim(), -1, pool)
	cg.evalBucket.Init(hp.EvalSpanDim(), pool)
	cg.evalPoolCat.Init(hp.EvalSummaryDim(), -1, pool)

	cg.polarInput.SetParam(m.Polarity)
	cg.polarInput.Init(hp.PolarityDim, hp.PolarDropProb, pool)
	cg.polarHidden.SetParam(m.PolarHidden)
	cg.polarHidden.Init(hp.PolarityHiddenSize, hp.PolarDropProb, pool)
	cg.polarHidden.SetFunctions(graph.Sigmoid)

	cg.segAttEvalPolar.SetParam(m.SegAttEvalPolar)
	cg.segAttEvalPolar.Init(hp.ConcatHiddenSize, hp.DropProb, pool)

	cg.output.SetParam(m.Output)
	cg.output.Init(hp.LabelSize, -1, pool)
}

func newPooler(name string) pooler {
	switch name {
	case PoolMax:
		return &graph.MaxPool{}
	case PoolMin:
		return &graph.MinPool{}
	case PoolAvg:
		return &graph.AvgPool{}
	default:
		panic(fmt.Sprintf("model: unknown word pooling %q", name))
	}
}

// Forward clears the previous pass and runs the graph on inst.
// Dropout is active only when train is set.
func (cg *ComputationGraph) Forward(inst *instance.Instance, train bool) {
	cg.ClearValue(train)

	summaries := [4]graph.Node{
		cg.forwardWords(inst),
		cg.forwardAttributes(inst),
		cg.forwardEvaluations(inst),
		cg.forwardPolarity(inst),
	}
	cg.segAttEvalPolar.Forward(cg.Graph, summaries[0], summaries[1], summaries[2], summaries[3])
	cg.output.Forward(cg.Graph, &cg.segAttEvalPolar)
}

// Output returns the label score node.
func (cg *ComputationGraph) Output() graph.Node {
	return &cg.output
}

func (cg *ComputationGraph) forwardWords(inst *instance.Instance) graph.Node {
	n := min(len(inst.Segs), len(cg.wordInputs))
	if n == 0 {
		cg.wordBucket.Forward(cg.Graph)
		return &cg.wordBucket
	}

	for i := 0; i < n; i++ {
		cg.wordInputs[i].Forward(cg.Graph, inst.Segs[i])
	}
	words := graph.Nodes(cg.wordInputs, n)
	if cg.hasExt {
		for i := 0; i < n; i++ {
			cg.extWordInputs[i].Forward(cg.Graph, inst.Segs[i])
			cg.wordConcats[i].Forward(cg.Graph, &cg.wordInputs[i], &cg.extWordInputs[i])
		}
		words = graph.Nodes(cg.wordConcats, n)
	}

	cg.wordWindow.Forward(cg.Graph, words)
	for i := 0; i < n; i++ {
		cg.hidden[i].Forward(cg.Graph, &cg.wordWindow.Outputs[i])
	}
	hidden := graph.Nodes(cg.hidden, n)
	pooled := make([]graph.Node, len(cg.wordPoolings))
	for i, p := range cg.wordPoolings {
		p.Forward(cg.Graph, hidden)
		pooled[i] = p
	}
	cg.wordPoolCat.Forward(cg.Graph, pooled...)
	return &cg.wordPoolCat
}

func (cg *ComputationGraph) forwardAttributes(inst *instance.Instance) graph.Node {
	n := min(len(inst.Attributes), len(cg.attInputs))
	if n == 0 {
		cg.attBucket.Forward(cg.Graph)
		cg.attPoolCat.Forward(cg.Graph, &cg.attBucket, &cg.attBucket, &cg.attBucket)
		return &cg.attPoolCat
	}

	for i := 0; i < n; i++ {
		cg.attInputs[i].Forward(cg.Graph, inst.Attributes[i])
	}
	atts := graph.Nodes(cg.attInputs, n)
	cg.attAvgPool.Forward(cg.Graph, atts)
	cg.attMaxPool.Forward(cg.Graph, atts)
	cg.attMinPool.Forward(cg.Graph, atts)
	cg.attPoolCat.Forward(cg.Graph, &cg.attAvgPool, &cg.attMaxPool, &cg.attMinPool)
	return &cg.attPoolCat
}

func (cg *ComputationGraph) forwardEvaluations(inst *instance.Instance) graph.Node {
	n := min(len(inst.EvalChars), len(cg.evalCharInputs))
	if n == 0 {
		cg.evalBucket.Forward(cg.Graph)
		cg.evalPoolCat.Forward(cg.Graph, &cg.evalBucket, &cg.evalBucket, &cg.evalBucket)
		return &cg.evalPoolCat
	}

	for i := 0; i < n; i++ {
		chars := inst.EvalChars[i]
		length := min(len(chars), len(cg.evalCharInputs[i]))
		if length == 0 {
			cg.evalCharBucket.Forward(cg.Graph)
			cg.evalCharPoolCats[i].Forward(cg.Graph, &cg.evalCharBucket, &cg.evalCharBucket, &cg.evalCharBucket)
			continue
		}
		for j := 0; j < length; j++ {
			cg.evalCharInputs[i][j].Forward(cg.Graph, chars[j])
		}
		cg.evalCharWindows[i].Forward(cg.Graph, graph.Nodes(cg.evalCharInputs[i], length))
		for j := 0; j < length; j++ {
			cg.evalCharHiddens[i][j].Forward(cg.Graph, &cg.evalCharWindows[i].Outputs[j])
		}
		hidden := graph.Nodes(cg.evalCharHiddens[i], length)
		cg.evalCharMaxPools[i].Forward(cg.Graph, hidden)
		cg.evalCharMinPools[i].Forward(cg.Graph, hidden)
		cg.evalCharAvgPools[i].Forward(cg.Graph, hidden)
		cg.evalCharPoolCats[i].Forward(cg.Graph, &cg.evalCharMaxPools[i], &cg.evalCharMinPools[i], &cg.evalCharAvgPools[i])
	}

	spans := graph.Nodes(cg.evalCharPoolCats, n)
	cg.evalMaxPool.Forward(cg.Graph, spans)
	cg.evalMinPool.Forward(cg.Graph, spans)
	cg.evalAvgPool.Forward(cg.Graph, spans)
	cg.evalPoolCat.Forward(cg.Graph, &cg.evalMaxPool, &cg.evalMinPool, &cg.evalAvgPool)
	return &cg.evalPoolCat
}

func (cg *ComputationGraph) forwardPolarity(inst *instance.Instance) graph.Node {
	cg.polarInput.Forward(cg.Graph, inst.Polarity)
	cg.polarHidden.Forward(cg.Graph, &cg.polarInput)
	return &cg.polarHidden
}
