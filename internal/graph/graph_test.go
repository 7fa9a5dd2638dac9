package graph_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nncnn/internal/graph"
	"github.com/born-ml/nncnn/internal/nn"
)

const (
	gradStep = 1e-5
	gradTol  = 1e-6
)

func newTable(t *testing.T, dim int, keys ...string) *nn.LookupTable {
	t.Helper()
	counts := make(map[string]int)
	for i, k := range keys {
		counts[k] = len(keys) - i
	}
	return nn.NewLookupTable("E", nn.BuildAlphabet(counts, 0, true), dim, true, nn.NewRand(3))
}

// checkGradients compares the gradients Backward accumulates in params with
// central finite differences of the scalar Σ r_i·out_i.
func checkGradients(t *testing.T, params []*nn.Parameter, forward func(g *graph.Graph) graph.Node) {
	t.Helper()
	g := graph.New(1)
	rng := nn.NewRand(11)

	var weights []float64
	loss := func() float64 {
		g.ClearValue(false)
		out := forward(g)
		if weights == nil {
			weights = make([]float64, out.Dim())
			for i := range weights {
				weights[i] = rng.Float64()*2 - 1
			}
		}
		sum := 0.0
		for i, v := range out.Value() {
			sum += weights[i] * v
		}
		return sum
	}

	for _, p := range params {
		p.ZeroGrad()
	}
	loss()
	g.ClearValue(false)
	out := forward(g)
	copy(out.Gradient(), weights)
	g.Backward()

	for _, p := range params {
		rows, cols := p.Dims()
		value, grad := p.Value(), p.Grad()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				orig := value.At(r, c)
				value.Set(r, c, orig+gradStep)
				plus := loss()
				value.Set(r, c, orig-gradStep)
				minus := loss()
				value.Set(r, c, orig)

				numeric := (plus - minus) / (2 * gradStep)
				assert.InDelta(t, numeric, grad.At(r, c), gradTol+1e-4*math.Abs(numeric),
					"%s[%d,%d]", p.Name(), r, c)
			}
		}
	}
}

func TestUni_Gradients(t *testing.T) {
	for _, act := range []graph.Activation{graph.Tanh, graph.ReLU, graph.Sigmoid, graph.Identity} {
		t.Run(act.Name, func(t *testing.T) {
			table := newTable(t, 3, "a")
			layer := nn.NewAffine("uni", 4, []int{3}, true, nn.NewRand(5))

			var in graph.Lookup
			in.SetParam(table)
			in.Init(3, 0, nil)
			var uni graph.Uni
			uni.SetParam(layer)
			uni.SetFunctions(act)
			uni.Init(4, 0, nil)

			params := append(table.Parameters(), layer.Parameters()...)
			checkGradients(t, params, func(g *graph.Graph) graph.Node {
				in.Forward(g, "a")
				uni.Forward(g, &in)
				return &uni
			})
		})
	}
}

func TestPipeline_Gradients(t *testing.T) {
	table := newTable(t, 3, "a", "b", "c")
	polar := newTable(t, 2, "+")
	hidden := nn.NewAffine("hidden", 4, []int{9}, true, nn.NewRand(5))
	polarHidden := nn.NewAffine("polar", 2, []int{2}, true, nn.NewRand(6))
	four := nn.NewAffine("four", 5, []int{4, 4, 4, 2}, true, nn.NewRand(7))
	output := nn.NewAffine("out", 3, []int{5}, false, nn.NewRand(8))

	const n = 3
	inputs := make([]graph.Lookup, n)
	hiddens := make([]graph.Uni, n)
	for i := range inputs {
		inputs[i].SetParam(table)
		inputs[i].Init(3, 0, nil)
		hiddens[i].SetParam(hidden)
		hiddens[i].Init(4, 0, nil)
	}
	var window graph.Window
	window.Resize(n)
	window.Init(3, 1, nil)
	var maxPool graph.MaxPool
	var minPool graph.MinPool
	var avgPool graph.AvgPool
	for _, p := range []interface {
		SetParam(int)
		Init(int, float64, *graph.MemoryPool)
	}{&maxPool, &minPool, &avgPool} {
		p.SetParam(n)
		p.Init(4, 0, nil)
	}
	var polarIn graph.Lookup
	polarIn.SetParam(polar)
	polarIn.Init(2, 0, nil)
	var polarUni graph.Uni
	polarUni.SetParam(polarHidden)
	polarUni.SetFunctions(graph.Sigmoid)
	polarUni.Init(2, 0, nil)
	var merged graph.Four
	merged.SetParam(four)
	merged.Init(5, 0, nil)
	var scores graph.Linear
	scores.SetParam(output)
	scores.Init(3, 0, nil)

	params := nn.Collect(table, polar, hidden, polarHidden, four, output)
	checkGradients(t, params, func(g *graph.Graph) graph.Node {
		for i, key := range []string{"a", "b", "c"} {
			inputs[i].Forward(g, key)
		}
		window.Forward(g, graph.Nodes(inputs, n))
		for i := range hiddens {
			hiddens[i].Forward(g, &window.Outputs[i])
		}
		hs := graph.Nodes(hiddens, n)
		maxPool.Forward(g, hs)
		minPool.Forward(g, hs)
		avgPool.Forward(g, hs)
		polarIn.Forward(g, "+")
		polarUni.Forward(g, &polarIn)
		merged.Forward(g, &maxPool, &minPool, &avgPool, &polarUni)
		scores.Forward(g, &merged)
		return &scores
	})
}

func TestConcat_Gradients(t *testing.T) {
	table := newTable(t, 2, "a", "b")
	layer := nn.NewAffine("uni", 3, []int{6}, true, nn.NewRand(5))

	var a, b graph.Lookup
	a.SetParam(table)
	a.Init(2, 0, nil)
	b.SetParam(table)
	b.Init(2, 0, nil)
	var bucket graph.Bucket
	bucket.Init(2, nil)
	var cat graph.Concat
	cat.Init(6, 0, nil)
	var uni graph.Uni
	uni.SetParam(layer)
	uni.Init(3, 0, nil)

	params := append(table.Parameters(), layer.Parameters()...)
	checkGradients(t, params, func(g *graph.Graph) graph.Node {
		a.Forward(g, "a")
		b.Forward(g, "b")
		bucket.Forward(g)
		cat.Forward(g, &a, &bucket, &b)
		uni.Forward(g, &cat)
		return &uni
	})
}

func TestWindow_Order(t *testing.T) {
	table := newTable(t, 1, "x", "y", "z")
	for i, key := range []string{"x", "y", "z"} {
		table.E.Row(table.Index(key))[0] = float64(i + 1)
	}

	inputs := make([]graph.Lookup, 3)
	for i := range inputs {
		inputs[i].SetParam(table)
		inputs[i].Init(1, 0, nil)
	}
	var window graph.Window
	window.Resize(4)
	window.Init(1, 1, nil)
	assert.Equal(t, 3, window.OutDim())
	assert.Equal(t, 1, window.Context())

	g := graph.New(1)
	g.ClearValue(false)
	for i, key := range []string{"x", "y", "z"} {
		inputs[i].Forward(g, key)
	}
	window.Forward(g, graph.Nodes(inputs, 3))

	assert.Equal(t, []float64{0, 1, 2}, window.Outputs[0].Value())
	assert.Equal(t, []float64{1, 2, 3}, window.Outputs[1].Value())
	assert.Equal(t, []float64{2, 3, 0}, window.Outputs[2].Value())

	assert.Panics(t, func() {
		window.Forward(g, graph.Nodes(make([]graph.Lookup, 5), 5))
	})
}

func TestPooling_Values(t *testing.T) {
	table := newTable(t, 2, "a", "b")
	copy(table.E.Row(table.Index("a")), []float64{1, -4})
	copy(table.E.Row(table.Index("b")), []float64{3, -2})

	inputs := make([]graph.Lookup, 2)
	for i := range inputs {
		inputs[i].SetParam(table)
		inputs[i].Init(2, 0, nil)
	}
	var maxPool graph.MaxPool
	var minPool graph.MinPool
	var avgPool graph.AvgPool
	maxPool.SetParam(2)
	maxPool.Init(2, 0, nil)
	minPool.SetParam(2)
	minPool.Init(2, 0, nil)
	avgPool.SetParam(2)
	avgPool.Init(2, 0, nil)

	g := graph.New(1)
	g.ClearValue(false)
	inputs[0].Forward(g, "a")
	inputs[1].Forward(g, "b")
	ins := graph.Nodes(inputs, 2)
	maxPool.Forward(g, ins)
	minPool.Forward(g, ins)
	avgPool.Forward(g, ins)

	assert.Equal(t, []float64{3, -2}, maxPool.Value())
	assert.Equal(t, []float64{1, -4}, minPool.Value())
	assert.Equal(t, []float64{2, -3}, avgPool.Value())

	assert.Panics(t, func() {
		var p graph.MaxPool
		p.SetParam(1)
		p.Init(2, 0, nil)
		p.Forward(g, ins)
	}, "over capacity")
	assert.Panics(t, func() {
		var p graph.AvgPool
		p.Init(2, 0, nil)
		p.Forward(g, nil)
	}, "empty input")
}

func TestLookup_Unknown(t *testing.T) {
	table := newTable(t, 2, "known")
	var l graph.Lookup
	l.SetParam(table)
	l.Init(2, 0, nil)

	g := graph.New(1)
	g.ClearValue(false)
	l.Forward(g, "never-seen")
	assert.Equal(t, table.E.Row(table.Alphabet.UnknownID()), l.Value())

	labels := nn.NewAlphabetFromNames([]string{"pos", "neg"})
	closed := nn.NewLookupTable("L", labels, 2, true, nn.NewRand(1))
	var c graph.Lookup
	c.SetParam(closed)
	c.Init(2, 0, nil)
	g.ClearValue(false)
	c.Forward(g, "neutral")
	assert.Equal(t, []float64{0, 0}, c.Value())
	c.Gradient()[0] = 1
	g.Backward()
	assert.Empty(t, closed.E.TouchedRows())

	assert.Panics(t, func() {
		var bad graph.Lookup
		bad.SetParam(table)
		bad.Init(3, 0, nil)
	})
}

func TestLookup_FixedTableHasNoGradient(t *testing.T) {
	table := newTable(t, 2, "a")
	table.FineTune = false
	var l graph.Lookup
	l.SetParam(table)
	l.Init(2, 0, nil)

	g := graph.New(1)
	g.ClearValue(true)
	l.Forward(g, "a")
	copy(l.Gradient(), []float64{1, 1})
	g.Backward()
	assert.Empty(t, table.E.TouchedRows())
}

func TestDropout(t *testing.T) {
	table := newTable(t, 200, "a")
	row := table.E.Row(table.Index("a"))
	for i := range row {
		row[i] = 1
	}
	var l graph.Lookup
	l.SetParam(table)
	l.Init(200, 0.5, graph.NewMemoryPool(0))

	g := graph.New(42)
	g.ClearValue(false)
	l.Forward(g, "a")
	assert.Equal(t, row, l.Value(), "decoding keeps every unit")

	g.ClearValue(true)
	assert.True(t, g.Train())
	l.Forward(g, "a")
	dropped := 0
	for _, v := range l.Value() {
		if v == 0 {
			dropped++
		} else {
			assert.InDelta(t, 2.0, v, 1e-12, "kept units are rescaled")
		}
	}
	assert.Greater(t, dropped, 50)
	assert.Less(t, dropped, 150)

	for i := range l.Gradient() {
		l.Gradient()[i] = 1
	}
	g.Backward()
	grad := table.E.Grad().RawRowView(table.Index("a"))
	for i, v := range l.Value() {
		assert.InDelta(t, v, grad[i], 1e-12, "gradient follows the mask")
	}
}

func TestGraph_Lifecycle(t *testing.T) {
	var b graph.Bucket
	b.Init(3, nil)

	g := graph.New(1)
	g.ClearValue(false)
	assert.False(t, g.Train())
	b.Forward(g)
	b.Forward(g)
	assert.Equal(t, 1, g.Size(), "bucket forwards once per pass")
	assert.Equal(t, []float64{0, 0, 0}, b.Value())

	g.ClearValue(false)
	assert.Equal(t, 0, g.Size())
	assert.Equal(t, []float64{0, 0, 0}, b.Value())

	table := newTable(t, 2, "a")
	var l graph.Lookup
	l.SetParam(table)
	l.Init(2, 0, nil)
	l.Forward(g, "a")
	assert.Panics(t, func() { l.Forward(g, "a") }, "double forward")

	assert.Panics(t, func() {
		var c graph.Concat
		c.Init(0, 0, nil)
	})
	assert.Panics(t, func() {
		var c graph.Concat
		c.Init(2, 1, nil)
	})
	assert.Panics(t, func() {
		var c graph.Concat
		c.Init(3, 0, nil)
		c.Forward(graph.New(1), &l)
	})
}

func TestAffine_Wiring(t *testing.T) {
	single := nn.NewAffine("single", 2, []int{3}, true, nn.NewRand(1))
	assert.Panics(t, func() {
		var f graph.Four
		f.SetParam(single)
	})
	assert.Panics(t, func() {
		var u graph.Uni
		u.SetParam(single)
		u.Init(5, 0, nil)
	})
	assert.Panics(t, func() {
		var u graph.Uni
		u.Init(2, 0, nil)
	})
}

func TestLinear_NoBias(t *testing.T) {
	w := nn.NewAffine("out", 2, []int{2}, false, nn.NewRand(1))
	require.False(t, w.HasBias())
	w.W[0].Value().SetRow(0, []float64{1, 2})
	w.W[0].Value().SetRow(1, []float64{-1, 0.5})

	table := newTable(t, 2, "x")
	copy(table.E.Row(table.Index("x")), []float64{3, 4})
	var x graph.Lookup
	x.SetParam(table)
	x.Init(2, 0, nil)
	var lin graph.Linear
	lin.SetParam(w)
	lin.Init(2, 0, nil)

	g := graph.New(1)
	g.ClearValue(false)
	x.Forward(g, "x")
	lin.Forward(g, &x)
	assert.Equal(t, []float64{11, -1}, lin.Value())
}

func TestActivations(t *testing.T) {
	assert.InDelta(t, 1.0, graph.Sigmoid.F(800), 1e-12)
	assert.InDelta(t, 0.0, graph.Sigmoid.F(-800), 1e-12)
	assert.Equal(t, 0.0, graph.ReLU.F(-1))
}

func TestMemoryPool(t *testing.T) {
	p := graph.NewMemoryPool(8)
	a := p.Alloc(3)
	b := p.Alloc(5)
	c := p.Alloc(2)
	big := p.Alloc(20)

	assert.Len(t, a, 3)
	assert.Equal(t, 3, cap(a), "buffers cannot grow into their neighbors")
	assert.Len(t, b, 5)
	assert.Len(t, c, 2)
	assert.Len(t, big, 20)
	assert.Equal(t, 30, p.Allocated())
	assert.Equal(t, 8+8+20, p.Reserved())

	a[2] = 1
	assert.Equal(t, 0.0, b[0])
	assert.Nil(t, p.Alloc(0))

	var nilPool *graph.MemoryPool
	assert.Len(t, nilPool.Alloc(4), 4)
	assert.Zero(t, nilPool.Allocated())
	assert.Zero(t, nilPool.Reserved())
}
