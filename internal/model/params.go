package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nncnn/internal/nn"
)

// Parameter name prefixes, also used as checkpoint tensor names.
// ExtWordsTensor names the fixed external embedding table.
const (
	nameWords           = "words.E"
	ExtWordsTensor      = "ext_words.E"
	nameAtts            = "atts.E"
	nameEvalChars       = "eval_chars.E"
	namePolarity        = "polarity.E"
	nameHidden          = "hidden"
	nameEvalCharHidden  = "eval_char_hidden"
	namePolarHidden     = "polar_hidden"
	nameSegAttEvalPolar = "seg_att_eval_polar"
	nameOutput          = "output"
)

// Alphabets holds every vocabulary the model depends on.
type Alphabets struct {
	Labels     *nn.Alphabet
	Words      *nn.Alphabet
	ExtWords   *nn.Alphabet // nil without external embeddings
	Atts       *nn.Alphabet
	EvalChars  *nn.Alphabet
	Polarities *nn.Alphabet
}

// ModelParams owns the learned tensors shared by all computation graphs.
type ModelParams struct {
	Words     *nn.LookupTable
	ExtWords  *nn.LookupTable // fixed external embeddings, nil when unused
	Atts      *nn.LookupTable
	EvalChars *nn.LookupTable
	Polarity  *nn.LookupTable

	Hidden          *nn.Affine // word window -> word hidden
	EvalCharHidden  *nn.Affine // char window -> char hidden
	PolarHidden     *nn.Affine // polarity embedding -> polarity hidden
	SegAttEvalPolar *nn.Affine // four branches -> concat hidden
	Output          *nn.Affine // concat hidden -> label scores, no bias

	Labels *nn.Alphabet
}

// NewModelParams initializes parameters for the given alphabets.
//
// ext, when non-nil, is a fixed pretrained table; hp.ExtWordDim is set from it.
// hp.LabelSize is set from the label alphabet.
func NewModelParams(hp *HyperParams, alphabets Alphabets, ext *nn.LookupTable, rng *rand.Rand) (*ModelParams, error) {
	if alphabets.Labels == nil || alphabets.Labels.Size() == 0 {
		return nil, errors.New("model: empty label alphabet")
	}
	hp.LabelSize = alphabets.Labels.Size()
	hp.ExtWordDim = 0
	if ext != nil {
		hp.ExtWordDim = ext.Dim
	}

	m := &ModelParams{
		Words:     nn.NewLookupTable(nameWords, alphabets.Words, hp.WordDim, hp.WordFineTune, rng),
		ExtWords:  ext,
		Atts:      nn.NewLookupTable(nameAtts, alphabets.Atts, hp.AttDim, true, rng),
		EvalChars: nn.NewLookupTable(nameEvalChars, alphabets.EvalChars, hp.EvalCharDim, true, rng),
		Polarity:  nn.NewLookupTable(namePolarity, alphabets.Polarities, hp.PolarityDim, true, rng),
		Labels:    alphabets.Labels,
	}
	m.Hidden = nn.NewAffine(nameHidden, hp.WordHiddenSize, []int{hp.WordWindowDim()}, true, rng)
	m.EvalCharHidden = nn.NewAffine(nameEvalCharHidden, hp.EvalCharHiddenSize, []int{hp.EvalCharWindowDim()}, true, rng)
	m.PolarHidden = nn.NewAffine(namePolarHidden, hp.PolarityHiddenSize, []int{hp.PolarityDim}, true, rng)
	m.SegAttEvalPolar = nn.NewAffine(nameSegAttEvalPolar, hp.ConcatHiddenSize,
		[]int{hp.WordSummaryDim(), hp.AttSummaryDim(), hp.EvalSummaryDim(), hp.PolarityHiddenSize}, true, rng)
	m.Output = nn.NewAffine(nameOutput, hp.LabelSize, []int{hp.ConcatHiddenSize}, false, rng)
	return m, nil
}

// Parameters returns every trainable parameter. Fixed tables contribute nothing.
func (m *ModelParams) Parameters() []*nn.Parameter {
	modules := []nn.Module{m.Words, m.Atts, m.EvalChars, m.Polarity}
	if m.ExtWords != nil {
		modules = append(modules, m.ExtWords)
	}
	modules = append(modules, m.Hidden, m.EvalCharHidden, m.PolarHidden, m.SegAttEvalPolar, m.Output)
	return nn.Collect(modules...)
}

// Alphabets returns the vocabularies the parameters were built for.
func (m *ModelParams) Alphabets() Alphabets {
	a := Alphabets{
		Labels:     m.Labels,
		Words:      m.Words.Alphabet,
		Atts:       m.Atts.Alphabet,
		EvalChars:  m.EvalChars.Alphabet,
		Polarities: m.Polarity.Alphabet,
	}
	if m.ExtWords != nil {
		a.ExtWords = m.ExtWords.Alphabet
	}
	return a
}

// StateDict returns every tensor (trainable or fixed) by name.
func (m *ModelParams) StateDict() map[string]*mat.Dense {
	state := make(map[string]*mat.Dense)
	for _, t := range m.tables() {
		state[t.E.Name()] = t.E.Value()
	}
	for _, a := range m.affines() {
		for _, p := range a.Parameters() {
			state[p.Name()] = p.Value()
		}
	}
	return state
}

// NumParameters returns the number of scalar values in the state dict.
func (m *ModelParams) NumParameters() int {
	total := 0
	for _, d := range m.StateDict() {
		r, c := d.Dims()
		total += r * c
	}
	return total
}

func (m *ModelParams) tables() []*nn.LookupTable {
	tables := []*nn.LookupTable{m.Words, m.Atts, m.EvalChars, m.Polarity}
	if m.ExtWords != nil {
		tables = append(tables, m.ExtWords)
	}
	return tables
}

func (m *ModelParams) affines() []*nn.Affine {
	return []*nn.Affine{m.Hidden, m.EvalCharHidden, m.PolarHidden, m.SegAttEvalPolar, m.Output}
}

// LoadModelParams rebuilds parameters from alphabets and a state dict, the
// inverse of StateDict. hp must be the hyperparameters saved with the tensors.
func LoadModelParams(hp *HyperParams, alphabets Alphabets, state map[string]*mat.Dense) (*ModelParams, error) {
	get := func(name string) (*mat.Dense, error) {
		d, ok := state[name]
		if !ok {
			return nil, errors.Errorf("model: tensor %q missing", name)
		}
		return d, nil
	}
	table := func(name string, alphabet *nn.Alphabet, fineTune bool) (*nn.LookupTable, error) {
		if alphabet == nil {
			return nil, errors.Errorf("model: alphabet for %q missing", name)
		}
		d, err := get(name)
		if err != nil {
			return nil, err
		}
		return nn.NewLookupTableWithWeight(name, alphabet, d, fineTune)
	}
	affine := func(name string, arity int, bias bool) (*nn.Affine, error) {
		ws := make([]*mat.Dense, arity)
		for i := range ws {
			d, err := get(fmt.Sprintf("%s.w%d", name, i))
			if err != nil {
				return nil, err
			}
			ws[i] = d
		}
		var b *mat.Dense
		if bias {
			d, err := get(name + ".b")
			if err != nil {
				return nil, err
			}
			b = d
		}
		return nn.NewAffineWithWeights(name, ws, b)
	}

	if alphabets.Labels == nil {
		return nil, errors.New("model: label alphabet missing")
	}
	m := &ModelParams{Labels: alphabets.Labels}
	var err error
	if m.Words, err = table(nameWords, alphabets.Words, hp.WordFineTune); err != nil {
		return nil, err
	}
	if hp.ExtWordDim > 0 {
		if m.ExtWords, err = table(ExtWordsTensor, alphabets.ExtWords, false); err != nil {
			return nil, err
		}
	}
	if m.Atts, err = table(nameAtts, alphabets.Atts, true); err != nil {
		return nil, err
	}
	if m.EvalChars, err = table(nameEvalChars, alphabets.EvalChars, true); err != nil {
		return nil, err
	}
	if m.Polarity, err = table(namePolarity, alphabets.Polarities, true); err != nil {
		return nil, err
	}
	if m.Hidden, err = affine(nameHidden, 1, true); err != nil {
		return nil, err
	}
	if m.EvalCharHidden, err = affine(nameEvalCharHidden, 1, true); err != nil {
		return nil, err
	}
	if m.PolarHidden, err = affine(namePolarHidden, 1, true); err != nil {
		return nil, err
	}
	if m.SegAttEvalPolar, err = affine(nameSegAttEvalPolar, 4, true); err != nil {
		return nil, err
	}
	if m.Output, err = affine(nameOutput, 1, false); err != nil {
		return nil, err
	}
	if err := m.checkShapes(hp); err != nil {
		return nil, err
	}
	return m, nil
}

// checkShapes verifies that tensors agree with the hyperparameters.
func (m *ModelParams) checkShapes(hp *HyperParams) error {
	check := func(name string, got, want int) error {
		if got != want {
			return errors.Errorf("model: %s is %d, hyperparameters say %d", name, got, want)
		}
		return nil
	}
	checks := []struct {
		name      string
		got, want int
	}{
		{"word dim", m.Words.Dim, hp.WordDim},
		{"att dim", m.Atts.Dim, hp.AttDim},
		{"eval char dim", m.EvalChars.Dim, hp.EvalCharDim},
		{"polarity dim", m.Polarity.Dim, hp.PolarityDim},
		{"hidden input", m.Hidden.InDims[0], hp.WordWindowDim()},
		{"hidden output", m.Hidden.OutDim, hp.WordHiddenSize},
		{"eval char hidden input", m.EvalCharHidden.InDims[0], hp.EvalCharWindowDim()},
		{"eval char hidden output", m.EvalCharHidden.OutDim, hp.EvalCharHiddenSize},
		{"polar hidden input", m.PolarHidden.InDims[0], hp.PolarityDim},
		{"polar hidden output", m.PolarHidden.OutDim, hp.PolarityHiddenSize},
		{"concat word input", m.SegAttEvalPolar.InDims[0], hp.WordSummaryDim()},
		{"concat att input", m.SegAttEvalPolar.InDims[1], hp.AttSummaryDim()},
		{"concat eval input", m.SegAttEvalPolar.InDims[2], hp.EvalSummaryDim()},
		{"concat polar input", m.SegAttEvalPolar.InDims[3], hp.PolarityHiddenSize},
		{"concat output", m.SegAttEvalPolar.OutDim, hp.ConcatHiddenSize},
		{"output input", m.Output.InDims[0], hp.ConcatHiddenSize},
		{"output size", m.Output.OutDim, m.Labels.Size()},
	}
	for _, c := range checks {
		if err := check(c.name, c.got, c.want); err != nil {
			return err
		}
	}
	if m.ExtWords != nil {
		return check("ext word dim", m.ExtWords.Dim, hp.ExtWordDim)
	}
	return nil
}
