package train

import (
	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/nn"
)

// BuildAlphabets collects the vocabularies of a training corpus.
//
// Labels keep every value and have no unknown entry. Words, attributes,
// evaluation characters and polarities keep entries above their cutoff and
// reserve id 0 for the unknown entry; the polarity of an instance without a
// [p] token maps to it.
func BuildAlphabets(insts []*instance.Instance, opts Options) model.Alphabets {
	labels := make(map[string]int)
	words := make(map[string]int)
	atts := make(map[string]int)
	chars := make(map[string]int)
	polarities := make(map[string]int)

	for _, inst := range insts {
		labels[inst.Label]++
		for _, w := range inst.Segs {
			words[w]++
		}
		for _, a := range inst.Attributes {
			atts[a]++
		}
		for _, span := range inst.EvalChars {
			for _, c := range span {
				chars[c]++
			}
		}
		if inst.Polarity != "" {
			polarities[inst.Polarity]++
		}
	}

	return model.Alphabets{
		Labels:     nn.BuildAlphabet(labels, 0, false),
		Words:      nn.BuildAlphabet(words, opts.WordCutoff, true),
		Atts:       nn.BuildAlphabet(atts, opts.AttCutoff, true),
		EvalChars:  nn.BuildAlphabet(chars, opts.CharCutoff, true),
		Polarities: nn.BuildAlphabet(polarities, 0, true),
	}
}
