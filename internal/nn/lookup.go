package nn

import (
	"bufio"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LookupTable maps alphabet entries to dense embedding rows.
//
// Architecture:
//   - Alphabet: string -> row id (with an unknown entry)
//   - E: [alphabet size, Dim] embedding parameter, updated sparsely
//
// A table with FineTune disabled is read-only: lookups still work but no
// gradient is accumulated, which is how fixed pretrained embeddings are used.
type LookupTable struct {
	Alphabet *Alphabet
	E        *Parameter
	Dim      int
	FineTune bool
}

// NewLookupTable creates a randomly initialized embedding table.
//
// Rows are drawn from U(-sqrt(3/dim), sqrt(3/dim)).
func NewLookupTable(name string, alphabet *Alphabet, dim int, fineTune bool, rng *rand.Rand) *LookupTable {
	value := Uniform(alphabet.Size(), dim, EmbeddingBound(dim), rng)
	return &LookupTable{
		Alphabet: alphabet,
		E:        NewSparseParameter(name, value),
		Dim:      dim,
		FineTune: fineTune,
	}
}

// NewLookupTableWithWeight wraps an existing embedding matrix, e.g. one read from a checkpoint.
func NewLookupTableWithWeight(name string, alphabet *Alphabet, weight *mat.Dense, fineTune bool) (*LookupTable, error) {
	rows, cols := weight.Dims()
	if rows != alphabet.Size() {
		return nil, errors.Errorf("lookup table %q: %d rows for alphabet of size %d", name, rows, alphabet.Size())
	}
	return &LookupTable{
		Alphabet: alphabet,
		E:        NewSparseParameter(name, weight),
		Dim:      cols,
		FineTune: fineTune,
	}, nil
}

// NewPretrainedTable builds a table whose alphabet is exactly the vocabulary of
// a pretrained embedding file plus the unknown entry. The unknown row is the
// mean of all pretrained vectors.
func NewPretrainedTable(name string, r io.Reader, fineTune bool) (*LookupTable, error) {
	words, vectors, dim, err := ReadEmbeddings(r)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup table %q", name)
	}
	if len(words) == 0 {
		return nil, errors.Errorf("lookup table %q: no embeddings found", name)
	}

	names := make([]string, 0, len(words)+1)
	names = append(names, UnknownKey)
	for _, w := range words {
		if w != UnknownKey {
			names = append(names, w)
		}
	}
	alphabet := NewAlphabetFromNames(names)

	value := mat.NewDense(alphabet.Size(), dim, nil)
	mean := make([]float64, dim)
	explicitUnknown := false
	for i, w := range words {
		id, _ := alphabet.Index(w)
		copy(value.RawRowView(id), vectors[i])
		floats.Add(mean, vectors[i])
		explicitUnknown = explicitUnknown || w == UnknownKey
	}
	if !explicitUnknown {
		floats.Scale(1/float64(len(words)), mean)
		copy(value.RawRowView(alphabet.UnknownID()), mean)
	}

	return &LookupTable{
		Alphabet: alphabet,
		E:        NewSparseParameter(name, value),
		Dim:      dim,
		FineTune: fineTune,
	}, nil
}

// LoadPretrained overwrites the rows of words present in both the table
// alphabet and the embedding file. It returns the number of rows replaced.
func (t *LookupTable) LoadPretrained(r io.Reader) (int, error) {
	words, vectors, dim, err := ReadEmbeddings(r)
	if err != nil {
		return 0, err
	}
	if len(words) > 0 && dim != t.Dim {
		return 0, errors.Errorf("pretrained dimension %d does not match table dimension %d", dim, t.Dim)
	}
	matched := 0
	for i, w := range words {
		id, ok := t.Alphabet.Index(w)
		if !ok {
			continue
		}
		copy(t.E.Row(id), vectors[i])
		matched++
	}
	return matched, nil
}

// Index returns the row id for key, falling back to the unknown row.
// Returns -1 when the key is unknown and the alphabet has no unknown entry.
func (t *LookupTable) Index(key string) int {
	return t.Alphabet.IndexOrUnknown(key)
}

// Parameters returns the trainable parameters; fixed tables have none.
func (t *LookupTable) Parameters() []*Parameter {
	if !t.FineTune {
		return nil
	}
	return []*Parameter{t.E}
}

// ReadEmbeddings parses a whitespace separated embedding file with one
// "word v1 v2 ... vd" entry per line. Blank lines are skipped; a first line
// holding exactly two integers (word2vec header) is ignored.
func ReadEmbeddings(r io.Reader) (words []string, vectors [][]float64, dim int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if lineNo == 1 && len(fields) == 2 && isInt(fields[0]) && isInt(fields[1]) {
			continue
		}
		if len(fields) < 2 {
			return nil, nil, 0, errors.Errorf("line %d: embedding entry without values", lineNo)
		}
		if dim == 0 {
			dim = len(fields) - 1
		} else if len(fields)-1 != dim {
			return nil, nil, 0, errors.Errorf("line %d: expected %d values, got %d", lineNo, dim, len(fields)-1)
		}
		vec := make([]float64, dim)
		for i, f := range fields[1:] {
			v, perr := strconv.ParseFloat(f, 64)
			if perr != nil {
				return nil, nil, 0, errors.Wrapf(perr, "line %d", lineNo)
			}
			vec[i] = v
		}
		words = append(words, fields[0])
		vectors = append(vectors, vec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, 0, errors.Wrap(err, "reading embeddings")
	}
	return words, vectors, dim, nil
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
