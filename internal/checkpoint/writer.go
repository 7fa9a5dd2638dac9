package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nncnn/internal/model"
)

// Checkpoint is a trained classifier together with its description.
type Checkpoint struct {
	HyperParams *model.HyperParams
	Params      *model.ModelParams
	Creator     string
	CreatedAt   time.Time
	Metadata    map[string]string
}

// New wraps params and hp for saving.
func New(params *model.ModelParams, hp *model.HyperParams) *Checkpoint {
	return &Checkpoint{
		HyperParams: hp,
		Params:      params,
		Metadata:    make(map[string]string),
	}
}

// Save writes c to path. The file is written next to path and renamed into
// place, so a crash never leaves a truncated checkpoint behind.
func Save(path string, c *Checkpoint) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary checkpoint")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, c); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to write checkpoint %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close checkpoint")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move checkpoint to %s", path)
	}
	return nil
}

// Write encodes c to w.
func Write(w io.Writer, c *Checkpoint) error {
	if c.Params == nil || c.HyperParams == nil {
		return errors.New("checkpoint: params and hyperparameters are required")
	}
	state := c.Params.StateDict()
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	header := Header{
		FormatVersion: FormatVersion,
		Creator:       c.Creator,
		CreatedAt:     created,
		HyperParams:   *c.HyperParams,
		Alphabets:     alphabetNames(c.Params.Alphabets()),
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      c.Metadata,
	}

	var offset int64
	for _, name := range names {
		r, cols := state[name].Dims()
		size := int64(r*cols) * float64Size
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int{r, cols},
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	data := make([]byte, offset)
	for i, name := range names {
		encodeDense(data[header.Tensors[i].Offset:], state[name])
	}

	flags := uint32(0)
	if c.Params.ExtWords != nil {
		flags |= FlagHasExtWords
	}
	if len(c.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := ComputeChecksum(headerJSON, data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	for _, part := range [][]byte{fixed, headerJSON, data} {
		if _, err := w.Write(part); err != nil {
			return errors.Wrap(err, "failed to write checkpoint")
		}
	}
	return nil
}

func alphabetNames(a model.Alphabets) map[string][]string {
	names := map[string][]string{
		AlphabetLabels:     a.Labels.Names(),
		AlphabetWords:      a.Words.Names(),
		AlphabetAtts:       a.Atts.Names(),
		AlphabetEvalChars:  a.EvalChars.Names(),
		AlphabetPolarities: a.Polarities.Names(),
	}
	if a.ExtWords != nil {
		names[AlphabetExtWords] = a.ExtWords.Names()
	}
	return names
}

func encodeDense(dst []byte, d *mat.Dense) {
	r, _ := d.Dims()
	off := 0
	for i := 0; i < r; i++ {
		for _, v := range d.RawRowView(i) {
			binary.LittleEndian.PutUint64(dst[off:], math.Float64bits(v))
			off += float64Size
		}
	}
}

