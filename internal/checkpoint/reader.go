package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/nn"
)

// MaxDataSize bounds the tensor data section.
const MaxDataSize = 8 << 30

// ReaderOptions configures Read.
type ReaderOptions struct {
	SkipChecksumValidation bool // faster, but corrupted files go unnoticed
}

// Load reads the checkpoint at path with checksum validation.
func Load(path string) (*Checkpoint, error) {
	return LoadWithOptions(path, ReaderOptions{})
}

// LoadWithOptions reads the checkpoint at path.
func LoadWithOptions(path string, opts ReaderOptions) (*Checkpoint, error) {
	//nolint:gosec // G304: model path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open checkpoint")
	}
	defer func() { _ = f.Close() }()

	c, err := Read(bufio.NewReader(f), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s", path)
	}
	return c, nil
}

// Read decodes a checkpoint from r.
func Read(r io.Reader, opts ReaderOptions) (*Checkpoint, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, errors.Wrap(err, "failed to read fixed header")
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if dataSize > MaxDataSize {
		return nil, &ValidationError{Err: ErrOutOfBounds, Details: fmt.Sprintf("data size %d", dataSize)}
	}
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "failed to read tensor data")
	}
	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(headerJSON, data), stored); err != nil {
			return nil, err
		}
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, errors.Wrap(err, "failed to parse header JSON")
	}
	//nolint:gosec // G115: dataSize is bounded by MaxDataSize
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if err := model.ValidateHyperParams(&header.HyperParams); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if err := validateFlags(flags, &header); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	state := make(map[string]*mat.Dense, len(header.Tensors))
	for _, t := range header.Tensors {
		state[t.Name] = decodeDense(data[t.Offset:t.Offset+t.Size], t.Shape[0], t.Shape[1])
	}
	alphabets, err := alphabetsFromHeader(&header)
	if err != nil {
		return nil, err
	}
	hp := header.HyperParams
	params, err := model.LoadModelParams(&hp, alphabets, state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rebuild parameters")
	}
	return &Checkpoint{
		HyperParams: &hp,
		Params:      params,
		Creator:     header.Creator,
		CreatedAt:   header.CreatedAt,
		Metadata:    header.Metadata,
	}, nil
}

func alphabetsFromHeader(h *Header) (model.Alphabets, error) {
	get := func(name string, required bool) (*nn.Alphabet, error) {
		names, ok := h.Alphabets[name]
		if !ok {
			if required {
				return nil, errors.Errorf("alphabet %q missing", name)
			}
			return nil, nil
		}
		return nn.NewAlphabetFromNames(names), nil
	}
	var (
		a   model.Alphabets
		err error
	)
	if a.Labels, err = get(AlphabetLabels, true); err != nil {
		return a, err
	}
	if a.Words, err = get(AlphabetWords, true); err != nil {
		return a, err
	}
	if a.ExtWords, err = get(AlphabetExtWords, h.HyperParams.ExtWordDim > 0); err != nil {
		return a, err
	}
	if a.Atts, err = get(AlphabetAtts, true); err != nil {
		return a, err
	}
	if a.EvalChars, err = get(AlphabetEvalChars, true); err != nil {
		return a, err
	}
	if a.Polarities, err = get(AlphabetPolarities, true); err != nil {
		return a, err
	}
	if a.Labels.Size() != h.HyperParams.LabelSize {
		return a, errors.Errorf("label alphabet has %d entries, hyperparameters say %d", a.Labels.Size(), h.HyperParams.LabelSize)
	}
	return a, nil
}

func decodeDense(src []byte, rows, cols int) *mat.Dense {
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*float64Size:]))
	}
	return mat.NewDense(rows, cols, values)
}
