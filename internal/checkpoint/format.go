package checkpoint

import (
	"time"

	"github.com/born-ml/nncnn/internal/model"
)

// Format constants.
const (
	MagicBytes      = "NNCG"
	FormatVersion   = 1
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // checksum position in the fixed header
	DTypeFloat64    = "float64"
	float64Size     = 8
)

// Flags for the checkpoint format.
const (
	FlagHasExtWords uint32 = 1 << 0 // bit 0: fixed external word table included
	FlagHasMetadata uint32 = 1 << 1 // bit 1: custom metadata included
)

// Alphabet names used in the header.
const (
	AlphabetLabels     = "labels"
	AlphabetWords      = "words"
	AlphabetExtWords   = "ext_words"
	AlphabetAtts       = "atts"
	AlphabetEvalChars  = "eval_chars"
	AlphabetPolarities = "polarities"
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int                 `json:"format_version"`
	Creator       string              `json:"creator,omitempty"` // program and version that wrote the file
	CreatedAt     time.Time           `json:"created_at"`
	HyperParams   model.HyperParams   `json:"hyper_params"`
	Alphabets     map[string][]string `json:"alphabets"`
	Tensors       []TensorMeta        `json:"tensors"`
	Metadata      map[string]string   `json:"metadata,omitempty"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "hidden.w0"
	DType  string `json:"dtype"`  // always "float64"
	Shape  []int  `json:"shape"`  // [rows, cols]
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

func (t TensorMeta) numElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= int64(d)
	}
	return n
}
