package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits.
const (
	MaxHeaderSize    = 256 * 1024 * 1024 // alphabets can be large
	MaxTensorCount   = 1024
	MaxTensorNameLen = 256
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Size > dataSize-t.Offset {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects empty, overlong and non-printable names.
func ValidateTensorName(name string) error {
	if name == "" || len(name) > MaxTensorNameLen {
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name,
			Details: fmt.Sprintf("length %d not in [1, %d]", len(name), MaxTensorNameLen),
		}
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name,
			Details: "contains a path separator, '..' or a null byte",
		}
	}
	return nil
}

// ValidateTensorShape checks that a tensor is a float64 matrix whose size
// matches its shape.
func ValidateTensorShape(t TensorMeta) error {
	if t.DType != DTypeFloat64 {
		return &ValidationError{Err: ErrInvalidShape, Tensor: t.Name, Details: "dtype " + t.DType}
	}
	if len(t.Shape) != 2 || t.Shape[0] <= 0 || t.Shape[1] <= 0 {
		return &ValidationError{Err: ErrInvalidShape, Tensor: t.Name, Details: fmt.Sprintf("shape %v", t.Shape)}
	}
	if int64(t.Shape[1]) > MaxDataSize/float64Size/int64(t.Shape[0]) {
		return &ValidationError{Err: ErrInvalidShape, Tensor: t.Name, Details: fmt.Sprintf("shape %v exceeds the data size limit", t.Shape)}
	}
	if t.numElements()*float64Size != t.Size {
		return &ValidationError{
			Err:     ErrInvalidShape,
			Tensor:  t.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, t.numElements()*float64Size, t.Size),
		}
	}
	return nil
}

// ValidateHeader checks the tensor table of h against a data section of dataSize bytes.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: header says %d", ErrUnsupportedVersion, h.FormatVersion)
	}
	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Err: ErrInvalidTensorName, Tensor: t.Name, Details: "duplicate"}
		}
		seen[t.Name] = true
		if err := ValidateTensorShape(t); err != nil {
			return err
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}

// validateFlags checks the fixed header flags against the JSON header.
func validateFlags(flags uint32, h *Header) error {
	if unknown := flags &^ (FlagHasExtWords | FlagHasMetadata); unknown != 0 {
		return &ValidationError{Err: ErrFlagMismatch, Details: fmt.Sprintf("unknown flags %#x", unknown)}
	}
	_, hasExtAlphabet := h.Alphabets[AlphabetExtWords]
	hasExt := flags&FlagHasExtWords != 0
	if hasExt != (h.HyperParams.ExtWordDim > 0) || hasExt != hasExtAlphabet {
		return &ValidationError{
			Err: ErrFlagMismatch,
			Details: fmt.Sprintf("ext words flag %v, ext_word_dim %d, ext alphabet present %v",
				hasExt, h.HyperParams.ExtWordDim, hasExtAlphabet),
		}
	}
	if hasMeta := flags&FlagHasMetadata != 0; hasMeta != (len(h.Metadata) > 0) {
		return &ValidationError{
			Err:     ErrFlagMismatch,
			Details: fmt.Sprintf("metadata flag %v, %d metadata entries", hasMeta, len(h.Metadata)),
		}
	}
	return nil
}
