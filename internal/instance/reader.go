package instance

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoLabel is returned for a line that has content but no label token.
var ErrNoLabel = errors.New("instance line has no label")

// Parse parses one corpus line.
//
// Format: the first token is the label; the following tokens are word
// segments up to the first token starting with [a], [e] or [p]. From that
// token on, [a] tokens are attributes, [e] tokens evaluation spans and the
// [p] token the polarity (the last one wins). Untagged tokens after the first
// tag are ignored. A line without any tag has every non-label token as a segment.
func Parse(line string) (*Instance, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrNoLabel
	}
	inst := &Instance{Label: fields[0]}

	segEnd := len(fields)
	for i := 1; i < len(fields); i++ {
		if isTagged(fields[i]) {
			segEnd = i
			break
		}
		inst.Segs = append(inst.Segs, fields[i])
	}

	for _, tok := range fields[segEnd:] {
		switch {
		case strings.HasPrefix(tok, AttributeTag):
			inst.Attributes = append(inst.Attributes, tok)
		case strings.HasPrefix(tok, EvaluationTag):
			span := strings.TrimPrefix(tok, EvaluationTag)
			inst.Evaluations = append(inst.Evaluations, span)
			inst.EvalChars = append(inst.EvalChars, SplitCharacters(span))
		case strings.HasPrefix(tok, PolarityTag):
			inst.Polarity = tok
		}
	}
	return inst, nil
}

// Reader reads instances from a corpus stream, one per non-blank line.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{scanner: s}
}

// Next returns the next instance, or io.EOF when the stream is exhausted.
// Blank lines are skipped.
func (r *Reader) Next() (*Instance, error) {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		inst, err := Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", r.line)
		}
		return inst, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "line %d", r.line+1)
	}
	return nil, io.EOF
}

// ReadAll reads every instance from r. maxInstances <= 0 reads all.
func ReadAll(r io.Reader, maxInstances int) ([]*Instance, error) {
	reader := NewReader(r)
	var insts []*Instance
	for maxInstances <= 0 || len(insts) < maxInstances {
		inst, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, nil
}

// ReadFile reads every instance of a corpus file.
func ReadFile(path string, maxInstances int) ([]*Instance, error) {
	//nolint:gosec // G304: corpus path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open corpus")
	}
	defer f.Close()

	insts, err := ReadAll(f, maxInstances)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return insts, nil
}
