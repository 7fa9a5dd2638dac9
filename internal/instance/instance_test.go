package instance_test

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nncnn/internal/instance"
)

func TestParse(t *testing.T) {
	inst := must.M1(instance.Parse("pos the screen is bright [a]screen [a]phone [e]很亮 [e]ok [p]+1"))

	assert.Equal(t, "pos", inst.Label)
	assert.Equal(t, []string{"the", "screen", "is", "bright"}, inst.Segs)
	assert.Equal(t, []string{"[a]screen", "[a]phone"}, inst.Attributes)
	assert.Equal(t, []string{"很亮", "ok"}, inst.Evaluations)
	assert.Equal(t, [][]string{{"很", "亮"}, {"o", "k"}}, inst.EvalChars)
	assert.Equal(t, "[p]+1", inst.Polarity)
}

func TestParse_Edges(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		segs     []string
		atts     []string
		evals    []string
		polarity string
	}{
		{
			name: "no tags",
			line: "neg awful plot",
			segs: []string{"awful", "plot"},
		},
		{
			name: "label only",
			line: "neg",
		},
		{
			name:  "untagged after first tag ignored",
			line:  "neg bad [a]plot stray [e]slow",
			segs:  []string{"bad"},
			atts:  []string{"[a]plot"},
			evals: []string{"slow"},
		},
		{
			name:     "last polarity wins",
			line:     "neg [p]-1 [p]+1",
			polarity: "[p]+1",
		},
		{
			name:  "empty evaluation span",
			line:  "neu w [e]",
			segs:  []string{"w"},
			evals: []string{""},
		},
		{
			name: "tabs and repeated spaces",
			line: "pos\tgood \t  film",
			segs: []string{"good", "film"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := instance.Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.segs, inst.Segs)
			assert.Equal(t, tt.atts, inst.Attributes)
			assert.Equal(t, tt.evals, inst.Evaluations)
			assert.Len(t, inst.EvalChars, len(tt.evals))
			assert.Equal(t, tt.polarity, inst.Polarity)
		})
	}

	_, err := instance.Parse("   ")
	assert.ErrorIs(t, err, instance.ErrNoLabel)
}

func TestSplitCharacters(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"ascii", "ok", []string{"o", "k"}},
		{"cjk", "很亮", []string{"很", "亮"}},
		{"precomposed", "\u00e9t\u00e9", []string{"\u00e9", "t", "\u00e9"}},
		{"combining mark", "e\u0301t", []string{"e", "\u0301", "t"}},
		{"flag", "\U0001F1EB\U0001F1F7!", []string{"\U0001F1EB", "\U0001F1F7", "!"}},
		{"zwj sequence", "\U0001F469\u200d\U0001F4BB", []string{"\U0001F469", "\u200d", "\U0001F4BB"}},
		{"invalid bytes", "a\xffb\xe4", []string{"a", "\xff", "b", "\xe4"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, instance.SplitCharacters(tt.in))
		})
	}
}

func TestParse_SpanCharactersAreCodePoints(t *testing.T) {
	inst := must.M1(instance.Parse("pos [e]\U0001F1EB\U0001F1F7e\u0301"))
	require.Len(t, inst.EvalChars, 1)
	assert.Len(t, inst.EvalChars[0], 4)
}

func TestInstance_TokensAndString(t *testing.T) {
	line := "pos good film [a]film [e]great [p]+1"
	inst := must.M1(instance.Parse(line))
	assert.Equal(t, line, inst.String())
	assert.Equal(t, []string{"good", "film", "[a]film", "[e]great", "[p]+1"}, inst.Tokens())
}

func TestReadAll(t *testing.T) {
	corpus := "pos good\n\n   \nneg bad [p]-1\nneu meh\n"

	insts := must.M1(instance.ReadAll(strings.NewReader(corpus), 0))
	require.Len(t, insts, 3)
	assert.Equal(t, "neg", insts[1].Label)
	assert.Equal(t, "[p]-1", insts[1].Polarity)

	limited := must.M1(instance.ReadAll(strings.NewReader(corpus), 2))
	assert.Len(t, limited, 2)

	empty := must.M1(instance.ReadAll(strings.NewReader(""), 0))
	assert.Empty(t, empty)
}

func TestReader_LineNumbers(t *testing.T) {
	r := instance.NewReader(strings.NewReader("pos a\n\nneg b\n"))
	must.M1(r.Next())
	inst := must.M1(r.Next())
	assert.Equal(t, "neg", inst.Label)
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)

	long := "pos a\npos " + strings.Repeat("x", 5*1024*1024) + "\n"
	_, err = instance.ReadAll(strings.NewReader(long), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.txt")
	require.NoError(t, os.WriteFile(path, []byte("pos good\nneg bad\n"), 0o600))

	insts := must.M1(instance.ReadFile(path, 0))
	assert.Len(t, insts, 2)

	_, err := instance.ReadFile(filepath.Join(t.TempDir(), "missing.txt"), 0)
	assert.Error(t, err)
}
