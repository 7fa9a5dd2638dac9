package train

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nncnn/internal/instance"
	"github.com/born-ml/nncnn/internal/model"
)

// WritePredictions writes one line per instance: the predicted label followed
// by the instance tokens, so the output reads back as a corpus.
func WritePredictions(w io.Writer, insts []*instance.Instance, preds []model.Prediction) error {
	if len(insts) != len(preds) {
		return errors.Errorf("%d instances but %d predictions", len(insts), len(preds))
	}
	bw := bufio.NewWriter(w)
	for i, inst := range insts {
		line := append([]string{preds[i].Label}, inst.Tokens()...)
		if _, err := bw.WriteString(strings.Join(line, " ") + "\n"); err != nil {
			return errors.Wrap(err, "failed to write predictions")
		}
	}
	return errors.Wrap(bw.Flush(), "failed to write predictions")
}
