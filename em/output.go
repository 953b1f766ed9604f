package em

import (
	"context"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// WriteTSV emits the abundance report: one row per transcript, header
// target_id/kallisto_id/rho/tpm/est_counts, floats at 15-digit
// precision. ComputeRho must have been called first.
func (e *Estimator) WriteTSV(ctx context.Context, path string) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "creating abundance output", path)
	}
	defer file.CloseAndReport(ctx, out, &err)

	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("target_id")
	w.WriteString("kallisto_id")
	w.WriteString("rho")
	w.WriteString("tpm")
	w.WriteString("est_counts")
	if err := w.EndLine(); err != nil {
		return err
	}

	const million = 1e6
	for i, name := range e.targetNames {
		w.WriteString(name)
		w.WriteString(strconv.Itoa(i))
		w.WriteString(formatFloat15(e.rho[i]))
		w.WriteString(formatFloat15(e.rho[i] * million))
		w.WriteString(formatFloat15(e.alpha[i]))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

func formatFloat15(v float64) string {
	return strconv.FormatFloat(v, 'g', 15, 64)
}
