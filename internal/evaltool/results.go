package evaltool

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// boundaryFields is the minimum row length of eval_bdry.txt:
// threshold, ODS R/P/F, OIS R/P/F, AP.
const boundaryFields = 8

// Score is one recall/precision/F-measure triple.
type Score struct {
	Recall    float64
	Precision float64
	F         float64
}

// BoundaryResults is the summary row of eval_bdry.txt.
type BoundaryResults struct {
	ODS Score
	OIS Score
	AP  float64
}

// ReadBoundaryResults loads the first data row of a whitespace-delimited
// numeric table. Blank lines and lines starting with '#' are skipped.
func ReadBoundaryResults(path string) (*BoundaryResults, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	row, err := firstRow(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(row) < boundaryFields {
		return nil, fmt.Errorf("%s: %d values, want at least %d", path, len(row), boundaryFields)
	}
	return &BoundaryResults{
		ODS: Score{Recall: row[1], Precision: row[2], F: row[3]},
		OIS: Score{Recall: row[4], Precision: row[5], F: row[6]},
		AP:  row[7],
	}, nil
}

func firstRow(r io.Reader) ([]float64, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		vals := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("could not parse %q: %w", field, err)
			}
			vals[i] = v
		}
		return vals, nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no data rows")
}

const rule = "=================================================="

// WriteReport prints the summary block. The ODS/OIS lines are parsed by
// the experiment runner, so their layout must not change.
func (r *BoundaryResults) WriteReport(w io.Writer, path string) {
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "EVALUATION RESULTS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "ODS: F=%.4f (P=%.4f, R=%.4f)\n", r.ODS.F, r.ODS.Precision, r.ODS.Recall)
	fmt.Fprintf(w, "OIS: F=%.4f (P=%.4f, R=%.4f)\n", r.OIS.F, r.OIS.Precision, r.OIS.Recall)
	fmt.Fprintf(w, "AP:  %.4f\n", r.AP)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "\nFull results saved to: %s\n", path)
}
