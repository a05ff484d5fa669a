package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/render"
)

// ExitError carries the process exit code for a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode returns the exit status for err: 0 for nil, the carried code
// for an ExitError and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

var findingHeaders = []string{"SEVERITY", "INCREMENT", "KIND", "FIELD", "SOURCE", "DERIVED", "FIX"}

func findingRows(findings []domain.Finding) [][]string {
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		id := f.IncrementID
		if id == "" {
			id = "-"
		}
		rows = append(rows, []string{
			string(f.Severity), id, string(f.Kind), f.Field, f.ValueA, f.ValueB, f.Fix,
		})
	}
	return rows
}

// renderFindings prints findings as a table, or a single OK line when
// there are none
func renderFindings(out *render.Renderer, findings []domain.Finding) error {
	if len(findings) == 0 {
		out.Println(out.OK("No findings."))
		return nil
	}
	return out.RenderTable(findingHeaders, findingRows(findings))
}

func blockingCount(findings []domain.Finding) int {
	n := 0
	for _, f := range findings {
		if f.Severity.Blocking() {
			n++
		}
	}
	return n
}

// printErrors lists per-increment failures after a batch
func printErrors(w io.Writer, errs []error) {
	for _, err := range errs {
		fmt.Fprintf(w, "error: %v\n", err)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func violationLines(vs []domain.Violation) string {
	var b strings.Builder
	for _, v := range vs {
		fmt.Fprintf(&b, "  [%s] %s\n", v.Severity, v.Message)
		if v.Suggestion != "" {
			fmt.Fprintf(&b, "    %s\n", v.Suggestion)
		}
	}
	return b.String()
}
