package merge

import "scholarsphere/internal/domain/works"

// Options configure a single merge run.
type Options struct {
	// Force ignores soft (metadata mismatch) violations.
	Force bool
	// MintDOI registers a DOI for the new work once the merge has committed.
	MintDOI bool
}

// Outcome is what a merge reports back to its caller. Violations found before
// any write are listed in Errors; Work is set only on success.
type Outcome struct {
	Successful bool
	Errors     []string
	Work       *works.Work
}

func failure(errs []string) *Outcome {
	return &Outcome{Successful: false, Errors: errs}
}

func success(w *works.Work) *Outcome {
	return &Outcome{Successful: true, Errors: []string{}, Work: w}
}
