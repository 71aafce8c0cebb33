// Package executors provides the concrete worker.Executor implementations
// spec.md §6's representative domains need: slide generation/format/edit,
// narration, chapter translation/edit/format/bilingual rendering, cover
// art, and test generation. Each dispatches on the "op" discriminator an
// orchestrator method stashes in Job.Input, since pkgmodels.JobKind only
// distinguishes worker loops, not the billable action within one.
package executors

import (
	"errors"
	"fmt"

	"github.com/aidocs/platform/internal/application/worker"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// classifyProviderErr maps the provider facade's error taxonomy onto the
// worker's retry contract: a content-policy rejection is fatal (the job
// fails and its reservation is refunded in full), everything else the
// facade surfaces (timeout, unavailable, schema validation after the
// repair retry) is transient and should be requeued with backoff.
func classifyProviderErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pkgmodels.ErrProviderPolicy) {
		return err
	}
	return &worker.RetryableProviderError{Err: err}
}

func inputString(input map[string]any, key string) string {
	v, _ := input[key].(string)
	return v
}

func inputOp(job *pkgmodels.Job) string {
	return inputString(job.Input, "op")
}

// inputIntSlice reads an index list out of a job's input map, tolerating
// both the []int a caller sets in-process and the []any of float64s that
// comes back from a jsonb round-trip through storage.
func inputIntSlice(input map[string]any, key string) []int {
	switch v := input[key].(type) {
	case []int:
		return v
	case []any:
		out := make([]int, 0, len(v))
		for _, e := range v {
			switch n := e.(type) {
			case float64:
				out = append(out, int(n))
			case int:
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}

// errUnknownOp is returned when a job's op discriminator doesn't match any
// pipeline a given executor knows how to run.
func errUnknownOp(kind pkgmodels.JobKind, op string) error {
	return fmt.Errorf("%w: %s executor has no pipeline for op %q", pkgmodels.ErrUnknownJobKind, kind, op)
}
