package harness

import (
	"errors"
	"strings"

	"github.com/QuarksBlueFoot/styxctl/internal/registry"
	"github.com/QuarksBlueFoot/styxctl/internal/submit"
)

// Classifier buckets the result of one submission. The expected-failure
// bucket is a best-effort heuristic over the rejection detail: the
// program does not guarantee a stable, parseable reason code, so
// anything the classifier cannot confidently recognize must land in
// unexpected_failure. Failures are never silently hidden.
type Classifier func(spec registry.OperationSpec, err error) Classification

// missingStateShapes are the recognized renderings of "the referenced
// on-ledger object does not exist". Extend deliberately; every entry
// widens what the harness will excuse for operations that declare a
// prerequisite.
var missingStateShapes = []string{
	"state not found",
	"account not found",
	"accountnotinitialized",
	"account not initialized",
	"referenced state",
	"unknown handle",
	"no such object",
	"uninitialized",
}

// missingStateCodes are program error codes with the same meaning.
var missingStateCodes = map[int]bool{
	3012: true, // AccountNotInitialized
	3014: true, // AccountNotFound
}

// DefaultClassifier implements the documented policy: success passes;
// a rejection consistent with missing prerequisite state is expected
// only when the spec actually declares a prerequisite; everything else
// is unexpected.
func DefaultClassifier(spec registry.OperationSpec, err error) Classification {
	if err == nil {
		return ClassPassed
	}
	if spec.Prereq == registry.NoPrereq {
		return ClassUnexpectedFailure
	}
	var rej *submit.RejectedError
	if !errors.As(err, &rej) {
		return ClassUnexpectedFailure
	}
	if missingStateCodes[rej.Code] {
		return ClassExpectedFailure
	}
	msg := strings.ToLower(rej.Message)
	for _, shape := range missingStateShapes {
		if strings.Contains(msg, shape) {
			return ClassExpectedFailure
		}
	}
	return ClassUnexpectedFailure
}
