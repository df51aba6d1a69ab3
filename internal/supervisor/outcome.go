package supervisor

import (
	"errors"

	"github.com/pedrox86lopes/MagnetStream/internal/scan"
	"github.com/pedrox86lopes/MagnetStream/internal/services"
)

// FailureKind is the closed set of reasons a run can fail.
type FailureKind string

const (
	FailureInvalidRequest     FailureKind = "invalid_request"
	FailureToolUnavailable    FailureKind = "tool_unavailable"
	FailureConnectionTimeout  FailureKind = "connection_timeout"
	FailureExternalError      FailureKind = "external_error"
	FailureNoQualifyingOutput FailureKind = "no_qualifying_output"
	FailureCanceled           FailureKind = "canceled"
)

// Outcome is the single terminal result of a run. Exactly one Outcome is
// produced per run and it is always the last item delivered on the update
// channel.
type Outcome struct {
	Success bool
	Kind    FailureKind
	Detail  string
	Files   []scan.File
}

func successOutcome(files []scan.File, detail string) Outcome {
	return Outcome{Success: true, Detail: detail, Files: files}
}

func failureOutcome(kind FailureKind, detail string) Outcome {
	return Outcome{Kind: kind, Detail: detail}
}

// OutcomeFromError converts a tagged error from Start into the uniform
// failure taxonomy, for callers that record every attempt the same way.
func OutcomeFromError(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Success: true}
	case errors.Is(err, services.ErrValidation):
		return failureOutcome(FailureInvalidRequest, err.Error())
	case errors.Is(err, services.ErrUnavailable):
		return failureOutcome(FailureToolUnavailable, err.Error())
	case errors.Is(err, services.ErrTimeout):
		return failureOutcome(FailureConnectionTimeout, err.Error())
	case errors.Is(err, services.ErrNoOutput):
		return failureOutcome(FailureNoQualifyingOutput, err.Error())
	case errors.Is(err, services.ErrCanceled):
		return failureOutcome(FailureCanceled, err.Error())
	default:
		return failureOutcome(FailureExternalError, err.Error())
	}
}
