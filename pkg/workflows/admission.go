package workflows

import (
	"context"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/policy"
)

// Admission evaluates policies before a workflow sends its first request.
type Admission interface {
	Evaluate(ctx context.Context, input policy.Input) (*policy.Result, error)
}

// WithAdmission checks every workflow against policies before it acts.
func WithAdmission(a Admission) Option {
	return func(o *Orchestrator) { o.admission = a }
}

// admit returns a validation error when a blocking policy denies input.
// Warnings are logged and emitted as notices. A policy engine failure does
// not block.
func (r *run) admit(ctx context.Context, input policy.Input) error {
	if r.o.admission == nil {
		return nil
	}
	input.Workflow = r.result.Workflow

	result, err := r.o.admission.Evaluate(ctx, input)
	if err != nil {
		r.tel.Logger.WithError(err).Warn("Policy evaluation failed")
		return nil
	}

	for _, v := range result.Violations {
		if v.Severity.Blocks() {
			continue
		}
		r.tel.Logger.WithField("policy", v.Policy).Warn(v.Message)
		r.outbox.Notice(v.Message)
	}

	if !result.Allowed {
		r.tel.Logger.WithField("violations", len(result.Denials())).Info("Workflow denied by policy")
		return engine.NewValidationError(result.Message()).WithCode(engine.ErrCodePolicyDenied)
	}
	return nil
}
