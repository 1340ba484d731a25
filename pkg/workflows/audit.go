package workflows

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opsdeck/opsdeck/pkg/stores"
)

// auditTimeout bounds the journal write of one audit entry.
const auditTimeout = 5 * time.Second

// audit appends the finished run to the journal. Failures are logged and
// never change the result.
func (o *Orchestrator) audit(ctx context.Context, r *run) {
	if o.journal == nil {
		return
	}
	res := r.result

	payload, err := json.Marshal(res)
	if err != nil {
		r.tel.Logger.WithError(err).Error("Failed to encode workflow result for audit")
		return
	}
	ids, err := json.Marshal(res.ResourceIDs())
	if err != nil {
		r.tel.Logger.WithError(err).Error("Failed to encode workflow resource IDs for audit")
		return
	}

	entry := &stores.WorkflowAudit{
		ID:          res.RunID,
		Workflow:    res.Workflow,
		Outcome:     res.Outcome(),
		ResourceIDs: string(ids),
		Result:      string(payload),
		StartedAt:   r.started,
		CompletedAt: time.Now().UTC(),
	}
	if res.Error != "" {
		msg := res.Error
		entry.Error = &msg
	}
	if res.Notice != "" {
		notice := res.Notice
		entry.Notice = &notice
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := o.journal.AppendWorkflowAudit(auditCtx, entry); err != nil {
		r.tel.Logger.WithError(err).Error("Failed to append workflow audit")
	}
}
