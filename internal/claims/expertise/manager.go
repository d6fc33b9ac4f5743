// Package expertise manages the expert's sub-record on a claim.
package expertise

import (
	"context"
	"fmt"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/claims/workflow"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const OpUpsert = "expertise_upsert"

// Runner is the workflow engine entry point used for the commit.
type Runner interface {
	Run(ctx context.Context, actor workflow.Actor, op, claimNumber string, fn workflow.MutateFunc) (domain.Claim, error)
}

// Input is a full or partial expertise. Nil fields keep the previous value.
type Input struct {
	Status          domain.ExpertiseStatus
	ScheduledDate   *time.Time
	CompletedDate   *time.Time
	Report          *string
	EstimatedAmount *decimal.Decimal
}

type Manager struct {
	runner Runner
}

func NewManager(runner Runner) *Manager {
	return &Manager{runner: runner}
}

// Upsert creates or merges the claim's expertise and records one event.
func (m *Manager) Upsert(ctx context.Context, actor workflow.Actor, claimNumber string, in Input) (domain.Claim, error) {
	return m.runner.Run(ctx, actor, OpUpsert, claimNumber, func(c *domain.Claim, now time.Time) (workflow.Outcome, error) {
		if !CanEdit(actor, *c) {
			return workflow.Outcome{}, apperr.Forbidden("only the assigned expert may edit the expertise")
		}
		if err := validate(in); err != nil {
			return workflow.Outcome{}, err
		}
		if c.Status.Terminal() {
			return workflow.Outcome{}, fmt.Errorf("%w: claim %s is %s", domain.ErrIllegalTransition, c.Number, c.Status)
		}

		created := c.Expertise == nil
		next := merge(c.Expertise, in, c.ID, c.Expert.ID, now)
		c.Expertise = &next

		return workflow.Outcome{
			EventType:      domain.EventExpertise,
			Description:    describe(next, created),
			WriteExpertise: true,
		}, nil
	})
}

// CanEdit is true for the assigned expert holding an expertise permission.
func CanEdit(actor workflow.Actor, c domain.Claim) bool {
	if !workflow.IsAssignedExpert(actor, c) {
		return false
	}
	for _, p := range workflow.ExpertisePermissions() {
		if actor.HasPermission(p) {
			return true
		}
	}
	return false
}

func validate(in Input) error {
	valid := false
	for _, s := range domain.ExpertiseStatuses() {
		if in.Status == s {
			valid = true
		}
	}
	switch {
	case !valid:
		return apperr.Validation("unknown expertise status")
	case in.EstimatedAmount != nil && in.EstimatedAmount.IsNegative():
		return apperr.Validation("amounts must be non-negative")
	}
	return nil
}

// merge carries omitted fields over from prev. A finished expertise without
// a completion date is dated now.
func merge(prev *domain.Expertise, in Input, claimID, expertID uuid.UUID, now time.Time) domain.Expertise {
	var out domain.Expertise
	if prev != nil {
		out = *prev
	} else {
		out = domain.Expertise{ID: uuid.New(), ClaimID: claimID, CreatedAt: now}
	}
	out.ExpertID = expertID
	out.Status = in.Status

	if in.ScheduledDate != nil {
		at := *in.ScheduledDate
		out.ScheduledDate = &at
	}
	if in.CompletedDate != nil {
		at := *in.CompletedDate
		out.CompletedDate = &at
	}
	if in.Report != nil {
		report := sanitize.Text(*in.Report)
		out.Report = &report
	}
	if in.EstimatedAmount != nil {
		amount := *in.EstimatedAmount
		out.EstimatedAmount = &amount
	}
	if out.Status == domain.ExpertiseTermine && out.CompletedDate == nil {
		at := now
		out.CompletedDate = &at
	}
	return out
}

func describe(x domain.Expertise, created bool) string {
	verb := "mise à jour"
	if created {
		verb = "créée"
	}
	s := fmt.Sprintf("Expertise %s : %s", verb, x.Status)
	if x.EstimatedAmount != nil {
		s += fmt.Sprintf(", montant estimé %s €", x.EstimatedAmount.StringFixed(2))
	}
	return s
}
