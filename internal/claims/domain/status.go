package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmounts is wrapped when an amount update breaks the ordering
// estimated, then approved, then paid.
var ErrInvalidAmounts = errors.New("invalid amounts")

// prerequisites lists the steps that must be completed before a claim may
// enter each forward status.
var prerequisites = map[Status][]StepID{
	StatusEnAnalyse:    {StepDeclaration},
	StatusEnExpertise:  {StepDeclaration, StepInstruction},
	StatusEnValidation: {StepDeclaration, StepInstruction, StepExpertise},
	StatusApprouve:     {StepDeclaration, StepInstruction, StepExpertise, StepValidation},
	StatusPaye:         {StepDeclaration, StepInstruction, StepExpertise, StepValidation},
	StatusClos:         {StepDeclaration, StepInstruction, StepExpertise, StepValidation},
}

// Prerequisites returns the steps required before entering target.
func Prerequisites(target Status) []StepID {
	return append([]StepID(nil), prerequisites[target]...)
}

// ChangeStatus moves the claim forward along the chain. Backward moves,
// same-status moves and rejection are refused here; Reject handles the side exit.
func (c *Claim) ChangeStatus(target Status, now time.Time) error {
	if !target.Valid() {
		return illegal("unknown status %q", target)
	}
	if target == StatusRejete {
		return illegal("rejection requires a reason")
	}
	if c.Status.Terminal() {
		return illegal("claim %s is %s", c.Number, c.Status)
	}
	if target.rank() <= c.Status.rank() {
		return illegal("cannot move from %s to %s", c.Status, target)
	}
	for _, id := range prerequisites[target] {
		if !c.stepCompleted(id) {
			return illegal("%s requires step %s to be completed", target, id)
		}
	}
	if target == StatusPaye && c.ApprovedAmount == nil {
		return illegal("%s requires an approved amount", target)
	}
	if target == StatusClos {
		return c.close(now)
	}

	c.Status = target
	if target == StatusApprouve && c.ApprovedAt == nil {
		at := now
		c.ApprovedAt = &at
	}
	c.UpdatedAt = now
	return nil
}

// close is the manual paye to clos move. It completes the running paiement
// step, so a closed claim always has all five steps completed.
func (c *Claim) close(now time.Time) error {
	if c.Status != StatusPaye {
		return illegal("%s is only reachable from %s", StatusClos, StatusPaye)
	}
	_, err := c.CompleteStep(StepPaiement, now)
	return err
}

// Reject takes the side exit. It is refused once the claim is paid or terminal.
func (c *Claim) Reject(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return illegal("rejection requires a reason")
	}
	if c.Status == StatusPaye || c.Status.Terminal() {
		return illegal("claim %s is %s and cannot be rejected", c.Number, c.Status)
	}
	c.Status = StatusRejete
	c.RejectionReason = &reason
	c.UpdatedAt = now
	return nil
}

// AmountsPatch carries the amounts to set. Nil keeps the current value.
type AmountsPatch struct {
	Estimated *decimal.Decimal
	Approved  *decimal.Decimal
	Paid      *decimal.Decimal
	// Override allows a paid amount without an approved one.
	Override bool
}

// SetAmounts applies p after checking that each amount is non-negative,
// approved has an estimate behind it and paid has an approval behind it
// unless overridden.
func (c *Claim) SetAmounts(p AmountsPatch, now time.Time) error {
	if c.Status.Terminal() {
		return illegal("claim %s is %s", c.Number, c.Status)
	}
	for _, d := range []*decimal.Decimal{p.Estimated, p.Approved, p.Paid} {
		if d != nil && d.IsNegative() {
			return amountsError("amounts must be non-negative")
		}
	}

	estimated := firstNonNil(p.Estimated, c.EstimatedAmount)
	approved := firstNonNil(p.Approved, c.ApprovedAmount)
	if approved != nil && estimated == nil {
		return amountsError("an approved amount requires an estimated amount")
	}
	if p.Paid != nil && approved == nil && !p.Override {
		return amountsError("a paid amount requires an approved amount")
	}

	if p.Estimated != nil {
		c.EstimatedAmount = cloneDecimal(p.Estimated)
	}
	if p.Approved != nil {
		c.ApprovedAmount = cloneDecimal(p.Approved)
	}
	if p.Paid != nil {
		c.PaidAmount = cloneDecimal(p.Paid)
	}
	c.UpdatedAt = now
	return nil
}

func firstNonNil(values ...*decimal.Decimal) *decimal.Decimal {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

type amountsErr struct{ msg string }

func (e amountsErr) Error() string { return e.msg }
func (e amountsErr) Unwrap() error { return ErrInvalidAmounts }

func amountsError(msg string) error { return amountsErr{msg: msg} }

// AssignmentRole names one of the assignable slots on a claim.
type AssignmentRole string

const (
	AssignManager       AssignmentRole = "gestionnaire"
	AssignExpert        AssignmentRole = "expert"
	AssignMedicalExpert AssignmentRole = "medecin_expert"
)

func (r AssignmentRole) Valid() bool {
	switch r {
	case AssignManager, AssignExpert, AssignMedicalExpert:
		return true
	}
	return false
}

// Assign sets the user in the given slot.
func (c *Claim) Assign(role AssignmentRole, user User, now time.Time) error {
	if c.Status.Terminal() {
		return illegal("claim %s is %s", c.Number, c.Status)
	}
	assigned := user
	switch role {
	case AssignManager:
		c.Manager = &assigned
	case AssignExpert:
		c.Expert = &assigned
	case AssignMedicalExpert:
		if c.Type != TypeSante {
			return illegal("a medical expert can only be assigned to a %s claim", TypeSante)
		}
		c.MedicalExpert = &assigned
	default:
		return illegal("unknown assignment %q", role)
	}
	c.UpdatedAt = now
	return nil
}

// AddDocument attaches document metadata.
func (c *Claim) AddDocument(d Document, now time.Time) {
	c.Documents = append(c.Documents, d)
	c.UpdatedAt = now
}
