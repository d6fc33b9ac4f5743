package domain

import "time"

type CheckName string

const (
	CheckDeclaration     CheckName = "declaration"
	CheckExpertiseReport CheckName = "expertise_report"
	CheckMedicalReport   CheckName = "medical_report"
	CheckPayment         CheckName = "payment"
)

type CheckStatus string

const (
	// CheckOK means the milestone was reached within the limit.
	CheckOK CheckStatus = "ok"
	// CheckPending means the milestone is not reached and the limit is not exceeded.
	CheckPending CheckStatus = "pending"
	// CheckOverdue means the milestone is not reached and the limit is exceeded.
	CheckOverdue CheckStatus = "overdue"
	// CheckBreached means the milestone was reached after the limit.
	CheckBreached CheckStatus = "breached"
)

// Legal limits in days.
const (
	DeclarationLimitDays     = 5
	ExpertiseReportLimitDays = 14
	MedicalReportLimitDays   = 20
	PaymentLimitDays         = 30
)

type Check struct {
	Name        CheckName
	LimitDays   int
	ElapsedDays int
	Status      CheckStatus
	// From is zero when the check has not started yet.
	From time.Time
}

type Conformity struct {
	ClaimNumber string
	Checks      []Check
	Late        bool
}

// Overdue returns the checks currently exceeded without their milestone.
func (c Conformity) Overdue() []Check {
	var out []Check
	for _, check := range c.Checks {
		if check.Status == CheckOverdue {
			out = append(out, check)
		}
	}
	return out
}

// EvaluateConformity computes the advisory deadline checks at now. Elapsed
// time is counted in whole days.
func EvaluateConformity(c Claim, now time.Time) Conformity {
	checks := []Check{
		measure(CheckDeclaration, DeclarationLimitDays, c.IncidentDate, &c.DeclarationDate, now),
		reportCheck(c, now),
		paymentCheck(c, now),
	}

	late := false
	if !c.Status.Terminal() {
		for _, check := range checks {
			if check.Status == CheckOverdue {
				late = true
				break
			}
		}
	}
	return Conformity{ClaimNumber: c.Number, Checks: checks, Late: late}
}

func reportCheck(c Claim, now time.Time) Check {
	name, limit := CheckExpertiseReport, ExpertiseReportLimitDays
	if c.Type == TypeSante {
		name, limit = CheckMedicalReport, MedicalReportLimitDays
	}
	return measure(name, limit, c.DeclarationDate, reportDoneAt(c), now)
}

// reportDoneAt is the completion of the expertise record, or of the
// expertise step when no record was kept.
func reportDoneAt(c Claim) *time.Time {
	if c.Expertise != nil && c.Expertise.Status == ExpertiseTermine && c.Expertise.CompletedDate != nil {
		return c.Expertise.CompletedDate
	}
	if step, ok := c.Step(StepExpertise); ok && step.Status == StepCompleted {
		return step.CompletedAt
	}
	return nil
}

func paymentCheck(c Claim, now time.Time) Check {
	from := approvalAt(c)
	if from == nil {
		return Check{Name: CheckPayment, LimitDays: PaymentLimitDays, Status: CheckPending}
	}
	return measure(CheckPayment, PaymentLimitDays, *from, paymentDoneAt(c), now)
}

// approvalAt is the first move to approuve, falling back to the completion of
// the validation step.
func approvalAt(c Claim) *time.Time {
	if c.ApprovedAt != nil {
		return c.ApprovedAt
	}
	if step, ok := c.Step(StepValidation); ok && step.Status == StepCompleted {
		return step.CompletedAt
	}
	return nil
}

func paymentDoneAt(c Claim) *time.Time {
	if step, ok := c.Step(StepPaiement); ok && step.Status == StepCompleted {
		return step.CompletedAt
	}
	if c.Status == StatusPaye {
		at := c.UpdatedAt
		return &at
	}
	return nil
}

func measure(name CheckName, limit int, from time.Time, doneAt *time.Time, now time.Time) Check {
	check := Check{Name: name, LimitDays: limit, From: from}
	if doneAt != nil && !doneAt.IsZero() {
		check.ElapsedDays = wholeDays(doneAt.Sub(from))
		check.Status = CheckOK
		if check.ElapsedDays > limit {
			check.Status = CheckBreached
		}
		return check
	}
	check.ElapsedDays = wholeDays(now.Sub(from))
	check.Status = CheckPending
	if check.ElapsedDays > limit {
		check.Status = CheckOverdue
	}
	return check
}

func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
