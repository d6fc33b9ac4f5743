package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OpCreate         = "create"
	OpStartStep      = "start_step"
	OpCompleteStep   = "complete_step"
	OpChangeStatus   = "change_status"
	OpReject         = "reject"
	OpAssign         = "assign"
	OpRecordAmounts  = "record_amounts"
	OpComment        = "comment"
	OpAttachDocument = "attach_document"
)

// CreateInput is a new declaration. DeclarantID defaults to the actor and
// may only name someone else when the actor holds claims.edit.
type CreateInput struct {
	PolicyNumber    string
	Type            domain.Type
	IncidentDate    time.Time
	DeclarationDate *time.Time
	Location        string
	Description     string
	EstimatedAmount *decimal.Decimal
	DeclarantID     *uuid.UUID
}

// Create declares a new claim.
func (e *Engine) Create(ctx context.Context, actor Actor, in CreateInput) (domain.Claim, error) {
	if actor == nil {
		return domain.Claim{}, e.fail(OpCreate, "", actor, apperr.Unauthorized("authentication required"))
	}
	if err := require(actor, createPermissions); err != nil {
		return domain.Claim{}, e.fail(OpCreate, "", actor, err)
	}
	if err := validateCreate(in); err != nil {
		return domain.Claim{}, e.fail(OpCreate, "", actor, err)
	}

	declarantID := actor.UserID()
	if in.DeclarantID != nil && *in.DeclarantID != declarantID {
		if !actor.HasPermission(PermClaimsEdit) {
			return domain.Claim{}, e.fail(OpCreate, "", actor, denied())
		}
		declarantID = *in.DeclarantID
	}
	declarant, err := e.lookup(ctx, declarantID)
	if err != nil {
		return domain.Claim{}, e.fail(OpCreate, "", actor, err)
	}

	draft := domain.Draft{
		PolicyNumber:    strings.TrimSpace(in.PolicyNumber),
		Type:            in.Type,
		IncidentDate:    in.IncidentDate,
		Location:        sanitize.Line(in.Location),
		Description:     sanitize.Text(in.Description),
		EstimatedAmount: in.EstimatedAmount,
		Declarant:       declarant,
	}
	if in.DeclarationDate != nil {
		draft.DeclarationDate = *in.DeclarationDate
	}

	var event domain.Event
	created, err := e.claims.Create(ctx, draft, func(c domain.Claim) domain.Event {
		event = e.newEvent(actor, Outcome{
			EventType:   domain.EventCreation,
			Description: fmt.Sprintf("Sinistre %s déclaré (police %s)", c.Number, c.PolicyNumber),
		}, c.CreatedAt)
		return event
	})
	if err != nil {
		return domain.Claim{}, e.fail(OpCreate, "", actor, err)
	}

	e.succeed(ctx, OpCreate, created, event, actor)
	return created, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.PolicyNumber) == "":
		return apperr.Validation("policy number is required")
	case !in.Type.Valid():
		return apperr.Validation("unknown claim type")
	case in.IncidentDate.IsZero():
		return apperr.Validation("incident date is required")
	case in.EstimatedAmount != nil && in.EstimatedAmount.IsNegative():
		return apperr.Validation("amounts must be non-negative")
	case in.DeclarationDate != nil && in.DeclarationDate.Before(in.IncidentDate):
		return apperr.Validation("declaration date cannot precede the incident")
	}
	return nil
}

// lookup resolves a user through the directory, falling back to NotFound
// when no directory is configured.
func (e *Engine) lookup(ctx context.Context, id uuid.UUID) (domain.User, error) {
	if e.users == nil {
		return domain.User{}, apperr.NotFound("user not found")
	}
	return e.users.LookupUser(ctx, id)
}

// StartStep moves the current step to in progress.
func (e *Engine) StartStep(ctx context.Context, actor Actor, claimNumber string, step domain.StepID) (domain.Claim, error) {
	return e.Run(ctx, actor, OpStartStep, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if !step.Valid() {
			return Outcome{}, apperr.Validation("unknown process step")
		}
		if !CanStartOrComplete(actor, step) {
			return Outcome{}, denied()
		}
		if err := c.StartStep(step, now); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			EventType:   domain.EventStatusChange,
			Description: fmt.Sprintf("Étape « %s » démarrée", step.Name()),
		}, nil
	})
}

// CompleteStep finishes an in-progress step. Finishing the payment step
// closes the claim and records a closure event instead.
func (e *Engine) CompleteStep(ctx context.Context, actor Actor, claimNumber string, step domain.StepID) (domain.Claim, error) {
	return e.Run(ctx, actor, OpCompleteStep, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if !step.Valid() {
			return Outcome{}, apperr.Validation("unknown process step")
		}
		if !CanStartOrComplete(actor, step) {
			return Outcome{}, denied()
		}
		closed, err := c.CompleteStep(step, now)
		if err != nil {
			return Outcome{}, err
		}
		if closed {
			return Outcome{
				EventType:   domain.EventClosure,
				Description: fmt.Sprintf("Étape « %s » terminée, sinistre clôturé", step.Name()),
			}, nil
		}
		return Outcome{
			EventType:   domain.EventStatusChange,
			Description: fmt.Sprintf("Étape « %s » terminée", step.Name()),
		}, nil
	})
}

// ChangeStatus moves the claim forward. Rejection goes through Reject.
func (e *Engine) ChangeStatus(ctx context.Context, actor Actor, claimNumber string, target domain.Status) (domain.Claim, error) {
	return e.Run(ctx, actor, OpChangeStatus, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if !target.Valid() {
			return Outcome{}, apperr.Validation("unknown status")
		}
		if !CanChangeStatus(actor, target) {
			return Outcome{}, denied()
		}
		from := c.Status
		if err := c.ChangeStatus(target, now); err != nil {
			return Outcome{}, err
		}
		eventType := domain.EventStatusChange
		if target == domain.StatusClos {
			eventType = domain.EventClosure
		}
		return Outcome{
			EventType:   eventType,
			Description: fmt.Sprintf("Statut modifié : %s → %s", from, target),
		}, nil
	})
}

// Reject closes the claim as rejected with a reason.
func (e *Engine) Reject(ctx context.Context, actor Actor, claimNumber, reason string) (domain.Claim, error) {
	return e.Run(ctx, actor, OpReject, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if err := require(actor, rejectPermissions); err != nil {
			return Outcome{}, err
		}
		if err := c.Reject(sanitize.Text(reason), now); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			EventType:   domain.EventRejection,
			Description: "Sinistre rejeté : " + *c.RejectionReason,
		}, nil
	})
}

// Assign puts a user in the manager, expert or medical expert slot.
func (e *Engine) Assign(ctx context.Context, actor Actor, claimNumber string, role domain.AssignmentRole, userID uuid.UUID) (domain.Claim, error) {
	if !role.Valid() {
		return domain.Claim{}, e.fail(OpAssign, claimNumber, actor, apperr.Validation("unknown assignment role"))
	}
	if err := require(actor, assignPermissions(role)); err != nil {
		return domain.Claim{}, e.fail(OpAssign, claimNumber, actor, err)
	}
	assignee, err := e.lookup(ctx, userID)
	if err != nil {
		return domain.Claim{}, e.fail(OpAssign, claimNumber, actor, err)
	}

	return e.Run(ctx, actor, OpAssign, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if err := c.Assign(role, assignee, now); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			EventType:   domain.EventAssignment,
			Description: fmt.Sprintf("%s assigné : %s", assignmentLabel(role), assignee.Name),
		}, nil
	})
}

func assignmentLabel(role domain.AssignmentRole) string {
	switch role {
	case domain.AssignExpert:
		return domain.LabelExpert
	case domain.AssignMedicalExpert:
		return domain.LabelMedicalExpert
	default:
		return domain.LabelManager
	}
}

// RecordAmounts sets estimated, approved or paid amounts. Each amount has its
// own gate; an override of the approval requirement needs both validation
// and payment rights.
func (e *Engine) RecordAmounts(ctx context.Context, actor Actor, claimNumber string, patch domain.AmountsPatch) (domain.Claim, error) {
	return e.Run(ctx, actor, OpRecordAmounts, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if patch.Estimated == nil && patch.Approved == nil && patch.Paid == nil {
			return Outcome{}, apperr.Validation("no amount given")
		}
		if err := amountsGate(actor, *c, patch); err != nil {
			return Outcome{}, err
		}
		if err := c.SetAmounts(patch, now); err != nil {
			return Outcome{}, err
		}
		return amountsOutcome(patch), nil
	})
}

func amountsGate(a Actor, c domain.Claim, p domain.AmountsPatch) error {
	if p.Estimated != nil && !hasAny(a, estimatedPermissions) &&
		!(IsAssignedExpert(a, c) && hasAny(a, expertEstimatedPermissions)) {
		return denied()
	}
	if p.Approved != nil && !hasAny(a, approvedPermissions) {
		return denied()
	}
	if p.Paid != nil && !hasAny(a, paidPermissions) {
		return denied()
	}
	if p.Override && !(a.HasPermission(PermPaymentsCreate) && a.HasPermission(PermClaimsValidate)) {
		return denied()
	}
	return nil
}

func amountsOutcome(p domain.AmountsPatch) Outcome {
	var parts []string
	if p.Estimated != nil {
		parts = append(parts, "estimé "+formatAmount(*p.Estimated))
	}
	if p.Approved != nil {
		parts = append(parts, "approuvé "+formatAmount(*p.Approved))
	}
	if p.Paid != nil {
		parts = append(parts, "payé "+formatAmount(*p.Paid))
	}
	out := Outcome{EventType: domain.EventValidation, Description: "Montants : " + strings.Join(parts, ", ")}
	if p.Paid != nil {
		out.EventType = domain.EventPayment
	}
	return out
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}

// AddComment appends a free-text comment to the history.
func (e *Engine) AddComment(ctx context.Context, actor Actor, claimNumber, text string) (domain.Claim, error) {
	return e.Run(ctx, actor, OpComment, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if err := require(actor, commentPermissions); err != nil {
			return Outcome{}, err
		}
		text = sanitize.Text(text)
		if text == "" {
			return Outcome{}, apperr.Validation("comment is empty")
		}
		if c.Status.Terminal() {
			return Outcome{}, fmt.Errorf("%w: claim %s is %s", domain.ErrIllegalTransition, c.Number, c.Status)
		}
		return Outcome{EventType: domain.EventComment, Description: text}, nil
	})
}

// DocumentInput is the metadata of an uploaded file. URL is the object
// location returned by the storage service.
type DocumentInput struct {
	Name string
	Type string
	URL  string
}

// AttachDocument records document metadata. See CanAttachDocument for the
// gate.
func (e *Engine) AttachDocument(ctx context.Context, actor Actor, claimNumber string, in DocumentInput) (domain.Claim, error) {
	return e.Run(ctx, actor, OpAttachDocument, claimNumber, func(c *domain.Claim, now time.Time) (Outcome, error) {
		if !CanAttachDocument(actor, *c) {
			return Outcome{}, denied()
		}
		name := sanitize.Line(in.Name)
		if name == "" || strings.TrimSpace(in.URL) == "" {
			return Outcome{}, apperr.Validation("document name and url are required")
		}
		doc := domain.Document{
			ID:         uuid.New(),
			Name:       name,
			Type:       sanitize.Line(in.Type),
			URL:        in.URL,
			UploadedBy: actorUser(actor),
			UploadedAt: now,
		}
		c.AddDocument(doc, now)
		return Outcome{
			EventType:   domain.EventDocument,
			Description: "Document ajouté : " + name,
			Document:    &doc,
		}, nil
	})
}

// CanAttachDocument applies the document gate to c. report.upload is limited
// to the assigned expert and documents.upload.own to the declarant.
func CanAttachDocument(a Actor, c domain.Claim) bool {
	if hasAny(a, documentPermissions) {
		return true
	}
	if IsAssignedExpert(a, c) && hasAny(a, expertDocumentPermissions) {
		return true
	}
	return a != nil && a.HasPermission(PermDocumentsOwn) && a.UserID() == c.Declarant.ID
}
