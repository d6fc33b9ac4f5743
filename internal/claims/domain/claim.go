// Package domain holds the claim model and its state rules. It has no I/O.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrIllegalTransition is wrapped by every refused status or step change.
var ErrIllegalTransition = errors.New("illegal transition")

// ErrStepOrder reports a step list that breaks the ordering invariant.
var ErrStepOrder = errors.New("process steps out of order")

type Status string

const (
	StatusOuvert       Status = "ouvert"
	StatusEnAnalyse    Status = "en_analyse"
	StatusEnExpertise  Status = "en_expertise"
	StatusEnValidation Status = "en_validation"
	StatusApprouve     Status = "approuve"
	StatusPaye         Status = "paye"
	StatusClos         Status = "clos"
	StatusRejete       Status = "rejete"
)

// forwardChain is the canonical order. rejete sits outside it.
var forwardChain = []Status{
	StatusOuvert,
	StatusEnAnalyse,
	StatusEnExpertise,
	StatusEnValidation,
	StatusApprouve,
	StatusPaye,
	StatusClos,
}

// Statuses lists every status, forward chain first.
func Statuses() []Status {
	return append(append([]Status(nil), forwardChain...), StatusRejete)
}

func (s Status) Valid() bool {
	return s == StatusRejete || s.rank() >= 0
}

func (s Status) Terminal() bool {
	return s == StatusClos || s == StatusRejete
}

func (s Status) rank() int {
	for i, candidate := range forwardChain {
		if candidate == s {
			return i
		}
	}
	return -1
}

type Type string

const (
	TypeAuto                 Type = "auto"
	TypeHabitation           Type = "habitation"
	TypeSante                Type = "sante"
	TypeVie                  Type = "vie"
	TypeResponsabiliteCivile Type = "responsabilite_civile"
)

func Types() []Type {
	return []Type{TypeAuto, TypeHabitation, TypeSante, TypeVie, TypeResponsabiliteCivile}
}

func (t Type) Valid() bool {
	for _, candidate := range Types() {
		if candidate == t {
			return true
		}
	}
	return false
}

type EventType string

const (
	EventCreation     EventType = "creation"
	EventAssignment   EventType = "assignment"
	EventStatusChange EventType = "status_change"
	EventDocument     EventType = "document"
	EventComment      EventType = "comment"
	EventExpertise    EventType = "expertise"
	EventValidation   EventType = "validation"
	EventPayment      EventType = "payment"
	EventRejection    EventType = "rejection"
	EventClosure      EventType = "closure"
)

// User is the identity view embedded in claims.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Role      string
	Phone     *string
	Avatar    *string
	CreatedAt time.Time
}

// Event is one audit entry. User is nil for system entries.
type Event struct {
	ID          uuid.UUID
	Type        EventType
	Description string
	Timestamp   time.Time
	User        *User
}

type Document struct {
	ID         uuid.UUID
	Name       string
	Type       string
	URL        string
	UploadedBy User
	UploadedAt time.Time
}

type ExpertiseStatus string

const (
	ExpertisePlanifie ExpertiseStatus = "planifie"
	ExpertiseEnCours  ExpertiseStatus = "en_cours"
	ExpertiseTermine  ExpertiseStatus = "termine"
)

func ExpertiseStatuses() []ExpertiseStatus {
	return []ExpertiseStatus{ExpertisePlanifie, ExpertiseEnCours, ExpertiseTermine}
}

type Expertise struct {
	ID              uuid.UUID
	ExpertID        uuid.UUID
	ClaimID         uuid.UUID
	Status          ExpertiseStatus
	ScheduledDate   *time.Time
	CompletedDate   *time.Time
	Report          *string
	EstimatedAmount *decimal.Decimal
	CreatedAt       time.Time
}

// Participant is a user annotated with the part they play on a claim.
type Participant struct {
	User  User
	Label string
}

const (
	LabelDeclarant     = "Déclarant"
	LabelManager       = "Gestionnaire"
	LabelExpert        = "Expert"
	LabelMedicalExpert = "Médecin expert"
)

// Claim is the aggregate root. Events are stored newest first.
type Claim struct {
	ID              uuid.UUID
	Number          string
	PolicyNumber    string
	Type            Type
	Status          Status
	IncidentDate    time.Time
	DeclarationDate time.Time
	Location        string
	Description     string
	EstimatedAmount *decimal.Decimal
	ApprovedAmount  *decimal.Decimal
	PaidAmount      *decimal.Decimal
	RejectionReason *string
	ApprovedAt      *time.Time
	Declarant       User
	Manager         *User
	Expert          *User
	MedicalExpert   *User
	Documents       []Document
	Events          []Event
	Expertise       *Expertise
	Steps           []ProcessStep
	CurrentStepID   StepID
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Draft is the input for a new claim.
type Draft struct {
	PolicyNumber    string
	Type            Type
	IncidentDate    time.Time
	DeclarationDate time.Time
	Location        string
	Description     string
	EstimatedAmount *decimal.Decimal
	Declarant       User
}

// NewClaim builds an ouvert claim with step one started at now.
func NewClaim(id uuid.UUID, number string, draft Draft, now time.Time) Claim {
	declared := draft.DeclarationDate
	if declared.IsZero() {
		declared = now
	}
	return Claim{
		ID:              id,
		Number:          number,
		PolicyNumber:    draft.PolicyNumber,
		Type:            draft.Type,
		Status:          StatusOuvert,
		IncidentDate:    draft.IncidentDate,
		DeclarationDate: declared,
		Location:        draft.Location,
		Description:     draft.Description,
		EstimatedAmount: cloneDecimal(draft.EstimatedAmount),
		Declarant:       draft.Declarant,
		Events:          []Event{},
		Documents:       []Document{},
		Steps:           NewSteps(now),
		CurrentStepID:   StepDeclaration,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Participants returns declarant, manager, expert and medical expert in that order.
func (c Claim) Participants() []Participant {
	out := []Participant{{User: c.Declarant, Label: LabelDeclarant}}
	if c.Manager != nil {
		out = append(out, Participant{User: *c.Manager, Label: LabelManager})
	}
	if c.Expert != nil {
		out = append(out, Participant{User: *c.Expert, Label: LabelExpert})
	}
	if c.MedicalExpert != nil {
		out = append(out, Participant{User: *c.MedicalExpert, Label: LabelMedicalExpert})
	}
	return out
}

// PrependEvent records e as the newest entry.
func (c *Claim) PrependEvent(e Event) {
	c.Events = append([]Event{e}, c.Events...)
}

// LatestEvents returns at most limit events, newest first. limit <= 0 means all.
func (c Claim) LatestEvents(limit int) []Event {
	if limit <= 0 || limit >= len(c.Events) {
		return c.Events
	}
	return c.Events[:limit]
}

// Clone returns a deep copy so snapshot readers never share slices or pointers.
func (c Claim) Clone() Claim {
	out := c
	out.EstimatedAmount = cloneDecimal(c.EstimatedAmount)
	out.ApprovedAmount = cloneDecimal(c.ApprovedAmount)
	out.PaidAmount = cloneDecimal(c.PaidAmount)
	out.RejectionReason = clonePtr(c.RejectionReason)
	out.ApprovedAt = clonePtr(c.ApprovedAt)
	out.Manager = clonePtr(c.Manager)
	out.Expert = clonePtr(c.Expert)
	out.MedicalExpert = clonePtr(c.MedicalExpert)
	out.Documents = append([]Document(nil), c.Documents...)
	out.Events = append([]Event(nil), c.Events...)
	out.Steps = make([]ProcessStep, len(c.Steps))
	for i, s := range c.Steps {
		s.StartedAt = clonePtr(s.StartedAt)
		s.CompletedAt = clonePtr(s.CompletedAt)
		out.Steps[i] = s
	}
	if c.Expertise != nil {
		exp := *c.Expertise
		exp.ScheduledDate = clonePtr(exp.ScheduledDate)
		exp.CompletedDate = clonePtr(exp.CompletedDate)
		exp.Report = clonePtr(exp.Report)
		exp.EstimatedAmount = cloneDecimal(exp.EstimatedAmount)
		out.Expertise = &exp
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	return clonePtr(d)
}
