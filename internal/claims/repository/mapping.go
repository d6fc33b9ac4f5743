package repository

import (
	"fmt"
	"sort"
	"time"

	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/claims/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store status values, in workflow order.
const (
	storeDeclaration = "declaration"
	storeInstruction = "instruction"
	storeExpertise   = "expertise"
	storeOffre       = "offre"
	storeAcceptation = "acceptation"
	storePaiement    = "paiement"
	storeCloture     = "cloture"
	storeRejete      = "rejete"
)

var statusFromStore = map[string]domain.Status{
	storeDeclaration: domain.StatusOuvert,
	storeInstruction: domain.StatusEnAnalyse,
	storeExpertise:   domain.StatusEnExpertise,
	storeOffre:       domain.StatusEnValidation,
	storeAcceptation: domain.StatusApprouve,
	storePaiement:    domain.StatusPaye,
	storeCloture:     domain.StatusClos,
	storeRejete:      domain.StatusRejete,
}

var statusToStore = invert(statusFromStore)

var typeFromStore = map[string]domain.Type{
	"automobile":            domain.TypeAuto,
	"habitation":            domain.TypeHabitation,
	"sante":                 domain.TypeSante,
	"vie":                   domain.TypeVie,
	"responsabilite_civile": domain.TypeResponsabiliteCivile,
	"autre":                 domain.TypeAuto,
}

var typeToStore = map[domain.Type]string{
	domain.TypeAuto:                 "automobile",
	domain.TypeHabitation:           "habitation",
	domain.TypeSante:                "sante",
	domain.TypeVie:                  "vie",
	domain.TypeResponsabiliteCivile: "responsabilite_civile",
}

func invert[K, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// StatusFromStore translates a stored status value.
func StatusFromStore(value string) (domain.Status, error) {
	s, ok := statusFromStore[value]
	if !ok {
		return "", fmt.Errorf("unknown store status %q", value)
	}
	return s, nil
}

func StatusToStore(status domain.Status) (string, error) {
	v, ok := statusToStore[status]
	if !ok {
		return "", fmt.Errorf("unknown status %q", status)
	}
	return v, nil
}

// TypeFromStore translates a stored type. autre falls back to auto.
func TypeFromStore(value string) (domain.Type, error) {
	t, ok := typeFromStore[value]
	if !ok {
		return "", fmt.Errorf("unknown store type %q", value)
	}
	return t, nil
}

func TypeToStore(t domain.Type) (string, error) {
	v, ok := typeToStore[t]
	if !ok {
		return "", fmt.Errorf("unknown claim type %q", t)
	}
	return v, nil
}

// FormatClaimNumber renders CLM-<year>-<seq> with a five digit sequence.
func FormatClaimNumber(year int, seq int64) string {
	return fmt.Sprintf("CLM-%d-%05d", year, seq)
}

// Wire rows, one per table.

type ClaimRow struct {
	ID              uuid.UUID
	ClaimNumber     string
	PolicyNumber    string
	DeclarantID     *uuid.UUID
	GestionnaireID  *uuid.UUID
	ExpertID        *uuid.UUID
	MedecinID       *uuid.UUID
	IncidentDate    time.Time
	DeclarationDate time.Time
	Location        string
	Description     string
	AmountClaimed   decimal.NullDecimal
	AmountApproved  decimal.NullDecimal
	AmountPaid      decimal.NullDecimal
	Status          string
	Type            string
	RejectionReason *string
	ApprovedAt      *time.Time
	CurrentStepID   string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ProfileRow struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Phone     *string
	Avatar    *string
	Roles     []string
	CreatedAt time.Time
}

type StepRow struct {
	ClaimID     uuid.UUID
	StepID      string
	Position    int16
	Status      string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type DocumentRow struct {
	ID         uuid.UUID
	ClaimID    uuid.UUID
	Name       string
	Type       string
	UploadedBy uuid.UUID
	URL        string
	CreatedAt  time.Time
}

type EventRow struct {
	ID          uuid.UUID
	ClaimID     uuid.UUID
	EventType   string
	Description string
	CreatedAt   time.Time
	UserID      *uuid.UUID
}

type ExpertiseRow struct {
	ID              uuid.UUID
	ClaimID         uuid.UUID
	ExpertID        uuid.UUID
	Status          string
	ScheduledDate   *time.Time
	CompletedDate   *time.Time
	Report          *string
	EstimatedAmount decimal.NullDecimal
	CreatedAt       time.Time
}

// Dataset is the result of one batched read.
type Dataset struct {
	Claims     []ClaimRow
	Profiles   []ProfileRow
	Steps      []StepRow
	Documents  []DocumentRow
	Events     []EventRow
	Expertises []ExpertiseRow
}

// MappingError names the claim a malformed row belongs to.
type MappingError struct {
	ClaimNumber string
	Err         error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("claim %s: %v", e.ClaimNumber, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// mapDataset converts a batch into domain claims, newest first. Claims whose
// rows are malformed are left out and reported.
func mapDataset(ds Dataset) ([]domain.Claim, []error) {
	profiles := make(map[uuid.UUID]domain.User, len(ds.Profiles))
	for _, p := range ds.Profiles {
		profiles[p.ID] = toUser(p)
	}

	steps := make(map[uuid.UUID][]StepRow)
	for _, s := range ds.Steps {
		steps[s.ClaimID] = append(steps[s.ClaimID], s)
	}
	docs := make(map[uuid.UUID][]DocumentRow)
	for _, d := range ds.Documents {
		docs[d.ClaimID] = append(docs[d.ClaimID], d)
	}
	events := make(map[uuid.UUID][]EventRow)
	for _, e := range ds.Events {
		events[e.ClaimID] = append(events[e.ClaimID], e)
	}
	expertises := make(map[uuid.UUID]ExpertiseRow)
	for _, x := range ds.Expertises {
		expertises[x.ClaimID] = x
	}

	claims := make([]domain.Claim, 0, len(ds.Claims))
	var problems []error
	for _, row := range ds.Claims {
		c, err := toClaim(row, profiles, steps[row.ID], docs[row.ID], events[row.ID])
		if err == nil {
			if x, ok := expertises[row.ID]; ok {
				c.Expertise, err = toExpertise(x)
			}
		}
		if err != nil {
			problems = append(problems, &MappingError{ClaimNumber: row.ClaimNumber, Err: err})
			continue
		}
		claims = append(claims, c)
	}

	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].CreatedAt.After(claims[j].CreatedAt)
	})
	return claims, problems
}

func toUser(p ProfileRow) domain.User {
	return domain.User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      permissions.PrimaryRole(p.Roles),
		Phone:     p.Phone,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
	}
}

func lookupUser(profiles map[uuid.UUID]domain.User, id *uuid.UUID, field string) (*domain.User, error) {
	if id == nil {
		return nil, nil
	}
	u, ok := profiles[*id]
	if !ok {
		return nil, fmt.Errorf("%s %s has no profile", field, id)
	}
	return &u, nil
}

func toClaim(row ClaimRow, profiles map[uuid.UUID]domain.User, stepRows []StepRow, docRows []DocumentRow, eventRows []EventRow) (domain.Claim, error) {
	if row.DeclarantID == nil {
		return domain.Claim{}, fmt.Errorf("declarant_id is missing")
	}
	status, err := StatusFromStore(row.Status)
	if err != nil {
		return domain.Claim{}, err
	}
	claimType, err := TypeFromStore(row.Type)
	if err != nil {
		return domain.Claim{}, err
	}
	declarant, err := lookupUser(profiles, row.DeclarantID, "declarant")
	if err != nil {
		return domain.Claim{}, err
	}
	manager, err := lookupUser(profiles, row.GestionnaireID, "gestionnaire")
	if err != nil {
		return domain.Claim{}, err
	}
	expert, err := lookupUser(profiles, row.ExpertID, "expert")
	if err != nil {
		return domain.Claim{}, err
	}
	medecin, err := lookupUser(profiles, row.MedecinID, "medecin")
	if err != nil {
		return domain.Claim{}, err
	}
	steps, err := toSteps(stepRows)
	if err != nil {
		return domain.Claim{}, err
	}
	current := domain.StepID(row.CurrentStepID)
	if err := domain.ValidateSteps(steps, current); err != nil {
		return domain.Claim{}, err
	}

	c := domain.Claim{
		ID:              row.ID,
		Number:          row.ClaimNumber,
		PolicyNumber:    row.PolicyNumber,
		Type:            claimType,
		Status:          status,
		IncidentDate:    row.IncidentDate,
		DeclarationDate: row.DeclarationDate,
		Location:        row.Location,
		Description:     row.Description,
		EstimatedAmount: fromNullDecimal(row.AmountClaimed),
		ApprovedAmount:  fromNullDecimal(row.AmountApproved),
		PaidAmount:      fromNullDecimal(row.AmountPaid),
		RejectionReason: row.RejectionReason,
		ApprovedAt:      row.ApprovedAt,
		Declarant:       *declarant,
		Manager:         manager,
		Expert:          expert,
		MedicalExpert:   medecin,
		Steps:           steps,
		CurrentStepID:   current,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Documents:       make([]domain.Document, 0, len(docRows)),
		Events:          make([]domain.Event, 0, len(eventRows)),
	}

	for _, d := range docRows {
		uploader, err := lookupUser(profiles, &d.UploadedBy, "uploaded_by")
		if err != nil {
			return domain.Claim{}, err
		}
		c.Documents = append(c.Documents, domain.Document{
			ID:         d.ID,
			Name:       d.Name,
			Type:       d.Type,
			URL:        d.URL,
			UploadedBy: *uploader,
			UploadedAt: d.CreatedAt,
		})
	}

	sort.SliceStable(eventRows, func(i, j int) bool {
		return eventRows[i].CreatedAt.After(eventRows[j].CreatedAt)
	})
	for _, e := range eventRows {
		// A deleted author leaves the entry in place without a user.
		actor, _ := lookupUser(profiles, e.UserID, "user_id")
		c.Events = append(c.Events, domain.Event{
			ID:          e.ID,
			Type:        domain.EventType(e.EventType),
			Description: e.Description,
			Timestamp:   e.CreatedAt,
			User:        actor,
		})
	}
	return c, nil
}

func toSteps(rows []StepRow) ([]domain.ProcessStep, error) {
	if len(rows) != len(domain.StepIDs()) {
		return nil, fmt.Errorf("expected %d process steps, got %d", len(domain.StepIDs()), len(rows))
	}
	sorted := append([]StepRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	steps := make([]domain.ProcessStep, 0, len(sorted))
	for _, r := range sorted {
		step, err := domain.HydrateStep(domain.StepID(r.StepID), domain.StepStatus(r.Status), r.StartedAt, r.CompletedAt)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func toExpertise(row ExpertiseRow) (*domain.Expertise, error) {
	status := domain.ExpertiseStatus(row.Status)
	switch status {
	case domain.ExpertisePlanifie, domain.ExpertiseEnCours, domain.ExpertiseTermine:
	default:
		return nil, fmt.Errorf("unknown expertise status %q", row.Status)
	}
	return &domain.Expertise{
		ID:              row.ID,
		ExpertID:        row.ExpertID,
		ClaimID:         row.ClaimID,
		Status:          status,
		ScheduledDate:   row.ScheduledDate,
		CompletedDate:   row.CompletedDate,
		Report:          row.Report,
		EstimatedAmount: fromNullDecimal(row.EstimatedAmount),
		CreatedAt:       row.CreatedAt,
	}, nil
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func userID(u *domain.User) *uuid.UUID {
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}

// Domain to wire.

func claimRow(c domain.Claim) (ClaimRow, error) {
	status, err := StatusToStore(c.Status)
	if err != nil {
		return ClaimRow{}, err
	}
	claimType, err := TypeToStore(c.Type)
	if err != nil {
		return ClaimRow{}, err
	}
	declarant := c.Declarant.ID
	return ClaimRow{
		ID:              c.ID,
		ClaimNumber:     c.Number,
		PolicyNumber:    c.PolicyNumber,
		DeclarantID:     &declarant,
		GestionnaireID:  userID(c.Manager),
		ExpertID:        userID(c.Expert),
		MedecinID:       userID(c.MedicalExpert),
		IncidentDate:    c.IncidentDate,
		DeclarationDate: c.DeclarationDate,
		Location:        c.Location,
		Description:     c.Description,
		AmountClaimed:   toNullDecimal(c.EstimatedAmount),
		AmountApproved:  toNullDecimal(c.ApprovedAmount),
		AmountPaid:      toNullDecimal(c.PaidAmount),
		Status:          status,
		Type:            claimType,
		RejectionReason: c.RejectionReason,
		ApprovedAt:      c.ApprovedAt,
		CurrentStepID:   string(c.CurrentStepID),
		Version:         c.Version,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}, nil
}

func stepRows(c domain.Claim) []StepRow {
	rows := make([]StepRow, len(c.Steps))
	for i, s := range c.Steps {
		rows[i] = StepRow{
			ClaimID:     c.ID,
			StepID:      string(s.ID),
			Position:    int16(i + 1),
			Status:      string(s.Status),
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
		}
	}
	return rows
}

func eventRow(claimID uuid.UUID, e domain.Event) EventRow {
	return EventRow{
		ID:          e.ID,
		ClaimID:     claimID,
		EventType:   string(e.Type),
		Description: e.Description,
		CreatedAt:   e.Timestamp,
		UserID:      userID(e.User),
	}
}

func documentRow(claimID uuid.UUID, d domain.Document) DocumentRow {
	return DocumentRow{
		ID:         d.ID,
		ClaimID:    claimID,
		Name:       d.Name,
		Type:       d.Type,
		UploadedBy: d.UploadedBy.ID,
		URL:        d.URL,
		CreatedAt:  d.UploadedAt,
	}
}

func expertiseRow(x domain.Expertise) ExpertiseRow {
	return ExpertiseRow{
		ID:              x.ID,
		ClaimID:         x.ClaimID,
		ExpertID:        x.ExpertID,
		Status:          string(x.Status),
		ScheduledDate:   x.ScheduledDate,
		CompletedDate:   x.CompletedDate,
		Report:          x.Report,
		EstimatedAmount: toNullDecimal(x.EstimatedAmount),
		CreatedAt:       x.CreatedAt,
	}
}
