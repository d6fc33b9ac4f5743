package domain

import "github.com/google/uuid"

// Viewer is the subset of a session needed to decide read access.
type Viewer interface {
	UserID() uuid.UUID
	HasPermission(permission string) bool
}

// Audience is the part of a claim that decides who may read it. It travels
// with claim events so subscribers can filter without loading the claim.
type Audience struct {
	ClaimNumber     string
	Type            Type
	Status          Status
	DeclarantID     uuid.UUID
	ExpertID        uuid.UUID
	MedicalExpertID uuid.UUID
}

func (c Claim) Audience() Audience {
	a := Audience{
		ClaimNumber: c.Number,
		Type:        c.Type,
		Status:      c.Status,
		DeclarantID: c.Declarant.ID,
	}
	if c.Expert != nil {
		a.ExpertID = c.Expert.ID
	}
	if c.MedicalExpert != nil {
		a.MedicalExpertID = c.MedicalExpert.ID
	}
	return a
}

// CanView applies the read rules. Any matching grant is enough.
func CanView(v Viewer, a Audience) bool {
	if v == nil {
		return false
	}
	if v.HasPermission("claims.view") || v.HasPermission("claims.view.readonly") {
		return true
	}
	uid := v.UserID()
	if uid == uuid.Nil {
		return false
	}
	if v.HasPermission("claims.view.own") && a.DeclarantID == uid {
		return true
	}
	if v.HasPermission("claims.view.assigned") && a.ExpertID == uid {
		return true
	}
	if v.HasPermission("claims.view.assigned.corporel") && a.Type == TypeSante && a.MedicalExpertID == uid {
		return true
	}
	if v.HasPermission("claims.view.validated") {
		switch a.Status {
		case StatusApprouve, StatusPaye, StatusClos:
			return true
		}
	}
	return false
}

// Visible filters claims down to those v may read, keeping order.
func Visible(v Viewer, claims []Claim) []Claim {
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if CanView(v, c.Audience()) {
			out = append(out, c)
		}
	}
	return out
}
