package transport

import (
	"claims_portal_backend/internal/claims/domain"
)

func ToUserRef(u domain.User) UserRef {
	return UserRef{
		ID:     u.ID.String(),
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Phone:  u.Phone,
		Avatar: u.Avatar,
	}
}

func toUserRefPtr(u *domain.User) *UserRef {
	if u == nil {
		return nil
	}
	ref := ToUserRef(*u)
	return &ref
}

func ToEventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:          e.ID.String(),
		Type:        string(e.Type),
		Description: e.Description,
		Timestamp:   e.Timestamp,
		User:        toUserRefPtr(e.User),
	}
}

func ToEventResponses(events []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, ToEventResponse(e))
	}
	return out
}

func ToClaimSummary(c domain.Claim) ClaimSummaryResponse {
	return ClaimSummaryResponse{
		ClaimNumber:     c.Number,
		PolicyNumber:    c.PolicyNumber,
		Type:            string(c.Type),
		Status:          string(c.Status),
		CurrentStepID:   string(c.CurrentStepID),
		IncidentDate:    c.IncidentDate,
		DeclarationDate: c.DeclarationDate,
		Location:        c.Location,
		EstimatedAmount: c.EstimatedAmount,
		Declarant:       ToUserRef(c.Declarant),
		UpdatedAt:       c.UpdatedAt,
	}
}

func ToClaimResponse(c domain.Claim) ClaimResponse {
	resp := ClaimResponse{
		ID:              c.ID.String(),
		ClaimNumber:     c.Number,
		PolicyNumber:    c.PolicyNumber,
		Type:            string(c.Type),
		Status:          string(c.Status),
		IncidentDate:    c.IncidentDate,
		DeclarationDate: c.DeclarationDate,
		Location:        c.Location,
		Description:     c.Description,
		EstimatedAmount: c.EstimatedAmount,
		ApprovedAmount:  c.ApprovedAmount,
		PaidAmount:      c.PaidAmount,
		RejectionReason: c.RejectionReason,
		ApprovedAt:      c.ApprovedAt,
		Declarant:       ToUserRef(c.Declarant),
		Manager:         toUserRefPtr(c.Manager),
		Expert:          toUserRefPtr(c.Expert),
		MedicalExpert:   toUserRefPtr(c.MedicalExpert),
		Participants:    make([]ParticipantResponse, 0, 4),
		Documents:       make([]DocumentResponse, 0, len(c.Documents)),
		Events:          ToEventResponses(c.Events),
		ProcessSteps:    make([]StepResponse, 0, len(c.Steps)),
		CurrentStepID:   string(c.CurrentStepID),
		Version:         c.Version,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	for _, p := range c.Participants() {
		resp.Participants = append(resp.Participants, ParticipantResponse{User: ToUserRef(p.User), Label: p.Label})
	}
	for _, d := range c.Documents {
		resp.Documents = append(resp.Documents, DocumentResponse{
			ID:         d.ID.String(),
			Name:       d.Name,
			Type:       d.Type,
			URL:        d.URL,
			UploadedBy: ToUserRef(d.UploadedBy),
			UploadedAt: d.UploadedAt,
		})
	}
	for _, s := range c.Steps {
		resp.ProcessSteps = append(resp.ProcessSteps, StepResponse{
			ID:              string(s.ID),
			Name:            s.Name,
			Description:     s.Description,
			RequiredActions: s.RequiredActions,
			Status:          string(s.Status),
			StartedAt:       s.StartedAt,
			CompletedAt:     s.CompletedAt,
		})
	}
	if x := c.Expertise; x != nil {
		resp.Expertise = &ExpertiseResponse{
			ID:              x.ID.String(),
			ExpertID:        x.ExpertID.String(),
			Status:          string(x.Status),
			ScheduledDate:   x.ScheduledDate,
			CompletedDate:   x.CompletedDate,
			Report:          x.Report,
			EstimatedAmount: x.EstimatedAmount,
			CreatedAt:       x.CreatedAt,
		}
	}
	return resp
}

func ToConformityResponse(c domain.Conformity) ConformityResponse {
	resp := ConformityResponse{ClaimNumber: c.ClaimNumber, Late: c.Late, Checks: make([]CheckResponse, 0, len(c.Checks))}
	for _, check := range c.Checks {
		item := CheckResponse{
			Name:        string(check.Name),
			LimitDays:   check.LimitDays,
			ElapsedDays: check.ElapsedDays,
			Status:      string(check.Status),
		}
		if !check.From.IsZero() {
			from := check.From
			item.From = &from
		}
		resp.Checks = append(resp.Checks, item)
	}
	return resp
}
