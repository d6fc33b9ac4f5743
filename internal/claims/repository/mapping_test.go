package repository

import (
	"errors"
	"testing"
	"time"

	"claims_portal_backend/internal/claims/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestStatusMappingRoundTrip(t *testing.T) {
	stored := []string{"declaration", "instruction", "expertise", "offre", "acceptation", "paiement", "cloture", "rejete"}
	seen := map[domain.Status]bool{}
	for _, value := range stored {
		status, err := StatusFromStore(value)
		if err != nil {
			t.Fatalf("map %q: %v", value, err)
		}
		back, err := StatusToStore(status)
		if err != nil || back != value {
			t.Fatalf("round trip %q -> %s -> %q (%v)", value, status, back, err)
		}
		seen[status] = true
	}
	if len(seen) != len(domain.Statuses()) {
		t.Fatalf("mapping is not bijective: %v", seen)
	}
	if _, err := StatusFromStore("archive"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestTypeMapping(t *testing.T) {
	tests := []struct {
		store    string
		domain   domain.Type
		lossless bool
	}{
		{"automobile", domain.TypeAuto, true},
		{"habitation", domain.TypeHabitation, true},
		{"sante", domain.TypeSante, true},
		{"vie", domain.TypeVie, true},
		{"responsabilite_civile", domain.TypeResponsabiliteCivile, true},
		{"autre", domain.TypeAuto, false},
	}
	for _, tt := range tests {
		t.Run(tt.store, func(t *testing.T) {
			got, err := TypeFromStore(tt.store)
			if err != nil || got != tt.domain {
				t.Fatalf("expected %s, got %s (%v)", tt.domain, got, err)
			}
			back, err := TypeToStore(got)
			if err != nil {
				t.Fatalf("inverse: %v", err)
			}
			if (back == tt.store) != tt.lossless {
				t.Fatalf("round trip of %q gave %q", tt.store, back)
			}
		})
	}
}

func TestFormatClaimNumber(t *testing.T) {
	if got := FormatClaimNumber(2025, 42); got != "CLM-2025-00042" {
		t.Fatalf("unexpected claim number %s", got)
	}
}

func sampleDataset() (Dataset, uuid.UUID) {
	now := time.Date(2025, time.May, 2, 10, 0, 0, 0, time.UTC)
	declarant := uuid.New()
	claimID := uuid.New()
	steps := make([]StepRow, 0, 5)
	for i, id := range domain.StepIDs() {
		status := "pending"
		if i == 0 {
			status = "in_progress"
		}
		steps = append(steps, StepRow{ClaimID: claimID, StepID: string(id), Position: int16(i + 1), Status: status})
	}
	return Dataset{
		Claims: []ClaimRow{{
			ID: claimID, ClaimNumber: "CLM-2025-00001", PolicyNumber: "POL-1", DeclarantID: &declarant,
			IncidentDate: now, DeclarationDate: now, Status: "declaration", Type: "autre",
			AmountClaimed: decimal.NewNullDecimal(decimal.RequireFromString("1500.25")),
			CurrentStepID: "declaration", Version: 3, CreatedAt: now, UpdatedAt: now,
		}},
		Profiles: []ProfileRow{{ID: declarant, Email: "a@b.fr", Name: "Assuré", Roles: []string{"assure"}}},
		Steps:    steps,
		Events: []EventRow{
			{ID: uuid.New(), ClaimID: claimID, EventType: "comment", CreatedAt: now.Add(time.Hour), UserID: &declarant},
			{ID: uuid.New(), ClaimID: claimID, EventType: "creation", CreatedAt: now},
		},
	}, claimID
}

func TestMapDataset(t *testing.T) {
	ds, _ := sampleDataset()
	claims, problems := mapDataset(ds)
	if len(problems) != 0 || len(claims) != 1 {
		t.Fatalf("unexpected result: %d claims, problems %v", len(claims), problems)
	}
	c := claims[0]
	if c.Type != domain.TypeAuto || c.Status != domain.StatusOuvert || c.Version != 3 {
		t.Fatalf("unexpected mapping %+v", c)
	}
	if c.EstimatedAmount == nil || c.EstimatedAmount.String() != "1500.25" {
		t.Fatalf("unexpected amount %v", c.EstimatedAmount)
	}
	if c.Declarant.Role != "assure" || c.Events[0].Type != domain.EventComment || c.Events[1].User != nil {
		t.Fatalf("unexpected people or events: %+v", c.Events)
	}
}

func TestMapDatasetSkipsMalformedClaims(t *testing.T) {
	tests := []struct {
		name   string
		breakf func(*Dataset)
	}{
		{"missing declarant", func(ds *Dataset) { ds.Claims[0].DeclarantID = nil }},
		{"unknown declarant", func(ds *Dataset) { id := uuid.New(); ds.Claims[0].DeclarantID = &id }},
		{"unknown status", func(ds *Dataset) { ds.Claims[0].Status = "archive" }},
		{"missing step", func(ds *Dataset) { ds.Steps = ds.Steps[:4] }},
		{"steps out of order", func(ds *Dataset) { ds.Steps[3].Status = "completed" }},
		{"bad expertise", func(ds *Dataset) {
			ds.Expertises = []ExpertiseRow{{ClaimID: ds.Claims[0].ID, Status: "lost"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, _ := sampleDataset()
			tt.breakf(&ds)
			claims, problems := mapDataset(ds)
			if len(claims) != 0 || len(problems) != 1 {
				t.Fatalf("expected claim to be skipped, got %d claims / %v", len(claims), problems)
			}
			var mapErr *MappingError
			if !errors.As(problems[0], &mapErr) || mapErr.ClaimNumber != "CLM-2025-00001" {
				t.Fatalf("expected MappingError naming the claim, got %v", problems[0])
			}
		})
	}
}

func TestClaimRowRoundTrip(t *testing.T) {
	ds, _ := sampleDataset()
	claims, _ := mapDataset(ds)
	row, err := claimRow(claims[0])
	if err != nil {
		t.Fatalf("claimRow: %v", err)
	}
	if row.Status != "declaration" || row.Type != "automobile" || *row.DeclarantID != *ds.Claims[0].DeclarantID {
		t.Fatalf("unexpected row %+v", row)
	}
	if !row.AmountClaimed.Valid || row.AmountApproved.Valid {
		t.Fatalf("unexpected amounts %+v", row)
	}
}
