package transport

import (
	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/platform/validator"
)

// RegisterValidations adds the claim enum tags used by the request DTOs.
func RegisterValidations(val *validator.Validator) error {
	tags := map[string][]string{
		"claimtype":       values(domain.Types()),
		"claimstatus":     values(domain.Statuses()),
		"stepid":          values(domain.StepIDs()),
		"expertisestatus": values(domain.ExpertiseStatuses()),
		"assignmentrole": {
			string(domain.AssignManager),
			string(domain.AssignExpert),
			string(domain.AssignMedicalExpert),
		},
	}
	for tag, allowed := range tags {
		if err := val.RegisterOneOf(tag, allowed...); err != nil {
			return err
		}
	}
	return nil
}

func values[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
