package workflow

import "claims_portal_backend/internal/claims/domain"

const (
	PermClaimsCreate      = "claims.create"
	PermClaimsEdit        = "claims.edit"
	PermClaimsInstruction = "claims.instruction"
	PermClaimsValidate    = "claims.validate"
	PermClaimsReject      = "claims.reject"
	PermClaimsAssign      = "claims.assign"
	PermExpertDesignate   = "expert.designate"
	PermOfferPrepare      = "offer.prepare"
	PermExpertiseCreate   = "expertise.create"
	PermExpertiseEdit     = "expertise.edit"
	PermPaymentsCreate    = "payments.create"
	PermDocumentsUpload   = "documents.upload"
	PermReportUpload      = "report.upload"
	PermDocumentsOwn      = "documents.upload.own"
)

// Permission sets per operation. Holding any one of them is enough; the
// wildcard is resolved by the registry.
var (
	createPermissions    = []string{PermClaimsCreate, PermClaimsEdit}
	rejectPermissions    = []string{PermClaimsReject}
	commentPermissions   = []string{PermClaimsEdit, PermClaimsInstruction, PermClaimsValidate}
	estimatedPermissions = []string{PermClaimsEdit, PermOfferPrepare}
	approvedPermissions  = []string{PermClaimsValidate}
	paidPermissions      = []string{PermPaymentsCreate}
	documentPermissions  = []string{PermDocumentsUpload}
	expertisePermissions = []string{PermExpertiseCreate, PermExpertiseEdit}
)

// Expert-side permissions only count on claims where the holder is the
// assigned expert.
var (
	expertEstimatedPermissions = []string{PermExpertiseEdit}
	expertDocumentPermissions  = []string{PermReportUpload}
)

func stepPermissions(id domain.StepID) []string {
	switch id {
	case domain.StepValidation:
		return []string{PermClaimsEdit, PermClaimsValidate}
	case domain.StepPaiement:
		return []string{PermClaimsEdit, PermPaymentsCreate}
	default:
		return []string{PermClaimsEdit, PermClaimsInstruction}
	}
}

func statusPermissions(target domain.Status) []string {
	switch target {
	case domain.StatusEnAnalyse, domain.StatusEnExpertise:
		return []string{PermClaimsEdit}
	case domain.StatusEnValidation, domain.StatusApprouve:
		return []string{PermClaimsValidate}
	case domain.StatusPaye:
		return []string{PermPaymentsCreate}
	case domain.StatusClos:
		return []string{PermClaimsEdit, PermClaimsValidate}
	case domain.StatusRejete:
		return rejectPermissions
	default:
		return nil
	}
}

func assignPermissions(role domain.AssignmentRole) []string {
	if role == domain.AssignManager {
		return []string{PermClaimsAssign}
	}
	return []string{PermExpertDesignate, PermClaimsAssign}
}

// ExpertisePermissions is the gate shared with the expertise manager.
func ExpertisePermissions() []string {
	return append([]string(nil), expertisePermissions...)
}

func hasAny(a Actor, permissions []string) bool {
	if a == nil {
		return false
	}
	for _, p := range permissions {
		if a.HasPermission(p) {
			return true
		}
	}
	return false
}

// CanStartOrComplete reports whether a may drive the given step.
func CanStartOrComplete(a Actor, id domain.StepID) bool {
	return hasAny(a, stepPermissions(id))
}

// CanChangeStatus reports whether a may move a claim to target.
func CanChangeStatus(a Actor, target domain.Status) bool {
	return hasAny(a, statusPermissions(target))
}

// IsAssignedExpert reports whether a is the expert assigned to c.
func IsAssignedExpert(a Actor, c domain.Claim) bool {
	return a != nil && c.Expert != nil && c.Expert.ID == a.UserID()
}
