package transport

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request DTOs
type CreateClaimRequest struct {
	PolicyNumber    string           `json:"policyNumber" validate:"required,min=3,max=64"`
	Type            string           `json:"type" validate:"required,claimtype"`
	IncidentDate    time.Time        `json:"incidentDate" validate:"required"`
	DeclarationDate *time.Time       `json:"declarationDate,omitempty" validate:"omitempty"`
	Location        string           `json:"location" validate:"max=200"`
	Description     string           `json:"description" validate:"max=4000"`
	EstimatedAmount *decimal.Decimal `json:"estimatedAmount,omitempty"`
	DeclarantID     *string          `json:"declarantId,omitempty" validate:"omitempty,uuid"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,claimstatus"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

type AssignRequest struct {
	Role   string `json:"role" validate:"required,assignmentrole"`
	UserID string `json:"userId" validate:"required,uuid"`
}

type AmountsRequest struct {
	EstimatedAmount *decimal.Decimal `json:"estimatedAmount,omitempty"`
	ApprovedAmount  *decimal.Decimal `json:"approvedAmount,omitempty"`
	PaidAmount      *decimal.Decimal `json:"paidAmount,omitempty"`
	Override        bool             `json:"override"`
}

type CommentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4000"`
}

type ExpertiseRequest struct {
	Status          string           `json:"status" validate:"required,expertisestatus"`
	ScheduledDate   *time.Time       `json:"scheduledDate,omitempty"`
	CompletedDate   *time.Time       `json:"completedDate,omitempty"`
	Report          *string          `json:"report,omitempty" validate:"omitempty,max=20000"`
	EstimatedAmount *decimal.Decimal `json:"estimatedAmount,omitempty"`
}

type UploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required,min=1,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,min=1"`
}

type AttachDocumentRequest struct {
	FileKey     string `json:"fileKey" validate:"required,max=500"`
	FileName    string `json:"fileName" validate:"required,min=1,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
}

// Response DTOs
type UserRef struct {
	ID     string  `json:"id"`
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	Role   string  `json:"role"`
	Phone  *string `json:"phone,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type ParticipantResponse struct {
	User  UserRef `json:"user"`
	Label string  `json:"label"`
}

type StepResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	RequiredActions []string   `json:"requiredActions"`
	Status          string     `json:"status"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

type EventResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	User        *UserRef  `json:"user,omitempty"`
}

type DocumentResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	URL        string    `json:"url"`
	UploadedBy UserRef   `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type ExpertiseResponse struct {
	ID              string           `json:"id"`
	ExpertID        string           `json:"expertId"`
	Status          string           `json:"status"`
	ScheduledDate   *time.Time       `json:"scheduledDate,omitempty"`
	CompletedDate   *time.Time       `json:"completedDate,omitempty"`
	Report          *string          `json:"report,omitempty"`
	EstimatedAmount *decimal.Decimal `json:"estimatedAmount,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type ClaimSummaryResponse struct {
	ClaimNumber     string           `json:"claimNumber"`
	PolicyNumber    string           `json:"policyNumber"`
	Type            string           `json:"type"`
	Status          string           `json:"status"`
	CurrentStepID   string           `json:"currentStepId"`
	IncidentDate    time.Time        `json:"incidentDate"`
	DeclarationDate time.Time        `json:"declarationDate"`
	Location        string           `json:"location"`
	EstimatedAmount *decimal.Decimal `json:"estimatedAmount,omitempty"`
	Declarant       UserRef          `json:"declarant"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type ClaimResponse struct {
	ID              string                `json:"id"`
	ClaimNumber     string                `json:"claimNumber"`
	PolicyNumber    string                `json:"policyNumber"`
	Type            string                `json:"type"`
	Status          string                `json:"status"`
	IncidentDate    time.Time             `json:"incidentDate"`
	DeclarationDate time.Time             `json:"declarationDate"`
	Location        string                `json:"location"`
	Description     string                `json:"description"`
	EstimatedAmount *decimal.Decimal      `json:"estimatedAmount,omitempty"`
	ApprovedAmount  *decimal.Decimal      `json:"approvedAmount,omitempty"`
	PaidAmount      *decimal.Decimal      `json:"paidAmount,omitempty"`
	RejectionReason *string               `json:"rejectionReason,omitempty"`
	ApprovedAt      *time.Time            `json:"approvedAt,omitempty"`
	Declarant       UserRef               `json:"declarant"`
	Manager         *UserRef              `json:"manager,omitempty"`
	Expert          *UserRef              `json:"expert,omitempty"`
	MedicalExpert   *UserRef              `json:"medicalExpert,omitempty"`
	Participants    []ParticipantResponse `json:"participants"`
	Documents       []DocumentResponse    `json:"documents"`
	Events          []EventResponse       `json:"events"`
	Expertise       *ExpertiseResponse    `json:"expertise,omitempty"`
	ProcessSteps    []StepResponse        `json:"processSteps"`
	CurrentStepID   string                `json:"currentStepId"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type ClaimListResponse struct {
	Items []ClaimSummaryResponse `json:"items"`
	Total int                    `json:"total"`
}

type EventListResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

type CheckResponse struct {
	Name        string     `json:"name"`
	LimitDays   int        `json:"limitDays"`
	ElapsedDays int        `json:"elapsedDays"`
	Status      string     `json:"status"`
	From        *time.Time `json:"from,omitempty"`
}

type ConformityResponse struct {
	ClaimNumber string          `json:"claimNumber"`
	Late        bool            `json:"late"`
	Checks      []CheckResponse `json:"checks"`
}

type UploadURLResponse struct {
	UploadURL string    `json:"uploadUrl"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type RefreshResponse struct {
	Total int `json:"total"`
}
