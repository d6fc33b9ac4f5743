// Package dashboard aggregates claim figures for management views.
package dashboard

import (
	"math"
	"time"

	"claims_portal_backend/internal/claims/domain"

	"github.com/shopspring/decimal"
)

// monthsShown is the number of months in the declaration trend, current month included.
const monthsShown = 6

type Summary struct {
	Total              int                   `json:"total"`
	ByStatus           map[domain.Status]int `json:"byStatus"`
	ByType             map[domain.Type]int   `json:"byType"`
	ApprovalRate       float64               `json:"approvalRate"`
	RejectionRate      float64               `json:"rejectionRate"`
	AverageClosingDays float64               `json:"averageClosingDays"`
	EstimatedTotal     decimal.Decimal       `json:"estimatedTotal"`
	ApprovedTotal      decimal.Decimal       `json:"approvedTotal"`
	PaidTotal          decimal.Decimal       `json:"paidTotal"`
	Overdue            int                   `json:"overdue"`
	Monthly            []MonthlyCount        `json:"monthly"`
	GeneratedAt        time.Time             `json:"generatedAt"`
}

type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Compute builds the summary of claims at now. Rates are percentages of all
// claims with one decimal.
func Compute(claims []domain.Claim, now time.Time) Summary {
	s := Summary{
		Total:          len(claims),
		ByStatus:       make(map[domain.Status]int, len(domain.Statuses())),
		ByType:         make(map[domain.Type]int, len(domain.Types())),
		EstimatedTotal: decimal.Zero,
		ApprovedTotal:  decimal.Zero,
		PaidTotal:      decimal.Zero,
		Monthly:        monthBuckets(now),
		GeneratedAt:    now,
	}
	for _, st := range domain.Statuses() {
		s.ByStatus[st] = 0
	}
	for _, t := range domain.Types() {
		s.ByType[t] = 0
	}

	var approved, rejected, closed int
	var closingDays float64
	for _, c := range claims {
		s.ByStatus[c.Status]++
		s.ByType[c.Type]++

		switch c.Status {
		case domain.StatusApprouve, domain.StatusPaye:
			approved++
		case domain.StatusClos:
			approved++
			closed++
			closingDays += closedAt(c).Sub(c.DeclarationDate).Hours() / 24
		case domain.StatusRejete:
			rejected++
		}

		if c.EstimatedAmount != nil {
			s.EstimatedTotal = s.EstimatedTotal.Add(*c.EstimatedAmount)
		}
		if c.ApprovedAmount != nil {
			s.ApprovedTotal = s.ApprovedTotal.Add(*c.ApprovedAmount)
		}
		if c.PaidAmount != nil {
			s.PaidTotal = s.PaidTotal.Add(*c.PaidAmount)
		}

		if domain.EvaluateConformity(c, now).Late {
			s.Overdue++
		}
		countMonth(s.Monthly, c.DeclarationDate)
	}

	if s.Total > 0 {
		s.ApprovalRate = percent(approved, s.Total)
		s.RejectionRate = percent(rejected, s.Total)
	}
	if closed > 0 {
		s.AverageClosingDays = round1(closingDays / float64(closed))
	}
	return s
}

// closedAt is the time of the latest closure event, or the last update when
// the history carries none.
func closedAt(c domain.Claim) time.Time {
	for _, e := range c.Events {
		if e.Type == domain.EventClosure {
			return e.Timestamp
		}
	}
	return c.UpdatedAt
}

func monthBuckets(now time.Time) []MonthlyCount {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]MonthlyCount, monthsShown)
	for i := range out {
		out[i].Month = first.AddDate(0, i-monthsShown+1, 0).Format("2006-01")
	}
	return out
}

func countMonth(buckets []MonthlyCount, at time.Time) {
	key := at.UTC().Format("2006-01")
	for i := range buckets {
		if buckets[i].Month == key {
			buckets[i].Count++
			return
		}
	}
}

func percent(part, total int) float64 {
	return round1(float64(part) * 100 / float64(total))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
