package data

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"linkbird/api/internal/store"
)

const dashboardPreview = 5

type LeadFilter struct {
	Search string
	// nil matches every status
	Status *store.LeadStatus
}

type CampaignFilter struct {
	Search string
	Status *store.CampaignStatus
}

// ParseLeadStatus reads a status filter value; "" and "All" mean no filter.
func ParseLeadStatus(value string) (*store.LeadStatus, error) {
	if value == "" || value == "All" {
		return nil, nil
	}
	status := store.LeadStatus(value)
	if !status.Valid() {
		return nil, newError(ValidationFailed, "parse_status", fmt.Sprintf("unknown lead status %q", value), nil)
	}
	return &status, nil
}

func ParseCampaignStatus(value string) (*store.CampaignStatus, error) {
	if value == "" || value == "All" {
		return nil, nil
	}
	status := store.CampaignStatus(value)
	if !status.Valid() {
		return nil, newError(ValidationFailed, "parse_status", fmt.Sprintf("unknown campaign status %q", value), nil)
	}
	return &status, nil
}

type matcher struct {
	caser cases.Caser
	term  string
}

func newMatcher(search string) *matcher {
	m := &matcher{caser: cases.Fold()}
	m.term = m.caser.String(strings.TrimSpace(search))
	return m
}

func (m *matcher) match(fields ...string) bool {
	if m.term == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(m.caser.String(field), m.term) {
			return true
		}
	}
	return false
}

// FilterLeads keeps collection order. The result never aliases leads.
func FilterLeads(leads []store.Lead, filter LeadFilter) []store.Lead {
	m := newMatcher(filter.Search)
	out := make([]store.Lead, 0, len(leads))
	for _, lead := range leads {
		if filter.Status != nil && lead.Status != *filter.Status {
			continue
		}
		if !m.match(lead.Name, lead.Email, lead.Company, lead.CampaignName) {
			continue
		}
		out = append(out, lead)
	}
	return out
}

func FilterCampaigns(campaigns []store.Campaign, filter CampaignFilter) []store.Campaign {
	m := newMatcher(filter.Search)
	out := make([]store.Campaign, 0, len(campaigns))
	for _, campaign := range campaigns {
		if filter.Status != nil && campaign.Status != *filter.Status {
			continue
		}
		if !m.match(campaign.Name) {
			continue
		}
		out = append(out, campaign)
	}
	return out
}

type LeadSummary struct {
	Total          int `json:"total"`
	Converted      int `json:"converted"`
	ConversionRate int `json:"conversionRate"`
}

func SummarizeLeads(leads []store.Lead) LeadSummary {
	summary := LeadSummary{Total: len(leads)}
	for _, lead := range leads {
		if lead.Status == store.LeadConverted {
			summary.Converted++
		}
	}
	if summary.Total > 0 {
		summary.ConversionRate = int(math.Round(float64(summary.Converted) / float64(summary.Total) * 100))
	}
	return summary
}

type CampaignSummary struct {
	Total               int     `json:"total"`
	Active              int     `json:"active"`
	TotalLeads          int     `json:"totalLeads"`
	AverageResponseRate float64 `json:"averageResponseRate"`
}

func SummarizeCampaigns(campaigns []store.Campaign) CampaignSummary {
	summary := CampaignSummary{Total: len(campaigns)}
	var rates float64
	for _, campaign := range campaigns {
		if campaign.Status == store.CampaignActive {
			summary.Active++
		}
		summary.TotalLeads += campaign.TotalLeads
		rates += campaign.ResponseRate
	}
	if summary.Total > 0 {
		summary.AverageResponseRate = rates / float64(summary.Total)
	}
	return summary
}

type Dashboard struct {
	TotalLeads      int              `json:"totalLeads"`
	ActiveCampaigns int              `json:"activeCampaigns"`
	ConversionRate  int              `json:"conversionRate"`
	ConvertedLeads  int              `json:"convertedLeads"`
	// first five in collection order
	RecentLeads     []store.Lead     `json:"recentLeads"`
	TopCampaigns    []store.Campaign `json:"topCampaigns"`
	Campaigns       CampaignSummary  `json:"campaigns"`
}

func BuildDashboard(leads []store.Lead, campaigns []store.Campaign) Dashboard {
	leadSummary := SummarizeLeads(leads)
	campaignSummary := SummarizeCampaigns(campaigns)
	return Dashboard{
		TotalLeads:      leadSummary.Total,
		ActiveCampaigns: campaignSummary.Active,
		ConversionRate:  leadSummary.ConversionRate,
		ConvertedLeads:  leadSummary.Converted,
		RecentLeads:     head(leads, dashboardPreview),
		TopCampaigns:    head(campaigns, dashboardPreview),
		Campaigns:       campaignSummary,
	}
}

func head[T any](items []T, n int) []T {
	if len(items) < n {
		n = len(items)
	}
	out := make([]T, n)
	copy(out, items)
	return out
}

type StatusEvent struct {
	Status store.LeadStatus `json:"status"`
	At     time.Time        `json:"at"`
	Note   string           `json:"note"`
}

// StatusHistory reconstructs the funnel steps a lead has passed. Only the
// creation and last contact times are recorded, so every step after the
// first carries lastContact.
func StatusHistory(lead store.Lead) []StatusEvent {
	history := []StatusEvent{{Status: store.LeadPending, At: lead.CreatedAt, Note: "Lead added to campaign"}}
	rank := statusRank(lead.Status)
	if rank >= 1 {
		history = append(history, StatusEvent{Status: store.LeadContacted, At: lead.LastContact, Note: "Initial outreach sent"})
	}
	if rank >= 2 {
		history = append(history, StatusEvent{Status: store.LeadResponded, At: lead.LastContact, Note: "Lead responded to outreach"})
	}
	if rank >= 3 {
		history = append(history, StatusEvent{Status: store.LeadConverted, At: lead.LastContact, Note: "Lead successfully converted"})
	}
	return history
}

func statusRank(status store.LeadStatus) int {
	for i, s := range store.LeadStatuses {
		if s == status {
			return i
		}
	}
	return 0
}

// FormatRate renders a response rate with one decimal, e.g. "26.7%".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate)
}
