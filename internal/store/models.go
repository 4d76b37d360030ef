package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type User struct {
	ID     string  `json:"id"`
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

type LeadStatus string

const (
	LeadPending   LeadStatus = "Pending"
	LeadContacted LeadStatus = "Contacted"
	LeadResponded LeadStatus = "Responded"
	LeadConverted LeadStatus = "Converted"
)

var LeadStatuses = []LeadStatus{LeadPending, LeadContacted, LeadResponded, LeadConverted}

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadPending, LeadContacted, LeadResponded, LeadConverted:
		return true
	default:
		return false
	}
}

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "Draft"
	CampaignActive    CampaignStatus = "Active"
	CampaignPaused    CampaignStatus = "Paused"
	CampaignCompleted CampaignStatus = "Completed"
)

var CampaignStatuses = []CampaignStatus{CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted}

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
		return true
	default:
		return false
	}
}

// Lead keeps CampaignName as the name the campaign had when the lead was
// created; renaming the campaign does not update it.
type Lead struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Company      string     `json:"company"`
	CampaignID   string     `json:"campaignId"`
	CampaignName string     `json:"campaignName"`
	Status       LeadStatus `json:"status"`
	LastContact  time.Time  `json:"lastContact"`
	Phone        *string    `json:"phone,omitempty"`
	Position     *string    `json:"position,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Campaign stores ResponseRate as curated data, independent of the lead
// counts.
type Campaign struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Status          CampaignStatus `json:"status"`
	TotalLeads      int            `json:"totalLeads"`
	SuccessfulLeads int            `json:"successfulLeads"`
	ResponseRate    float64        `json:"responseRate"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// StringPtr returns nil for an empty string.
func StringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
