package search

import (
	"fmt"

	"linkbird/api/internal/data"
	"linkbird/api/internal/store"
)

// Collections is the committed data the local searcher reads from.
type Collections interface {
	Leads(filter data.LeadFilter) []store.Lead
	Campaigns(filter data.CampaignFilter) []store.Campaign
}

// Local answers queries from the in-memory collections with the same
// substring match the lead and campaign tables use.
type Local struct {
	source Collections
}

func NewLocal(source Collections) *Local {
	return &Local{source: source}
}

func (l *Local) Healthy() bool {
	return true
}

func (l *Local) Search(q Query) ([]Result, int, error) {
	wantLeads, wantCampaigns := scope(q)
	status := q.Status
	if status == "All" {
		status = ""
	}

	var results []Result
	if wantLeads {
		leadStatus, err := data.ParseLeadStatus(status)
		if err != nil {
			return nil, 0, fmt.Errorf("search leads: %w", err)
		}
		for _, lead := range l.source.Leads(data.LeadFilter{Search: q.Text, Status: leadStatus}) {
			results = append(results, leadResult(LeadFromStore(lead)))
		}
	}
	if wantCampaigns {
		campaignStatus, err := data.ParseCampaignStatus(status)
		if err != nil {
			return nil, 0, fmt.Errorf("search campaigns: %w", err)
		}
		for _, campaign := range l.source.Campaigns(data.CampaignFilter{Search: q.Text, Status: campaignStatus}) {
			results = append(results, campaignResult(CampaignFromStore(campaign)))
		}
	}
	return page(results, q), len(results), nil
}

func leadResult(r LeadRecord) Result {
	return Result{
		Type:       ResultLead,
		ID:         r.ID,
		Title:      r.Name,
		Snippet:    r.Company + " · " + r.Email,
		Status:     r.Status,
		CampaignID: r.CampaignID,
	}
}

func campaignResult(r CampaignRecord) Result {
	return Result{
		Type:   ResultCampaign,
		ID:     r.ID,
		Title:  r.Name,
		Status: r.Status,
	}
}

func LeadFromStore(lead store.Lead) LeadRecord {
	return LeadRecord{
		ID:           lead.ID,
		Name:         lead.Name,
		Email:        lead.Email,
		Company:      lead.Company,
		CampaignID:   lead.CampaignID,
		CampaignName: lead.CampaignName,
		Status:       string(lead.Status),
	}
}

func CampaignFromStore(campaign store.Campaign) CampaignRecord {
	return CampaignRecord{
		ID:     campaign.ID,
		Name:   campaign.Name,
		Status: string(campaign.Status),
	}
}
