package search

import "linkbird/api/internal/store"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultLead     ResultType = "lead"
	ResultCampaign ResultType = "campaign"
)

func (t ResultType) Valid() bool {
	return t == "" || t == ResultLead || t == ResultCampaign
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	Status     string     `json:"status"`
	CampaignID string     `json:"campaignId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Status     string     // empty or "All" = any status
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push records into a search index. Indexing is an upsert by id.
type Indexer interface {
	IndexLeads(leads []LeadRecord) error
	IndexCampaigns(campaigns []CampaignRecord) error
}

// Index is a remote search backend.
type Index interface {
	Searcher
	Indexer
}

// LeadRecord is the data we index for a lead.
type LeadRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Company      string `json:"company"`
	CampaignID   string `json:"campaignId"`
	CampaignName string `json:"campaignName"`
	Status       string `json:"status"`
}

// CampaignRecord is the data we index for a campaign.
type CampaignRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

const defaultLimit = 20

// scope reports which types a query covers. A status that only exists for
// one type narrows an untyped query to that type.
func scope(q Query) (leads, campaigns bool) {
	leads = q.FilterType == "" || q.FilterType == ResultLead
	campaigns = q.FilterType == "" || q.FilterType == ResultCampaign
	if q.FilterType != "" || q.Status == "" || q.Status == "All" {
		return leads, campaigns
	}
	leads = store.LeadStatus(q.Status).Valid()
	campaigns = store.CampaignStatus(q.Status).Valid()
	if !leads && !campaigns {
		// let the lead parser report the bad status
		leads = true
	}
	return leads, campaigns
}

func page(results []Result, q Query) []Result {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if q.Offset >= len(results) {
		return []Result{}
	}
	results = results[q.Offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
