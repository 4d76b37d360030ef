package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Latency is the simulated round trip of the mock backend.
type Latency struct {
	Fetch  time.Duration
	Write  time.Duration
	Status time.Duration
}

var DefaultLatency = Latency{
	Fetch:  500 * time.Millisecond,
	Write:  500 * time.Millisecond,
	Status: 300 * time.Millisecond,
}

// MemoryRepository is the stand-in for the remote lead API. It starts from
// the seed set and keeps every record it accepts.
type MemoryRepository struct {
	latency Latency

	mu        sync.Mutex
	leads     []Lead
	campaigns []Campaign
	// consulted before every operation; a non-nil error aborts it
	fail func(op string) error
}

func NewMemoryRepository(latency Latency) *MemoryRepository {
	return &MemoryRepository{
		latency:   latency,
		leads:     SeedLeads(),
		campaigns: SeedCampaigns(),
	}
}

func (r *MemoryRepository) wait(ctx context.Context, op string, d time.Duration) error {
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	r.mu.Lock()
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		if err := fail(op); err != nil {
			return err
		}
	}
	return nil
}

// SetFailure installs or clears the failure hook.
func (r *MemoryRepository) SetFailure(fn func(op string) error) {
	r.mu.Lock()
	r.fail = fn
	r.mu.Unlock()
}

func (r *MemoryRepository) FetchLeads(ctx context.Context) ([]Lead, error) {
	if err := r.wait(ctx, "fetch_leads", r.latency.Fetch); err != nil {
		return nil, fmt.Errorf("fetch leads: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Lead(nil), r.leads...), nil
}

func (r *MemoryRepository) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
	if err := r.wait(ctx, "create_lead", r.latency.Write); err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, lead)
	return lead, nil
}

func (r *MemoryRepository) UpdateLeadStatus(ctx context.Context, id string, status LeadStatus, lastContact time.Time) error {
	if err := r.wait(ctx, "update_lead_status", r.latency.Status); err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.leads {
		if r.leads[i].ID == id {
			r.leads[i].Status = status
			r.leads[i].LastContact = lastContact
			return nil
		}
	}
	return fmt.Errorf("update lead status %s: %w", id, ErrNotFound)
}

func (r *MemoryRepository) FetchCampaigns(ctx context.Context) ([]Campaign, error) {
	if err := r.wait(ctx, "fetch_campaigns", r.latency.Fetch); err != nil {
		return nil, fmt.Errorf("fetch campaigns: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Campaign(nil), r.campaigns...), nil
}

func (r *MemoryRepository) CreateCampaign(ctx context.Context, campaign Campaign) (Campaign, error) {
	if err := r.wait(ctx, "create_campaign", r.latency.Write); err != nil {
		return Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns = append(r.campaigns, campaign)
	return campaign, nil
}

func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}
