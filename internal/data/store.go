// Package data owns the lead and campaign collections of the dashboard.
//
// All writes go through Store; every commit is derived from the state
// current at commit time, so operations interleaving around a backend call
// never lose each other's updates.
package data

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkbird/api/internal/state"
	"linkbird/api/internal/store"
)

const storeName = "data"

type LeadRepository interface {
	FetchLeads(context.Context) ([]store.Lead, error)
	CreateLead(context.Context, store.Lead) (store.Lead, error)
	UpdateLeadStatus(context.Context, string, store.LeadStatus, time.Time) error
}

type CampaignRepository interface {
	FetchCampaigns(context.Context) ([]store.Campaign, error)
	CreateCampaign(context.Context, store.Campaign) (store.Campaign, error)
}

type Repository interface {
	LeadRepository
	CampaignRepository
}

type IDSource interface {
	NewID() string
}

type Recorder interface {
	ObserveOp(store, op string, started time.Time, err error)
}

// State is the observable value of the store. Slices are replaced, never
// modified in place; readers must treat them as read-only.
type State struct {
	Leads     []store.Lead     `json:"leads"`
	Campaigns []store.Campaign `json:"campaigns"`
	Loading   bool             `json:"loading"`
	Err       *Error           `json:"error,omitempty"`

	inflight     int
	leadsGen     uint64
	campaignsGen uint64
}

func (st State) begin() State {
	st.inflight++
	st.Loading = true
	st.Err = nil
	return st
}

func (st State) end() State {
	if st.inflight > 0 {
		st.inflight--
	}
	st.Loading = st.inflight > 0
	return st
}

type NewLead struct {
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	Company      string           `json:"company"`
	CampaignID   string           `json:"campaignId"`
	CampaignName string           `json:"campaignName"`
	Status       store.LeadStatus `json:"status"`
	Phone        *string          `json:"phone,omitempty"`
	Position     *string          `json:"position,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

type NewCampaign struct {
	Name            string               `json:"name"`
	Status          store.CampaignStatus `json:"status"`
	TotalLeads      int                  `json:"totalLeads"`
	SuccessfulLeads int                  `json:"successfulLeads"`
	ResponseRate    float64              `json:"responseRate"`
}

type Store struct {
	state     *state.Store[State]
	leads     LeadRepository
	campaigns CampaignRepository
	ids       IDSource
	now       func() time.Time
	logger    *zap.Logger
	recorder  Recorder

	dashMu      sync.Mutex
	dashVersion uint64
	dashValid   bool
	dash        Dashboard
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Store) { s.recorder = recorder }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(repo Repository, ids IDSource, opts ...Option) *Store {
	s := &Store{
		state: state.New(State{
			Leads:     []store.Lead{},
			Campaigns: []store.Campaign{},
		}),
		leads:     repo,
		campaigns: repo,
		ids:       ids,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) observe(op string, started time.Time, err error) {
	if s.recorder != nil {
		s.recorder.ObserveOp(storeName, op, started, err)
	}
}

// rejected records a call refused before reaching the backend. Like every
// call it starts by clearing the previous error.
func (s *Store) rejected(op string, started time.Time, err error) {
	s.state.Update(func(st State) State {
		st.Err = nil
		return st
	})
	s.observe(op, started, err)
}

func (s *Store) State() State {
	return s.state.Get()
}

// Subscribe notifies fn after every committed transition.
func (s *Store) Subscribe(fn func(State)) func() {
	return s.state.Subscribe(fn)
}

// SubscribeLeads notifies fn only when the lead collection is replaced.
func (s *Store) SubscribeLeads(fn func([]store.Lead)) func() {
	return state.Select(s.state, func(st State) []store.Lead { return st.Leads }, sameSlice[store.Lead], fn)
}

// SubscribeCampaigns notifies fn only when the campaign collection is replaced.
func (s *Store) SubscribeCampaigns(fn func([]store.Campaign)) func() {
	return state.Select(s.state, func(st State) []store.Campaign { return st.Campaigns }, sameSlice[store.Campaign], fn)
}

func (s *Store) Listeners() int {
	return s.state.Listeners()
}

func (s *Store) FetchLeads(ctx context.Context) error {
	const op = "fetch_leads"
	started := time.Now()
	var gen uint64
	s.state.Update(func(st State) State {
		st = st.begin()
		st.leadsGen++
		gen = st.leadsGen
		return st
	})

	leads, err := s.leads.FetchLeads(ctx)

	var failure *Error
	stale := false
	s.state.Update(func(st State) State {
		st = st.end()
		stale = st.leadsGen != gen
		if stale {
			return st
		}
		if err != nil {
			failure = newError(FetchFailed, op, "Failed to fetch leads", err)
			st.Err = failure
			return st
		}
		st.Leads = leads
		return st
	})
	s.observe(op, started, err)

	switch {
	case stale:
		s.logger.Debug("stale lead fetch dropped", zap.Uint64("generation", gen))
		if err != nil {
			return fmt.Errorf("fetch leads: %w", err)
		}
		return nil
	case failure != nil:
		s.logger.Warn("fetch leads failed", zap.Error(err))
		return failure
	}
	s.logger.Info("leads fetched", zap.Int("count", len(leads)))
	return nil
}

func (s *Store) FetchCampaigns(ctx context.Context) error {
	const op = "fetch_campaigns"
	started := time.Now()
	var gen uint64
	s.state.Update(func(st State) State {
		st = st.begin()
		st.campaignsGen++
		gen = st.campaignsGen
		return st
	})

	campaigns, err := s.campaigns.FetchCampaigns(ctx)

	var failure *Error
	stale := false
	s.state.Update(func(st State) State {
		st = st.end()
		stale = st.campaignsGen != gen
		if stale {
			return st
		}
		if err != nil {
			failure = newError(FetchFailed, op, "Failed to fetch campaigns", err)
			st.Err = failure
			return st
		}
		st.Campaigns = campaigns
		return st
	})
	s.observe(op, started, err)

	switch {
	case stale:
		s.logger.Debug("stale campaign fetch dropped", zap.Uint64("generation", gen))
		if err != nil {
			return fmt.Errorf("fetch campaigns: %w", err)
		}
		return nil
	case failure != nil:
		s.logger.Warn("fetch campaigns failed", zap.Error(err))
		return failure
	}
	s.logger.Info("campaigns fetched", zap.Int("count", len(campaigns)))
	return nil
}

// AddLead stamps id and timestamps and appends the lead once the backend
// accepts it. An empty CampaignName is filled from the loaded campaign.
func (s *Store) AddLead(ctx context.Context, input NewLead) (store.Lead, error) {
	const op = "add_lead"
	started := time.Now()

	status := input.Status
	if status == "" {
		status = store.LeadPending
	}
	if !status.Valid() {
		err := newError(ValidationFailed, op, fmt.Sprintf("unknown lead status %q", input.Status), nil)
		s.rejected(op, started, err)
		return store.Lead{}, err
	}
	campaignName := input.CampaignName
	if campaignName == "" {
		if campaign, ok := s.CampaignByID(input.CampaignID); ok {
			campaignName = campaign.Name
		}
	}

	now := s.now()
	lead := store.Lead{
		ID:           s.ids.NewID(),
		Name:         input.Name,
		Email:        input.Email,
		Company:      input.Company,
		CampaignID:   input.CampaignID,
		CampaignName: campaignName,
		Status:       status,
		LastContact:  now,
		Phone:        input.Phone,
		Position:     input.Position,
		Notes:        input.Notes,
		CreatedAt:    now,
	}

	s.state.Update(State.begin)
	created, err := s.leads.CreateLead(ctx, lead)

	var failure *Error
	s.state.Update(func(st State) State {
		st = st.end()
		if err != nil {
			failure = newError(CreateFailed, op, "Failed to create lead", err)
			st.Err = failure
			return st
		}
		st.Leads = appendCopy(st.Leads, created)
		return st
	})
	s.observe(op, started, err)

	if failure != nil {
		s.logger.Warn("create lead failed", zap.Error(err))
		return store.Lead{}, failure
	}
	s.logger.Info("lead created", zap.String("lead_id", created.ID), zap.String("campaign_id", created.CampaignID))
	return created, nil
}

func (s *Store) AddCampaign(ctx context.Context, input NewCampaign) (store.Campaign, error) {
	const op = "add_campaign"
	started := time.Now()

	status := input.Status
	if status == "" {
		status = store.CampaignDraft
	}
	if !status.Valid() {
		err := newError(ValidationFailed, op, fmt.Sprintf("unknown campaign status %q", input.Status), nil)
		s.rejected(op, started, err)
		return store.Campaign{}, err
	}

	now := s.now()
	campaign := store.Campaign{
		ID:              s.ids.NewID(),
		Name:            input.Name,
		Status:          status,
		TotalLeads:      input.TotalLeads,
		SuccessfulLeads: input.SuccessfulLeads,
		ResponseRate:    input.ResponseRate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.state.Update(State.begin)
	created, err := s.campaigns.CreateCampaign(ctx, campaign)

	var failure *Error
	s.state.Update(func(st State) State {
		st = st.end()
		if err != nil {
			failure = newError(CreateFailed, op, "Failed to create campaign", err)
			st.Err = failure
			return st
		}
		st.Campaigns = appendCopy(st.Campaigns, created)
		return st
	})
	s.observe(op, started, err)

	if failure != nil {
		s.logger.Warn("create campaign failed", zap.Error(err))
		return store.Campaign{}, failure
	}
	s.logger.Info("campaign created", zap.String("campaign_id", created.ID))
	return created, nil
}

// UpdateLeadStatus sets status and refreshes lastContact. An id the backend
// does not know leaves the collection untouched and returns an error that
// matches ErrNotFound; State.Err is not set in that case.
func (s *Store) UpdateLeadStatus(ctx context.Context, id string, status store.LeadStatus) error {
	const op = "update_lead_status"
	started := time.Now()
	if !status.Valid() {
		err := newError(ValidationFailed, op, fmt.Sprintf("unknown lead status %q", status), nil)
		s.rejected(op, started, err)
		return err
	}

	s.state.Update(State.begin)
	at := s.now()
	err := s.leads.UpdateLeadStatus(ctx, id, status, at)

	var failure *Error
	s.state.Update(func(st State) State {
		st = st.end()
		switch {
		case errors.Is(err, store.ErrNotFound):
			failure = newError(NotFound, op, fmt.Sprintf("lead %s not found", id), err)
			return st
		case err != nil:
			failure = newError(UpdateFailed, op, "Failed to update lead status", err)
			st.Err = failure
			return st
		}
		next := make([]store.Lead, len(st.Leads))
		for i, lead := range st.Leads {
			if lead.ID == id {
				lead.Status = status
				lead.LastContact = at
			}
			next[i] = lead
		}
		st.Leads = next
		return st
	})
	s.observe(op, started, err)

	if failure != nil {
		if failure.Kind == NotFound {
			s.logger.Info("status update for unknown lead", zap.String("lead_id", id))
		} else {
			s.logger.Warn("update lead status failed", zap.String("lead_id", id), zap.Error(err))
		}
		return failure
	}
	s.logger.Info("lead status updated", zap.String("lead_id", id), zap.String("status", string(status)))
	return nil
}

// LeadByID reads the committed collection; it never fetches.
func (s *Store) LeadByID(id string) (store.Lead, bool) {
	for _, lead := range s.state.Get().Leads {
		if lead.ID == id {
			return lead, true
		}
	}
	return store.Lead{}, false
}

// CampaignByID reads the committed collection; it never fetches.
func (s *Store) CampaignByID(id string) (store.Campaign, bool) {
	for _, campaign := range s.state.Get().Campaigns {
		if campaign.ID == id {
			return campaign, true
		}
	}
	return store.Campaign{}, false
}

func (s *Store) Leads(filter LeadFilter) []store.Lead {
	return FilterLeads(s.state.Get().Leads, filter)
}

func (s *Store) Campaigns(filter CampaignFilter) []store.Campaign {
	return FilterCampaigns(s.state.Get().Campaigns, filter)
}

// Dashboard is recomputed at most once per committed state version.
func (s *Store) Dashboard() Dashboard {
	st, version := s.state.Snapshot()
	s.dashMu.Lock()
	defer s.dashMu.Unlock()
	if s.dashValid && s.dashVersion == version {
		return s.dash
	}
	s.dash = BuildDashboard(st.Leads, st.Campaigns)
	s.dashVersion = version
	s.dashValid = true
	return s.dash
}

func appendCopy[T any](items []T, item T) []T {
	next := make([]T, len(items), len(items)+1)
	copy(next, items)
	return append(next, item)
}

func sameSlice[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
