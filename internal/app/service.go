package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"linkbird/api/internal/data"
	"linkbird/api/internal/metrics"
	"linkbird/api/internal/nav"
	"linkbird/api/internal/search"
	"linkbird/api/internal/session"
	"linkbird/api/internal/store"
)

type Pinger interface {
	Ping(context.Context) error
}

type Dependencies struct {
	Session *session.Store
	Data    *data.Store
	Nav     *nav.Store
	Search  *search.Service
	Metrics *metrics.Metrics
	// named readiness checks reported by /api/ready
	Checks map[string]Pinger
	Logger *zap.Logger
}

// Service wires the three stores together and is the only thing the HTTP
// layer talks to.
type Service struct {
	session *session.Store
	data    *data.Store
	nav     *nav.Store
	search  *search.Service
	metrics *metrics.Metrics
	checks  map[string]Pinger
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	mu    sync.Mutex
	stops []func()
}

func New(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	if deps.Metrics != nil {
		listeners := map[string]func() int{}
		if deps.Session != nil {
			listeners["session"] = deps.Session.Listeners
		}
		if deps.Data != nil {
			listeners["data"] = deps.Data.Listeners
		}
		if deps.Nav != nil {
			listeners["nav"] = deps.Nav.Listeners
		}
		for name, count := range listeners {
			if err := deps.Metrics.WatchListeners(name, count); err != nil {
				logger.Warn("listener gauge not registered", zap.String("store", name), zap.Error(err))
			}
		}
	}
	return &Service{
		session: deps.Session,
		data:    deps.Data,
		nav:     deps.Nav,
		search:  deps.Search,
		metrics: deps.Metrics,
		checks:  deps.Checks,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start loads the collections whenever the session becomes authenticated,
// including a session restored at startup, and keeps the search index in
// step with the data store.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stops = append(s.stops, s.session.OnAuthenticated(func(user store.User) {
		s.logger.Info("authenticated, loading data", zap.String("email", user.Email))
		s.loadInBackground()
	}))
	if s.search != nil {
		s.stops = append(s.stops, s.search.Watch(s.data))
	}
	if s.session.State().IsAuthenticated {
		s.loadInBackground()
	}
}

// Close stops background work and waits for in-flight loads.
func (s *Service) Close() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	s.cancel()
	s.loads.Wait()
	if s.search != nil {
		s.search.Wait()
	}
}

func (s *Service) loadInBackground() {
	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		if err := s.LoadData(s.ctx); err != nil {
			s.logger.Warn("initial data load failed", zap.Error(err))
		}
	}()
}

// Wait blocks until background loads started so far have finished.
func (s *Service) Wait() {
	s.loads.Wait()
}

// LoadData fetches leads and campaigns concurrently and returns the first
// failure. Both fetches run to completion even if the other fails or the
// caller goes away; each failure is also recorded on the data store.
func (s *Service) LoadData(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	g.Go(func() error { return s.data.FetchLeads(ctx) })
	g.Go(func() error { return s.data.FetchCampaigns(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	return nil
}

// Ping runs every readiness check; the map holds nil for healthy checks.
func (s *Service) Ping(ctx context.Context) map[string]error {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]error, len(names))
	var mu sync.Mutex
	var g errgroup.Group
	for _, name := range names {
		check := s.checks[name]
		g.Go(func() error {
			err := check.Ping(ctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) MetricsHandler() http.Handler {
	if s.metrics == nil {
		return http.NotFoundHandler()
	}
	return s.metrics.Handler()
}

func (s *Service) Session() session.Snapshot {
	return s.session.State()
}

func (s *Service) Authenticated() bool {
	return s.session.State().IsAuthenticated
}

func (s *Service) Login(ctx context.Context, email, password string) (session.Snapshot, error) {
	if _, err := s.session.Login(ctx, email, password); err != nil {
		return session.Snapshot{}, err
	}
	return s.session.State(), nil
}

func (s *Service) LoginWithGoogle(ctx context.Context) (session.Snapshot, error) {
	if _, err := s.session.LoginWithGoogle(ctx); err != nil {
		return session.Snapshot{}, err
	}
	return s.session.State(), nil
}

func (s *Service) Register(ctx context.Context, email, password, name string) (session.Snapshot, error) {
	if _, err := s.session.Register(ctx, email, password, name); err != nil {
		return session.Snapshot{}, err
	}
	return s.session.State(), nil
}

func (s *Service) Logout(ctx context.Context) session.Snapshot {
	s.session.Logout(ctx)
	return s.session.State()
}

type LeadList struct {
	Leads   []store.Lead `json:"leads"`
	Total   int          `json:"total"`
	Loading bool         `json:"loading"`
	Error   *data.Error  `json:"error,omitempty"`
}

func (s *Service) Leads(search, status string) (LeadList, error) {
	leadStatus, err := data.ParseLeadStatus(status)
	if err != nil {
		return LeadList{}, err
	}
	st := s.data.State()
	leads := data.FilterLeads(st.Leads, data.LeadFilter{Search: search, Status: leadStatus})
	return LeadList{Leads: leads, Total: len(leads), Loading: st.Loading, Error: st.Err}, nil
}

func (s *Service) Lead(id string) (store.Lead, error) {
	lead, ok := s.data.LeadByID(id)
	if !ok {
		return store.Lead{}, domainError(http.StatusNotFound, "NOT_FOUND", "Lead not found", map[string]any{"id": id})
	}
	return lead, nil
}

func (s *Service) AddLead(ctx context.Context, input data.NewLead) (store.Lead, error) {
	return s.data.AddLead(ctx, input)
}

func (s *Service) UpdateLeadStatus(ctx context.Context, id string, status store.LeadStatus) (store.Lead, error) {
	if err := s.data.UpdateLeadStatus(ctx, id, status); err != nil {
		return store.Lead{}, err
	}
	return s.Lead(id)
}

type CampaignList struct {
	Campaigns []store.Campaign     `json:"campaigns"`
	Total     int                  `json:"total"`
	Summary   data.CampaignSummary `json:"summary"`
	Loading   bool                 `json:"loading"`
	Error     *data.Error          `json:"error,omitempty"`
}

func (s *Service) Campaigns(search, status string) (CampaignList, error) {
	campaignStatus, err := data.ParseCampaignStatus(status)
	if err != nil {
		return CampaignList{}, err
	}
	st := s.data.State()
	campaigns := data.FilterCampaigns(st.Campaigns, data.CampaignFilter{Search: search, Status: campaignStatus})
	return CampaignList{
		Campaigns: campaigns,
		Total:     len(campaigns),
		Summary:   data.SummarizeCampaigns(st.Campaigns),
		Loading:   st.Loading,
		Error:     st.Err,
	}, nil
}

func (s *Service) Campaign(id string) (store.Campaign, error) {
	campaign, ok := s.data.CampaignByID(id)
	if !ok {
		return store.Campaign{}, domainError(http.StatusNotFound, "NOT_FOUND", "Campaign not found", map[string]any{"id": id})
	}
	return campaign, nil
}

func (s *Service) AddCampaign(ctx context.Context, input data.NewCampaign) (store.Campaign, error) {
	return s.data.AddCampaign(ctx, input)
}

type Stats struct {
	Dashboard           data.Dashboard       `json:"dashboard"`
	Leads               data.LeadSummary     `json:"leads"`
	Campaigns           data.CampaignSummary `json:"campaigns"`
	AverageResponseRate string               `json:"averageResponseRate"`
}

func (s *Service) Stats() Stats {
	dash := s.data.Dashboard()
	return Stats{
		Dashboard: dash,
		Leads: data.LeadSummary{
			Total:          dash.TotalLeads,
			Converted:      dash.ConvertedLeads,
			ConversionRate: dash.ConversionRate,
		},
		Campaigns:           dash.Campaigns,
		AverageResponseRate: data.FormatRate(dash.Campaigns.AverageResponseRate),
	}
}

func (s *Service) Search(q search.Query) (search.Response, error) {
	if !q.FilterType.Valid() {
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Unknown result type", map[string]any{"type": q.FilterType})
	}
	if s.search == nil {
		return search.NewService(nil, search.NewLocal(s.data), s.logger).Search(q)
	}
	return s.search.Search(q)
}

func (s *Service) UI() nav.State {
	return s.nav.State()
}

func (s *Service) ToggleSidebar() nav.State {
	return s.nav.ToggleSidebar()
}

func (s *Service) SetSidebarCollapsed(collapsed bool) nav.State {
	return s.nav.SetSidebarCollapsed(collapsed)
}

func (s *Service) SetCurrentPage(page nav.Page) (nav.State, error) {
	return s.nav.SetCurrentPage(page)
}

func (s *Service) OpenLeadSheet(id string) nav.State {
	return s.nav.OpenLeadSheet(id)
}

func (s *Service) CloseLeadSheet() nav.State {
	return s.nav.CloseLeadSheet()
}

func (s *Service) LeadSheet() nav.LeadSheet {
	return s.nav.LeadSheet(s.data, s.data)
}
