// Package nav holds UI selection state. It stores identifiers only; records
// are resolved through the data store whenever they are read.
package nav

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"linkbird/api/internal/data"
	"linkbird/api/internal/state"
	"linkbird/api/internal/store"
)

var ErrUnknownPage = errors.New("unknown page")

type Page string

const (
	PageDashboard Page = "dashboard"
	PageLeads     Page = "leads"
	PageCampaigns Page = "campaigns"
	PageSettings  Page = "settings"
)

var Pages = []Page{PageDashboard, PageLeads, PageCampaigns, PageSettings}

func (p Page) Valid() bool {
	switch p {
	case PageDashboard, PageLeads, PageCampaigns, PageSettings:
		return true
	default:
		return false
	}
}

type State struct {
	SidebarCollapsed bool    `json:"sidebarCollapsed"`
	CurrentPage      Page    `json:"currentPage"`
	SelectedLeadID   *string `json:"selectedLeadId"`
	LeadSheetOpen    bool    `json:"leadSheetOpen"`
}

type LeadLookup interface {
	LeadByID(id string) (store.Lead, bool)
}

type CampaignLookup interface {
	CampaignByID(id string) (store.Campaign, bool)
}

type Store struct {
	state  *state.Store[State]
	logger *zap.Logger
}

func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:  state.New(State{CurrentPage: PageLeads}),
		logger: logger,
	}
}

func (s *Store) State() State {
	return s.state.Get()
}

func (s *Store) Subscribe(fn func(State)) func() {
	return s.state.Subscribe(fn)
}

func (s *Store) Listeners() int {
	return s.state.Listeners()
}

func (s *Store) ToggleSidebar() State {
	return s.state.Update(func(st State) State {
		st.SidebarCollapsed = !st.SidebarCollapsed
		return st
	})
}

func (s *Store) SetSidebarCollapsed(collapsed bool) State {
	return s.state.Update(func(st State) State {
		st.SidebarCollapsed = collapsed
		return st
	})
}

func (s *Store) SetCurrentPage(page Page) (State, error) {
	if !page.Valid() {
		return s.state.Get(), fmt.Errorf("set page %q: %w", page, ErrUnknownPage)
	}
	next := s.state.Update(func(st State) State {
		st.CurrentPage = page
		return st
	})
	s.logger.Debug("page changed", zap.String("page", string(page)))
	return next, nil
}

// OpenLeadSheet selects id and opens the sheet in one transition. The id is
// not checked against the data store.
func (s *Store) OpenLeadSheet(id string) State {
	return s.state.Update(func(st State) State {
		st.SelectedLeadID = &id
		st.LeadSheetOpen = true
		return st
	})
}

func (s *Store) CloseLeadSheet() State {
	return s.state.Update(func(st State) State {
		st.SelectedLeadID = nil
		st.LeadSheetOpen = false
		return st
	})
}

// SelectedLead resolves the selection against the committed lead
// collection. The nav lock is released before leads is consulted.
func (s *Store) SelectedLead(leads LeadLookup) (store.Lead, bool) {
	id := s.state.Get().SelectedLeadID
	if id == nil {
		return store.Lead{}, false
	}
	return leads.LeadByID(*id)
}

type LeadSheet struct {
	Open     bool               `json:"open"`
	Lead     *store.Lead        `json:"lead"`
	Campaign *store.Campaign    `json:"campaign"`
	History  []data.StatusEvent `json:"history"`
}

// LeadSheet assembles the detail view for the selected lead. A selection
// whose lead is no longer loaded yields a sheet without a lead.
func (s *Store) LeadSheet(leads LeadLookup, campaigns CampaignLookup) LeadSheet {
	st := s.state.Get()
	sheet := LeadSheet{Open: st.LeadSheetOpen, History: []data.StatusEvent{}}
	if st.SelectedLeadID == nil {
		return sheet
	}
	lead, ok := leads.LeadByID(*st.SelectedLeadID)
	if !ok {
		return sheet
	}
	sheet.Lead = &lead
	sheet.History = data.StatusHistory(lead)
	if campaign, ok := campaigns.CampaignByID(lead.CampaignID); ok {
		sheet.Campaign = &campaign
	}
	return sheet
}
