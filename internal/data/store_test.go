package data

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linkbird/api/internal/store"
	"linkbird/api/internal/util"
)

type fakeRepo struct {
	fetchLeads       func(context.Context) ([]store.Lead, error)
	createLead       func(context.Context, store.Lead) (store.Lead, error)
	updateLeadStatus func(context.Context, string, store.LeadStatus, time.Time) error
	fetchCampaigns   func(context.Context) ([]store.Campaign, error)
	createCampaign   func(context.Context, store.Campaign) (store.Campaign, error)
}

func (f *fakeRepo) FetchLeads(ctx context.Context) ([]store.Lead, error) {
	if f.fetchLeads != nil {
		return f.fetchLeads(ctx)
	}
	return []store.Lead{}, nil
}

func (f *fakeRepo) CreateLead(ctx context.Context, lead store.Lead) (store.Lead, error) {
	if f.createLead != nil {
		return f.createLead(ctx, lead)
	}
	return lead, nil
}

func (f *fakeRepo) UpdateLeadStatus(ctx context.Context, id string, status store.LeadStatus, at time.Time) error {
	if f.updateLeadStatus != nil {
		return f.updateLeadStatus(ctx, id, status, at)
	}
	return nil
}

func (f *fakeRepo) FetchCampaigns(ctx context.Context) ([]store.Campaign, error) {
	if f.fetchCampaigns != nil {
		return f.fetchCampaigns(ctx)
	}
	return []store.Campaign{}, nil
}

func (f *fakeRepo) CreateCampaign(ctx context.Context, campaign store.Campaign) (store.Campaign, error) {
	if f.createCampaign != nil {
		return f.createCampaign(ctx, campaign)
	}
	return campaign, nil
}

type recordedOp struct {
	store string
	op    string
	err   error
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (r *fakeRecorder) ObserveOp(store, op string, _ time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{store: store, op: op, err: err})
}

func newIDs(t *testing.T) *util.IDGenerator {
	t.Helper()
	ids, err := util.NewIDGenerator(1)
	require.NoError(t, err)
	return ids
}

func newMemoryStore(t *testing.T, opts ...Option) (*Store, *store.MemoryRepository) {
	t.Helper()
	repo := store.NewMemoryRepository(store.Latency{})
	return New(repo, newIDs(t), opts...), repo
}

func TestFetchReplacesCollections(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.FetchLeads(ctx))
	require.NoError(t, s.FetchCampaigns(ctx))

	st := s.State()
	require.Len(t, st.Leads, 5)
	require.Len(t, st.Campaigns, 4)
	require.False(t, st.Loading)
	require.Nil(t, st.Err)
}

func TestFetchFailureKeepsCollection(t *testing.T) {
	s, repo := newMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.FetchLeads(ctx))

	repo.SetFailure(func(op string) error {
		if op == "fetch_leads" {
			return errors.New("backend down")
		}
		return nil
	})
	err := s.FetchLeads(ctx)

	var dataErr *Error
	require.ErrorAs(t, err, &dataErr)
	require.Equal(t, FetchFailed, dataErr.Kind)
	st := s.State()
	require.Len(t, st.Leads, 5)
	require.False(t, st.Loading)
	require.NotNil(t, st.Err)
	require.Equal(t, "Failed to fetch leads", st.Err.Message)

	repo.SetFailure(nil)
	require.NoError(t, s.FetchLeads(ctx))
	require.Nil(t, s.State().Err, "a new call clears the previous error")
}

func TestSupersededFetchIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	repo := &fakeRepo{
		fetchLeads: func(context.Context) ([]store.Lead, error) {
			if calls.Add(1) == 1 {
				close(entered)
				<-release
				return []store.Lead{{ID: "old"}}, nil
			}
			return []store.Lead{{ID: "new"}}, nil
		},
	}
	s := New(repo, newIDs(t))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.FetchLeads(ctx) }()
	<-entered

	require.NoError(t, s.FetchLeads(ctx))
	require.True(t, s.State().Loading, "first fetch still in flight")
	close(release)
	require.NoError(t, <-done)

	st := s.State()
	require.Equal(t, []store.Lead{{ID: "new"}}, st.Leads)
	require.False(t, st.Loading)
}

func TestAddLeadConcurrentKeepsEveryLead(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()
	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddLead(ctx, NewLead{Name: "Lead", Email: "lead@example.com", CampaignID: "1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	leads := s.State().Leads
	require.Len(t, leads, n)
	seen := make(map[string]bool, n)
	for _, lead := range leads {
		require.False(t, seen[lead.ID], "duplicate id %s", lead.ID)
		seen[lead.ID] = true
	}
	require.False(t, s.State().Loading)
}

func TestAddLeadStampsAndDefaults(t *testing.T) {
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	s, _ := newMemoryStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, s.FetchCampaigns(ctx))

	lead, err := s.AddLead(ctx, NewLead{Name: "Ana", Email: "ana@example.com", Company: "Acme", CampaignID: "1"})
	require.NoError(t, err)
	require.NotEmpty(t, lead.ID)
	require.Equal(t, store.LeadPending, lead.Status)
	require.Equal(t, "Q1 Enterprise Outreach", lead.CampaignName)
	require.Equal(t, now, lead.CreatedAt)
	require.Equal(t, now, lead.LastContact)

	found, ok := s.LeadByID(lead.ID)
	require.True(t, ok)
	require.Equal(t, lead, found)
}

func TestAddLeadKeepsSuppliedCampaignName(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.FetchCampaigns(ctx))

	lead, err := s.AddLead(ctx, NewLead{Name: "Ana", CampaignID: "1", CampaignName: "Renamed"})
	require.NoError(t, err)
	require.Equal(t, "Renamed", lead.CampaignName)
}

func TestAddLeadRejectsUnknownStatus(t *testing.T) {
	s, _ := newMemoryStore(t)

	_, err := s.AddLead(context.Background(), NewLead{Name: "Ana", Status: "Lost"})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, s.State().Leads)
}

func TestAddLeadFailureSetsError(t *testing.T) {
	recorder := &fakeRecorder{}
	repo := &fakeRepo{
		createLead: func(context.Context, store.Lead) (store.Lead, error) {
			return store.Lead{}, errors.New("insert failed")
		},
	}
	s := New(repo, newIDs(t), WithRecorder(recorder))

	_, err := s.AddLead(context.Background(), NewLead{Name: "Ana"})
	var dataErr *Error
	require.ErrorAs(t, err, &dataErr)
	require.Equal(t, CreateFailed, dataErr.Kind)
	require.Empty(t, s.State().Leads)
	require.Equal(t, CreateFailed, s.State().Err.Kind)

	require.Len(t, recorder.ops, 1)
	require.Equal(t, "data", recorder.ops[0].store)
	require.Equal(t, "add_lead", recorder.ops[0].op)
	require.Error(t, recorder.ops[0].err)
}

func TestRejectedCallClearsPreviousError(t *testing.T) {
	s, repo := newMemoryStore(t)
	ctx := context.Background()
	repo.SetFailure(func(string) error { return errors.New("backend down") })
	require.Error(t, s.FetchLeads(ctx))
	require.NotNil(t, s.State().Err)

	_, err := s.AddLead(ctx, NewLead{Name: "Ana", Status: "Lost"})
	require.ErrorIs(t, err, ErrValidation)
	require.Nil(t, s.State().Err)

	require.Error(t, s.FetchCampaigns(ctx))
	_, err = s.AddCampaign(ctx, NewCampaign{Name: "Q3", Status: "Archived"})
	require.ErrorIs(t, err, ErrValidation)
	require.Nil(t, s.State().Err)

	require.Error(t, s.FetchLeads(ctx))
	require.ErrorIs(t, s.UpdateLeadStatus(ctx, "1", "Lost"), ErrValidation)
	require.Nil(t, s.State().Err)
}

func TestAddCampaignDefaultsToDraft(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()

	campaign, err := s.AddCampaign(ctx, NewCampaign{Name: "Spring Push"})
	require.NoError(t, err)
	require.Equal(t, store.CampaignDraft, campaign.Status)
	require.Equal(t, campaign.CreatedAt, campaign.UpdatedAt)

	found, ok := s.CampaignByID(campaign.ID)
	require.True(t, ok)
	require.Equal(t, "Spring Push", found.Name)
}

func TestUpdateLeadStatusChangesOnlyThatLead(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newMemoryStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, s.FetchLeads(ctx))
	before := s.State().Leads

	require.NoError(t, s.UpdateLeadStatus(ctx, "2", store.LeadConverted))

	after := s.State().Leads
	require.Len(t, after, len(before))
	for i := range after {
		if after[i].ID != "2" {
			require.Equal(t, before[i], after[i])
			continue
		}
		expected := before[i]
		expected.Status = store.LeadConverted
		expected.LastContact = now
		require.Equal(t, expected, after[i])
	}
	require.Equal(t, store.LeadResponded, before[1].Status, "previous snapshot untouched")
}

func TestUpdateLeadStatusUnknownID(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.FetchLeads(ctx))
	before := s.State().Leads

	err := s.UpdateLeadStatus(ctx, "missing", store.LeadContacted)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, store.ErrNotFound)

	st := s.State()
	require.Nil(t, st.Err)
	require.Equal(t, before, st.Leads)
}

func TestUpdateLeadStatusRejectsUnknownStatus(t *testing.T) {
	s, _ := newMemoryStore(t)

	err := s.UpdateLeadStatus(context.Background(), "1", "Lost")
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateLeadStatusFailure(t *testing.T) {
	repo := &fakeRepo{
		updateLeadStatus: func(context.Context, string, store.LeadStatus, time.Time) error {
			return errors.New("timeout")
		},
	}
	s := New(repo, newIDs(t))

	err := s.UpdateLeadStatus(context.Background(), "1", store.LeadContacted)
	var dataErr *Error
	require.ErrorAs(t, err, &dataErr)
	require.Equal(t, UpdateFailed, dataErr.Kind)
	require.Equal(t, UpdateFailed, s.State().Err.Kind)
}

func TestLeadByIDMissing(t *testing.T) {
	s, _ := newMemoryStore(t)

	_, ok := s.LeadByID("1")
	require.False(t, ok, "nothing fetched yet")
	_, ok = s.CampaignByID("1")
	require.False(t, ok)
}

func TestDashboardFollowsState(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.FetchLeads(ctx))
	require.NoError(t, s.FetchCampaigns(ctx))

	first := s.Dashboard()
	require.Equal(t, 5, first.TotalLeads)
	require.Equal(t, 2, first.ActiveCampaigns)
	require.Equal(t, 20, first.ConversionRate)
	require.Equal(t, first, s.Dashboard())

	_, err := s.AddLead(ctx, NewLead{Name: "Ana", CampaignID: "1", Status: store.LeadConverted})
	require.NoError(t, err)
	second := s.Dashboard()
	require.Equal(t, 6, second.TotalLeads)
	require.Equal(t, 2, second.ConvertedLeads)
	require.Len(t, second.RecentLeads, 5)
}

func TestSubscribeLeadsFiresOnCollectionChange(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()

	var fired atomic.Int32
	unsubscribe := s.SubscribeLeads(func([]store.Lead) { fired.Add(1) })
	defer unsubscribe()

	_, err := s.AddCampaign(ctx, NewCampaign{Name: "Unrelated"})
	require.NoError(t, err)
	require.Equal(t, int32(0), fired.Load())

	_, err = s.AddLead(ctx, NewLead{Name: "Ana"})
	require.NoError(t, err)
	require.Equal(t, int32(1), fired.Load())
}

func TestErrorMatchesSentinels(t *testing.T) {
	err := newError(NotFound, "update_lead_status", "lead 9 not found", store.ErrNotFound)
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrValidation))
	require.Contains(t, err.Error(), "lead 9 not found")
}
