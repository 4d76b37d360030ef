package search

import (
	"sync"

	"go.uber.org/zap"

	"linkbird/api/internal/store"
)

// Feed publishes collection replacements.
type Feed interface {
	SubscribeLeads(fn func([]store.Lead)) func()
	SubscribeCampaigns(fn func([]store.Campaign)) func()
}

// Service is the facade that tries the remote index first and falls back to
// the local searcher.
type Service struct {
	remote Index
	local  Searcher
	logger *zap.Logger

	indexMu         sync.Mutex
	leadSeq         uint64
	leadApplied     uint64
	campaignSeq     uint64
	campaignApplied uint64
	pending         sync.WaitGroup
}

// NewService creates a search service. remote may be nil when no index is
// configured.
func NewService(remote Index, local Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{remote: remote, local: local, logger: logger}
}

func (s *Service) remoteHealthy() bool {
	return s.remote != nil && s.remote.Healthy()
}

// Search tries the remote index if healthy, otherwise the local searcher.
func (s *Service) Search(q Query) (Response, error) {
	if s.remoteHealthy() {
		results, total, err := s.remote.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "meilisearch"}, nil
		}
		s.logger.Warn("remote search failed, falling back to local", zap.Error(err))
	}

	results, total, err := s.local.Search(q)
	if err != nil {
		return Response{Results: []Result{}, Query: q.Text, Source: "local"}, err
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "local"}, nil
}

// Watch keeps the remote index in step with feed. The returned function
// stops watching.
func (s *Service) Watch(feed Feed) func() {
	stopLeads := feed.SubscribeLeads(s.IndexLeads)
	stopCampaigns := feed.SubscribeCampaigns(s.IndexCampaigns)
	return func() {
		stopLeads()
		stopCampaigns()
	}
}

// IndexLeads pushes the collection to the remote index in the background.
// A push overtaken by a newer one is skipped.
func (s *Service) IndexLeads(leads []store.Lead) {
	if !s.remoteHealthy() {
		return
	}
	records := make([]LeadRecord, len(leads))
	for i, lead := range leads {
		records[i] = LeadFromStore(lead)
	}
	s.indexMu.Lock()
	s.leadSeq++
	seq := s.leadSeq
	s.indexMu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.indexMu.Lock()
		defer s.indexMu.Unlock()
		if seq < s.leadApplied {
			return
		}
		if err := s.remote.IndexLeads(records); err != nil {
			s.logger.Warn("index leads", zap.Int("count", len(records)), zap.Error(err))
			return
		}
		s.leadApplied = seq
	}()
}

func (s *Service) IndexCampaigns(campaigns []store.Campaign) {
	if !s.remoteHealthy() {
		return
	}
	records := make([]CampaignRecord, len(campaigns))
	for i, campaign := range campaigns {
		records[i] = CampaignFromStore(campaign)
	}
	s.indexMu.Lock()
	s.campaignSeq++
	seq := s.campaignSeq
	s.indexMu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.indexMu.Lock()
		defer s.indexMu.Unlock()
		if seq < s.campaignApplied {
			return
		}
		if err := s.remote.IndexCampaigns(records); err != nil {
			s.logger.Warn("index campaigns", zap.Int("count", len(records)), zap.Error(err))
			return
		}
		s.campaignApplied = seq
	}()
}

// Wait blocks until background index pushes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
