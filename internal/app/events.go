package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkbird/api/internal/data"
	"linkbird/api/internal/nav"
	"linkbird/api/internal/session"
)

const (
	topicSession = "session"
	topicData    = "data"
	topicUI      = "ui"
)

var allTopics = []string{topicSession, topicData, topicUI}

func parseTopics(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return allTopics, nil
	}
	seen := map[string]bool{}
	var topics []string
	for _, topic := range strings.Split(raw, ",") {
		topic = strings.TrimSpace(topic)
		switch topic {
		case topicSession, topicData, topicUI:
		default:
			return nil, fmt.Errorf("unknown topic %q", topic)
		}
		if !seen[topic] {
			seen[topic] = true
			topics = append(topics, topic)
		}
	}
	return topics, nil
}

// mailbox keeps only the newest payload per topic; a slow client skips
// intermediate states but always receives the latest one.
type mailbox struct {
	mu      sync.Mutex
	order   []string
	pending map[string]any
	ready   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{pending: map[string]any{}, ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(topic string, payload any) {
	m.mu.Lock()
	if _, queued := m.pending[topic]; !queued {
		m.order = append(m.order, topic)
	}
	m.pending[topic] = payload
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

type event struct {
	topic   string
	payload any
}

func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]event, 0, len(m.order))
	for _, topic := range m.order {
		events = append(events, event{topic: topic, payload: m.pending[topic]})
	}
	m.order = m.order[:0]
	clear(m.pending)
	return events
}

// subscribe attaches box to the store behind topic, then queues the current
// state so the client starts from a full picture.
func (s *Service) subscribe(topic string, box *mailbox) func() {
	switch topic {
	case topicSession:
		stop := s.session.Subscribe(func(snap session.Snapshot) { box.put(topic, snap) })
		box.put(topic, s.session.State())
		return stop
	case topicData:
		stop := s.data.Subscribe(func(st data.State) { box.put(topic, st) })
		box.put(topic, s.data.State())
		return stop
	case topicUI:
		stop := s.nav.Subscribe(func(st nav.State) { box.put(topic, st) })
		box.put(topic, s.nav.State())
		return stop
	}
	return func() {}
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming unsupported", nil)
		return
	}

	box := newMailbox()
	for _, topic := range topics {
		stop := s.service.subscribe(topic, box)
		s.service.metrics.SubscriberAdded(topic)
		defer func(topic string) {
			stop()
			s.service.metrics.SubscriberRemoved(topic)
		}(topic)
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-box.ready:
			for _, ev := range box.drain() {
				payload, err := json.Marshal(ev.payload)
				if err != nil {
					s.logger.Error("encode event", zap.String("topic", ev.topic), zap.Error(err))
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.topic, payload); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}
}
