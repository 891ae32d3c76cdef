// Package audit records every validation decision the service makes.
// Patient identifiers are masked before an event is stored, so the audit
// trail carries no direct PII.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/savegress/vaxguard/internal/config"
	"github.com/savegress/vaxguard/internal/validation"
	"github.com/savegress/vaxguard/pkg/models"
)

// Event is one recorded validation decision.
type Event struct {
	ID              string                  `json:"id"`
	Recorded        time.Time               `json:"recorded"`
	RequestID       string                  `json:"requestId,omitempty"`
	SourceIP        string                  `json:"sourceIp,omitempty"`
	MaskedPatientID string                  `json:"patientId"`
	State           string                  `json:"state,omitempty"`
	SchoolYear      string                  `json:"schoolYear,omitempty"`
	Age             *int                    `json:"age,omitempty"`
	Mode            string                  `json:"mode,omitempty"`
	Status          models.ComplianceStatus `json:"status"`
	Batch           bool                    `json:"batch,omitempty"`
	DurationMillis  int64                   `json:"durationMillis,omitempty"`
}

// Logger buffers validation events and stores them in memory. Recording is
// asynchronous so the validation path never blocks on the audit trail.
type Logger struct {
	config  *config.AuditConfig
	events  map[string]*Event
	order   []string
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	eventCh chan *Event
}

// NewLogger creates an audit logger.
func NewLogger(cfg *config.AuditConfig) *Logger {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1000
	}
	return &Logger{
		config:  cfg,
		events:  make(map[string]*Event),
		stopCh:  make(chan struct{}),
		eventCh: make(chan *Event, buffer),
	}
}

// Start launches the event consumer.
func (l *Logger) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	go l.processEvents(ctx)
	return nil
}

// Stop stops the audit logger.
func (l *Logger) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		close(l.stopCh)
		l.running = false
	}
}

func (l *Logger) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case event := <-l.eventCh:
			l.mu.Lock()
			l.events[event.ID] = event
			l.order = append(l.order, event.ID)
			l.mu.Unlock()
		}
	}
}

// ValidationLogRequest carries the parameters of one validation decision.
type ValidationLogRequest struct {
	RequestID  string
	SourceIP   string
	PatientID  string
	State      string
	SchoolYear string
	Age        *int
	Mode       string
	Status     models.ComplianceStatus
	Batch      bool
	Duration   time.Duration
}

// LogValidation records a validation decision. The patient ID is masked
// before the event leaves this call.
func (l *Logger) LogValidation(ctx context.Context, req *ValidationLogRequest) *Event {
	if !l.config.Enabled {
		return nil
	}

	event := &Event{
		ID:              uuid.New().String(),
		Recorded:        time.Now().UTC(),
		RequestID:       req.RequestID,
		SourceIP:        req.SourceIP,
		MaskedPatientID: validation.MaskPatientID(req.PatientID),
		State:           req.State,
		SchoolYear:      req.SchoolYear,
		Age:             req.Age,
		Mode:            req.Mode,
		Status:          req.Status,
		Batch:           req.Batch,
		DurationMillis:  req.Duration.Milliseconds(),
	}

	l.eventCh <- event
	return event
}

// GetEvent retrieves an audit event by ID.
func (l *Logger) GetEvent(id string) (*Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	event, ok := l.events[id]
	return event, ok
}

// EventFilter defines filters for event queries.
type EventFilter struct {
	State     string
	Status    models.ComplianceStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// GetEvents retrieves audit events matching a filter, oldest first.
func (l *Logger) GetEvents(filter EventFilter) []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var results []*Event
	for _, id := range l.order {
		event := l.events[id]
		if !l.matchesFilter(event, filter) {
			continue
		}
		results = append(results, event)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results
}

func (l *Logger) matchesFilter(event *Event, filter EventFilter) bool {
	if filter.State != "" && event.State != filter.State {
		return false
	}
	if filter.Status != "" && event.Status != filter.Status {
		return false
	}
	if filter.StartDate != nil && event.Recorded.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && event.Recorded.After(*filter.EndDate) {
		return false
	}
	return true
}

// Stats summarizes the recorded events.
type Stats struct {
	TotalEvents int            `json:"total_events"`
	ByStatus    map[string]int `json:"by_status"`
	ByState     map[string]int `json:"by_state"`
	BatchEvents int            `json:"batch_events"`
}

// GetStats returns audit statistics.
func (l *Logger) GetStats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		ByStatus: make(map[string]int),
		ByState:  make(map[string]int),
	}

	for _, event := range l.events {
		stats.TotalEvents++
		stats.ByStatus[string(event.Status)]++
		if event.State != "" {
			stats.ByState[event.State]++
		}
		if event.Batch {
			stats.BatchEvents++
		}
	}

	return stats
}
