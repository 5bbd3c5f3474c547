package services

import (
	"context"
	"log"
	"sync"

	"pulse-reports/internal/models"
)

// ProgressSink accepts generation progress events. The orchestrator pushes
// into it without expecting acknowledgement or backpressure.
type ProgressSink interface {
	Publish(event models.ProgressEvent)
}

// ProgressHub fans generation progress events out to websocket subscribers
// and tracks cancellation handles for in-flight generations. Events for a
// report with no subscribers are dropped; the persisted report status is
// the source of truth, the live channel is best effort.
type ProgressHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan models.ProgressEvent]struct{}
	cancels     map[string]context.CancelFunc
}

// NewProgressHub creates an empty progress hub
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subscribers: make(map[string]map[chan models.ProgressEvent]struct{}),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Subscribe registers a listener for a report's progress events
func (h *ProgressHub) Subscribe(reportID string) chan models.ProgressEvent {
	ch := make(chan models.ProgressEvent, 16)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[reportID] == nil {
		h.subscribers[reportID] = make(map[chan models.ProgressEvent]struct{})
	}
	h.subscribers[reportID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (h *ProgressHub) Unsubscribe(reportID string, ch chan models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[reportID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.subscribers, reportID)
	}
}

// Publish delivers an event to every subscriber of the report. Slow
// subscribers have the event dropped rather than blocking the generation
// goroutine.
func (h *ProgressHub) Publish(event models.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.ReportID] {
		select {
		case ch <- event:
		default:
			log.Printf("WARNING: Dropping progress event for report %s, subscriber not keeping up", event.ReportID)
		}
	}
}

// RegisterCancel stores the cancel handle for an in-flight generation
func (h *ProgressHub) RegisterCancel(reportID string, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancels[reportID] = cancel
}

// ClearCancel drops the cancel handle once generation finishes
func (h *ProgressHub) ClearCancel(reportID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cancels, reportID)
}

// Cancel cancels an in-flight generation. Returns false when no generation
// is registered for the report.
func (h *ProgressHub) Cancel(reportID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	cancel, ok := h.cancels[reportID]
	if !ok {
		return false
	}
	cancel()
	delete(h.cancels, reportID)
	return true
}
