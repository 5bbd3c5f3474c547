package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-reports/internal/models"
)

func TestProgressHubFanOut(t *testing.T) {
	hub := NewProgressHub()

	first := hub.Subscribe("r1")
	second := hub.Subscribe("r1")
	other := hub.Subscribe("r2")

	event := models.ProgressEvent{ReportID: "r1", Progress: 0.5, Status: "generating"}
	hub.Publish(event)

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)

	select {
	case unexpected := <-other:
		t.Fatalf("subscriber of r2 received event for r1: %+v", unexpected)
	default:
	}
}

func TestProgressHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewProgressHub()

	ch := hub.Subscribe("r1")
	hub.Unsubscribe("r1", ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after the last unsubscribe is a no-op
	hub.Publish(models.ProgressEvent{ReportID: "r1"})

	// Double unsubscribe must not panic
	hub.Unsubscribe("r1", ch)
}

func TestProgressHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewProgressHub()
	ch := hub.Subscribe("r1")

	for i := 0; i < 50; i++ {
		hub.Publish(models.ProgressEvent{ReportID: "r1", Progress: float64(i) / 50})
	}

	// The buffered portion is delivered, the rest was dropped without
	// blocking the publisher
	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, cap(ch), received)
}

func TestProgressHubCancelRegistry(t *testing.T) {
	hub := NewProgressHub()

	assert.False(t, hub.Cancel("r1"), "nothing registered yet")

	ctx, cancel := context.WithCancel(context.Background())
	hub.RegisterCancel("r1", cancel)

	require.True(t, hub.Cancel("r1"))
	assert.Error(t, ctx.Err(), "cancel must fire the registered handle")

	assert.False(t, hub.Cancel("r1"), "handle is consumed by cancellation")

	hub.RegisterCancel("r2", func() {})
	hub.ClearCancel("r2")
	assert.False(t, hub.Cancel("r2"))
}
