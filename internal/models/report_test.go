package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionLifecycle(t *testing.T) {
	assert.True(t, CanTransition(ReportStatusPending, ReportStatusGenerating))
	assert.True(t, CanTransition(ReportStatusPending, ReportStatusFailed))
	assert.True(t, CanTransition(ReportStatusGenerating, ReportStatusCompleted))
	assert.True(t, CanTransition(ReportStatusGenerating, ReportStatusFailed))
}

func TestCanTransitionRegeneration(t *testing.T) {
	assert.True(t, CanTransition(ReportStatusCompleted, ReportStatusGenerating))
	assert.True(t, CanTransition(ReportStatusFailed, ReportStatusGenerating))
}

func TestCanTransitionRejectsReversals(t *testing.T) {
	assert.False(t, CanTransition(ReportStatusCompleted, ReportStatusPending))
	assert.False(t, CanTransition(ReportStatusFailed, ReportStatusPending))
	assert.False(t, CanTransition(ReportStatusGenerating, ReportStatusPending))
	assert.False(t, CanTransition(ReportStatusCompleted, ReportStatusFailed))
	assert.False(t, CanTransition(ReportStatusFailed, ReportStatusCompleted))
	assert.False(t, CanTransition(ReportStatusPending, ReportStatusCompleted))
}
