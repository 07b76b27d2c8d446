package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageOrdering(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 5)
	assert.Equal(t, StageInquiry, stages[0])
	assert.Equal(t, StageEnrolled, stages[len(stages)-1])

	for i, stage := range stages {
		assert.Equal(t, i, StageIndex(stage))
	}
	assert.Equal(t, -1, StageIndex("WAITLISTED"))
}

func TestStageNeighbors(t *testing.T) {
	next, ok := NextStage(StageInquiry)
	require.True(t, ok)
	assert.Equal(t, StageApplication, next)

	prev, ok := PrevStage(StageOffered)
	require.True(t, ok)
	assert.Equal(t, StageInterview, prev)

	_, ok = NextStage(StageEnrolled)
	assert.False(t, ok)

	_, ok = PrevStage(StageInquiry)
	assert.False(t, ok)

	_, ok = NextStage("WAITLISTED")
	assert.False(t, ok)
}

func TestStageBoundaries(t *testing.T) {
	assert.Equal(t, StageInquiry, InitialStage())
	assert.Equal(t, StageEnrolled, TerminalStage())
	assert.True(t, IsInitialStage(StageInquiry))
	assert.True(t, IsTerminalStage(StageEnrolled))
	assert.False(t, IsTerminalStage(StageOffered))
}

func TestIsValidStage(t *testing.T) {
	for _, stage := range Stages() {
		assert.True(t, IsValidStage(stage))
	}
	assert.False(t, IsValidStage("offered"))
	assert.False(t, IsValidStage(""))
}
