package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/planner"
)

func TestPlanSplitsSentencesAndChainsLinearly(t *testing.T) {
	p := planner.New(nil)
	plan := p.Plan("Book a flight. Reserve a hotel. Send confirmation", nil)
	require.Len(t, plan.Steps, 3)
	assert.Empty(t, plan.Steps[0].Dependencies)
	assert.Equal(t, []string{plan.Steps[0].ID}, plan.Steps[1].Dependencies)
	assert.Equal(t, []string{plan.Steps[1].ID}, plan.Steps[2].Dependencies)
}

func TestPlanMatchesSkillByOverlap(t *testing.T) {
	p := planner.New([]planner.Skill{
		{Name: "flights.search", Inputs: []string{"destination"}, Permissions: []string{"travel.book:write"}},
		{Name: "weather.lookup", Inputs: []string{"city"}, Permissions: []string{"weather.read:read"}},
	})
	plan := p.Plan("Search flights to Berlin", nil)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "flights.search", plan.Steps[0].Skill)
}

func TestPlanHintNameOverridesOverlapScoring(t *testing.T) {
	p := planner.New([]planner.Skill{
		{Name: "flights.search", Inputs: []string{"destination"}},
		{Name: "weather.lookup", Inputs: []string{"destination"}},
	})
	plan := p.Plan("Check the destination", []string{"weather.lookup"})
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "weather.lookup", plan.Steps[0].Skill)
}

func TestPlanHintSequenceAddsExtraDependency(t *testing.T) {
	p := planner.New([]planner.Skill{
		{Name: "flights.search"},
		{Name: "hotels.book"},
	})
	plan := p.Plan("Book hotel. Search flights", []string{"flights.search -> hotels.book"})
	require.Len(t, plan.Steps, 2)

	var hotelStep planner.Step
	for _, s := range plan.Steps {
		if s.Skill == "hotels.book" {
			hotelStep = s
		}
	}
	var flightID string
	for _, s := range plan.Steps {
		if s.Skill == "flights.search" {
			flightID = s.ID
		}
	}
	assert.Contains(t, hotelStep.Dependencies, flightID)
}

func TestPlanEmptyGoalProducesNoSteps(t *testing.T) {
	p := planner.New(nil)
	plan := p.Plan("   ", nil)
	assert.Len(t, plan.Steps, 0)
}

func TestPlanNoSkillsLeavesSkillEmpty(t *testing.T) {
	p := planner.New(nil)
	plan := p.Plan("Do something useful", nil)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "", plan.Steps[0].Skill)
}
