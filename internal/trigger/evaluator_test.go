package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leadflow/internal/model"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func leadCreated(id string, ago time.Duration) model.Lead {
	return model.Lead{ID: id, Name: id, Status: "new", CreatedAt: now.Add(-ago)}
}

func ids(leads []model.Lead) []string {
	out := make([]string, 0, len(leads))
	for _, l := range leads {
		out = append(out, l.ID)
	}
	return out
}

func TestMatches_NewLeadWindow(t *testing.T) {
	trig := model.NewLead{Window: 5 * time.Minute}
	leads := []model.Lead{
		leadCreated("fresh", 3*time.Minute),
		leadCreated("stale", 10*time.Minute),
		leadCreated("edge", 5*time.Minute),
		leadCreated("now", 0),
		leadCreated("future", -time.Minute),
	}

	got := Matches(trig, leads, now)
	assert.Equal(t, []string{"fresh", "edge", "now"}, ids(got))
}

func TestMatches_NewLeadClosedIntervalOverTime(t *testing.T) {
	const d = 5 * time.Minute
	trig := model.NewLead{Window: d}
	created := now
	lead := []model.Lead{{ID: "l1", CreatedAt: created}}

	tests := []struct {
		name  string
		at    time.Time
		match bool
	}{
		{"before creation", created.Add(-time.Second), false},
		{"at creation", created, true},
		{"inside window", created.Add(2 * time.Minute), true},
		{"at window end", created.Add(d), true},
		{"after window", created.Add(d + time.Nanosecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(trig, lead, tt.at)
			assert.Equal(t, tt.match, len(got) == 1)
		})
	}
}

func TestMatches_NoActivity(t *testing.T) {
	trig := model.NoActivity{Threshold: 48 * time.Hour}
	threeDaysAgo := now.Add(-72 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	leads := []model.Lead{
		{ID: "idle", Status: "new", CreatedAt: now.Add(-240 * time.Hour), LastActivityAt: &threeDaysAgo},
		{ID: "recent", Status: "new", CreatedAt: now.Add(-240 * time.Hour), LastActivityAt: &yesterday},
		{ID: "never-touched", Status: "contacted", CreatedAt: now.Add(-96 * time.Hour)},
		{ID: "young", Status: "new", CreatedAt: now.Add(-time.Hour)},
		{ID: "converted", Status: "converted", CreatedAt: now.Add(-240 * time.Hour), LastActivityAt: &threeDaysAgo},
		{ID: "not-interested", Status: "not_interested", CreatedAt: now.Add(-240 * time.Hour)},
	}

	got := Matches(trig, leads, now)
	assert.Equal(t, []string{"idle", "never-touched"}, ids(got))
}

func TestMatches_NoActivityConvertedNeverMatches(t *testing.T) {
	trig := model.NoActivity{Threshold: 24 * time.Hour}
	ancient := now.Add(-10 * 365 * 24 * time.Hour)
	lead := []model.Lead{{ID: "c", Status: "converted", CreatedAt: ancient, LastActivityAt: &ancient}}

	for _, at := range []time.Time{now, now.Add(1000 * time.Hour)} {
		assert.Empty(t, Matches(trig, lead, at))
	}
}

func TestMatches_NoActivityStrictCutoff(t *testing.T) {
	trig := model.NoActivity{Threshold: 24 * time.Hour}
	exactly := now.Add(-24 * time.Hour)
	lead := []model.Lead{{ID: "l", Status: "new", CreatedAt: exactly}}

	assert.Empty(t, Matches(trig, lead, now), "activity exactly at cutoff is not stale")
	assert.Len(t, Matches(trig, lead, now.Add(time.Second)), 1)
}

func TestMatches_StatusChangeMatchesStatusOrStage(t *testing.T) {
	trig := model.StatusChange{Value: "qualified"}
	leads := []model.Lead{
		{ID: "by-status", Status: "qualified", Stage: "discovery"},
		{ID: "by-stage", Status: "contacted", Stage: "qualified"},
		{ID: "neither", Status: "new", Stage: "discovery"},
	}

	got := Matches(trig, leads, now)
	assert.Equal(t, []string{"by-status", "by-stage"}, ids(got))

	// Level-sensitive: same result on every later evaluation
	for i := 1; i <= 3; i++ {
		later := Matches(trig, leads, now.Add(time.Duration(i)*5*time.Minute))
		assert.Equal(t, ids(got), ids(later))
	}
}

func TestMatches_EmptyPopulation(t *testing.T) {
	got := Matches(model.NewLead{Window: time.Minute}, nil, now)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchRule_ScenarioNewLead(t *testing.T) {
	rule := model.Rule{ID: "r1", TriggerKind: model.TriggerNewLead, TriggerValue: "5", ActionKind: model.ActionSendWhatsApp}

	got, err := MatchRule(rule, []model.Lead{leadCreated("l3", 3*time.Minute)}, now)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = MatchRule(rule, []model.Lead{leadCreated("l10", 10*time.Minute)}, now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchRule_ScenarioNoActivity(t *testing.T) {
	rule := model.Rule{ID: "r2", TriggerKind: model.TriggerNoActivity, TriggerValue: "2", ActionKind: model.ActionCreateNotification}
	threeDaysAgo := now.Add(-72 * time.Hour)
	lead := model.Lead{ID: "l", Status: "new", CreatedAt: threeDaysAgo, LastActivityAt: &threeDaysAgo}

	got, err := MatchRule(rule, []model.Lead{lead}, now)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	lead.Status = "converted"
	got, err = MatchRule(rule, []model.Lead{lead}, now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchRule_UnknownTriggerMatchesNothing(t *testing.T) {
	rule := model.Rule{ID: "r", TriggerKind: "lead_scored"}

	got, err := MatchRule(rule, []model.Lead{leadCreated("l", 0)}, now)
	require.Error(t, err)
	assert.Empty(t, got)

	var uk *model.UnknownKindError
	assert.ErrorAs(t, err, &uk)
}
