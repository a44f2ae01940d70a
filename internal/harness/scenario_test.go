package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One rule, one cycle"
rules:
  - id: r1
    name: Welcome
    trigger: new_lead
    action: send_whatsapp
steps:
  - cycle: true
assertions:
  - type: run_log_count
    count: 0
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, "One rule, one cycle", scenario.Description)
	require.Len(t, scenario.Rules, 1)
	assert.Equal(t, "new_lead", scenario.Rules[0].Trigger)
	assert.Nil(t, scenario.Rules[0].Active)
	require.Len(t, scenario.Steps, 1)
	assert.True(t, scenario.Steps[0].Cycle)

	start, err := scenario.StartTime()
	require.NoError(t, err)
	assert.Equal(t, DefaultStart, start)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_RulesetRelativeToFile(t *testing.T) {
	path := writeScenario(t, "ruleset: rules\n"+minimalScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "rules"), scenario.Ruleset)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_CustomStart(t *testing.T) {
	scenario, err := ParseScenario([]byte("start: \"2026-10-15T12:00:00+02:00\"\n" + minimalScenario))
	require.NoError(t, err)

	start, err := scenario.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC), start)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps: [{cycle: true}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps: [{cycle: true}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "description is required",
		},
		{
			name:    "bad start",
			content: "name: n\ndescription: d\nstart: yesterday\nsteps: [{cycle: true}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "start",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "no cycle",
			content: "name: n\ndescription: d\nsteps: [{advance: 1h}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "at least one cycle",
		},
		{
			name:    "two actions in one step",
			content: "name: n\ndescription: d\nsteps: [{cycle: true, advance: 1h}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "exactly one of cycle, advance or put_lead",
		},
		{
			name:    "negative advance",
			content: "name: n\ndescription: d\nsteps: [{advance: -1h}, {cycle: true}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "must be positive",
		},
		{
			name:    "bad lead offset",
			content: "name: n\ndescription: d\nleads: [{id: l1, created: soon}]\nsteps: [{cycle: true}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "leads[0]: created",
		},
		{
			name:    "rule missing action",
			content: "name: n\ndescription: d\nrules: [{id: r1, name: x, trigger: new_lead}]\nsteps: [{cycle: true}]\nassertions: [{type: run_log_count, count: 0}]\n",
			wantErr: "rules[0]",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\nsteps: [{cycle: true}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "count missing",
			content: "name: n\ndescription: d\nsteps: [{cycle: true}]\nassertions: [{type: follow_up_count}]\n",
			wantErr: "count is required",
		},
		{
			name:    "contains without lead",
			content: "name: n\ndescription: d\nsteps: [{cycle: true}]\nassertions: [{type: run_log_contains, rule: r1}]\n",
			wantErr: "rule and lead are required",
		},
		{
			name:    "cycle out of range",
			content: "name: n\ndescription: d\nsteps: [{cycle: true}]\nassertions: [{type: cycle_report, cycle: 2}]\n",
			wantErr: "cycle must be between 1 and 1",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nsteps: [{cycle: true}]\nassertions: [{type: trace_contains}]\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"-3m", -3 * time.Minute},
		{"2d", 48 * time.Hour},
		{"-10d", -240 * time.Hour},
		{"1h30m", 90 * time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseOffset(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "soon", "1.5d", "d"} {
		_, err := ParseOffset(bad)
		assert.Error(t, err, bad)
	}
}
