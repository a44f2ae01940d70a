package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leadflow/internal/model"
	"github.com/roach88/leadflow/internal/store"
)

// cycleTime is 3 minutes after lead l-1 was created.
var cycleTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

const crmRuleset = `
package crm

user: "u-ana": {name: "Ana", email: "ana@example.com"}

rule: welcome: {
	name:       "Welcome"
	trigger:    {kind: "new_lead", value: 10}
	action:     {kind: "send_whatsapp"}
	created_by: "u-ana"
}

rule: nudge: {
	name:       "Nudge hot leads"
	trigger:    {kind: "status_change", value: "hot"}
	action:     {kind: "create_notification"}
	created_by: "u-ana"
}

lead: "l-1": {
	name:       "Bruno"
	phone:      "+55 11 99990000"
	status:     "hot"
	created_at: "2026-10-15T11:57:00Z"
}

lead: "l-2": {
	name:       "Carla"
	status:     "new"
	created_at: "2026-10-14T08:00:00Z"
}
`

// writeRuleset writes CUE files into a fresh directory.
func writeRuleset(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

// testRootOptions points the CLI at a temp database and no .env file.
func testRootOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	dir := t.TempDir()
	return &RootOptions{
		Format:  format,
		DB:      filepath.Join(dir, "crm.db"),
		EnvFile: filepath.Join(dir, "missing.env"),
	}
}

// execute runs cmd with args and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// loadCRM loads crmRuleset into the options' database.
func loadCRM(t *testing.T, opts *RootOptions) {
	t.Helper()
	textOpts := *opts
	textOpts.Format = "text"
	_, _, err := execute(t, NewLoadCommand(&textOpts), writeRuleset(t, map[string]string{"crm.cue": crmRuleset}))
	require.NoError(t, err)
}

// runLog reads the run log straight from the database.
func runLog(t *testing.T, dbPath string) []model.RunLogEntry {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	entries, err := st.ListRunLog(context.Background(), store.RunLogFilter{})
	require.NoError(t, err)
	return entries
}

// safeBuffer is a bytes.Buffer safe for concurrent writers.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
