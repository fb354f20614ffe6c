package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalcode-go/types"
)

const scenario = `
sense pt
tick 3
expect state PrimaryThrough clearing
tick 2
expect color primary green
sense st
tick 4
expect state SecondaryThrough clearing
expect color primary yellow
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigDefaultsAndEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("SIGNALSIM_TIMING_MIN_GREEN", "9")
	t.Setenv("SIGNALSIM_MANUAL", "true")
	initConfig()

	cfg := LoadConfig()
	assert.Equal(t, 9, cfg.Timing.MinGreen)
	assert.Equal(t, 2, cfg.Timing.Yellow)
	assert.True(t, cfg.Manual)
	assert.Equal(t, 1000, cfg.TickMS)

	sc := cfg.SignalConfig()
	assert.Equal(t, 9, sc.Timing.MinGreen)
	assert.Equal(t, "none", sc.Lamps.Backend)
}

func TestRunAndJournal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.sig")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o600))
	db := filepath.Join(dir, "journal.db")

	out, err := execute(t, "run", "--journal", db, path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS")

	// run returns only after the journal has written every queued event.
	out, err = execute(t, "journal", "--journal", db, "--counts")
	require.NoError(t, err)
	assert.Contains(t, out, "PrimaryThrough")
	assert.Contains(t, out, "SecondaryThrough")

	out, err = execute(t, "journal", "--journal", db, "--counts=false", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "PrimaryThrough")
	assert.Contains(t, out, "caution")
}

func TestRunReportsFailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sig")
	require.NoError(t, os.WriteFile(path, []byte("tick 1\nexpect state PrimarySolo\n"), 0o600))

	_, err := execute(t, "run", "--journal", "", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestJournalNeedsPath(t *testing.T) {
	_, err := execute(t, "journal", "--journal", "")
	assert.Error(t, err)
}

func TestModelKeysDriveController(t *testing.T) {
	viper.Reset()
	SetDefaults()
	cfg := DefaultConfig()
	cfg.Manual = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &lampSink{}
	st, err := startStack(ctx, cfg)
	require.NoError(t, err)

	var m tea.Model = newModel(ctx, st.runner, sink, true)
	run := func(cmd tea.Cmd) {
		t.Helper()
		require.NotNil(t, cmd)
		m, _ = m.Update(cmd())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	run(cmd)
	for i := 0; i < 3; i++ {
		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
		run(cmd)
	}
	run(m.(model).snapshot())

	mm := m.(model)
	assert.Equal(t, types.PhasePrimaryThrough, mm.state.Phase)
	require.NotEmpty(t, mm.history)
	assert.Contains(t, mm.history[0], "sense primary-through")
	assert.Contains(t, mm.View(), "PrimaryThrough")
}
