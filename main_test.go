package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivecheck/driveerr"
	"drivecheck/engine"
	"drivecheck/settings"
	"drivecheck/workspace"
)

func testSettings(t *testing.T) settings.Settings {
	t.Helper()
	s := settings.Defaults()
	s.Size = "256k"
	s.Chunk = "64k"
	s.Samples = 16
	s.Headroom = "4k"
	s.NoHealth = true
	s.Format = "json"
	return s
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitInterrupted, exitCode(&engine.RunError{Err: driveerr.ErrInterrupted}))
	assert.Equal(t, exitMismatch, exitCode(driveerr.Newf(driveerr.KindDigestMismatch, "verify", "x", "differs")))
	assert.Equal(t, exitUsage, exitCode(driveerr.ErrInvalidConfig))
	assert.Equal(t, exitError, exitCode(fmt.Errorf("wrapped: %w", driveerr.ErrIOFailure)))
}

func TestBuildPlan(t *testing.T) {
	s := testSettings(t)

	p, err := buildPlan(s, "/mnt/usb", false, "")
	require.NoError(t, err)
	assert.Equal(t, int64(256<<10), p.config.SizeBytes)
	assert.Equal(t, int64(64<<10), p.config.ChunkSize)
	assert.Equal(t, "/mnt/usb", p.workspace.Root)
	assert.False(t, p.config.KeepFile)

	p, err = buildPlan(s, "", true, "")
	require.NoError(t, err)
	assert.Equal(t, ".", p.workspace.Root)
	assert.True(t, p.config.KeepFile)
	assert.Zero(t, p.config.SizeBytes)

	s.Chunk = "lots"
	_, err = buildPlan(s, "", false, "")
	assert.ErrorIs(t, err, driveerr.ErrInvalidConfig)

	_, err = buildPlan(testSettings(t), "", false, "not-hex")
	assert.ErrorIs(t, err, driveerr.ErrInvalidConfig)
}

func TestRunFlags_OnlyChangedFlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	var f runFlags
	f.register(fs, false)
	require.NoError(t, fs.Parse([]string{"--samples", "9", "--random-first", "--keep"}))

	s := testSettings(t)
	f.merge(fs, &s)

	assert.Equal(t, 9, s.Samples)
	require.NotNil(t, s.RandomFirst)
	assert.True(t, *s.RandomFirst)
	assert.True(t, s.Keep)
	assert.Equal(t, "256k", s.Size)
	assert.Equal(t, "64k", s.Chunk)
}

func TestExecute_WriteVerifyThenVerify(t *testing.T) {
	root := t.TempDir()
	s := testSettings(t)
	s.Keep = true
	s.LogFile = filepath.Join(root, "runs.jsonl")
	s.MetricsTextfile = filepath.Join(root, "drivecheck.prom")

	p, err := buildPlan(s, root, false, "")
	require.NoError(t, err)
	var stdout, stderr bytes.Buffer
	require.NoError(t, execute(context.Background(), p, false, &stdout, &stderr))

	var res engine.RunResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, engine.VerdictPass, res.Integrity.Verdict)
	assert.Equal(t, int64(256<<10), res.FileSize)

	file := filepath.Join(root, workspace.DefaultDir, workspace.DefaultFile)
	assert.FileExists(t, file)
	assert.FileExists(t, workspace.SidecarPath(file))
	assert.FileExists(t, s.LogFile)
	assert.FileExists(t, s.MetricsTextfile)

	// Verify-only picks up the sidecar digest.
	p, err = buildPlan(s, root, true, "")
	require.NoError(t, err)
	stdout.Reset()
	require.NoError(t, execute(context.Background(), p, false, &stdout, &stderr))
	res = engine.RunResult{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, engine.ReferenceExpected, res.Integrity.Reference)
	assert.Equal(t, engine.VerdictPass, res.Integrity.Verdict)

	// Corrupt one byte: verify reports a mismatch.
	f, err := os.OpenFile(file, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xff}, 1000)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	stdout.Reset()
	err = execute(context.Background(), p, false, &stdout, &stderr)
	assert.ErrorIs(t, err, driveerr.ErrDigestMismatch)
	assert.Equal(t, exitMismatch, exitCode(err))
}

func TestExecute_RemovesFileByDefault(t *testing.T) {
	root := t.TempDir()
	p, err := buildPlan(testSettings(t), root, false, "")
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	require.NoError(t, execute(context.Background(), p, false, &stdout, &stderr))
	assert.NoDirExists(t, filepath.Join(root, workspace.DefaultDir))
}

func TestExecute_VerifyMissingFile(t *testing.T) {
	p, err := buildPlan(testSettings(t), t.TempDir(), true, "")
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	err = execute(context.Background(), p, false, &stdout, &stderr)
	assert.ErrorIs(t, err, driveerr.ErrVerifyTargetMissing)
	assert.Equal(t, exitError, exitCode(err))
}

func TestExecute_Interrupted(t *testing.T) {
	root := t.TempDir()
	p, err := buildPlan(testSettings(t), root, false, "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err = execute(ctx, p, false, &stdout, &stderr)
	assert.Equal(t, exitInterrupted, exitCode(err))
	assert.Contains(t, stderr.String(), "write phase failed")
	assert.NoFileExists(t, filepath.Join(root, workspace.DefaultDir, workspace.DefaultFile))
}
