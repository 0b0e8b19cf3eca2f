package run

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sirt3d/cmd"
	"sirt3d/pkg/config"
	"sirt3d/pkg/projector"
	"sirt3d/pkg/sirt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCommand()
	root.AddCommand(NewRunCommand(), cmd.NewConfigCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunWithFlags(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--rows", "2", "--cols", "1",
		"--size", "8", "--views", "6",
		"--lam", "0.05", "--maxit", "3",
		"--log-level", "none",
		"--slices-dir", filepath.Join(dir, "slices"))
	require.NoError(t, err)
	require.Contains(t, out, "Grid:        2x1")
	require.Contains(t, out, "after 3 iterations")
	require.DirExists(t, filepath.Join(dir, "slices", "z"))
}

func TestRunWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sirt3d.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	require.Contains(t, out, path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	cfg.Grid.Rows, cfg.Grid.Cols = 1, 1
	cfg.Phantom.Kind = "blobs"
	cfg.Phantom.Size = 8
	cfg.Phantom.Views = 4
	cfg.SIRT.Symmetry = "c4"
	cfg.SIRT.Lambda = 0.05
	cfg.SIRT.MaxIterations = 2
	cfg.Logging.Level = "none"
	require.NoError(t, config.SaveConfig(cfg, path))

	out, err = execute(t, "run", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "symmetry c4")
	require.Contains(t, out, "after 2 iterations")
}

func TestRunRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")

	for _, args := range [][]string{
		{"--symmetry", "q3"},
		{"--views", "0"},
		{"--kernel", "cubic"},
		{"--stopping", "never"},
		{"--rows", "3", "--cols", "3", "--size", "4"},
	} {
		_, err := execute(t, append([]string{"run", "--config", missing, "--log-level", "none", "--maxit", "1", "--size", "8", "--views", "2"}, args...)...)
		require.Error(t, err, "%v", args)
	}

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("grid: [1, 2"), 0o644))
	_, err := execute(t, "run", "--config", bad)
	require.Error(t, err)
}

func TestSIRTParams(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SIRT.Kernel = "nearest"
	cfg.SIRT.RadiusUnits = "fraction"
	cfg.SIRT.Radius = 0.5
	cfg.SIRT.Stopping = "absolute"

	p, err := SIRTParams(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, projector.Nearest{}, p.Kernel)
	require.Equal(t, sirt.Fraction, p.RadiusUnits)
	require.Equal(t, sirt.AbsoluteChange, p.Stopping)
	require.Equal(t, 0.5, p.Radius)
	require.Equal(t, cfg.SIRT.MaxVoxels, p.MaxVoxels)
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	c := NewRunCommand()
	require.NoError(t, c.Flags().Parse([]string{"--rows", "4", "--symmetry", "d2"}))

	cfg := config.DefaultConfig()
	cfg.Grid.Cols = 7
	require.NoError(t, applyFlags(c.Flags(), cfg))
	require.Equal(t, 4, cfg.Grid.Rows)
	require.Equal(t, 7, cfg.Grid.Cols)
	require.Equal(t, "d2", cfg.SIRT.Symmetry)

}
