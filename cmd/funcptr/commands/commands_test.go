package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/BarrensZeppelin/funcptr"
	"github.com/BarrensZeppelin/funcptr/internal/config"
)

const program = `package main

func plus(a, b int) int { return a + b }

func helper(f *func(int, int) int) {
	*f = plus
}

func main() {
	var f func(int, int) int
	helper(&f)
	println(f(1, 2))
}
`

// writeModule lays out a one-package module and returns its directory.
func writeModule(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/demo\n\ngo 1.18\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(program), 0o644))
	return dir
}

func TestRun(t *testing.T) {
	dir := writeModule(t)

	t.Run("Text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, run(&buf, config.DefaultConfig(), dir, []string{"."}))
		assert.Equal(t, "11 : helper\n12 : plus\n", buf.String())
	})

	t.Run("CallGraph", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.CallGraph = true

		var buf bytes.Buffer
		require.NoError(t, run(&buf, cfg, dir, []string{"."}))
		out := buf.String()
		assert.Contains(t, out, "example.com/demo.main --> example.com/demo.helper\n")
		assert.Contains(t, out, "example.com/demo.main --> example.com/demo.plus\n")
	})

	t.Run("Liveness", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Liveness = true

		var buf bytes.Buffer
		require.NoError(t, run(&buf, cfg, dir, []string{"."}))
		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "11 : helper\n12 : plus\n"), out)
		assert.Contains(t, out, "main.0(entry) : in {} out {}\n")
	})

	t.Run("Msgpack", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Format = config.FormatMsgpack

		var buf bytes.Buffer
		require.NoError(t, run(&buf, cfg, dir, []string{"."}))
		report, err := funcptr.ReadMsgpack(&buf)
		require.NoError(t, err)
		assert.Equal(t, []string{"plus"}, report.Callees(12))
	})

	t.Run("UnknownEntry", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Entry = "nope"
		err := run(&bytes.Buffer{}, cfg, dir, []string{"."})
		assert.ErrorIs(t, err, funcptr.ErrNoEntry)
	})

	t.Run("LastFunction", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Entry = ""

		var buf bytes.Buffer
		require.NoError(t, run(&buf, cfg, dir, []string{"."}))
		assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	})
}

func TestRootCommand(t *testing.T) {
	dir := writeModule(t)

	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs([]string{"--dir", dir, "--format", "yaml", "."})
	t.Cleanup(func() { RootCmd.SetArgs(nil) })
	require.NoError(t, Execute())

	var sites []funcptr.CallSite
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &sites))
	assert.Equal(t, []funcptr.CallSite{
		{Line: 11, Callees: []string{"helper"}},
		{Line: 12, Callees: []string{"plus"}},
	}, sites, fmt.Sprintf("output:\n%s", buf.String()))
}
