package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/distcalc/internal/config"
	"yqhp/distcalc/internal/slave"
)

func TestParseOverrides(t *testing.T) {
	args, err := parseOverrides([]string{"coordinator.split_count=20", " discovery.window = 2s "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"coordinator.split_count": "20",
		"discovery.window":        "2s",
	}, args)

	_, err = parseOverrides([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseOverrides([]string{"=1"})
	assert.Error(t, err)
}

func TestNewCoordinatorConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Coordinator.SplitCount = 20
	cfg.Coordinator.AttemptTimeout = 2 * time.Second
	cfg.Discovery.TaskPort = 12000

	mc := newCoordinatorConfig(cfg)
	assert.Equal(t, 20, mc.Scheduler.SplitCount)
	assert.Equal(t, 2*time.Second, mc.Scheduler.AttemptTimeout)
	assert.Equal(t, 100*time.Millisecond, mc.Scheduler.RetryBackoff)
	assert.Equal(t, 60*time.Second, mc.DiscoveryInterval)
	assert.Equal(t, 12000, mc.TaskPort)
	assert.Equal(t, 2*time.Second, mc.KillTimeout)
}

func TestNewWorkerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Worker.AdvertisePort = 10002
	cfg.Worker.MaxConcurrent = 8

	wc := newWorkerConfig(cfg)
	assert.Equal(t, ":10000", wc.TaskAddress)
	assert.Equal(t, ":10001", wc.DiscoveryAddress)
	assert.Equal(t, 10002, wc.AdvertisePort)
	assert.Equal(t, 8, wc.MaxConcurrent)
	assert.Equal(t, 10, wc.SplitCount)
}

func TestCommandTree(t *testing.T) {
	root := GetRootCmd()

	for _, path := range [][]string{
		{"coordinator", "run"},
		{"worker", "start"},
		{"version"},
	} {
		found, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	root := GetRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	defer root.SetArgs(nil)

	require.NoError(t, root.Execute())
	assert.Equal(t, "distcalc "+Version+"\n", out.String())
}

func TestCoordinatorRunEndToEnd(t *testing.T) {
	nodeCfg := slave.DefaultConfig()
	nodeCfg.TaskAddress = "127.0.0.1:0"
	nodeCfg.DiscoveryAddress = "127.0.0.1:0"
	node := slave.NewNode(nodeCfg, nil)
	require.NoError(t, node.Start(context.Background()))
	defer node.Stop(context.Background())

	dir := t.TempDir()
	input := filepath.Join(dir, "test.txt")
	output := filepath.Join(dir, "result.txt")
	require.NoError(t, os.WriteFile(input, []byte("0 10\n\nnot a command\n0 1\n"), 0o644))

	root := GetRootCmd()
	root.SetArgs([]string{
		"coordinator", "run",
		"--quiet",
		"--input", input,
		"--output", output,
		"--set", "discovery.broadcast_address=" + node.DiscoveryAddr().String(),
		"--set", "discovery.window=200ms",
		"--set", "discovery.interval=1h",
	})
	defer root.SetArgs(nil)

	require.NoError(t, root.Execute())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	want := 0.0
	for i := range 10 {
		want += slave.LeftRiemannSum(float64(i), float64(i+1), 10)
	}
	got, err := strconv.ParseFloat(lines[0], 64)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)

	got, err = strconv.ParseFloat(lines[1], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 0.05)
}
