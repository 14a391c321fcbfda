package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jbrache/goose/internal/metrics"
)

func TestPrintStats(t *testing.T) {
	store, err := metrics.NewStoreWithPath(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer store.Close()

	today := time.Now()
	require.NoError(t, store.IncrementOn(metrics.ModeAnswer, today))
	require.NoError(t, store.IncrementOn(metrics.ModeAnswer, today))
	require.NoError(t, store.IncrementOn(metrics.ModeDocuments, today.AddDate(0, 0, -1)))

	var out bytes.Buffer
	require.NoError(t, printStats(&out, store, 7))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 7)
	assert.Equal(t, []string{"MODE", "TOTAL"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"answer", "2"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"documents", "1"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"research", "0"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"DATE", "MODE", "COUNT"}, strings.Fields(lines[5]))
	assert.Equal(t, []string{today.Format("2006-01-02"), "answer", "2"}, strings.Fields(lines[6]))
}

func TestWriteExtension(t *testing.T) {
	var out bytes.Buffer
	err := writeExtension(&out, "agentspace", "/usr/local/bin/agentspace-mcp", 300, map[string]string{
		"AGENTSPACE_PROJECT_ID": "demo-project",
	})
	require.NoError(t, err)

	var doc struct {
		Extensions map[string]gooseExtension `yaml:"extensions"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	ext, ok := doc.Extensions["agentspace"]
	require.True(t, ok)

	assert.True(t, ext.Enabled)
	assert.Equal(t, "stdio", ext.Type)
	assert.Equal(t, "/usr/local/bin/agentspace-mcp", ext.Cmd)
	assert.Equal(t, 300, ext.Timeout)
	assert.Equal(t, description, ext.Description)
	assert.Equal(t, "demo-project", ext.Envs["AGENTSPACE_PROJECT_ID"])
}

func TestLookupEnv(t *testing.T) {
	t.Setenv("AGENTSPACE_PROJECT_ID", "demo-project")
	t.Setenv("AGENTSPACE_ENGINE_ID", "")

	envs := lookupEnv([]string{"AGENTSPACE_PROJECT_ID", " AGENTSPACE_ENGINE_ID"})
	assert.Equal(t, map[string]string{"AGENTSPACE_PROJECT_ID": "demo-project"}, envs)
}
