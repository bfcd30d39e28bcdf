package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRefresh_DiscoversAgentsAndSkills(t *testing.T) {
	dir := t.TempDir()
	agentsRoot := filepath.Join(dir, "agents")
	skillsRoot := filepath.Join(dir, "skills")

	writeFile(t, filepath.Join(agentsRoot, "sec-audit.md"), "---\nname: sec-audit\ndescription: scans for issues\ntools: [\"Read\"]\n---\nbody text\n")
	writeFile(t, filepath.Join(skillsRoot, "format", "skill.yaml"), "name: format\ndescription: formats code\n")

	r := New(agentsRoot, skillsRoot, time.Minute, nil)
	list := r.Refresh()

	require.Len(t, list.Agents, 1)
	assert.Equal(t, "sec-audit", list.Agents[0].Name)
	require.Len(t, list.Skills, 1)
	assert.Equal(t, "format", list.Skills[0].Name)
}

func TestScanAgents_MissingNameSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.md"), "---\ndescription: no name here\n---\nbody\n")

	agents, warnings := scanAgents(dir)
	assert.Empty(t, agents)
	require.Len(t, warnings, 1)
}

func TestScanAgents_EmptyToolsIsValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.md"), "---\nname: ok\ndescription: fine\ntools: []\n---\nbody\n")

	agents, warnings := scanAgents(dir)
	assert.Empty(t, warnings)
	require.Len(t, agents, 1)
	assert.Empty(t, agents[0].Tools)
}

func TestValidateAgents_ReportsMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sec-audit.md"), "---\nname: sec-audit\ndescription: d\n---\n")

	r := New(dir, "", time.Minute, nil)
	missing := r.ValidateAgents([]string{"sec-audit", "forbidden-agent"})
	assert.Equal(t, []string{"forbidden-agent"}, missing)
}

func TestEnrichPrompt_Additive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sec-audit.md"), "---\nname: sec-audit\ndescription: scans\n---\n")

	r := New(dir, "", time.Minute, nil)
	enriched := r.EnrichPrompt("do the scan", []string{"sec-audit"}, nil)

	assert.Contains(t, enriched, "do the scan")
	assert.Contains(t, enriched, "sec-audit")
}

func TestRefresh_NoMCPClientAttachedYieldsNilMCPTools(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, dir, time.Minute, nil)

	list := r.Refresh()
	assert.Nil(t, list.MCPTools)
}
