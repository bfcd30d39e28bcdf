package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

var frontMatterDelim = "---"

// scanAgents walks root for Markdown agent definitions with a YAML
// front-matter header. Malformed entries are returned in the warnings
// slice instead of aborting the scan.
func scanAgents(root string) ([]AgentDescriptor, []string) {
	var out []AgentDescriptor
	var warnings []string

	if root == "" {
		return out, warnings
	}

	matches, err := doublestar.Glob(os.DirFS(root), "**/*.md")
	if err != nil {
		return out, []string{fmt.Sprintf("agents: glob error: %v", err)}
	}

	for _, rel := range matches {
		full := filepath.Join(root, rel)
		raw, err := os.ReadFile(full)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("agents: reading %s: %v", rel, err))
			continue
		}

		fm, _, ok := splitFrontMatter(string(raw))
		if !ok {
			warnings = append(warnings, fmt.Sprintf("agents: %s has no front-matter header, skipped", rel))
			continue
		}

		var desc AgentDescriptor
		if err := yaml.Unmarshal([]byte(fm), &desc); err != nil {
			warnings = append(warnings, fmt.Sprintf("agents: %s front-matter parse error: %v", rel, err))
			continue
		}
		if desc.Name == "" {
			warnings = append(warnings, fmt.Sprintf("agents: %s missing required 'name', skipped", rel))
			continue
		}
		desc.SourcePath = full
		out = append(out, desc)
	}

	return out, warnings
}

// scanSkills walks root for skill directories, each expected to carry a
// sidecar "skill.yaml" metadata file.
func scanSkills(root string) ([]SkillDescriptor, []string) {
	var out []SkillDescriptor
	var warnings []string

	if root == "" {
		return out, warnings
	}

	matches, err := doublestar.Glob(os.DirFS(root), "**/skill.yaml")
	if err != nil {
		return out, []string{fmt.Sprintf("skills: glob error: %v", err)}
	}

	for _, rel := range matches {
		full := filepath.Join(root, rel)
		raw, err := os.ReadFile(full)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skills: reading %s: %v", rel, err))
			continue
		}

		var desc SkillDescriptor
		if err := yaml.Unmarshal(raw, &desc); err != nil {
			warnings = append(warnings, fmt.Sprintf("skills: %s parse error: %v", rel, err))
			continue
		}
		if desc.Name == "" {
			warnings = append(warnings, fmt.Sprintf("skills: %s missing required 'name', skipped", rel))
			continue
		}
		desc.SourcePath = full
		out = append(out, desc)
	}

	return out, warnings
}

// splitFrontMatter extracts the YAML block delimited by a leading and
// trailing "---" line from a Markdown document.
func splitFrontMatter(doc string) (frontMatter, body string, ok bool) {
	trimmed := strings.TrimLeft(doc, "\uFEFF \t\r\n")
	if !strings.HasPrefix(trimmed, frontMatterDelim) {
		return "", doc, false
	}
	rest := strings.TrimPrefix(trimmed, frontMatterDelim)
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end == -1 {
		return "", doc, false
	}

	return rest[:end], rest[end+len(frontMatterDelim)+1:], true
}
