// Package prompts loads the agent prompt templates and renders them with
// eino's Go-template prompt component.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"gopkg.in/yaml.v3"
)

// Prompt keys.
const (
	Steve        = "steve_sys_prompt"
	SteveHuman   = "steve_human_prompt"
	MemoryUpdate = "steve_memory_agent_sys_prompt_default"
	MemoryNew    = "steve_memory_agent_sys_prompt_new"
	GitHubRepo   = "steve_github_repo_agent_sys_prompt"
)

// Required lists the keys every prompts file must define.
var Required = []string{Steve, SteveHuman, MemoryUpdate, MemoryNew, GitHubRepo}

//go:embed prompts.yaml
var defaultPrompts []byte

// Set is a loaded collection of prompt templates.
type Set struct {
	templates map[string]string
}

// Default returns the embedded prompt set.
func Default() (*Set, error) {
	return Parse(defaultPrompts)
}

// Load reads a prompt set from path, or the embedded set when path is empty.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML prompt set and checks that all required keys exist.
func Parse(data []byte) (*Set, error) {
	var templates map[string]string
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}
	for _, key := range Required {
		if templates[key] == "" {
			return nil, fmt.Errorf("prompts: missing %q", key)
		}
	}
	return &Set{templates: templates}, nil
}

// Template returns the raw template for key.
func (s *Set) Template(key string) (string, bool) {
	t, ok := s.templates[key]
	return t, ok
}

// Render formats a single template.
func (s *Set) Render(ctx context.Context, key string, vars map[string]any) (string, error) {
	tpl, ok := s.templates[key]
	if !ok {
		return "", fmt.Errorf("prompts: unknown key %q", key)
	}
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", key, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("rendering %s: empty result", key)
	}
	return msgs[0].Content, nil
}

// RenderPair formats a system template and a human template together.
func (s *Set) RenderPair(ctx context.Context, systemKey, humanKey string, vars map[string]any) (system, human string, err error) {
	sys, ok := s.templates[systemKey]
	if !ok {
		return "", "", fmt.Errorf("prompts: unknown key %q", systemKey)
	}
	hum, ok := s.templates[humanKey]
	if !ok {
		return "", "", fmt.Errorf("prompts: unknown key %q", humanKey)
	}

	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(sys),
		schema.UserMessage(hum),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", "", fmt.Errorf("rendering %s: %w", systemKey, err)
	}
	if len(msgs) != 2 {
		return "", "", fmt.Errorf("rendering %s: expected 2 messages, got %d", systemKey, len(msgs))
	}
	return msgs[0].Content, msgs[1].Content, nil
}
