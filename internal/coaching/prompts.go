package coaching

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/osteele/liquid"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is a system and user template pair.
type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Prompts is the prompt catalogue with a Liquid engine to render it.
type Prompts struct {
	Episode   Prompt `yaml:"episode"`
	TeamEmail Prompt `yaml:"team_email"`

	engine *liquid.Engine
}

// LoadPrompts reads the embedded catalogue and, when path is set, overlays
// the prompts defined in that file.
func LoadPrompts(path string) (*Prompts, error) {
	p := &Prompts{}
	if err := yaml.Unmarshal(defaultPrompts, p); err != nil {
		return nil, fmt.Errorf("parse embedded prompts: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		var override Prompts
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("parse prompt file %s: %w", path, err)
		}
		p.Episode = mergePrompt(p.Episode, override.Episode)
		p.TeamEmail = mergePrompt(p.TeamEmail, override.TeamEmail)
	}

	p.engine = newEngine()
	for name, tpl := range map[string]string{
		"episode.system":    p.Episode.System,
		"episode.user":      p.Episode.User,
		"team_email.system": p.TeamEmail.System,
		"team_email.user":   p.TeamEmail.User,
		"team_email.html":   teamEmailHTML,
		"team_email.txt":    teamEmailText,
	} {
		if _, err := p.engine.ParseString(tpl); err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
	}
	return p, nil
}

func mergePrompt(base, override Prompt) Prompt {
	if override.System != "" {
		base.System = override.System
	}
	if override.User != "" {
		base.User = override.User
	}
	return base
}

// newEngine returns a Liquid engine with the filters the prompts and email
// templates use.
func newEngine() *liquid.Engine {
	engine := liquid.NewEngine()

	// Percent change: {{ wow.qhh | pct }} renders "+12.5%" or "n/a".
	engine.RegisterFilter("pct", func(v any) string {
		f, ok := toFloat(v)
		if !ok {
			return "n/a"
		}
		if f > 0 {
			return "+" + strconv.FormatFloat(f, 'f', 1, 64) + "%"
		}
		return strconv.FormatFloat(f, 'f', 1, 64) + "%"
	})

	return engine
}

// Render binds vars into the system and user templates of prompt.
func (p *Prompts) Render(prompt Prompt, vars map[string]any) (system, user string, err error) {
	system, err = p.engine.ParseAndRenderString(prompt.System, vars)
	if err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	user, err = p.engine.ParseAndRenderString(prompt.User, vars)
	if err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return system, user, nil
}

// bindings converts v into the map form Liquid reads, using v's JSON tags.
func bindings(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	}
	return 0, false
}
