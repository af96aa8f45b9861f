// Package persona holds the assistant's copy: the system instruction sent to
// the chat model, the canned greetings spoken on lifecycle transitions, the
// fallback replies and the speech delivery style.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yaml
var builtinPersona []byte

const namePlaceholder = "{name}"

// Fallback holds the replies used when the chat model gives nothing usable
type Fallback struct {
	EmptyReply  string `yaml:"empty_reply"`
	RemoteError string `yaml:"remote_error"`
}

// Persona is the full set of assistant copy
type Persona struct {
	Name              string            `yaml:"name"`
	Office            string            `yaml:"office"`
	ContactPhone      string            `yaml:"contact_phone"`
	SystemInstruction string            `yaml:"system_instruction"`
	SeedGreeting      string            `yaml:"seed_greeting"`
	ResetGreeting     string            `yaml:"reset_greeting"`
	Welcome           string            `yaml:"welcome"`
	LoginGreeting     string            `yaml:"login_greeting"`
	Farewell          string            `yaml:"farewell"`
	Fallback          Fallback          `yaml:"fallback"`
	SpeechStyle       string            `yaml:"speech_style"`
	DefaultNames      map[string]string `yaml:"default_names"`
	DefaultNationalID string            `yaml:"default_national_id"`
}

// Default returns the built-in persona. It panics only if the embedded file
// is broken, which the package tests guard against.
func Default() *Persona {
	p, err := Parse(builtinPersona)
	if err != nil {
		panic(fmt.Sprintf("persona: built-in persona is invalid: %v", err))
	}
	return p
}

// Load reads a persona file. Fields missing from the file keep their
// built-in values. An empty path returns Default().
func Load(path string) (*Persona, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse persona file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persona file %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates persona YAML
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse persona: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every piece of copy the assistant speaks is present
func (p *Persona) Validate() error {
	required := map[string]string{
		"system_instruction":    p.SystemInstruction,
		"seed_greeting":         p.SeedGreeting,
		"reset_greeting":        p.ResetGreeting,
		"welcome":               p.Welcome,
		"login_greeting":        p.LoginGreeting,
		"farewell":              p.Farewell,
		"fallback.empty_reply":  p.Fallback.EmptyReply,
		"fallback.remote_error": p.Fallback.RemoteError,
	}

	var missing []string
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.New("missing persona fields: " + strings.Join(missing, ", "))
	}
	if !strings.Contains(p.LoginGreeting, namePlaceholder) {
		return fmt.Errorf("login_greeting must contain %s", namePlaceholder)
	}
	return nil
}

// Greeting renders the login greeting for a user name
func (p *Persona) Greeting(name string) string {
	return strings.ReplaceAll(p.LoginGreeting, namePlaceholder, strings.TrimSpace(name))
}

// DefaultName returns the display name used when a user of the given kind
// logs in without one
func (p *Persona) DefaultName(kind string) string {
	if name, ok := p.DefaultNames[kind]; ok && name != "" {
		return name
	}
	return p.DefaultNames["reviewer"]
}
