package entity

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// GsuiteSettings asks the gsuite plugin to mirror the team as a
// directory group. Requires the team to carry a displayName.
type GsuiteSettings struct {
	Privacy string `yaml:"privacy"` // internal, external
}

// SlackSetting is either `slack: true` (user group named after the team)
// or `slack: some-handle` (explicit user group handle).
type SlackSetting struct {
	Enabled   bool
	UserGroup string
}

func (s *SlackSetting) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("slack must be true or a user group name")
	}
	var b bool
	if err := value.Decode(&b); err == nil {
		s.Enabled = b
		return nil
	}
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	s.Enabled = true
	s.UserGroup = str
	return nil
}

func (s SlackSetting) MarshalYAML() (interface{}, error) {
	if s.UserGroup != "" {
		return s.UserGroup, nil
	}
	return s.Enabled, nil
}

/*
 * TeamConfig is one declared team. Exactly one of the three legacy
 * shapes applies:
 * - concrete: members/maintainers listed directly
 * - formation: the union of other teams of the same org
 * - reference: a mirror of another org's team
 * Formations and references are rewritten into concrete teams by the
 * normalization passes before validation.
 */
type TeamConfig struct {
	Name        string          `yaml:"name"`
	Members     []string        `yaml:"members,omitempty"`
	Maintainers []string        `yaml:"maintainers,omitempty"`
	Parent      *string         `yaml:"parent,omitempty"`
	Secret      bool            `yaml:"secret,omitempty"`
	DisplayName string          `yaml:"displayName,omitempty"`
	Gsuite      *GsuiteSettings `yaml:"gsuite,omitempty"`
	Slack       *SlackSetting   `yaml:"slack,omitempty"`

	// legacy shapes, consumed by normalization
	Formation []string `yaml:"formation,omitempty"`
	Reference string   `yaml:"reference,omitempty"`
}

// IsMaintainer reports whether login is a declared maintainer.
func (t *TeamConfig) IsMaintainer(login string) bool {
	for _, m := range t.Maintainers {
		if m == login {
			return true
		}
	}
	return false
}

// IsMember reports whether login is a declared (non maintainer) member.
func (t *TeamConfig) IsMember(login string) bool {
	for _, m := range t.Members {
		if m == login {
			return true
		}
	}
	return false
}

func (t *TeamConfig) validate(orgname string, teams map[string]*TeamConfig) *ConfigError {
	if t.Name == "" {
		return NewConfigInvalid("org %s: team with empty name", orgname)
	}
	if len(t.Maintainers) < 1 {
		return NewConfigInvalid("org %s: team %s must have at least one maintainer", orgname, t.Name)
	}

	maintainers := make(map[string]bool)
	for _, m := range t.Maintainers {
		if m == "" {
			return NewConfigInvalid("org %s: team %s has an empty maintainer login", orgname, t.Name)
		}
		maintainers[m] = true
	}
	for _, m := range t.Members {
		if m == "" {
			return NewConfigInvalid("org %s: team %s has an empty member login", orgname, t.Name)
		}
		if maintainers[m] {
			return NewConfigInvalid("org %s: team %s declares %s as both member and maintainer", orgname, t.Name, m)
		}
	}

	if t.Gsuite != nil {
		if t.Gsuite.Privacy != "internal" && t.Gsuite.Privacy != "external" {
			return NewConfigInvalid("org %s: team %s gsuite.privacy must be internal or external, got %q", orgname, t.Name, t.Gsuite.Privacy)
		}
		if t.DisplayName == "" {
			return NewConfigInvalid("org %s: team %s declares gsuite but has no displayName", orgname, t.Name)
		}
	}

	if t.Parent != nil {
		parent, ok := teams[*t.Parent]
		if !ok {
			return NewConfigInvalid("org %s: team %s references unknown parent team %s", orgname, t.Name, *t.Parent)
		}
		if t.Secret {
			// platform restriction: secret teams cannot be nested
			return NewConfigInvalid("org %s: team %s is secret and cannot have a parent", orgname, t.Name)
		}
		if parent.Secret {
			return NewConfigInvalid("org %s: team %s has secret parent team %s", orgname, t.Name, *t.Parent)
		}

		// walk up the parent chain to detect cycles (parent = self included)
		seen := map[string]bool{t.Name: true}
		cursor := t.Parent
		for cursor != nil {
			if seen[*cursor] {
				return NewConfigInvalid("org %s: team %s has a parent cycle", orgname, t.Name)
			}
			seen[*cursor] = true
			next, ok := teams[*cursor]
			if !ok {
				break
			}
			cursor = next.Parent
		}
	}

	return nil
}
