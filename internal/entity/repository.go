package entity

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PropertyValue is a custom property value: a scalar string or a string
// array (multi_select).
type PropertyValue struct {
	Scalar string
	List   []string
	IsList bool
}

func (p *PropertyValue) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&p.Scalar)
	case yaml.SequenceNode:
		p.IsList = true
		return value.Decode(&p.List)
	}
	return fmt.Errorf("property value must be a string or a list of strings")
}

func (p PropertyValue) MarshalYAML() (interface{}, error) {
	if p.IsList {
		return p.List, nil
	}
	return p.Scalar, nil
}

// Equal compares two property values, list order included (upstream
// preserves the order it was given).
func (p PropertyValue) Equal(o PropertyValue) bool {
	if p.IsList != o.IsList {
		return false
	}
	if !p.IsList {
		return p.Scalar == o.Scalar
	}
	if len(p.List) != len(o.List) {
		return false
	}
	for i := range p.List {
		if p.List[i] != o.List[i] {
			return false
		}
	}
	return true
}

type RepositorySettings struct {
	HasWiki                  *bool `yaml:"has_wiki,omitempty"`
	ForksNeedActionsApproval *bool `yaml:"forks_need_actions_approval,omitempty"`
}

// HerokuSettings is the hosting-service block consumed by the heroku
// plugin; the reconciler itself never touches it.
type HerokuSettings struct {
	AppName string `yaml:"app_name"`
	Team    string `yaml:"team,omitempty"`
}

type RepositoryConfig struct {
	Name                  string                   `yaml:"name"`
	Teams                 map[string]AccessLevel   `yaml:"teams,omitempty"`
	ExternalCollaborators map[string]AccessLevel   `yaml:"external_collaborators,omitempty"`
	Settings              *RepositorySettings      `yaml:"settings,omitempty"`
	Visibility            string                   `yaml:"visibility,omitempty"` // public (default), private, current
	Properties            map[string]PropertyValue `yaml:"properties,omitempty"`
	Rulesets              []RulesetEntry           `yaml:"rulesets,omitempty"`
	Heroku                *HerokuSettings          `yaml:"heroku,omitempty"`

	// NpmTrustedPublisher asks the github plugin to maintain the npm
	// trusted-publisher environment on this repository
	NpmTrustedPublisher bool `yaml:"npm_trusted_publisher,omitempty"`

	// filled by normalization: name references replaced by the concrete
	// common ruleset
	resolvedRulesets []*Ruleset
}

// EffectiveVisibility returns the declared visibility, defaulting to
// public. "current" means "do not touch".
func (r *RepositoryConfig) EffectiveVisibility() string {
	if r.Visibility == "" {
		return "public"
	}
	return r.Visibility
}

// ResolvedRulesets returns the concrete rulesets of the repository,
// name references already replaced. Only valid after normalization.
func (r *RepositoryConfig) ResolvedRulesets() []*Ruleset {
	return r.resolvedRulesets
}

// SetResolvedRulesets is used by the generator and by tests to build a
// repository config without going through YAML.
func (r *RepositoryConfig) SetResolvedRulesets(rulesets []*Ruleset) {
	r.resolvedRulesets = rulesets
}

func (r *RepositoryConfig) validate(orgname string, teams map[string]*TeamConfig) *ConfigError {
	if r.Name == "" {
		return NewConfigInvalid("org %s: repository with empty name", orgname)
	}
	switch r.Visibility {
	case "", "public", "private", "current":
	default:
		return NewConfigInvalid("org %s: repo %s has invalid visibility %q", orgname, r.Name, r.Visibility)
	}
	for team, level := range r.Teams {
		if _, ok := teams[team]; !ok {
			return NewConfigInvalid("org %s: repo %s grants access to unknown team %s", orgname, r.Name, team)
		}
		if _, err := ParseAccessLevel(string(level)); err != nil {
			return NewConfigInvalid("org %s: repo %s team %s: %v", orgname, r.Name, team, err)
		}
	}
	for login, level := range r.ExternalCollaborators {
		if login == "" {
			return NewConfigInvalid("org %s: repo %s has an external collaborator with empty login", orgname, r.Name)
		}
		if _, err := ParseAccessLevel(string(level)); err != nil {
			return NewConfigInvalid("org %s: repo %s collaborator %s: %v", orgname, r.Name, login, err)
		}
	}

	names := make(map[string]bool)
	for _, rs := range r.resolvedRulesets {
		if err := rs.validate(orgname, "repo "+r.Name); err != nil {
			return err
		}
		if names[rs.Name] {
			return NewConfigInvalid("org %s: repo %s declares ruleset %s twice", orgname, r.Name, rs.Name)
		}
		names[rs.Name] = true
		if rs.Bypass != nil {
			for _, team := range rs.Bypass.Teams {
				if _, ok := teams[team]; !ok {
					return NewConfigInvalid("org %s: repo %s ruleset %s bypass references unknown team %s", orgname, r.Name, rs.Name, team)
				}
			}
		}
	}
	return nil
}
