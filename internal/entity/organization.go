package entity

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type RepositoryDefaults struct {
	HasWiki                  *bool `yaml:"has_wiki"`
	ForksNeedActionsApproval *bool `yaml:"forks_need_actions_approval,omitempty"`
}

type OrganizationConfig struct {
	Organization       string              `yaml:"organization"`
	RepositoryDefaults RepositoryDefaults  `yaml:"repository_defaults"`
	Teams              []*TeamConfig       `yaml:"teams"`
	Repositories       []*RepositoryConfig `yaml:"repositories"`
	CommonRulesets     []*Ruleset          `yaml:"common_rulesets,omitempty"`
	CustomProperties   []*CustomProperty   `yaml:"customProperties,omitempty"`
}

// Team returns the declared team by name, or nil.
func (o *OrganizationConfig) Team(name string) *TeamConfig {
	for _, t := range o.Teams {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Repository returns the declared repository by name, or nil.
func (o *OrganizationConfig) Repository(name string) *RepositoryConfig {
	for _, r := range o.Repositories {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Property returns the declared custom property by name, or nil.
func (o *OrganizationConfig) Property(name string) *CustomProperty {
	for _, p := range o.CustomProperties {
		if p.PropertyName == name {
			return p
		}
	}
	return nil
}

/*
 * PermissionsConfig is the whole document: one organization or an
 * ordered list of them.
 */
type PermissionsConfig struct {
	Organizations []*OrganizationConfig
}

func (p *PermissionsConfig) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		return value.Decode(&p.Organizations)
	case yaml.MappingNode:
		org := &OrganizationConfig{}
		if err := value.Decode(org); err != nil {
			return err
		}
		p.Organizations = []*OrganizationConfig{org}
		return nil
	}
	return fmt.Errorf("permissions document must be an organization or a list of organizations")
}

// Org returns the OrganizationConfig matching name, or nil.
func (p *PermissionsConfig) Org(name string) *OrganizationConfig {
	for _, o := range p.Organizations {
		if o.Organization == name {
			return o
		}
	}
	return nil
}

/*
 * Normalize rewrites the two legacy team shapes into concrete teams and
 * resolves ruleset name references, in that order:
 * 1. formation: union of the listed teams of the same org
 * 2. reference: mirror of "<org>/<team>" from another org
 * Offenders whose source cannot be found are left in place for Validate
 * to report.
 */
func (p *PermissionsConfig) Normalize() {
	for _, org := range p.Organizations {
		for _, team := range org.Teams {
			if len(team.Formation) > 0 {
				expandFormation(org, team)
			}
		}
	}
	// references can point at freshly expanded formations, so this pass
	// runs strictly after the one above
	for _, org := range p.Organizations {
		for _, team := range org.Teams {
			if team.Reference != "" {
				expandReference(p, team)
			}
		}
	}
	for _, org := range p.Organizations {
		for _, repo := range org.Repositories {
			repo.resolvedRulesets = repo.resolvedRulesets[:0]
			for _, entry := range repo.Rulesets {
				if entry.Ruleset != nil {
					repo.resolvedRulesets = append(repo.resolvedRulesets, entry.Ruleset)
					continue
				}
				for _, common := range org.CommonRulesets {
					if common.Name == entry.Ref {
						repo.resolvedRulesets = append(repo.resolvedRulesets, common)
						break
					}
				}
			}
		}
	}
}

func expandFormation(org *OrganizationConfig, team *TeamConfig) {
	maintainers := make(map[string]bool)
	members := make(map[string]bool)
	for _, source := range team.Formation {
		src := org.Team(source)
		if src == nil || src == team {
			continue
		}
		for _, m := range src.Maintainers {
			maintainers[m] = true
		}
		for _, m := range src.Members {
			members[m] = true
		}
	}
	team.Maintainers = sortedKeys(maintainers)
	team.Members = nil
	for _, m := range sortedKeys(members) {
		if !maintainers[m] {
			team.Members = append(team.Members, m)
		}
	}
	team.Formation = nil
}

func expandReference(p *PermissionsConfig, team *TeamConfig) {
	parts := strings.SplitN(team.Reference, "/", 2)
	if len(parts) != 2 {
		return
	}
	srcOrg := p.Org(parts[0])
	if srcOrg == nil {
		return
	}
	src := srcOrg.Team(parts[1])
	if src == nil {
		return
	}
	team.Maintainers = append([]string{}, src.Maintainers...)
	team.Members = append([]string{}, src.Members...)
	if team.DisplayName == "" {
		team.DisplayName = src.DisplayName
	}
	if team.Gsuite == nil {
		team.Gsuite = src.Gsuite
	}
	if team.Slack == nil {
		team.Slack = src.Slack
	}
	team.Reference = ""
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate runs the schema and cross-entity integrity checks on every
// organization. Normalize must have run first.
func (p *PermissionsConfig) Validate() *ConfigError {
	for _, org := range p.Organizations {
		if err := org.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *OrganizationConfig) Validate() *ConfigError {
	if o.Organization == "" {
		return NewConfigInvalid("organization with empty name")
	}
	if o.RepositoryDefaults.HasWiki == nil {
		return NewConfigInvalid("org %s: repository_defaults.has_wiki is required", o.Organization)
	}

	for _, team := range o.Teams {
		if len(team.Formation) > 0 {
			return NewConfigInvalid("org %s: team %s formation references unknown teams", o.Organization, team.Name)
		}
		if team.Reference != "" {
			return NewConfigInvalid("org %s: team %s references unknown team %s", o.Organization, team.Name, team.Reference)
		}
	}

	teams := make(map[string]*TeamConfig)
	for _, team := range o.Teams {
		if _, ok := teams[team.Name]; ok {
			return NewConfigInvalid("org %s: team %s declared twice", o.Organization, team.Name)
		}
		teams[team.Name] = team
	}
	for _, team := range o.Teams {
		if err := team.validate(o.Organization, teams); err != nil {
			return err
		}
	}

	properties := make(map[string]*CustomProperty)
	for _, prop := range o.CustomProperties {
		if _, ok := properties[prop.PropertyName]; ok {
			return NewConfigInvalid("org %s: custom property %s declared twice", o.Organization, prop.PropertyName)
		}
		if err := prop.validate(o.Organization); err != nil {
			return err
		}
		properties[prop.PropertyName] = prop
	}

	commonNames := make(map[string]bool)
	for _, rs := range o.CommonRulesets {
		if err := rs.validate(o.Organization, "common_rulesets"); err != nil {
			return err
		}
		if commonNames[rs.Name] {
			return NewConfigInvalid("org %s: common ruleset %s declared twice", o.Organization, rs.Name)
		}
		commonNames[rs.Name] = true
	}

	repos := make(map[string]bool)
	for _, repo := range o.Repositories {
		if repos[repo.Name] {
			return NewConfigInvalid("org %s: repository %s declared twice", o.Organization, repo.Name)
		}
		repos[repo.Name] = true

		// every name reference must have been resolved against
		// common_rulesets by Normalize
		inline := 0
		for _, entry := range repo.Rulesets {
			if entry.Ruleset != nil {
				inline++
				continue
			}
			if !commonNames[entry.Ref] {
				return NewConfigInvalid("org %s: repo %s references unknown common ruleset %s", o.Organization, repo.Name, entry.Ref)
			}
		}
		if len(repo.resolvedRulesets) != len(repo.Rulesets) {
			return NewConfigInvalid("org %s: repo %s has unresolved ruleset references", o.Organization, repo.Name)
		}

		if err := repo.validate(o.Organization, teams); err != nil {
			return err
		}

		for name, value := range repo.Properties {
			prop, ok := properties[name]
			if !ok {
				return NewConfigInvalid("org %s: repo %s sets undeclared custom property %s", o.Organization, repo.Name, name)
			}
			if err := prop.checkValue(o.Organization, fmt.Sprintf("on repo %s", repo.Name), value); err != nil {
				return err
			}
		}
	}

	return nil
}
