package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validateTeams(teams ...*TeamConfig) *ConfigError {
	index := make(map[string]*TeamConfig)
	for _, team := range teams {
		index[team.Name] = team
	}
	for _, team := range teams {
		if err := team.validate("myorg", index); err != nil {
			return err
		}
	}
	return nil
}

func strptr(s string) *string {
	return &s
}

func TestTeamValidate(t *testing.T) {

	t.Run("happy path: a concrete team", func(t *testing.T) {
		err := validateTeams(&TeamConfig{Name: "core", Maintainers: []string{"alice"}, Members: []string{"bob"}})
		assert.Nil(t, err)
	})

	t.Run("error path: a team needs at least one maintainer", func(t *testing.T) {
		err := validateTeams(&TeamConfig{Name: "core", Members: []string{"bob"}})
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "at least one maintainer")
	})

	t.Run("error path: a login cannot be member and maintainer", func(t *testing.T) {
		err := validateTeams(&TeamConfig{Name: "core", Maintainers: []string{"alice"}, Members: []string{"alice"}})
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "both member and maintainer")
	})

	t.Run("error path: empty logins", func(t *testing.T) {
		err := validateTeams(&TeamConfig{Name: "core", Maintainers: []string{""}})
		assert.NotNil(t, err)
	})

	t.Run("happy path: gsuite with displayName and privacy", func(t *testing.T) {
		err := validateTeams(&TeamConfig{
			Name:        "core",
			Maintainers: []string{"alice"},
			DisplayName: "Core Team",
			Gsuite:      &GsuiteSettings{Privacy: "internal"},
		})
		assert.Nil(t, err)
	})

	t.Run("error path: gsuite without displayName", func(t *testing.T) {
		err := validateTeams(&TeamConfig{
			Name:        "core",
			Maintainers: []string{"alice"},
			Gsuite:      &GsuiteSettings{Privacy: "internal"},
		})
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "displayName")
	})

	t.Run("error path: gsuite privacy outside internal and external", func(t *testing.T) {
		err := validateTeams(&TeamConfig{
			Name:        "core",
			Maintainers: []string{"alice"},
			DisplayName: "Core Team",
			Gsuite:      &GsuiteSettings{Privacy: "org"},
		})
		assert.NotNil(t, err)
	})

	t.Run("happy path: nested teams", func(t *testing.T) {
		err := validateTeams(
			&TeamConfig{Name: "parent", Maintainers: []string{"alice"}},
			&TeamConfig{Name: "child", Maintainers: []string{"bob"}, Parent: strptr("parent")},
		)
		assert.Nil(t, err)
	})

	t.Run("error path: unknown parent", func(t *testing.T) {
		err := validateTeams(&TeamConfig{Name: "child", Maintainers: []string{"bob"}, Parent: strptr("ghost")})
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "unknown parent")
	})

	t.Run("error path: secret team with a parent", func(t *testing.T) {
		err := validateTeams(
			&TeamConfig{Name: "parent", Maintainers: []string{"alice"}},
			&TeamConfig{Name: "child", Maintainers: []string{"bob"}, Secret: true, Parent: strptr("parent")},
		)
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "secret")
	})

	t.Run("error path: secret parent team", func(t *testing.T) {
		err := validateTeams(
			&TeamConfig{Name: "parent", Maintainers: []string{"alice"}, Secret: true},
			&TeamConfig{Name: "child", Maintainers: []string{"bob"}, Parent: strptr("parent")},
		)
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "secret parent")
	})

	t.Run("error path: a team cannot be its own parent", func(t *testing.T) {
		err := validateTeams(&TeamConfig{Name: "core", Maintainers: []string{"alice"}, Parent: strptr("core")})
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "cycle")
	})

	t.Run("error path: longer parent cycles", func(t *testing.T) {
		err := validateTeams(
			&TeamConfig{Name: "a", Maintainers: []string{"alice"}, Parent: strptr("b")},
			&TeamConfig{Name: "b", Maintainers: []string{"bob"}, Parent: strptr("a")},
		)
		assert.NotNil(t, err)
		assert.Contains(t, err.Message, "cycle")
	})
}
