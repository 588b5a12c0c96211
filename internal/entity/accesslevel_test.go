package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessLevel(t *testing.T) {

	t.Run("happy path: every level survives the github mapping", func(t *testing.T) {
		for _, level := range []AccessLevel{AccessRead, AccessTriage, AccessWrite, AccessMaintain, AccessAdmin} {
			back, ok := AccessLevelFromGithubPermission(level.GithubPermission())
			assert.True(t, ok)
			assert.Equal(t, level, back)
		}
	})

	t.Run("happy path: read and write translate to pull and push", func(t *testing.T) {
		assert.Equal(t, "pull", AccessRead.GithubPermission())
		assert.Equal(t, "push", AccessWrite.GithubPermission())
		assert.Equal(t, "maintain", AccessMaintain.GithubPermission())
	})

	t.Run("happy path: both vocabularies parse back", func(t *testing.T) {
		for wire, expected := range map[string]AccessLevel{
			"pull": AccessRead, "read": AccessRead,
			"push": AccessWrite, "write": AccessWrite,
		} {
			level, ok := AccessLevelFromGithubPermission(wire)
			assert.True(t, ok)
			assert.Equal(t, expected, level)
		}
	})

	t.Run("error path: unknown permission names", func(t *testing.T) {
		_, err := ParseAccessLevel("push")
		assert.Error(t, err)
		_, ok := AccessLevelFromGithubPermission("owner")
		assert.False(t, ok)
	})

	t.Run("happy path: highest bitmap flag wins", func(t *testing.T) {
		level, ok := AccessLevelFromPermissions(map[string]bool{"pull": true, "push": true, "admin": true})
		assert.True(t, ok)
		assert.Equal(t, AccessAdmin, level)

		level, ok = AccessLevelFromPermissions(map[string]bool{"pull": true, "triage": true})
		assert.True(t, ok)
		assert.Equal(t, AccessTriage, level)
	})

	t.Run("error path: empty bitmap", func(t *testing.T) {
		_, ok := AccessLevelFromPermissions(map[string]bool{})
		assert.False(t, ok)
	})
}
