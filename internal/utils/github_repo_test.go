package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkipRepo(t *testing.T) {

	t.Run("happy path: regular repositories are not skipped", func(t *testing.T) {
		assert.False(t, SkipRepo("my-repo"))
		assert.False(t, SkipRepo("ghsa-tools"))
	})

	t.Run("happy path: security advisory forks are skipped", func(t *testing.T) {
		assert.True(t, SkipRepo("myrepo-ghsa-abcd-ef12-3456"))
		assert.True(t, IsSecurityAdvisoryFork("lib-ghsa-1111-2222-3333"))
	})

	t.Run("happy path: almost-advisory names are kept", func(t *testing.T) {
		assert.False(t, IsSecurityAdvisoryFork("myrepo-ghsa-abcd-ef12"))
		assert.False(t, IsSecurityAdvisoryFork("-ghsa-abcd-ef12-3456"))
	})

	t.Run("happy path: poisoned repositories are skipped by hash", func(t *testing.T) {
		h := sha256.Sum256([]byte("poisoned-repo"))
		key := hex.EncodeToString(h[:])
		GlitchedRepoHashes[key] = true
		defer delete(GlitchedRepoHashes, key)

		assert.True(t, IsGlitchedRepo("poisoned-repo"))
		assert.True(t, SkipRepo("poisoned-repo"))
		assert.False(t, IsGlitchedRepo("healthy-repo"))
	})
}
