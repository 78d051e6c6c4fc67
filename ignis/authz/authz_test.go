package authz

import (
	"testing"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	az, err := New(db, "")
	require.NoError(t, err)
	return az
}

func TestGrantAndCheckPermission(t *testing.T) {
	az := newTestAuthorizer(t)
	require.NoError(t, az.GrantPermission("editor", "posts", "write"))
	require.NoError(t, az.AssignRole("alice", "editor"))

	ok, err := az.Can("alice", "posts", "write")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequireDeniesUnassignedSubject(t *testing.T) {
	az := newTestAuthorizer(t)
	require.NoError(t, az.GrantPermission("editor", "posts", "write"))

	err := az.Require("bob", "posts", "write")
	require.Error(t, err)
	assert.Equal(t, igniserr.KindForbidden, igniserr.KindOf(err))
}

func TestRevokePermissionRemovesAccess(t *testing.T) {
	az := newTestAuthorizer(t)
	require.NoError(t, az.GrantPermission("editor", "posts", "write"))
	require.NoError(t, az.AssignRole("alice", "editor"))
	require.NoError(t, az.RevokePermission("editor", "posts", "write"))

	ok, err := az.Can("alice", "posts", "write")
	require.NoError(t, err)
	assert.False(t, ok)
}
