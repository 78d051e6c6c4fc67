package authn

import (
	"context"
	"testing"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name string
	user *User
	err  error
}

func (s stubStrategy) Name() string { return s.name }
func (s stubStrategy) Authenticate(ctx context.Context, r Request) (*User, error) {
	return s.user, s.err
}

func TestAuthenticateAnyModeFirstSuccessWins(t *testing.T) {
	reg := &Registry{strategies: map[string]Strategy{}}
	reg.Register(stubStrategy{name: "jwt", user: nil})
	reg.Register(stubStrategy{name: "basic", user: &User{ID: "u1"}})

	ctx, err := Authenticate(context.Background(), reg, []string{"jwt", "basic"}, ModeAny, Request{})
	require.NoError(t, err)
	u, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
}

func TestAuthenticateAnyModeAllFailRaisesUnauthenticated(t *testing.T) {
	reg := &Registry{strategies: map[string]Strategy{}}
	reg.Register(stubStrategy{name: "jwt", user: nil})
	reg.Register(stubStrategy{name: "basic", user: nil})

	_, err := Authenticate(context.Background(), reg, []string{"jwt", "basic"}, ModeAny, Request{})
	require.Error(t, err)
	assert.Equal(t, igniserr.KindUnauthenticated, igniserr.KindOf(err))
}

func TestAuthenticateAllModeRequiresEveryStrategy(t *testing.T) {
	reg := &Registry{strategies: map[string]Strategy{}}
	reg.Register(stubStrategy{name: "jwt", user: &User{ID: "u1"}})
	reg.Register(stubStrategy{name: "basic", user: nil})

	_, err := Authenticate(context.Background(), reg, []string{"jwt", "basic"}, ModeAll, Request{})
	require.Error(t, err)
}

func TestAuthenticateAllModeLastUserWins(t *testing.T) {
	reg := &Registry{strategies: map[string]Strategy{}}
	reg.Register(stubStrategy{name: "jwt", user: &User{ID: "u1"}})
	reg.Register(stubStrategy{name: "basic", user: &User{ID: "u2"}})

	ctx, err := Authenticate(context.Background(), reg, []string{"jwt", "basic"}, ModeAll, Request{})
	require.NoError(t, err)
	u, _ := UserFromContext(ctx)
	assert.Equal(t, "u2", u.ID)
}

func TestAuthenticateUnknownStrategyRaisesUnauthenticated(t *testing.T) {
	reg := &Registry{strategies: map[string]Strategy{}}
	_, err := Authenticate(context.Background(), reg, []string{"missing"}, ModeAny, Request{})
	require.Error(t, err)
	assert.Equal(t, igniserr.KindUnauthenticated, igniserr.KindOf(err))
}
