package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialgate/internal/ledger"
	"trialgate/internal/token"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// codeVault hands out each code's role exactly once.
type codeVault struct {
	mu    sync.Mutex
	codes map[string]id.Role
}

func newCodeVault(codes map[string]id.Role) *codeVault {
	return &codeVault{codes: codes}
}

func (v *codeVault) ConsumeCode(_ context.Context, code string) (id.Role, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	role, ok := v.codes[code]
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "invalid or already used registration code")
	}
	delete(v.codes, code)
	return role, nil
}

type identityFixture struct {
	service *Service
	store   *InMemoryStore
	vault   *codeVault
}

func newIdentityFixture(codes map[string]id.Role) *identityFixture {
	store := NewInMemoryStore()
	vault := newCodeVault(codes)
	tokens := token.NewService([]byte("test-signing-key"), time.Hour)
	events := ledger.NewPublisher(ledger.NewInMemoryStore())
	return &identityFixture{
		service: NewService(store, vault, tokens, events),
		store:   store,
		vault:   vault,
	}
}

func TestRegister(t *testing.T) {
	t.Run("site-bound actor registers with a site up front", func(t *testing.T) {
		f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleInvestigator})

		actor, err := f.service.Register(context.Background(), "  Alice  ", "correct-horse", "code-1", "SITEA")
		require.NoError(t, err)
		assert.Equal(t, "alice", actor.Username)
		assert.Equal(t, id.RoleInvestigator, actor.Role)
		assert.Equal(t, id.SiteCode("SITEA"), actor.Site)
	})

	t.Run("global role rejects a site", func(t *testing.T) {
		f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleDepot})

		_, err := f.service.Register(context.Background(), "dave", "correct-horse", "code-1", "SITEA")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("short password is rejected before the code is touched", func(t *testing.T) {
		f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleMonitor})

		_, err := f.service.Register(context.Background(), "alice", "short", "code-1", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		// The code survives for a corrected retry.
		_, err = f.service.Register(context.Background(), "alice", "correct-horse", "code-1", "SITEA")
		require.NoError(t, err)
	})

	t.Run("taken username does not burn the code", func(t *testing.T) {
		f := newIdentityFixture(map[string]id.Role{
			"code-1": id.RoleInvestigator,
			"code-2": id.RoleInvestigator,
		})
		_, err := f.service.Register(context.Background(), "alice", "correct-horse", "code-1", "SITEA")
		require.NoError(t, err)

		_, err = f.service.Register(context.Background(), "ALICE", "other-password", "code-2", "SITEB")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		_, err = f.service.Register(context.Background(), "bob", "other-password", "code-2", "SITEB")
		require.NoError(t, err)
	})

	t.Run("a code registers exactly one actor", func(t *testing.T) {
		f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleMonitor})
		_, err := f.service.Register(context.Background(), "alice", "correct-horse", "code-1", "")
		require.NoError(t, err)

		_, err = f.service.Register(context.Background(), "bob", "correct-horse", "code-1", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestLogin(t *testing.T) {
	f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleInvestigator})
	ctx := context.Background()
	_, err := f.service.Register(ctx, "alice", "correct-horse", "code-1", "SITEA")
	require.NoError(t, err)

	t.Run("valid credentials yield a resolvable token", func(t *testing.T) {
		tok, actor, err := f.service.Login(ctx, "Alice", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, "alice", actor.Username)

		ident, err := f.service.ResolveToken(tok)
		require.NoError(t, err)
		assert.Equal(t, "alice", ident.Username)
		assert.Equal(t, id.RoleInvestigator, ident.Role)
		assert.Equal(t, id.SiteScope("SITEA"), ident.Scope)
	})

	t.Run("wrong password and unknown user fail identically", func(t *testing.T) {
		_, _, wrongPass := f.service.Login(ctx, "alice", "not-the-password")
		require.Error(t, wrongPass)
		assert.True(t, dErrors.HasCode(wrongPass, dErrors.CodeUnauthenticated))

		_, _, unknown := f.service.Login(ctx, "mallory", "correct-horse")
		require.Error(t, unknown)
		assert.Equal(t, wrongPass.Error(), unknown.Error())
	})
}

func TestResolveToken(t *testing.T) {
	f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleInvestigator})
	ctx := context.Background()
	_, err := f.service.Register(ctx, "alice", "correct-horse", "code-1", "")
	require.NoError(t, err)

	tok, _, err := f.service.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	t.Run("unassigned site-bound actor resolves to an empty site scope", func(t *testing.T) {
		ident, err := f.service.ResolveToken(tok)
		require.NoError(t, err)
		assert.Equal(t, id.SiteScope(""), ident.Scope)
	})

	t.Run("site assignment takes effect without re-login", func(t *testing.T) {
		_, err := f.service.AssignSite(ctx, "alice", "SITEA")
		require.NoError(t, err)

		ident, err := f.service.ResolveToken(tok)
		require.NoError(t, err)
		assert.Equal(t, id.SiteScope("SITEA"), ident.Scope)
	})

	t.Run("token for a vanished actor is rejected", func(t *testing.T) {
		other := newIdentityFixture(nil)
		_, err := other.service.ResolveToken(tok)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("stored role is normalized before capability checks", func(t *testing.T) {
		f := newIdentityFixture(nil)
		now := time.Now()
		require.NoError(t, f.store.Create(ctx, &Actor{
			Username:  "ines",
			Role:      id.Role(" Investigator "),
			Site:      "SITEA",
			CreatedAt: now,
			UpdatedAt: now,
		}))

		tokens := token.NewService([]byte("test-signing-key"), time.Hour)
		raw, err := tokens.Issue("ines", id.RoleInvestigator, "SITEA", now)
		require.NoError(t, err)

		ident, err := f.service.ResolveToken(raw)
		require.NoError(t, err)
		assert.Equal(t, id.RoleInvestigator, ident.Role)
		assert.Equal(t, id.SiteScope("SITEA"), ident.Scope)
	})

	t.Run("unrecognizable stored role is unauthenticated", func(t *testing.T) {
		f := newIdentityFixture(nil)
		now := time.Now()
		require.NoError(t, f.store.Create(ctx, &Actor{
			Username: "sue", Role: id.Role("superuser"), CreatedAt: now, UpdatedAt: now,
		}))

		tokens := token.NewService([]byte("test-signing-key"), time.Hour)
		raw, err := tokens.Issue("sue", id.Role("superuser"), "", now)
		require.NoError(t, err)

		_, err = f.service.ResolveToken(raw)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})
}

func TestAssignSite(t *testing.T) {
	t.Run("assignment happens once, ever", func(t *testing.T) {
		f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleMonitor})
		ctx := context.Background()
		_, err := f.service.Register(ctx, "mona", "correct-horse", "code-1", "")
		require.NoError(t, err)

		actor, err := f.service.AssignSite(ctx, "mona", "SITEA")
		require.NoError(t, err)
		assert.Equal(t, id.SiteCode("SITEA"), actor.Site)

		_, err = f.service.AssignSite(ctx, "mona", "SITEB")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("global roles never carry a site", func(t *testing.T) {
		f := newIdentityFixture(map[string]id.Role{"code-1": id.RoleDepot})
		ctx := context.Background()
		_, err := f.service.Register(ctx, "dave", "correct-horse", "code-1", "")
		require.NoError(t, err)

		_, err = f.service.AssignSite(ctx, "dave", "SITEA")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown actor is not found", func(t *testing.T) {
		f := newIdentityFixture(nil)
		_, err := f.service.AssignSite(context.Background(), "ghost", "SITEA")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestNormalizeUsername(t *testing.T) {
	u, err := NormalizeUsername("  MiXeD  ")
	require.NoError(t, err)
	assert.Equal(t, "mixed", u)

	_, err = NormalizeUsername("   ")
	require.Error(t, err)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NormalizeUsername(string(long))
	require.Error(t, err)
}
