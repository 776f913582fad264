package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/cache"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/gateway"
	"github.com/dmitrijs2005/gophauth/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddedService(t *testing.T) *UserService {
	t.Helper()
	cfg := testConfig()
	cfg.DataDir = t.TempDir()
	cfg.Environment = "test"

	bus := events.NewBus(nil)
	c := cache.New(cfg.CacheSize, cfg.CacheTTL, nil)
	events.CacheCleaner(bus, c, common.UsersNamespace, cfg.CacheCleanEvents...)

	st, err := store.Open(context.Background(), cfg, events.MutationPublisher(bus, common.UsersNamespace, gateway.EventMeta), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
		_ = store.CleanEmbedded(cfg)
	})

	tokens := auth.NewTokenService([]byte(cfg.SecretKey), cfg.TokenValidityDuration, st)
	return NewUserService(st, tokens, c, cfg, nil)
}

func TestEmbedded_RegisterLoginFlow(t *testing.T) {
	svc := newEmbeddedService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, creds("alice", "secret1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", created.User.Username)
	require.NotEmpty(t, created.User.Token)

	logged, err := svc.Login(ctx, creds("alice", "secret1"))
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, logged.User.ID)

	u, err := svc.ResolveToken(ctx, logged.User.Token)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, created.User.ID, u.ID)

	_, err = svc.Login(ctx, creds("alice", "wrong"))
	assert.ErrorIs(t, err, common.ErrCredentialMismatch)
}

func TestEmbedded_ConcurrentRegistration(t *testing.T) {
	svc := newEmbeddedService(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), creds("racer", "secret1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		if !errors.Is(err, common.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)

	page, err := svc.List(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
