package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client), mr, client
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	store, _, _ := setupStore(t)

	c, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestStore_SaveLoad(t *testing.T) {
	store, mr, _ := setupStore(t)
	ctx := context.Background()

	c, a, _ := filledCart()
	require.NoError(t, store.Save(ctx, "cart-1", c))

	assert.True(t, mr.Exists("cart:cart-1"))
	assert.Equal(t, TTL, mr.TTL("cart:cart-1"))

	loaded, err := store.Load(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.TotalItems())
	assert.True(t, c.TotalPrice().Equal(loaded.TotalPrice()))
	line, ok := loaded.Line(a.ID)
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
}

func TestStore_SaveEmptyDeletes(t *testing.T) {
	store, mr, _ := setupStore(t)
	ctx := context.Background()

	c, _, _ := filledCart()
	require.NoError(t, store.Save(ctx, "cart-1", c))
	c.Clear()
	require.NoError(t, store.Save(ctx, "cart-1", c))

	assert.False(t, mr.Exists("cart:cart-1"))
}

func TestStore_InvalidJSON(t *testing.T) {
	store, mr, _ := setupStore(t)
	require.NoError(t, mr.Set("cart:broken", "{not json"))

	_, err := store.Load(context.Background(), "broken")
	assert.Error(t, err)
}

func TestStore_PublishesChanges(t *testing.T) {
	store, _, client := setupStore(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel("cart-9"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	c, _, _ := filledCart()
	require.NoError(t, store.Save(ctx, "cart-9", c))
	require.NoError(t, store.Delete(ctx, "cart-9"))

	for _, want := range []string{EventUpdated, EventCleared} {
		select {
		case msg := <-ch:
			assert.Equal(t, want, msg.Payload)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %q message", want)
		}
	}
}
