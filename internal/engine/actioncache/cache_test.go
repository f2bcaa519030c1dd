package actioncache_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/anvil/internal/core/ports/mocks"
	"go.trai.ch/anvil/internal/engine/actioncache"
	"go.uber.org/mock/gomock"
)

func TestCache_InsertIfAbsent(t *testing.T) {
	c := actioncache.New(nil)

	slot, inserted := c.InsertIfAbsent(10)
	require.True(t, inserted)
	assert.Zero(t, slot.Load())

	again, inserted := c.InsertIfAbsent(10)
	assert.False(t, inserted)
	assert.Same(t, slot, again)

	_, ok := c.Lookup(10)
	assert.False(t, ok, "an empty slot is not a completed entry")
	assert.Equal(t, 0, c.Len())

	slot.Store(99)
	v, ok := c.Lookup(10)
	require.True(t, ok)
	assert.Equal(t, uint64(99), v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_InsertIfAbsent_Concurrent(t *testing.T) {
	c := actioncache.New(nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.InsertIfAbsent(7); ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)
}

func TestCache_LoadSave(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStateStore(ctrl)

	store.EXPECT().LoadActions(gomock.Any()).Return(map[uint64]uint64{1: 11, 2: 0}, nil)
	c := actioncache.New(store)
	require.NoError(t, c.Load(t.Context()))

	v, ok := c.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint64(11), v)
	_, ok = c.Lookup(2)
	assert.False(t, ok)

	fresh, _ := c.InsertIfAbsent(3)
	fresh.Store(33)
	c.InsertIfAbsent(4)

	store.EXPECT().SaveActions(gomock.Any(), map[uint64]uint64{1: 11, 3: 33}).Return(nil)
	require.NoError(t, c.Save(t.Context()))
}

func TestCache_SaveError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStateStore(ctrl)
	store.EXPECT().SaveActions(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	c := actioncache.New(store)
	err := c.Save(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save action cache")
}
