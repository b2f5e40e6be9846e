package hub_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cwrk-planet/session-service/internal/hub"
	"github.com/cwrk-planet/session-service/internal/hub/hubtest"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterSnapshotRemove(t *testing.T) {
	req := require.New(t)
	reg := hub.NewRegistry()
	a, b := hubtest.NewConn(), hubtest.NewConn()

	// Given two connections in room r1 and one in r2
	reg.Register("r1", a)
	reg.Register("r1", b)
	reg.Register("r2", a)

	req.ElementsMatch([]hub.Conn{a, b}, reg.Snapshot("r1"))
	req.Equal(2, reg.Count("r1"))
	req.Equal(1, reg.Count("r2"))
	req.ElementsMatch([]string{"r1", "r2"}, reg.Keys())
	req.Equal(3, reg.Total())

	// When one leaves r1
	req.True(reg.Remove("r1", a))
	req.False(reg.Remove("r1", a))

	// Then r2 is untouched
	req.Equal([]hub.Conn{b}, reg.Snapshot("r1"))
	req.Equal(1, reg.Count("r2"))
}

func TestRegistry_LastRemovalDropsKey(t *testing.T) {
	reg := hub.NewRegistry()
	c := hubtest.NewConn()

	reg.Register("r1", c)
	require.True(t, reg.Remove("r1", c))

	require.Empty(t, reg.Keys())
	require.Nil(t, reg.Snapshot("r1"))
	require.Zero(t, reg.Count("r1"))
	require.False(t, reg.Remove("missing", c))

	// the key comes back on the next registration
	reg.Register("r1", c)
	require.Equal(t, 1, reg.Count("r1"))
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	reg := hub.NewRegistry()
	a, b := hubtest.NewConn(), hubtest.NewConn()
	reg.Register("r1", a)

	snap := reg.Snapshot("r1")
	reg.Register("r1", b)
	reg.Remove("r1", a)

	require.Equal(t, []hub.Conn{a}, snap)
	require.Equal(t, []hub.Conn{b}, reg.Snapshot("r1"))
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := hub.NewRegistry()
	a, b := hubtest.NewConn(), hubtest.NewConn()
	b.FailClose(errors.New("broken pipe"))
	reg.Register("r1", a)
	reg.Register("r2", b)

	require.Equal(t, 2, reg.CloseAll(1001, "server shutting down"))
	require.Zero(t, reg.Total())

	code, reason, ok := a.Closed()
	require.True(t, ok)
	require.Equal(t, 1001, code)
	require.Equal(t, "server shutting down", reason)
	_, _, ok = b.Closed()
	require.True(t, ok)
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	reg := hub.NewRegistry()
	const rooms, perRoom = 8, 50

	var wg sync.WaitGroup
	keep := make([][]*hubtest.Conn, rooms)
	for r := 0; r < rooms; r++ {
		key := fmt.Sprintf("room-%d", r)
		for i := 0; i < perRoom; i++ {
			c := hubtest.NewConn()
			if i%2 == 0 {
				keep[r] = append(keep[r], c)
			}
			wg.Add(1)
			go func(i int, c *hubtest.Conn) {
				defer wg.Done()
				reg.Register(key, c)
				_ = reg.Snapshot(key)
				if i%2 == 1 {
					reg.Remove(key, c)
				}
			}(i, c)
		}
	}
	wg.Wait()

	require.Equal(t, rooms*perRoom/2, reg.Total())
	for r := 0; r < rooms; r++ {
		key := fmt.Sprintf("room-%d", r)
		got := reg.Snapshot(key)
		require.Len(t, got, len(keep[r]))
		for _, c := range keep[r] {
			require.Contains(t, got, hub.Conn(c))
		}
	}
}
