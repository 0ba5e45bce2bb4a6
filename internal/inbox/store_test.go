package inbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/inbox-sync-go/internal/model"
)

func TestStore(t *testing.T) {
	t.Run("notifies subscribers with the new state", func(t *testing.T) {
		store := NewStore(State{Selection: model.SelectAll()})
		var seen []State
		store.Subscribe(func(st State) { seen = append(seen, st) })

		store.Update(func(st State) State {
			st.IsLoading = true
			return st
		})

		assert.Len(t, seen, 1)
		assert.True(t, seen[0].IsLoading)
		assert.True(t, store.GetState().IsLoading)
	})

	t.Run("skips notification when nothing changed", func(t *testing.T) {
		store := NewStore(State{Selection: model.SelectAll()})
		calls := 0
		store.Subscribe(func(State) { calls++ })

		store.Update(func(st State) State { return st })

		assert.Zero(t, calls)
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		store := NewStore(State{})
		calls := 0
		unsubscribe := store.Subscribe(func(State) { calls++ })
		unsubscribe()

		store.Update(func(st State) State {
			st.Epoch++
			return st
		})

		assert.Zero(t, calls)
	})

	t.Run("listeners may read the store", func(t *testing.T) {
		store := NewStore(State{})
		var read uint64
		store.Subscribe(func(State) { read = store.GetState().Epoch })

		store.Update(func(st State) State {
			st.Epoch = 7
			return st
		})

		assert.Equal(t, uint64(7), read)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		store := NewStore(State{})
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.Update(func(st State) State {
					st.Epoch++
					return st
				})
			}()
		}
		wg.Wait()

		assert.Equal(t, uint64(100), store.GetState().Epoch)
	})
}
