package entry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(id string, created time.Time) Entry {
	return Entry{
		ID:        id,
		OwnerID:   "owner-1",
		AudioURL:  "http://media/" + id + ".webm",
		CreatedAt: created,
	}
}

func TestCache_ResetSortsNewestFirst(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache()
	c.Reset([]Entry{
		newEntry("a", base),
		newEntry("c", base.Add(2*time.Hour)),
		newEntry("b", base.Add(time.Hour)),
		newEntry("a", base.Add(3*time.Hour)),
	})

	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID, "duplicate id keeps the newest copy")
	assert.Equal(t, "c", list[1].ID)
	assert.Equal(t, "b", list[2].ID)
}

func TestCache_InsertFront(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache()
	c.Reset([]Entry{newEntry("a", base), newEntry("b", base.Add(-time.Hour))})

	c.InsertFront(newEntry("new", base.Add(time.Hour)))
	c.InsertFront(newEntry("b", base.Add(2*time.Hour)))

	ids := []string{}
	for _, e := range c.List() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"b", "new", "a"}, ids)
	assert.Equal(t, 3, c.Len())
}

func TestCache_ReplaceAppliesUpdate(t *testing.T) {
	c := NewCache()
	c.InsertFront(newEntry("a", time.Now()))

	ok := c.Replace("a", Update{
		InsightsText: StringPtr("hello"),
		AudioURL:     StringPtr("http://media/derived.mp3"),
	})
	require.True(t, ok)

	got, found := c.Get("a")
	require.True(t, found)
	assert.True(t, got.HasInsights())
	assert.Equal(t, "hello", got.Insights())
	assert.Equal(t, "http://media/derived.mp3", got.AudioURL)
	assert.Nil(t, got.InsightsAudioURL)

	assert.False(t, c.Replace("missing", Update{InsightsText: StringPtr("x")}))
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache()
	e := newEntry("a", time.Now())
	e.InsightsText = StringPtr("original")
	c.InsertFront(e)

	got, _ := c.Get("a")
	*got.InsightsText = "mutated"

	again, _ := c.Get("a")
	assert.Equal(t, "original", again.Insights())

	list := c.List()
	*list[0].InsightsText = "mutated"
	again, _ = c.Get("a")
	assert.Equal(t, "original", again.Insights())
}

func TestCache_GenerationLock(t *testing.T) {
	c := NewCache()

	require.True(t, c.TryLock("a"))
	assert.True(t, c.Locked("a"))
	assert.False(t, c.TryLock("a"), "second lock on the same id must fail")
	assert.True(t, c.TryLock("b"), "other ids are independent")
	assert.ElementsMatch(t, []string{"a", "b"}, c.Generating())

	c.Unlock("a")
	assert.False(t, c.Locked("a"))
	assert.True(t, c.TryLock("a"))
}

func TestCache_ResetKeepsLocks(t *testing.T) {
	c := NewCache()
	c.InsertFront(newEntry("a", time.Now()))
	require.True(t, c.TryLock("a"))

	c.Reset(nil)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Locked("a"))
}

func TestCache_ConcurrentTryLock(t *testing.T) {
	c := NewCache()
	const workers = 32

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryLock("same") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestUpdate_IsEmpty(t *testing.T) {
	assert.True(t, Update{}.IsEmpty())
	assert.False(t, Update{InsightsText: StringPtr("")}.IsEmpty())
}
