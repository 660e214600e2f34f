package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_LookupMissThenHit(t *testing.T) {
	c := NewCache()

	_, ok := c.Lookup("fp1")
	assert.False(t, ok)

	c.Insert("fp1", TierComplex)

	tier, ok := c.Lookup("fp1")
	require.True(t, ok)
	assert.Equal(t, TierComplex, tier)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache()
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Insert("fp1", TierSimple)

	c.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, ok := c.Lookup("fp1")
	assert.False(t, ok, "entry should have expired after the 1h TTL")
}

func TestCache_CapacityEvictsOldest(t *testing.T) {
	c := NewCache()
	c.capacity = 3
	base := time.Now()
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	c.Insert("fp1", TierSimple)
	c.Insert("fp2", TierMedium)
	c.Insert("fp3", TierComplex)
	assert.Equal(t, 3, c.Len())

	c.Insert("fp4", TierReasoning)
	assert.Equal(t, 3, c.Len())

	_, ok := c.Lookup("fp1")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Lookup("fp4")
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache()
	c.Insert("fp1", TierSimple)
	c.Invalidate()

	_, ok := c.Lookup("fp1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestFingerprint_StableForEquivalentPrompts(t *testing.T) {
	a := Fingerprint("  Hello   World  ")
	b := Fingerprint("hello world")
	assert.Equal(t, a, b)
}
