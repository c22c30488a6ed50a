package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoneSchedule_RetainsEverything(t *testing.T) {
	offsets := NoneSchedule{}.Offsets(4)
	assert.Equal(t, []int{0, 1, 2, 3}, offsets)
	assert.Empty(t, NoneSchedule{}.Offsets(0))
}

func TestFixedIntervalSchedule(t *testing.T) {
	offsets := FixedIntervalSchedule{Interval: 3}.Offsets(8)
	assert.Equal(t, []int{0, 3, 6}, offsets)

	// Degenerate interval clamps to 1.
	offsets = FixedIntervalSchedule{Interval: 0}.Offsets(3)
	assert.Equal(t, []int{0, 1, 2}, offsets)
}

func TestBinomialSchedule_Properties(t *testing.T) {
	for _, n := range []int{1, 2, 5, 17, 100, 1000} {
		for _, s := range []int{1, 2, 3, 5, 10} {
			offsets := BinomialSchedule{Snapshots: s}.Offsets(n)

			assert.NotEmpty(t, offsets, "n=%d s=%d", n, s)
			assert.Equal(t, 0, offsets[0], "first snapshot covers the initial state")
			assert.LessOrEqual(t, len(offsets), s, "n=%d s=%d", n, s)
			for i := 1; i < len(offsets); i++ {
				assert.Greater(t, offsets[i], offsets[i-1], "strictly increasing")
				assert.Less(t, offsets[i], n, "within range")
			}
		}
	}
}

func TestBinomialSchedule_UsesAllSnapshotsOnLongTapes(t *testing.T) {
	offsets := BinomialSchedule{Snapshots: 4}.Offsets(100)
	assert.Len(t, offsets, 4)
}

func TestBinom(t *testing.T) {
	assert.Equal(t, 1, binom(5, 0))
	assert.Equal(t, 10, binom(5, 2))
	assert.Equal(t, 0, binom(3, 5))
}

func TestScheduleString(t *testing.T) {
	assert.Equal(t, "none", ScheduleString(NoneSchedule{}))
	assert.Equal(t, "fixed-interval(interval=4)", ScheduleString(FixedIntervalSchedule{Interval: 4}))
	assert.Equal(t, "binomial(snapshots=3)", ScheduleString(BinomialSchedule{Snapshots: 3}))
}
