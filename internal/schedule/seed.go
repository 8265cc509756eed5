package schedule

import (
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"
)

// shuffleSeed derives a deterministic seed from the channel number, the
// day of year, and the key being shuffled. The same channel gets the
// same shuffle all day, and a fresh one tomorrow.
func shuffleSeed(channelNumber string, day time.Time, key string) int64 {
	h := fnv.New32a()
	h.Write([]byte(channelNumber))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(day.YearDay())))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return int64(h.Sum32())
}

// seededPermutation returns a deterministic permutation of [0, n).
func seededPermutation(seed int64, n int) []int {
	rng := rand.New(rand.NewSource(seed))
	return rng.Perm(n)
}

// shuffleItems returns a deterministically shuffled copy of items.
func shuffleItems(seed int64, items []Item) []Item {
	out := make([]Item, len(items))
	for i, j := range seededPermutation(seed, len(items)) {
		out[i] = items[j]
	}
	return out
}
