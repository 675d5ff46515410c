package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewBookmarkID returns the millisecond timestamp followed by five random
// base36 characters.
func NewBookmarkID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + randomBase36(5)
}

// NewGroupID returns the millisecond timestamp as a string.
func NewGroupID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

func randomBase36(n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(base36)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			buf[i] = base36[time.Now().UnixNano()%int64(len(base36))]
			continue
		}
		buf[i] = base36[idx.Int64()]
	}
	return string(buf)
}
