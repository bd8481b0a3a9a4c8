// Package daily derives the board of the day: every player gets the same
// layout for a given UTC date, and nobody can predict it without the salt.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"time"

	"github.com/robalobadob/minesweeper/internal/game"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns the two PCG seed words for a date using HMAC(salt, YYYY-MM-DD).
func Seed(date time.Time, salt string) (uint64, uint64) {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])
}

// Layout builds the deterministic layout for date.
func Layout(date time.Time, salt string, size, mines int) (*game.Layout, error) {
	hi, lo := Seed(date, salt)
	return game.Generate(size, mines, rand.New(rand.NewPCG(hi, lo)))
}
