package generator

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

const (
	swiftLetters      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	swiftAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// swiftCode builds an 8-character BIC: a four-letter bank code, a two-letter
// country code and a two-character alphanumeric location code.
func swiftCode(f *gofakeit.Faker) string {
	var b strings.Builder
	b.Grow(8)
	for i := 0; i < 6; i++ {
		b.WriteByte(swiftLetters[f.Number(0, len(swiftLetters)-1)])
	}
	for i := 0; i < 2; i++ {
		b.WriteByte(swiftAlphanumeric[f.Number(0, len(swiftAlphanumeric)-1)])
	}
	return b.String()
}

// newBankPool draws a fixed pool of bank identifiers. Every generated record
// references one of these, so consumers see repeated bank IDs they can group
// and sort by.
func newBankPool(f *gofakeit.Faker, size int) []string {
	banks := make([]string, size)
	for i := range banks {
		banks[i] = swiftCode(f)
	}
	return banks
}
