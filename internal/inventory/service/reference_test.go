package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateReferenceNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref := generateReferenceNumber(now)
		assert.Regexp(t, `^DIST-20260815-[A-Z0-9]{6}$`, ref)
		seen[ref] = true
	}

	// 50 draws over a 36^6 space should not collide
	assert.Greater(t, len(seen), 45)
}
