package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	a := Key("budget_period_expiring", "6f1c", "2026-10-31")
	assert.Len(t, a, 32)
	assert.Equal(t, a, Key("budget_period_expiring", "6f1c", "2026-10-31"))
	assert.NotEqual(t, a, Key("budget_period_expiring", "6f1c", "2026-11-30"))
	assert.NotEqual(t, Key("a", "bc"), Key("ab", "c"))
}
