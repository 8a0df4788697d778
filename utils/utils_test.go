package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	params := map[string]string{
		"firstName":   "Jane",
		"lastName":    "Roe",
		"senderPhone": "+15550001111",
	}

	t.Run("replaces known placeholders", func(t *testing.T) {
		out := RenderTemplate("Hi {firstName} {lastName}, call {senderPhone}", params)
		assert.Equal(t, "Hi Jane Roe, call +15550001111", out)
	})

	t.Run("keeps unknown placeholders", func(t *testing.T) {
		assert.Equal(t, "Hi {nickname}", RenderTemplate("Hi {nickname}", params))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Equal(t, "", RenderTemplate("", params))
	})
}

func TestPhoneVariants(t *testing.T) {
	variants := PhoneVariants("+12025550143")
	assert.Contains(t, variants, "+12025550143")
	assert.Contains(t, variants, "2025550143")

	assert.Equal(t, []string{"abc"}, PhoneVariants("abc"))
}

func TestNormalizeE164(t *testing.T) {
	assert.Equal(t, "+16502530000", NormalizeE164("(650) 253-0000"))
	assert.Equal(t, "not-a-number", NormalizeE164(" not-a-number "))
	assert.Equal(t, "", NormalizeE164("  "))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("", "America/Los_Angeles")
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", loc.String())

	loc, err = LoadLocation("", "")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus", "")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts := ParseTimestamp("Mon, 16 Aug 2021 03:45:01 +0000")
	assert.Equal(t, time.Date(2021, 8, 16, 3, 45, 1, 0, time.UTC), ts)
	assert.True(t, ParseTimestamp("garbage").IsZero())
	assert.True(t, ParseTimestamp("").IsZero())
}
