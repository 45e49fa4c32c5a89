package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWeekDefaultsToNextMonday(t *testing.T) {
	// Wednesday 2026-03-04
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	got, err := resolveWeek("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), got)

	// On a Monday the following week is chosen.
	monday := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	got, err = resolveWeek("", monday, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), got)
}

func TestResolveWeekExplicit(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	got, err := resolveWeek("2026-03-02", time.Now(), loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), got)

	_, err = resolveWeek("03/02/2026", time.Now(), loc)
	assert.Error(t, err)
}
