package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	models "github.com/atlasprotect/atlas/internal"
)

var allStatuses = []models.BookingStatus{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusActive,
	models.StatusCompleted,
	models.StatusCancelled,
}

func TestCanTransition(t *testing.T) {
	allowed := map[models.BookingStatus]map[models.BookingStatus]bool{
		models.StatusPending:   {models.StatusConfirmed: true, models.StatusCancelled: true},
		models.StatusConfirmed: {models.StatusActive: true, models.StatusCancelled: true},
		models.StatusActive:    {models.StatusCompleted: true, models.StatusCancelled: true},
		models.StatusCompleted: {},
		models.StatusCancelled: {},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			got := from.CanTransition(to)
			want := allowed[from][to]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestCanTransitionRejectsBackwardEdges(t *testing.T) {
	assert.False(t, models.StatusCompleted.CanTransition(models.StatusActive))
	assert.False(t, models.StatusCompleted.CanTransition(models.StatusCancelled))
	assert.False(t, models.StatusCancelled.CanTransition(models.StatusPending))
	assert.False(t, models.StatusActive.CanTransition(models.StatusPending))
}

func TestTerminal(t *testing.T) {
	assert.True(t, models.StatusCompleted.Terminal())
	assert.True(t, models.StatusCancelled.Terminal())
	assert.False(t, models.StatusPending.Terminal())
	assert.False(t, models.StatusConfirmed.Terminal())
	assert.False(t, models.StatusActive.Terminal())
}

func TestBucketForIsExhaustiveAndDisjoint(t *testing.T) {
	counts := map[models.StatusBucket]int{}
	for _, s := range allStatuses {
		counts[models.BucketFor(s)]++
	}

	// every status lands in exactly one bucket
	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, len(allStatuses), total)

	assert.Equal(t, 3, counts[models.BucketUpcoming])
	assert.Equal(t, 1, counts[models.BucketPast])
	assert.Equal(t, 1, counts[models.BucketCancelled])
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, models.BucketUpcoming, models.BucketFor(models.StatusPending))
	assert.Equal(t, models.BucketUpcoming, models.BucketFor(models.StatusConfirmed))
	assert.Equal(t, models.BucketUpcoming, models.BucketFor(models.StatusActive))
	assert.Equal(t, models.BucketPast, models.BucketFor(models.StatusCompleted))
	assert.Equal(t, models.BucketCancelled, models.BucketFor(models.StatusCancelled))
}

func TestStatusValid(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, models.BookingStatus("SHIPPED").Valid())
	assert.False(t, models.BookingStatus("").Valid())
}

func TestCategoryValid(t *testing.T) {
	for _, c := range []models.AssetCategory{
		models.CategoryAviation,
		models.CategoryChauffeur,
		models.CategoryArmoured,
		models.CategoryProtection,
	} {
		assert.True(t, c.Valid(), "category %s", c)
	}
	assert.False(t, models.AssetCategory("MARITIME").Valid())
}
