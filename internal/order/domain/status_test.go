package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	for _, st := range AllStatuses() {
		got, err := ParseStatus(string(st))
		assert.NoError(t, err)
		assert.Equal(t, st, got)
	}
	assert.Len(t, AllStatuses(), 11)

	for _, bad := range []string{"", "delivered", "PLACED", "shipped"} {
		_, err := ParseStatus(bad)
		assert.ErrorIs(t, err, ErrInvalidStatus, bad)
	}
}

func TestStage_BothVocabularies(t *testing.T) {
	pairs := [][2]OrderStatus{
		{StatusPreparing, StatusConfirmed},
		{StatusOnTheWay, StatusOutForDelivery},
		{StatusPickupReady, StatusReadyForPickup},
		{StatusDelivered, StatusPickedUp},
	}
	for _, p := range pairs {
		assert.Equal(t, p[0].Stage(), p[1].Stage(), "%s / %s", p[0], p[1])
	}
	assert.Equal(t, Stage(-1), OrderStatus("nope").Stage())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPlaced, StatusPreparing, true},
		{StatusPlaced, StatusConfirmed, true},
		{StatusPlaced, StatusDelivered, true},
		{StatusPreparing, StatusOnTheWay, true},
		{StatusConfirmed, StatusOutForDelivery, true},
		{StatusOnTheWay, StatusCancelled, true},
		{StatusPlaced, StatusCancelled, true},

		{StatusPlaced, StatusPlaced, false},
		{StatusPreparing, StatusConfirmed, false}, // misma etapa
		{StatusOnTheWay, StatusPreparing, false},  // retroceso
		{StatusPreparing, StatusPlaced, false},
		{StatusDelivered, StatusCancelled, false}, // desde terminal
		{StatusCancelled, StatusPreparing, false},
		{StatusPickedUp, StatusDelivered, false},
		{"bogus", StatusPreparing, false},
		{StatusPlaced, "bogus", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCanTransition_NeverRegressesNorLeavesTerminal(t *testing.T) {
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			if !CanTransition(from, to) {
				continue
			}
			assert.False(t, from.IsTerminal(), "%s -> %s", from, to)
			if to != StatusCancelled {
				assert.Greater(t, int(to.Stage()), int(from.Stage()), "%s -> %s", from, to)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, st := range AllStatuses() {
		want := st == StatusDelivered || st == StatusPickedUp || st == StatusCancelled
		assert.Equal(t, want, st.IsTerminal(), string(st))
	}
	assert.ElementsMatch(t, []OrderStatus{StatusDelivered, StatusPickedUp, StatusCancelled}, TerminalStatuses())
}
