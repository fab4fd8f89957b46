package mapreduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		wantErr bool
	}{
		{StateInit, StateRetrieving, false},
		{StateRetrieving, StateMapping, false},
		{StateRetrieving, StateReducing, false},
		{StateRetrieving, StateFailed, false},
		{StateMapping, StateReducing, false},
		{StateMapping, StateFailed, false},
		{StateReducing, StateDone, false},
		{StateReducing, StateFailed, false},
		{StateInit, StateMapping, true},
		{StateInit, StateFailed, true},
		{StateMapping, StateRetrieving, true},
		{StateReducing, StateMapping, true},
		{StateDone, StateFailed, true},
		{StateFailed, StateRetrieving, true},
		{StateDone, StateDone, true},
		{State("bogus"), StateDone, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StateDone))
	assert.True(t, IsTerminal(StateFailed))
	assert.False(t, IsTerminal(StateMapping))
}

func TestStateMachine_NoReentry(t *testing.T) {
	m := newStateMachine()
	require.NoError(t, m.transition(StateRetrieving))
	require.NoError(t, m.transition(StateReducing))

	err := m.transition(StateRetrieving)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, StateReducing, m.state())
	assert.Equal(t, []State{StateInit, StateRetrieving, StateReducing}, m.visited())
}
