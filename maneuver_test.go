package groundctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noHazards = HazardFlags{}

func stepN(t *testing.T, s *Sequencer, n int, dist float64, want Drive) {
	t.Helper()
	for i := 0; i < n; i++ {
		cmd, active := s.Step(dist, noHazards)
		require.True(t, active, "step %d", i)
		require.Equal(t, want, cmd, "step %d", i)
	}
}

func TestSequencerDisabled(t *testing.T) {
	s := NewSequencer(0)
	cmd, active := s.Step(0, noHazards)
	assert.False(t, active)
	assert.Equal(t, Drive{}, cmd)
	assert.Equal(t, DefaultRowLength, s.State().RowLength)
	assert.Equal(t, DefaultCropWidth, s.State().CropWidth)
}

func TestSequencerFullCycle(t *testing.T) {
	s := NewSequencer(0)
	s.Enable(0)

	stepN(t, s, 3, 10, advance)
	assert.Equal(t, ForwardRow, s.State().Stage)

	// reaching the bound turns on the same step
	stepN(t, s, turnSteps-1, DefaultRowLength, pivot)
	state := s.State()
	assert.Equal(t, Turn1, state.Stage)
	assert.Equal(t, DefaultRowLength, state.TurnStart)
	assert.Equal(t, turnSteps-1, state.TurnSteps)

	stepN(t, s, 1, DefaultRowLength, pivot)
	assert.Equal(t, Reverse, s.State().Stage)

	stepN(t, s, reverseTicks, 100, retreat)
	state = s.State()
	assert.Equal(t, Turn2, state.Stage)
	assert.Equal(t, 100.0, state.TurnStart)

	stepN(t, s, turnSteps, 100, pivot)
	state = s.State()
	assert.Equal(t, ForwardRow, state.Stage)
	assert.True(t, state.Returning)
	assert.Equal(t, 100.0, state.LegStart)
	assert.Equal(t, 100+DefaultRowLength, state.Bound())

	stepN(t, s, 2, 120, advance)

	cmd, active := s.Step(100+DefaultRowLength, noHazards)
	assert.False(t, active)
	assert.Equal(t, Drive{}, cmd)
	assert.False(t, s.Enabled())
	assert.False(t, s.State().Returning)
}

func TestSequencerCenterHazardHolds(t *testing.T) {
	s := NewSequencer(0)
	s.Enable(0)
	center := HazardFlags{Center: true}

	cmd, active := s.Step(0, center)
	assert.True(t, active)
	assert.Equal(t, Drive{}, cmd)

	// the turn starts but does not count while blocked
	cmd, active = s.Step(DefaultRowLength, center)
	assert.True(t, active)
	assert.Equal(t, Drive{}, cmd)
	state := s.State()
	assert.Equal(t, Turn1, state.Stage)
	assert.Equal(t, 0, state.TurnSteps)

	// side hazards do not stop the sequencer
	cmd, active = s.Step(DefaultRowLength, HazardFlags{Left: true, Right: true})
	assert.True(t, active)
	assert.Equal(t, pivot, cmd)
	assert.Equal(t, 1, s.State().TurnSteps)
}

func TestSequencerEnableDisable(t *testing.T) {
	s := NewSequencer(50)
	s.Enable(12)
	stepN(t, s, 1, 62, pivot)

	// enabling again keeps the progress
	s.Enable(30)
	assert.Equal(t, 12.0, s.State().LegStart)
	assert.Equal(t, Turn1, s.State().Stage)

	s.Disable()
	state := s.State()
	assert.False(t, state.Enabled)
	assert.Equal(t, ForwardRow, state.Stage)
	assert.Equal(t, 0, state.TurnSteps)
	assert.Equal(t, 50.0, state.RowLength)
}

func TestSequencerAdjust(t *testing.T) {
	s := NewSequencer(0)
	s.AdjustRowLength(1)
	assert.InDelta(t, DefaultRowLength+TickDistance, s.State().RowLength, 1e-9)
	s.AdjustRowLength(-100)
	assert.Equal(t, 0.0, s.State().RowLength)

	s.AdjustCropWidth(-1)
	assert.InDelta(t, DefaultCropWidth-TickDistance, s.State().CropWidth, 1e-9)
	s.AdjustCropWidth(-10)
	assert.Equal(t, 0.0, s.State().CropWidth)
}

func TestManeuverStageString(t *testing.T) {
	assert.Equal(t, "FORWARD_ROW", ForwardRow.String())
	assert.Equal(t, "TURN_1", Turn1.String())
	assert.Equal(t, "REVERSE", Reverse.String())
	assert.Equal(t, "TURN_2", Turn2.String())
}
