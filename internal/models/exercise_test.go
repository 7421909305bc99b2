package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExercise(t *testing.T) {
	cases := map[string]ExerciseType{
		"0":           ExerciseWalk,
		"walk":        ExerciseWalk,
		"2":           ExerciseMarchAnkle,
		"March_Ankle": ExerciseMarchAnkle,
		" tandem ":    ExerciseTandem,
	}
	for in, want := range cases {
		got, err := ParseExercise(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseExercise("7")
	assert.Error(t, err)
	_, err = ParseExercise("jog")
	assert.Error(t, err)
}

func TestExerciseType_TableKey(t *testing.T) {
	assert.Equal(t, "march", ExerciseMarchThigh.TableKey())
	assert.Equal(t, "march", ExerciseMarchAnkle.TableKey())
	assert.Equal(t, "swing", ExerciseSwing.TableKey())
	assert.True(t, ExerciseTandem.NeedsRoleNegotiation())
	assert.False(t, ExerciseWalk.NeedsRoleNegotiation())
}

func TestLeg_Other(t *testing.T) {
	assert.Equal(t, LegRight, LegLeft.Other())
	assert.Equal(t, "right", LegLeft.Other().String())
}
