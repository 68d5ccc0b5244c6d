package humastar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"session":"abc","x":12.5,"dragging":true,"zoom":4}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", s.String("session"))
	assert.Equal(t, 12.5, s.Float("x"))
	assert.Equal(t, 4.0, s.Float("zoom"))
	assert.True(t, s.Bool("dragging"))
	assert.True(t, s.Has("x"))
	assert.False(t, s.Has("y"))

	assert.Empty(t, s.String("x"), "wrong type reads as zero")
	assert.Zero(t, s.Float("session"))
	assert.False(t, s.Bool("missing"))
}

func TestSignalsInputMustParse(t *testing.T) {
	_, err := (&SignalsInput{RawBody: []byte("{")}).MustParse()
	assert.Error(t, err)

	s, err := (&SignalsInput{RawBody: []byte(`{"a":"b"}`)}).MustParse()
	require.NoError(t, err)
	assert.Equal(t, "b", s.String("a"))
}
