package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySharesChannelPerEvent(t *testing.T) {
	r := NewRegistry()
	a := r.Acquire("e1", Binding{})
	b := r.Acquire("e1", Binding{Role: RoleAdmin})
	c := r.Acquire("e2", Binding{})

	assert.Same(t, a.channel, b.channel)
	assert.NotSame(t, a.channel, c.channel)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, r.Count("e1"))
	assert.True(t, r.Registered("e1", a))
	assert.False(t, r.Registered("e2", a))

	a.Release()
	a.Release()
	assert.False(t, a.Active())
	assert.False(t, r.Registered("e1", a))
	assert.Equal(t, 1, r.Count("e1"))

	b.Release()
	c.Release()
	assert.Equal(t, 0, r.Count("e1"))
	assert.Empty(t, r.channels)
	assert.Empty(t, r.regs)
}

func TestReleasedRegistrationDropsReplies(t *testing.T) {
	r := NewRegistry()
	frame := &recordingFrame{}
	observed := 0
	reg := r.Acquire("e1", Binding{Frame: frame, Observer: func(string, Outbound) { observed++ }})

	require.NoError(t, reg.deliver(ErrorMessage(), true))
	reg.Release()
	assert.ErrorIs(t, reg.deliver(ErrorMessage(), true), errReleased)

	assert.Len(t, frame.messages(), 1)
	assert.Equal(t, 1, observed)
}
