package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Chat/internal/core"
)

func TestWSOutbox(t *testing.T) {
	o := newOutbox(1)
	assert.NoError(t, o.TrySend(core.Frame("a")))
	assert.ErrorIs(t, o.TrySend(core.Frame("b")), core.ErrBackpressure)

	o.Close()
	o.Close()
	assert.ErrorIs(t, o.TrySend(core.Frame("c")), core.ErrOutboxClosed)
	assert.Equal(t, core.Frame("a"), <-o.send)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{PingPeriod: time.Second}.withDefaults()
	assert.Equal(t, 2*time.Second, o.ClientTimeout)
	assert.Equal(t, 5*time.Second, o.WriteWait)
	assert.Equal(t, 32, o.SendBuffer)
}
