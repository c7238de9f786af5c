package midiclock

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DatanoiseTV/midiclock-go/internal/miditest"
)

type testRig struct {
	engine *Engine
	drv    *miditest.Driver
	outs   []*miditest.Out
	ins    []*miditest.In
	clock  *fakeClock
}

func newTestRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()

	drv := miditest.New()
	rig := &testRig{
		drv:   drv,
		outs:  []*miditest.Out{drv.AddOut("Synth A"), drv.AddOut("Drum Machine B")},
		ins:   []*miditest.In{drv.AddIn("Clock Source"), drv.AddIn("Keyboard")},
		clock: newFakeClock(),
	}
	opts = append([]Option{WithClock(rig.clock.Now), WithRetryBackoff(5 * time.Millisecond)}, opts...)
	rig.engine = New(drv, opts...)
	t.Cleanup(func() {
		_ = rig.engine.Close()
	})
	return rig
}

func TestListPorts(t *testing.T) {
	rig := newTestRig(t)

	outs, err := rig.engine.ListOutputs()
	require.NoError(t, err)
	assert.Equal(t, []string{"Synth A", "Drum Machine B"}, outs)

	ins, err := rig.engine.ListInputs()
	require.NoError(t, err)
	assert.Equal(t, []string{"Clock Source", "Keyboard"}, ins)
}

func TestListPortsEnumerationError(t *testing.T) {
	rig := newTestRig(t)
	rig.drv.FailEnumeration(errors.New("no midi service"))

	_, err := rig.engine.ListOutputs()
	assert.ErrorIs(t, err, ErrPortEnumeration)

	_, err = rig.engine.ListInputs()
	assert.ErrorIs(t, err, ErrPortEnumeration)

	err = rig.engine.SelectOutput(0)
	assert.ErrorIs(t, err, ErrPortEnumeration)
}

func TestSelectOutput(t *testing.T) {
	rig := newTestRig(t)

	require.NoError(t, rig.engine.SelectOutput(1))

	index, ok := rig.engine.SelectedOutput()
	assert.True(t, ok)
	assert.Equal(t, 1, index)
	assert.True(t, rig.outs[1].IsOpen())
	assert.False(t, rig.outs[0].IsOpen())
}

func TestSelectOutputOutOfRange(t *testing.T) {
	rig := newTestRig(t)

	for _, index := range []int{2, 17, -1} {
		err := rig.engine.SelectOutput(index)
		assert.ErrorIs(t, err, ErrPortIndexOutOfRange)

		_, ok := rig.engine.SelectedOutput()
		assert.False(t, ok)
	}
	for _, out := range rig.outs {
		assert.False(t, out.IsOpen())
	}
}

func TestSelectOutputOutOfRangeDropsPrevious(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))

	err := rig.engine.SelectOutput(5)
	assert.ErrorIs(t, err, ErrPortIndexOutOfRange)

	_, ok := rig.engine.SelectedOutput()
	assert.False(t, ok)
	assert.False(t, rig.outs[0].IsOpen())
	assert.ErrorIs(t, rig.engine.SendCC(1, 1, 1), ErrNoOutputSelected)
}

func TestSelectOutputConnectionError(t *testing.T) {
	rig := newTestRig(t)
	rig.outs[0].FailOpen(errors.New("device busy"))

	err := rig.engine.SelectOutput(0)
	assert.ErrorIs(t, err, ErrConnection)

	_, ok := rig.engine.SelectedOutput()
	assert.False(t, ok)
}

func TestSelectOutputReplacesConnection(t *testing.T) {
	rig := newTestRig(t)

	require.NoError(t, rig.engine.SelectOutput(0))
	require.NoError(t, rig.engine.SelectOutput(1))

	assert.False(t, rig.outs[0].IsOpen())
	assert.True(t, rig.outs[1].IsOpen())

	require.NoError(t, rig.engine.SendPC(1, 3))
	assert.Empty(t, rig.outs[0].Messages())
	assert.Equal(t, [][]byte{{0xC0, 0x03}}, rig.outs[1].Messages())
}

func TestSelectOutputByName(t *testing.T) {
	rig := newTestRig(t)

	require.NoError(t, rig.engine.SelectOutputByName("drum machine"))
	index, ok := rig.engine.SelectedOutput()
	require.True(t, ok)
	assert.Equal(t, 1, index)

	err := rig.engine.SelectOutputByName("Nonexistent")
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestSendCC(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))

	require.NoError(t, rig.engine.SendCC(1, 200, 300))
	require.NoError(t, rig.engine.SendCC(10, 7, 100))

	assert.Equal(t, [][]byte{
		{0xB0, 0x7F, 0x7F},
		{0xB9, 0x07, 0x64},
	}, rig.outs[0].Messages())
}

func TestSendPC(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))

	require.NoError(t, rig.engine.SendPC(16, 0))
	require.NoError(t, rig.engine.SendPC(2, 500))

	assert.Equal(t, [][]byte{
		{0xCF, 0x00},
		{0xC1, 0x7F},
	}, rig.outs[0].Messages())
}

func TestSendWithoutOutput(t *testing.T) {
	rig := newTestRig(t)

	assert.ErrorIs(t, rig.engine.SendCC(1, 1, 1), ErrNoOutputSelected)
	assert.ErrorIs(t, rig.engine.SendPC(1, 1), ErrNoOutputSelected)
}

func TestSendError(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))
	rig.outs[0].FailSend(errors.New("device unplugged"))

	assert.ErrorIs(t, rig.engine.SendCC(1, 1, 1), ErrSend)
	assert.ErrorIs(t, rig.engine.SendPC(1, 1), ErrSend)
}

func TestPing(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.engine.Ping()
	assert.ErrorIs(t, err, ErrNoOutputSelected)

	require.NoError(t, rig.engine.SelectOutput(0))
	_, err = rig.engine.Ping()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFE}, rig.outs[0].Last())
}

func TestStartClockSendInvalidTempo(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))

	for _, bpm := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		err := rig.engine.StartClockSend(bpm)
		assert.ErrorIs(t, err, ErrInvalidTempo)
	}

	assert.False(t, rig.engine.SendStatus().Running)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, rig.outs[0].Messages())
}

func TestStartClockSendUnrepresentableInterval(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))

	for _, bpm := range []float64{1e-10, 5e-324, 3e9, math.MaxFloat64} {
		err := rig.engine.StartClockSend(bpm)
		assert.ErrorIs(t, err, ErrInvalidTempo, "bpm %v", bpm)
	}

	assert.False(t, rig.engine.SendStatus().Running)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rig.outs[0].Count(0xF8))
}

func TestPulseIntervalBounds(t *testing.T) {
	d, err := pulseInterval(1e-8)
	require.NoError(t, err)
	assert.Positive(t, d)

	d, err = pulseInterval(2e9)
	require.NoError(t, err)
	assert.Equal(t, time.Nanosecond, d)

	_, err = pulseInterval(1e-10)
	assert.ErrorIs(t, err, ErrInvalidTempo)
	_, err = pulseInterval(3e9)
	assert.ErrorIs(t, err, ErrInvalidTempo)
}

func TestStartClockSendInvalidTempoKeepsRunningSession(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))
	require.NoError(t, rig.engine.StartClockSend(120))

	assert.ErrorIs(t, rig.engine.StartClockSend(0), ErrInvalidTempo)

	st := rig.engine.SendStatus()
	assert.True(t, st.Running)
	assert.Equal(t, 120.0, st.BPM)
}

func TestStartClockSendWithoutOutput(t *testing.T) {
	rig := newTestRig(t)

	err := rig.engine.StartClockSend(120)
	assert.ErrorIs(t, err, ErrNoOutputSelected)
	assert.False(t, rig.engine.SendStatus().Running)
}

func TestStartStopClockSend(t *testing.T) {
	rig := newTestRig(t)
	out := rig.outs[0]
	require.NoError(t, rig.engine.SelectOutput(0))

	// 600 BPM is a pulse every ~4.2ms.
	require.NoError(t, rig.engine.StartClockSend(600))
	assert.Equal(t, SendStatus{Running: true, BPM: 600}, rig.engine.SendStatus())

	require.Eventually(t, func() bool {
		return out.Count(0xF8) >= 5
	}, time.Second, time.Millisecond)

	rig.engine.StopClockSend()
	assert.False(t, rig.engine.SendStatus().Running)

	sent := out.Messages()
	require.NotEmpty(t, sent)
	assert.Equal(t, []byte{0xFC}, sent[len(sent)-1])
	assert.Equal(t, 1, out.Count(0xFA))
	assert.Equal(t, 1, out.Count(0xFC))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, sent, out.Messages(), "no pulses after StopClockSend returned")
}

func TestStartStopImmediately(t *testing.T) {
	rig := newTestRig(t)
	out := rig.outs[0]
	require.NoError(t, rig.engine.SelectOutput(0))

	for _, bpm := range []float64{1, 60, 120, 999} {
		require.NoError(t, rig.engine.StartClockSend(bpm))
		rig.engine.StopClockSend()

		sent := out.Messages()
		time.Sleep(5 * time.Millisecond)
		assert.Equal(t, sent, out.Messages())
		assert.Equal(t, []byte{0xFC}, out.Last())
		out.Reset()
	}
}

func TestStartClockSendRestarts(t *testing.T) {
	rig := newTestRig(t)
	out := rig.outs[0]
	require.NoError(t, rig.engine.SelectOutput(0))

	require.NoError(t, rig.engine.StartClockSend(120))
	require.NoError(t, rig.engine.StartClockSend(240))

	assert.Equal(t, SendStatus{Running: true, BPM: 240}, rig.engine.SendStatus())
	assert.Equal(t, 2, out.Count(0xFA))
	assert.Zero(t, out.Count(0xFC), "a tempo change does not send Stop")
}

func TestStopClockSendWithoutSession(t *testing.T) {
	rig := newTestRig(t)

	rig.engine.StopClockSend()

	require.NoError(t, rig.engine.SelectOutput(0))
	rig.engine.StopClockSend()
	assert.Equal(t, [][]byte{{0xFC}}, rig.outs[0].Messages())
}

func TestSelectOutputStopsClockSend(t *testing.T) {
	rig := newTestRig(t)
	first, second := rig.outs[0], rig.outs[1]
	require.NoError(t, rig.engine.SelectOutput(0))
	require.NoError(t, rig.engine.StartClockSend(600))
	require.Eventually(t, func() bool {
		return first.Count(0xF8) >= 2
	}, time.Second, time.Millisecond)

	require.NoError(t, rig.engine.SelectOutput(1))
	assert.False(t, rig.engine.SendStatus().Running)

	sent := first.Messages()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, sent, first.Messages())
	assert.Zero(t, second.Count(0xF8))
	assert.Zero(t, first.Count(0xFC), "switching outputs stops silently")
}

func TestClockSenderRetriesAfterFailure(t *testing.T) {
	rig := newTestRig(t)
	out := rig.outs[0]
	require.NoError(t, rig.engine.SelectOutput(0))
	require.NoError(t, rig.engine.StartClockSend(600))

	out.FailSend(errors.New("port vanished"))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(rig.engine.metrics.pulseFailures) >= 3
	}, time.Second, time.Millisecond)
	assert.True(t, rig.engine.SendStatus().Running)

	out.FailSend(nil)
	before := out.Count(0xF8)
	require.Eventually(t, func() bool {
		return out.Count(0xF8) > before+2
	}, time.Second, time.Millisecond)
}

func TestStartClockSendStartMessageFailure(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))
	rig.outs[0].FailSend(errors.New("port vanished"))

	err := rig.engine.StartClockSend(120)
	assert.ErrorIs(t, err, ErrSend)
	assert.True(t, rig.engine.SendStatus().Running)

	rig.engine.StopClockSend()
	assert.False(t, rig.engine.SendStatus().Running)
}

func TestClose(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.SelectOutput(0))
	require.NoError(t, rig.engine.EnableClockFollow(0))
	require.NoError(t, rig.engine.StartClockSend(300))

	require.NoError(t, rig.engine.Close())

	assert.False(t, rig.outs[0].IsOpen())
	assert.False(t, rig.ins[0].IsOpen())
	assert.False(t, rig.engine.SendStatus().Running)
	assert.Equal(t, Status{}, rig.engine.ClockStatus())

	assert.ErrorIs(t, rig.engine.SendCC(1, 1, 1), ErrClosed)
	assert.ErrorIs(t, rig.engine.SelectOutput(0), ErrClosed)
	assert.ErrorIs(t, rig.engine.StartClockSend(120), ErrClosed)
	assert.ErrorIs(t, rig.engine.EnableClockFollow(0), ErrClosed)
	assert.NoError(t, rig.engine.Close())
}
