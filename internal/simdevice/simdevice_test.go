package simdevice

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-agilis/internal/fakeport"
)

type session struct {
	t    *testing.T
	port *fakeport.Port
	r    *bufio.Reader
}

func open(t *testing.T, d *Device) *session {
	t.Helper()

	p, err := d.Opener()("sim", nil)
	require.NoError(t, err)
	port := p.(*fakeport.Port)
	require.NoError(t, port.SetReadTimeout(2*time.Second))
	t.Cleanup(func() { _ = port.Close() })

	return &session{t: t, port: port, r: bufio.NewReader(port)}
}

func (s *session) send(cmd string) {
	s.t.Helper()

	_, err := s.port.Write([]byte(cmd + "\r\n"))
	require.NoError(s.t, err)
}

func (s *session) query(cmd string) string {
	s.t.Helper()

	s.send(cmd)
	line, err := s.r.ReadString('\n')
	require.NoError(s.t, err)

	return line
}

func TestDevice_VersionAndMode(t *testing.T) {
	d := New()
	s := open(t, d)

	assert.Equal(t, DefaultVersion+"\r\n", s.query("VE"))
	assert.False(t, d.IsRemote())

	s.send("1PR10")
	assert.Equal(t, "TE-5\r\n", s.query("TE"), "motion rejected in local mode")
	assert.Equal(t, "TE0\r\n", s.query("TE"), "TE clears the register")

	s.send("MR")
	assert.True(t, d.IsRemote())
	s.send("1PR10")
	assert.Equal(t, "TE0\r\n", s.query("TE"))
	assert.Equal(t, 10, d.Steps(1))
}

func TestDevice_StepsAndStatus(t *testing.T) {
	d := New(WithRemoteMode(), WithStepTime(5*time.Millisecond))
	s := open(t, d)

	s.send("2PR-20")
	assert.Equal(t, "2TS1\r\n", s.query("2TS"))
	assert.Equal(t, "2TP-20\r\n", s.query("2TP"))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, "2TS0\r\n", s.query("2TS"))

	s.send("2ZP")
	assert.Equal(t, "2TP0\r\n", s.query("2TP"))
}

func TestDevice_BusyAxisRejectsMove(t *testing.T) {
	d := New(WithRemoteMode(), WithStepTime(10*time.Millisecond))
	s := open(t, d)

	s.send("1PR100")
	s.send("1PR1")
	assert.Equal(t, "TE-6\r\n", s.query("TE"))

	s.send("1ST")
	assert.Equal(t, "1TS0\r\n", s.query("1TS"))
}

func TestDevice_Amplitude(t *testing.T) {
	d := New(WithRemoteMode())
	s := open(t, d)

	assert.Equal(t, "1SU16\r\n", s.query("1SU?"))
	s.send("1SU-25")
	assert.Equal(t, "1SU-25\r\n", s.query("1SU-?"))
	assert.Equal(t, "1SU16\r\n", s.query("1SU?"))

	s.send("1SU51")
	assert.Equal(t, "TE-4\r\n", s.query("TE"))
	s.send("1SUx")
	assert.Equal(t, "TE-3\r\n", s.query("TE"))
}

func TestDevice_Errors(t *testing.T) {
	d := New(WithRemoteMode())
	s := open(t, d)

	s.send("3TP")
	assert.Equal(t, "TE-2\r\n", s.query("TE"))
	s.send("1VE")
	assert.Equal(t, "TE-2\r\n", s.query("TE"))
	s.send("XX")
	assert.Equal(t, "TE-1\r\n", s.query("TE"))
	s.send("?")
	assert.Equal(t, "TE-1\r\n", s.query("TE"))
}

func TestDevice_JogAndLimit(t *testing.T) {
	d := New(WithRemoteMode(), WithMoveTime(time.Hour))
	s := open(t, d)

	s.send("1JA-3")
	assert.Equal(t, "1JA-3\r\n", s.query("1JA?"))
	assert.Equal(t, "1TS2\r\n", s.query("1TS"))
	s.send("1ST")
	assert.Equal(t, "1TS0\r\n", s.query("1TS"))

	assert.Equal(t, "PH0\r\n", s.query("PH"))
	s.send("2MV4")
	assert.Equal(t, "2TS3\r\n", s.query("2TS"))
	assert.Equal(t, "PH2\r\n", s.query("PH"))
	d.SetLimit(1, true)
	assert.Equal(t, "PH3\r\n", s.query("PH"))
}

func TestDevice_Channel(t *testing.T) {
	d := New(WithRemoteMode())
	s := open(t, d)

	assert.Equal(t, "CC1\r\n", s.query("CC?"))
	s.send("1PR5")
	s.send("CC2")
	assert.Equal(t, "CC2\r\n", s.query("CC?"))
	assert.Equal(t, "1TP0\r\n", s.query("1TP"), "each channel has its own counters")
	assert.Equal(t, 2, d.Channel())

	s.send("CC9")
	assert.Equal(t, "TE-4\r\n", s.query("TE"))
}

func TestDevice_MeasureLatency(t *testing.T) {
	d := New(WithRemoteMode(), WithMeasureLatency(100*time.Millisecond))
	s := open(t, d)

	begin := time.Now()
	assert.Equal(t, "1MA500\r\n", s.query("1MA"))
	assert.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond)
}

func TestDevice_ResetAndSilent(t *testing.T) {
	d := New(WithRemoteMode())
	s := open(t, d)

	s.send("1PR5")
	s.send("RS")
	assert.False(t, d.IsRemote())
	assert.Equal(t, "1TP0\r\n", s.query("1TP"))

	d.SetSilent(true)
	s.send("VE")
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, s.port.Pending())

	assert.Contains(t, d.Commands(), "RS")
}

func TestDevice_StateSurvivesReopen(t *testing.T) {
	d := New(WithRemoteMode())

	first := open(t, d)
	first.send("1PR7")
	require.NoError(t, first.port.Close())

	second := open(t, d)
	assert.Same(t, second.port, d.Port())
	assert.Equal(t, "1TP7\r\n", second.query("1TP"))
}
