package exec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRemoteCDFormat(t *testing.T) {
	payload := wrapRemoteCD("cd /var/log ")

	assert.True(t, strings.HasPrefix(payload, "cd /var/log && printf"))
	assert.True(t, strings.HasSuffix(payload, "\n"))
	assert.Contains(t, payload, markerCDPrefix)
	assert.Contains(t, payload, "&& pwd &&")

	// Start and end markers must be the same token.
	first := strings.Index(payload, markerCDPrefix)
	last := strings.LastIndex(payload, markerCDPrefix)
	require.NotEqual(t, first, last)
	end := strings.Index(payload[first:], "__'")
	marker := payload[first : first+end+2]
	assert.Equal(t, 2, strings.Count(payload, marker))
}

func TestInitialPwdProbeFormat(t *testing.T) {
	probe := initialPwdProbe()

	assert.True(t, strings.HasPrefix(probe, "echo '"))
	assert.True(t, strings.HasSuffix(probe, "\n"))
	assert.Contains(t, probe, markerInitialPrefix)
	assert.Contains(t, probe, "; pwd; ")
}

func TestMarkersAreUniquePerProbe(t *testing.T) {
	assert.NotEqual(t, newCDMarker(), newCDMarker())
	assert.NotEqual(t, newInitialMarker(), newInitialMarker())
}

func TestParserForwardsOrdinaryOutput(t *testing.T) {
	p := newMarkerParser()

	action, _ := p.feed("total 12")
	assert.Equal(t, actionForward, action)
	assert.True(t, p.idle())
}

func TestParserCapturesProbeValue(t *testing.T) {
	p := newMarkerParser()
	marker := newCDMarker()

	action, _ := p.feed(marker)
	assert.Equal(t, actionConsume, action)
	assert.False(t, p.idle())

	action, value := p.feed("/home/user/projects")
	assert.Equal(t, actionValue, action)
	assert.Equal(t, "/home/user/projects", value)

	action, _ = p.feed(marker)
	assert.Equal(t, actionConsume, action)
	assert.True(t, p.idle())

	// Back to normal forwarding afterwards.
	action, _ = p.feed("some output")
	assert.Equal(t, actionForward, action)
}

func TestParserHandlesInitialMarker(t *testing.T) {
	p := newMarkerParser()
	marker := newInitialMarker()

	p.feed(marker)
	action, value := p.feed("/root")
	assert.Equal(t, actionValue, action)
	assert.Equal(t, "/root", value)
	p.feed(marker)
	assert.True(t, p.idle())
}

func TestParserEmptyProbeResets(t *testing.T) {
	p := newMarkerParser()
	marker := newCDMarker()

	p.feed(marker)
	action, _ := p.feed(marker)
	assert.Equal(t, actionConsume, action)
	assert.True(t, p.idle())
}

func TestParserResetsOnStrayLineInsideProbe(t *testing.T) {
	p := newMarkerParser()
	marker := newCDMarker()

	p.feed(marker)
	p.feed("/srv")
	action, _ := p.feed("stray noise")
	assert.Equal(t, actionForward, action, "unexpected line degrades to output")
	assert.True(t, p.idle(), "abandoned probe resets the parser")
}

func TestParserStartsNewProbeBeforeEndMarker(t *testing.T) {
	p := newMarkerParser()
	first := newCDMarker()
	second := newCDMarker()

	p.feed(first)
	p.feed("/home/u")

	// A fresh begin marker preempts the unfinished probe instead of
	// leaking into the output stream.
	action, _ := p.feed(second)
	assert.Equal(t, actionConsume, action)
	assert.False(t, p.idle())

	action, value := p.feed("/srv")
	assert.Equal(t, actionValue, action)
	assert.Equal(t, "/srv", value)

	p.feed(second)
	assert.True(t, p.idle())
}
