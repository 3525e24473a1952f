package exec

import (
	"fmt"
	"strings"

	"github.com/aiterminal/backend/internal/shared/id"
)

// The marker protocol observes the remote working directory over a plain
// stdout pipe: probes are injected into the remote shell's input as
//
//	<start marker> \n <pwd output> \n <end marker>
//
// and the stdout worker strips the three lines, capturing the pwd value.
// Marker lines carry a fresh ULID so output that merely prints a stale
// marker string cannot confuse a later probe.
const (
	markerCDPrefix      = "__REMOTE_CD_PWD_MARKER_"
	markerInitialPrefix = "__INITIAL_REMOTE_PWD_MARKER_"
)

func newCDMarker() string {
	return markerCDPrefix + id.NewMarkerToken() + "__"
}

func newInitialMarker() string {
	return markerInitialPrefix + id.NewMarkerToken() + "__"
}

// wrapRemoteCD wraps a forwarded cd in a marker probe. && ordering means the
// probe only fires when the cd succeeded; a failed cd produces the shell's
// own error output and no directory update.
func wrapRemoteCD(command string) string {
	marker := newCDMarker()
	cd := strings.TrimSpace(command)
	return fmt.Sprintf("%s && printf '%%s\\n' '%s' && pwd && printf '%%s\\n' '%s'\n",
		cd, marker, marker)
}

// initialPwdProbe asks a freshly started remote shell where it is. echo is
// good enough here: the markers are plain words with no format characters.
func initialPwdProbe() string {
	marker := newInitialMarker()
	return fmt.Sprintf("echo '%s'; pwd; echo '%s'\n", marker, marker)
}

// parseAction tells the stdout worker what to do with a line it fed to the
// marker parser.
type parseAction int

const (
	// actionForward: ordinary output, emit to the client.
	actionForward parseAction = iota
	// actionConsume: marker plumbing, swallow silently.
	actionConsume
	// actionValue: the captured remote working directory.
	actionValue
)

type parserState int

const (
	stateIdle parserState = iota
	stateAwaitingValue
	stateAwaitingEnd
)

// markerParser is the per-process state machine that strips marker probes
// out of a stdout line stream. It is owned by a single stdout worker
// goroutine and needs no locking.
type markerParser struct {
	state  parserState
	marker string
}

func newMarkerParser() *markerParser {
	return &markerParser{}
}

// idle reports whether the parser is between probes. Blank lines are only
// forwarded while idle; inside a probe they are part of the plumbing.
func (p *markerParser) idle() bool {
	return p.state == stateIdle
}

// feed advances the state machine with one trimmed, non-empty line. For
// actionValue the returned string is the captured directory.
func (p *markerParser) feed(line string) (parseAction, string) {
	switch p.state {
	case stateIdle:
		if strings.HasPrefix(line, markerCDPrefix) || strings.HasPrefix(line, markerInitialPrefix) {
			p.state = stateAwaitingValue
			p.marker = line
			return actionConsume, ""
		}
		return actionForward, ""

	case stateAwaitingValue:
		if line == p.marker {
			// End marker arrived before any value: empty probe, reset.
			p.reset()
			return actionConsume, ""
		}
		p.state = stateAwaitingEnd
		return actionValue, line

	case stateAwaitingEnd:
		if line == p.marker {
			p.reset()
			return actionConsume, ""
		}
		// The end marker never arrived: abandon the probe and re-evaluate
		// the line from idle. A marker-prefixed line starts a fresh probe;
		// anything else is ordinary output.
		p.reset()
		return p.feed(line)
	}
	return actionForward, ""
}

func (p *markerParser) reset() {
	p.state = stateIdle
	p.marker = ""
}
