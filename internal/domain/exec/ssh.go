package exec

import "strings"

// sshForcedOptions are prepended to every rewritten ssh invocation:
// -t -t forces a tty even without a local one, so the remote side runs an
// interactive shell we can forward into; accept-new keeps first connections
// from hanging on the host key prompt while still rejecting changed keys.
const sshForcedOptions = "ssh -t -t -o StrictHostKeyChecking=accept-new"

// isPlainSSH reports whether command is an ssh invocation not escalated
// through sudo. Plain ssh starts a forwardable remote session; sudo ssh runs
// as an ordinary shell command.
//
// The substring check is a heuristic over raw command text; it can be fooled
// by e.g. quoted arguments containing "ssh ".
func isPlainSSH(command string) bool {
	return strings.Contains(command, "ssh ") &&
		!strings.HasPrefix(strings.TrimLeft(command, " \t"), "sudo ssh ")
}

// rewriteSSH replaces everything up to and including the "ssh" token with the
// forced-option invocation, keeping the user's host and arguments. Tokens are
// split on whitespace, so quoting is not preserved; a bare `ssh host` and a
// `ssh host command` both come out with the same forced options.
func rewriteSSH(command string) string {
	parts := strings.Fields(command)
	idx := -1
	for i, p := range parts {
		if p == "ssh" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return command
	}
	rest := strings.Join(parts[idx+1:], " ")
	return strings.TrimSpace(sshForcedOptions + " " + rest)
}
