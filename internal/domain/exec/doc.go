// Package exec orchestrates command execution for terminal sessions.
//
// Execute decides between three paths for each invocation:
//
//  1. Forward: the session has a live interactive SSH session, so the
//     command is written to the remote shell's stdin instead of spawning a
//     local process. A forwarded cd is wrapped in a marker probe so the
//     remote working directory can be observed over a plain pipe.
//  2. Local cd: resolved against the session's working directory without
//     spawning anything.
//  3. Spawn: a plain ssh invocation starts a remote session (via sshpass
//     when a password is supplied); everything else runs through
//     `sh -c "exec ..."` in its own process group.
//
// Every spawn gets three workers: a stdout reader (line-buffered, marker
// protocol aware), a stderr reader (password prompts suppressed), and a
// waiter whose cleanup is guarded by the stale-pid check. Workers report
// through the event sink; they never fail the original call.
package exec
