// Package pty manages interactive pseudo-terminal sessions.
//
// Each session runs a login-less interactive shell under a PTY master. A
// dedicated reader goroutine streams master output as events, splitting
// chunks on UTF-8 boundaries so a multi-byte rune torn across two reads is
// never delivered half-decoded. When the shell exits, the reader drains,
// deregisters the session and emits a terminal exit event.
package pty
