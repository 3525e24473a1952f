// Command server runs the terminal backend: command execution, PTY
// sessions, provider tools and the WebSocket event stream, bound to
// loopback for a desktop terminal client.
package main
