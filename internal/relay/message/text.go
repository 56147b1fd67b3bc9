// Package message holds text rules of the relay wire protocol:
// bounded assignment of text and formats of relayed lines.
package message

import (
	"strings"
	"unicode/utf8"
)

// Truncate - returns the longest prefix of s not longer than max bytes
// which does not split UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

// Nickname - builds display name from the first inbound chunk of a connection.
// The result is a single line without surrounding spaces, bounded to max bytes.
func Nickname(chunk []byte, max int) string {
	b := Builder{}
	b.Write(chunk)
	return strings.TrimSpace(Truncate(strings.TrimSpace(b.Flush()), max))
}

// Relay - formats chat chunk received from nickname.
// The chunk is kept verbatim, so the line ending is the sender's one.
func Relay(nickname string, chunk []byte) string {
	return nickname + ": " + string(chunk)
}

// Joined - server announcement of admitted connection.
func Joined(nickname string) string {
	return nickname + " has joined the chat.\n"
}

// Left - server announcement of disconnected connection.
func Left(nickname string) string {
	return nickname + " has left the chat.\n"
}
