// Package `relaycli` implements interactive client of text chat relay.
//
// Client asks for nickname, connects the relay and then prints everything
// received from it, while lines typed in terminal are sent to the relay.
//
//	go run . -addr 127.0.0.1:12345
package main
