// Package `relaysrv` implements server application of text chat relay over TCP.
//
// Every line received from a connected client is relayed to all other clients,
// prefixed with the sender nickname. The first data sent by a client is its nickname.
//
// To compile relay server locally, run from package directory:
//
//	go install .
//
// Or quickly launch server with command:
//
//	go run . -port 12345 -max-clients 100
//
// Optional WebSocket gateway lets browser peers take part in the same chat:
//
//	go run . -ws-addr :8080 -ws-origins '*'
//
// Every option may be preset with environment, see `-help`.
package main
