package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/wtask/relay/pkg/semver"
)

type (
	// Configuration - server configuration
	Configuration struct {
		// IPAddress - bind the address, empty value binds all interfaces
		IPAddress string
		// Port - bind the port
		Port uint
		// MaxClients - max number of concurrently connected clients
		MaxClients int
		// BufferSize - per-read buffer size, relayed chunk is bounded to BufferSize-1 bytes
		BufferSize int
		// NicknameSize - nickname is bounded to NicknameSize-1 bytes
		NicknameSize int
		// History - num of recent lines pushed to newly connected client
		History int
		// HandshakeTimeout - how long to wait for nickname of connected client
		HandshakeTimeout time.Duration
		// WSAddress - listen address of WebSocket gateway, empty value disables gateway
		WSAddress string
		// WSOrigins - origins allowed to connect the gateway
		WSOrigins []string
	}
)

var (
	// Config - current configuration of the server
	Config = Configuration{
		IPAddress:        "",
		Port:             12345,
		MaxClients:       100,
		BufferSize:       1024,
		NicknameSize:     32,
		History:          10,
		HandshakeTimeout: 30 * time.Second,
	}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = semver.V{Major: 1}.Build(revision()).String()
)

// revision - short VCS revision stamped into binary, if any.
func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

func init() {
	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Launch text chat relay over TCP\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(
			out,
			"\nDefaults may be preset with environment:\n",
			"RELAY_ADDR, RELAY_PORT, RELAY_MAX_CLIENTS, RELAY_BUFFER_SIZE, RELAY_NICKNAME_SIZE,\n",
			"RELAY_HISTORY, RELAY_HANDSHAKE_TIMEOUT, RELAY_WS_ADDR, RELAY_WS_ORIGINS\n\n",
		)
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, msg)
	}

	if err := applyEnv(&Config); err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	help := false
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&Config.IPAddress, "ip", Config.IPAddress, "Listen address")
	flag.UintVar(&Config.Port, "port", Config.Port, "Listen port")
	flag.IntVar(&Config.MaxClients, "max-clients", Config.MaxClients, "Max number of concurrently connected clients.")
	flag.IntVar(&Config.BufferSize, "buffer-size", Config.BufferSize, "Per-read buffer size in bytes.")
	flag.IntVar(&Config.NicknameSize, "nickname-size", Config.NicknameSize, "Nickname buffer size in bytes.")
	flag.IntVar(
		&Config.History,
		"history",
		Config.History,
		"Num of recent lines which is pushed to newly connected client, 0 disables history.",
	)
	flag.DurationVar(
		&Config.HandshakeTimeout,
		"handshake-timeout",
		Config.HandshakeTimeout,
		"How long to wait for nickname of connected client.",
	)
	flag.StringVar(&Config.WSAddress, "ws-addr", Config.WSAddress, "Listen address of WebSocket gateway, empty value disables it.")
	origins := strings.Join(Config.WSOrigins, ",")
	flag.StringVar(&origins, "ws-origins", origins, "Comma separated origins allowed to use WebSocket gateway, '*' allows any.")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	switch {
	case Config.Port == 0 || Config.Port > 65535:
		printError("port value should be in range 1..65535")
		os.Exit(1)
	case Config.MaxClients < 1:
		printError("max-clients value should be greater or equal 1")
		os.Exit(1)
	case Config.BufferSize < 2:
		printError("buffer-size value should be greater 1")
		os.Exit(1)
	case Config.NicknameSize < 2:
		printError("nickname-size value should be greater 1")
		os.Exit(1)
	case Config.History < 0:
		printError("history value should be greater or equal 0")
		os.Exit(1)
	case Config.HandshakeTimeout <= 0:
		printError("handshake-timeout value should be positive")
		os.Exit(1)
	}
	Config.WSOrigins = splitList(origins)

	fmt.Fprint(out, "TCP chat relay is launching, press Ctrl-C to stop...\n")
}
