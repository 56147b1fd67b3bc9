package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wtask/relay/pkg/semver"
)

type (
	// Configuration - client configuration
	Configuration struct {
		// Address - relay address in host:port form
		Address string
		// DialTimeout - how long to wait for connection
		DialTimeout time.Duration
		// BufferSize - single send is bounded to BufferSize-1 bytes
		BufferSize int
		// NicknameSize - nickname is bounded to NicknameSize-1 bytes
		NicknameSize int
	}
)

var (
	// Config - current configuration of the client
	Config = Configuration{
		Address:      "127.0.0.1:12345",
		DialTimeout:  10 * time.Second,
		BufferSize:   1024,
		NicknameSize: 32,
	}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = semver.V{Major: 1}.String()
)

func init() {
	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Connect text chat relay\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(out, "\nDefault address may be preset with RELAY_SERVER environment.\n\n")
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, msg)
	}

	if addr := strings.TrimSpace(os.Getenv("RELAY_SERVER")); addr != "" {
		Config.Address = addr
	}

	help := false
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&Config.Address, "addr", Config.Address, "Relay address, host:port")
	flag.DurationVar(&Config.DialTimeout, "dial-timeout", Config.DialTimeout, "How long to wait for connection.")
	flag.IntVar(&Config.BufferSize, "buffer-size", Config.BufferSize, "Send buffer size in bytes, longer lines are split.")
	flag.IntVar(&Config.NicknameSize, "nickname-size", Config.NicknameSize, "Nickname buffer size in bytes.")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	switch {
	case Config.Address == "":
		printError("addr value is required")
		os.Exit(1)
	case Config.DialTimeout <= 0:
		printError("dial-timeout value should be positive")
		os.Exit(1)
	case Config.BufferSize < 2:
		printError("buffer-size value should be greater 1")
		os.Exit(1)
	case Config.NicknameSize < 2:
		printError("nickname-size value should be greater 1")
		os.Exit(1)
	}
}
