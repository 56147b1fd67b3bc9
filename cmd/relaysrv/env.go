package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv - overwrites defaults of cfg with RELAY_* environment variables.
func applyEnv(cfg *Configuration) error {
	if v, ok := lookup("RELAY_ADDR"); ok {
		cfg.IPAddress = v
	}
	if err := uintEnv("RELAY_PORT", &cfg.Port); err != nil {
		return err
	}
	for name, dst := range map[string]*int{
		"RELAY_MAX_CLIENTS":   &cfg.MaxClients,
		"RELAY_BUFFER_SIZE":   &cfg.BufferSize,
		"RELAY_NICKNAME_SIZE": &cfg.NicknameSize,
		"RELAY_HISTORY":       &cfg.History,
	} {
		if err := intEnv(name, dst); err != nil {
			return err
		}
	}
	if err := durationEnv("RELAY_HANDSHAKE_TIMEOUT", &cfg.HandshakeTimeout); err != nil {
		return err
	}
	if v, ok := lookup("RELAY_WS_ADDR"); ok {
		cfg.WSAddress = v
	}
	if v, ok := lookup("RELAY_WS_ORIGINS"); ok {
		cfg.WSOrigins = splitList(v)
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func intEnv(name string, dst *int) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid value %q", name, v)
	}
	*dst = n
	return nil
}

func uintEnv(name string, dst *uint) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return fmt.Errorf("%s: invalid value %q", name, v)
	}
	*dst = uint(n)
	return nil
}

func durationEnv(name string, dst *time.Duration) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid value %q", name, v)
	}
	*dst = d
	return nil
}

// splitList - splits comma separated list, empty items are skipped.
func splitList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
