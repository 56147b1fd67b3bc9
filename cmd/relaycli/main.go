package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wtask/relay/internal/client"
)

// askNickname - prompts until non-empty nickname is entered.
func askNickname(in *bufio.Reader, out io.Writer) (string, error) {
	for {
		fmt.Fprint(out, "Enter your nickname: ")
		line, err := in.ReadString('\n')
		if nickname := strings.TrimSpace(line); nickname != "" {
			return nickname, nil
		}
		if err != nil {
			return "", err
		}
	}
}

func main() {
	in := bufio.NewReaderSize(os.Stdin, Config.BufferSize)
	nickname, err := askNickname(in, os.Stdout)
	if err != nil {
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, Config.DialTimeout)
	c, err := client.Dial(
		dialCtx,
		Config.Address,
		nickname,
		client.WithBufferSize(Config.BufferSize),
		client.WithNicknameSize(Config.NicknameSize),
	)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Connection failed:", err)
		os.Exit(1)
	}
	defer c.Close()
	fmt.Println("You can now start chatting!")

	err = c.Run(ctx, in, os.Stdout)
	switch {
	case errors.Is(err, client.ErrServerGone):
		fmt.Fprintln(os.Stderr, "Server disconnected.")
		c.Close()
		os.Exit(1)
	case errors.Is(err, context.Canceled):
	case err != nil:
		fmt.Fprintln(os.Stderr, "Connection lost:", err)
		c.Close()
		os.Exit(1)
	}
}
