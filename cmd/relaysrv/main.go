package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wtask/relay/internal/relay"
	"github.com/wtask/relay/internal/relay/gateway"
	"github.com/wtask/relay/internal/relay/mux"
)

func main() {
	logger := stdlog.New(os.Stdout, BinaryName+":"+Version+" ", stdlog.Ldate|stdlog.Ltime)
	logger.Printf("Started with config: %+v", Config)

	node := net.JoinHostPort(Config.IPAddress, fmt.Sprintf("%d", Config.Port))
	listener, err := net.Listen("tcp", node)
	if err != nil {
		logger.Println("ERR", "Unable to listen TCP:", err)
		os.Exit(1)
	}

	options := []relay.Option{
		relay.WithMaxClients(Config.MaxClients),
		relay.WithBufferSize(Config.BufferSize),
		relay.WithNicknameSize(Config.NicknameSize),
		relay.WithHistory(Config.History),
		relay.WithHandshakeTimeout(Config.HandshakeTimeout),
		relay.WithLogger(logger),
	}

	var (
		wsListener net.Listener
		wsServer   *http.Server
	)
	if Config.WSAddress != "" {
		wsListener, err = net.Listen("tcp", Config.WSAddress)
		if err != nil {
			logger.Println("ERR", "Unable to listen gateway:", err)
			listener.Close()
			os.Exit(1)
		}
		gw, err := gateway.NewListener(
			wsListener.Addr(),
			gateway.WithLogger(logger),
			gateway.WithOrigins(Config.WSOrigins...),
			gateway.WithBufferSize(Config.BufferSize),
		)
		if err != nil {
			logger.Println("ERR", "Invalid gateway config:", err)
			listener.Close()
			wsListener.Close()
			os.Exit(1)
		}
		wsServer = gateway.NewServer(Config.WSAddress, gateway.Routes(gw))
		options = append(options, relay.WithListener(gw))
	}

	server, err := relay.NewServer(listener, options...)
	if err != nil {
		logger.Println("ERR", "Can't start relay server:", err)
		listener.Close()
		if wsListener != nil {
			wsListener.Close()
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if wsServer != nil {
		g.Go(func() error {
			logger.Println("WebSocket gateway listening on", wsListener.Addr())
			if err := wsServer.Serve(wsListener); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return wsServer.Shutdown(shutdown)
		})
	}

	logger.Println("Chat relay has started.")
	err = g.Wait()
	stop()

	var fatal *mux.MultiplexError
	switch {
	case errors.As(err, &fatal):
		logger.Println("ERR", "Multiplexing failed:", fatal)
		os.Exit(1)
	case err != nil:
		logger.Println("ERR", "Relay failed:", err)
		os.Exit(1)
	}
	logger.Println("Chat relay stopped, bye")
}
