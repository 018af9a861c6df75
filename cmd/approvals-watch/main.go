package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/adrg/xdg"

	"cassa/internal/log"
	"cassa/internal/poller"
)

const tokenStatePath = "cassa/approvals-watch.token"

type Params struct {
	Server   string `descr:"Base URL of the cassa server" default:"http://localhost:8081"`
	Token    string `descr:"Bearer token from /api/auth/login; saved for later runs" env:"CASSA_TOKEN" optional:"true"`
	Interval string `descr:"Polling interval" default:"20s"`
	NoBell   bool   `descr:"Do not ring the terminal bell on new approvals" optional:"true"`
	Once     bool   `descr:"Print the pending approvals once and exit" optional:"true"`
	Verbose  bool   `descr:"Log every poll to stderr" optional:"true"`
}

func main() {
	boa.NewCmdT[Params]("approvals-watch").
		WithShort("Watch a cassa server for expenses awaiting approval").
		WithLong("Polls the pending-approvals count and alerts on the terminal, with a bell and a coloured line, whenever it grows. The pending expenses are shown as a table.").
		WithRunFunc(func(params *Params) {
			if err := run(params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}).
		Run()
}

func run(params *Params) error {
	token, err := resolveToken(params.Token)
	if err != nil {
		return err
	}
	interval, err := time.ParseDuration(params.Interval)
	if err != nil || interval <= 0 {
		return fmt.Errorf("invalid interval %q", params.Interval)
	}

	logCfg := log.DefaultConfig()
	logCfg.Output = os.Stderr
	logCfg.Level = log.ParseLevel("warn")
	if params.Verbose {
		logCfg.Level = log.ParseLevel("debug")
	}
	logger := log.New(logCfg).WithComponent(log.ComponentPoller)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(params.Server, token, nil)
	me, err := client.Me(ctx)
	if err != nil {
		return err
	}

	pending, err := client.Pending(ctx, tableLimit)
	if err != nil {
		if errors.Is(err, errUnauthorized) {
			return err
		}
		return fmt.Errorf("%s cannot review approvals: %w", me.User.Email, err)
	}
	renderPending(os.Stdout, pending)
	if params.Once {
		return nil
	}

	notifier := newTerminalNotifier(os.Stdout, !params.NoBell, client)
	sup := poller.New(client, notifier, nil, poller.Config{Interval: interval, Logger: logger.Logger})
	if err := sup.Start(ctx, me.User.Email); err != nil {
		return err
	}
	fmt.Printf("Watching %s as %s every %s. Ctrl-C to stop.\n", params.Server, me.User.Name, interval)

	<-ctx.Done()
	sup.Stop()
	return nil
}

// resolveToken prefers the flag (or CASSA_TOKEN) and remembers it in the
// XDG state directory; without one it falls back to the remembered token.
func resolveToken(flag string) (string, error) {
	path, err := xdg.StateFile(tokenStatePath)
	if err != nil {
		return "", fmt.Errorf("locate token file: %w", err)
	}

	if flag = strings.TrimSpace(flag); flag != "" {
		if err := os.WriteFile(path, []byte(flag+"\n"), 0o600); err != nil {
			return "", fmt.Errorf("save token: %w", err)
		}
		return flag, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("no token: pass --token or set CASSA_TOKEN")
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.New("no token: pass --token or set CASSA_TOKEN")
	}
	return token, nil
}
