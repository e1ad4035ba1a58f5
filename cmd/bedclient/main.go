package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danmuck/bedctl/internal/client"
	"github.com/danmuck/bedctl/internal/logging"
	"github.com/spf13/pflag"
)

const usage = `usage: bedclient <command> [flags] args

commands:
  join   <room> <tag>          associate tag with room
  leave  <room> <tag>          remove tag from its room
  report <tag> <state> [room]  send a tag state report
  poll   <tag>                 fetch the pending command for tag
  submit <tag> <action>        queue a command for tag
  rssi   <room> <tag> <value>  send one rssi reading
`

func main() {
	logging.ConfigureRuntime()
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	fs := pflag.NewFlagSet(cmd, pflag.ExitOnError)
	addr := fs.StringP("addr", "a", "127.0.0.1:5000", "bedctl tag listener address")
	timeout := fs.Duration("timeout", 5*time.Second, "per-request timeout")
	_ = fs.Parse(os.Args[2:])

	c := client.New(*addr).WithTimeout(*timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := run(ctx, c, cmd, fs.Args())
	if err != nil {
		var rejected *client.RejectedError
		if errors.As(err, &rejected) {
			fmt.Fprintf(os.Stderr, "bedclient: %s %s\n", rejected.Status, rejected.Reason)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "bedclient: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) (any, error) {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d args\n%s", cmd, n, usage)
		}
		return nil
	}

	switch cmd {
	case "join":
		if err := need(2); err != nil {
			return nil, err
		}
		if err := c.Join(ctx, args[0], args[1], time.Now()); err != nil {
			return nil, err
		}
		return map[string]string{"status": "joined", "quarto": args[0], "ativo": args[1]}, nil
	case "leave":
		if err := need(2); err != nil {
			return nil, err
		}
		if err := c.Leave(ctx, args[0], args[1]); err != nil {
			return nil, err
		}
		return map[string]string{"status": "left", "quarto": args[0], "ativo": args[1]}, nil
	case "report":
		if err := need(2); err != nil {
			return nil, err
		}
		room := ""
		if len(args) > 2 {
			room = args[2]
		}
		return c.Report(ctx, args[0], room, args[1])
	case "poll":
		if err := need(1); err != nil {
			return nil, err
		}
		command, ok, err := c.Poll(ctx, args[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]string{"status": "empty"}, nil
		}
		return command, nil
	case "submit":
		if err := need(2); err != nil {
			return nil, err
		}
		return c.Submit(ctx, args[0], args[1])
	case "rssi":
		if err := need(3); err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return nil, fmt.Errorf("rssi: %w", err)
		}
		reset, err := c.Telemetry(ctx, args[0], args[1], value)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"reset": reset}, nil
	default:
		return nil, fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}
