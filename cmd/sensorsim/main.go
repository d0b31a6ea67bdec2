package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/scott-cotton/cli"

	"github.com/cyberinferno/sensorgate/sensorclient"
)

func main() {
	cli.MainContext(context.Background(), RootCommand())
}

// RootCommand returns the sensorsim command tree.
func RootCommand() *cli.Command {
	return cli.NewCommand("sensorsim").
		WithSynopsis("sensorsim <subcommand>").
		WithDescription("sensor client simulator for the gateway").
		WithSubs(SendCommand())
}

type sendConfig struct {
	*cli.Command
	Addr    string `cli:"name=addr desc='gateway address'"`
	Timeout int    `cli:"name=timeout desc='milliseconds to wait for each reply'"`
}

// SendCommand returns the send subcommand.
func SendCommand() *cli.Command {
	cfg := &sendConfig{Addr: "localhost:9000", Timeout: 1000}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Command, "send").
		WithSynopsis("send [-addr <addr>] [-timeout <ms>] <reading>...").
		WithDescription("send readings (value*10+category) one at a time and print each reply").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *sendConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: send requires at least one reading", cli.ErrUsage)
	}

	readings := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("%w: reading %q is not an integer", cli.ErrUsage, a)
		}
		readings = append(readings, n)
	}

	return sendReadings(cc.Out, cfg.Addr, readings, time.Duration(cfg.Timeout)*time.Millisecond)
}

// sendReadings sends each reading and waits up to timeout for its reply.
// Readings whose category has no reply print "(no reply)". Replies carry no
// reading identifier, so a timed out reading drops its connection and the
// next reading is sent on a new one.
func sendReadings(w io.Writer, addr string, readings []int, timeout time.Duration) error {
	var (
		client  *sensorclient.Client
		replies chan []byte
	)
	defer func() {
		if client != nil {
			_ = client.Close()
		}
	}()

	for _, n := range readings {
		if client == nil {
			var err error
			client, replies, err = dial(addr)
			if err != nil {
				return err
			}
		}

		if err := client.Send([]byte(strconv.Itoa(n))); err != nil {
			return fmt.Errorf("send %d: %w", n, err)
		}

		select {
		case data := <-replies:
			fmt.Fprintf(w, "%d -> %s\n", n, bytes.TrimRight(data, "\x00"))
		case <-time.After(timeout):
			fmt.Fprintf(w, "%d -> (no reply)\n", n)
			_ = client.Close()
			client = nil
		}
	}

	return nil
}

func dial(addr string) (*sensorclient.Client, chan []byte, error) {
	client := sensorclient.New(sensorclient.DefaultConfig(addr))
	replies := make(chan []byte, 8)
	client.OnDataReceived(func(e sensorclient.DataReceivedEvent) {
		select {
		case replies <- e.Data:
		default:
		}
	})

	if err := client.Connect(); err != nil {
		return nil, nil, err
	}

	return client, replies, nil
}
