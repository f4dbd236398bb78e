// Command async-nostd serves the HTTP/WebSocket echo service on the nbio
// runtime.
//
// Usage:
//
//	async-nostd [workers [ip [port]]]
//
// Defaults: workers=16, ip=0.0.0.0, port=8000. The log is written to
// /tmp/async-nostd.log, truncated at startup.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joeycumines/go-nbio/echoserver"
	"github.com/spf13/cobra"
)

func newCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "async-nostd [workers [ip [port]]]",
		Short:         "HTTP/WebSocket echo service on a readiness-polled task runtime",
		Args:          cobra.MaximumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := echoserver.Config{
				Workers: 16,
				IP:      "0.0.0.0",
				Port:    8000,
				LogPath: echoserver.DefaultLogPath,
			}
			// Malformed numeric arguments fall back to the defaults;
			// numeric overflow is fatal. A malformed IP fails when the
			// listener is created.
			if len(args) > 0 {
				v, err := strconv.ParseUint(args[0], 10, 16)
				switch {
				case err == nil:
					cfg.Workers = int(v)
				case errors.Is(err, strconv.ErrRange):
					return fmt.Errorf("worker count %q out of range: %w", args[0], err)
				}
			}
			if len(args) > 1 && args[1] != "" {
				cfg.IP = args[1]
			}
			if len(args) > 2 {
				v, err := strconv.ParseUint(args[2], 10, 16)
				switch {
				case err == nil:
					cfg.Port = uint16(v)
				case errors.Is(err, strconv.ErrRange):
					return fmt.Errorf("port %q out of range: %w", args[2], err)
				}
			}
			srv, err := echoserver.New(cfg)
			if err != nil {
				return err
			}
			return srv.Serve()
		},
	}
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "async-nostd:", err)
		os.Exit(1)
	}
}
