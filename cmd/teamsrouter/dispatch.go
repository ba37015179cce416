package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch [file]",
		Short: "Dispatch one event read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			ev, err := readEvent(in)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			dispatchErr := a.router.Dispatch(ctx, ev)
			if err := a.Close(ctx); err != nil {
				logger.Warn("store close failed", "err", err)
			}
			return dispatchErr
		},
	}
}

func readEvent(r io.Reader) (domain.Event, error) {
	var ev domain.Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.AuthID == "" {
		return domain.Event{}, fmt.Errorf("decode event: user is required")
	}
	return ev, nil
}
