package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/config"
	"github.com/madhavipuliraju/teams-outbound-handler/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the router setup",
		Long: `Verifies that the configuration, store, lock and listen port are usable.
Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("teamsrouter doctor v%s\n\n", version)

			var d doctorReport

			if _, err := os.Stat(cfgPath); err != nil {
				d.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'teamsrouter init' to create a default configuration.\n")
				return nil
			}
			d.pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				d.fail("Config validation", err.Error())
				return d.summary()
			}
			d.pass("Config validation", "valid")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			awsCfg, err := loadAWS(ctx, cfg)
			if err != nil {
				d.fail("AWS", err.Error())
			}
			st, err := openStore(cfg, awsCfg, logger)
			if err != nil {
				d.fail("Store", err.Error())
			} else {
				// A lookup of an unknown key exercises connectivity and schema.
				if _, err := st.Binding(ctx, "__doctor__"); err != nil {
					d.fail("Store", err.Error())
				} else {
					d.pass("Store", cfg.Store.Driver)
				}
				st.Close()
			}

			if cfg.Store.Lock.Enabled {
				locker := store.NewRedisLocker(store.RedisLockerConfig{
					Addr:     cfg.Store.Lock.Addr,
					Password: cfg.Store.Lock.Password,
					DB:       cfg.Store.Lock.DB,
					Logger:   logger,
				})
				if unlock, err := locker.Lock(ctx, "doctor"); err != nil {
					d.fail("Redis lock", err.Error())
				} else {
					unlock()
					d.pass("Redis lock", cfg.Store.Lock.Addr)
				}
			}

			if cfg.Transcript.BaseURL == "" {
				d.warn("Transcript", "transcript.baseUrl not set, resolution tickets carry no history")
			} else {
				d.pass("Transcript", cfg.Transcript.BaseURL)
			}

			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				d.warn("Listen port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
			} else {
				d.pass("Listen port", fmt.Sprintf(":%d available", cfg.Server.Port))
			}

			return d.summary()
		},
	}
}

type doctorReport struct {
	passed, warned, failed int
}

func (d *doctorReport) pass(check, detail string) {
	d.passed++
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func (d *doctorReport) fail(check, detail string) {
	d.failed++
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func (d *doctorReport) warn(check, detail string) {
	d.warned++
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}

func (d *doctorReport) summary() error {
	fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", d.passed, d.warned, d.failed)
	if d.failed > 0 {
		return fmt.Errorf("%d check(s) failed", d.failed)
	}
	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
