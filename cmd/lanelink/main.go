package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/lanekit/lanelink"
	"github.com/lanekit/lanelink/internal/cliconfig"
	"github.com/lanekit/lanelink/pkg/log"
)

const helpDescription = `
Connect a pinsetter lane to its coordination server and ball sensor daemon.

Highlights:
  - Maintains the lane server link with heartbeats and automatic reconnects.
  - Bridges the local ball sensor daemon over its Unix socket.
  - Configure via file, environment (LANELINK_*), or flags.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  lanelink --lane-id lane_01
  lanelink --lane-id lane_01 --server-host 10.0.0.5 --server-port 50005
  lanelink --config $HOME/.lanelink/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	zlog := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "lanelink",
		Short:   "Connect a pinsetter lane to its coordination server and ball sensor daemon",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.lanelink/config.toml),
			// then environment, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			zlog.Info().Interface("config", cfg).Msg("configuration")

			libCfg := lanelink.Config{
				LaneID:               cfg.LaneID,
				ServerHost:           cfg.ServerHost,
				ServerPort:           cfg.ServerPort,
				HeartbeatInterval:    cfg.HeartbeatInterval,
				ReconnectDelay:       cfg.ReconnectDelay,
				DialTimeout:          cfg.DialTimeout,
				SensorSocket:         cfg.SensorSocket,
				SensorConnectTimeout: cfg.SensorConnectTimeout,
				SensorWaitTimeout:    cfg.SensorWaitTimeout,
				PinMap:               cfg.PinMap,
			}

			link, err := lanelink.New(libCfg,
				lanelink.WithLogger(log.NewZerologAdapterWithLogger(zlog)),
			)
			if err != nil {
				return fmt.Errorf("create lanelink: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := link.Start(ctx); err != nil {
				return fmt.Errorf("start lanelink: %w", err)
			}

			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						status := link.Status()
						if status == lanelink.StateStopped || status == lanelink.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				zlog.Info().Msg("received signal, stopping...")
			case <-doneCh:
				if link.Status() == lanelink.StateCrashed {
					zlog.Error().Msg("lanelink crashed")
				}
			}

			if err := link.Stop(); err != nil {
				return fmt.Errorf("stop lanelink: %w", err)
			}
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.lanelink/config.toml)")
	root.Flags().StringVar(&cfg.LaneID, "lane-id", "", "unique lane identifier (required)")

	root.Flags().StringVar(&cfg.ServerHost, "server-host", cfg.ServerHost, "lane server host")
	root.Flags().IntVar(&cfg.ServerPort, "server-port", cfg.ServerPort, "lane server TCP port")
	root.Flags().DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "heartbeat interval on the lane link")
	root.Flags().DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "delay between lane reconnect attempts")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout for a single lane connection attempt")

	root.Flags().StringVar(&cfg.SensorSocket, "sensor-socket", cfg.SensorSocket, "ball sensor daemon Unix socket path")
	root.Flags().DurationVar(&cfg.SensorConnectTimeout, "sensor-connect-timeout", cfg.SensorConnectTimeout, "timeout for the sensor daemon connect")
	root.Flags().DurationVar(&cfg.SensorWaitTimeout, "sensor-wait-timeout", cfg.SensorWaitTimeout, "how long to wait for the sensor socket to appear")
	root.Flags().IntSliceVar(&cfg.PinMap, "pin-map", cfg.PinMap, "GPIO pin numbers by sensor index")

	if err := root.Execute(); err != nil {
		zlog.Error().Err(err).Msg("lanelink")
		os.Exit(1)
	}
}
