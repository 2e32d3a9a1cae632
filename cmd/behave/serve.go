package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/events/bus"
	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/host"
	"github.com/zeusync/behave/internal/injector"
	"github.com/zeusync/behave/internal/server"
	"github.com/zeusync/behave/internal/store/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>...",
	Short: "Run the frame loop and expose agents over HTTP",
	Long: `Loads the trees, binds agents to the first one and ticks them every frame.
The HTTP API lists agents, accepts events and streams frames over a websocket.
With --redis, blackboards are restored on start and saved on shutdown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		token, _ := cmd.Flags().GetString("token")
		agents, _ := cmd.Flags().GetInt("agents")
		interval, _ := cmd.Flags().GetDuration("interval")
		redisAddr, _ := cmd.Flags().GetString("redis")
		ttl, _ := cmd.Flags().GetDuration("snapshot-ttl")

		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		cfg.Host = host.Config{FrameInterval: interval}
		cfg.Server = server.Config{ListenAddr: addr, Token: token}
		app, cleanup, err := injector.InitializeApp(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		registerBuiltins(app.Resolver, app.Logger)

		ids, err := loadTrees(app.Workspace, args)
		if err != nil {
			return err
		}

		var store *redis.SnapshotStore
		if redisAddr != "" {
			store = redis.New(redisAddr, "", 0, redis.WithTTL(ttl))
			defer store.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bound := make([]*binding.BasicAgent, 0, agents)
		for i := range agents {
			agent := binding.NewAgent(fmt.Sprintf("agent-%03d", i))
			if store != nil {
				if err := restore(ctx, store, agent); err != nil {
					return err
				}
			}
			if err := app.Host.Bind(agent, ids[0]); err != nil {
				return err
			}
			bound = append(bound, agent)
		}

		if store != nil {
			byID := make(map[string]*binding.BasicAgent, len(bound))
			for _, agent := range bound {
				byID[agent.ID()] = agent
			}
			// keep the state a tree failed on; the tree stays poisoned until rebound
			sub := app.Bus.Subscribe(bus.AgentFailed, func(e bus.Event) error {
				agent, ok := byID[e.Agent]
				if !ok {
					return nil
				}
				return store.Save(ctx, agent.ID(), agent.Blackboard())
			})
			defer sub.Cancel()
		}

		if err := app.Server.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "serving %d agents on %s\n", len(bound), app.Server.Addr())

		if err := app.Host.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.Logger.Error("frame loop stopped", log.Error(err))
		}
		app.Logger.Info("shutting down")

		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Server.Stop(shutdown); err != nil {
			app.Logger.Warn("graceful shutdown did not complete", log.Error(err))
		}
		if store != nil {
			for _, agent := range bound {
				if err := store.Save(shutdown, agent.ID(), agent.Blackboard()); err != nil {
					app.Logger.Error("save snapshot", log.Agent(agent.ID()), log.Error(err))
				}
			}
		}
		return nil
	},
}

func restore(ctx context.Context, store *redis.SnapshotStore, agent *binding.BasicAgent) error {
	err := store.Load(ctx, agent.ID(), agent.Blackboard())
	if errors.Is(err, redis.ErrSnapshotNotFound) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Address to listen on")
	serveCmd.Flags().String("token", "", "Bearer token required by the API; empty disables auth")
	serveCmd.Flags().IntP("agents", "n", 1, "Number of agents to bind")
	serveCmd.Flags().Duration("interval", 100*time.Millisecond, "Frame interval")
	serveCmd.Flags().String("redis", "", "Redis address for blackboard snapshots")
	serveCmd.Flags().Duration("snapshot-ttl", 0, "Snapshot expiry; 0 keeps them forever")
}
