package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/bt"
	"github.com/zeusync/behave/internal/core/events/bus"
	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/core/observability/metrics"
	"github.com/zeusync/behave/internal/host"
	"github.com/zeusync/behave/internal/planner/pabt"
	"github.com/zeusync/behave/internal/server"
)

// Config collects everything needed to assemble an App.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	// Seed seeds every stochastic node; zero picks a random seed.
	Seed      uint64        `mapstructure:"seed"`
	Namespace string        `mapstructure:"namespace"`
	Host      host.Config   `mapstructure:"host"`
	Server    server.Config `mapstructure:"server"`
	Actions   []pabt.Action `mapstructure:"-"`
}

// App is the assembled object graph.
type App struct {
	Logger    *log.Logger
	Resolver  *binding.BlackboardResolver
	Planners  *pabt.Factory
	Workspace *bt.Workspace
	Metrics   *metrics.Collector
	Bus       *bus.Bus
	Host      *host.Host
	Server    *server.Server
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideResolver,
	ProvidePlanners,
	ProvideWorkspace,
	ProvideMetrics,
	ProvideBus,
	ProvideHost,
	ProvideServer,
	wire.Bind(new(log.Log), new(*log.Logger)),
	wire.Bind(new(binding.Resolver), new(*binding.BlackboardResolver)),
	wire.Bind(new(bt.PlannerFactory), new(*pabt.Factory)),
	wire.Bind(new(metrics.Recorder), new(*metrics.Collector)),
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg Config) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	l := log.New(level)
	return l, func() { _ = l.Sync() }, nil
}

func ProvideResolver() *binding.BlackboardResolver {
	return binding.NewBlackboardResolver()
}

func ProvidePlanners(cfg Config) (*pabt.Factory, error) {
	return pabt.NewFactory(cfg.Actions...)
}

func ProvideWorkspace(cfg Config, r binding.Resolver, planners bt.PlannerFactory, l log.Log) *bt.Workspace {
	opts := []bt.Option{bt.WithPlannerFactory(planners), bt.WithLogger(l)}
	if cfg.Seed != 0 {
		opts = append(opts, bt.WithSeed(cfg.Seed))
	}
	return bt.NewWorkspace(r, opts...)
}

func ProvideMetrics(cfg Config) *metrics.Collector {
	ns := cfg.Namespace
	if ns == "" {
		ns = "behave"
	}
	return metrics.NewCollector(ns)
}

func ProvideBus() *bus.Bus {
	return bus.NewBus()
}

func ProvideHost(cfg Config, ws *bt.Workspace, l log.Log, rec metrics.Recorder, b *bus.Bus) (*host.Host, func()) {
	h := host.New(ws, cfg.Host, host.WithLogger(l), host.WithMetrics(rec), host.WithBus(b))
	return h, h.Close
}

func ProvideServer(cfg Config, h *host.Host, l log.Log, c *metrics.Collector) (*server.Server, func()) {
	s := server.NewServer(h, cfg.Server, server.WithLogger(l), server.WithMetrics(c.Handler()))
	return s, func() { _ = s.Close() }
}
