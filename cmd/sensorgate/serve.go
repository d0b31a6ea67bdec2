package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scott-cotton/cli"

	"github.com/cyberinferno/sensorgate/config"
	"github.com/cyberinferno/sensorgate/eventlog"
	"github.com/cyberinferno/sensorgate/gateway"
	"github.com/cyberinferno/sensorgate/logger"
	"github.com/cyberinferno/sensorgate/sequence"
)

type serveConfig struct {
	*cli.Command
	ConfigFile string `cli:"name=config desc='configuration file (YAML)'"`
	Addr       string `cli:"name=addr desc='listen address, overrides the configuration'"`
}

// ServeCommand returns the serve subcommand.
func ServeCommand() *cli.Command {
	cfg := &serveConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Command, "serve").
		WithSynopsis("serve [-config <file>] [-addr <addr>] [<port>]").
		WithDescription("run the gateway until interrupted").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *serveConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		return fmt.Errorf("%w: serve takes at most one argument, a port", cli.ErrUsage)
	}

	c, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return err
	}
	if cfg.Addr != "" {
		c.Listen = cfg.Addr
	}
	if len(args) == 1 {
		if err := c.SetPort(args[0]); err != nil {
			return fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
	}
	if err := c.Validate(); err != nil {
		return err
	}

	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, c, log, time.Now())
	if err != nil {
		log.Error("startup failed", logger.Err(err))
		return err
	}
	defer rt.close()

	if err := rt.gateway.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutdown requested")
	return rt.gateway.Stop()
}

func newLogger(c config.Config) (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	format, err := logger.ParseFormat(c.Log.Format)
	if err != nil {
		return nil, err
	}

	return logger.New(logger.Options{
		Service: c.Log.Service,
		Level:   level,
		Format:  format,
		Dir:     c.Log.Dir,
	})
}

// runtime holds everything opened at startup.
type runtime struct {
	gateway *gateway.Gateway
	files   map[int]*os.File
	redis   *redis.Client
	log     logger.Logger
}

// newRuntime opens the dated log files, prepares the sequence counters and
// builds the gateway. Everything opened is released if a later step fails.
func newRuntime(ctx context.Context, c config.Config, log logger.Logger, now time.Time) (rt *runtime, err error) {
	rt = &runtime{log: log}
	defer func() {
		if err != nil {
			rt.close()
			rt = nil
		}
	}()

	rt.files, err = eventlog.OpenFiles(c.ErrorLog.Dir, c.ErrorLog.FileNames(), now)
	if err != nil {
		return rt, err
	}

	sinks := make(map[int]eventlog.Sink, len(rt.files))
	for category, f := range rt.files {
		sinks[category] = eventlog.Sink{Writer: f}
		log.Info("error log opened",
			logger.Field{Key: "category", Value: category},
			logger.Field{Key: "path", Value: f.Name()})
	}

	if c.Sequence.Backend == config.BackendRedis {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     c.Sequence.Redis.Addr,
			Password: c.Sequence.Redis.Password,
			DB:       c.Sequence.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err = sequence.Ping(pingCtx, rt.redis); err != nil {
			return rt, err
		}

		for category, s := range sinks {
			s.Counter = sequence.NewRedisCounter(rt.redis, c.RedisKey(category))
			sinks[category] = s
		}
	}

	recorder := eventlog.NewRecorder(sinks, nil)
	rt.gateway = gateway.New(c.GatewayOptions(), recorder, log)
	return rt, nil
}

func (rt *runtime) close() {
	var errs []error
	if rt.files != nil {
		errs = append(errs, eventlog.CloseFiles(rt.files))
	}
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}

	if err := errors.Join(errs...); err != nil {
		rt.log.Warn("failed to release resources", logger.Err(err))
	}
}
