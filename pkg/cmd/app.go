package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/audit"
	"github.com/telekom/catfact-mailer/pkg/config"
	"github.com/telekom/catfact-mailer/pkg/dispatch"
	"github.com/telekom/catfact-mailer/pkg/mail"
	"github.com/telekom/catfact-mailer/pkg/store"
	"github.com/telekom/catfact-mailer/pkg/system"
	"github.com/telekom/catfact-mailer/pkg/version"
)

// app is the resolved configuration and logging shared by the subcommands.
type app struct {
	rt   *runtimeState
	cfg  config.Config
	zlog *zap.Logger
	log  *zap.SugaredLogger
}

func newApp(cmd *cobra.Command) (*app, error) {
	rt, err := getRuntime(cmd)
	if err != nil {
		return nil, err
	}

	zlog := rt.logger
	if zlog == nil {
		zlog, err = system.NewLogger(rt.flags.Debug)
		if err != nil {
			return nil, err
		}
	}
	log := zlog.Sugar()
	log.Infow("Starting catfacts", version.GetBuildInfo().LogFields()...)
	rt.flags.Print(log)

	cfg, err := loadConfig(rt)
	if err != nil {
		return nil, err
	}

	return &app{rt: rt, cfg: cfg, zlog: zlog, log: log}, nil
}

// loadConfig reads the YAML file, fills defaults, applies secrets from the
// environment and finally the command line overrides.
func loadConfig(rt *runtimeState) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if rt.flagChanged("config-path", "CATFACTS_CONFIG_PATH") {
		cfg, err = config.Load(rt.flags.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, fmt.Errorf("error loading config: %w", err)
	}
	cfg.Defaults()

	envFile := rt.flags.EnvFile
	if !rt.flagChanged("env-file", "CATFACTS_ENV_FILE") {
		if _, statErr := os.Stat(envFile); statErr != nil {
			envFile = ""
		}
	}
	secrets, err := config.LoadSecrets(envFile)
	if err != nil {
		return cfg, fmt.Errorf("error loading secrets: %w", err)
	}
	secrets.Apply(&cfg)

	if rt.flags.ListenAddress != "" {
		cfg.Server.ListenAddress = rt.flags.ListenAddress
	}
	if rt.flags.StorePath != "" {
		cfg.Store.Path = rt.flags.StorePath
	}
	return cfg, nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Path:        a.cfg.Store.Path,
		LockTimeout: a.cfg.StoreLockTimeout(),
		BusyTimeout: a.cfg.StoreBusyTimeout(),
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("error opening store: %w", err)
	}
	return st, nil
}

func (a *app) transport() mail.Transport {
	if a.rt.flags.DisableEmail {
		return mail.NewLogTransport(a.log)
	}
	return mail.NewSMTPTransport(a.cfg.Mail, a.log)
}

func (a *app) newDispatcher(source dispatch.Source, recorder *audit.Recorder) (*dispatch.Dispatcher, error) {
	renderer, err := mail.NewRenderer(a.cfg.Mail.Subject, a.cfg.Mail.BodyTemplate)
	if err != nil {
		return nil, err
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	return dispatch.New(source, a.transport(), renderer, recorder, a.log).WithLocation(loc), nil
}

func (a *app) sync() {
	_ = a.zlog.Sync()
}
