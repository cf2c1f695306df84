package main

import (
	"flag"

	"github.com/ghaggin/accountconsole/internal/account"
	"github.com/ghaggin/accountconsole/internal/config"
	"github.com/ghaggin/accountconsole/internal/console"
	"github.com/ghaggin/accountconsole/internal/gateway"
	"github.com/ghaggin/accountconsole/internal/guard"
	"github.com/ghaggin/accountconsole/internal/repository"
	"github.com/ghaggin/accountconsole/internal/session"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	var configPath = flag.String("config", "./config/config.yaml", "path to the yaml config")
	flag.Parse()

	newPath := func() config.Path {
		return config.Path(*configPath)
	}

	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Provide(
			zap.NewDevelopment,
			newPath,
			config.New,
			repository.New,
			session.New,
			guard.NewNavigation,
			func(n *guard.Navigation) gateway.Navigator { return n },
			gateway.New,
			account.New,
		),
		console.Module,
	)

	app.Run()
}
