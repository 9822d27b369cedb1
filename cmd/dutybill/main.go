package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dutybill/internal/clock"
	"github.com/smallbiznis/dutybill/internal/config"
	"github.com/smallbiznis/dutybill/internal/migration"
	"github.com/smallbiznis/dutybill/internal/observability"
	"github.com/smallbiznis/dutybill/internal/server"
	"github.com/smallbiznis/dutybill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
