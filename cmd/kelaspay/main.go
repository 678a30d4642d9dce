package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/config"
	"github.com/kelaspay/kelaspay/internal/migration"
	"github.com/kelaspay/kelaspay/internal/observability"
	"github.com/kelaspay/kelaspay/internal/server"
	"github.com/kelaspay/kelaspay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
