package main

import (
	"context"

	"github.com/alecthomas/kong"

	"collabsauce/api/cmd/api/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug logging."`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" default:"1" help:"Start the HTTP API."`
		Worker  commands.WorkerCmd  `cmd:"" help:"Process background jobs."`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply database migrations and exit."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("collabsauce-api"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
