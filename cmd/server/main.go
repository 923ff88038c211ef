package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		EnvFile string           `help:"Path to a .env file loaded before reading configuration." default:".env" type:"path"`
		Version kong.VersionFlag `help:"Print version and exit."`

		Serve         ServeCmd         `cmd:"" default:"1" help:"Run the HTTP API."`
		AuditConsumer AuditConsumerCmd `cmd:"" help:"Append login attempts from RabbitMQ to a log file."`
		HashPassword  HashPasswordCmd  `cmd:"" help:"Print a bcrypt hash for seeding a user row."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("ngo-data-hub"),
		kong.Description("Record management API for NGO staff and volunteers."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := cmd.Run(&Globals{EnvFile: cli.EnvFile, Version: version})
	cmd.FatalIfErrorf(err)
}
