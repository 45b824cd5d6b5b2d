package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Version kong.VersionFlag `help:"Print the version and exit."`
		Serve   serveCmd         `cmd:"" default:"1" help:"Run migrations and serve the HTTP API."`
		Migrate migrateCmd       `cmd:"" help:"Apply pending database migrations, seed template presets and exit."`
	}
)

func main() {
	// Root context that cancels on shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("agent-console"),
		kong.Description("Multi-tenant voice-agent management console API."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	cmd.FatalIfErrorf(cmd.Run())
}
