package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rFoxen/BlueskyModerationExtension-sub001/blocksync"
	"github.com/rFoxen/BlueskyModerationExtension-sub001/control"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name: "modext",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pds-host",
				EnvVars: []string{"MODEXT_PDS_HOST"},
				Value:   "https://bsky.social",
			},
			&cli.StringFlag{
				Name:    "identifier",
				EnvVars: []string{"MODEXT_IDENTIFIER"},
			},
			&cli.StringFlag{
				Name:    "password",
				EnvVars: []string{"MODEXT_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "db-path",
				EnvVars: []string{"MODEXT_DB_PATH"},
				Value:   "modext.db",
			},
			&cli.StringFlag{
				Name:    "addr",
				EnvVars: []string{"MODEXT_ADDR"},
				Value:   "127.0.0.1:8945",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				EnvVars: []string{"MODEXT_METRICS_ADDR"},
				Value:   "127.0.0.1:8946",
			},
			&cli.StringFlag{
				Name:     "api-key",
				EnvVars:  []string{"MODEXT_API_KEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "control-host",
				EnvVars: []string{"MODEXT_CONTROL_HOST"},
				Value:   "http://127.0.0.1:8945",
			},
			&cli.BoolFlag{
				Name:    "debug",
				EnvVars: []string{"MODEXT_DEBUG"},
			},
		},
		Commands: cli.Commands{
			&cli.Command{
				Name:   "run",
				Usage:  "run the moderation daemon",
				Action: run,
			},
			&cli.Command{
				Name:      "load",
				Usage:     "load a moderation list into a running daemon's cache",
				ArgsUsage: "<list-uri>",
				Action:    withClient(cmdLoad),
			},
			&cli.Command{
				Name:      "refresh",
				Usage:     "purge and re-walk a moderation list",
				ArgsUsage: "<list-uri>",
				Action:    withClient(cmdRefresh),
			},
			&cli.Command{
				Name:      "status",
				Usage:     "show sync status for a list",
				ArgsUsage: "<list-uri>",
				Action:    withClient(cmdStatus),
			},
			&cli.Command{
				Name:      "block",
				Usage:     "add a user to a moderation list",
				ArgsUsage: "<handle> <list-uri>",
				Action:    withClient(cmdBlock),
			},
			&cli.Command{
				Name:      "unblock",
				Usage:     "remove a user from a moderation list",
				ArgsUsage: "<handle> <list-uri>",
				Action:    withClient(cmdUnblock),
			},
			&cli.Command{
				Name:   "export",
				Usage:  "dump the daemon's cache as backup JSON on stdout",
				Action: withClient(cmdExport),
			},
		},
		ErrWriter: os.Stderr,
	}

	app.Run(os.Args)
}

var run = func(cmd *cli.Context) error {
	ctx := cmd.Context
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}

	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	g, err := blocksync.New(ctx, &blocksync.Args{
		Logger:      l,
		PdsHost:     cmd.String("pds-host"),
		Identifier:  cmd.String("identifier"),
		Password:    cmd.String("password"),
		DbPath:      cmd.String("db-path"),
		Addr:        cmd.String("addr"),
		MetricsAddr: cmd.String("metrics-addr"),
		ApiKey:      cmd.String("api-key"),
	})
	if err != nil {
		panic(err)
	}

	go func() {
		exitSignals := make(chan os.Signal, 1)
		signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)

		sig := <-exitSignals

		l.Info("received os exit signal", "signal", sig)
		cancel()
	}()

	if err := g.Run(ctx); err != nil {
		panic(err)
	}

	return nil
}

func withClient(fn func(*cli.Context, *control.Client) error) cli.ActionFunc {
	return func(cmd *cli.Context) error {
		c, err := control.NewClient(&control.ClientArgs{
			Host:   cmd.String("control-host"),
			ApiKey: cmd.String("api-key"),
		})
		if err != nil {
			return err
		}
		return fn(cmd, c)
	}
}

func cmdLoad(cmd *cli.Context, c *control.Client) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: modext load <list-uri>")
	}
	return c.LoadList(cmd.Context, cmd.Args().Get(0))
}

func cmdRefresh(cmd *cli.Context, c *control.Client) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: modext refresh <list-uri>")
	}
	return c.RefreshList(cmd.Context, cmd.Args().Get(0))
}

func cmdStatus(cmd *cli.Context, c *control.Client) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: modext status <list-uri>")
	}
	status, err := c.ListStatus(cmd.Context, cmd.Args().Get(0))
	if err != nil {
		return err
	}
	fmt.Printf("list: %s\n", status.ListUri)
	fmt.Printf("cached users: %d\n", status.Count)
	fmt.Printf("processed cursors: %d\n", status.ProcessedCursors)
	fmt.Printf("complete: %v\n", status.IsComplete)
	return nil
}

func cmdBlock(cmd *cli.Context, c *control.Client) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: modext block <handle> <list-uri>")
	}
	rec, err := c.Block(cmd.Context, cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}
	fmt.Printf("blocked @%s (%s)\n", rec.UserHandle, rec.Did)
	return nil
}

func cmdUnblock(cmd *cli.Context, c *control.Client) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: modext unblock <handle> <list-uri>")
	}
	if err := c.Unblock(cmd.Context, cmd.Args().Get(0), cmd.Args().Get(1)); err != nil {
		return err
	}
	fmt.Printf("unblocked @%s\n", cmd.Args().Get(0))
	return nil
}

func cmdExport(cmd *cli.Context, c *control.Client) error {
	b, err := c.Export(cmd.Context)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}
