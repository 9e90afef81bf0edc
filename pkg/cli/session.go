package cli

import (
	"context"
	"fmt"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func loginCommand(d *dependencies) *cli.Command {
	var (
		cfg   = newConfig(d)
		name  string
		email string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "name",
			Aliases:     []string{"n"},
			Usage:       "Full name",
			Sources:     cli.EnvVars("AGRITECH_NAME"),
			Destination: &name,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "email",
			Aliases:     []string{"e"},
			Usage:       "Email address",
			Sources:     cli.EnvVars("AGRITECH_EMAIL"),
			Destination: &email,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, backendFlags(cfg)...)
	flags = append(flags, sinkFlags(cfg)...)

	return &cli.Command{
		Name:  "login",
		Usage: "Start a session with a name and email",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			sink, err := cfg.newLoginSink(ctx)
			if err != nil {
				// The login event is best effort; a broken sink never blocks login.
				logging.From(ctx).Warn("login sink unavailable", "error", err, "sink", cfg.loginSink)
				sink = nil
			}

			uc, err := cfg.newAuth(ctx, sink)
			if err != nil {
				return err
			}

			result, err := uc.Login(ctx, name, email)
			if err != nil {
				return goerr.Wrap(err, "failed to login")
			}

			fmt.Fprintf(c.Root().Writer, "Active Session: %s\n", result.Session.Identity.Name)
			return nil
		},
	}
}

func logoutCommand(d *dependencies) *cli.Command {
	cfg := newConfig(d)

	return &cli.Command{
		Name:  "logout",
		Usage: "End the current session. Cloud history is kept",
		Flags: globalFlags(cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			uc, err := cfg.newAuth(ctx, nil)
			if err != nil {
				return err
			}
			if err := uc.Logout(ctx); err != nil {
				return goerr.Wrap(err, "failed to logout")
			}

			fmt.Fprintln(c.Root().Writer, "Logged out")
			return nil
		},
	}
}

func whoamiCommand(d *dependencies) *cli.Command {
	var (
		cfg    = newConfig(d)
		output string
	)

	flags := append(globalFlags(cfg), outputFlag(&output))

	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the active session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setup(ctx, c)
			defer cfg.Close()

			session, err := cfg.requireSession(ctx)
			if err != nil {
				return err
			}

			if output != outputText {
				return writeStructured(c.Root().Writer, output, session)
			}

			fmt.Fprintf(c.Root().Writer, "Active Session: %s\n", session.Identity.Name)
			fmt.Fprintf(c.Root().Writer, "Email: %s\n", session.Identity.Email)
			return nil
		},
	}
}
