package relayserver

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Main parses args, builds the App and executes the command. It is what the
// flatplan-relay binary runs, and tests can call it directly with a
// cancellable context.
//
//	flatplan-relay run
//	flatplan-relay -store postgres migrate
func Main(ctx context.Context, args []string) (err error) {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		err = multierr.Append(err, app.Close())
	}()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	return nil
}
