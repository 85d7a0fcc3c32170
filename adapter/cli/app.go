package cli

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/boardsync/internal/app"
	"github.com/felixgeelhaar/boardsync/pkg/config"
)

// container is the wired application, set by cmd/boardsync before Execute.
var container *app.Container

// SetContainer sets the application container used by all commands.
func SetContainer(c *app.Container) {
	container = c
}

// getContainer returns the wired container, building one lazily when the
// binary is run without prior wiring (tests mostly).
func getContainer(cmd *cobra.Command) (*app.Container, error) {
	if container != nil {
		return container, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c, err := app.NewContainer(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	container = c
	return container, nil
}
