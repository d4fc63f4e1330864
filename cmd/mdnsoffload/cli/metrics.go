package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-mdnsoffload/store/sqlite"
)

// MetricsCmd reads harvested counters from the daemon's database.
type MetricsCmd struct {
	OutputFlags
	DB       string `name:"db" help:"SQLite database path. Defaults to the database under the runtime directory."`
	Harvests int    `name:"harvests" help:"Also list the most recent harvests." default:"0"`
}

type metricsOutput struct {
	Totals   sqlite.Totals    `json:"totals"`
	Harvests []sqlite.Harvest `json:"harvests,omitempty"`
}

// Run executes the metrics command.
func (c *MetricsCmd) Run(cli *CLI) error {
	logger, err := cli.Logger()
	if err != nil {
		return err
	}
	path := c.DB
	if path == "" {
		dirs, err := cli.RuntimeDirs()
		if err != nil {
			return err
		}
		path = dirs.DBPath()
	}

	ctx := context.Background()
	st, err := sqlite.New(ctx, path, logger)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer st.Close()

	var out metricsOutput
	if out.Totals, err = st.Totals(ctx); err != nil {
		return err
	}
	if c.Harvests > 0 {
		if out.Harvests, err = st.Harvests(ctx, c.Harvests); err != nil {
			return err
		}
	}

	if c.Output == "json" {
		s, err := formatJSON(out)
		if err != nil {
			return err
		}
		fmt.Print(s)
		return nil
	}
	fmt.Print(formatTotals(out.Totals))
	if len(out.Harvests) > 0 {
		fmt.Println()
		fmt.Print(formatHarvests(out.Harvests))
	}
	return nil
}
