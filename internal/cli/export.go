package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/calendar"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/ledger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

type exportFlags struct {
	chambers []string
	out      string
	name     string
}

func newExportCmd(g *globalFlags) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write upcoming hearings as an iCalendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, g, f)
		},
	}

	cmd.Flags().StringSliceVar(&f.chambers, "chamber", nil, "Only these chambers (assembly, senate)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&f.name, "name", "California Legislature Hearings", "Calendar name")
	return cmd
}

func runExport(cmd *cobra.Command, g *globalFlags, f *exportFlags) error {
	cfg, log, err := g.load(cmd)
	if err != nil {
		return err
	}
	chs, err := chambers(f.chambers)
	if err != nil {
		return err
	}

	store, err := openLedger(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Events(cmd.Context(), ledger.Filter{
		Chambers: chs,
		From:     today(cfg),
		Statuses: []event.Status{event.StatusActive, event.StatusMoved, event.StatusPostponed},
	})
	if err != nil {
		return err
	}

	ics := calendar.GenerateICS(events, calendar.Options{
		Name:     f.name,
		Now:      time.Now(),
		Location: cfg.Location(),
	})

	if f.out == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), ics)
	} else {
		// WriteFile also returns the error from Close
		err = os.WriteFile(f.out, []byte(ics), 0644)
	}
	if err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}

	log.Info("Calendar exported", logger.Fields{"events": len(events), "out": f.out})
	return nil
}
