package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/config"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/ledger"
)

type listFlags struct {
	chambers []string
	statuses []string
	from     string
	to       string
	bill     string
	sort     string
}

func newListCmd(g *globalFlags) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print ledger events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, g, f)
		},
	}

	cmd.Flags().StringSliceVar(&f.chambers, "chamber", nil, "Only these chambers (assembly, senate)")
	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "Only these statuses (active, moved, canceled, postponed)")
	cmd.Flags().StringVar(&f.from, "from", "", "First date, YYYY-MM-DD or 'today'")
	cmd.Flags().StringVar(&f.to, "to", "", "Last date, YYYY-MM-DD or 'today'")
	cmd.Flags().StringVar(&f.bill, "bill", "", "Only this bill key")
	cmd.Flags().StringVar(&f.sort, "sort", "date", "Sort by: date, chamber or bill")
	return cmd
}

func runList(cmd *cobra.Command, g *globalFlags, f *listFlags) error {
	format, err := g.outputFormat()
	if err != nil {
		return err
	}
	order, err := parseSortOrder(f.sort)
	if err != nil {
		return err
	}
	cfg, log, err := g.load(cmd)
	if err != nil {
		return err
	}

	filter, err := f.filter(cfg)
	if err != nil {
		return err
	}

	store, err := openLedger(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Events(cmd.Context(), filter)
	if err != nil {
		return err
	}
	sortEvents(events, order)

	return WriteEvents(cmd.OutOrStdout(), &ListResult{
		GeneratedAt: time.Now().UTC(),
		EventCount:  len(events),
		Events:      events,
	}, format, g.verbose)
}

func (f *listFlags) filter(cfg config.Config) (ledger.Filter, error) {
	var filter ledger.Filter
	var err error

	if filter.Chambers, err = chambers(f.chambers); err != nil {
		return filter, err
	}
	for _, s := range f.statuses {
		st := event.Status(strings.ToLower(strings.TrimSpace(s)))
		if !st.Valid() {
			return filter, fmt.Errorf("invalid status: %s", s)
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	if filter.From, err = parseDateFlag("from", f.from, cfg); err != nil {
		return filter, err
	}
	if filter.To, err = parseDateFlag("to", f.to, cfg); err != nil {
		return filter, err
	}
	filter.BillRef = strings.TrimSpace(f.bill)
	return filter, nil
}

func parseDateFlag(name, value string, cfg config.Config) (event.Date, error) {
	switch v := strings.TrimSpace(value); {
	case v == "":
		return event.Date{}, nil
	case strings.EqualFold(v, "today"):
		return today(cfg), nil
	default:
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return event.Date{}, fmt.Errorf("invalid --%s date %q: want YYYY-MM-DD", name, value)
		}
		return event.DateOf(t), nil
	}
}
