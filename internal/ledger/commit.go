package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

// Plan is the outcome of merging a scrape into the known future window
type Plan struct {
	// Retained are the known rows, with any status change, written back as they are
	Retained []event.ScheduledEvent
	// Upserts are fresh rows; one sharing an identity with a retained row revises it
	Upserts []event.ScheduledEvent
	Notices []event.StatusChangeNotice
}

// MergeFunc computes a Plan from the known future rows
type MergeFunc func(known []event.ScheduledEvent) (*Plan, error)

// CommitOptions scopes a commit to the future window of some chambers
type CommitOptions struct {
	Today    event.Date
	Chambers []event.Chamber
	DryRun   bool // run every statement, then roll back
}

// CommitResult reports what a commit wrote
type CommitResult struct {
	Known            int
	Retained         int
	Upserted         int
	NoticesApplied   int
	UnmatchedNotices []event.StatusChangeNotice
	RolledBack       bool
}

const stagingTable = "staged_events"

// Commit replaces the future window of opts.Chambers in one transaction:
// read the known rows, let merge decide, delete the window, write the retained
// rows back, upsert the fresh rows through a staging table and apply notices.
// Any error rolls the whole window back to what it was.
func (s *Store) Commit(ctx context.Context, opts CommitOptions, merge MergeFunc) (*CommitResult, error) {
	if opts.Today.IsZero() {
		return nil, fmt.Errorf("commit requires a current date")
	}
	if len(opts.Chambers) == 0 {
		return nil, fmt.Errorf("commit requires at least one chamber")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	c := &committer{tx: tx, store: s, opts: opts, result: &CommitResult{}}

	known, err := c.known(ctx)
	if err != nil {
		return nil, err
	}
	c.result.Known = len(known)
	s.log.Info("Loaded known future events", logger.Fields{"known": len(known)})

	plan, err := merge(known)
	if err != nil {
		return nil, fmt.Errorf("merging events: %w", err)
	}

	steps := []func(context.Context, *Plan) error{
		c.clearWindow,
		c.writeRetained,
		c.stage,
		c.upsert,
		c.applyNotices,
		c.dropStaging,
	}
	for _, step := range steps {
		if err := step(ctx, plan); err != nil {
			return nil, err
		}
	}

	if opts.DryRun {
		if err := tx.Rollback(); err != nil {
			return nil, fmt.Errorf("rolling back dry run: %w", err)
		}
		committed = true
		c.result.RolledBack = true
		s.log.Info("Dry run rolled back", nil)
		return c.result, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return c.result, nil
}

type committer struct {
	tx     *sql.Tx
	store  *Store
	opts   CommitOptions
	result *CommitResult
}

func (c *committer) windowArgs() (string, []any) {
	args := []any{c.opts.Today}
	for _, ch := range c.opts.Chambers {
		args = append(args, string(ch))
	}
	return "event_date >= ? AND chamber IN (" + placeholders(len(c.opts.Chambers)) + ")", args
}

func (c *committer) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.tx.ExecContext(ctx, c.store.Rebind(query), args...)
}

func (c *committer) known(ctx context.Context) ([]event.ScheduledEvent, error) {
	cond, args := c.windowArgs()
	rows, err := c.tx.QueryContext(ctx, c.store.Rebind(`SELECT `+eventColumns+` FROM scheduled_events WHERE `+cond+eventOrder), args...)
	if err != nil {
		return nil, fmt.Errorf("querying known events: %w", err)
	}
	return scanEvents(rows)
}

func (c *committer) clearWindow(ctx context.Context, _ *Plan) error {
	cond, args := c.windowArgs()
	res, err := c.exec(ctx, `DELETE FROM scheduled_events WHERE `+cond, args...)
	if err != nil {
		return fmt.Errorf("clearing future window: %w", err)
	}
	n, _ := res.RowsAffected()
	c.store.log.Debug("Cleared future window", logger.Fields{"deleted": n})
	return nil
}

func (c *committer) writeRetained(ctx context.Context, plan *Plan) error {
	stmt, err := c.tx.PrepareContext(ctx, c.store.Rebind(`
		INSERT INTO scheduled_events (id, bill_ref, chamber, event_date, event_text, agenda_order,
			event_time, event_location, event_room, revised, event_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("preparing retained insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range plan.Retained {
		if _, err := stmt.ExecContext(ctx, e.ID, e.BillRef, string(e.Chamber), e.EventDate, e.EventText,
			agendaOrder(e.AgendaOrder), e.EventTime, e.EventLocation, e.EventRoom, e.Revised, string(e.Status)); err != nil {
			return fmt.Errorf("writing retained event %s %s: %w", e.BillRef, e.EventDate, err)
		}
	}
	c.result.Retained = len(plan.Retained)
	c.store.log.Info("Retained known events", logger.Fields{"retained": len(plan.Retained)})
	return nil
}

func (c *committer) stage(ctx context.Context, plan *Plan) error {
	dateType := "TEXT"
	if c.store.driver == DriverPostgres {
		dateType = "DATE"
	}
	ddl := []string{
		`DROP TABLE IF EXISTS ` + stagingTable,
		`CREATE TEMP TABLE ` + stagingTable + ` (
			bill_ref       TEXT NOT NULL,
			chamber        TEXT NOT NULL,
			event_date     ` + dateType + ` NOT NULL,
			event_text     TEXT NOT NULL,
			agenda_order   INTEGER,
			event_time     TEXT NOT NULL,
			event_location TEXT NOT NULL,
			event_room     TEXT NOT NULL,
			event_status   TEXT NOT NULL
		)`,
	}
	for _, q := range ddl {
		if _, err := c.exec(ctx, q); err != nil {
			return fmt.Errorf("creating staging table: %w", err)
		}
	}

	stmt, err := c.tx.PrepareContext(ctx, c.store.Rebind(`
		INSERT INTO `+stagingTable+` (bill_ref, chamber, event_date, event_text, agenda_order,
			event_time, event_location, event_room, event_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("preparing staging insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range plan.Upserts {
		if _, err := stmt.ExecContext(ctx, e.BillRef, string(e.Chamber), e.EventDate, e.EventText,
			agendaOrder(e.AgendaOrder), e.EventTime, e.EventLocation, e.EventRoom, string(e.Status)); err != nil {
			return fmt.Errorf("staging event %s %s: %w", e.BillRef, e.EventDate, err)
		}
	}
	c.store.log.Info("Staged fresh events", logger.Fields{"staged": len(plan.Upserts)})
	return nil
}

// upsert moves staged rows into the ledger. A staged row whose identity is
// already present carries new details, so the existing row is revised.
// WHERE TRUE keeps SQLite from reading ON CONFLICT as a join constraint.
func (c *committer) upsert(ctx context.Context, _ *Plan) error {
	res, err := c.exec(ctx, `
		INSERT INTO scheduled_events (bill_ref, chamber, event_date, event_text, agenda_order,
			event_time, event_location, event_room, revised, event_status)
		SELECT bill_ref, chamber, event_date, event_text, agenda_order,
			event_time, event_location, event_room, FALSE, event_status
		FROM `+stagingTable+` WHERE TRUE
		ON CONFLICT (bill_ref, chamber, event_date, event_text) DO UPDATE SET
			agenda_order = excluded.agenda_order,
			event_time = excluded.event_time,
			event_location = excluded.event_location,
			event_room = excluded.event_room,
			revised = TRUE`)
	if err != nil {
		return fmt.Errorf("upserting staged events: %w", err)
	}
	n, _ := res.RowsAffected()
	c.result.Upserted = int(n)
	c.store.log.Info("Upserted fresh events", logger.Fields{"upserted": n})
	return nil
}

func (c *committer) applyNotices(ctx context.Context, plan *Plan) error {
	if len(plan.Notices) == 0 {
		return nil
	}
	stmt, err := c.tx.PrepareContext(ctx, c.store.Rebind(`
		UPDATE scheduled_events SET event_status = ?
		WHERE chamber = ? AND event_date = ? AND event_text = ?
			AND event_time = ? AND event_location = ? AND event_room = ?
			AND event_date >= ?`))
	if err != nil {
		return fmt.Errorf("preparing notice update: %w", err)
	}
	defer stmt.Close()

	for _, n := range plan.Notices {
		res, err := stmt.ExecContext(ctx, string(n.Kind), string(n.Chamber), n.EventDate, n.HearingName,
			n.Time, n.Location, n.Room, c.opts.Today)
		if err != nil {
			return fmt.Errorf("applying %s notice for %s: %w", n.Kind, n.HearingName, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("applying %s notice for %s: %w", n.Kind, n.HearingName, err)
		}
		if affected == 0 {
			c.result.UnmatchedNotices = append(c.result.UnmatchedNotices, n)
			c.store.log.Info("Notice matched no events", logger.Fields{
				"chamber":    string(n.Chamber),
				"event_date": n.EventDate.String(),
				"hearing":    n.HearingName,
				"kind":       string(n.Kind),
			})
			continue
		}
		c.result.NoticesApplied++
	}
	return nil
}

func (c *committer) dropStaging(ctx context.Context, _ *Plan) error {
	if _, err := c.exec(ctx, `DROP TABLE IF EXISTS `+stagingTable); err != nil {
		return fmt.Errorf("dropping staging table: %w", err)
	}
	return nil
}
