package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

const eventColumns = `id, bill_ref, chamber, event_date, event_text, agenda_order,
	event_time, event_location, event_room, revised, event_status`

const eventOrder = ` ORDER BY event_date, bill_ref, chamber, event_text, agenda_order`

// Filter narrows an Events query. Zero fields do not filter.
type Filter struct {
	Chambers []event.Chamber
	From     event.Date // inclusive
	To       event.Date // inclusive
	Statuses []event.Status
	BillRef  string
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any

	if len(f.Chambers) > 0 {
		clauses = append(clauses, "chamber IN ("+placeholders(len(f.Chambers))+")")
		for _, c := range f.Chambers {
			args = append(args, string(c))
		}
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "event_date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "event_date <= ?")
		args = append(args, f.To)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "event_status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.BillRef != "" {
		clauses = append(clauses, "bill_ref = ?")
		args = append(args, f.BillRef)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Events returns ledger rows matching f, ordered by date
func (s *Store) Events(ctx context.Context, f Filter) ([]event.ScheduledEvent, error) {
	where, args := f.where()
	rows, err := s.db.QueryContext(ctx, s.Rebind(`SELECT `+eventColumns+` FROM scheduled_events`+where+eventOrder), args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]event.ScheduledEvent, error) {
	defer rows.Close()

	var out []event.ScheduledEvent
	for rows.Next() {
		var (
			e       event.ScheduledEvent
			chamber string
			status  string
			order   sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.BillRef, &chamber, &e.EventDate, &e.EventText, &order,
			&e.EventTime, &e.EventLocation, &e.EventRoom, &e.Revised, &status); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Chamber = event.Chamber(chamber)
		e.Status = event.Status(status)
		if order.Valid {
			e.AgendaOrder = int(order.Int64)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// agendaOrder maps the unranked 0 to NULL
func agendaOrder(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}
