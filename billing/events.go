// Package billing manages the Stripe subscription lifecycle: checkout
// session creation and the webhook that keeps users' subscription state
// in sync with Stripe.
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"nichescout/db"
)

// EventKind is the closed set of Stripe event types this service reacts
// to. Everything else is acknowledged and ignored.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout.session.completed"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventPaymentSucceeded    EventKind = "invoice.payment_succeeded"
	EventPaymentFailed       EventKind = "invoice.payment_failed"
)

// SubscriptionEvent is the normalized outcome of one webhook delivery.
type SubscriptionEvent struct {
	Kind           EventKind
	CustomerID     string
	SubscriptionID string

	// Status is the value written to users.subscription_status.
	Status string

	// Subscribed is the gate flag: true only while the user may search.
	Subscribed bool

	// PeriodEnd is when the current billing period lapses; zero when the
	// event does not carry one.
	PeriodEnd time.Time
}

// parseEvent maps a verified Stripe event onto a SubscriptionEvent.
// Returns ok=false for event types outside the handled set.
func parseEvent(event stripe.Event) (SubscriptionEvent, bool, error) {
	switch EventKind(event.Type) {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return SubscriptionEvent{}, false, fmt.Errorf("decode checkout session: %w", err)
		}
		ev := SubscriptionEvent{
			Kind:       EventCheckoutCompleted,
			Status:     "active",
			Subscribed: true,
		}
		if cs.Customer != nil {
			ev.CustomerID = cs.Customer.ID
		}
		if cs.Subscription != nil {
			ev.SubscriptionID = cs.Subscription.ID
		}
		return ev, true, nil

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return SubscriptionEvent{}, false, fmt.Errorf("decode subscription: %w", err)
		}
		ev := SubscriptionEvent{
			Kind:           EventKind(event.Type),
			SubscriptionID: sub.ID,
			Status:         string(sub.Status),
		}
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		if sub.CurrentPeriodEnd > 0 {
			ev.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}
		if EventKind(event.Type) == EventSubscriptionDeleted {
			ev.Status = "canceled"
			ev.Subscribed = false
		} else {
			ev.Subscribed = sub.Status == stripe.SubscriptionStatusActive ||
				sub.Status == stripe.SubscriptionStatusTrialing
		}
		return ev, true, nil

	case EventPaymentSucceeded, EventPaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return SubscriptionEvent{}, false, fmt.Errorf("decode invoice: %w", err)
		}
		ev := SubscriptionEvent{Kind: EventKind(event.Type)}
		if inv.Customer != nil {
			ev.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			ev.SubscriptionID = inv.Subscription.ID
		}
		if ev.Kind == EventPaymentSucceeded {
			ev.Status = "active"
			ev.Subscribed = true
		} else {
			ev.Status = "past_due"
			ev.Subscribed = false
		}
		return ev, true, nil
	}

	return SubscriptionEvent{}, false, nil
}

// applyEvent records the delivery in stripe_events and writes the
// subscription state onto the matching user row, atomically. Stripe
// retries deliveries, so a replayed event ID commits nothing. Unknown
// customers are not an error: the row simply does not update, which
// covers replays after an account was deleted.
func applyEvent(ctx context.Context, cdb *db.CompatDB, eventID string, ev SubscriptionEvent) error {
	if ev.CustomerID == "" {
		return fmt.Errorf("event %s carries no customer id", ev.Kind)
	}

	var periodEnd interface{}
	if !ev.PeriodEnd.IsZero() {
		periodEnd = ev.PeriodEnd.Format(time.RFC3339)
	}

	err := db.WithTx(ctx, cdb, func(conn *db.CompatConn) error {
		if eventID != "" {
			var one int
			err := conn.QueryRowContext(ctx,
				`SELECT 1 FROM stripe_events WHERE id = ?`, eventID).Scan(&one)
			if err == nil {
				return nil // already applied
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("check event %s: %w", eventID, err)
			}
			if _, err := conn.ExecContext(ctx,
				`INSERT INTO stripe_events (id, kind) VALUES (?, ?)`,
				eventID, string(ev.Kind)); err != nil {
				return fmt.Errorf("record event %s: %w", eventID, err)
			}
		}

		if ev.SubscriptionID != "" {
			_, err := conn.ExecContext(ctx,
				`UPDATE users
				 SET is_subscribed = ?, subscription_status = ?, stripe_subscription_id = ?,
				     subscription_end_date = ?, updated_at = CURRENT_TIMESTAMP
				 WHERE stripe_customer_id = ?`,
				ev.Subscribed, ev.Status, ev.SubscriptionID, periodEnd, ev.CustomerID)
			return err
		}
		_, err := conn.ExecContext(ctx,
			`UPDATE users
			 SET is_subscribed = ?, subscription_status = ?,
			     subscription_end_date = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE stripe_customer_id = ?`,
			ev.Subscribed, ev.Status, periodEnd, ev.CustomerID)
		return err
	})
	if err != nil {
		return fmt.Errorf("apply %s for %s: %w", ev.Kind, ev.CustomerID, err)
	}
	return nil
}
