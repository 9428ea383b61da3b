package billing

import (
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"

	"nichescout/auth"
	"nichescout/db"
	"nichescout/httputil"
)

// maxWebhookBody bounds webhook payload reads. Stripe events are small;
// anything bigger is not Stripe.
const maxWebhookBody = 256 << 10

// Handler holds dependencies for the billing endpoints. The Stripe API
// key is global (stripe.Key), set once at startup.
type Handler struct {
	DB            *db.CompatDB
	WebhookSecret string

	// PriceID is the recurring price for the subscription.
	PriceID string

	// SuccessURL and CancelURL are the frontend pages Stripe redirects
	// back to after checkout.
	SuccessURL string
	CancelURL  string
}

// HandleCreateCheckoutSession starts a subscription checkout for the
// authenticated user and returns the hosted checkout URL. Creates and
// stores a Stripe customer on first use.
func (h *Handler) HandleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.ExtractUserID(r)

	var name, email, customerID string
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT name, email, COALESCE(stripe_customer_id, '') FROM users WHERE id = ?`, userID,
	).Scan(&name, &email, &customerID)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "user not found"})
		return
	}

	if customerID == "" {
		params := &stripe.CustomerParams{
			Email: stripe.String(email),
			Name:  stripe.String(name),
		}
		params.AddMetadata("user_id", userID)
		cust, err := customer.New(params)
		if err != nil {
			log.Printf("billing: create customer for %s: %v", userID, err)
			httputil.WriteJSON(w, 502, map[string]string{"error": "failed to create billing customer"})
			return
		}
		customerID = cust.ID
		if _, err := h.DB.ExecContext(r.Context(),
			`UPDATE users SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			customerID, userID); err != nil {
			httputil.WriteJSON(w, 500, map[string]string{"error": "failed to save billing customer"})
			return
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(h.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(h.SuccessURL),
		CancelURL:  stripe.String(h.CancelURL),
	}
	sess, err := session.New(params)
	if err != nil {
		log.Printf("billing: create checkout session for %s: %v", userID, err)
		httputil.WriteJSON(w, 502, map[string]string{"error": "failed to create checkout session"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"sessionId": sess.ID, "url": sess.URL})
}

// HandleWebhook verifies and applies Stripe webhook deliveries. Always
// answers 200 for verified events, even unhandled ones, so Stripe stops
// retrying; only signature failures and database errors are rejected.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "failed to read payload"})
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid signature"})
		return
	}

	ev, handled, err := parseEvent(event)
	if err != nil {
		log.Printf("billing: malformed %s event: %v", event.Type, err)
		httputil.WriteJSON(w, 400, map[string]string{"error": "malformed event"})
		return
	}
	if !handled {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ignored"})
		return
	}

	if err := applyEvent(r.Context(), h.DB, event.ID, ev); err != nil {
		log.Printf("billing: %v", err)
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to apply event"})
		return
	}

	log.Printf("billing: applied %s for customer %s (status=%s)", ev.Kind, ev.CustomerID, ev.Status)
	httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
}
