package payments

import (
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/ayush-jadaun/livekitagent/internal/config"
)

// Client wraps the payment provider API. All methods hit the provider
// over the network; callers translate failures to upstream errors.
type Client struct {
	api *razorpay.Client
	cfg config.RazorpayConfig
}

func NewClient(cfg config.RazorpayConfig) *Client {
	return &Client{
		api: razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		cfg: cfg,
	}
}

// EnsureCustomer creates a provider customer for the user, reusing an
// existing one when the provider reports the contact already exists.
func (c *Client) EnsureCustomer(userID string, name string, email string) (string, error) {
	data := map[string]interface{}{
		"name":          name,
		"email":         email,
		"fail_existing": "0",
		"notes": map[string]interface{}{
			"user_id": userID,
		},
	}
	customer, err := c.api.Customer.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	id, ok := customer["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("create customer: missing id in response")
	}
	return id, nil
}

// Subscription is the subset of the provider's subscription entity the
// service cares about.
type Subscription struct {
	ID       string
	Status   string
	ShortURL string
}

// CreateSubscription opens a monthly subscription on the provider and
// returns its id plus the hosted checkout URL the client completes
// payment on.
func (c *Client) CreateSubscription(planID string, customerID string, totalCount int) (Subscription, error) {
	data := map[string]interface{}{
		"plan_id":         planID,
		"customer_id":     customerID,
		"total_count":     totalCount,
		"customer_notify": 1,
	}
	sub, err := c.api.Subscription.Create(data, nil)
	if err != nil {
		return Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	result := Subscription{}
	if id, ok := sub["id"].(string); ok {
		result.ID = id
	}
	if status, ok := sub["status"].(string); ok {
		result.Status = status
	}
	if u, ok := sub["short_url"].(string); ok {
		result.ShortURL = u
	}
	if result.ID == "" {
		return Subscription{}, fmt.Errorf("create subscription: missing id in response")
	}
	return result, nil
}

// CancelSubscription requests cancellation at the provider. The state
// store is updated by the resulting webhook, not here.
func (c *Client) CancelSubscription(subID string) error {
	data := map[string]interface{}{
		"cancel_at_cycle_end": 0,
	}
	if _, err := c.api.Subscription.Cancel(subID, data, nil); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}

// VerifyWebhookSignature checks the provider's keyed-hash signature over
// the raw body. The comparison is constant-time inside the provider SDK.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" || c.cfg.WebhookSecret == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, c.cfg.WebhookSecret)
}
