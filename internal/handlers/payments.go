package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ayush-jadaun/livekitagent/internal/middleware"
	"github.com/ayush-jadaun/livekitagent/internal/models"
)

type planResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MonthlyPrice int    `json:"monthly_price"`
	SessionLimit int    `json:"session_limit"`
}

func (h HandlerSet) ListPlans(c *gin.Context) {
	plans, err := h.billing.Plans(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "plan list failed")
		return
	}

	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, planResponse{
			ID:           p.ID,
			Name:         p.Name,
			MonthlyPrice: p.MonthlyPrice,
			SessionLimit: p.SessionLimit,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": resp})
}

type subscribeRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

func (h HandlerSet) Subscribe(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_payload"})
		return
	}

	result, err := h.billing.Subscribe(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		h.respondError(c, err, "subscription checkout failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription_id": result.Payment.RazorpaySubID,
		"status":          string(result.Payment.Status),
		"checkout_url":    result.CheckoutURL,
	})
}

type subscriptionResponse struct {
	SubscriptionID string     `json:"subscription_id"`
	Status         string     `json:"status"`
	SessionLimit   int        `json:"session_limit"`
	SessionUsed    int        `json:"session_used"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	NextBillingAt  *time.Time `json:"next_billing_at,omitempty"`
}

func (h HandlerSet) GetSubscription(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	payment, err := h.billing.Current(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "subscription lookup failed")
		return
	}

	c.JSON(http.StatusOK, toSubscriptionResponse(payment))
}

func (h HandlerSet) CancelSubscription(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.billing.CancelCurrent(c.Request.Context(), userID); err != nil {
		h.respondError(c, err, "subscription cancel failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancellation_requested"})
}

// PaymentWebhook authenticates the provider's delivery before anything
// else; only verified payloads reach the reconciler. Once verified, the
// endpoint always acknowledges so the provider stops retrying; apply
// failures are logged and archived instead.
func (h HandlerSet) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if !h.provider.VerifyWebhookSignature(body, signature) {
		h.log.Warn().
			Str("request_id", c.Writer.Header().Get("X-Request-Id")).
			Msg("webhook signature verification failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}

	eventID := c.GetHeader("X-Razorpay-Event-Id")
	ack := h.reconciler.Apply(c.Request.Context(), body, eventID)
	c.JSON(http.StatusOK, ack)
}

func toSubscriptionResponse(p models.Payment) subscriptionResponse {
	return subscriptionResponse{
		SubscriptionID: p.RazorpaySubID,
		Status:         string(p.Status),
		SessionLimit:   p.SessionLimit,
		SessionUsed:    p.SessionUsed,
		StartedAt:      p.StartedAt,
		EndedAt:        p.EndedAt,
		NextBillingAt:  p.NextBillingAt,
	}
}
