package topups

import (
	"encoding/json"

	topupsvc "bluegold-backend/internal/application/topups"
	"bluegold-backend/internal/infrastructure/paystack"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	signatureHeader = "x-paystack-signature"
	chargeSuccess   = "charge.success"
)

// WebhookHandler receives gateway events. Bodies are verified with the
// secret key before anything is applied.
type WebhookHandler struct {
	Service   *topupsvc.Service
	SecretKey string
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// HandleWebhook POST /api/v1/topups/webhook
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get(signatureHeader)

	if len(rawBody) == 0 {
		log.Warn().Msg("paystack webhook received empty body")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}
	if err := paystack.VerifySignature(rawBody, sig, wh.SecretKey); err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Bool("has_secret", wh.SecretKey != "").Msg("paystack webhook signature verification failed")
		return c.Status(fiber.StatusUnauthorized).SendString("Webhook Error: invalid signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		log.Warn().Err(err).Msg("paystack webhook JSON parse failed")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: invalid JSON")
	}

	if event.Event != chargeSuccess || event.Data.Reference == "" {
		return c.Status(fiber.StatusOK).SendString("ok")
	}
	if wh.Service == nil {
		log.Error().Str("reference", event.Data.Reference).Msg("paystack webhook received without a top-up service")
		return c.Status(fiber.StatusServiceUnavailable).SendString("Webhook Error: unavailable")
	}

	// Processing errors still answer 200; the callback route can replay the reference.
	out, err := wh.Service.ProcessCallback(c.UserContext(), event.Data.Reference)
	if err != nil {
		log.Error().Err(err).Str("reference", event.Data.Reference).Msg("paystack webhook processing failed")
		return c.Status(fiber.StatusOK).SendString("ok")
	}
	log.Info().Str("reference", event.Data.Reference).Bool("already_processed", out.AlreadyProcessed).Msg("paystack webhook processed")
	return c.Status(fiber.StatusOK).SendString("ok")
}
