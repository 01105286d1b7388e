package routes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fleetmap/fleetmap/pkg/fleetapi"
	"github.com/fleetmap/fleetmap/pkg/observability"
)

const webhookSignatureHeader = "X-Fleetmap-Signature"

// WebhookRouter serves the legacy push-based ingestion endpoint. The
// upstream periodically probes it with empty or array-shaped bodies to
// verify the endpoint is alive - those must succeed without ingesting.
func WebhookRouter(router fiber.Router, deps *Dependencies) {
	router.Post("/", receiveWebhook(deps))
}

func receiveWebhook(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()

		if deps.WebhookSecret != "" {
			if !verifySignature(body, c.Get(webhookSignatureHeader), deps.WebhookSecret) {
				observability.WebhookReceipts.WithLabelValues("unauthorized").Inc()

				c.SendStatus(fiber.StatusUnauthorized)
				return c.JSON(fiber.Map{
					"error": "Invalid webhook signature",
				})
			}
		}

		if len(body) == 0 {
			observability.WebhookReceipts.WithLabelValues("ping").Inc()
			return c.JSON(fiber.Map{
				"status": "ok",
			})
		}

		var payload interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			observability.WebhookReceipts.WithLabelValues("malformed").Inc()

			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Body should be a JSON object",
			})
		}

		record, isRecord := payload.(map[string]interface{})
		if !isRecord {
			// null or array bodies are verification pings
			observability.WebhookReceipts.WithLabelValues("ping").Inc()
			return c.JSON(fiber.Map{
				"status": "ok",
			})
		}

		accepted, err := deps.Pipeline.Ingest(c.Context(), fleetapi.RawRecord(record))
		if err != nil {
			observability.WebhookReceipts.WithLabelValues("malformed").Inc()

			log.Debug().Err(err).Msg("Rejected webhook record")

			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		if accepted {
			observability.WebhookReceipts.WithLabelValues("accepted").Inc()
		} else {
			observability.WebhookReceipts.WithLabelValues("suppressed").Inc()
		}

		return c.JSON(fiber.Map{
			"accepted": accepted,
		})
	}
}

func verifySignature(body []byte, signature string, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
