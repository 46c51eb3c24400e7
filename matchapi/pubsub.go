package matchapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/utils"
	"github.com/sirupsen/logrus"
)

// InvoiceLinkedPushHandler receives Pub/Sub push deliveries. Malformed
// messages are acked with 204 so they are not redelivered; a processing
// failure returns 500 and Pub/Sub retries the delivery.
func (a *API) InvoiceLinkedPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.MatchPubSubPushEnabled() {
			c.Status(http.StatusNoContent)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var payload InvoiceLinkedPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		if err := a.validate.Struct(payload); err != nil || envelope.Message.ID == "" {
			a.Logger.WithFields(logrus.Fields{
				"message_id":   envelope.Message.ID,
				"subscription": envelope.Subscription,
			}).Warn("dropping malformed invoice-linked message")
			c.Status(http.StatusNoContent)
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), payload.BusinessId)
		if payload.CorrelationId == "" {
			payload.CorrelationId, _ = utils.GetCorrelationIdFromContext(ctx)
		}
		if _, err := a.Sweeper.HandleInvoiceLinked(ctx, a.Store.DB(), envelope.Message.ID, payload); err != nil {
			config.LogError(a.Logger, "matchapi", "InvoiceLinkedPushHandler", "handle invoice linked", payload, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
