package token

import (
	"net/http"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler serves POST /api/get-access-token: the credential as plain text,
// or 500 with the error text.
func Handler(src core.TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := src.AccessToken(c.Request.Context())
		if err != nil {
			metrics.TokensIssued.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("module", "adapters.token").Str("sid", c.GetString("client_token")).Msg("issue token")
			c.String(http.StatusInternalServerError, "Failed to retrieve access token: %s", err.Error())
			return
		}
		metrics.TokensIssued.WithLabelValues("ok").Inc()
		c.String(http.StatusOK, "%s", tok)
	}
}
