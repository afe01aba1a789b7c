package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newCorrelationApp(seen *string) *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		*seen = CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	var seen string
	app := newCorrelationApp(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "batch-run-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "batch-run-42", resp.Header.Get(CorrelationHeader))
	require.Equal(t, "batch-run-42", seen)
}

func TestCorrelationIDReplacesUnusableHeader(t *testing.T) {
	for name, header := range map[string]string{
		"missing":  "",
		"too long": strings.Repeat("x", maxCorrelationLength+1),
		"spaces":   "two words",
	} {
		t.Run(name, func(t *testing.T) {
			var seen string
			app := newCorrelationApp(&seen)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set(CorrelationHeader, header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)

			_, parseErr := uuid.Parse(resp.Header.Get(CorrelationHeader))
			require.NoError(t, parseErr)
			require.Equal(t, resp.Header.Get(CorrelationHeader), seen)
		})
	}
}

func TestWithCorrelationIDIgnoresBlank(t *testing.T) {
	ctx := WithCorrelationID(nil, "  ")
	require.Empty(t, CorrelationIDFromContext(ctx))
	require.Equal(t, "abc", CorrelationIDFromContext(WithCorrelationID(ctx, "abc")))
}
