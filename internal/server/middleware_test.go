package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_AuthRequired(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	banned := testutil.CreateUser(t, ts.db, "banned")
	require.NoError(t, ts.db.Model(banned).Update("is_banned", true).Error)

	app := fiber.New()
	app.Get("/protected", ts.AuthRequired(), func(c *fiber.Ctx) error {
		ctxID, _ := c.UserContext().Value(middleware.UserIDKey).(uint)
		return c.JSON(fiber.Map{"userID": c.Locals("userID"), "ctxID": ctxID})
	})

	revokedToken, revokedJTI, err := middleware.IssueToken(testSecret, alice.ID, time.Now())
	require.NoError(t, err)
	ts.mr.Set(middleware.BlacklistKey(revokedJTI), "1")

	foreign := func(secret string) string {
		claims := jwt.MapClaims{
			"sub": strconv.FormatUint(uint64(alice.ID), 10),
			"exp": time.Now().Add(time.Hour).Unix(),
			"jti": "foreign-jti-value",
		}
		str, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		return str
	}

	tests := []struct {
		name           string
		authHeader     string
		tokenParam     string
		expectedStatus int
	}{
		{"valid bearer", "Bearer " + tokenFor(t, alice.ID), "", http.StatusOK},
		{"valid query token", "", tokenFor(t, alice.ID), http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed", "Bearer not-a-jwt", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign("another-secret-another-secret-another-secret"), "", http.StatusUnauthorized},
		{"revoked", "Bearer " + revokedToken, "", http.StatusUnauthorized},
		{"banned", "Bearer " + tokenFor(t, banned.ID), "", http.StatusForbidden},
		{"deleted account", "Bearer " + tokenFor(t, 9999), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/protected"
			if tt.tokenParam != "" {
				url += "?token=" + tt.tokenParam
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.authHeader != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.authHeader)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.EqualValues(t, alice.ID, body["userID"])
				assert.EqualValues(t, alice.ID, body["ctxID"])
			}
		})
	}
}

func TestServer_AuthRequired_RevocationFailsOpen(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	ts.mr.Close()

	resp, _ := ts.do(t, http.MethodGet, "/api/auth/me", tokenFor(t, alice.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_AdminRequired(t *testing.T) {
	ts := newTestServer(t)
	member := testutil.CreateUser(t, ts.db, "member")
	admin := testutil.CreateAdmin(t, ts.db, "root")
	fallen := testutil.CreateAdmin(t, ts.db, "fallen")
	require.NoError(t, ts.db.Model(fallen).Update("is_banned", true).Error)

	resp, body := ts.do(t, http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/admin/stats", tokenFor(t, member.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, decode[models.ErrorResponse](t, body).Code)

	// Banned accounts are stopped before the admin check.
	resp, _ = ts.do(t, http.MethodGet, "/api/admin/stats", tokenFor(t, fallen.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/admin/stats", tokenFor(t, admin.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[map[string]any](t, body)
	assert.EqualValues(t, 3, stats["users"])
}
