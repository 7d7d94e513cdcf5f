package server

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"launchpad/internal/mailer"
	"launchpad/internal/models"
	"launchpad/internal/repository"
	"launchpad/internal/service"
	"launchpad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type contactResponse struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

func validContact() map[string]string {
	return map[string]string{
		"name":    "Dana",
		"email":   "Dana@Example.com",
		"subject": "Partnership",
		"message": "We would love to feature your launch.",
	}
}

func TestSubmitContact(t *testing.T) {
	tests := []struct {
		name       string
		sendErr    error
		wantStatus string
	}{
		{"delivered", nil, models.ContactStatusSent},
		{"delivery failed", errors.New("smtp down"), models.ContactStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			m := new(MockMailer)
			m.On("Send", mock.Anything, mock.MatchedBy(func(msg mailer.Message) bool {
				return msg.ReplyTo == "dana@example.com" && msg.Subject == "[Launchpad] Partnership"
			})).Return(tt.sendErr).Once()
			ts.contactService = service.NewContactService(repository.NewContactRepository(ts.db), m, ts.featureFlags)

			resp, body := ts.do(t, http.MethodPost, "/api/contact", "", validContact())
			require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
			got := decode[contactResponse](t, body)
			assert.Equal(t, tt.wantStatus, got.Status)

			var stored models.ContactMessage
			require.NoError(t, ts.db.First(&stored, got.ID).Error)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.NotEmpty(t, stored.RemoteIP)
			m.AssertExpectations(t)
		})
	}
}

func TestSubmitContact_FlagOffSkipsMailer(t *testing.T) {
	ts := newTestServerWithFlags(t, "contact_email=off")
	m := new(MockMailer)
	ts.contactService = service.NewContactService(repository.NewContactRepository(ts.db), m, ts.featureFlags)

	resp, body := ts.do(t, http.MethodPost, "/api/contact", "", validContact())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.ContactStatusReceived, decode[contactResponse](t, body).Status)
	m.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSubmitContact_Validation(t *testing.T) {
	ts := newTestServer(t)

	bad := validContact()
	bad["message"] = "short"
	resp, _ := ts.do(t, http.MethodPost, "/api/contact", "", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad = validContact()
	bad["email"] = "not-an-email"
	resp, _ = ts.do(t, http.MethodPost, "/api/contact", "", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetContactMessages_AdminOnly(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateAdmin(t, ts.db, "root")
	member := testutil.CreateUser(t, ts.db, "member")

	resp, _ := ts.do(t, http.MethodPost, "/api/contact", "", validContact())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/admin/contact-messages", tokenFor(t, member.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/api/admin/contact-messages", tokenFor(t, admin.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decode[[]models.ContactMessage](t, body)
	require.Len(t, msgs, 1)
	assert.Equal(t, "dana@example.com", msgs[0].Email)
}
