package frontend_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/navikt/keys2text-backend/pkg/auth"
	"github.com/navikt/keys2text-backend/pkg/frontend"
	"github.com/navikt/keys2text-backend/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLandingPage(t *testing.T) {
	signedIn := session.New()
	require.NoError(t, signedIn.SetSignIn(&auth.Token{
		AccessToken: "ya29.abc",
		UserInfo: &auth.UserInfo{
			Sub:   "108234567890123456789",
			Email: "mock.anderson@example.com",
			Name:  "Anderson, Mock",
		},
	}, time.Date(2024, time.December, 22, 14, 0, 0, 0, time.UTC)))

	testCases := []struct {
		name     string
		session  *session.Session
		contains []string
		absent   []string
	}{
		{
			name:    "anonymous",
			session: session.New(),
			contains: []string{
				`href="/google/login"`,
				`href="/google/login?prompt=select_account"`,
				`navigator.sendBeacon("/user/disconnect")`,
			},
			absent: []string{"/google/logout"},
		},
		{
			name:    "signed in",
			session: signedIn,
			contains: []string{
				"Signed in as Anderson, Mock (mock.anderson@example.com)",
				"Sun, 22 Dec 2024 14:00:00 UTC",
				`href="/google/logout"`,
			},
			absent: []string{`href="/google/login"`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := chi.NewRouter()
			frontend.New(zerolog.Nop()).Init("a-secret", router)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(session.NewContext(req.Context(), tc.session))
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

			for _, s := range tc.contains {
				assert.Contains(t, rr.Body.String(), s)
			}

			for _, s := range tc.absent {
				assert.NotContains(t, rr.Body.String(), s)
			}
		})
	}
}
