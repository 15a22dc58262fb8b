package transport

import (
	"encoding/json"
	"net/http"
	"testing"

	"storefront/internal/middleware"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_RegistrationReturnsBearerToken(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("successful registration returns a usable bearer token", prop.ForAll(
		func(username string, password string) bool {
			f := newAPIFixture(t)
			email := username + "@example.com"

			w := f.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{
				Username: username,
				Email:    email,
				Password: password,
			})
			if w.Code != http.StatusCreated {
				t.Logf("FAIL: Expected 201 status code, got %d: %s", w.Code, w.Body.String())
				return false
			}

			var resp AuthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Logf("FAIL: Could not decode response: %v", err)
				return false
			}
			if resp.Type != "Bearer" || resp.Token == "" || resp.Role != "USER" {
				t.Logf("FAIL: Unexpected auth response %+v", resp)
				return false
			}
			if _, err := uuid.Parse(resp.ID); err != nil {
				t.Logf("FAIL: Response ID is not a valid UUID: %v", err)
				return false
			}

			me := f.do(http.MethodGet, "/api/auth/me", resp.Token, nil)
			if me.Code != http.StatusOK {
				t.Logf("FAIL: Token not accepted by /me: %d", me.Code)
				return false
			}

			var profile UserProfile
			if err := json.Unmarshal(me.Body.Bytes(), &profile); err != nil {
				return false
			}
			return profile.ID == resp.ID && profile.Username == username && profile.Email == email
		},
		gen.RegexMatch(`[a-z]{3,20}`),
		gen.RegexMatch(`[A-Za-z0-9]{6,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name  string
		body  RegisterRequest
		field string
	}{
		{"short username", RegisterRequest{Username: "ab", Email: "ab@example.com", Password: "secret1"}, "username"},
		{"bad email", RegisterRequest{Username: "mario", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", RegisterRequest{Username: "mario", Email: "mario@example.com", Password: "123"}, "password"},
		{"missing username", RegisterRequest{Email: "mario@example.com", Password: "secret1"}, "username"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/auth/register", "", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			detail := decodeError(t, w)
			assert.Equal(t, middleware.KindInvalidInput, detail.Kind)
			assert.Contains(t, w.Body.String(), `"field":"`+tc.field+`"`)
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newAPIFixture(t)

	body := RegisterRequest{Username: "mario", Email: "mario@example.com", Password: "mario123"}
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/auth/register", "", body).Code)

	body.Username = "luigi"
	w := f.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"email"`)
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "mario", "mario@example.com", "USER")

	w := f.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "mario@example.com", Password: "mario123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.Type)
	assert.Equal(t, "mario", resp.Username)

	identity, err := f.gate.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, identity.ID.String())
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "mario", "mario@example.com", "USER")

	for _, body := range []LoginRequest{
		{Email: "mario@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "mario123"},
	} {
		w := f.do(http.MethodPost, "/api/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, middleware.KindUnauthorized, decodeError(t, w).Kind)
	}
}

func TestMeRequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/me", "garbage.token.value", nil).Code)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/auth/login", "", "not an object")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, middleware.KindInvalidInput, decodeError(t, w).Kind)
}
