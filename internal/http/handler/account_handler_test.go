package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/config"
	"github.com/juanmaabanto/ms-identity/internal/domain"
	httptransport "github.com/juanmaabanto/ms-identity/internal/http"
	"github.com/juanmaabanto/ms-identity/internal/http/handler"
	"github.com/juanmaabanto/ms-identity/internal/lockout"
	"github.com/juanmaabanto/ms-identity/internal/middleware"
	"github.com/juanmaabanto/ms-identity/internal/password"
	"github.com/juanmaabanto/ms-identity/internal/protector"
	"github.com/juanmaabanto/ms-identity/internal/repository"
	"github.com/juanmaabanto/ms-identity/internal/service"
	"github.com/juanmaabanto/ms-identity/internal/session"
	"github.com/juanmaabanto/ms-identity/internal/ticket"
)

type memUserRepo struct {
	users []*domain.User
	seq   int
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) FindByNormalizedUserName(ctx context.Context, normalized string) (domain.User, error) {
	for _, u := range r.users {
		if u.NormalizedUserName == normalized {
			return *u, nil
		}
	}
	return domain.User{}, mongo.ErrNoDocuments
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return *u, nil
		}
	}
	return domain.User{}, mongo.ErrNoDocuments
}

func (r *memUserRepo) FindSecurityInfoByID(ctx context.Context, id string) (domain.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: u.ID, UserName: u.UserName, SecurityStamp: u.SecurityStamp}, nil
}

func (r *memUserRepo) InsertOne(ctx context.Context, user domain.User) (domain.User, error) {
	r.seq++
	user.ID = fmt.Sprintf("u%d", r.seq)
	stored := user
	r.users = append(r.users, &stored)
	return user, nil
}

func (r *memUserRepo) UpdateLoginState(ctx context.Context, id string, accessFailedCount int, lockoutEnd *time.Time) error {
	for _, u := range r.users {
		if u.ID == id {
			u.AccessFailedCount = accessFailedCount
			u.LockoutEnd = lockoutEnd
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

type memClientAppRepo struct {
	apps map[string]domain.ClientApp
}

var _ repository.ClientAppRepository = (*memClientAppRepo)(nil)

func (r *memClientAppRepo) FindByID(ctx context.Context, id string) (domain.ClientApp, error) {
	app, ok := r.apps[id]
	if !ok {
		return domain.ClientApp{}, mongo.ErrNoDocuments
	}
	return app, nil
}

type env struct {
	router *gin.Engine
	codec  *session.Codec
	users  *memUserRepo
	apps   *memClientAppRepo
	cfg    config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &memUserRepo{}
	apps := &memClientAppRepo{apps: map[string]domain.ClientApp{}}
	cfg := config.Config{
		ReturnURL:           "https://accounts.example.com/",
		ServiceName:         "ms-identity-test",
		SessionCookieMaxAge: 365 * 24 * time.Hour,
		TicketAudience:      "accounts",
	}

	p, err := protector.New("test-secret", "cookies")
	require.NoError(t, err)
	codec := session.NewCodec(p)
	guard := session.NewGuard(users, zap.NewNop())
	sessions := middleware.NewSession(codec, guard, cfg.SessionCookieMaxAge, zap.NewNop())

	svc := service.NewUserService(users, apps, password.NewHasher(1), lockout.NewPolicy(4, 5*time.Minute), zap.NewNop())
	issuer, err := ticket.NewJoseIssuer(strings.Repeat("k", 32), "ms-identity-test", time.Hour)
	require.NoError(t, err)

	account := handler.NewAccountHandler(svc, codec, cfg, zap.NewNop())
	authorize := handler.NewAuthorizeHandler(svc, apps, issuer, cfg, zap.NewNop())
	usersHandler := handler.NewUsersHandler(svc, zap.NewNop())

	return &env{
		router: httptransport.NewRouter(cfg, account, authorize, usersHandler, sessions),
		codec:  codec,
		users:  users,
		apps:   apps,
		cfg:    cfg,
	}
}

func (e *env) addUser(t *testing.T, user domain.User, passwd string) domain.User {
	t.Helper()
	hash, err := password.NewHasher(1).Hash(passwd)
	require.NoError(t, err)
	user.PasswordHash = hash
	user.NormalizedUserName = domain.NormalizeUserName(user.UserName)
	if user.SecurityStamp == "" {
		user.SecurityStamp = service.NewSecurityStamp()
	}
	created, err := e.users.InsertOne(context.Background(), user)
	require.NoError(t, err)
	return created
}

func (e *env) signInRequest(userName, passwd string, cookies ...*http.Cookie) *http.Request {
	form := url.Values{}
	form.Set("userName", userName)
	form.Set("password", passwd)
	req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func cookieByName(t *testing.T, res *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSignInIssuesSessionAndAccountsCookies(t *testing.T) {
	e := newEnv(t)
	created := e.addUser(t, domain.User{UserName: "alice", Active: true}, "Passw0rd$")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.signInRequest("alice", "Passw0rd$"))
	res := w.Result()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, e.cfg.ReturnURL, body.URL)

	sessionCookie := cookieByName(t, res, session.CookieName)
	principal, err := e.codec.DecodePrincipal(sessionCookie.Value)
	require.NoError(t, err)
	require.Len(t, principal.Identities, 1)
	require.Equal(t, created.ID, principal.Identities[0].UserID)
	require.Equal(t, created.SecurityStamp, principal.Identities[0].SecurityStamp)

	accountsCookie := cookieByName(t, res, session.AccountsCookieName)
	accounts, err := e.codec.DecodeAccounts(accountsCookie.Value)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, accounts)
}

func TestSignInAddsSecondAccountToSession(t *testing.T) {
	e := newEnv(t)
	alice := e.addUser(t, domain.User{UserName: "alice", Active: true}, "Passw0rd$")
	bob := e.addUser(t, domain.User{UserName: "bob", Active: true}, "Passw0rd$")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.signInRequest("alice", "Passw0rd$"))
	first := w.Result()
	sessionCookie := cookieByName(t, first, session.CookieName)
	accountsCookie := cookieByName(t, first, session.AccountsCookieName)

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, e.signInRequest("bob", "Passw0rd$", sessionCookie, accountsCookie))
	second := w.Result()
	require.Equal(t, http.StatusOK, second.StatusCode)

	principal, err := e.codec.DecodePrincipal(cookieByName(t, second, session.CookieName).Value)
	require.NoError(t, err)
	require.Len(t, principal.Identities, 2)
	require.Equal(t, alice.ID, principal.Identities[0].UserID)
	require.Equal(t, bob.ID, principal.Identities[1].UserID)

	accounts, err := e.codec.DecodeAccounts(cookieByName(t, second, session.AccountsCookieName).Value)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, accounts)
}

func TestSignInRequiresPasswordChange(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, domain.User{UserName: "alice", Active: true, RequestPasswordChange: true}, "Passw0rd$")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.signInRequest("alice", "Passw0rd$"))
	res := w.Result()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		RequirePasswordChange bool `json:"requirePasswordChange"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.True(t, body.RequirePasswordChange)
	require.Empty(t, res.Cookies())
}

func TestSignInWrongPasswordReportsAttempts(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, domain.User{UserName: "alice", Active: true, LockoutEnabled: true}, "Passw0rd$")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.signInRequest("alice", "nope"))
	res := w.Result()

	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	var body struct {
		Error             string `json:"error"`
		AttemptsRemaining int    `json:"attemptsRemaining"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "wrong_password", body.Error)
	require.Equal(t, 3, body.AttemptsRemaining)
}

func TestSignInValidatesInput(t *testing.T) {
	e := newEnv(t)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.signInRequest("", ""))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignInRejectsUnreadableAccountsCookie(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, domain.User{UserName: "alice", Active: true}, "Passw0rd$")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.signInRequest("alice", "Passw0rd$", &http.Cookie{
		Name:  session.AccountsCookieName,
		Value: "garbage",
	}))
	res := w.Result()

	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "crypto_failure", body.Error)
}

func TestSignInHonorsContinueURL(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, domain.User{UserName: "alice", Active: true}, "Passw0rd$")

	form := url.Values{}
	form.Set("userName", "alice")
	form.Set("password", "Passw0rd$")
	form.Set("continue", "https://app.example.com/after")
	req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var body struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&body))
	require.Equal(t, "https://app.example.com/after", body.URL)

	// Relative targets fall back to the configured return URL.
	form.Set("continue", "/relative/path")
	req = httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&body))
	require.Equal(t, e.cfg.ReturnURL, body.URL)
}

func TestLookupDisclosesProfileOnlyToKnownBrowsers(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, domain.User{UserName: "alice", Alias: "Alice", ImageURI: "https://cdn.example.com/a.png", Active: true}, "Passw0rd$")

	lookup := func(cookies ...*http.Cookie) map[string]any {
		form := url.Values{}
		form.Set("userName", "alice")
		req := httptest.NewRequest(http.MethodPost, "/signin/user/lookup", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	// Unknown browser only learns the username back.
	body := lookup()
	require.Equal(t, "alice", body["userName"])
	require.NotContains(t, body, "alias")
	require.NotContains(t, body, "imageUri")

	encoded, err := e.codec.EncodeAccounts([]string{"alice"})
	require.NoError(t, err)
	body = lookup(&http.Cookie{Name: session.AccountsCookieName, Value: encoded})
	require.Equal(t, "alice", body["userName"])
	require.Equal(t, "Alice", body["alias"])
	require.Equal(t, "https://cdn.example.com/a.png", body["imageUri"])
}

func TestLookupUnknownUser(t *testing.T) {
	e := newEnv(t)

	form := url.Values{}
	form.Set("userName", "ghost")
	req := httptest.NewRequest(http.MethodPost, "/signin/user/lookup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignOutClearsSessionCookie(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/signout", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	res := w.Result()

	require.Equal(t, http.StatusOK, res.StatusCode)
	cleared := cookieByName(t, res, session.CookieName)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
}
