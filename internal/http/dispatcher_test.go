package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/papers-light/internal/adapters"
	"github.com/example/papers-light/internal/application"
	"github.com/example/papers-light/internal/metrics"
	"github.com/example/papers-light/internal/persistence/memory"
	"github.com/example/papers-light/internal/ratelimit"
	"github.com/example/papers-light/internal/session"
	"github.com/example/papers-light/internal/testfixtures"
)

var testSessionKey = []byte("0123456789abcdef0123456789abcdef")

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newCookieStateStore() *session.StateStore {
	store := sessions.NewCookieStore(testSessionKey)
	opts := sessions.Options{Path: "/", MaxAge: 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode}
	store.Options = &opts
	return session.NewStateStore(store, opts, discardLogger())
}

// browser replays the session cookie across requests like a user agent would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, handler http.Handler) *browser {
	return &browser{t: t, handler: handler, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(action string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	target := "/request"
	if action != "" {
		target += "?action=" + url.QueryEscape(action)
	}

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(http.MethodGet, target, nil)
	}
	return b.send(req)
}

// doMultipart posts form as multipart/form-data, the encoding FormData uses.
func (b *browser) doMultipart(action string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range form {
		for _, v := range values {
			require.NoError(b.t, mw.WriteField(key, v))
		}
	}
	require.NoError(b.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/request?action="+url.QueryEscape(action), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.send(req)
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func newLibraryDispatcher(t *testing.T, limiter LoginLimiter) *Dispatcher {
	t.Helper()

	storage := memory.New()
	accounts := adapters.NewAdminAccounts(storage)
	testfixtures.SeedAdmin(t, accounts, "admin", "correct")

	factory := testfixtures.NewServiceFactory()
	factory.Clock.SetStep(time.Second)
	lib := factory.NewLibrary(t, testfixtures.LibraryDeps{
		Admins: accounts,
		Papers: adapters.NewPapers(storage),
		Logger: discardLogger(),
	})

	return NewDispatcher(DispatcherConfig{
		Opener:   LibraryOpener(lib),
		Sessions: newCookieStateStore(),
		Limiter:  limiter,
		Logger:   discardLogger(),
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func assertSilent(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestDispatcherScenarios(t *testing.T) {
	t.Parallel()

	t.Run("init on a fresh session reports no user", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(t, newLibraryDispatcher(t, nil))

		rec := b.do("init", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"username":""}`, rec.Body.String())
	})

	t.Run("wrong password fails and leaves the session anonymous", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(t, newLibraryDispatcher(t, nil))

		rec := b.do("adminlogin", url.Values{"username": {"admin"}, "password": {"wrong"}})
		login := decode[application.LoginResult](t, rec)
		assert.False(t, login.Success)
		assert.Equal(t, application.MessageInvalidCredentials, login.Message)

		assert.JSONEq(t, `{"username":""}`, b.do("init", nil).Body.String())
	})

	t.Run("correct password logs in for following requests", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(t, newLibraryDispatcher(t, nil))

		rec := b.do("adminlogin", url.Values{"username": {"admin"}, "password": {"correct"}})
		login := decode[application.LoginResult](t, rec)
		assert.True(t, login.Success)
		assert.Equal(t, "admin", login.Username)

		assert.JSONEq(t, `{"username":"admin"}`, b.do("init", nil).Body.String())
	})

	t.Run("added paper appears in getpapers", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(t, newLibraryDispatcher(t, nil))

		rec := b.do("addpaper", url.Values{"type": {"article"}, "paper": {`{"title":"X"}`}})
		added := decode[application.AddPaperResult](t, rec)
		require.True(t, added.Success, "result: %s", rec.Body.String())
		require.NotNil(t, added.Paper)

		papers := decode[[]application.Paper](t, b.do("getpapers", nil))
		require.Len(t, papers, 1)
		assert.Equal(t, added.Paper.ID, papers[0].ID)
		assert.Equal(t, "article", papers[0].Type)
		assert.Equal(t, "X", papers[0].Attributes["title"])
	})

	t.Run("addpaper with an id updates the stored paper", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(t, newLibraryDispatcher(t, nil))
		require.True(t, decode[application.LoginResult](t, b.do("adminlogin", url.Values{"username": {"admin"}, "password": {"correct"}})).Success)

		added := decode[application.AddPaperResult](t, b.do("addpaper", url.Values{"type": {"article"}, "paper": {`{"title":"Draft"}`}}))
		require.True(t, added.Success)

		paper := `{"id":"` + added.Paper.ID + `","title":"Final","booktitle":"VLDB"}`
		rec := b.do("addpaper", url.Values{"type": {"inproceedings"}, "paper": {paper}})
		updated := decode[application.AddPaperResult](t, rec)
		require.True(t, updated.Success, "result: %s", rec.Body.String())
		assert.Equal(t, added.Paper.ID, updated.Paper.ID)
		assert.Equal(t, added.Paper.CreatedAt, updated.Paper.CreatedAt)
		assert.True(t, updated.Paper.UpdatedAt.After(added.Paper.UpdatedAt))

		papers := decode[[]application.Paper](t, b.do("getpapers", nil))
		require.Len(t, papers, 1)
		assert.Equal(t, "inproceedings", papers[0].Type)
		assert.Equal(t, map[string]any{"title": "Final", "booktitle": "VLDB"}, papers[0].Attributes)
		assert.Equal(t, "admin", papers[0].CreatedBy)
	})

	t.Run("unknown action is ignored", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(t, newLibraryDispatcher(t, nil))

		rec := b.do("bogus", url.Values{"username": {"admin"}})
		assertSilent(t, rec)
		assert.NotEmpty(t, rec.Result().Cookies(), "session is still written back")
	})
}

func TestDispatcherWithoutAction(t *testing.T) {
	t.Parallel()
	b := newBrowser(t, newLibraryDispatcher(t, nil))

	assertSilent(t, b.do("", nil))
	assertSilent(t, b.do("", url.Values{"username": {"admin"}, "password": {"correct"}}))
	assert.Contains(t, b.cookies, session.CookieName)
}

func TestDispatcherIdempotentReads(t *testing.T) {
	t.Parallel()
	b := newBrowser(t, newLibraryDispatcher(t, nil))
	b.do("addpaper", url.Values{"type": {"article"}, "paper": {`{"title":"A","year":2021}`}})
	b.do("addpaper", url.Values{"type": {"inproceedings"}, "paper": {`{"title":"B","booktitle":"ICSE"}`}})

	for _, action := range []string{"gettypes", "getpapers", "getstats"} {
		first := b.do(action, nil).Body.String()
		second := b.do(action, nil).Body.String()
		assert.Equal(t, first, second, action)
	}

	types := decode[[]application.PaperType](t, b.do("gettypes", nil))
	assert.Equal(t, testfixtures.DefaultTypes(), types)
}

func TestDispatcherGetPapersFilter(t *testing.T) {
	t.Parallel()
	b := newBrowser(t, newLibraryDispatcher(t, nil))
	b.do("addpaper", url.Values{"type": {"article"}, "paper": {`{"title":"A","year":2021}`}})
	b.do("addpaper", url.Values{"type": {"inproceedings"}, "paper": {`{"title":"B","year":"2022"}`}})

	byType := decode[[]application.Paper](t, b.do("getpapers", url.Values{"field": {"type"}, "value": {"inproceedings"}}))
	require.Len(t, byType, 1)
	assert.Equal(t, "B", byType[0].Attributes["title"])

	byYear := decode[[]application.Paper](t, b.do("getpapers", url.Values{"field": {"year"}, "value": {"2021"}}))
	require.Len(t, byYear, 1)
	assert.Equal(t, "A", byYear[0].Attributes["title"])

	none := b.do("getpapers", url.Values{"field": {"color"}, "value": {"red"}})
	assert.JSONEq(t, `[]`, none.Body.String())
}

func TestDispatcherInvalidPaperJSON(t *testing.T) {
	t.Parallel()
	b := newBrowser(t, newLibraryDispatcher(t, nil))

	rec := b.do("addpaper", url.Values{"type": {"article"}, "paper": {`{"title":`}})
	assert.Equal(t, http.StatusOK, rec.Code)
	result := decode[application.AddPaperResult](t, rec)
	assert.False(t, result.Success)
	assert.Equal(t, application.MessageInvalidPaper, result.Message)

	assert.JSONEq(t, `[]`, b.do("getpapers", nil).Body.String())
}

func TestDispatcherLogoutAndRemove(t *testing.T) {
	t.Parallel()
	b := newBrowser(t, newLibraryDispatcher(t, nil))

	added := decode[application.AddPaperResult](t, b.do("addpaper", url.Values{"type": {"article"}, "paper": {`{"title":"X"}`}}))
	require.True(t, added.Success)
	id := added.Paper.ID

	removed := decode[application.RemovePaperResult](t, b.do("removepaper", url.Values{"id": {id}}))
	assert.False(t, removed.Success)
	assert.Equal(t, application.MessageLoginRequired, removed.Message)
	require.Len(t, decode[[]application.Paper](t, b.do("getpapers", nil)), 1)

	b.do("adminlogin", url.Values{"username": {"admin"}, "password": {"correct"}})
	removed = decode[application.RemovePaperResult](t, b.do("removepaper", url.Values{"id": {id}}))
	assert.True(t, removed.Success)
	assert.JSONEq(t, `[]`, b.do("getpapers", nil).Body.String())

	logout := decode[application.LogoutResult](t, b.do("logout", nil))
	assert.True(t, logout.Success)
	assert.JSONEq(t, `{"username":""}`, b.do("init", nil).Body.String())
}

func TestDispatcherCorruptSessionStartsFresh(t *testing.T) {
	t.Parallel()
	b := newBrowser(t, newLibraryDispatcher(t, nil))
	b.do("adminlogin", url.Values{"username": {"admin"}, "password": {"correct"}})
	require.Contains(t, b.cookies, session.CookieName)

	b.cookies[session.CookieName] = &http.Cookie{Name: session.CookieName, Value: "tampered"}
	before := testutil.ToFloat64(metrics.SessionLoadFailures)

	rec := b.do("init", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":""}`, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SessionLoadFailures))
}

func TestDispatcherReadsParamsFromBodyOnly(t *testing.T) {
	t.Parallel()
	spy := &stateSpy{}
	d := NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: newCookieStateStore(), Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/request?action=adminlogin&username=admin&password=correct", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	assertSilent(t, rec)
	assert.Zero(t, spy.loginCalls)
}

func TestDispatcherAcceptsMultipartBodies(t *testing.T) {
	t.Parallel()

	t.Run("adminlogin logs in", func(t *testing.T) {
		t.Parallel()
		b := newBrowser(t, newLibraryDispatcher(t, nil))

		rec := b.doMultipart("adminlogin", url.Values{"username": {"admin"}, "password": {"correct"}})
		login := decode[application.LoginResult](t, rec)
		assert.True(t, login.Success, "result: %s", rec.Body.String())
		assert.JSONEq(t, `{"username":"admin"}`, b.do("init", nil).Body.String())
	})

	t.Run("missing fields are still detected", func(t *testing.T) {
		t.Parallel()
		spy := &stateSpy{}
		b := newBrowser(t, NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: newCookieStateStore(), Logger: discardLogger()}))

		assertSilent(t, b.doMultipart("adminlogin", url.Values{"username": {"admin"}}))
		assert.Zero(t, spy.loginCalls)
	})

	t.Run("malformed multipart body dispatches nothing", func(t *testing.T) {
		t.Parallel()
		spy := &stateSpy{}
		d := NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: newCookieStateStore(), Logger: discardLogger()})

		req := httptest.NewRequest(http.MethodPost, "/request?action=adminlogin", strings.NewReader("garbage"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
		rec := httptest.NewRecorder()
		d.ServeHTTP(rec, req)

		assertSilent(t, rec)
		assert.Zero(t, spy.loginCalls)
	})
}

func TestDispatcherMissingParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action string
		form   url.Values
	}{
		{name: "login without password", action: "adminlogin", form: url.Values{"username": {"admin"}}},
		{name: "login without username", action: "adminlogin", form: url.Values{"password": {"correct"}}},
		{name: "login without body", action: "adminlogin"},
		{name: "addpaper without paper", action: "addpaper", form: url.Values{"type": {"article"}}},
		{name: "addpaper without type", action: "addpaper", form: url.Values{"paper": {`{"title":"X"}`}}},
		{name: "removepaper without id", action: "removepaper", form: url.Values{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			spy := &stateSpy{}
			d := NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: newCookieStateStore(), Logger: discardLogger()})

			rec := newBrowser(t, d).do(tc.action, tc.form)
			assertSilent(t, rec)
			assert.Zero(t, spy.loginCalls)
			assert.Zero(t, spy.addCalls)
			assert.Zero(t, spy.removeCalls)
		})
	}
}

func TestDispatcherEmptyParamsStillDispatch(t *testing.T) {
	t.Parallel()
	spy := &stateSpy{}
	d := NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: newCookieStateStore(), Logger: discardLogger()})

	rec := newBrowser(t, d).do("adminlogin", url.Values{"username": {""}, "password": {""}})
	assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, spy.loginCalls)
}

func TestDispatcherDecodesPaperBeforeAdding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		paper string
		want  any
	}{
		{name: "object", paper: `{"title":"X","year":2020}`, want: map[string]any{"title": "X", "year": float64(2020)}},
		{name: "array", paper: `[1,2]`, want: []any{float64(1), float64(2)}},
		{name: "invalid", paper: `not json`, want: nil},
		{name: "empty", paper: ``, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			spy := &stateSpy{}
			d := NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: newCookieStateStore(), Logger: discardLogger()})

			rec := newBrowser(t, d).do("addpaper", url.Values{"type": {"article"}, "paper": {tc.paper}})
			assert.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, 1, spy.addCalls)
			assert.Equal(t, "article", spy.lastType)
			assert.Equal(t, tc.want, spy.lastValue)
		})
	}
}

func TestDispatcherRateLimitsLogin(t *testing.T) {
	t.Parallel()
	spy := &stateSpy{}
	d := NewDispatcher(DispatcherConfig{
		Opener:   spy.opener(),
		Sessions: newCookieStateStore(),
		Limiter:  ratelimit.New(0.001, 1, time.Minute),
		Now:      testfixtures.NewClock(time.Time{}).NowFunc(),
		Logger:   discardLogger(),
	})
	b := newBrowser(t, d)
	form := url.Values{"username": {"admin"}, "password": {"wrong"}}

	first := decode[application.LoginResult](t, b.do("adminlogin", form))
	assert.Equal(t, application.MessageInvalidCredentials, first.Message)

	second := decode[application.LoginResult](t, b.do("adminlogin", form))
	assert.False(t, second.Success)
	assert.Equal(t, application.MessageRateLimited, second.Message)
	assert.Equal(t, 1, spy.loginCalls)
}

func TestDispatcherCollaboratorFailureIs500(t *testing.T) {
	t.Parallel()
	spy := &stateSpy{papersErr: errors.New("disk full")}
	d := NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: newCookieStateStore(), Logger: discardLogger()})

	rec := newBrowser(t, d).do("getpapers", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal server error"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestDispatcherSessionSaveFailureKeepsResponse(t *testing.T) {
	t.Parallel()
	spy := &stateSpy{user: "admin"}
	d := NewDispatcher(DispatcherConfig{Opener: spy.opener(), Sessions: failingSessions{}, Logger: discardLogger()})

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/request?action=init", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"admin"}`, rec.Body.String())
}

func TestDispatcherRestoresStoredState(t *testing.T) {
	t.Parallel()
	spy := &stateSpy{}
	var opened []*application.State
	opener := OpenerFunc(func(state *application.State) StateObject {
		opened = append(opened, state)
		return spy
	})
	b := newBrowser(t, NewDispatcher(DispatcherConfig{Opener: opener, Sessions: newCookieStateStore(), Logger: discardLogger()}))

	spy.user = "admin"
	b.do("init", nil)
	b.do("init", nil)

	require.Len(t, opened, 2)
	assert.Nil(t, opened[0])
	require.NotNil(t, opened[1])
	assert.Equal(t, "admin", opened[1].User)
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewDispatcher(DispatcherConfig{Sessions: newCookieStateStore()}) })
	assert.Panics(t, func() { NewDispatcher(DispatcherConfig{Opener: (&stateSpy{}).opener()}) })
}

type stateSpy struct {
	user        string
	loginCalls  int
	addCalls    int
	removeCalls int
	lastType    string
	lastValue   any
	papersErr   error
}

func (s *stateSpy) opener() StateOpener {
	return OpenerFunc(func(*application.State) StateObject { return s })
}

func (s *stateSpy) User() string { return s.user }

func (s *stateSpy) AdminLogin(_ context.Context, username, password string) (application.LoginResult, error) {
	s.loginCalls++
	return application.LoginResult{Success: false, Username: s.user, Message: application.MessageInvalidCredentials}, nil
}

func (s *stateSpy) Logout() application.LogoutResult {
	s.user = ""
	return application.LogoutResult{Success: true}
}

func (s *stateSpy) GetTypes() []application.PaperType { return testfixtures.DefaultTypes() }

func (s *stateSpy) GetPapers(context.Context, application.PaperFilter) ([]application.Paper, error) {
	if s.papersErr != nil {
		return nil, s.papersErr
	}
	return []application.Paper{}, nil
}

func (s *stateSpy) AddPaper(_ context.Context, paperType string, value any) (application.AddPaperResult, error) {
	s.addCalls++
	s.lastType = paperType
	s.lastValue = value
	return application.AddPaperResult{Success: false, Message: application.MessageInvalidPaper}, nil
}

func (s *stateSpy) RemovePaper(context.Context, string) (application.RemovePaperResult, error) {
	s.removeCalls++
	return application.RemovePaperResult{Success: false, Message: application.MessageLoginRequired}, nil
}

func (s *stateSpy) GetStats(context.Context) (application.Stats, error) {
	return application.Stats{}, nil
}

func (s *stateSpy) State() application.State {
	return application.State{Version: application.StateVersion, User: s.user}
}

type failingSessions struct{}

func (failingSessions) Load(r *http.Request) (*application.State, *sessions.Session) {
	return nil, nil
}

func (failingSessions) Save(http.ResponseWriter, *http.Request, *sessions.Session, application.State) error {
	return errors.New("backend down")
}
