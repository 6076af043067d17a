package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/and161185/otpguard/internal/model"
	"github.com/and161185/otpguard/internal/service"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testKey = []byte("http-test-secret")

func makeJWT(t *testing.T, sub uuid.UUID, role, mac string, key []byte, method jwt.SigningMethod, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
		MAC:  mac,
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func deviceToken(t *testing.T, id uuid.UUID) string {
	return makeJWT(t, id, service.RoleDevice, "AA:BB:CC:DD:EE:FF", testKey, jwt.SigningMethodHS256, time.Hour)
}

func adminToken(t *testing.T) string {
	return makeJWT(t, uuid.Must(uuid.NewV4()), service.RoleAdmin, "", testKey, jwt.SigningMethodHS256, time.Hour)
}

/************ fakes ************/

type fakeAuth struct {
	user      model.User
	loginErr  error
	verifyErr error
	lastIP    string
	lastMAC   string
}

func (f *fakeAuth) LoginDevice(_ context.Context, _, _, mac, ip string) (model.Session, model.User, error) {
	f.lastMAC, f.lastIP = mac, ip
	if f.loginErr != nil {
		return model.Session{}, model.User{}, f.loginErr
	}
	return model.Session{AccessToken: "device-token", ExpiresAt: time.Now().Add(time.Hour)}, f.user, nil
}

func (f *fakeAuth) RegisterDevice(ctx context.Context, email, password, mac, ip string) (model.Session, model.User, error) {
	return f.LoginDevice(ctx, email, password, mac, ip)
}

func (f *fakeAuth) LoginAdmin(_ context.Context, email, _, ip string) (model.Session, model.Admin, error) {
	f.lastIP = ip
	if f.loginErr != nil {
		return model.Session{}, model.Admin{}, f.loginErr
	}
	return model.Session{AccessToken: "admin-token"}, model.Admin{ID: uuid.Must(uuid.NewV4()), Email: email}, nil
}

func (f *fakeAuth) VerifyDevice(context.Context, service.Principal) error { return f.verifyErr }

type fakeDispatch struct {
	d        model.Dispatch
	err      error
	userID   uuid.UUID
	scriptID uuid.UUID
	numbers  []string
}

func (f *fakeDispatch) PrepareDownload(_ context.Context, userID, scriptID, _ uuid.UUID, numbers []string) (model.Dispatch, error) {
	f.userID, f.scriptID, f.numbers = userID, scriptID, numbers
	return f.d, f.err
}

type fakeTasks struct {
	reportErr  error
	lastReport model.TaskReport
	lastUser   uuid.UUID
	stats      model.Stats
	list       []model.EnrichedTask
}

func (f *fakeTasks) Open(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (model.Task, error) {
	return model.Task{}, nil
}

func (f *fakeTasks) Close(context.Context, uuid.UUID, model.TaskReport) (model.Task, error) {
	return model.Task{}, nil
}

func (f *fakeTasks) Report(_ context.Context, userID, taskID uuid.UUID, rep model.TaskReport) (model.Task, error) {
	f.lastUser, f.lastReport = userID, rep
	return model.Task{ID: taskID, Status: rep.Status}, f.reportErr
}

func (f *fakeTasks) ListEnriched(context.Context) ([]model.EnrichedTask, error) { return f.list, nil }
func (f *fakeTasks) Stats(context.Context) (model.Stats, error) { return f.stats, nil }

type fakeCatalog struct {
	users     []model.User
	countries []model.Country
	scripts   []model.Script
	err       error

	lastChanges  service.UserChanges
	uploadedName string
	uploadedApp  string
	uploaded     []byte
	deleted      uuid.UUID
	reset        uuid.UUID
}

func (f *fakeCatalog) CreateUser(_ context.Context, email, _ string) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	return model.User{ID: uuid.Must(uuid.NewV4()), Email: email, IsActive: true}, nil
}
func (f *fakeCatalog) ListUsers(context.Context) ([]model.User, error) { return f.users, f.err }
func (f *fakeCatalog) UpdateUser(_ context.Context, id uuid.UUID, ch service.UserChanges) (model.User, error) {
	f.lastChanges = ch
	if f.err != nil {
		return model.User{}, f.err
	}
	return model.User{ID: id}, nil
}
func (f *fakeCatalog) DeleteUser(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}
func (f *fakeCatalog) ResetDevice(_ context.Context, id uuid.UUID) error {
	f.reset = id
	return f.err
}
func (f *fakeCatalog) CreateCountry(_ context.Context, c model.Country) (model.Country, error) {
	c.ID = uuid.Must(uuid.NewV4())
	return c, f.err
}
func (f *fakeCatalog) ListCountries(context.Context) ([]model.Country, error) { return f.countries, f.err }
func (f *fakeCatalog) UpdateCountry(_ context.Context, c model.Country) (model.Country, error) {
	return c, f.err
}
func (f *fakeCatalog) DeleteCountry(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}
func (f *fakeCatalog) UploadScript(_ context.Context, appName, fileName string, data []byte) (model.Script, error) {
	f.uploadedApp, f.uploadedName, f.uploaded = appName, fileName, data
	if f.err != nil {
		return model.Script{}, f.err
	}
	return model.Script{ID: uuid.Must(uuid.NewV4()), AppName: appName, FileName: fileName, FileSize: int64(len(data))}, nil
}
func (f *fakeCatalog) ListScripts(context.Context) ([]model.Script, error) { return f.scripts, f.err }
func (f *fakeCatalog) DeleteScript(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}
func (f *fakeCatalog) EnsureAdmin(context.Context, string, string) error { return nil }

/************ harness ************/

type harness struct {
	auth     *fakeAuth
	dispatch *fakeDispatch
	tasks    *fakeTasks
	catalog  *fakeCatalog
	srv      *Server
	h        http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, Options{MaxUploadBytes: 1 << 16})
}

func newHarnessWith(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{auth: &fakeAuth{}, dispatch: &fakeDispatch{}, tasks: &fakeTasks{}, catalog: &fakeCatalog{}}
	h.srv = New(h.auth, h.dispatch, h.tasks, h.catalog, testKey, zaptest.NewLogger(t), opts)
	t.Cleanup(h.srv.Close)
	h.h = h.srv.Router()
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return h.serve(req)
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, rec)["error"]
}
