package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/filestore"
	"github.com/and161185/otpguard/internal/limiter"
	"github.com/and161185/otpguard/internal/model"
	"github.com/and161185/otpguard/internal/repository"
	"github.com/gofrs/uuid/v5"
)

/************ users ************/

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*model.User
	getErr error
	bindN  int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(us ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*model.User{}}
	for _, u := range us {
		if u.ID == uuid.Nil {
			u.ID = uuid.Must(uuid.NewV4())
		}
		c := *u
		f.byID[u.ID] = &c
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.Email == u.Email {
			return errs.ErrAlreadyExists
		}
	}
	u.ID = uuid.Must(uuid.NewV4())
	u.CreatedAt = time.Now()
	c := *u
	f.byID[u.ID] = &c
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrUserNotFound
}

func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, id uuid.UUID, upd model.UserUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PwdHash != nil {
		u.PwdHash = *upd.PwdHash
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return errs.ErrUserNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) BindMACIfEmpty(_ context.Context, id uuid.UUID, mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindN++
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	if u.MACAddress != "" {
		return errs.ErrConflict
	}
	u.MACAddress = mac
	return nil
}

func (f *fakeUsers) ResetMAC(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	u.MACAddress = ""
	return nil
}

/************ admins ************/

type fakeAdmins struct {
	byEmail   map[string]*model.Admin
	createErr error
	creates   int
}

var _ repository.AdminRepository = (*fakeAdmins)(nil)

func (f *fakeAdmins) GetByEmail(_ context.Context, email string) (*model.Admin, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAdmins) Create(_ context.Context, a *model.Admin) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*model.Admin{}
	}
	a.ID = uuid.Must(uuid.NewV4())
	c := *a
	f.byEmail[a.Email] = &c
	return nil
}

/************ countries / scripts ************/

type fakeCountries struct {
	byID map[uuid.UUID]model.Country
	err  error
}

var _ repository.CountryRepository = (*fakeCountries)(nil)

func newFakeCountries(cs ...model.Country) *fakeCountries {
	f := &fakeCountries{byID: map[uuid.UUID]model.Country{}}
	for _, c := range cs {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCountries) Create(_ context.Context, c *model.Country) error {
	c.ID = uuid.Must(uuid.NewV4())
	f.byID[c.ID] = *c
	return nil
}

func (f *fakeCountries) GetByID(_ context.Context, id uuid.UUID) (*model.Country, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrCountryNotFound
	}
	return &c, nil
}

func (f *fakeCountries) List(context.Context) ([]model.Country, error) {
	out := make([]model.Country, 0, len(f.byID))
	for _, c := range f.byID {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCountries) Update(_ context.Context, c *model.Country) error {
	if _, ok := f.byID[c.ID]; !ok {
		return errs.ErrCountryNotFound
	}
	f.byID[c.ID] = *c
	return nil
}

func (f *fakeCountries) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return errs.ErrCountryNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeScripts struct {
	byID      map[uuid.UUID]model.Script
	createErr error
}

var _ repository.ScriptRepository = (*fakeScripts)(nil)

func newFakeScripts(ss ...model.Script) *fakeScripts {
	f := &fakeScripts{byID: map[uuid.UUID]model.Script{}}
	for _, s := range ss {
		f.byID[s.ID] = s
	}
	return f
}

func (f *fakeScripts) Create(_ context.Context, s *model.Script) error {
	if f.createErr != nil {
		return f.createErr
	}
	s.UploadedAt = time.Now()
	f.byID[s.ID] = *s
	return nil
}

func (f *fakeScripts) GetByID(_ context.Context, id uuid.UUID) (*model.Script, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrScriptNotFound
	}
	return &s, nil
}

func (f *fakeScripts) List(context.Context) ([]model.Script, error) {
	out := make([]model.Script, 0, len(f.byID))
	for _, s := range f.byID {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeScripts) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return errs.ErrScriptNotFound
	}
	delete(f.byID, id)
	return nil
}

/************ tasks ************/

type fakeTasks struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*model.Task
	createErr error
	statsFrom time.Time
	statsTo   time.Time
}

var _ repository.TaskRepository = (*fakeTasks)(nil)

func newFakeTasks() *fakeTasks { return &fakeTasks{byID: map[uuid.UUID]*model.Task{}} }

func (f *fakeTasks) Create(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	t.ID = uuid.Must(uuid.NewV4())
	t.Status = model.TaskRunning
	t.Timestamp = time.Now()
	c := *t
	f.byID[t.ID] = &c
	return nil
}

func (f *fakeTasks) Get(_ context.Context, id uuid.UUID) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrTaskNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTasks) CloseIfRunning(_ context.Context, id uuid.UUID, rep model.TaskReport) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrTaskNotFound
	}
	if t.Status != model.TaskRunning {
		return nil, errs.ErrConflict
	}
	t.Status, t.OTPProcessed, t.ErrorMessage = rep.Status, rep.OTPProcessed, rep.ErrorMessage
	c := *t
	return &c, nil
}

func (f *fakeTasks) ListEnriched(context.Context) ([]model.EnrichedTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.EnrichedTask, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, model.EnrichedTask{Task: *t, UserEmail: "Unknown", ScriptName: "Unknown", CountryName: "Unknown"})
	}
	return out, nil
}

func (f *fakeTasks) Stats(_ context.Context, from, to time.Time) (model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsFrom, f.statsTo = from, to
	n := 0
	for _, t := range f.byID {
		if !t.Timestamp.Before(from) && t.Timestamp.Before(to) {
			n++
		}
	}
	return model.Stats{TasksToday: n}, nil
}

/************ limiter ************/

type fakeLimiter struct {
	mu       sync.Mutex
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	allowCalls   int
	failureCalls int
	successCalls int
	lastKey      string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, key string, _ []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowCalls++
	l.lastKey = key
	return l.allowOK, 0, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successCalls++
	return nil
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

/************ store ************/

// failingStore fails Put for keys under prefix and delegates everything else.
type failingStore struct {
	filestore.Store
	prefix string
	err    error
}

func (s failingStore) Put(ctx context.Context, key string, data []byte) error {
	if strings.HasPrefix(key, s.prefix) {
		return s.err
	}
	return s.Store.Put(ctx, key, data)
}
