package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/and161185/otpguard/internal/filestore"
	"github.com/and161185/otpguard/internal/model"
	"github.com/and161185/otpguard/internal/phone"
	"github.com/and161185/otpguard/internal/repository"
	"github.com/and161185/otpguard/internal/template"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// DefaultCleanupDelay is how long a personalized artifact outlives its download.
const DefaultCleanupDelay = 60 * time.Second

// DispatchService personalizes scripts for devices.
type DispatchService interface {
	// PrepareDownload injects validated numbers into a script and opens a task for it.
	PrepareDownload(ctx context.Context, userID, scriptID, countryID uuid.UUID, numbers []string) (model.Dispatch, error)
}

// DispatchOptions tunes PrepareDownload.
type DispatchOptions struct {
	CleanupDelay time.Duration
	// StrictTemplate rejects scripts without the placeholder instead of passing them through.
	StrictTemplate bool
}

type DispatchServiceImpl struct {
	scripts   repository.ScriptRepository
	countries repository.CountryRepository
	tasks     TaskService
	store     filestore.Store
	log       *zap.Logger
	opts      DispatchOptions

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewDispatchService constructs DispatchService.
func NewDispatchService(
	scripts repository.ScriptRepository, countries repository.CountryRepository,
	tasks TaskService, store filestore.Store, log *zap.Logger, opts DispatchOptions,
) *DispatchServiceImpl {
	if opts.CleanupDelay <= 0 {
		opts.CleanupDelay = DefaultCleanupDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DispatchServiceImpl{
		scripts: scripts, countries: countries, tasks: tasks, store: store, log: log, opts: opts,
		timers: make(map[string]*time.Timer),
	}
}

// PrepareDownload resolves script and country, validates numbers, patches the template,
// opens a task and writes a disposable artifact that is removed after CleanupDelay.
func (s *DispatchServiceImpl) PrepareDownload(
	ctx context.Context, userID, scriptID, countryID uuid.UUID, numbers []string,
) (model.Dispatch, error) {
	script, err := s.scripts.GetByID(ctx, scriptID)
	if err != nil {
		return model.Dispatch{}, lookupErr(err, errs.ErrScriptNotFound)
	}
	country, err := s.countries.GetByID(ctx, countryID)
	if err != nil {
		return model.Dispatch{}, lookupErr(err, errs.ErrCountryNotFound)
	}

	valid := phone.Validate(numbers, country.DialingCode, country.NumberLength)
	if len(valid) == 0 {
		return model.Dispatch{}, errs.ErrNoValidNumbers
	}

	src, err := s.store.Get(ctx, script.FilePath)
	if err != nil {
		return model.Dispatch{}, lookupErr(err, errs.ErrScriptNotFound)
	}
	content, found := template.InjectNumbers(string(src), valid)
	if !found {
		if s.opts.StrictTemplate {
			return model.Dispatch{}, errs.ErrTemplateInvalid
		}
		s.log.Warn("script has no placeholder, sending unmodified",
			zap.String("script_id", script.ID.String()),
			zap.String("file", script.FileName),
		)
	}

	task, err := s.tasks.Open(ctx, userID, scriptID, countryID)
	if err != nil {
		return model.Dispatch{}, err
	}

	artifactID, err := uuid.NewV4()
	if err != nil {
		return model.Dispatch{}, s.abort(ctx, task.ID, err)
	}
	key := filestore.TempKey(artifactID.String())
	if err := s.store.Put(ctx, key, []byte(content)); err != nil {
		return model.Dispatch{}, s.abort(ctx, task.ID, fmt.Errorf("write artifact: %w", err))
	}
	s.scheduleCleanup(key)

	return model.Dispatch{Content: content, Artifact: key, TaskID: task.ID, Numbers: valid}, nil
}

// abort marks a task failed when its artifact could not be produced.
func (s *DispatchServiceImpl) abort(ctx context.Context, taskID uuid.UUID, cause error) error {
	msg := "artifact write failed"
	if _, err := s.tasks.Close(context.WithoutCancel(ctx), taskID, model.TaskReport{
		Status: model.TaskFailed, ErrorMessage: &msg,
	}); err != nil {
		s.log.Error("close aborted task", zap.String("task_id", taskID.String()), zap.Error(err))
	}
	return cause
}

func (s *DispatchServiceImpl) scheduleCleanup(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[key] = time.AfterFunc(s.opts.CleanupDelay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		s.removeArtifact(key)
	})
}

func (s *DispatchServiceImpl) removeArtifact(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Debug("artifact cleanup", zap.String("key", key), zap.Error(err))
	}
}

// Pending reports how many artifacts await deletion.
func (s *DispatchServiceImpl) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops pending timers and deletes their artifacts now.
func (s *DispatchServiceImpl) Close() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.timers))
	for k, t := range s.timers {
		if t.Stop() {
			keys = append(keys, k)
		}
		delete(s.timers, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.removeArtifact(k)
	}
}

// lookupErr replaces a generic not-found with the entity-specific one.
func lookupErr(err, notFound error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return notFound
	}
	return err
}
