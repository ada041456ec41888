package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/events"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTaskRepo is an in-memory repository.TaskRepository. Writes staged on a
// unit only become visible on Commit, like a real transaction.
type fakeTaskRepo struct {
	mu     sync.Mutex
	tasks  map[int64]model.Task
	nextID int64

	begins    int
	commits   int
	rollbacks int

	// beginCtxDone and commitCtxErr record what the last Begin and Commit saw.
	beginCtxDone bool
	commitCtxErr error

	listErr   error
	findErr   error
	beginErr  error
	commitErr error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[int64]model.Task)}
}

// seed stores a task directly, bypassing units and counters.
func (f *fakeTaskRepo) seed(title string, ownerID int64) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := model.Task{ID: f.nextID, Title: title, CreatedAt: time.Now().UTC(), OwnerID: ownerID}
	f.tasks[t.ID] = t
	return t
}

func (f *fakeTaskRepo) get(id int64) (model.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

func (f *fakeTaskRepo) ListByOwner(_ context.Context, ownerID int64) ([]model.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Task
	for _, t := range f.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskRepo) FindByIDAndOwner(_ context.Context, id, ownerID int64) (*model.Task, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTaskRepo) Begin(ctx context.Context) (repository.TaskUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginCtxDone = ctx.Done() != nil
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begins++
	return &fakeUnit{repo: f}, nil
}

type fakeUnit struct {
	repo *fakeTaskRepo
	ops  []func(map[int64]model.Task)
	done bool
}

func (u *fakeUnit) Insert(_ context.Context, t *model.Task) error {
	u.repo.mu.Lock()
	u.repo.nextID++
	t.ID = u.repo.nextID
	u.repo.mu.Unlock()
	stored := *t
	u.ops = append(u.ops, func(m map[int64]model.Task) { m[stored.ID] = stored })
	return nil
}

func (u *fakeUnit) Update(_ context.Context, t *model.Task) error {
	cur, ok := u.repo.get(t.ID)
	if !ok || cur.OwnerID != t.OwnerID {
		return apperror.NotFound("task", "x")
	}
	stored := cur
	stored.Title, stored.Completed = t.Title, t.Completed
	u.ops = append(u.ops, func(m map[int64]model.Task) { m[stored.ID] = stored })
	return nil
}

func (u *fakeUnit) Delete(_ context.Context, t *model.Task) error {
	cur, ok := u.repo.get(t.ID)
	if !ok || cur.OwnerID != t.OwnerID {
		return apperror.NotFound("task", "x")
	}
	id := t.ID
	u.ops = append(u.ops, func(m map[int64]model.Task) { delete(m, id) })
	return nil
}

func (u *fakeUnit) Commit(ctx context.Context) error {
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	if u.done {
		return errors.New("fake: unit already finished")
	}
	u.done = true
	u.repo.commitCtxErr = ctx.Err()
	if u.repo.commitErr != nil {
		return u.repo.commitErr
	}
	for _, op := range u.ops {
		op(u.repo.tasks)
	}
	u.repo.commits++
	return nil
}

func (u *fakeUnit) Rollback(context.Context) error {
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	u.repo.rollbacks++
	return nil
}

// leakyTaskRepo ignores the owner filter, as a buggy repository would.
type leakyTaskRepo struct {
	*fakeTaskRepo
}

func (l leakyTaskRepo) ListByOwner(context.Context, int64) ([]model.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Task
	for _, t := range l.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l leakyTaskRepo) FindByIDAndOwner(_ context.Context, id, _ int64) (*model.Task, error) {
	t, ok := l.get(id)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
	nextID  int64

	getErr    error
	createErr error
	// raceOnCreate makes the first Create fail with Conflict after storing
	// the user, as if a concurrent request had won.
	raceOnCreate bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return apperror.Conflict("user", u.Email)
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now().UTC()
	stored := *u
	f.byEmail[u.Email] = &stored
	if f.raceOnCreate {
		f.raceOnCreate = false
		return apperror.Conflict("user", u.Email)
	}
	return nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}
