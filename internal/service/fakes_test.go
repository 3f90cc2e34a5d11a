package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/photostudio/internal/astria"
	"github.com/digkill/photostudio/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{byID: map[int64]*models.User{}}
	for _, u := range users {
		u := u
		f.byID[u.ID] = &u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) credits(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Credits
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByGoogleSub(_ context.Context, sub string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.GoogleSub == sub {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id int64, email, name, picture string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.Email, u.Name, u.Picture = email, name, picture
	}
	return nil
}

func (f *fakeUsers) DebitCredits(ctx context.Context, id int64, amount int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || u.Credits < amount {
		return false, nil
	}
	u.Credits -= amount
	return true, nil
}

func (f *fakeUsers) AddCredits(ctx context.Context, id int64, amount int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	u.Credits += amount
	return true, nil
}

func (f *fakeUsers) List(_ context.Context, limit int) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsers) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID), nil
}

type fakeGenerations struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*models.Generation
	created []int64
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{byID: map[int64]*models.Generation{}}
}

func (f *fakeGenerations) get(id int64) *models.Generation {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.byID[id]
	if g == nil {
		return nil
	}
	cp := *g
	return &cp
}

func (f *fakeGenerations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeGenerations) Create(ctx context.Context, g *models.Generation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	g.ID = f.nextID
	cp := *g
	f.byID[g.ID] = &cp
	f.created = append(f.created, g.ID)
	return nil
}

func (f *fakeGenerations) GetByID(_ context.Context, id int64) (*models.Generation, error) {
	return f.get(id), nil
}

func (f *fakeGenerations) SetProviderID(ctx context.Context, id int64, providerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.byID[id]; ok {
		g.ProviderPromptID = providerID
	}
	return nil
}

func (f *fakeGenerations) finalize(id int64, status models.GenerationStatus, imageURL string, at time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.byID[id]
	if !ok || g.Status != models.GenerationProcessing {
		return false
	}
	g.Status = status
	if imageURL != "" {
		g.ImageURL = imageURL
	}
	g.CompletedAt = &at
	return true
}

func (f *fakeGenerations) Complete(ctx context.Context, id int64, imageURL string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.finalize(id, models.GenerationCompleted, imageURL, at), nil
}

func (f *fakeGenerations) Fail(ctx context.Context, id int64, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.finalize(id, models.GenerationFailed, "", at), nil
}

func (f *fakeGenerations) ListByUser(_ context.Context, userID int64, limit int) ([]models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Generation
	for _, g := range f.byID {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeGenerations) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

type fakeModels struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*models.TrainedModel
	deleted []int64
}

func newFakeModels(ms ...models.TrainedModel) *fakeModels {
	f := &fakeModels{byID: map[int64]*models.TrainedModel{}}
	for _, m := range ms {
		m := m
		f.byID[m.ID] = &m
		if m.ID > f.nextID {
			f.nextID = m.ID
		}
	}
	return f
}

func (f *fakeModels) get(id int64) *models.TrainedModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.byID[id]
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func (f *fakeModels) Create(ctx context.Context, m *models.TrainedModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.ID = f.nextID
	cp := *m
	f.byID[m.ID] = &cp
	return nil
}

func (f *fakeModels) GetByID(_ context.Context, id int64) (*models.TrainedModel, error) {
	return f.get(id), nil
}

func (f *fakeModels) SetProviderID(ctx context.Context, id int64, tuneID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[id]; ok {
		m.ProviderTuneID = tuneID
	}
	return nil
}

func (f *fakeModels) Finish(_ context.Context, id int64, status models.ModelStatus, tuneID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.Status != models.ModelProcessing {
		return false, nil
	}
	m.Status = status
	m.CompletedAt = &at
	if m.ProviderTuneID == "" {
		m.ProviderTuneID = tuneID
	}
	return true, nil
}

func (f *fakeModels) ListByUser(_ context.Context, userID int64, limit int) ([]models.TrainedModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TrainedModel
	for _, m := range f.byID {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeModels) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePayments struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.PaymentRequest
	users  *fakeUsers
	// creditErrs fail the next credits of a confirmation, one per call.
	creditErrs []error
}

func newFakePayments(users *fakeUsers) *fakePayments {
	return &fakePayments{byID: map[int64]*models.PaymentRequest{}, users: users}
}

func (f *fakePayments) Create(_ context.Context, p *models.PaymentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now().UTC().Add(time.Duration(p.ID) * time.Second)
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id int64) (*models.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) transition(id int64, to models.PaymentStatus, apply func(p *models.PaymentRequest)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || !models.CanTransition(p.Status, to) {
		return false
	}
	p.Status = to
	apply(p)
	return true
}

func (f *fakePayments) MarkPaid(_ context.Context, id int64, by models.Actor, at time.Time) (bool, error) {
	return f.transition(id, models.PaymentPaid, func(p *models.PaymentRequest) { p.PaidAt, p.PaidBy = &at, by }), nil
}

// ConfirmAndCredit mirrors the store transaction: the status change is
// rolled back when the credit fails.
func (f *fakePayments) ConfirmAndCredit(ctx context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || !models.CanTransition(p.Status, models.PaymentConfirmed) {
		return false, nil
	}
	if len(f.creditErrs) > 0 {
		err := f.creditErrs[0]
		f.creditErrs = f.creditErrs[1:]
		return false, err
	}
	credited, err := f.users.AddCredits(ctx, p.UserID, p.Crystals)
	if err != nil {
		return false, err
	}
	if !credited {
		return false, errors.New("payment owner not found")
	}
	p.Status = models.PaymentConfirmed
	p.ConfirmedAt = &at
	return true, nil
}

func (f *fakePayments) Reject(_ context.Context, id int64, note string, at time.Time) (bool, error) {
	return f.transition(id, models.PaymentRejected, func(p *models.PaymentRequest) { p.RejectedAt, p.AdminNote = &at, note }), nil
}

func (f *fakePayments) DeleteOpen(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.Status.Terminal() {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

func (f *fakePayments) filter(keep func(*models.PaymentRequest) bool) []models.PaymentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PaymentRequest
	for _, p := range f.byID {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakePayments) ListByUser(_ context.Context, userID int64, _ int) ([]models.PaymentRequest, error) {
	return f.filter(func(p *models.PaymentRequest) bool { return p.UserID == userID }), nil
}

func (f *fakePayments) List(_ context.Context, status models.PaymentStatus, _ int) ([]models.PaymentRequest, error) {
	return f.filter(func(p *models.PaymentRequest) bool { return status == "" || p.Status == status }), nil
}

func (f *fakePayments) Oldest(_ context.Context, status models.PaymentStatus) (*models.PaymentRequest, error) {
	list := f.filter(func(p *models.PaymentRequest) bool { return p.Status == status })
	if len(list) == 0 {
		return nil, nil
	}
	return &list[len(list)-1], nil
}

func (f *fakePayments) Stats(context.Context) (models.PaymentStats, error) {
	stats := models.PaymentStats{TotalRevenue: decimal.Zero}
	for _, p := range f.filter(func(*models.PaymentRequest) bool { return true }) {
		stats.TotalPayments++
		switch p.Status {
		case models.PaymentPending:
			stats.PendingPayments++
		case models.PaymentPaid:
			stats.PaidPayments++
		case models.PaymentConfirmed:
			stats.ConfirmedPayments++
			stats.TotalCrystalsSold += p.Crystals
			stats.TotalRevenue = stats.TotalRevenue.Add(p.Amount)
		case models.PaymentRejected:
			stats.RejectedPayments++
		}
	}
	return stats, nil
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (f *fakeSettings) Get(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[name]
	return v, ok, nil
}

func (f *fakeSettings) Set(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
	return nil
}

type fakeProvider struct {
	mu        sync.Mutex
	prompts   []astria.PromptRequest
	tunes     []astria.TuneRequest
	promptErr error
	tuneErr   error
	// onCall runs before each dispatch, e.g. to cancel the caller's request.
	onCall func()
}

func (f *fakeProvider) dispatch(ctx context.Context) error {
	if f.onCall != nil {
		f.onCall()
	}
	return ctx.Err()
}

func (f *fakeProvider) CreatePrompt(ctx context.Context, req astria.PromptRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req)
	if err := f.dispatch(ctx); err != nil {
		return "", err
	}
	if f.promptErr != nil {
		return "", f.promptErr
	}
	return "prompt-1", nil
}

func (f *fakeProvider) CreateTune(ctx context.Context, req astria.TuneRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tunes = append(f.tunes, req)
	if err := f.dispatch(ctx); err != nil {
		return "", err
	}
	if f.tuneErr != nil {
		return "", f.tuneErr
	}
	return "tune-1", nil
}

type fakeEnhancer struct {
	out string
	err error
}

func (f fakeEnhancer) Enhance(context.Context, string) (string, error) {
	return f.out, f.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	created []int64
	marked  []int64
	err     error
}

func (n *recordingNotifier) PaymentCreated(_ context.Context, p *models.PaymentRequest, _ *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, p.ID)
	return n.err
}

func (n *recordingNotifier) PaymentMarked(_ context.Context, p *models.PaymentRequest, _ *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.marked = append(n.marked, p.ID)
	return n.err
}

var errProviderDown = errors.New("provider down")
