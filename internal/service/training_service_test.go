package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digkill/photostudio/internal/callback"
	"github.com/digkill/photostudio/internal/models"
)

func newTrainingFixture(credits int, existing ...models.TrainedModel) (*TrainingService, *fakeUsers, *fakeModels, *fakeProvider) {
	users := newFakeUsers(models.User{ID: 1, Credits: credits}, models.User{ID: 2, Credits: 0})
	trained := newFakeModels(existing...)
	provider := &fakeProvider{}
	svc := NewTrainingService(discardLogger(), NewLedger(users), trained, provider, callback.NewBuilder("https://photos.example.com", "s"))
	return svc, users, trained, provider
}

func TestTrainingSubmit(t *testing.T) {
	svc, users, trained, provider := newTrainingFixture(60)

	res, err := svc.Submit(context.Background(), 1, TrainingRequest{
		Name:      " Me ",
		ImageURLs: []string{"https://cdn/1.jpg", "", "https://cdn/2.jpg"},
	})
	require.NoError(t, err)
	require.Equal(t, 10, res.Credits)
	require.Equal(t, 10, users.credits(1))

	m := trained.get(res.Model.ID)
	require.Equal(t, "Me", m.Name)
	require.Equal(t, models.SubjectPerson, m.SubjectClass)
	require.Equal(t, models.ModelProcessing, m.Status)
	require.Equal(t, "tune-1", m.ProviderTuneID)
	require.Equal(t, []string{"https://cdn/1.jpg", "https://cdn/2.jpg"}, m.TrainingImages)

	require.Len(t, provider.tunes, 1)
	require.Equal(t, "person", provider.tunes[0].ClassName)
	cb, err := url.Parse(provider.tunes[0].CallbackURL)
	require.NoError(t, err)
	target, err := callback.NewBuilder("https://photos.example.com", "s").Parse(cb.Query())
	require.NoError(t, err)
	require.Equal(t, m.ID, target.ModelID)
}

func TestTrainingProviderFailureRemovesExactRecord(t *testing.T) {
	// An older record in the same shape must survive the cleanup.
	older := models.TrainedModel{ID: 3, UserID: 1, Name: "old", SubjectClass: models.SubjectMan, Status: models.ModelProcessing}
	svc, users, trained, provider := newTrainingFixture(80, older)
	provider.tuneErr = errProviderDown

	_, err := svc.Submit(context.Background(), 1, TrainingRequest{Name: "new", SubjectClass: models.SubjectMan, ImageURLs: []string{"https://cdn/1.jpg"}})
	require.ErrorIs(t, err, ErrProviderFailure)

	require.Equal(t, 80, users.credits(1))
	require.Equal(t, []int64{4}, trained.deleted)
	require.NotNil(t, trained.get(3))
	require.Nil(t, trained.get(4))
}

func TestTrainingValidationAndCredits(t *testing.T) {
	svc, users, _, provider := newTrainingFixture(49)
	ctx := context.Background()

	_, err := svc.Submit(ctx, 1, TrainingRequest{Name: "", ImageURLs: []string{"x"}})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Submit(ctx, 1, TrainingRequest{Name: "a", SubjectClass: "cat", ImageURLs: []string{"x"}})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Submit(ctx, 1, TrainingRequest{Name: "a", ImageURLs: []string{" "}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Submit(ctx, 1, TrainingRequest{Name: "a", ImageURLs: []string{"x"}})
	require.ErrorIs(t, err, ErrInsufficientCredits)
	require.Equal(t, 49, users.credits(1))
	require.Empty(t, provider.tunes)
}

func TestTrainingDeleteOwnership(t *testing.T) {
	m := models.TrainedModel{ID: 9, UserID: 1, Status: models.ModelReady}
	svc, _, trained, _ := newTrainingFixture(0, m)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, 2, 9), ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, 1, 10), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, 1, 9))
	require.Nil(t, trained.get(9))

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestTrainingCallerCancelledDuringDispatch(t *testing.T) {
	svc, users, trained, provider := newTrainingFixture(80)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider.onCall = cancel
	provider.tuneErr = errProviderDown

	_, err := svc.Submit(ctx, 1, TrainingRequest{Name: "me", ImageURLs: []string{"https://cdn/1.jpg"}})
	require.ErrorIs(t, err, ErrProviderFailure)
	require.Equal(t, 80, users.credits(1))
	require.Equal(t, []int64{1}, trained.deleted)
	require.Nil(t, trained.get(1))

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	provider.onCall = cancel
	provider.tuneErr = nil

	res, err := svc.Submit(ctx, 1, TrainingRequest{Name: "me", ImageURLs: []string{"https://cdn/1.jpg"}})
	require.NoError(t, err)
	require.Equal(t, 30, res.Credits)
	require.Equal(t, "tune-1", trained.get(res.Model.ID).ProviderTuneID)
}
