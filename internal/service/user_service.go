package service

import (
	"context"
	"fmt"

	"github.com/digkill/photostudio/internal/models"
)

// InitialCredits is the balance of a freshly registered user.
const InitialCredits = 10

const adminListLimit = 200

// Identity is the verified profile returned by the identity provider.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type UserService struct {
	users  UserStore
	ledger *Ledger
}

func NewUserService(users UserStore, ledger *Ledger) *UserService {
	return &UserService{users: users, ledger: ledger}
}

// Ensure finds the user for a verified identity or registers a new one.
// Profile fields are refreshed on every sign-in.
func (s *UserService) Ensure(ctx context.Context, id Identity) (*models.User, bool, error) {
	if id.Subject == "" {
		return nil, false, fmt.Errorf("%w: identity subject is required", ErrValidation)
	}
	user, err := s.users.FindByGoogleSub(ctx, id.Subject)
	if err != nil {
		return nil, false, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		if user.Email != id.Email || user.Name != id.Name || user.Picture != id.Picture {
			if err := s.users.UpdateProfile(ctx, user.ID, id.Email, id.Name, id.Picture); err != nil {
				return nil, false, fmt.Errorf("update profile: %w", err)
			}
			user.Email, user.Name, user.Picture = id.Email, id.Name, id.Picture
		}
		return user, false, nil
	}

	user = &models.User{
		GoogleSub: id.Subject,
		Email:     id.Email,
		Name:      id.Name,
		Picture:   id.Picture,
		Credits:   InitialCredits,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx, adminListLimit)
}

// AdjustCredits applies a manual correction and returns the new balance.
func (s *UserService) AdjustCredits(ctx context.Context, id int64, delta int) (int, error) {
	return s.ledger.Adjust(ctx, id, delta)
}
