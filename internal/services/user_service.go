package services

import (
	"log"
	"time"

	"arstore/internal/models"
	"arstore/internal/repositories"
	"arstore/internal/storage"
)

// UserService handles business logic related to user accounts and
// profile images.
type UserService struct {
	repo    repositories.UserRepository
	store   *storage.LocalStore
	baseURL string
}

// NewUserService creates a new UserService. store is the profile image
// directory; baseURL is the public root under which /download/users is
// mounted.
func NewUserService(repo repositories.UserRepository, store *storage.LocalStore, baseURL string) *UserService {
	return &UserService{
		repo:    repo,
		store:   store,
		baseURL: baseURL,
	}
}

// UpdateUserInput carries a partial user update. Nil pointers leave the
// corresponding field untouched. Image references a file already written
// to the profile image store.
type UpdateUserInput struct {
	Username    *string
	Email       *string
	Address     *string
	PhoneNum    *string
	DateOfBirth *time.Time
	Image       string
}

// ListUsers retrieves all users.
func (s *UserService) ListUsers() ([]models.User, error) {
	return s.repo.GetAll()
}

// GetUser retrieves a single user by ID.
func (s *UserService) GetUser(id string) (*models.User, error) {
	return s.repo.GetByID(id)
}

// Profile returns the non-sensitive view of the user with the given ID.
func (s *UserService) Profile(id string) (*models.Profile, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	profile := models.NewProfile(user, s.baseURL)
	return &profile, nil
}

// UpdateUser applies a partial update: only supplied fields overwrite
// existing ones.
func (s *UserService) UpdateUser(id string, input UpdateUserInput) (*models.User, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.Address != nil {
		user.Address = *input.Address
	}
	if input.PhoneNum != nil {
		user.PhoneNum = *input.PhoneNum
	}
	if input.DateOfBirth != nil {
		user.DateOfBirth = *input.DateOfBirth
	}
	if input.Image != "" {
		user.Image = input.Image
	}

	if err := s.repo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the user record and their profile image file. A
// missing image file is logged, never surfaced.
func (s *UserService) DeleteUser(id string) (*models.User, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(id); err != nil {
		return nil, err
	}

	if user.Image != "" {
		if err := s.store.Remove(user.Image); err != nil {
			log.Printf("Failed to delete profile image %s for user %s: %v", user.Image, id, err)
		}
	}

	return user, nil
}
