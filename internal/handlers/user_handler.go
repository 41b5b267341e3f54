package handlers

import (
	"errors"
	"log"
	"path/filepath"

	"arstore/internal/repositories"
	"arstore/internal/services"
	"arstore/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	service  *services.UserService
	store    *storage.LocalStore
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler. store is the profile image
// directory.
func NewUserHandler(service *services.UserService, store *storage.LocalStore) *UserHandler {
	return &UserHandler{
		service:  service,
		store:    store,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the user routes with the Fiber app. auth
// protects the profile route.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/", h.HandleGetUsers)
	userRoutes.Get("/profile", auth, h.HandleProfile)
	userRoutes.Get("/:id", h.HandleGetUserByID)
	userRoutes.Put("/:id", h.HandleUpdate)
	userRoutes.Delete("/:id", h.HandleDelete)
}

// HandleGetUsers retrieves all users. Password hashes are never
// serialized.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers()
	if err != nil {
		log.Printf("Error getting all users: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve users",
			"error":   err.Error(),
		})
	}
	return c.JSON(users)
}

// HandleProfile returns the authenticated user's non-sensitive fields.
func (h *UserHandler) HandleProfile(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	profile, err := h.service.Profile(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error getting profile for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve profile",
			"error":   err.Error(),
		})
	}
	return c.JSON(profile)
}

// HandleGetUserByID retrieves a single user by ID.
func (h *UserHandler) HandleGetUserByID(c *fiber.Ctx) error {
	userID := c.Params("id")
	user, err := h.service.GetUser(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error getting user by ID %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve user",
			"error":   err.Error(),
		})
	}
	return c.JSON(user)
}

// HandleUpdate applies a partial multipart update to a user, including
// an optional profile image replacement stored under a deterministic
// per-user filename.
func (h *UserHandler) HandleUpdate(c *fiber.Ctx) error {
	userID := c.Params("id")

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid multipart form",
			"error":   err.Error(),
		})
	}

	var input services.UpdateUserInput
	if v, ok := optionalValue(form, "username"); ok {
		input.Username = &v
	}
	if v, ok := optionalValue(form, "email"); ok {
		if err := h.validate.Var(v, "email"); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid email address",
			})
		}
		input.Email = &v
	}
	if v, ok := optionalValue(form, "address"); ok {
		input.Address = &v
	}
	if v, ok := optionalValue(form, "phoneNum"); ok {
		input.PhoneNum = &v
	}
	if v, ok := optionalValue(form, "dateOfBirth"); ok {
		dob, err := parseDate(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid dateOfBirth, expected YYYY-MM-DD",
				"error":   err.Error(),
			})
		}
		input.DateOfBirth = &dob
	}

	if fh := firstFile(form, "image"); fh != nil {
		// Deterministic name so a new upload replaces the old image
		// in place.
		name := "profileImage_" + userID + filepath.Ext(fh.Filename)
		if err := h.store.SaveAs(fh, name); err != nil {
			log.Printf("Error storing profile image for user %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not store profile image",
				"error":   err.Error(),
			})
		}
		input.Image = name
	}

	user, err := h.service.UpdateUser(userID, input)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error updating user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update user",
			"error":   err.Error(),
		})
	}

	return c.JSON(user)
}

// HandleDelete removes a user and their profile image file.
func (h *UserHandler) HandleDelete(c *fiber.Ctx) error {
	userID := c.Params("id")
	user, err := h.service.DeleteUser(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error deleting user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not delete user",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
		"user":    user,
	})
}
