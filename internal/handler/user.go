package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/service"
)

// UserHandler exposes the user directory as a JSON API.
// Every route sits behind RequireAuthenticated.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleList returns every user.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, users, "Users retrieved successfully")
}

// HandleGetByID returns one user.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, user, "User retrieved successfully")
}

// HandleCreate adds a user. The password is optional.
//
// HTTP: POST /api/users
// Body: {"name": "...", "email": "...", "password": "..."}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := readFields(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Create(r.Context(), service.CreateUserInput{
		Name:     in.get("name"),
		Email:    in.get("email"),
		Password: in.get("password"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, user, "User created successfully")
}

// HandleUpdate changes name and/or email.
//
// HTTP: PUT /api/users/{id}
//
// Only fields present in the body are touched.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	in, err := readFields(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Update(r.Context(), id, model.UserPatch{
		Name:  in.ptr("name"),
		Email: in.ptr("email"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, user, "User updated successfully")
}

// HandleDelete removes a user and returns the removed record.
//
// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Delete(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, user, "User deleted successfully")
}

// userID reads the {id} path parameter. An id that isn't a number cannot
// name any user, so it is reported as not found.
func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound("User not found")
	}
	return id, nil
}
