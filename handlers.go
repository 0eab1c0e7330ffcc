package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := validateNewUser(req.Name, req.Email, req.Username, req.Password); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hashed,
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			writeFieldError(w, http.StatusUnprocessableEntity, dup.Error(), dup.Field)
			return
		}
		log.Printf("create user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user.Public()})
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	user, err := a.strategies.Get("local").Authenticate(r)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidBody):
			writeError(w, http.StatusBadRequest, "email and password are required")
		case errors.Is(err, ErrStoreUnavailable):
			log.Printf("login: %v", err)
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
		default:
			// One opaque answer for every credential failure.
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		}
		return
	}

	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	// Bookkeeping only; the token is valid whether or not the record lands.
	if err := a.store.AddAuthToken(r.Context(), &AuthToken{Token: token, UserID: user.ID, IssuedAt: time.Now()}); err != nil {
		log.Printf("record token: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  user.Public(),
		"token": token,
	})
}

// HandleMe returns the principal the auth gate attached to the request.
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := principalFrom(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Please authenticate.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user.Public()})
}

func (a *App) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := a.store.GetUserByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("get user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user.Public()})
}

// HandleUpdateUser applies a partial update. Only name and password may
// change; the password hash is recomputed only when a new password is
// actually supplied, never from the stored value.
func (a *App) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for key := range fields {
		if key != "name" && key != "password" {
			writeError(w, http.StatusBadRequest, "invalid update field: "+key)
			return
		}
	}

	id := mux.Vars(r)["id"]
	user, err := a.store.GetUserByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("get user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	if raw, ok := fields["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil || name == "" {
			writeError(w, http.StatusBadRequest, "invalid name")
			return
		}
		user.Name = name
	}
	if raw, ok := fields["password"]; ok {
		var password string
		if err := json.Unmarshal(raw, &password); err != nil {
			writeError(w, http.StatusBadRequest, "invalid password")
			return
		}
		if len(password) < minPasswordLen {
			writeError(w, http.StatusConflict, "password must be at least 8 characters")
			return
		}
		hashed, err := hashPassword(password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to process password")
			return
		}
		user.PasswordHash = hashed
	}

	if err := a.store.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("update user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user.Public()})
}

func (a *App) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("delete user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (a *App) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("list users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	public := make([]PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": public})
}
