package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/timeledger/internal/auth"
	"github.com/sumire/timeledger/internal/domain"
)

// AuthHandler serves the account endpoints.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type inviteRequest struct {
	auth.RegistrationData
	Invite domain.UserInviteData `json:"invite"`
}

// Register creates an unconfirmed account and mails the key.
func (h *AuthHandler) Register(c echo.Context) error {
	var rd auth.RegistrationData
	if err := c.Bind(&rd); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(rd); err != nil {
		return err
	}

	uid, err := h.svc.Register(c.Request().Context(), rd)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, map[string]int64{"id": uid})
}

// Confirm completes registration from the mailed link.
func (h *AuthHandler) Confirm(c echo.Context) error {
	name := c.QueryParam("name")
	key := c.QueryParam("key")
	if name == "" || key == "" {
		return domain.ErrInvalidInput
	}

	if err := h.svc.Confirm(c.Request().Context(), name, key); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"status": "confirmed"})
}

// Login checks credentials and returns a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	token, user, err := h.svc.Login(c.Request().Context(), req.Name, req.Password)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout revokes the caller's token.
func (h *AuthHandler) Logout(c echo.Context) error {
	header := c.Request().Header.Get("Authorization")
	if len(header) <= len("Bearer ") {
		return domain.ErrUnauthorized
	}
	if err := h.svc.Logout(c.Request().Context(), header[len("Bearer "):]); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	user, ok := GetUser(c)
	if !ok {
		return domain.ErrUnauthorized
	}
	return JSON(c, http.StatusOK, user)
}

// Invite creates a confirmed account on behalf of the caller, carrying
// invited project memberships. Invites only land on projects where the
// caller holds Admin; the rest are dropped during creation.
func (h *AuthHandler) Invite(c echo.Context) error {
	caller, ok := GetUser(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(req.RegistrationData); err != nil {
		return err
	}

	payload, err := json.Marshal(req.Invite)
	if err != nil {
		return domain.ErrInvalidInput
	}
	inviteData := string(payload)

	uid, err := h.svc.NewUser(c.Request().Context(), req.RegistrationData, &inviteData, &caller.ID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, map[string]int64{"id": uid})
}
