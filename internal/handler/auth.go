package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seatwatch/internal/config"
	"github.com/iliyamo/seatwatch/internal/middleware"
	"github.com/iliyamo/seatwatch/internal/model"
	"github.com/iliyamo/seatwatch/internal/repository"
	"github.com/iliyamo/seatwatch/internal/utils"
)

// Sessions tracks logged-in users; the detection scheduler runs while at
// least one is present.
type Sessions interface {
	Enter(key string) error
	Leave(key string)
	Active() int
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Sessions Sessions
	Log      zerolog.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, s Sessions, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Log: log}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

func sessionKey(id uint64) string { return strconv.FormatUint(id, 10) }

func (h *AuthHandler) bind(c echo.Context) (credentials, bool) {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return req, false
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	return req, req.Username != "" && req.Password != ""
}

// Register creates a student account and returns an access token. It does
// not start a session; that happens on login.
func (h *AuthHandler) Register(c echo.Context) error {
	req, ok := h.bind(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Password, model.RoleStudent, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		}
		h.Log.Error().Err(err).Msg("create user failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, req.Username, model.RoleStudent, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusCreated, authResp{
		User:   userPart{ID: uid, Username: req.Username, Role: model.RoleStudent},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Login verifies the credentials, issues a token and enters the session.
// A scheduler that fails to start is logged; the login still succeeds.
func (h *AuthHandler) Login(c echo.Context) error {
	req, ok := h.bind(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Username, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	if err := h.Sessions.Enter(sessionKey(u.ID)); err != nil {
		h.Log.Error().Err(err).Uint64("user_id", u.ID).Msg("scheduler start failed")
	}

	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Username: u.Username, Role: u.Role},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout leaves the caller's session. Protected by JWTAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	h.Sessions.Leave(sessionKey(uid))
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":         middleware.UserID(c),
		"username":        c.Get(middleware.CtxUsername),
		"role":            middleware.Role(c),
		"active_sessions": h.Sessions.Active(),
	})
}
