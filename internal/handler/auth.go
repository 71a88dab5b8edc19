package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// Accounts is the account store used by AuthHandler.
type Accounts interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// RefreshTokens stores hashed refresh tokens.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForAccount(ctx context.Context, accountID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	cfg      config.Config
	accounts Accounts
	tokens   RefreshTokens
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthHandler(cfg config.Config, a Accounts, t RefreshTokens, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, accounts: a, tokens: t, log: log.With().Str("component", "auth").Logger(),
		now: func() time.Time { return time.Now().UTC() }}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type accountPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

// Register creates a BUYER account and returns a token pair. Other roles
// are provisioned by an operator.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.accounts.Create(ctx, req.Email, req.Password, model.RoleBuyer, h.cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return fail(c, http.StatusConflict, "email_exists", "email already exists")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("create account")
		return fail(c, http.StatusInternalServerError, "internal", "create account failed")
	}
	return h.issue(ctx, c, http.StatusCreated, accountPart{ID: id, Email: req.Email, Role: model.RoleBuyer})
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return fail(c, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("load account")
		return fail(c, http.StatusInternalServerError, "internal", "query failed")
	}
	if !a.IsActive || !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	}
	return h.issue(ctx, c, http.StatusOK, accountPart{ID: a.ID, Email: a.Email, Role: a.Role})
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is returned.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "invalid_request", "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.tokens.ValidateRefresh(ctx, hash, h.now())
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
	}
	if err := h.tokens.RevokeByHash(ctx, hash); err != nil {
		h.log.Error().Err(err).Msg("revoke refresh")
		return fail(c, http.StatusInternalServerError, "internal", "revoke failed")
	}
	a, err := h.accounts.GetByID(ctx, id)
	if err != nil || !a.IsActive {
		return fail(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
	}
	return h.issue(ctx, c, http.StatusOK, accountPart{ID: a.ID, Email: a.Email, Role: a.Role})
}

// Logout revokes the presented refresh token, or every token of the caller
// when authenticated and no token is given.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.tokens.ValidateRefresh(ctx, hash, h.now()); err != nil {
			return fail(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
		}
		if err := h.tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, http.StatusInternalServerError, "internal", "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	if id, ok := middleware.AccountID(c); ok {
		if err := h.tokens.RevokeAllForAccount(ctx, id); err != nil {
			return fail(c, http.StatusInternalServerError, "internal", "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	return fail(c, http.StatusBadRequest, "invalid_request", "provide Authorization header or refresh_token")
}

// Me echoes the authenticated identity.
func (h *AuthHandler) Me(c echo.Context) error {
	id, _ := middleware.AccountID(c)
	return c.JSON(http.StatusOK, echo.Map{"account_id": id, "role": middleware.Role(c)})
}

func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, acct accountPart) error {
	now := h.now()
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, acct.ID, acct.Role, time.Duration(h.cfg.AccessTTLMin)*time.Minute, now)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal", "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays, now)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal", "issue refresh failed")
	}
	if err := h.tokens.StoreRefresh(ctx, acct.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		h.log.Error().Err(err).Msg("store refresh")
		return fail(c, http.StatusInternalServerError, "internal", "save refresh failed")
	}
	return c.JSON(status, authResp{
		Account: acct,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
