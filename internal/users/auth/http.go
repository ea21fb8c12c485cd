// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/counsel/internal/platform/middleware"
	requestutil "github.com/taibuivan/counsel/internal/platform/request"
	"github.com/taibuivan/counsel/internal/platform/respond"
	"github.com/taibuivan/counsel/internal/platform/sec"
	"github.com/taibuivan/counsel/internal/platform/validate"
)

// Client-facing messages of the endpoints that must not reveal account existence.
const (
	msgPasswordResetRequested = "If an account with that email exists, a password reset link has been sent"
	msgVerificationResent     = "If an unverified account with that email exists, a verification link has been sent"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler is a thin adapter: it decodes JSON, calls the [Service] and
// maps the outcome to the response envelope. Field rules live on the inputs.
type Handler struct {
	authService       *Service
	credentialLimiter func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler].
//
// credentialLimiter wraps the password-guessing endpoints (login, forgot and
// reset password) with a stricter per-IP bucket; nil disables it.
func NewHandler(service *Service, credentialLimiter func(http.Handler) http.Handler) *Handler {
	if credentialLimiter == nil {
		credentialLimiter = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{authService: service, credentialLimiter: credentialLimiter}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register                : Creates an account and signs it in.
//   - POST /login                   : Authenticates and opens a session.
//   - POST /logout                  : Ends a session (Bearer).
//   - POST /refresh                 : Mints a new access token.
//   - GET  /me                      : Returns the caller's profile (Bearer).
//   - PUT  /change-password         : Replaces the caller's password (Bearer).
//   - POST /forgot-password         : Issues a reset token.
//   - POST /reset-password          : Redeems a reset token.
//   - GET  /verify/{token}          : Redeems a verification token.
//   - POST /verify/resend           : Re-issues a verification token.
//   - POST /accounts/{id}/unlock    : Lifts a lockout (accounts:manage).
//   - PUT  /accounts/{id}/status    : Changes lifecycle status (accounts:manage).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/refresh", handler.refresh)
	router.Get("/verify/{token}", handler.verifyEmail)
	router.Post("/verify/resend", handler.resendVerification)

	// Credential endpoints share the stricter bucket
	router.Group(func(r chi.Router) {
		r.Use(handler.credentialLimiter)
		r.Post("/login", handler.login)
		r.Post("/forgot-password", handler.forgotPassword)
		r.Post("/reset-password", handler.resetPassword)
	})

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Get("/me", handler.me)
		r.Put("/change-password", handler.changePassword)
	})

	// Administration
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(sec.PermissionManageAccounts))
		r.Post("/accounts/{id}/unlock", handler.unlock)
		r.Put("/accounts/{id}/status", handler.setStatus)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	JobTitle    string `json:"jobTitle"`
	Department  string `json:"department"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type statusRequest struct {
	Status Status `json:"status"`
}

type resetTokenResponse struct {
	ResetToken string `json:"resetToken"`
}

/*
Register handles the creation of a new account.

POST /api/v1/auth/register

Response:
  - 201: AuthResult (user, accessToken, refreshToken)
  - 400: VALIDATION_ERROR, DUPLICATE_USERNAME, DUPLICATE_EMAIL
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Register(request.Context(), RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Profile: Profile{
			FirstName:   input.FirstName,
			LastName:    input.LastName,
			PhoneNumber: input.PhoneNumber,
			JobTitle:    input.JobTitle,
			Department:  input.Department,
		},
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, result)
}

/*
Login authenticates an account and opens a session.

POST /api/v1/auth/login

Response:
  - 200: AuthResult (user, sessionId, accessToken, refreshToken)
  - 401: INVALID_CREDENTIALS
  - 403: ACCOUNT_NOT_ACTIVE
  - 423: ACCOUNT_LOCKED (with Retry-After)
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Username:  input.Username,
		Email:     input.Email,
		Password:  input.Password,
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
Logout ends the caller's session.

POST /api/v1/auth/logout

Response:
  - 200: success
  - 401: Missing or invalid bearer token
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input logoutRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), claims.UserID, input.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Logged out successfully")
}

/*
Refresh exchanges a refresh token for a new access token.

POST /api/v1/auth/refresh

Response:
  - 200: TokenPair (accessToken, refreshToken)
  - 401: INVALID_TOKEN
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	tokens, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, tokens)
}

// me returns the caller's sanitized profile. GET /api/v1/auth/me
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Me(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
ChangePassword replaces the caller's password.

PUT /api/v1/auth/change-password

Response:
  - 200: success
  - 400: VALIDATION_ERROR (mismatch, complexity, reuse)
  - 401: INVALID_CREDENTIALS (wrong current password)
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), ChangePasswordInput{
		AccountID:       claims.UserID,
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
		ConfirmPassword: input.ConfirmPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Password changed successfully")
}

/*
ForgotPassword issues a reset token.

POST /api/v1/auth/forgot-password

Description: Always answers with the same message. The token is echoed only
when the service runs with token exposure enabled.
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, err := handler.authService.RequestPasswordReset(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if token != "" {
		respond.OKWithMessage(writer, resetTokenResponse{ResetToken: token}, msgPasswordResetRequested)
		return
	}
	respond.Message(writer, msgPasswordResetRequested)
}

/*
ResetPassword redeems a reset token.

POST /api/v1/auth/reset-password

Response:
  - 200: success
  - 400: INVALID_OR_EXPIRED_TOKEN or VALIDATION_ERROR
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.authService.ResetPassword(request.Context(), ResetPasswordInput{
		Token:           input.Token,
		NewPassword:     input.NewPassword,
		ConfirmPassword: input.ConfirmPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Password has been reset successfully")
}

// verifyEmail redeems the token in the path. GET /api/v1/auth/verify/{token}
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	if err := handler.authService.VerifyEmail(request.Context(), requestutil.Param(request, FieldToken)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Email verified successfully")
}

// resendVerification re-issues a verification token. POST /api/v1/auth/verify/resend
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResendVerification(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, msgVerificationResent)
}

// unlock lifts a lockout. POST /api/v1/auth/accounts/{id}/unlock
func (handler *Handler) unlock(writer http.ResponseWriter, request *http.Request) {
	accountID, err := accountIDParam(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Unlock(request.Context(), accountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKWithMessage(writer, user, "Account unlocked")
}

// setStatus changes the lifecycle status. PUT /api/v1/auth/accounts/{id}/status
func (handler *Handler) setStatus(writer http.ResponseWriter, request *http.Request) {
	accountID, err := accountIDParam(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input statusRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.SetStatus(request.Context(), accountID, input.Status)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// accountIDParam reads and validates the {id} path segment.
func accountIDParam(request *http.Request) (string, error) {
	accountID := requestutil.Param(request, FieldAccountID)

	validator := &validate.Validator{}
	validator.UUID(FieldAccountID, accountID)
	if err := validator.Err(); err != nil {
		return "", err
	}
	return accountID, nil
}
