// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/guideli/guideli/internal/auth"
	"github.com/guideli/guideli/internal/oauth"
)

const (
	oauthStateCookie    = "guideli_oauth_state"
	oauthVerifierCookie = "guideli_oauth_verifier"
	oauthCookieMaxAge   = 600
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type confirmEmailRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type changePasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := firstError(
		checkEmail(req.Email),
		checkPassword("password", req.Password),
		checkRequired("firstName", req.FirstName),
		checkRequired("lastName", req.LastName),
	); err != nil {
		respondError(w, r, a.logger, err)
		return
	}

	session, err := a.authenticator.Register(r.Context(), auth.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusCreated, "Your account has been created, please confirm your email", session)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := firstError(checkRequired("email", req.Email), checkRequired("password", req.Password)); err != nil {
		respondError(w, r, a.logger, err)
		return
	}

	session, err := a.authenticator.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "user logged in successfully", session)
}

func (a *API) googleProvider() (FederatedProvider, error) {
	if a.google == nil {
		return nil, oops.Code("OAUTH_PROVIDER_DISABLED").With("provider", "google").Wrap(auth.ErrNotFound)
	}
	return a.google, nil
}

func (a *API) oauthCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     APIPrefix + "/auth/google",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// handleGoogleStart redirects to the provider's consent page. The state and
// PKCE verifier ride in short-lived cookies scoped to the callback path.
func (a *API) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	provider, err := a.googleProvider()
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	state, verifier, err := oauth.NewState()
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	http.SetCookie(w, a.oauthCookie(oauthStateCookie, state, oauthCookieMaxAge))
	http.SetCookie(w, a.oauthCookie(oauthVerifierCookie, verifier, oauthCookieMaxAge))
	http.Redirect(w, r, provider.AuthCodeURL(state, verifier), http.StatusFound)
}

func (a *API) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	provider, err := a.googleProvider()
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	http.SetCookie(w, a.oauthCookie(oauthStateCookie, "", -1))
	http.SetCookie(w, a.oauthCookie(oauthVerifierCookie, "", -1))

	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		respondError(w, r, a.logger, oops.Code("OAUTH_DENIED").With("reason", reason).Wrap(auth.ErrUnauthorized))
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil {
		respondError(w, r, a.logger, oops.Code("OAUTH_STATE_MISSING").Wrap(auth.ErrUnauthorized))
		return
	}
	state := query.Get("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(stateCookie.Value)) != 1 {
		respondError(w, r, a.logger, oops.Code("OAUTH_STATE_MISMATCH").Wrap(auth.ErrUnauthorized))
		return
	}
	verifierCookie, err := r.Cookie(oauthVerifierCookie)
	if err != nil {
		respondError(w, r, a.logger, oops.Code("OAUTH_VERIFIER_MISSING").Wrap(auth.ErrUnauthorized))
		return
	}

	identity, err := provider.Exchange(r.Context(), query.Get("code"), verifierCookie.Value)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	session, err := a.authenticator.FederatedLogin(r.Context(), identity)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "user logged in successfully", session)
}

// handleResendVerification issues a fresh email verification token for the
// bearer's account.
func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if _, err := a.identity.ResendEmailVerification(r.Context(), user.ID); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusOK, "New token generated, Please check your email", nil)
}

func (a *API) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := firstError(checkRequired("email", req.Email), checkRequired("token", req.Token)); err != nil {
		respondError(w, r, a.logger, err)
		return
	}

	user, err := a.identity.ConfirmEmail(r.Context(), strings.TrimSpace(req.Email), req.Token)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusCreated, "Email Confirmed", user)
}

// handleRequestPasswordReset always reports success for a well-formed email so
// the response does not reveal whether an account exists.
func (a *API) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if err := checkEmail(email); err != nil {
		respondError(w, r, a.logger, err)
		return
	}

	if _, err := a.identity.RequestPasswordReset(r.Context(), email); err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			respondError(w, r, a.logger, err)
			return
		}
		a.logger.DebugContext(r.Context(), "password reset requested for unknown email")
	}
	respondOK(w, http.StatusOK, "Password reset link sent to your mail", nil)
}

func (a *API) handleCompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	if err := firstError(
		checkRequired("email", req.Email),
		checkRequired("token", req.Token),
		checkPassword("password", req.Password),
	); err != nil {
		respondError(w, r, a.logger, err)
		return
	}

	user, err := a.identity.CompletePasswordReset(r.Context(), strings.TrimSpace(req.Email), req.Token, req.Password)
	if err != nil {
		respondError(w, r, a.logger, err)
		return
	}
	respondOK(w, http.StatusCreated, "Password changed successfully", user)
}
