package main

import (
	"errors"
	"net/http"
)

type LoginPayload struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=72"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type MeResponse struct {
	Username string `json:"username"`
}

// loginHandler godoc
//
//	@Summary		Admin login
//	@Description	Exchanges the admin username and password for a bearer token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		LoginPayload	true	"Admin credentials"
//	@Success		200		{object}	TokenResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		429		{object}	error
//	@Failure		500		{object}	error
//	@Router			/auth/login [post]
func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if !app.config.admin.Check(payload.Username, payload.Password) {
		app.unauthorizedErrorResponse(w, r, errors.New("invalid admin credentials"))
		return
	}

	token, err := app.authenticator.GenerateToken(app.config.admin.Username)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("admin logged in", "username", payload.Username)

	if err := writeJSON(w, http.StatusOK, TokenResponse{Token: token}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// meHandler godoc
//
//	@Summary		Current admin
//	@Description	Returns the admin the bearer token was issued to.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	MeResponse
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/auth/me [get]
func (app *application) meHandler(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, MeResponse{Username: getAdminFromContext(r)}); err != nil {
		app.internalServerError(w, r, err)
	}
}
