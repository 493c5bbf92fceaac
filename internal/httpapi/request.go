// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"
)

// MaxBodyBytes caps the size of a request body.
const MaxBodyBytes = 64 << 10

// Transport error codes.
const (
	CodeMalformedBody = "HTTP_MALFORMED_BODY"
	CodeBodyTooLarge  = "HTTP_BODY_TOO_LARGE"
	CodeInvalidAction = "HTTP_INVALID_ACTION"
)

// Action names accepted in the "action" field.
const (
	ActionSignup   = "signup"
	ActionSignin   = "signin"
	ActionValidate = "validate"
	ActionSignout  = "signout"
)

// Request is a decoded auth request. Exactly one concrete type exists per
// action.
type Request interface {
	Action() string
	isRequest()
}

// SignupRequest creates an account.
type SignupRequest struct {
	CompanyID string
	Password  string
	FullName  string
}

// SigninRequest authenticates an existing account.
type SigninRequest struct {
	CompanyID string
	Password  string
}

// ValidateRequest resolves a session token to its account.
type ValidateRequest struct {
	Token string
}

// SignoutRequest revokes a session token.
type SignoutRequest struct {
	Token string
}

func (SignupRequest) Action() string   { return ActionSignup }
func (SigninRequest) Action() string   { return ActionSignin }
func (ValidateRequest) Action() string { return ActionValidate }
func (SignoutRequest) Action() string  { return ActionSignout }

func (SignupRequest) isRequest()   {}
func (SigninRequest) isRequest()   {}
func (ValidateRequest) isRequest() {}
func (SignoutRequest) isRequest()  {}

// envelope is the wire shape shared by every action.
type envelope struct {
	Action    string `json:"action"`
	CompanyID string `json:"company_id"`
	Password  string `json:"password"`
	FullName  string `json:"full_name"`
	Token     string `json:"token"`
}

// DecodeRequest reads the body of r into the Request for its action.
// Fields that don't belong to the action are ignored.
func DecodeRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer func() { _ = body.Close() }()

	dec := json.NewDecoder(body)
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, decodeError(err)
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after JSON object")
		}
		return nil, decodeError(err)
	}

	switch env.Action {
	case ActionSignup:
		return SignupRequest{CompanyID: env.CompanyID, Password: env.Password, FullName: env.FullName}, nil
	case ActionSignin:
		return SigninRequest{CompanyID: env.CompanyID, Password: env.Password}, nil
	case ActionValidate:
		return ValidateRequest{Token: env.Token}, nil
	case ActionSignout:
		return SignoutRequest{Token: env.Token}, nil
	default:
		return nil, oops.Code(CodeInvalidAction).
			With("action", env.Action).
			Errorf("unknown action")
	}
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return oops.Code(CodeBodyTooLarge).
			With("limit", tooLarge.Limit).
			Wrap(err)
	}
	return oops.Code(CodeMalformedBody).Wrap(err)
}
