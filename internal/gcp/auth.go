package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrUnauthenticated is returned when a request carries no usable session token.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenVerifier is the subset of the Firebase auth client used to check sessions.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Authenticator resolves the signed-in user of an HTTP request from a
// Firebase ID token sent as "Authorization: Bearer <token>".
type Authenticator struct {
	verifier TokenVerifier
}

// NewAuthenticator wraps an existing verifier.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// NewFirebaseAuthenticator initializes the Firebase Admin SDK for projectID.
// credentialsFile may be empty to use application default credentials.
func NewFirebaseAuthenticator(ctx context.Context, projectID, credentialsFile string) (*Authenticator, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to initialize firebase")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return NewAuthenticator(client), nil
}

// Session is the signed-in user behind a request. Email is empty for
// anonymous sign-ins.
type Session struct {
	UID   string
	Email string
}

// Session verifies the request's bearer token.
// Anonymous Firebase users are accepted; they carry a UID like everyone else.
func (a *Authenticator) Session(r *http.Request) (*Session, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, ErrUnauthenticated
	}

	verified, err := a.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if verified.UID == "" {
		return nil, ErrUnauthenticated
	}

	session := &Session{UID: verified.UID}
	if email, ok := verified.Claims["email"].(string); ok {
		session.Email = email
	}
	return session, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
