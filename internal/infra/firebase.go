// README: Firebase Admin SDK initialisation and token verifier; org and role come from custom claims.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"reposition/internal/types"
)

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier uses credentialsFile as the service-account JSON path when
// set, otherwise application-default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) Verify(ctx context.Context, idToken string) (types.Actor, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return types.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actorFromClaims(token.Claims)
}
