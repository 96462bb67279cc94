package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"jiranbackend/pkg/errors"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// Verify resolves a bearer credential to the owning user ID. An expired
// credential is distinguished from a malformed or forged one.
func (f *FirebaseAuthClient) Verify(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		if auth.IsIDTokenExpired(err) {
			return "", errors.ExpiredCredential(err)
		}
		return "", errors.InvalidCredential(err)
	}

	return result.UID, nil
}
