package push

import (
	"context"

	"firebase.google.com/go/v4/messaging"

	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/pkg/logger"
)

func deviceTokensKey(userID string) string {
	return "user:" + userID + ":devices"
}

// FCMDispatcher delivers push notifications through Firebase Cloud
// Messaging. Delivery is fire-and-forget: a push that cannot be sent is
// logged, never surfaced to the caller.
type FCMDispatcher struct {
	client *messaging.Client
	store  store.Store
}

func NewFCMDispatcher(client *messaging.Client, st store.Store) *FCMDispatcher {
	return &FCMDispatcher{
		client: client,
		store:  st,
	}
}

// RegisterDevice associates a device token with a user.
func (d *FCMDispatcher) RegisterDevice(ctx context.Context, userID, deviceToken string) error {
	_, err := d.store.SAdd(ctx, deviceTokensKey(userID), deviceToken)
	return err
}

// UnregisterDevice removes a device token, typically on logout.
func (d *FCMDispatcher) UnregisterDevice(ctx context.Context, userID, deviceToken string) error {
	return d.store.SRem(ctx, deviceTokensKey(userID), deviceToken)
}

// Notify sends a push to every registered device of the user. A dead token
// is dropped so it is not retried forever.
func (d *FCMDispatcher) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	tokens, err := d.store.SMembers(ctx, deviceTokensKey(userID))
	if err != nil {
		logger.Error("failed to list device tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	for _, token := range tokens {
		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		}
		if _, err := d.client.Send(ctx, msg); err != nil {
			if messaging.IsUnregistered(err) {
				if remErr := d.store.SRem(ctx, deviceTokensKey(userID), token); remErr != nil {
					logger.Error("failed to drop dead device token for user %s: %v", userID, remErr)
				}
				continue
			}
			logger.Error("failed to push to user %s: %v", userID, err)
		}
	}
}
