package notify

import (
	"context"
	"errors"
)

// Payload is the uniform send contract every channel transport
// receives. Transports never see anything channel-specific beyond it.
type Payload struct {
	UserID    string
	Channel   string
	Symbol    string
	Message   string
	SoundType string
}

// Transport sends one notification over one channel. Errors must be
// sanitized: no credential material, ever.
type Transport interface {
	Send(ctx context.Context, payload Payload) error
}

// permanentError marks a channel rejection that retrying cannot fix,
// such as revoked credentials.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether a send error is a permanent rejection
// that should skip the retry schedule.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// UIPublisher publishes in-app notification events for the UI push
// layer to deliver; both the toast and sound channels ride on it.
type UIPublisher interface {
	PublishToast(ctx context.Context, userID, symbol, message string) error
	PublishSound(ctx context.Context, userID, soundType string) error
}

// ToastTransport delivers toast notifications through the UI event bus
type ToastTransport struct {
	publisher UIPublisher
}

// NewToastTransport creates a toast transport
func NewToastTransport(publisher UIPublisher) *ToastTransport {
	return &ToastTransport{publisher: publisher}
}

// Send publishes a toast event for the user
func (t *ToastTransport) Send(ctx context.Context, payload Payload) error {
	return t.publisher.PublishToast(ctx, payload.UserID, payload.Symbol, payload.Message)
}

// SoundTransport delivers sound triggers through the UI event bus
type SoundTransport struct {
	publisher UIPublisher
}

// NewSoundTransport creates a sound transport
func NewSoundTransport(publisher UIPublisher) *SoundTransport {
	return &SoundTransport{publisher: publisher}
}

// Send publishes a sound event for the user
func (t *SoundTransport) Send(ctx context.Context, payload Payload) error {
	soundType := payload.SoundType
	if soundType == "" {
		soundType = "default"
	}
	return t.publisher.PublishSound(ctx, payload.UserID, soundType)
}
