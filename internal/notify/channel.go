package notify

import "context"

// Channel delivers one text message to one already normalized phone number.
type Channel interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}
