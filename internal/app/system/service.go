package system

import "context"

// Service is a background component owned by the Manager: the notification
// listener, the schedulers and the rate limiter janitor. Start must return
// once the component is running; Stop must wait for it to wind down.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
