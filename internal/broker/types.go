package broker

import (
	"context"
	"errors"

	"github.com/casualjim/chorus/events"
)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

var errHookRequired = errors.New("hook is required")
