package natsbus

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
)

func TestSessionErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantLost bool
	}{
		{name: "slowConsumer", err: nats.ErrSlowConsumer, wantLost: true},
		{name: "authorization", err: nats.ErrAuthorization, wantLost: false},
		{name: "other", err: errors.New("boom"), wantLost: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got error
			handler := sessionErrorHandler(func(err error) { got = err })
			handler(nil, nil, tt.err)

			if tt.wantLost {
				if !errors.Is(got, nats.ErrSlowConsumer) {
					t.Errorf("signalled %v, want ErrSlowConsumer", got)
				}
				return
			}
			if got != nil {
				t.Errorf("signalled %v, want nothing", got)
			}
		})
	}
}
