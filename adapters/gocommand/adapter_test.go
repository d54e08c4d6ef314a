package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type revokeMessage struct {
	LinkID string
}

func (revokeMessage) Type() string { return "bankfeed.command.credentials.revoke" }

type metadataQueryMessage struct {
	LinkID string
}

func (metadataQueryMessage) Type() string { return "bankfeed.query.credentials.metadata" }

type untypedMessage struct{}

func (untypedMessage) Type() string { return "" }

type rejectedMessage struct{}

func (rejectedMessage) Type() string { return "bankfeed.command.rejected" }

func (rejectedMessage) Validate() error { return errors.New("invalid payload") }

type queuedScanMessage struct{}

func (queuedScanMessage) Type() string { return "bankfeed.command.refresh.scan" }

type metadataQuerier struct{}

func (metadataQuerier) Query(_ context.Context, msg metadataQueryMessage) (string, error) {
	return "metadata:" + msg.LinkID, nil
}

func TestValidateMessageContract(t *testing.T) {
	cases := []struct {
		name    string
		msg     any
		wantErr bool
	}{
		{name: "typed message passes", msg: revokeMessage{LinkID: "link_1"}},
		{name: "blank type fails", msg: untypedMessage{}, wantErr: true},
		{name: "failing Validate bubbles", msg: rejectedMessage{}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateMessageContract(tc.msg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected contract violation")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected valid message, got %v", err)
			}
		})
	}
}

func TestRegisterAndSubscribeCommandDispatch(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())

	var revoked []string
	cmd := command.CommandFunc[revokeMessage](func(_ context.Context, msg revokeMessage) error {
		revoked = append(revoked, msg.LinkID)
		return nil
	})

	subscription, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer subscription.Unsubscribe()

	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if err := Dispatch(context.Background(), revokeMessage{LinkID: "link_1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(revoked) != 1 || revoked[0] != "link_1" {
		t.Fatalf("expected one revoke for link_1, got %v", revoked)
	}
}

func TestRegisterAndSubscribeQueryRoundTrip(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())

	subscription, err := RegisterAndSubscribeQuery[metadataQueryMessage, string](adapter, metadataQuerier{})
	if err != nil {
		t.Fatalf("register and subscribe query: %v", err)
	}
	defer subscription.Unsubscribe()

	result, err := Query[metadataQueryMessage, string](context.Background(), metadataQueryMessage{LinkID: "link_9"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result != "metadata:link_9" {
		t.Fatalf("expected query result, got %q", result)
	}
}

func TestResolverRegistration(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())

	resolverRuns := 0
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		resolverRuns++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if adapter.HasResolver("missing") {
		t.Fatalf("did not expect unknown resolver")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if resolverRuns == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}
}

func TestQueueResolverMirrorsCommands(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	cmd := command.CommandFunc[queuedScanMessage](func(context.Context, queuedScanMessage) error { return nil })
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("bankfeed.command.refresh.scan"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestNilRegistryGuards(t *testing.T) {
	var adapter *RegistryAdapter
	if err := adapter.RegisterCommand(nil); err == nil {
		t.Fatalf("expected nil adapter to error")
	}
	if adapter.HasResolver("any") {
		t.Fatalf("expected nil adapter to report no resolvers")
	}
	if _, err := RegisterAndSubscribe[revokeMessage](adapter, nil); err == nil {
		t.Fatalf("expected registration on nil adapter to error")
	}
}
