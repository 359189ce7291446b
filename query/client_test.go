package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/componentregistry"
	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/types"
)

// inProcessTransport wires a client straight into an engine, converting
// engine errors to error envelopes the way the real transports do.
func inProcessTransport(engine *Engine) Transport {
	return func(ctx context.Context, request map[string]any) (map[string]any, error) {
		response, err := engine.Receive(ctx, request)
		if err != nil {
			return ErrorEnvelope(err), nil
		}
		return response, nil
	}
}

func newConnectedClient(t *testing.T, engine *Engine) *Client {
	t.Helper()

	client, err := NewClient(inProcessTransport(engine))
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	return client
}

func TestClientConnectSynthesizesProxies(t *testing.T) {
	engine, _ := newTestEngine(t)
	client := newConnectedClient(t, engine)

	root := client.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Application", root.Name())

	movie, err := client.GetComponent("Movie")
	require.NoError(t, err)
	assert.True(t, movie.IsEntity())

	_, err = movie.GetMethod("rename")
	require.NoError(t, err)
}

func TestClientConnectTwice(t *testing.T) {
	engine, _ := newTestEngine(t)
	client := newConnectedClient(t, engine)

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestClientSendBeforeConnect(t *testing.T) {
	engine, _ := newTestEngine(t)
	client, err := NewClient(inProcessTransport(engine))
	require.NoError(t, err)

	_, err = client.Send(context.Background(), Document{
		Receiver: map[string]any{"__component": "Application"},
		Method:   "greet",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotStarted)
}

func TestClientProxyMethodForwards(t *testing.T) {
	engine, _ := newTestEngine(t)
	client := newConnectedClient(t, engine)

	method, err := client.Root().GetMethod("greet")
	require.NoError(t, err)

	result, err := method.Call(context.Background(), client.Root(), []any{"world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)
}

func TestClientMergesMutatedComponents(t *testing.T) {
	engine, _ := newTestEngine(t)
	client := newConnectedClient(t, engine)

	movieClass, err := client.GetComponent("Movie")
	require.NoError(t, err)

	manager, ok := client.Registry().ManagerFor("Movie")
	require.True(t, ok)
	movie, err := manager.GetOrInstantiate(map[string]any{"id": "m1"}, false)
	require.NoError(t, err)

	rename, err := movieClass.GetMethod("rename")
	require.NoError(t, err)

	result, err := rename.Call(context.Background(), movie, []any{"Inception"})
	require.NoError(t, err)
	assert.Equal(t, "Inception", result)

	// The server reported the mutated entity; the client reconciled it
	// onto the same local instance.
	attr, err := movie.GetAttribute("title")
	require.NoError(t, err)
	value, err := attr.Value()
	require.NoError(t, err)
	assert.Equal(t, "Inception", value)
}

func TestClientRemoteErrorSurfacesCode(t *testing.T) {
	engine, _ := newTestEngine(t)
	client := newConnectedClient(t, engine)

	movieClass, err := client.GetComponent("Movie")
	require.NoError(t, err)

	manager, ok := client.Registry().ManagerFor("Movie")
	require.True(t, ok)
	movie, err := manager.GetOrInstantiate(map[string]any{"id": "m1"}, false)
	require.NoError(t, err)

	shout, err := movieClass.GetMethod("shout")
	require.NoError(t, err)

	_, err = shout.Call(context.Background(), movie, []any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestClientVersionMismatchSurfacesDistinctCode(t *testing.T) {
	engine, _ := newTestEngine(t)

	skewed := func(ctx context.Context, request map[string]any) (map[string]any, error) {
		request[VersionKey] = ProtocolVersion + 1
		response, err := engine.Receive(ctx, request)
		if err != nil {
			return ErrorEnvelope(err), nil
		}
		return response, nil
	}

	client, err := NewClient(Transport(skewed))
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrVersionMismatch)
}

func TestClientReceiverWithGetOnlyIdentifierTravelsAsReference(t *testing.T) {
	// A known entity receiver goes out as a reference stub, so an
	// identifier the server exposes get-only still addresses it.
	account := component.MustClass("Account")
	require.NoError(t, account.DeclareAttribute("id", component.AttributeOptions{
		Type:              "string",
		PrimaryIdentifier: true,
		Exposure:          component.Exposure{Get: component.Public()},
	}))
	require.NoError(t, account.DeclareAttribute("balance", component.AttributeOptions{
		Type:     "number?",
		Exposure: publicExposure(),
	}))
	require.NoError(t, account.DeclareMethod("deposit", component.MethodOptions{
		Exposure: component.Exposure{Call: component.Public()},
		Impl: func(_ context.Context, receiver *component.Component, args []any) (any, error) {
			amount, _ := args[0].(float64)
			attr, err := receiver.GetAttribute("balance")
			if err != nil {
				return nil, err
			}
			var current float64
			if attr.IsSet() {
				raw, err := attr.Value()
				if err != nil {
					return nil, err
				}
				current, _ = raw.(float64)
			}
			if _, err := attr.SetValue(current + amount); err != nil {
				return nil, err
			}
			return current + amount, nil
		},
	}))

	app := component.MustClass("Application")
	require.NoError(t, app.Provide(account))

	registry := componentregistry.NewRegistry()
	registry.MustRegister(app)
	registry.MustRegister(account)

	engine, err := NewEngine(registry, app)
	require.NoError(t, err)
	client := newConnectedClient(t, engine)

	proxy, err := client.GetComponent("Account")
	require.NoError(t, err)
	manager, ok := client.Registry().ManagerFor("Account")
	require.True(t, ok)
	acct, err := manager.GetOrInstantiate(map[string]any{"id": "a1"}, false)
	require.NoError(t, err)

	deposit, err := proxy.GetMethod("deposit")
	require.NoError(t, err)
	result, err := deposit.Call(context.Background(), acct, []any{float64(25)})
	require.NoError(t, err)
	assert.Equal(t, float64(25), result)

	// The mutated balance came back and merged onto the local instance.
	balance, err := acct.GetAttribute("balance")
	require.NoError(t, err)
	value, err := balance.Value()
	require.NoError(t, err)
	assert.Equal(t, float64(25), value)
}

func TestClientValidatorsTravelWithShapes(t *testing.T) {
	validators := types.NewValidatorRegistry()
	minLength, err := validators.Build("minLength", 3)
	require.NoError(t, err)

	user := component.MustClass("User")
	require.NoError(t, user.DeclareAttribute("name", component.AttributeOptions{
		Type:       "string",
		Exposure:   publicExposure(),
		Validators: []types.Validator{minLength},
	}))

	app := component.MustClass("Application")
	require.NoError(t, app.Provide(user))

	registry := componentregistry.NewRegistry()
	registry.MustRegister(app)
	registry.MustRegister(user)

	engine, err := NewEngine(registry, app)
	require.NoError(t, err)
	client := newConnectedClient(t, engine)

	proxy, err := client.GetComponent("User")
	require.NoError(t, err)
	inst, err := proxy.Instantiate()
	require.NoError(t, err)

	attr, err := inst.GetAttribute("name")
	require.NoError(t, err)

	// The validator was reconstituted from its wire source on the proxy.
	_, err = attr.SetValue("ab")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	_, err = attr.SetValue("abc")
	require.NoError(t, err)
}
