package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/componentregistry"
	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/types"
	"github.com/layrjs/layr-sub008/wire"
)

// Transport ships one request envelope to a peer and returns its response
// envelope. Any request/response channel satisfies this shape; the
// transport packages provide HTTP, NATS, and in-process implementations.
type Transport func(ctx context.Context, request map[string]any) (map[string]any, error)

// Client drives the query protocol from the calling side. Connect performs
// the one-time introspection bootstrap, synthesizing local proxy classes
// whose methods forward through the transport; after that the proxies are
// used like ordinary components.
type Client struct {
	transport  Transport
	registry   *componentregistry.Registry
	validators *types.ValidatorRegistry
	logger     *slog.Logger

	root *component.Component

	serializer   *wire.Serializer
	deserializer *wire.Deserializer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithValidatorRegistry replaces the default validator registry used to
// reconstitute validators arriving with introspected shapes.
func WithValidatorRegistry(validators *types.ValidatorRegistry) ClientOption {
	return func(c *Client) { c.validators = validators }
}

// WithClientLogger replaces the default logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client over a transport.
func NewClient(transport Transport, opts ...ClientOption) (*Client, error) {
	if transport == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Client", "NewClient",
			"transport is required")
	}

	c := &Client{
		transport:    transport,
		registry:     componentregistry.NewRegistry(),
		serializer:   wire.NewSerializer(),
		deserializer: wire.NewDeserializer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.validators == nil {
		c.validators = types.NewValidatorRegistry()
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "query-client")
	}
	return c, nil
}

// Connect performs the introspection bootstrap: it fetches the remote root
// shape and synthesizes local proxy classes for it and everything it
// provides. Queries are expressed in terms of these local declarations, so
// Connect must complete before any other call.
func (c *Client) Connect(ctx context.Context) error {
	if c.root != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Client", "Connect", "bootstrap")
	}

	response, err := c.transport(ctx, NewRequest(Document{Method: IntrospectMethod}))
	if err != nil {
		return errors.Wrap(err, "Client", "Connect", "introspection transport")
	}
	if err := ErrorFromEnvelope(response); err != nil {
		return errors.Wrap(err, "Client", "Connect", "introspection")
	}

	shape, err := ShapeFromValue(response[ResultKey])
	if err != nil {
		return err
	}

	root, err := component.Unintrospect(shape, component.UnintrospectOptions{
		Validators:  c.validators,
		CallHandler: c.call,
	})
	if err != nil {
		return errors.Wrap(err, "Client", "Connect", "proxy synthesis")
	}

	if err := c.registerTree(root); err != nil {
		return err
	}
	c.root = root
	c.logger.Info("connected", "root", root.Name(), "components", len(c.registry.Names()))
	return nil
}

func (c *Client) registerTree(class *component.Component) error {
	if err := c.registry.Register(class); err != nil {
		return errors.Wrap(err, "Client", "Connect",
			fmt.Sprintf("registering proxy %q", class.Name()))
	}
	for _, provided := range class.Provided() {
		if err := c.registerTree(provided); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the synthesized proxy for the remote root component. Nil
// before Connect.
func (c *Client) Root() *component.Component { return c.root }

// Registry returns the client's registry of synthesized proxy classes and
// their identity managers.
func (c *Client) Registry() *componentregistry.Registry { return c.registry }

// GetComponent resolves a synthesized proxy class by name.
func (c *Client) GetComponent(name string) (*component.Component, error) {
	return c.registry.GetComponent(name)
}

// call backs every synthesized method stub: serialize receiver and
// arguments, ship the query, merge the response. Installed by Connect as
// the RemoteCallHandler. Known entity receivers travel as reference stubs:
// the far side already holds their state, and stubs carry identifiers
// regardless of set exposure, so get-only identifiers still address the
// entity.
func (c *Client) call(ctx context.Context, receiver *component.Component, method string, args []any) (any, error) {
	outbound := wire.SerializeOptions{AttributeFilter: wire.ExposedForSet}

	serializedReceiver, err := c.serializer.Serialize(receiver, wire.SerializeOptions{
		AttributeFilter:           wire.ExposedForSet,
		ReturnComponentReferences: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Send", "receiver serialization")
	}
	serializedArgs := make([]any, len(args))
	for i, arg := range args {
		serializedArgs[i], err = c.serializer.Serialize(arg, outbound)
		if err != nil {
			return nil, errors.Wrap(err, "Client", "Send",
				fmt.Sprintf("argument %d", i))
		}
	}

	return c.Send(ctx, Document{
		Receiver:  serializedReceiver,
		Method:    method,
		Arguments: serializedArgs,
	})
}

// Send ships an already-serialized query document and merges the response
// into the local graph: accompanying component payloads are deserialized
// before the result, so reference stubs inside the result resolve against
// already-reconciled instances. Returns the deserialized result.
func (c *Client) Send(ctx context.Context, doc Document) (any, error) {
	if c.root == nil {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "Client", "Send",
			"Connect must run before queries")
	}

	response, err := c.transport(ctx, NewRequest(doc))
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Send", "transport")
	}
	if err := ErrorFromEnvelope(response); err != nil {
		return nil, err
	}

	inbound := wire.DeserializeOptions{Components: c.registry}

	if raw, ok := response[ComponentsKey]; ok {
		payloads, ok := raw.([]any)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidPayload, "Client", "Send",
				fmt.Sprintf("components must be an array, got %T", raw))
		}
		for i, payload := range payloads {
			if _, err := c.deserializer.Deserialize(payload, inbound); err != nil {
				return nil, errors.Wrap(err, "Client", "Send",
					fmt.Sprintf("component payload %d", i))
			}
		}
	}

	result, err := c.deserializer.Deserialize(response[ResultKey], inbound)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Send", "result deserialization")
	}
	return result, nil
}
