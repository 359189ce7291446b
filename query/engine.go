package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/componentregistry"
	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/metric"
	"github.com/layrjs/layr-sub008/wire"
)

// Engine serves query requests against a component registry. It is safe
// for concurrent use: every request runs against its own registry fork.
type Engine struct {
	registry *componentregistry.Registry
	root     *component.Component

	roles   component.RoleResolver
	metrics *metric.Metrics
	logger  *slog.Logger
	name    string

	serializer   *wire.Serializer
	deserializer *wire.Deserializer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRoleResolver installs the authorization hook consulted for
// role-gated exposures.
func WithRoleResolver(resolver component.RoleResolver) EngineOption {
	return func(e *Engine) { e.roles = resolver }
}

// WithMetrics wires the engine into a metrics instance.
func WithMetrics(m *metric.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithName labels the engine in logs and metrics. Transports typically set
// their own name ("http", "nats").
func WithName(name string) EngineOption {
	return func(e *Engine) { e.name = name }
}

// NewEngine creates an engine over a registry. The root class answers the
// reserved introspection query; it must be registered.
func NewEngine(registry *componentregistry.Registry, root *component.Component, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Engine", "NewEngine",
			"registry is required")
	}
	if root == nil || !registry.HasComponent(root.Name()) {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Engine", "NewEngine",
			"root component must be registered")
	}

	e := &Engine{
		registry:     registry,
		root:         root,
		name:         "engine",
		serializer:   wire.NewSerializer(),
		deserializer: wire.NewDeserializer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "query-engine")
	}
	return e, nil
}

// Registry returns the registry the engine serves.
func (e *Engine) Registry() *componentregistry.Registry { return e.registry }

// Receive serves one request envelope and returns the response envelope.
// The request is validated, version-checked, deserialized against a fresh
// registry fork, exposure-checked, executed, and the result plus every
// entity the call mutated is serialized back. Errors are returned to the
// transport, which converts them with ErrorEnvelope.
func (e *Engine) Receive(ctx context.Context, request map[string]any) (map[string]any, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.QueryStarted()
		defer e.metrics.QueryFinished()
	}

	response, method, err := e.receive(ctx, request)

	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
			e.metrics.RecordError(string(errors.CodeOf(err)))
		}
		label := method
		if label == "" {
			label = "invalid"
		}
		e.metrics.RecordQuery(e.name, label, status, time.Since(start).Seconds())
	}
	if err != nil {
		e.logger.Warn("query failed",
			"method", method,
			"code", string(errors.CodeOf(err)),
			"error", err)
		return nil, err
	}

	e.logger.Debug("query served",
		"method", method,
		"duration", time.Since(start))
	return response, nil
}

func (e *Engine) receive(ctx context.Context, request map[string]any) (map[string]any, string, error) {
	if err := validateRequest(request); err != nil {
		return nil, "", err
	}
	if err := checkVersion(request[VersionKey]); err != nil {
		return nil, "", err
	}

	doc, err := ParseDocument(request[QueryKey])
	if err != nil {
		return nil, "", err
	}

	if doc.IsIntrospection() {
		response, err := e.introspect()
		return response, doc.Method, err
	}

	fork := e.registry.Fork()
	inbound := wire.DeserializeOptions{
		Components:      fork,
		AttributeFilter: wire.ExposedForSet,
	}
	if e.metrics != nil {
		inbound.EntityObserver = func(_ *component.Component, created bool) {
			outcome := "hit"
			if created {
				outcome = "created"
			}
			e.metrics.RecordEntityLookup(outcome)
		}
	}

	rawReceiver, err := e.deserializer.Deserialize(doc.Receiver, inbound)
	if err != nil {
		return nil, doc.Method, err
	}
	receiver, ok := rawReceiver.(*component.Component)
	if !ok {
		return nil, doc.Method, errors.WrapInvalid(errors.ErrInvalidQuery, "Engine", "Receive",
			fmt.Sprintf("receiver must be a component, got %T", rawReceiver))
	}

	args := make([]any, len(doc.Arguments))
	for i, rawArg := range doc.Arguments {
		arg, err := e.deserializer.Deserialize(rawArg, inbound)
		if err != nil {
			return nil, doc.Method, errors.Wrap(err, "Engine", "Receive",
				fmt.Sprintf("argument %d", i))
		}
		args[i] = arg
	}

	method, err := receiver.GetMethod(doc.Method)
	if err != nil {
		return nil, doc.Method, err
	}
	if err := method.Exposure().Check(ctx, component.OperationCall, doc.Method, e.roles); err != nil {
		return nil, doc.Method, err
	}

	// Snapshot after deserialization: entities materialized by the
	// payload itself are state the caller already has; only what the call
	// changes on top of that needs to travel back.
	snapshot := snapshotVersions(fork)
	if _, ok := snapshot[receiver]; !ok {
		snapshot[receiver] = receiver.Version()
	}
	// The snapshot keys are exactly the component instances the request
	// payload carried in.
	if e.metrics != nil {
		e.metrics.RecordComponents("in", len(snapshot))
	}

	result, err := method.Call(ctx, receiver, args)
	if err != nil {
		return nil, doc.Method, err
	}

	response, err := e.respond(fork, receiver, snapshot, result)
	return response, doc.Method, err
}

func (e *Engine) respond(fork *componentregistry.Registry, receiver *component.Component, snapshot map[*component.Component]uint64, result any) (map[string]any, error) {
	deps := wire.NewDependencySet()
	serializedResult, err := e.serializer.Serialize(result, wire.SerializeOptions{
		AttributeFilter:           wire.ExposedForGet,
		ReturnComponentReferences: true,
		ComponentDependencies:     deps,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "Receive", "result serialization")
	}

	mutated := mutatedComponents(fork, receiver, snapshot)
	payloads := make([]any, 0, len(mutated))
	for _, inst := range mutated {
		payload, err := e.serializer.Serialize(inst, wire.SerializeOptions{
			AttributeFilter: wire.ExposedForGet,
		})
		if err != nil {
			return nil, errors.Wrap(err, "Engine", "Receive",
				fmt.Sprintf("mutated component %q", inst.Name()))
		}
		payloads = append(payloads, payload)
	}
	if e.metrics != nil {
		e.metrics.RecordComponents("out", len(payloads))
	}

	response := map[string]any{ResultKey: serializedResult}
	if len(payloads) > 0 {
		response[ComponentsKey] = payloads
	}
	return response, nil
}

// introspect answers the reserved bootstrap query with the root shape.
func (e *Engine) introspect() (map[string]any, error) {
	shape, err := shapeToValue(e.root.Introspect())
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "Receive", "shape serialization")
	}
	return map[string]any{ResultKey: shape}, nil
}

func checkVersion(raw any) error {
	version, ok := asInt(raw)
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidQuery, "Engine", "Receive",
			fmt.Sprintf("version must be an integer, got %T", raw))
	}
	if version != ProtocolVersion {
		return errors.WrapInvalid(errors.ErrVersionMismatch, "Engine", "Receive",
			fmt.Sprintf("client declares version %d, server speaks %d", version, ProtocolVersion))
	}
	return nil
}

// asInt accepts the integer spellings a decoded envelope can carry.
func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

// snapshotVersions records the mutation counter of every entity a fork
// currently owns.
func snapshotVersions(fork *componentregistry.Registry) map[*component.Component]uint64 {
	snapshot := make(map[*component.Component]uint64)
	for _, manager := range fork.EntityManagers() {
		for _, inst := range manager.OwnEntities() {
			snapshot[inst] = inst.Version()
		}
	}
	return snapshot
}

// mutatedComponents returns every entity the call created or modified
// after the snapshot, in a deterministic order. The receiver is included
// when it mutated, entity or not.
func mutatedComponents(fork *componentregistry.Registry, receiver *component.Component, snapshot map[*component.Component]uint64) []*component.Component {
	var mutated []*component.Component
	seen := make(map[*component.Component]bool)

	names := make([]string, 0)
	managers := fork.EntityManagers()
	for name := range managers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entities := managers[name].OwnEntities()
		sort.Slice(entities, func(i, j int) bool {
			return entityOrder(entities[i]) < entityOrder(entities[j])
		})
		for _, inst := range entities {
			before, existed := snapshot[inst]
			if existed && inst.Version() == before {
				continue
			}
			mutated = append(mutated, inst)
			seen[inst] = true
		}
	}

	if !seen[receiver] && receiver.IsInstance() {
		if before, existed := snapshot[receiver]; existed && receiver.Version() != before {
			mutated = append(mutated, receiver)
		}
	}
	return mutated
}

func entityOrder(inst *component.Component) string {
	primary, ok := inst.PrimaryIdentifierAttribute()
	if !ok || !primary.IsSet() {
		return ""
	}
	value, err := primary.Value()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}

func shapeToValue(shape component.Shape) (any, error) {
	raw, err := json.Marshal(shape)
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// ShapeFromValue parses a wire shape value back into a Shape. The client
// uses it on introspection results.
func ShapeFromValue(value any) (component.Shape, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return component.Shape{}, errors.WrapInvalid(err, "Client", "Connect", "shape encoding")
	}
	var shape component.Shape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return component.Shape{}, errors.WrapInvalid(err, "Client", "Connect", "shape decoding")
	}
	return shape, nil
}
