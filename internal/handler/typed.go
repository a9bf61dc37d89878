package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/postbridge-go/internal/envelope"
)

// Typed builds an Async handler that decodes the payload into In.
//
// The payload is first validated against a JSON Schema inferred from In, so a
// peer sending the wrong shape gets no reply and the failure is reported as a
// handler error instead of reaching fn with zero values.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) (Async, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("infer input schema: %w", err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve input schema: %w", err)
	}

	return func(ctx context.Context, env *envelope.Envelope) (any, error) {
		var instance any
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &instance); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
		}

		if err := resolved.Validate(instance); err != nil {
			return nil, fmt.Errorf("validate payload: %w", err)
		}

		var in In
		if err := env.DecodeData(&in); err != nil {
			return nil, err
		}

		return fn(ctx, in)
	}, nil
}

// MustTyped is Typed for handlers whose input type is known to be inferable.
// It panics on failure, so it belongs in registration code that runs at startup.
func MustTyped[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Async {
	h, err := Typed(fn)
	if err != nil {
		panic(err)
	}

	return h
}
