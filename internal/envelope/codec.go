package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wagiedev/postbridge-go/internal/errors"
)

// DefaultPrefix marks frames that belong to the bridge.
const DefaultPrefix = "yzMsg:"

// Codec encodes envelopes as "<prefix><JSON>" frames and decodes them back.
//
// Frames without the prefix belong to some other consumer of the same channel.
type Codec struct {
	prefix string
}

// NewCodec creates a codec for the given prefix. An empty prefix selects DefaultPrefix.
func NewCodec(prefix string) *Codec {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Codec{prefix: prefix}
}

// Prefix returns the frame prefix.
func (c *Codec) Prefix() string { return c.prefix }

// Encode serializes the envelope and prepends the prefix.
func (c *Codec) Encode(env *Envelope) (string, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}

	return c.prefix + string(payload), nil
}

// Decode parses a frame.
//
// The boolean is false when the frame does not carry the prefix; such frames
// must be ignored without logging. A prefixed frame whose payload is not a JSON
// object with the expected field types yields a *errors.FrameDecodeError.
func (c *Codec) Decode(frame string) (*Envelope, bool, error) {
	payload, found := strings.CutPrefix(frame, c.prefix)
	if !found {
		return nil, false, nil
	}

	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, true, &errors.FrameDecodeError{
			RawData: payload,
			Err:     fmt.Errorf("payload is not a JSON object"),
		}
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, true, &errors.FrameDecodeError{
			RawData: payload,
			Err:     err,
		}
	}

	return &env, true, nil
}
