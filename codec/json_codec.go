package codec

import (
	"encoding/json"

	"luci-rpc/message"
)

// JSONCodec uses encoding/json. ubus only speaks JSON, so this is the one
// codec the client ships with.
type JSONCodec struct{}

// Encode marshals v without HTML escaping; rule names and host hints may
// legitimately contain '<', '>' or '&'.
func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return message.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) ContentType() string {
	return "application/json"
}
