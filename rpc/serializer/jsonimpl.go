package serializer

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/kvd/rpc/common"
)

// NewJSONSerializer creates a serializer that writes messages as JSON objects.
// Values are base64 encoded, the message type is written by name (see common.MessageType).
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Name() string { return NameJSON }

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json: encode %s message: %w", msg.MsgType, err)
	}
	return b, nil
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// reset, json.Unmarshal keeps fields that are missing in b
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		Logger.Debugf("json: failed to decode %d bytes: %v", len(b), err)
		return fmt.Errorf("json: decode message: %w", err)
	}
	return nil
}
