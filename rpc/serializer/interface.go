package serializer

import (
	"fmt"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("serializer")

// IRPCSerializer is the interface for all Message Serializers.
// Client and server must use the same implementation, the formats are not compatible.
type IRPCSerializer interface {
	// Name returns the name of the format (binary, json, gob)
	Name() string
	// Serialize encodes a Message
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Fields not present in b are reset.
	Deserialize(b []byte, msg *common.Message) error
}

// Names of the available serializers
const (
	NameBinary = "binary"
	NameJSON   = "json"
	NameGOB    = "gob"
)

// NewSerializer returns the serializer with the given name
func NewSerializer(name string) (IRPCSerializer, error) {
	switch name {
	case NameBinary:
		return NewBinarySerializer(), nil
	case NameJSON:
		return NewJSONSerializer(), nil
	case NameGOB:
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s (expected one of %s, %s, %s)", name, NameBinary, NameJSON, NameGOB)
	}
}
