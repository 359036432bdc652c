package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
//
// Layout (big endian): MsgType u8 | flags u16 | optional fields in flag order.
// Strings and byte slices are prefixed with their u32 length, lists with their u32
// element count.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey    uint16 = 1 << 0
	hasValue  uint16 = 1 << 1
	hasCount  uint16 = 1 << 2
	hasKeys   uint16 = 1 << 3
	hasValues uint16 = 1 << 4
	hasOk     uint16 = 1 << 5
	hasErr    uint16 = 1 << 6
	hasCode   uint16 = 1 << 7
	hasMeta   uint16 = 1 << 8
)

const headerSize = 3 // MsgType + flags

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Name() string { return NameBinary }

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	w := writer{buf: make([]byte, headerSize, totalSize)}

	// Write message type
	w.buf[0] = byte(msg.MsgType)

	// Initialize flags
	var flags uint16 = 0

	if msg.Key != "" {
		flags |= hasKey
		w.bytes([]byte(msg.Key))
	}

	if msg.Value != nil {
		flags |= hasValue
		w.bytes(msg.Value)
	}

	if msg.Count > 0 {
		flags |= hasCount
		w.buf = binary.BigEndian.AppendUint64(w.buf, msg.Count)
	}

	if msg.Keys != nil {
		flags |= hasKeys
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(msg.Keys)))
		for _, k := range msg.Keys {
			w.bytes([]byte(k))
		}
	}

	if msg.Values != nil {
		flags |= hasValues
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(msg.Values)))
		for _, v := range msg.Values {
			w.bytes(v)
		}
	}

	if msg.Ok {
		flags |= hasOk
		w.buf = append(w.buf, 1)
	}

	if msg.Err != "" {
		flags |= hasErr
		w.bytes([]byte(msg.Err))
	}

	if msg.Code != store.RetCSuccess {
		flags |= hasCode
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(msg.Code))
	}

	if msg.Meta != nil {
		flags |= hasMeta
		w.bytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:3], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := binary.BigEndian.Uint16(data[1:3])
	r := reader{data: data, pos: headerSize}

	// Read Key if present
	msg.Key = ""
	if flags&hasKey != 0 {
		key, err := r.bytes("key")
		if err != nil {
			return err
		}
		msg.Key = string(key)
	}

	// Read Value if present, an empty value is kept as empty (not nil) slice
	msg.Value = nil
	if flags&hasValue != 0 {
		value, err := r.bytes("value")
		if err != nil {
			return err
		}
		msg.Value = append(make([]byte, 0, len(value)), value...)
	}

	// Read Count if present
	msg.Count = 0
	if flags&hasCount != 0 {
		count, err := r.uint64("count")
		if err != nil {
			return err
		}
		msg.Count = count
	}

	// Read Keys if present
	msg.Keys = nil
	if flags&hasKeys != 0 {
		n, err := r.length("keys")
		if err != nil {
			return err
		}
		msg.Keys = make([]string, n)
		for i := range msg.Keys {
			key, err := r.bytes("keys")
			if err != nil {
				return err
			}
			msg.Keys[i] = string(key)
		}
	}

	// Read Values if present
	msg.Values = nil
	if flags&hasValues != 0 {
		n, err := r.length("values")
		if err != nil {
			return err
		}
		msg.Values = make([][]byte, n)
		for i := range msg.Values {
			value, err := r.bytes("values")
			if err != nil {
				return err
			}
			msg.Values[i] = append(make([]byte, 0, len(value)), value...)
		}
	}

	// Read Ok if present
	msg.Ok = false
	if flags&hasOk != 0 {
		if r.pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = data[r.pos] != 0
		r.pos += 1
	}

	// Read Err if present
	msg.Err = ""
	if flags&hasErr != 0 {
		errBytes, err := r.bytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(errBytes)
	}

	// Read Code if present
	msg.Code = store.RetCSuccess
	if flags&hasCode != 0 {
		code, err := r.uint64("code")
		if err != nil {
			return err
		}
		msg.Code = store.RetCode(code)
	}

	// Read Meta if present
	msg.Meta = nil
	if flags&hasMeta != 0 {
		meta, err := r.bytes("meta")
		if err != nil {
			return err
		}
		msg.Meta = append(make([]byte, 0, len(meta)), meta...)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	// Add sizes for fields that require length encoding
	if msg.Key != "" {
		size += 4 + len(msg.Key) // 4 bytes for length + key string
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value) // 4 bytes for length + value bytes
	}
	if msg.Count > 0 {
		size += 8 // uint64
	}
	if msg.Keys != nil {
		size += 4
		for _, k := range msg.Keys {
			size += 4 + len(k)
		}
	}
	if msg.Values != nil {
		size += 4
		for _, v := range msg.Values {
			size += 4 + len(v)
		}
	}
	if msg.Ok {
		size += 1 // 1 byte for boolean
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}
	if msg.Code != store.RetCSuccess {
		size += 8 // uint64
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta) // 4 bytes for length + meta bytes
	}

	return size
}

// writer appends length prefixed fields to a buffer
type writer struct {
	buf []byte
}

func (w *writer) bytes(b []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// reader reads length prefixed fields with bounds checks
type reader struct {
	data []byte
	pos  int
}

func (r *reader) length(field string) (int, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	// every element needs at least its own length prefix
	if n > len(r.data)-r.pos {
		return 0, fmt.Errorf("data too short for %s data", field)
	}
	return n, nil
}

// bytes returns a sub slice of the input, callers copy if they keep it
func (r *reader) bytes(field string) ([]byte, error) {
	n, err := r.length(field)
	if err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint64(field string) (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}
