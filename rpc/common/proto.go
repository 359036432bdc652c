package common

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key    string   `json:"key,omitempty"`    // Used for: key ops, DeletePrefix/List (prefix), Search (pattern), Backup (response: path)
	Value  []byte   `json:"value,omitempty"`  // Used for: Create, Update (request), Get (response)
	Count  uint64   `json:"count,omitempty"`  // Used for: List (request: limit), DeletePrefix, BatchSet (response: number of keys)
	Keys   []string `json:"keys,omitempty"`   // Used for: BatchSet (request), List (response)
	Values [][]byte `json:"values,omitempty"` // Used for: BatchSet (request), Search (response)

	// Response only fields
	Ok   bool          `json:"ok,omitempty"`   // Used for: Exists responses
	Err  string        `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
	Code store.RetCode `json:"code,omitempty"` // Return code of the failed operation (RetCSuccess if Err is empty)

	// Meta information
	Meta []byte `json:"meta,omitempty"` // JSON encoded db.Metadata (Info) or db.Stats (Stats)
}

// Error returns the error carried by a response as *store.Error, nil if there is none.
func (m *Message) Error() error {
	if m.Err == "" {
		return nil
	}
	code := m.Code
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// setErr stores err and its return code in the message.
func (m *Message) setErr(err error) *Message {
	if err != nil {
		m.Err = err.Error()
		m.Code = store.CodeOf(err)
		// a *store.Error prints its code, the message alone is enough on the wire
		if storeErr, ok := err.(*store.Error); ok {
			m.Err = storeErr.Msg
		}
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVGet,
		Value:   value,
	}
	return msg.setErr(err)
}

// NewExistsRequest creates a new Exists request
func NewExistsRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVExists,
		Key:     key,
	}
}

// NewExistsResponse creates a new Exists response
func NewExistsResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVExists,
		Ok:      ok,
	}
	return msg.setErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVInfo,
		Key:     key,
	}
}

// NewInfoResponse creates a new Info response, the metadata is sent as JSON in Meta
func NewInfoResponse(meta db.Metadata, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVInfo,
	}
	if err != nil {
		return msg.setErr(err)
	}
	b, jsonErr := json.Marshal(meta)
	if jsonErr != nil {
		return msg.setErr(jsonErr)
	}
	msg.Meta = b
	return msg
}

// NewCreateRequest creates a new Create request
func NewCreateRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVCreate,
		Key:     key,
		Value:   value,
	}
}

// NewCreateResponse creates a new Create response
func NewCreateResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVCreate}).setErr(err)
}

// NewUpdateRequest creates a new Update request
func NewUpdateRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVUpdate,
		Key:     key,
		Value:   value,
	}
}

// NewUpdateResponse creates a new Update response
func NewUpdateResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVUpdate}).setErr(err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVDelete}).setErr(err)
}

// NewDeletePrefixRequest creates a new DeletePrefix request
func NewDeletePrefixRequest(prefix string) *Message {
	return &Message{
		MsgType: MsgTKVDeletePrefix,
		Key:     prefix,
	}
}

// NewDeletePrefixResponse creates a new DeletePrefix response
func NewDeletePrefixResponse(count int, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDeletePrefix,
		Count:   uint64(count),
	}
	return msg.setErr(err)
}

// NewBatchSetRequest creates a new BatchSet request. Keys and values are sent as two
// slices of equal length.
func NewBatchSetRequest(pairs []db.Pair) *Message {
	keys := make([]string, len(pairs))
	values := make([][]byte, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
		values[i] = p.Value
	}
	return &Message{
		MsgType: MsgTKVBatchSet,
		Keys:    keys,
		Values:  values,
	}
}

// NewBatchSetResponse creates a new BatchSet response
func NewBatchSetResponse(count int, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVBatchSet,
		Count:   uint64(count),
	}
	return msg.setErr(err)
}

// Pairs returns the pairs of a BatchSet request
func (m *Message) Pairs() ([]db.Pair, error) {
	if len(m.Keys) != len(m.Values) {
		return nil, fmt.Errorf("batch has %d keys but %d values", len(m.Keys), len(m.Values))
	}
	pairs := make([]db.Pair, len(m.Keys))
	for i := range m.Keys {
		pairs[i] = db.Pair{Key: m.Keys[i], Value: m.Values[i]}
	}
	return pairs, nil
}

// NewListRequest creates a new List request (limit <= 0 = all keys)
func NewListRequest(prefix string, limit int) *Message {
	msg := &Message{
		MsgType: MsgTKVList,
		Key:     prefix,
	}
	if limit > 0 {
		msg.Count = uint64(limit)
	}
	return msg
}

// NewListResponse creates a new List response
func NewListResponse(keys []string, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVList,
		Keys:    keys,
	}
	return msg.setErr(err)
}

// NewSearchRequest creates a new Search request
func NewSearchRequest(pattern string) *Message {
	return &Message{
		MsgType: MsgTKVSearch,
		Key:     pattern,
	}
}

// NewSearchResponse creates a new Search response
func NewSearchResponse(values [][]byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSearch,
		Values:  values,
	}
	return msg.setErr(err)
}

// NewCompactRequest creates a new Compact request
func NewCompactRequest() *Message {
	return &Message{MsgType: MsgTKVCompact}
}

// NewCompactResponse creates a new Compact response
func NewCompactResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVCompact}).setErr(err)
}

// NewBackupRequest creates a new Backup request
func NewBackupRequest() *Message {
	return &Message{MsgType: MsgTKVBackup}
}

// NewBackupResponse creates a new Backup response
func NewBackupResponse(path string, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVBackup,
		Key:     path,
	}
	return msg.setErr(err)
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{MsgType: MsgTKVStats}
}

// NewStatsResponse creates a new Stats response, the stats are sent as JSON in Meta
func NewStatsResponse(stats db.Stats, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVStats,
	}
	if err != nil {
		return msg.setErr(err)
	}
	b, jsonErr := json.Marshal(stats)
	if jsonErr != nil {
		return msg.setErr(jsonErr)
	}
	msg.Meta = b
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	return msg.setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
		Code:    store.RetCInternalError,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:        "success",
	MsgTError:          "error",
	MsgTKVGet:          "get",
	MsgTKVExists:       "exists",
	MsgTKVInfo:         "info",
	MsgTKVCreate:       "create",
	MsgTKVUpdate:       "update",
	MsgTKVDelete:       "delete",
	MsgTKVDeletePrefix: "deletePrefix",
	MsgTKVBatchSet:     "batchSet",
	MsgTKVList:         "list",
	MsgTKVSearch:       "search",
	MsgTKVCompact:      "compact",
	MsgTKVBackup:       "backup",
	MsgTKVStats:        "stats",
	MsgTCustom:         "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "unknown" {
		*t = MsgTUnknown
		return nil
	}
	for msgType, name := range msgTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}

	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Key-value read operations

	MsgTKVGet    // Get a value by key
	MsgTKVExists // Check if a key exists
	MsgTKVInfo   // Get the metadata of a key

	// Key-value write operations

	MsgTKVCreate       // Create a new key-value pair
	MsgTKVUpdate       // Update an existing key-value pair
	MsgTKVDelete       // Delete a key-value pair
	MsgTKVDeletePrefix // Delete all keys with a prefix
	MsgTKVBatchSet     // Create or overwrite many pairs

	// Query operations

	MsgTKVList   // List keys by prefix
	MsgTKVSearch // Search values by key pattern

	// Maintenance operations

	MsgTKVCompact // Compact the data file
	MsgTKVBackup  // Write a backup of the data file
	MsgTKVStats   // Get store statistics

	// Custom operations

	MsgTCustom // Custom operation type
)
