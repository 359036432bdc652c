// Package serializer encodes and decodes the wire message (common.Message) of the
// RPC layer. Client and server must be configured with the same format.
//
// Formats (select one by name with NewSerializer):
//
//   - binary: the default. Layout: MsgType u8 | flags u16 | the fields marked in
//     flags, in flag order. Strings and byte slices are u32 length prefixed, Keys and
//     Values u32 count prefixed. Only present fields are written, so a typical get
//     request is a few bytes plus the key.
//
//   - json: human readable, useful to debug a server with the http transport.
//     Values are base64 encoded, message types are written by name.
//
//   - gob: Go's own format. Every message carries its type description, which makes
//     it the largest and slowest of the three (see the benchmarks).
//
// Decoding resets every field of the target message, so a Message can be reused.
//
// Thread Safety:
//
//	All serializers are stateless and safe for concurrent use.
//
// Usage:
//
//	s, err := serializer.NewSerializer(serializer.NameBinary)
//	data, err := s.Serialize(*common.NewGetRequest("user:1"))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(received, &resp)
package serializer
