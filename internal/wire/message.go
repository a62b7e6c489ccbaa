package wire

// Request is a single decoded request item: a request type tag plus a
// name-keyed field map. The on-wire encoding is a 2-element CBOR array
// (type, fields), matching the original protocol's fixed-position framing.
type Request struct {
	_      struct{} `cbor:",toarray"`
	Type   RequestType
	Fields map[string]any
}

// Response is a single decoded response item: status, the request type it
// answers, and a name-keyed field map. The on-wire encoding is a 3-element
// CBOR array (status, reqType, fields).
type Response struct {
	_       struct{} `cbor:",toarray"`
	Status  ResponseType
	ReqType RequestType
	Fields  map[string]any
}

// Event is a single decoded event item: an event type tag, the thread it
// concerns (or SingleThreadID), and a name-keyed field map. The on-wire
// encoding is a 3-element CBOR array (type, tid, fields).
type Event struct {
	_      struct{} `cbor:",toarray"`
	Type   EventType
	TID    uint64
	Fields map[string]any
}

// ThreadStateEntry is one element of a state response's "states" field.
type ThreadStateEntry struct {
	TID   uint64      `cbor:"tid"`
	State ThreadState `cbor:"state"`
}

// NewErrorResponse builds the canonical error response for reqType: status
// RespError with a single "msg" field.
func NewErrorResponse(reqType RequestType, msg string) *Response {
	return &Response{
		Status:  RespError,
		ReqType: reqType,
		Fields:  map[string]any{"msg": msg},
	}
}

// NewValidResponse builds a successful response for reqType with the given
// fields (nil or empty for requests with no response payload).
func NewValidResponse(reqType RequestType, fields map[string]any) *Response {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Response{Status: RespValid, ReqType: reqType, Fields: fields}
}

// NewErrorEvent builds the canonical error event: type EventError with a
// single "msg" field, used when the runtime must report a publish failure
// before disabling itself.
func NewErrorEvent(tid uint64, msg string) *Event {
	return &Event{Type: EventError, TID: tid, Fields: map[string]any{"msg": msg}}
}
