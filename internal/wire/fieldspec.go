package wire

import (
	"fmt"
	"math"

	"github.com/behrlich/udi-agent/internal/udierr"
)

// Kind names the Go shape a field's CBOR value must decode to.
type Kind int

const (
	KindU64 Kind = iota
	KindU32
	KindU16
	KindI32
	KindBool
	KindBytes
	KindString
	// KindRaw marks a field whose shape is richer than a scalar (the state
	// response's "states" list of {tid, state} entries); validation
	// accepts it as-is and leaves interpretation to the caller.
	KindRaw
)

// FieldSpec names one expected field and the Kind its value must satisfy.
type FieldSpec struct {
	Name string
	Kind Kind
}

// requestFieldSpecs enumerates, per request type, the fields a request of
// that type must carry. Requests not listed here (state, init, suspend,
// resume, next_instruction) carry no fields.
var requestFieldSpecs = map[RequestType][]FieldSpec{
	ReqContinue:          {{"sig", KindU32}},
	ReqReadMemory:        {{"addr", KindU64}, {"len", KindU32}},
	ReqWriteMemory:       {{"addr", KindU64}, {"data", KindBytes}},
	ReqReadRegister:      {{"reg", KindU16}},
	ReqWriteRegister:     {{"reg", KindU16}, {"value", KindU64}},
	ReqCreateBreakpoint:  {{"addr", KindU64}},
	ReqInstallBreakpoint: {{"addr", KindU64}},
	ReqRemoveBreakpoint:  {{"addr", KindU64}},
	ReqDeleteBreakpoint:  {{"addr", KindU64}},
	ReqSingleStep:        {{"value", KindBool}},
}

// responseFieldSpecs enumerates, per request type, the fields a *valid*
// response to that request must carry. An error response is validated
// separately: it always carries exactly {"msg": KindString} regardless of
// reqType.
var responseFieldSpecs = map[RequestType][]FieldSpec{
	ReqReadMemory:      {{"data", KindBytes}},
	ReqReadRegister:    {{"value", KindU64}},
	ReqNextInstruction: {{"addr", KindU64}},
	ReqSingleStep:      {{"value", KindBool}},
	ReqState:           {{"states", KindRaw}},
	ReqInit:            {{"v", KindU32}, {"arch", KindU16}, {"mt", KindBool}, {"tid", KindU64}},
}

// eventFieldSpecs enumerates, per event type, the fields an event of that
// type must carry. Events not listed (thread_death, process_exec,
// single_step, process_cleanup) carry no fields.
var eventFieldSpecs = map[EventType][]FieldSpec{
	EventBreakpoint:   {{"addr", KindU64}},
	EventThreadCreate: {{"tid", KindU64}},
	EventProcessExit:  {{"code", KindI32}},
	EventProcessFork:  {{"pid", KindU32}},
	EventSignal:       {{"addr", KindU64}, {"sig", KindU32}},
	EventError:        {{"msg", KindString}},
}

// validateAndWiden checks fields against specs: every named field must be
// present and decode to its declared Kind, and no unlisted field may
// appear. Matching fields are replaced in-place with their narrowed Go
// type (e.g. uint64 -> uint32) so callers never re-check ranges.
func validateAndWiden(op string, specs []FieldSpec, fields map[string]any) error {
	if len(fields) != len(specs) {
		return udierr.New(op, udierr.ErrCodeProtocol,
			fmt.Sprintf("expected %d fields, got %d", len(specs), len(fields)))
	}
	for _, spec := range specs {
		raw, ok := fields[spec.Name]
		if !ok {
			return udierr.New(op, udierr.ErrCodeProtocol, "missing field "+spec.Name)
		}
		widened, err := widen(spec.Kind, raw)
		if err != nil {
			return udierr.New(op, udierr.ErrCodeProtocol,
				fmt.Sprintf("field %s: %s", spec.Name, err))
		}
		fields[spec.Name] = widened
	}
	return nil
}

func widen(kind Kind, raw any) (any, error) {
	switch kind {
	case KindU64:
		v, ok := asUint(raw)
		if !ok {
			return nil, fmt.Errorf("expected unsigned integer, got %T", raw)
		}
		return v, nil
	case KindU32:
		v, ok := asUint(raw)
		if !ok || v > math.MaxUint32 {
			return nil, fmt.Errorf("expected uint32, got %T", raw)
		}
		return uint32(v), nil
	case KindU16:
		v, ok := asUint(raw)
		if !ok || v > math.MaxUint16 {
			return nil, fmt.Errorf("expected uint16, got %T", raw)
		}
		return uint16(v), nil
	case KindI32:
		v, ok := asInt(raw)
		if !ok || v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("expected int32, got %T", raw)
		}
		return int32(v), nil
	case KindBool:
		v, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return v, nil
	case KindBytes:
		v, ok := raw.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected byte string, got %T", raw)
		}
		return v, nil
	case KindString:
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected text string, got %T", raw)
		}
		return v, nil
	case KindRaw:
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown field kind %d", kind)
	}
}

// asUint widens any CBOR-decoded unsigned-looking value to uint64. The
// cbor library decodes a positive integer into interface{} as uint64 and a
// negative one as int64; a negative value is never valid for an unsigned
// field.
func asUint(raw any) (uint64, bool) {
	switch v := raw.(type) {
	case uint64:
		return v, true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

// ValidateRequest checks a decoded request's fields against its type's
// field table, rejecting unknown request types outright.
func ValidateRequest(req *Request) error {
	if !req.Type.Valid() {
		return udierr.New("wire.ValidateRequest", udierr.ErrCodeUnknownRequest,
			fmt.Sprintf("unknown request type %d", req.Type))
	}
	return validateAndWiden("wire.ValidateRequest", requestFieldSpecs[req.Type], req.Fields)
}

// ValidateResponse checks a decoded response's fields against its status
// and request-type field table.
func ValidateResponse(resp *Response) error {
	if resp.Status == RespError {
		return validateAndWiden("wire.ValidateResponse", []FieldSpec{{"msg", KindString}}, resp.Fields)
	}
	return validateAndWiden("wire.ValidateResponse", responseFieldSpecs[resp.ReqType], resp.Fields)
}

// ValidateEvent checks a decoded event's fields against its type's field
// table.
func ValidateEvent(ev *Event) error {
	return validateAndWiden("wire.ValidateEvent", eventFieldSpecs[ev.Type], ev.Fields)
}
