package wire

import (
	"bufio"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/behrlich/udi-agent/internal/udierr"
)

// encMode rejects nothing extra beyond the library defaults; it exists as
// a single shared mode so every encoder on the wire produces byte-identical
// framing for the same value.
var encMode = func() cbor.EncMode {
	m, err := cbor.EncOptions{}.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// decMode rejects indefinite-length items: every logical item on a UDI
// channel is a single definite-length array, so an indefinite-length item
// can only be a malformed or hostile peer.
var decMode = func() cbor.DecMode {
	m, err := cbor.DecOptions{
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Decoder is a pull-parser over a channel's byte stream: each call to
// DecodeRequest/DecodeResponse/DecodeEvent consumes exactly one logical
// CBOR item and never reads past it, so the next call sees the next item
// cleanly even though the channel is an unbounded concatenation of items.
type Decoder struct {
	br  *bufio.Reader
	dec *cbor.Decoder
}

// NewDecoder wraps r for pull-parsing. r is typically a transport.Channel's
// underlying *os.File.
func NewDecoder(r io.Reader) *Decoder {
	br := bufio.NewReader(r)
	return &Decoder{br: br, dec: decMode.NewDecoder(br)}
}

// DecodeRequest reads and validates the next request item. io.EOF is
// returned verbatim when the peer closed the channel before sending any
// bytes of a new item; callers on the request path treat that as a
// shutdown signal, not a protocol error.
func (d *Decoder) DecodeRequest() (*Request, error) {
	var req Request
	if err := d.dec.Decode(&req); err != nil {
		return nil, translateDecodeErr("wire.DecodeRequest", err)
	}
	if err := ValidateRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeResponse reads and validates the next response item. io.EOF here
// is always fatal: a response/events channel closing mid-session means the
// debugger has disconnected.
func (d *Decoder) DecodeResponse() (*Response, error) {
	var resp Response
	if err := d.dec.Decode(&resp); err != nil {
		return nil, translateDecodeErr("wire.DecodeResponse", err)
	}
	if err := ValidateResponse(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DecodeEvent reads and validates the next event item.
func (d *Decoder) DecodeEvent() (*Event, error) {
	var ev Event
	if err := d.dec.Decode(&ev); err != nil {
		return nil, translateDecodeErr("wire.DecodeEvent", err)
	}
	if err := ValidateEvent(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func translateDecodeErr(op string, err error) error {
	if err == io.EOF {
		return io.EOF
	}
	return udierr.New(op, udierr.ErrCodeProtocol, err.Error())
}

// Encoder writes request/response/event items as a concatenation of
// self-delimiting CBOR items, matching the decoder's pull-parser
// expectations on the peer end.
type Encoder struct {
	w   io.Writer
	enc *cbor.Encoder
}

// NewEncoder wraps w for framing. w is typically a transport.Channel's
// underlying *os.File; encoding does not buffer across calls so a partial
// write failure never leaves a half-written item for the next call to
// complete.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, enc: encMode.NewEncoder(w)}
}

// Encode* wrap the underlying write failure with udierr.Wrap rather than
// constructing a fresh udierr.NewFatal: Wrap preserves the original error
// chain (errors.As down through cbor's wrapping to the *os.PathError/
// syscall.Errno the FIFO write produced), which callers like
// internal/events rely on to recognize EPIPE as debugger disconnection
// rather than a generic I/O fault.
func (e *Encoder) EncodeRequest(req *Request) error {
	if err := e.enc.Encode(req); err != nil {
		return udierr.Wrap("wire.EncodeRequest", err)
	}
	return nil
}

func (e *Encoder) EncodeResponse(resp *Response) error {
	if err := e.enc.Encode(resp); err != nil {
		return udierr.Wrap("wire.EncodeResponse", err)
	}
	return nil
}

func (e *Encoder) EncodeEvent(ev *Event) error {
	if err := e.enc.Encode(ev); err != nil {
		return udierr.Wrap("wire.EncodeEvent", err)
	}
	return nil
}
