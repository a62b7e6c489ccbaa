package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	req := &Request{Type: ReqReadMemory, Fields: map[string]any{"addr": uint64(0x400000), "len": uint32(16)}}
	require.NoError(t, enc.EncodeRequest(req))

	dec := NewDecoder(&buf)
	got, err := dec.DecodeRequest()
	require.NoError(t, err)
	assert.Equal(t, ReqReadMemory, got.Type)
	assert.Equal(t, uint64(0x400000), got.Fields["addr"])
	assert.Equal(t, uint32(16), got.Fields["len"])
}

func TestMultipleItemsConcatenatedDecodeInOrder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.EncodeRequest(&Request{Type: ReqState, Fields: map[string]any{}}))
	require.NoError(t, enc.EncodeRequest(&Request{Type: ReqContinue, Fields: map[string]any{"sig": uint32(0)}}))

	dec := NewDecoder(&buf)
	first, err := dec.DecodeRequest()
	require.NoError(t, err)
	assert.Equal(t, ReqState, first.Type)

	second, err := dec.DecodeRequest()
	require.NoError(t, err)
	assert.Equal(t, ReqContinue, second.Type)
}

func TestDecodeRequestEmptyStreamReturnsEOF(t *testing.T) {
	dec := NewDecoder(&bytes.Buffer{})
	_, err := dec.DecodeRequest()
	assert.ErrorIs(t, err, io.EOF)
}

func TestResponseRoundTripError(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	resp := NewErrorResponse(ReqReadMemory, "no such breakpoint")
	require.NoError(t, enc.EncodeResponse(resp))

	dec := NewDecoder(&buf)
	got, err := dec.DecodeResponse()
	require.NoError(t, err)
	assert.Equal(t, RespError, got.Status)
	assert.Equal(t, "no such breakpoint", got.Fields["msg"])
}

func TestResponseMissingFieldFailsValidation(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	bad := &Response{Status: RespValid, ReqType: ReqReadRegister, Fields: map[string]any{}}
	require.NoError(t, enc.EncodeResponse(bad))

	dec := NewDecoder(&buf)
	_, err := dec.DecodeResponse()
	assert.Error(t, err)
}

func TestEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	ev := &Event{Type: EventBreakpoint, TID: 7, Fields: map[string]any{"addr": uint64(0xdead)}}
	require.NoError(t, enc.EncodeEvent(ev))

	dec := NewDecoder(&buf)
	got, err := dec.DecodeEvent()
	require.NoError(t, err)
	assert.Equal(t, EventBreakpoint, got.Type)
	assert.Equal(t, uint64(7), got.TID)
	assert.Equal(t, uint64(0xdead), got.Fields["addr"])
}

func TestUnknownFieldNameRejected(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	req := &Request{Type: ReqContinue, Fields: map[string]any{"sig": uint32(0), "extra": "nope"}}
	require.NoError(t, enc.EncodeRequest(req))

	dec := NewDecoder(&buf)
	_, err := dec.DecodeRequest()
	assert.Error(t, err)
}

func TestWriteMemoryRejectsNonBytesData(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	req := &Request{Type: ReqWriteMemory, Fields: map[string]any{"addr": uint64(1), "data": uint64(5)}}
	require.NoError(t, enc.EncodeRequest(req))

	dec := NewDecoder(&buf)
	_, err := dec.DecodeRequest()
	assert.Error(t, err)
}

func TestRegisterValidForArch(t *testing.T) {
	assert.True(t, RegX86EAX.ValidFor(ArchX86))
	assert.False(t, RegX86EAX.ValidFor(ArchX86_64))
	assert.True(t, RegX86_64RAX.ValidFor(ArchX86_64))
	assert.False(t, RegX86_64RAX.ValidFor(ArchX86))
}

func TestFloatingPointRegisterDetection(t *testing.T) {
	assert.True(t, RegX86ST0.IsFloatingPoint())
	assert.True(t, RegX86_64XMM15.IsFloatingPoint())
	assert.False(t, RegX86_64RAX.IsFloatingPoint())
}
