package wire

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/riftduel/duelsync/pkg/core"
)

// Method names exposed by the replication service.
const (
	MethodPush    = "push"
	MethodPull    = "pull"
	MethodTrigger = "trigger"
)

// Frame types, following msgpack-rpc.
const (
	TypeRequest  = 0
	TypeResponse = 1
)

// Error codes carried in a response's error slot.
const (
	CodeInvalidParticipant    = "invalid_participant"
	CodeSerializationMismatch = "serialization_mismatch"
	CodeUnknownMethod         = "unknown_method"
	CodeUnknownEvent          = "unknown_event"
	CodeBadRequest            = "bad_request"
	CodeInternal              = "internal"
)

// ErrUnknownMethod is returned for a request naming a method nobody registered.
var ErrUnknownMethod = errors.New("unknown method")

// ErrBadRequest is returned for malformed frames or parameters.
var ErrBadRequest = errors.New("bad request")

// Error is the structured error slot of a response.
type Error struct {
	Code    string `msgpack:"code"`
	Message string `msgpack:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Code, e.Message)
}

// Unwrap maps the code back to the sentinel error so callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeInvalidParticipant:
		return core.ErrInvalidParticipant
	case CodeSerializationMismatch:
		return core.ErrSerializationMismatch
	case CodeUnknownEvent:
		return core.ErrUnknownEvent
	case CodeUnknownMethod:
		return ErrUnknownMethod
	case CodeBadRequest:
		return ErrBadRequest
	default:
		return nil
	}
}

// ErrorFrom classifies err into a wire error. nil stays nil.
func ErrorFrom(err error) *Error {
	if err == nil {
		return nil
	}
	var wireErr *Error
	if errors.As(err, &wireErr) {
		return wireErr
	}
	code := CodeInternal
	switch {
	case errors.Is(err, core.ErrInvalidParticipant):
		code = CodeInvalidParticipant
	case errors.Is(err, core.ErrSerializationMismatch):
		code = CodeSerializationMismatch
	case errors.Is(err, core.ErrUnknownEvent):
		code = CodeUnknownEvent
	case errors.Is(err, ErrUnknownMethod):
		code = CodeUnknownMethod
	case errors.Is(err, ErrBadRequest):
		code = CodeBadRequest
	}
	return &Error{Code: code, Message: err.Error()}
}

// Frame is either a request or a response.
type Frame struct {
	Type   int
	MsgID  uint32
	Method string
	Params []msgpack.RawMessage
	Error  *Error
	Result msgpack.RawMessage
}

// WriteRequest encodes [0, msgid, method, params].
func WriteRequest(enc *msgpack.Encoder, msgID uint32, method string, params ...any) error {
	if err := enc.EncodeArrayLen(4); err != nil {
		return err
	}
	if err := enc.EncodeInt(TypeRequest); err != nil {
		return err
	}
	if err := enc.EncodeUint32(msgID); err != nil {
		return err
	}
	if err := enc.EncodeString(method); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(params)); err != nil {
		return err
	}
	for _, p := range params {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode %s param: %w", method, err)
		}
	}
	return nil
}

// WriteResponse encodes [1, msgid, error, result]. A nil result is written as msgpack nil.
func WriteResponse(enc *msgpack.Encoder, msgID uint32, rpcErr *Error, result any) error {
	if err := enc.EncodeArrayLen(4); err != nil {
		return err
	}
	if err := enc.EncodeInt(TypeResponse); err != nil {
		return err
	}
	if err := enc.EncodeUint32(msgID); err != nil {
		return err
	}
	if rpcErr == nil {
		if err := enc.EncodeNil(); err != nil {
			return err
		}
	} else if err := enc.Encode(rpcErr); err != nil {
		return err
	}
	if result == nil {
		return enc.EncodeNil()
	}
	return enc.Encode(result)
}

// ReadFrame decodes one request or response.
func ReadFrame(dec *msgpack.Decoder) (Frame, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Frame{}, err
	}
	if n != 4 {
		return Frame{}, fmt.Errorf("frame has %d elements: %w", n, ErrBadRequest)
	}

	var f Frame
	if f.Type, err = dec.DecodeInt(); err != nil {
		return Frame{}, fmt.Errorf("frame type: %w", err)
	}
	if f.MsgID, err = dec.DecodeUint32(); err != nil {
		return Frame{}, fmt.Errorf("frame msgid: %w", err)
	}

	switch f.Type {
	case TypeRequest:
		if f.Method, err = dec.DecodeString(); err != nil {
			return Frame{}, fmt.Errorf("frame method: %w", err)
		}
		count, err := dec.DecodeArrayLen()
		if err != nil {
			return Frame{}, fmt.Errorf("frame params: %w", err)
		}
		for i := 0; i < count; i++ {
			raw, err := dec.DecodeRaw()
			if err != nil {
				return Frame{}, fmt.Errorf("frame param %d: %w", i, err)
			}
			f.Params = append(f.Params, raw)
		}
	case TypeResponse:
		rawErr, err := dec.DecodeRaw()
		if err != nil {
			return Frame{}, fmt.Errorf("frame error slot: %w", err)
		}
		f.Error = decodeErrorSlot(rawErr)
		if f.Result, err = dec.DecodeRaw(); err != nil {
			return Frame{}, fmt.Errorf("frame result: %w", err)
		}
	default:
		return Frame{}, fmt.Errorf("frame type %d: %w", f.Type, ErrBadRequest)
	}
	return f, nil
}

// decodeErrorSlot accepts the structured form and a bare string.
func decodeErrorSlot(raw msgpack.RawMessage) *Error {
	if IsNil(raw) {
		return nil
	}
	var structured Error
	if err := msgpack.Unmarshal(raw, &structured); err == nil && structured.Code != "" {
		return &structured
	}
	var text string
	if err := msgpack.Unmarshal(raw, &text); err == nil {
		return &Error{Code: CodeInternal, Message: text}
	}
	return &Error{Code: CodeInternal, Message: "undecodable error"}
}

// IsNil reports whether raw holds the msgpack nil value.
func IsNil(raw msgpack.RawMessage) bool {
	return len(raw) == 0 || (len(raw) == 1 && raw[0] == 0xc0)
}

// DecodeParticipant reads a positional participant id parameter.
func DecodeParticipant(raw msgpack.RawMessage) (core.ParticipantID, error) {
	var n int64
	if err := msgpack.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("participant id: %v: %w", err, ErrBadRequest)
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("participant %d: %w", n, core.ErrInvalidParticipant)
	}
	id := core.ParticipantID(n)
	if err := id.Validate(); err != nil {
		return 0, err
	}
	return id, nil
}
