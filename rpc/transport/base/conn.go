package base

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/frame"
	"github.com/ValentinKolb/sockdev/rpc/serializer"
	"github.com/ValentinKolb/sockdev/rpc/transport"
)

// echoPrefix starts the response to a request with an unstructured content type
const echoPrefix = "First 10 bytes of request: "

// echoLength is the number of request bytes echoed back
const echoLength = 10

// ConnState is the protocol state of a server connection
type ConnState uint8

const (
	StateAwaitHeaderLen ConnState = iota
	StateAwaitHeader
	StateAwaitBody
	StateDispatch
	StateAwaitResult
	StateRespond
	StateClosed
)

// String returns string representation of the state
func (s ConnState) String() string {
	switch s {
	case StateAwaitHeaderLen:
		return "await-header-len"
	case StateAwaitHeader:
		return "await-header"
	case StateAwaitBody:
		return "await-body"
	case StateDispatch:
		return "dispatch"
	case StateAwaitResult:
		return "await-result"
	case StateRespond:
		return "respond"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// reading returns true while the connection is interested in inbound bytes
func (s ConnState) reading() bool {
	return s <= StateAwaitBody
}

// serverConn is the state machine of one server connection. It does no I/O: the
// event loop feeds it received bytes and write completions and asks it for bytes
// to send. All methods are called from the event loop goroutine only.
type serverConn struct {
	id      string
	state   ConnState
	decoder *frame.Decoder
	handler transport.ServerHandleFunc

	// set on dispatch
	request *common.Request
	reply   transport.Reply
	codec   serializer.IRPCSerializer

	out     []byte
	written int
}

func newServerConn(id string, handler transport.ServerHandleFunc, maxContentLength uint32) *serverConn {
	return &serverConn{
		id:      id,
		state:   StateAwaitHeaderLen,
		decoder: frame.NewDecoder(maxContentLength),
		handler: handler,
	}
}

// onReadable feeds received bytes. Once a full request is decoded it is dispatched;
// bytes arriving after that are ignored. A returned error is fatal to the connection.
func (c *serverConn) onReadable(data []byte, now time.Time) error {
	if !c.state.reading() {
		return nil
	}

	c.decoder.Feed(data)
	f, err := c.decoder.Next()
	if err != nil {
		return err
	}
	if f == nil {
		c.state = decodeState(c.decoder.Stage())
		return nil
	}

	c.state = StateDispatch
	return c.dispatch(f, now)
}

// dispatch builds the reply for a decoded request frame
func (c *serverConn) dispatch(f *frame.Frame, now time.Time) error {
	codec, ok := serializer.ForContentType(f.Header.ContentType)
	if !ok {
		echo := make([]byte, 0, len(echoPrefix)+echoLength)
		echo = append(echo, echoPrefix...)
		echo = append(echo, f.Payload[:min(len(f.Payload), echoLength)]...)
		return c.respondRaw(echo, serializer.ContentTypeBinary, serializer.EncodingBinary)
	}
	c.codec = codec

	req := &common.Request{}
	if err := codec.Deserialize(f.Payload, req); err != nil {
		return c.respond(common.NewErrorResponse(fmt.Sprintf("invalid request: %v", err)))
	}
	c.request = req

	reply := c.handler(c.id, req)
	if reply == nil {
		return c.respond(common.NewErrorResponse("no reply"))
	}
	c.reply = reply
	c.state = StateAwaitResult
	return c.poll(now)
}

// poll checks the pending reply and prepares the response once available
func (c *serverConn) poll(now time.Time) error {
	if c.state != StateAwaitResult {
		return nil
	}
	resp, ok := c.reply.Poll(now)
	if !ok {
		return nil
	}
	return c.respond(resp)
}

// respond encodes a structured response with the request's serializer
func (c *serverConn) respond(resp *common.Response) error {
	payload, err := c.codec.Serialize(resp)
	if err != nil {
		// the result value could not be encoded, report that instead
		payload, err = c.codec.Serialize(common.NewErrorResponse(fmt.Sprintf("failed to encode response: %v", err)))
		if err != nil {
			return err
		}
	}
	return c.respondRaw(payload, c.codec.ContentType(), c.codec.ContentEncoding())
}

func (c *serverConn) respondRaw(payload []byte, contentType, contentEncoding string) error {
	out, err := frame.Encode(payload, contentType, contentEncoding)
	if err != nil {
		return err
	}
	c.out = out
	c.written = 0
	c.state = StateRespond
	return nil
}

// pendingWrite returns the bytes still to be sent
func (c *serverConn) pendingWrite() []byte {
	if c.state != StateRespond {
		return nil
	}
	return c.out[c.written:]
}

// onWritable records n sent bytes and reports whether the response is flushed,
// in which case the connection is done
func (c *serverConn) onWritable(n int) bool {
	if c.state != StateRespond {
		return false
	}
	c.written += n
	if c.written >= len(c.out) {
		c.state = StateClosed
		return true
	}
	return false
}

// close marks the connection as closed
func (c *serverConn) close() {
	c.state = StateClosed
}

// describe returns the request for log messages
func (c *serverConn) describe() string {
	if c.request == nil {
		return "-"
	}
	return fmt.Sprintf("%s %q", c.request.Action, c.request.Value)
}

func decodeState(s frame.Stage) ConnState {
	switch s {
	case frame.StageHeader:
		return StateAwaitHeader
	case frame.StagePayload:
		return StateAwaitBody
	default:
		return StateAwaitHeaderLen
	}
}
