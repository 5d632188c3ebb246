package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/frame"
	"github.com/ValentinKolb/sockdev/rpc/serializer"
	"github.com/ValentinKolb/sockdev/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a server transport on a random local port
func startServer(t *testing.T, handler transport.ServerHandleFunc, wake <-chan struct{}) string {
	t.Helper()
	return startNamedServer(t, "test", handler, wake)
}

func startNamedServer(t *testing.T, device string, handler transport.ServerHandleFunc, wake <-chan struct{}) string {
	t.Helper()

	config := common.ServerConfig{
		DeviceName:               device,
		Endpoint:                 "127.0.0.1:0",
		SelectTimeoutMillisecond: 10,
		Transport: common.ServerTransportConfig{
			TCPConf:           common.TCPConf{TCPNoDelay: true},
			ReadTimeoutSecond: 5,
		},
	}

	srv := NewTCPServerTransport()
	srv.RegisterHandler(handler, wake)
	addr, err := srv.Bind(config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return addr.String()
}

func newClient(t *testing.T, endpoint string) transport.IRPCClientTransport {
	t.Helper()
	c := NewTCPClientTransport()
	require.NoError(t, c.Connect(common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			TCPConf:   common.TCPConf{TCPNoDelay: true},
			Endpoints: []string{endpoint},
		},
	}))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c transport.IRPCClientTransport, ser serializer.IRPCSerializer, req *common.Request) *common.Response {
	t.Helper()
	payload, err := ser.Serialize(req)
	require.NoError(t, err)

	f, err := c.Send(context.Background(), ser.ContentType(), ser.ContentEncoding(), payload)
	require.NoError(t, err)
	require.Equal(t, ser.ContentType(), f.Header.ContentType)

	resp := &common.Response{}
	require.NoError(t, ser.Deserialize(f.Payload, resp))
	return resp
}

func valueHandler(_ string, req *common.Request) transport.Reply {
	return transport.Ready(common.NewResultResponse("got " + req.Value))
}

func TestServerRoundTrip(t *testing.T) {
	c := newClient(t, startServer(t, valueHandler, nil))

	for _, ser := range []serializer.IRPCSerializer{serializer.NewJSONSerializer(), serializer.NewCBORSerializer()} {
		t.Run(ser.ContentType(), func(t *testing.T) {
			resp := send(t, c, ser, common.NewQueryRequest("ReadValue"))
			assert.Equal(t, "got ReadValue", resp.Result)
		})
	}
}

func TestServerConcurrentClients(t *testing.T) {
	c := newClient(t, startServer(t, valueHandler, nil))
	ser := serializer.NewJSONSerializer()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := fmt.Sprintf("v%d", i)
			payload, _ := ser.Serialize(common.NewQueryRequest(value))
			f, err := c.Send(context.Background(), ser.ContentType(), ser.ContentEncoding(), payload)
			if !assert.NoError(t, err) {
				return
			}
			resp := &common.Response{}
			assert.NoError(t, ser.Deserialize(f.Payload, resp))
			assert.Equal(t, "got "+value, resp.Result)
		}(i)
	}
	wg.Wait()
}

func TestServerDeferredReplyWake(t *testing.T) {
	wake := make(chan struct{}, 1)
	var mu sync.Mutex
	var result *common.Response

	handler := func(_ string, req *common.Request) transport.Reply {
		return transport.ReplyFunc(func(time.Time) (*common.Response, bool) {
			mu.Lock()
			defer mu.Unlock()
			return result, result != nil
		})
	}
	c := newClient(t, startServer(t, handler, wake))

	go func() {
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		result = common.NewResultResponse("late")
		mu.Unlock()
		wake <- struct{}{}
	}()

	start := time.Now()
	resp := send(t, c, serializer.NewJSONSerializer(), common.NewCommandRequest("Slow()"))
	assert.Equal(t, "late", resp.Result)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestServerBinaryEcho(t *testing.T) {
	c := newClient(t, startServer(t, valueHandler, nil))

	f, err := c.Send(context.Background(), "image/png", "binary", []byte("0123456789ABCDEF"))
	require.NoError(t, err)
	assert.Equal(t, serializer.ContentTypeBinary, f.Header.ContentType)
	assert.Equal(t, "First 10 bytes of request: 0123456789", string(f.Payload))
}

func TestServerSurvivesBrokenConnections(t *testing.T) {
	endpoint := startServer(t, valueHandler, nil)
	c := newClient(t, endpoint)

	// peer closes after a partial frame
	conn, err := net.Dial("tcp", endpoint)
	require.NoError(t, err)
	_, err = conn.Write([]byte{0x00})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// malformed header: the server closes this connection without a response
	header := []byte(`{"byteorder": "little"}`)
	data := binary.BigEndian.AppendUint16(nil, uint16(len(header)))
	data = append(data, header...)

	bad, err := net.Dial("tcp", endpoint)
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.Write(data)
	require.NoError(t, err)
	require.NoError(t, bad.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := bad.Read(make([]byte, 16))
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, io.EOF) || isReset(err), "unexpected error %v", err)

	// the loop keeps serving other clients
	resp := send(t, c, serializer.NewJSONSerializer(), common.NewInfoRequest())
	assert.Equal(t, "got ", resp.Result)
}

func TestServerHandlerPanicClosesOnlyThatConnection(t *testing.T) {
	handler := func(_ string, req *common.Request) transport.Reply {
		if req.Value == "boom" {
			panic("handler bug")
		}
		return valueHandler("", req)
	}
	c := newClient(t, startServer(t, handler, nil))
	ser := serializer.NewJSONSerializer()

	payload, _ := ser.Serialize(common.NewCommandRequest("boom"))
	_, err := c.Send(context.Background(), ser.ContentType(), ser.ContentEncoding(), payload)
	assert.Error(t, err)

	resp := send(t, c, ser, common.NewQueryRequest("still alive"))
	assert.Equal(t, "got still alive", resp.Result)
}

func TestClientResponseTimeout(t *testing.T) {
	never := func(string, *common.Request) transport.Reply {
		return transport.ReplyFunc(func(time.Time) (*common.Response, bool) { return nil, false })
	}
	endpoint := startServer(t, never, nil)

	c := NewTCPClientTransport()
	require.NoError(t, c.Connect(common.ClientConfig{
		TimeoutSecond: 0.1,
		Transport:     common.ClientTransportConfig{Endpoints: []string{endpoint}},
	}))

	ser := serializer.NewJSONSerializer()
	payload, _ := ser.Serialize(common.NewCommandRequest("Never()"))
	start := time.Now()
	_, err := c.Send(context.Background(), ser.ContentType(), ser.ContentEncoding(), payload)
	assert.True(t, errors.Is(err, transport.ErrResponseTimeout), "unexpected error %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientConnectErrors(t *testing.T) {
	c := NewTCPClientTransport()
	assert.Error(t, c.Connect(common.ClientConfig{}))

	_, err := c.Send(context.Background(), serializer.ContentTypeJSON, serializer.EncodingUTF8, []byte("{}"))
	assert.Error(t, err, "send before connect")

	// nothing listens on this port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := listener.Addr().String()
	require.NoError(t, listener.Close())

	require.NoError(t, c.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{endpoint}}}))
	_, err = c.Send(context.Background(), serializer.ContentTypeJSON, serializer.EncodingUTF8, []byte("{}"))
	assert.Error(t, err)
}

func TestServerStopClosesConnections(t *testing.T) {
	never := func(string, *common.Request) transport.Reply {
		return transport.ReplyFunc(func(time.Time) (*common.Response, bool) { return nil, false })
	}

	srv := NewTCPServerTransport()
	srv.RegisterHandler(never, nil)
	addr, err := srv.Bind(common.ServerConfig{DeviceName: "stop", Endpoint: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	c := newClient(t, addr.String())
	ser := serializer.NewJSONSerializer()
	payload, _ := ser.Serialize(common.NewCommandRequest("Never()"))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), ser.ContentType(), ser.ContentEncoding(), payload)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	select {
	case err := <-errCh:
		assert.Error(t, err, "open connection is closed on stop")
	case <-time.After(2 * time.Second):
		t.Fatal("client still blocked after server stop")
	}

	_, err = net.DialTimeout("tcp", addr.String(), 100*time.Millisecond)
	assert.Error(t, err, "listener is closed")
}

func TestFrameHelpersInterop(t *testing.T) {
	// a hand written client following the wire format
	endpoint := startServer(t, valueHandler, nil)
	conn, err := net.Dial("tcp", endpoint)
	require.NoError(t, err)
	defer conn.Close()

	data, err := frame.Encode([]byte(`{"action": "query", "value": "x"}`), serializer.ContentTypeJSON, serializer.EncodingUTF8)
	require.NoError(t, err)
	// write in two pieces to exercise partial reads on the server
	_, err = conn.Write(data[:5])
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = conn.Write(data[5:])
	require.NoError(t, err)

	raw, err := io.ReadAll(conn)
	require.NoError(t, err)

	dec := frame.NewDecoder(0)
	dec.Feed(raw)
	f, err := dec.Next()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.JSONEq(t, `{"result": "got x"}`, string(f.Payload))
}

func isReset(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func TestServerOpenConnectionsGaugeSharedByDeviceName(t *testing.T) {
	first := startNamedServer(t, "gauge-shared", valueHandler, nil)
	second := startNamedServer(t, "gauge-shared", valueHandler, nil)

	gauge := metrics.GetOrCreateGauge(`sockdev_connections_open{device="gauge-shared"}`, func() float64 { return -1 })
	waitGauge := func(want float64) {
		t.Helper()
		assert.Eventually(t, func() bool { return gauge.Get() == want }, 2*time.Second, 5*time.Millisecond,
			"gauge stuck at %v, want %v", gauge.Get(), want)
	}

	// idle connections stay open until a request arrives
	conn2, err := net.Dial("tcp", second)
	require.NoError(t, err)
	waitGauge(1)

	conn1, err := net.Dial("tcp", first)
	require.NoError(t, err)
	waitGauge(2)

	require.NoError(t, conn2.Close())
	require.NoError(t, conn1.Close())
	waitGauge(0)
}
