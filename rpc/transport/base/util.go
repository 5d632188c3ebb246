package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/ValentinKolb/sockdev/rpc/frame"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// writeFrame writes an encoded frame to the connection:
//   - 2 bytes: header length (uint16, big endian)
//   - N bytes: json header
//   - M bytes: payload
func writeFrame(conn net.Conn, payload []byte, contentType, contentEncoding string) error {
	data, err := frame.Encode(payload, contentType, contentEncoding)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}

// readFrame reads from the connection until one complete frame is decoded
func readFrame(conn net.Conn, maxContentLength uint32) (*frame.Frame, error) {
	dec := frame.NewDecoder(maxContentLength)
	buf := make([]byte, readChunkSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			f, decErr := dec.Next()
			if decErr != nil {
				return nil, decErr
			}
			if f != nil {
				return f, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("connection closed while waiting for %s: %w", dec.Stage(), io.ErrUnexpectedEOF)
			}
			return nil, err
		}
	}
}

// isTimeout reports whether err is a deadline error
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
