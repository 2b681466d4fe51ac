package repositories

import "context"

// FrameType distinguishes control text frames from binary media frames.
type FrameType int

const (
	TextFrame FrameType = iota + 1
	BinaryFrame
)

func (f FrameType) String() string {
	switch f {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// TransportHandler receives socket lifecycle callbacks. Callbacks must not
// block; exactly one of OnClose or OnError ends a socket's lifetime.
type TransportHandler interface {
	OnOpen()
	OnMessage(frameType FrameType, payload []byte)
	OnClose(code int, reason string)
	OnError(err error)
}

// Transport opens sockets. Open returns as soon as the attempt has started;
// the handshake outcome is reported through the handler.
type Transport interface {
	Open(ctx context.Context, endpoint string, handler TransportHandler) (Socket, error)
}

// Socket is one full-duplex connection. Send never blocks on the network.
type Socket interface {
	Send(frameType FrameType, payload []byte) error
	Close() error
}
