// Package wire carries typed Go messages over gRPC as google.protobuf.Struct
// values, so services can be declared without generated code.
//
// Field names follow the json tags of the Go types. Ids travel as decimal
// strings; numbers must stay within float64's exact integer range.
package wire

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode turns v into a Struct via its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode fills v from s.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Unary builds a MethodDesc whose handler decodes Req, calls call and encodes
// the response. Interceptors see the typed request.
func Unary[Req, Resp any](service, method string, call func(srv any, ctx context.Context, req *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			req := new(Req)
			if err := Decode(in, req); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "malformed %s request: %v", method, err)
			}

			handler := func(ctx context.Context, r any) (any, error) {
				resp, err := call(srv, ctx, r.(*Req))
				if err != nil {
					return nil, err
				}
				return Encode(resp)
			}
			if interceptor == nil {
				return handler(ctx, req)
			}
			return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
		},
	}
}

// ServerStream is the typed send side of a server-streaming call.
type ServerStream[T any] struct {
	grpc.ServerStream
}

// Send encodes and writes one message.
func (s *ServerStream[T]) Send(v *T) error {
	msg, err := Encode(v)
	if err != nil {
		return err
	}
	return s.ServerStream.SendMsg(msg)
}

// ServerStreaming builds a StreamDesc for a call with one request and a
// stream of responses.
func ServerStreaming[Req, Resp any](method string, call func(srv any, req *Req, stream *ServerStream[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := &structpb.Struct{}
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			req := new(Req)
			if err := Decode(in, req); err != nil {
				return status.Errorf(codes.InvalidArgument, "malformed %s request: %v", method, err)
			}
			return call(srv, req, &ServerStream[Resp]{ServerStream: stream})
		},
	}
}

// Invoke performs a unary call.
func Invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, fullMethod string, req *Req, opts ...grpc.CallOption) (*Resp, error) {
	in, err := Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fullMethod, err)
	}
	out := &structpb.Struct{}
	if err := cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := Decode(out, resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fullMethod, err)
	}
	return resp, nil
}

// ClientStream is the typed receive side of a server-streaming call.
type ClientStream[T any] struct {
	grpc.ClientStream
}

// Recv reads one message. io.EOF marks the end of the stream.
func (s *ClientStream[T]) Recv() (*T, error) {
	out := &structpb.Struct{}
	if err := s.ClientStream.RecvMsg(out); err != nil {
		return nil, err
	}
	v := new(T)
	if err := Decode(out, v); err != nil {
		return nil, err
	}
	return v, nil
}

// OpenStream starts a server-streaming call and sends its single request.
func OpenStream[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, fullMethod string, req *Req, opts ...grpc.CallOption) (*ClientStream[Resp], error) {
	in, err := Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fullMethod, err)
	}
	stream, err := cc.NewStream(ctx, desc, fullMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ClientStream[Resp]{ClientStream: stream}, nil
}

// Unimplemented is the default reply of a method a server does not provide.
func Unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}
