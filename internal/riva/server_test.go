package riva

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// testRivaServer answers the Riva methods bob uses through an unknown-service
// handler, decoding requests with the same runtime schema as the client.
type testRivaServer struct {
	mu sync.Mutex

	responses []*dynamicpb.Message
	streamErr error

	receivedConfig protoreflect.Message
	audioChunks    int

	synthAudio    []byte
	synthErr      error
	synthRequests []protoreflect.Message

	models []map[string]string
}

func (s *testRivaServer) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	switch method {
	case methodStreamingRecognize:
		return s.recognize(stream)
	case methodSynthesize:
		req := newMessage(msgSynthesizeSpeechRequest)
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		s.mu.Lock()
		s.synthRequests = append(s.synthRequests, req)
		audio, synthErr := s.synthAudio, s.synthErr
		s.mu.Unlock()
		if synthErr != nil {
			return synthErr
		}
		resp := newMessage(msgSynthesizeSpeechResponse)
		setBytes(resp, "audio", audio)
		return stream.SendMsg(resp)
	case methodSynthesisConfig:
		req := newMessage(msgSynthesisConfigRequest)
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		resp := newMessage(msgSynthesisConfigResponse)
		for _, params := range s.models {
			model := newMessage(msgSynthesisConfigResponse.Messages().ByName("Config"))
			setString(model, "model_name", params["model"])
			setStringMap(model, "parameters", params)
			appendMessage(resp, "model_config", model)
		}
		return stream.SendMsg(resp)
	default:
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
}

func (s *testRivaServer) recognize(stream grpc.ServerStream) error {
	for {
		req := newMessage(msgStreamingRecognizeRequest)
		err := stream.RecvMsg(req)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		s.mu.Lock()
		if req.Has(field(req, "streaming_config")) {
			s.receivedConfig = getMessage(getMessage(req, "streaming_config"), "config")
		} else if len(getBytes(req, "audio_content")) > 0 {
			s.audioChunks++
		}
		s.mu.Unlock()
	}

	for _, resp := range s.responses {
		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
	return s.streamErr
}

func (s *testRivaServer) config() protoreflect.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedConfig
}

func startTestRivaServer(t *testing.T, srv *testRivaServer) (string, func()) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer(grpc.UnknownServiceHandler(srv.handle))
	go func() {
		_ = grpcServer.Serve(lis)
	}()

	shutdown := func() {
		grpcServer.Stop()
		_ = lis.Close()
	}
	return lis.Addr().String(), shutdown
}

func asrResponse(final bool, stability float32, transcript string) *dynamicpb.Message {
	alt := newMessage(msgStreamingRecognizeResponse.Fields().ByName("results").Message().Fields().ByName("alternatives").Message())
	setString(alt, "transcript", transcript)
	setFloat(alt, "confidence", 0.8)

	result := newMessage(msgStreamingRecognizeResponse.Fields().ByName("results").Message())
	appendMessage(result, "alternatives", alt)
	setBool(result, "is_final", final)
	setFloat(result, "stability", stability)

	resp := newMessage(msgStreamingRecognizeResponse)
	appendMessage(resp, "results", result)
	return resp
}
