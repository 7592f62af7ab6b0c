package riva

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// The Riva wire schema is described at runtime: only the fields bob sends or
// reads are declared, with the field numbers of the published Riva protos.
// Unknown fields in server replies are preserved and ignored.

const (
	methodStreamingRecognize = "/nvidia.riva.asr.RivaSpeechRecognition/StreamingRecognize"
	methodSynthesize         = "/nvidia.riva.tts.RivaSpeechSynthesis/Synthesize"
	methodSynthesisConfig    = "/nvidia.riva.tts.RivaSpeechSynthesis/GetRivaSynthesisConfig"

	// encodingLinearPCM is AudioEncoding.LINEAR_PCM.
	encodingLinearPCM = 1
)

var (
	msgStreamingRecognizeRequest  protoreflect.MessageDescriptor
	msgStreamingRecognizeResponse protoreflect.MessageDescriptor
	msgStreamingRecognitionConfig protoreflect.MessageDescriptor
	msgRecognitionConfig          protoreflect.MessageDescriptor
	msgSpeechContext              protoreflect.MessageDescriptor
	msgSynthesizeSpeechRequest    protoreflect.MessageDescriptor
	msgSynthesizeSpeechResponse   protoreflect.MessageDescriptor
	msgSynthesisConfigRequest     protoreflect.MessageDescriptor
	msgSynthesisConfigResponse    protoreflect.MessageDescriptor
)

func init() {
	asr := mustFile(asrFileProto())
	msgStreamingRecognizeRequest = asr.Messages().ByName("StreamingRecognizeRequest")
	msgStreamingRecognizeResponse = asr.Messages().ByName("StreamingRecognizeResponse")
	msgStreamingRecognitionConfig = asr.Messages().ByName("StreamingRecognitionConfig")
	msgRecognitionConfig = asr.Messages().ByName("RecognitionConfig")
	msgSpeechContext = asr.Messages().ByName("SpeechContext")

	tts := mustFile(ttsFileProto())
	msgSynthesizeSpeechRequest = tts.Messages().ByName("SynthesizeSpeechRequest")
	msgSynthesizeSpeechResponse = tts.Messages().ByName("SynthesizeSpeechResponse")
	msgSynthesisConfigRequest = tts.Messages().ByName("RivaSynthesisConfigRequest")
	msgSynthesisConfigResponse = tts.Messages().ByName("RivaSynthesisConfigResponse")
}

func mustFile(fd *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	file, err := protodesc.NewFile(fd, nil)
	if err != nil {
		panic(fmt.Sprintf("riva schema %s: %v", fd.GetName(), err))
	}
	return file
}

func asrFileProto() *descriptorpb.FileDescriptorProto {
	const pkg = ".nvidia.riva.asr."
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("riva/proto/riva_asr.proto"),
		Package: proto.String("nvidia.riva.asr"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SpeechContext"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeated(scalar("phrases", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
					scalar("boost", 4, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("RecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("encoding", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("sample_rate_hertz", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("language_code", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("max_alternatives", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("profanity_filter", 5, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					repeated(message("speech_contexts", 6, pkg+"SpeechContext")),
					scalar("audio_channel_count", 7, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("enable_automatic_punctuation", 11, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("model", 13, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("verbatim_transcripts", 14, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				},
			},
			{
				Name: proto.String("StreamingRecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					message("config", 1, pkg+"RecognitionConfig"),
					scalar("interim_results", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				},
			},
			{
				Name: proto.String("StreamingRecognizeRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					oneof(message("streaming_config", 1, pkg+"StreamingRecognitionConfig"), 0),
					oneof(scalar("audio_content", 2, descriptorpb.FieldDescriptorProto_TYPE_BYTES), 0),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("streaming_request")}},
			},
			{
				Name: proto.String("SpeechRecognitionAlternative"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("transcript", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("confidence", 2, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognitionResult"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeated(message("alternatives", 1, pkg+"SpeechRecognitionAlternative")),
					scalar("is_final", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("stability", 3, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
					scalar("channel_tag", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("audio_processed", 6, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognizeResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeated(message("results", 1, pkg+"StreamingRecognitionResult")),
				},
			},
		},
	}
}

func ttsFileProto() *descriptorpb.FileDescriptorProto {
	const pkg = ".nvidia.riva.tts."
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("riva/proto/riva_tts.proto"),
		Package: proto.String("nvidia.riva.tts"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SynthesizeSpeechRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("text", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("language_code", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("encoding", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("sample_rate_hz", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("voice_name", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("SynthesizeSpeechResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("audio", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				},
			},
			{
				Name: proto.String("RivaSynthesisConfigRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("model_name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("RivaSynthesisConfigResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeated(message("model_config", 1, pkg+"RivaSynthesisConfigResponse.Config")),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name: proto.String("Config"),
						Field: []*descriptorpb.FieldDescriptorProto{
							scalar("model_name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
							repeated(message("parameters", 2, pkg+"RivaSynthesisConfigResponse.Config.ParametersEntry")),
						},
						NestedType: []*descriptorpb.DescriptorProto{
							{
								Name: proto.String("ParametersEntry"),
								Field: []*descriptorpb.FieldDescriptorProto{
									scalar("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
									scalar("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
								},
								Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
							},
						},
					},
				},
			},
		},
	}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func message(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	fd := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	fd.TypeName = proto.String(typeName)
	return fd
}

func repeated(fd *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return fd
}

func oneof(fd *descriptorpb.FieldDescriptorProto, index int32) *descriptorpb.FieldDescriptorProto {
	fd.OneofIndex = proto.Int32(index)
	return fd
}

func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

// newMessage returns an empty dynamic message of desc.
func newMessage(desc protoreflect.MessageDescriptor) *dynamicpb.Message {
	return dynamicpb.NewMessage(desc)
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("riva schema: %s has no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	m.Set(field(m, name), protoreflect.ValueOfString(v))
}

func setInt32(m protoreflect.Message, name protoreflect.Name, v int32) {
	m.Set(field(m, name), protoreflect.ValueOfInt32(v))
}

func setBool(m protoreflect.Message, name protoreflect.Name, v bool) {
	m.Set(field(m, name), protoreflect.ValueOfBool(v))
}

func setFloat(m protoreflect.Message, name protoreflect.Name, v float32) {
	m.Set(field(m, name), protoreflect.ValueOfFloat32(v))
}

func setBytes(m protoreflect.Message, name protoreflect.Name, v []byte) {
	m.Set(field(m, name), protoreflect.ValueOfBytes(v))
}

func setMessage(m protoreflect.Message, name protoreflect.Name, v protoreflect.Message) {
	m.Set(field(m, name), protoreflect.ValueOfMessage(v))
}

func appendString(m protoreflect.Message, name protoreflect.Name, v string) {
	m.Mutable(field(m, name)).List().Append(protoreflect.ValueOfString(v))
}

func appendMessage(m protoreflect.Message, name protoreflect.Name, v protoreflect.Message) {
	m.Mutable(field(m, name)).List().Append(protoreflect.ValueOfMessage(v))
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(field(m, name)).String()
}

func getInt32(m protoreflect.Message, name protoreflect.Name) int32 {
	return int32(m.Get(field(m, name)).Int())
}

func getBool(m protoreflect.Message, name protoreflect.Name) bool {
	return m.Get(field(m, name)).Bool()
}

func getFloat(m protoreflect.Message, name protoreflect.Name) float32 {
	return float32(m.Get(field(m, name)).Float())
}

func getBytes(m protoreflect.Message, name protoreflect.Name) []byte {
	return m.Get(field(m, name)).Bytes()
}

func getMessage(m protoreflect.Message, name protoreflect.Name) protoreflect.Message {
	return m.Get(field(m, name)).Message()
}

// getList returns the elements of a repeated message field.
func getList(m protoreflect.Message, name protoreflect.Name) []protoreflect.Message {
	list := m.Get(field(m, name)).List()
	out := make([]protoreflect.Message, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, list.Get(i).Message())
	}
	return out
}

func getStrings(m protoreflect.Message, name protoreflect.Name) []string {
	list := m.Get(field(m, name)).List()
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, list.Get(i).String())
	}
	return out
}

func getStringMap(m protoreflect.Message, name protoreflect.Name) map[string]string {
	out := make(map[string]string)
	m.Get(field(m, name)).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}

func setStringMap(m protoreflect.Message, name protoreflect.Name, values map[string]string) {
	mp := m.Mutable(field(m, name)).Map()
	for k, v := range values {
		mp.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(v))
	}
}
