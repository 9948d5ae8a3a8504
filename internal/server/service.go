package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/pipeline"
)

const (
	ServiceName = "docparse.v1.DocumentService"

	// MaxTextChars bounds text sent to Classify and Extract.
	MaxTextChars = 200_000
)

// Processor is the slice of pipeline.Processor the service needs.
type Processor interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// DocumentServer is the unary surface of docparse.v1.DocumentService.
// Requests and responses are google.protobuf.Struct.
type DocumentServer interface {
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type DocumentService struct {
	proc       Processor
	classifier pipeline.Classifier
	extractor  pipeline.Extractor
	useModel   bool
	logger     *slog.Logger
}

// NewDocumentService wires the service. useModel is the default when a request omits use_model.
func NewDocumentService(proc Processor, cls pipeline.Classifier, ext pipeline.Extractor, useModel bool, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{proc: proc, classifier: cls, extractor: ext, useModel: useModel, logger: logger}
}

// Process runs the full pipeline on a server-side image path.
func (s *DocumentService) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := str(req, "image_path")
	label := str(req, "true_label")
	v := common.NewValidator().
		Field("image_path", path, common.Required).
		Field("true_label", label, common.DocumentCategory)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Warn("server.process.invalid", "request_id", common.RequestIDFromContext(ctx), "error", v.ErrorMessage())
		return nil, err
	}

	res, err := s.proc.Run(ctx, pipeline.Request{ImagePath: path, TrueLabel: label})
	if err != nil {
		s.logger.Error("server.process.failed", "request_id", common.RequestIDFromContext(ctx), "image_path", path, "error", err)
		return nil, common.ToStatus(err)
	}
	out, err := toStruct(res.Record)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	out.Fields["record_path"] = structpb.NewStringValue(res.RecordPath)
	return out, nil
}

// Classify labels raw text without OCR.
func (s *DocumentService) Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := str(req, "text")
	v := common.NewValidator().Field("text", text, common.Required, common.MaxLength(MaxTextChars))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	res := s.classifier.Classify(ctx, text, s.wantModel(req))
	out, err := toStruct(res)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return out, nil
}

// Extract pulls fields from raw text for a given document_type.
func (s *DocumentService) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := str(req, "text")
	label := str(req, "document_type")
	v := common.NewValidator().
		Field("text", text, common.Required, common.MaxLength(MaxTextChars)).
		Field("document_type", label, common.Required, common.DocumentCategory)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	category, _ := constants.ParseCategory(label)
	res := s.extractor.Extract(ctx, text, category, s.wantModel(req))
	res.Fields = res.Fields.Clone()
	out, err := toStruct(res)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return out, nil
}

func (s *DocumentService) wantModel(req *structpb.Struct) bool {
	if v, ok := req.GetFields()["use_model"]; ok {
		if b, ok := v.GetKind().(*structpb.Value_BoolValue); ok {
			return b.BoolValue
		}
	}
	return s.useModel
}

func str(req *structpb.Struct, key string) string {
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

// toStruct goes through JSON so struct tags decide the wire shape.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.WrapError(err, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, common.WrapError(err, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.WrapError(err, "encode response")
	}
	return out, nil
}

func processHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Process"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServer).Process(ctx, req.(*structpb.Struct))
	})
}

func classifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Classify"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServer).Classify(ctx, req.(*structpb.Struct))
	})
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Extract"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServer).Extract(ctx, req.(*structpb.Struct))
	})
}

// ServiceDesc describes docparse.v1.DocumentService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: processHandler},
		{MethodName: "Classify", Handler: classifyHandler},
		{MethodName: "Extract", Handler: extractHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docparse/v1/document.proto",
}

func RegisterDocumentServer(s grpc.ServiceRegistrar, srv DocumentServer) {
	s.RegisterService(&ServiceDesc, srv)
}
