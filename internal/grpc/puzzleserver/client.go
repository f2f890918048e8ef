package puzzleserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed wrapper over a connection to PuzzleService
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEnvironment(ctx context.Context, req CreateEnvironmentRequest, opts ...grpc.CallOption) (CreateEnvironmentResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return CreateEnvironmentResponse{}, err
	}
	out, err := c.invoke(ctx, MethodCreateEnvironment, in, opts...)
	if err != nil {
		return CreateEnvironmentResponse{}, err
	}
	return createEnvironmentResponseFromStruct(out)
}

func (c *Client) Reset(ctx context.Context, req ResetRequest, opts ...grpc.CallOption) (ResetResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return ResetResponse{}, err
	}
	out, err := c.invoke(ctx, MethodReset, in, opts...)
	if err != nil {
		return ResetResponse{}, err
	}
	return resetResponseFromStruct(out)
}

func (c *Client) Step(ctx context.Context, req StepRequest, opts ...grpc.CallOption) (StepResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return StepResponse{}, err
	}
	out, err := c.invoke(ctx, MethodStep, in, opts...)
	if err != nil {
		return StepResponse{}, err
	}
	return stepResponseFromStruct(out)
}

func (c *Client) Render(ctx context.Context, req RenderRequest, opts ...grpc.CallOption) (RenderResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return RenderResponse{}, err
	}
	out, err := c.invoke(ctx, MethodRender, in, opts...)
	if err != nil {
		return RenderResponse{}, err
	}
	return renderResponseFromStruct(out)
}

func (c *Client) CloseEnvironment(ctx context.Context, envID string, opts ...grpc.CallOption) error {
	in, err := CloseEnvironmentRequest{EnvID: envID}.toStruct()
	if err != nil {
		return err
	}
	_, err = c.invoke(ctx, MethodCloseEnvironment, in, opts...)
	return err
}

func (c *Client) ListEnvironments(ctx context.Context, opts ...grpc.CallOption) (ListEnvironmentsResponse, error) {
	out, err := c.invoke(ctx, MethodListEnvironments, &structpb.Struct{}, opts...)
	if err != nil {
		return ListEnvironmentsResponse{}, err
	}
	return listEnvironmentsResponseFromStruct(out)
}
