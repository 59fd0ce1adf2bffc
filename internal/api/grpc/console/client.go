package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errInvalidData is returned when the reply data is not valid JSON.
	errInvalidData = errors.New("reply data is not valid JSON")
)

// Client calls the Console service.
type Client struct {
	// conn is the underlying gRPC connection.
	conn *grpc.ClientConn
}

// Envelope is the decoded response of one call.
type Envelope struct {
	Status  string
	Data    json.RawMessage
	Message string
}

// Dial creates a client for the given address.
// Note: this uses insecure transport credentials; transport security is
// left to the network the appliance runs on.
func Dial(address string, opts ...grpc.DialOption) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial console service: %w", err)
	}

	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Call sends one request and decodes the envelope.
func (c *Client) Call(ctx context.Context, requestID, path string, payload any) (*Envelope, error) {
	req, err := encodeRequest(path, payload)
	if err != nil {
		return nil, err
	}

	if requestID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)
	}

	resp := new(structpb.Struct)
	if err = c.conn.Invoke(ctx, CallMethod, req, resp); err != nil {
		return nil, err //nolint:wrapcheck // Callers inspect the gRPC status.
	}

	return decodeEnvelope(resp)
}

// encodeRequest builds the request struct from a path and any JSON-shaped payload.
func encodeRequest(path string, payload any) (*structpb.Struct, error) {
	fields := map[string]any{FieldPath: path}

	if payload != nil {
		normalized, err := toJSONShape(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}

		fields[FieldPayload] = normalized
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	return req, nil
}

// decodeEnvelope converts a response struct into an Envelope.
func decodeEnvelope(resp *structpb.Struct) (*Envelope, error) {
	fields := resp.GetFields()

	env := &Envelope{
		Status:  fields[FieldStatus].GetStringValue(),
		Message: fields[FieldMessage].GetStringValue(),
	}

	env.Data = json.RawMessage("null")

	if text := fields[FieldData].GetStringValue(); text != "" {
		if !json.Valid([]byte(text)) {
			return nil, errInvalidData
		}

		env.Data = json.RawMessage(text)
	}

	return env, nil
}

// toJSONShape round-trips v through JSON so structpb only sees maps, slices and scalars.
func toJSONShape(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err //nolint:wrapcheck // Wrapped by the caller.
	}

	var shaped any
	if err = json.Unmarshal(data, &shaped); err != nil {
		return nil, err //nolint:wrapcheck // Wrapped by the caller.
	}

	return shaped, nil
}
