// Package fiberstackclient is a client for the snapshot store served by
// fiberstack.Server.
package fiberstackclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
	"github.com/DataExMachina-dev/fiberstack-go/internal/storeapi"
)

const (
	defaultURL = "http://127.0.0.1:7390"

	ENV_URL = "FIBERSTACK_URL"
)

// Entry describes one stored snapshot file.
type Entry = persist.Entry

// Document is a stored snapshot.
type Document = persist.Document

// Client talks to a snapshot store.
type Client struct {
	conn   *grpc.ClientConn
	client storeapi.SnapshotStoreClient
}

// NewClient connects to the store at rawURL, an http:// or https:// URL. An
// empty rawURL selects the FIBERSTACK_URL environment variable, or
// http://127.0.0.1:7390.
//
// Close() needs to be called on the client when it is no longer needed to
// release resources.
func NewClient(rawURL string, opts ...grpc.DialOption) (*Client, error) {
	if rawURL == "" {
		rawURL = defaultURL
		if u, ok := os.LookupEnv(ENV_URL); ok {
			rawURL = u
		}
	}
	target, creds, err := grpcTarget(rawURL)
	if err != nil {
		return nil, err
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	conn, err := grpc.Dial(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the snapshot store at %s: %w", rawURL, err)
	}
	return NewClientFromConn(conn), nil
}

// NewClientFromConn wraps an existing connection. Close closes conn.
func NewClientFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn, client: storeapi.NewSnapshotStoreClient(conn)}
}

// grpcTarget turns a URL into a gRPC target and the matching credentials.
func grpcTarget(rawURL string) (string, credentials.TransportCredentials, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}
	if parsed.Host == "" {
		return "", nil, fmt.Errorf("url %q has no host", rawURL)
	}
	switch parsed.Scheme {
	case "http":
		ip := net.ParseIP(parsed.Hostname())
		switch {
		case ip != nil && parsed.Port() != "":
			return net.JoinHostPort(ip.String(), parsed.Port()), insecure.NewCredentials(), nil
		case ip != nil:
			return ip.String(), insecure.NewCredentials(), nil
		default:
			return fmt.Sprintf("dns:///%s", parsed.Host), insecure.NewCredentials(), nil
		}
	case "https":
		return fmt.Sprintf("dns:///%s", parsed.Host), credentials.NewTLS(&tls.Config{}), nil
	default:
		return "", nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}
}

// Close closes the client's network connection.
func (c *Client) Close() {
	_ /* err */ = c.conn.Close()
}

// Info describes the serving process.
type Info struct {
	Fingerprint string `json:"fingerprint"`
	Pid         int    `json:"pid"`
	StartTime   string `json:"startTime"`
	BaseDir     string `json:"baseDir"`
	Compression string `json:"compression"`
	BinaryHash  string `json:"binaryHash,omitempty"`
}

// Info returns information about the store.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	s, err := c.client.Info(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("failed to get store info: %w", err)
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode store info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode store info: %w", err)
	}
	return &info, nil
}

// ListSnapshots lists the stored snapshots, only those stored under
// identifier unless it is empty.
func (c *Client) ListSnapshots(ctx context.Context, identifier string) ([]Entry, error) {
	lv, err := c.client.ListSnapshots(ctx, wrapperspb.String(identifier))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return storeapi.DecodeEntries(lv)
}

// GetSnapshot returns the document stored at path, as found in Entry.Path.
func (c *Client) GetSnapshot(ctx context.Context, path string) (*Document, error) {
	s, err := c.client.GetSnapshot(ctx, wrapperspb.String(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", path, err)
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &doc, nil
}

// Download copies the stored file at path to w as is, compressed or not. It
// returns the number of bytes written.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	stream, err := c.client.DownloadSnapshot(ctx, wrapperspb.String(path))
	if err != nil {
		return 0, fmt.Errorf("failed to download snapshot %s: %w", path, err)
	}
	var n int64
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to download snapshot %s: %w", path, err)
		}
		m, err := w.Write(chunk.GetValue())
		n += int64(m)
		if err != nil {
			return n, fmt.Errorf("failed to write snapshot %s: %w", path, err)
		}
	}
}
