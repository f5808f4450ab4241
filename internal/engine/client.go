package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/moby/moby/api/types/jsonstream"
	"github.com/moby/moby/client"

	"armsetup/internal/logging"
)

// Client wraps the Docker Engine API client.
type Client struct {
	cli *client.Client
}

// NewClient creates a client from the DOCKER_* environment, defaulting to
// the local engine socket.
func NewClient() (*Client, error) {
	cli, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Close releases the client transport.
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping checks the engine connection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx, client.PingOptions{})
	return err
}

// PullStream starts an image pull and returns the progress stream.
func (c *Client) PullStream(ctx context.Context, ref string) (io.ReadCloser, error) {
	resp, err := c.cli.ImagePull(ctx, ref, client.ImagePullOptions{})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Puller retrieves an image.
type Puller interface {
	Pull(ctx context.Context, ref string) error
}

// StreamSource opens an image pull progress stream.
type StreamSource interface {
	PullStream(ctx context.Context, ref string) (io.ReadCloser, error)
}

// ImagePuller pulls images and drains their progress stream, surfacing
// errors the engine reports in-band.
type ImagePuller struct {
	source  StreamSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewImagePuller constructs an ImagePuller. A zero timeout disables the
// deadline.
func NewImagePuller(source StreamSource, timeout time.Duration, logger *slog.Logger) *ImagePuller {
	return &ImagePuller{
		source:  source,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "image"),
	}
}

// pullMessage is one line of the engine's pull progress stream. Older engines
// also repeat the failure text in a top-level "error" field.
type pullMessage struct {
	jsonstream.Message
	ErrorText string `json:"error,omitempty"`
}

// Pull retrieves ref. Any transport or in-stream error fails the pull.
func (p *ImagePuller) Pull(ctx context.Context, ref string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	p.logger.InfoContext(ctx, "pulling image",
		logging.String(logging.FieldEventType, "image_pull_started"),
		logging.String("image", ref),
	)

	stream, err := p.source.PullStream(ctx, ref)
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer stream.Close()

	last, err := drainPullStream(stream, func(msg pullMessage) {
		attrs := []logging.Attr{
			logging.String("layer", msg.ID),
			logging.String("status", msg.Status),
		}
		if msg.Progress != nil && msg.Progress.Total > 0 {
			attrs = append(attrs, logging.Int("percent", int(msg.Progress.Current*100/msg.Progress.Total)))
		}
		p.logger.DebugContext(ctx, "pull progress", logging.Args(attrs...)...)
	})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}

	p.logger.InfoContext(ctx, "image pulled",
		logging.String(logging.FieldEventType, "image_pull_completed"),
		logging.String("image", ref),
		logging.String("status", last),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// drainPullStream decodes newline-delimited JSON progress messages until EOF
// and returns the final status line.
func drainPullStream(r io.Reader, observe func(pullMessage)) (string, error) {
	decoder := json.NewDecoder(r)
	var last string
	for {
		var msg pullMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return last, nil
			}
			return last, fmt.Errorf("read pull progress: %w", err)
		}
		if msg.Error != nil && strings.TrimSpace(msg.Error.Message) != "" {
			return last, errors.New(msg.Error.Message)
		}
		if strings.TrimSpace(msg.ErrorText) != "" {
			return last, errors.New(msg.ErrorText)
		}
		if msg.Status != "" {
			last = msg.Status
		}
		if observe != nil {
			observe(msg)
		}
	}
}
