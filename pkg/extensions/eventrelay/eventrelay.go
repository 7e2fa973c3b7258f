// Package eventrelay is an example third-party integration. It is not a
// builtin: the host installs it explicitly, and it registers itself through
// the registration extension point like any external package would.
//
// When enabled it publishes every post-created event to a Kafka topic.
package eventrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	ID = "event-relay"

	DefaultTopic = "autoblog.posts"

	// Priority runs after every shipped subscriber so the message carries the
	// final post state.
	Priority = 100

	EventPostCreated = "post_created"

	writeTimeout = 10 * time.Second
)

// Writer is satisfied by *kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a writer for brokers. Messages carry their own topic.
func NewKafkaWriter(brokers []string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka writer requires at least one broker")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, nil
}

// Install registers the relay whenever a manager fires the registration hook
// on hooks.
func Install(hooks host.Hooks, w Writer) host.HookHandle {
	return integration.OnRegister(hooks, func(ctx context.Context, m *integration.Manager) {
		m.Register(New(m.Context(), w))
	})
}

// Message is the JSON value written for each event.
type Message struct {
	Event         string    `json:"event"`
	PostID        int64     `json:"post_id"`
	Title         string    `json:"title"`
	Status        string    `json:"status,omitempty"`
	Permalink     string    `json:"permalink,omitempty"`
	FeaturedImage string    `json:"featured_image,omitempty"`
	Content       string    `json:"content,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Relay is the event relay integration.
type Relay struct {
	*integration.Base
	ctx    *integration.Context
	writer Writer
}

// New creates the relay.
func New(ctx *integration.Context, w Writer) *Relay {
	r := &Relay{ctx: ctx, writer: w}
	r.Base = integration.NewBase(integration.Metadata{
		ID:          ID,
		Name:        "Event Relay",
		Description: "Publish post-created events to Kafka.",
		Version:     "0.2.0",
		Author:      "autoblog contrib",
		Icon:        "rss",
		Category:    integration.CategoryOther,
	}, integration.Settings{
		"enabled":         false,
		"topic":           DefaultTopic,
		"include_content": false,
	}, ctx)
	r.Bind(r)
	return r
}

func (r *Relay) SanitizeSettings(in integration.Settings) integration.Settings {
	out := in.Clone()
	topic := strings.TrimSpace(in.String("topic"))
	if topic == "" {
		topic = DefaultTopic
	}
	out["topic"] = topic
	out["enabled"] = in.Bool("enabled")
	out["include_content"] = in.Bool("include_content")
	return out
}

func (r *Relay) Init() {
	integration.OnPostCreated(r.ctx.Hooks, Priority, func(ctx context.Context, ev integration.PostCreated) {
		if err := r.Publish(ctx, ev); err != nil {
			r.Logger().Error("Failed to relay event", zap.Int64("post_id", ev.PostID), zap.Error(err))
		}
	})
}

// Publish writes ev to the configured topic keyed by post ID.
func (r *Relay) Publish(ctx context.Context, ev integration.PostCreated) error {
	if r.writer == nil {
		return errors.New("no kafka writer configured")
	}
	settings := r.Settings()

	msg := Message{
		Event:      EventPostCreated,
		PostID:     ev.PostID,
		Title:      ev.Title,
		OccurredAt: r.ctx.Now().UTC(),
	}
	if settings.Bool("include_content") {
		msg.Content = ev.Content
	}
	if r.ctx.Posts != nil {
		if post, err := r.ctx.Posts.Get(ctx, ev.PostID); err == nil {
			msg.Status = post.Status
			msg.Permalink = r.ctx.Posts.Permalink(post)
			msg.FeaturedImage = post.FeaturedImage
		}
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	topic := settings.String("topic")
	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(ev.PostID, 10)),
		Value: value,
		Time:  msg.OccurredAt,
	}); err != nil {
		return fmt.Errorf("failed to write to %s: %w", topic, err)
	}

	r.Logger().Debug("Event relayed", zap.String("topic", topic), zap.Int64("post_id", ev.PostID))
	return nil
}
