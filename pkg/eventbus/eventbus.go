// Package eventbus provides the Watermill publisher/subscriber pair the modules route events over.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
)

// EventBus is both ends of the bus. Routers subscribe through it and handlers publish through it.
type EventBus interface {
	Publish(topic string, messages ...*message.Message) error
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// Config describes the NATS connection.
type Config struct {
	URL      string
	AppName  string
	NKeySeed string
	Streams  []jetstream.StreamConfig
}

// DefaultStreams covers every subject the service publishes on.
var DefaultStreams = []jetstream.StreamConfig{
	{Name: "MATCHMAKING", Subjects: []string{"matchmaking.>"}, MaxAge: 24 * time.Hour},
	{Name: "MATCH", Subjects: []string{"match.>"}, MaxAge: 72 * time.Hour},
}

type natsBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	conn       *nc.Conn
	logger     *slog.Logger
}

// NewNATS connects to NATS, makes sure the JetStream streams exist and builds
// the Watermill publisher and subscriber on top of them.
func NewNATS(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	options := []nc.Option{
		nc.Name(cfg.AppName),
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("Error in subscription", slog.String("subject", s.Subject), slog.Any("error", err))
				return
			}
			logger.Error("Error in connection", slog.Any("error", err))
		}),
	}

	if cfg.NKeySeed != "" {
		opt, err := nkeyOption(cfg.NKeySeed)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	conn, err := nc.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	streams := cfg.Streams
	if len(streams) == 0 {
		streams = DefaultStreams
	}
	if err := ensureStreams(ctx, js, streams, logger); err != nil {
		conn.Close()
		return nil, err
	}

	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}
	jsConfig := wmnats.JetStreamConfig{
		AutoProvision:     false,
		TrackMsgId:        true,
		DurablePrefix:     cfg.AppName,
		DurableCalculator: DurableName,
	}

	publisher, err := wmnats.NewPublisherWithNatsConn(conn, wmnats.PublisherPublishConfig{
		Marshaler:         marshaler,
		SubjectCalculator: wmnats.DefaultSubjectCalculator,
		JetStream:         jsConfig,
	}, wmLogger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriberWithNatsConn(conn, wmnats.SubscriberSubscriptionConfig{
		Unmarshaler:       marshaler,
		SubjectCalculator: wmnats.DefaultSubjectCalculator,
		SubscribersCount:  1,
		AckWaitTimeout:    30 * time.Second,
		CloseTimeout:      30 * time.Second,
		JetStream:         jsConfig,
	}, wmLogger)
	if err != nil {
		_ = publisher.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	return &natsBus{
		publisher:  publisher,
		subscriber: subscriber,
		conn:       conn,
		logger:     logger,
	}, nil
}

func nkeyOption(seed string) (nc.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	return nc.Nkey(pub, func(nonce []byte) ([]byte, error) {
		return kp.Sign(nonce)
	}), nil
}

func ensureStreams(ctx context.Context, js jetstream.JetStream, streams []jetstream.StreamConfig, logger *slog.Logger) error {
	for _, sc := range streams {
		_, err := js.Stream(ctx, sc.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			return fmt.Errorf("failed to check stream %s: %w", sc.Name, err)
		}
		if _, err := js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", sc.Name, err)
		}
		logger.InfoContext(ctx, "Created JetStream stream", slog.String("stream", sc.Name))
	}
	return nil
}

// DurableName derives a JetStream-safe durable consumer name from a topic.
func DurableName(prefix, topic string) string {
	r := strings.NewReplacer(".", "_", "*", "any", ">", "all")
	name := r.Replace(topic)
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

func (b *natsBus) Publish(topic string, messages ...*message.Message) error {
	return publishByTopic(b.publisher, topic, messages)
}

func (b *natsBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, topic)
}

func (b *natsBus) Close() error {
	var errs []error
	if err := b.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close subscriber: %w", err))
	}
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
	}
	b.conn.Close()
	return errors.Join(errs...)
}

type memoryBus struct {
	pubsub *gochannel.GoChannel
}

// NewInMemory returns a process-local bus, used for single-node dev runs and tests.
func NewInMemory(logger *slog.Logger) EventBus {
	return &memoryBus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, watermill.NewSlogLogger(logger)),
	}
}

func (b *memoryBus) Publish(topic string, messages ...*message.Message) error {
	return publishByTopic(b.pubsub, topic, messages)
}

func (b *memoryBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *memoryBus) Close() error {
	return b.pubsub.Close()
}

// publishByTopic publishes each message on its own metadata topic when the
// router hands us an empty one, which is how handler Results choose their destination.
func publishByTopic(p message.Publisher, topic string, messages []*message.Message) error {
	if topic != "" {
		return p.Publish(topic, messages...)
	}
	for _, m := range messages {
		t := m.Metadata.Get(handlerwrapper.TopicMetadataKey)
		if t == "" {
			return fmt.Errorf("message %s has no topic", m.UUID)
		}
		if err := p.Publish(t, m); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", t, err)
		}
	}
	return nil
}
