package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")

	// ErrTopicNotConfigured is returned by Send for a blank topic name.
	ErrTopicNotConfigured = errors.New("pubsub topic not configured")
)

// Client wraps the Pub/Sub v2 client with the wardrobe topic and
// subscription names. Publishers are created once per topic and reused.
type Client struct {
	client   *pubsub.Client
	project  string
	cfg      config.PubSubConfig
	required []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and checks that every subscription the caller
// consumes from exists. Publish-only binaries pass none.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, subscriptions ...string) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     ps,
		project:    project,
		cfg:        cfg,
		publishers: map[string]*pubsub.Publisher{},
	}
	for _, name := range subscriptions {
		if name = strings.TrimSpace(name); name != "" {
			c.required = append(c.required, name)
		}
	}
	if err := c.checkSubscriptions(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "subscriptions": c.required}), "pubsub.ready")
	}
	return c, nil
}

// Subscriber returns the handle for a subscription id or full resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.project, kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// BlobJanitorSubscription returns the subscriber for deleted-item cleanup.
func (c *Client) BlobJanitorSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscriber(c.cfg.BlobJanitorSubscription)
}

// Send publishes msg to topic and blocks until the server acknowledges it or
// ctx ends.
func (c *Client) Send(ctx context.Context, topic string, msg *pubsub.Message) error {
	pub, err := c.publisher(topic)
	if err != nil {
		return err
	}
	_, err = pub.Publish(ctx, msg).Get(ctx)
	return err
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	if c == nil || c.client == nil {
		return nil, errNotInitialized
	}
	full := resourceName(c.project, kindTopic, topic)
	if full == "" {
		return nil, ErrTopicNotConfigured
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[full]
	if !ok {
		pub = c.client.Publisher(full)
		c.publishers[full] = pub
	}
	return pub, nil
}

// Ping verifies connectivity. Consumers check their subscriptions; publishers
// look up the item events topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if len(c.required) > 0 {
		return c.checkSubscriptions(ctx)
	}
	full := resourceName(c.project, kindTopic, c.cfg.ItemEventsTopic)
	if full == "" {
		return ErrTopicNotConfigured
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	return notFound(err, "topic", c.cfg.ItemEventsTopic)
}

// Close flushes pending publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, pub := range c.publishers {
		pub.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) checkSubscriptions(ctx context.Context) error {
	for _, name := range c.required {
		full := resourceName(c.project, kindSubscription, name)
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
		if err := notFound(err, "subscription", name); err != nil {
			return err
		}
	}
	return nil
}

func notFound(err error, kind, name string) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// resourceName expands an id to projects/<project>/<kind>/<id>. Full names
// of the same kind pass through.
func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
