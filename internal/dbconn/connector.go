package dbconn

import (
	"context"
	"sync"
)

// Connector holds the long-lived pool for the process-default profile.
// Switching the target database closes the current pool and builds a fresh
// one; there is no silent reuse across databases. The current target is
// best-effort single-target state shared across requests, which is a
// documented limitation rather than an isolation guarantee. Per-request
// custom connections never go through a Connector.
type Connector struct {
	factory *Factory
	profile Profile

	mu     sync.Mutex
	client *Client
}

func NewConnector(factory *Factory, profile Profile) *Connector {
	return &Connector{factory: factory, profile: profile}
}

// Client returns the pooled client for the requested database, rebuilding
// the pool when the target changed. database may be empty for server-level
// work such as enumeration.
func (c *Connector) Client(ctx context.Context, database string) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.Database() == database {
		return c.client, nil
	}

	client, err := c.factory.Resolve(ctx, c.profile, database)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		_ = c.client.Close()
	}
	c.client = client
	return client, nil
}

// Ping validates connectivity for the current target without rebuilding.
func (c *Connector) Ping(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		var err error
		client, err = c.Client(ctx, c.profile.Database)
		if err != nil {
			return err
		}
	}
	return client.Ping(ctx)
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
