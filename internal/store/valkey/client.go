package valkey

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/docpipe/internal/config"
)

// NewClient opens a valkey client from cfg and verifies connectivity. BROKER_URL
// wins over the address/password pair when both are set.
func NewClient(ctx context.Context, cfg config.BrokerConfig) (valkey.Client, error) {
	var opts valkey.ClientOption
	if cfg.URL != "" {
		parsed, err := valkey.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse broker url: %w", err)
		}
		opts = parsed
	} else {
		opts = valkey.ClientOption{InitAddress: []string{cfg.Addr}, Password: cfg.Password}
	}
	// Stream commands are never served from the client-side cache.
	opts.DisableCache = true
	opts.ClientName = cfg.ConsumerID

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return client, nil
}
