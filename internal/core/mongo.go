// AngelaMos | 2026
// mongo.go

package core

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
)

// Mongo holds the achievement database.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetAppName("achievement-portfolio").
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize))
	if err != nil {
		return nil, fmt.Errorf("configure mongo client: %w", err)
	}

	m := &Mongo{Client: client, DB: client.Database(cfg.Database)}

	if err := dial(ctx, "mongo", startupRetryWindow, m.primaryPing); err != nil {
		//nolint:errcheck // client never connected
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return m, nil
}

func (m *Mongo) primaryPing(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Ping(ctx context.Context) error {
	return ping(ctx, "mongo", m.primaryPing)
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	return m.Client.Disconnect(ctx)
}
