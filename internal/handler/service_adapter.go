package handler

import (
	"context"
	"database/sql"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/post"
	"github.com/Byte-q/used-backend/internal/product"
	"github.com/Byte-q/used-backend/internal/user"
)

// PostgresHealthAdapter は *sql.DB を HealthChecker に適合させるアダプタ。
type PostgresHealthAdapter struct {
	db *sql.DB
}

// NewPostgresHealthAdapter はPostgresHealthAdapterを生成する。
func NewPostgresHealthAdapter(db *sql.DB) *PostgresHealthAdapter {
	return &PostgresHealthAdapter{db: db}
}

// Ping はセッションストアへの疎通を確認する。
func (a *PostgresHealthAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// MongoHealthAdapter は *mongo.Client を HealthChecker に適合させるアダプタ。
type MongoHealthAdapter struct {
	client *mongo.Client
}

// NewMongoHealthAdapter はMongoHealthAdapterを生成する。
func NewMongoHealthAdapter(client *mongo.Client) *MongoHealthAdapter {
	return &MongoHealthAdapter{client: client}
}

// Ping はドキュメントストアのプライマリへの疎通を確認する。
func (a *MongoHealthAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx, readpref.Primary())
}

// --- compile-time interface checks ---

var _ HealthChecker = (*PostgresHealthAdapter)(nil)
var _ HealthChecker = (*MongoHealthAdapter)(nil)
var _ AuthServiceInterface = (*auth.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ PostServiceInterface = (*post.Service)(nil)
var _ ProductServiceInterface = (*product.Service)(nil)
