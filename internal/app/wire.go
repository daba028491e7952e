package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/config"
	"github.com/Byte-q/used-backend/internal/database"
	"github.com/Byte-q/used-backend/internal/post"
	"github.com/Byte-q/used-backend/internal/product"
	"github.com/Byte-q/used-backend/internal/repository"
	"github.com/Byte-q/used-backend/internal/security"
	"github.com/Byte-q/used-backend/internal/user"
)

// tokenRegistry はリフレッシュトークン登録簿に、ユーザー単位の失効を加えたもの。
type tokenRegistry interface {
	auth.RefreshTokenRegistry
	user.TokenRevoker
}

var (
	_ tokenRegistry = (*auth.MemoryRegistry)(nil)
	_ tokenRegistry = (*repository.PostgresRefreshTokenRepo)(nil)
)

// newTokenRegistry はREFRESH_TOKEN_STOREに応じた登録簿を返す。
func newTokenRegistry(store string, db *sql.DB) tokenRegistry {
	if store == "postgres" {
		return repository.NewPostgresRefreshTokenRepo(db)
	}
	return auth.NewMemoryRegistry()
}

// tokenConfig は設定値からトークン発行設定を組み立てる。
func tokenConfig(cfg *config.Config) auth.TokenConfig {
	return auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		AccessTTL:  auth.ParseTTL(cfg.JWTExpiration, auth.DefaultAccessTTL),
		RefreshTTL: auth.ParseTTL(cfg.RefreshTokenExpiration, auth.DefaultRefreshTTL),
	}
}

// stores はPostgreSQLとMongoDBの接続をまとめたもの。
type stores struct {
	db          *sql.DB
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
}

// openStores は両方のデータストアに接続し、MongoDBのインデックスを作成する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Retry(ctx, "postgres", database.DefaultConnectAttempts, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	var client *mongo.Client
	err = database.Retry(ctx, "mongodb", database.DefaultConnectAttempts, func(ctx context.Context) error {
		c, err := database.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	mdb := client.Database(cfg.MongoDatabase)
	if err := database.EnsureIndexes(ctx, mdb); err != nil {
		_ = client.Disconnect(context.Background())
		db.Close()
		return nil, err
	}
	slog.Info("mongodb connection established", slog.String("database", cfg.MongoDatabase))

	return &stores{db: db, mongoClient: client, mongoDB: mdb}, nil
}

// Close は全ての接続を閉じる。
func (s *stores) Close() {
	if err := s.mongoClient.Disconnect(context.Background()); err != nil {
		slog.Error("failed to disconnect mongodb", slog.String("error", err.Error()))
	}
	if err := s.db.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
}

// components はリポジトリとドメインサービスをまとめたもの。
type components struct {
	sessionRepo *repository.PostgresSessionRepo
	userRepo    *repository.MongoUserRepo
	postRepo    *repository.MongoPostRepo
	registry    tokenRegistry

	authService    *auth.Service
	userService    *user.Service
	postService    *post.Service
	productService *product.Service
}

// newComponents は全依存関係をワイヤリングする。
func newComponents(cfg *config.Config, st *stores) (*components, error) {
	sessionRepo := repository.NewPostgresSessionRepo(st.db)
	userRepo := repository.NewMongoUserRepo(st.mongoDB)
	postRepo := repository.NewMongoPostRepo(st.mongoDB)
	productRepo := repository.NewMongoProductRepo(st.mongoDB)

	registry := newTokenRegistry(cfg.RefreshTokenStore, st.db)
	tokens, err := auth.NewTokenIssuer(tokenConfig(cfg), registry)
	if err != nil {
		return nil, fmt.Errorf("failed to configure token issuer: %w", err)
	}

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	authService := auth.NewService(userRepo, sessionRepo, hasher, tokens,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	return &components{
		sessionRepo:    sessionRepo,
		userRepo:       userRepo,
		postRepo:       postRepo,
		registry:       registry,
		authService:    authService,
		userService:    user.NewService(userRepo, sessionRepo, authService, hasher, registry),
		postService:    post.NewService(postRepo, security.NewContentSanitizer()),
		productService: product.NewService(productRepo),
	}, nil
}
