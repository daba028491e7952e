package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/model"
	"github.com/Byte-q/used-backend/internal/post"
	"github.com/Byte-q/used-backend/internal/product"
)

const (
	samplePostTitle    = "Sample Post"
	samplePostSlug     = "sample-post"
	sampleProductTitle = "Sample Product"
)

// errSeedPasswordRequired はSEED_ADMIN_PASSWORD未設定時のエラー。
var errSeedPasswordRequired = errors.New("SEED_ADMIN_PASSWORD is required to seed the admin user")

type seedUserStore interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

type seedRegistrar interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
}

type seedPostStore interface {
	FindBySlug(ctx context.Context, slug string) (*model.Post, error)
}

type seedPostCreator interface {
	Create(ctx context.Context, authorID string, in post.Input) (*model.Post, error)
}

type seedProductCatalog interface {
	List(ctx context.Context) ([]*model.Product, error)
	Create(ctx context.Context, in product.Input) (*model.Product, error)
}

// seedAdmin は投入する管理者アカウント。
type seedAdmin struct {
	Username string
	Email    string
	Password string
}

// seeder は管理者ユーザー・サンプル記事・サンプル商品を投入する。
// 既に存在するものは作成しないため、繰り返し実行してよい。
type seeder struct {
	users     seedUserStore
	registrar seedRegistrar
	posts     seedPostStore
	creator   seedPostCreator
	products  seedProductCatalog
	logger    *slog.Logger
}

// Run は不足しているデータを投入する。
func (s *seeder) Run(ctx context.Context, admin seedAdmin) error {
	if admin.Password == "" {
		return errSeedPasswordRequired
	}

	adminUser, err := s.ensureAdmin(ctx, admin)
	if err != nil {
		return err
	}
	if err := s.ensureSamplePost(ctx, adminUser.ID); err != nil {
		return err
	}
	return s.ensureSampleProduct(ctx)
}

func (s *seeder) ensureAdmin(ctx context.Context, admin seedAdmin) (*model.User, error) {
	existing, err := s.users.FindByUsername(ctx, admin.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up admin user: %w", err)
	}
	if existing != nil {
		s.logger.Info("admin user already exists", slog.String("username", admin.Username))
		return existing, nil
	}

	created, err := s.registrar.Register(ctx, auth.RegisterInput{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
		FullName: "Admin User",
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}
	s.logger.Info("admin user created",
		slog.String("username", created.Username),
		slog.String("user_id", created.ID),
	)
	return created, nil
}

func (s *seeder) ensureSamplePost(ctx context.Context, authorID string) error {
	existing, err := s.posts.FindBySlug(ctx, samplePostSlug)
	if err != nil {
		return fmt.Errorf("failed to look up sample post: %w", err)
	}
	if existing != nil {
		return nil
	}

	p, err := s.creator.Create(ctx, authorID, post.Input{
		Title:   samplePostTitle,
		Slug:    samplePostSlug,
		Content: "<p>This is a sample post content.</p>",
		Status:  model.PostStatusPublished,
	})
	if err != nil {
		return fmt.Errorf("failed to create sample post: %w", err)
	}
	s.logger.Info("sample post created", slog.String("post_id", p.ID))
	return nil
}

func (s *seeder) ensureSampleProduct(ctx context.Context) error {
	products, err := s.products.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) > 0 {
		return nil
	}

	p, err := s.products.Create(ctx, product.Input{
		Title:       sampleProductTitle,
		Description: "This is a sample product description.",
		Price:       100,
		Stock:       50,
		ImageURL:    "https://example.com/sample-product.jpg",
	})
	if err != nil {
		return fmt.Errorf("failed to create sample product: %w", err)
	}
	s.logger.Info("sample product created", slog.String("product_id", p.ID))
	return nil
}
