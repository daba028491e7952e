// Package product は商品のドメインロジックを提供する。
package product

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Byte-q/used-backend/internal/model"
	"github.com/Byte-q/used-backend/internal/repository"
)

// Input は商品作成の入力。
type Input struct {
	Title       string
	Description string
	Price       float64
	Stock       int
	ImageURL    string
}

// UpdateInput は商品の部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	Price       *float64
	Stock       *int
	ImageURL    *string
}

// Service は商品のサービス層。
type Service struct {
	repo repository.ProductRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.ProductRepository) *Service {
	return &Service{repo: repo}
}

// List は全商品を返す。
func (s *Service) List(ctx context.Context) ([]*model.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to list products: %w", err))
	}
	return products, nil
}

// Get は指定IDの商品を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to find product: %w", err))
	}
	if p == nil {
		return nil, model.NewProductNotFoundError(id)
	}
	return p, nil
}

// Create は商品を作成する。
func (s *Service) Create(ctx context.Context, in Input) (*model.Product, error) {
	p := &model.Product{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to create product: %w", err))
	}
	slog.Info("product created", slog.String("product_id", p.ID))
	return p, nil
}

// Update は商品を部分更新する。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return nil, model.NewStoreFailureError(fmt.Errorf("failed to update product: %w", err))
	}
	if updated == nil {
		return nil, model.NewProductNotFoundError(id)
	}
	return updated, nil
}

// Delete は商品を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return model.NewStoreFailureError(fmt.Errorf("failed to delete product: %w", err))
	}
	if !deleted {
		return model.NewProductNotFoundError(id)
	}
	slog.Info("product deleted", slog.String("product_id", id))
	return nil
}

func validate(p *model.Product) error {
	switch {
	case p.Title == "":
		return model.NewValidationError("title", "title is required")
	case p.Price < 0:
		return model.NewValidationError("price", "price must not be negative")
	case p.Stock < 0:
		return model.NewValidationError("stock", "stock must not be negative")
	}
	return nil
}
