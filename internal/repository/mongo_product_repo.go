package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Byte-q/used-backend/internal/database"
	"github.com/Byte-q/used-backend/internal/model"
)

// productDocument はproductsコレクションのドキュメント形式。
type productDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Stock       int                `bson:"stock"`
	ImageURL    string             `bson:"imageUrl,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *productDocument) toModel() (*model.Product, error) {
	if d.ID.IsZero() || d.Title == "" {
		return nil, fmt.Errorf("%w: product %s", ErrMalformedDocument, d.ID.Hex())
	}
	return &model.Product{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
		ImageURL:    d.ImageURL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

// MongoProductRepo はMongoDBを使用した商品リポジトリ。
type MongoProductRepo struct {
	coll *mongo.Collection
}

// NewMongoProductRepo はMongoProductRepoを生成する。
func NewMongoProductRepo(db *mongo.Database) *MongoProductRepo {
	return &MongoProductRepo{coll: db.Collection(database.CollectionProducts)}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *MongoProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return nil, nil
	}
	var doc productDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return doc.toModel()
}

// List は全商品を作成日時の降順で返す。
func (r *MongoProductRepo) List(ctx context.Context) ([]*model.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cur.Close(ctx)

	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]*model.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Create は商品を作成し、採番したIDをproduct.IDに設定する。
func (r *MongoProductRepo) Create(ctx context.Context, product *model.Product) error {
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	doc := productDocument{
		ID:          primitive.NewObjectID(),
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		ImageURL:    product.ImageURL,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	product.ID = doc.ID.Hex()
	return nil
}

// Update は商品の可変フィールドを更新し、更新後の商品を返す。
// 対象が存在しない場合はnilを返す。
func (r *MongoProductRepo) Update(ctx context.Context, product *model.Product) (*model.Product, error) {
	oid, ok := parseObjectID(product.ID)
	if !ok {
		return nil, nil
	}

	set := bson.M{
		"title":       product.Title,
		"description": product.Description,
		"price":       product.Price,
		"stock":       product.Stock,
		"imageUrl":    product.ImageURL,
		"updatedAt":   time.Now().UTC(),
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc productDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return doc.toModel()
}

// DeleteByID は指定IDの商品を削除する。
func (r *MongoProductRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return false, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// compile-time interface check
var _ ProductRepository = (*MongoProductRepo)(nil)
