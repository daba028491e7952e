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

// postDocument はpostsコレクションのドキュメント形式。
type postDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Title           string             `bson:"title"`
	Slug            string             `bson:"slug"`
	Content         string             `bson:"content"`
	Excerpt         string             `bson:"excerpt,omitempty"`
	AuthorID        string             `bson:"authorId,omitempty"`
	Status          string             `bson:"status"`
	ImageURL        string             `bson:"imageUrl,omitempty"`
	IsFeatured      bool               `bson:"isFeatured"`
	Views           int64              `bson:"views"`
	MetaTitle       string             `bson:"metaTitle,omitempty"`
	MetaDescription string             `bson:"metaDescription,omitempty"`
	MetaKeywords    string             `bson:"metaKeywords,omitempty"`
	FocusKeyword    string             `bson:"focusKeyword,omitempty"`
	CategoryID      string             `bson:"categoryId,omitempty"`
	ReadTime        int                `bson:"readTime,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *postDocument) toModel() (*model.Post, error) {
	if d.ID.IsZero() || d.Title == "" || d.Slug == "" {
		return nil, fmt.Errorf("%w: post %s", ErrMalformedDocument, d.ID.Hex())
	}
	return &model.Post{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Slug:            d.Slug,
		Content:         d.Content,
		Excerpt:         d.Excerpt,
		AuthorID:        d.AuthorID,
		Status:          model.PostStatus(d.Status),
		ImageURL:        d.ImageURL,
		IsFeatured:      d.IsFeatured,
		Views:           d.Views,
		MetaTitle:       d.MetaTitle,
		MetaDescription: d.MetaDescription,
		MetaKeywords:    d.MetaKeywords,
		FocusKeyword:    d.FocusKeyword,
		CategoryID:      d.CategoryID,
		ReadTime:        d.ReadTime,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

func newPostDocument(p *model.Post) postDocument {
	return postDocument{
		Title:           p.Title,
		Slug:            p.Slug,
		Content:         p.Content,
		Excerpt:         p.Excerpt,
		AuthorID:        p.AuthorID,
		Status:          string(p.Status),
		ImageURL:        p.ImageURL,
		IsFeatured:      p.IsFeatured,
		Views:           p.Views,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		MetaKeywords:    p.MetaKeywords,
		FocusKeyword:    p.FocusKeyword,
		CategoryID:      p.CategoryID,
		ReadTime:        p.ReadTime,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// MongoPostRepo はMongoDBを使用した記事リポジトリ。
type MongoPostRepo struct {
	coll *mongo.Collection
}

// NewMongoPostRepo はMongoPostRepoを生成する。
func NewMongoPostRepo(db *mongo.Database) *MongoPostRepo {
	return &MongoPostRepo{coll: db.Collection(database.CollectionPosts)}
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *MongoPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
func (r *MongoPostRepo) FindBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

// List は条件に一致する記事を作成日時の降順で返す。
func (r *MongoPostRepo) List(ctx context.Context, filter model.PostFilter) ([]*model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cur, err := r.coll.Find(ctx, postQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []postDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	posts := make([]*model.Post, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Count は条件に一致する記事数を返す。
func (r *MongoPostRepo) Count(ctx context.Context, filter model.PostFilter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, postQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

// Create は記事を作成し、採番したIDをpost.IDに設定する。
func (r *MongoPostRepo) Create(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	doc := newPostDocument(post)
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create post: %w", translateWriteError(err))
	}
	post.ID = doc.ID.Hex()
	return nil
}

// Update は記事の可変フィールドを更新し、更新後の記事を返す。
// 閲覧数と作成日時は更新しない。対象が存在しない場合はnilを返す。
func (r *MongoPostRepo) Update(ctx context.Context, post *model.Post) (*model.Post, error) {
	oid, ok := parseObjectID(post.ID)
	if !ok {
		return nil, nil
	}

	set := bson.M{
		"title":           post.Title,
		"slug":            post.Slug,
		"content":         post.Content,
		"excerpt":         post.Excerpt,
		"authorId":        post.AuthorID,
		"status":          string(post.Status),
		"imageUrl":        post.ImageURL,
		"isFeatured":      post.IsFeatured,
		"metaTitle":       post.MetaTitle,
		"metaDescription": post.MetaDescription,
		"metaKeywords":    post.MetaKeywords,
		"focusKeyword":    post.FocusKeyword,
		"categoryId":      post.CategoryID,
		"readTime":        post.ReadTime,
		"updatedAt":       time.Now().UTC(),
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc postDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", translateWriteError(err))
	}
	return doc.toModel()
}

// DeleteByID は指定IDの記事を削除する。
func (r *MongoPostRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return false, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// IncrementViews は閲覧数をアトミックに1増やす。
func (r *MongoPostRepo) IncrementViews(ctx context.Context, id string) (bool, error) {
	oid, ok := parseObjectID(id)
	if !ok {
		return false, nil
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return false, fmt.Errorf("failed to increment post views: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoPostRepo) findOne(ctx context.Context, filter bson.M) (*model.Post, error) {
	var doc postDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return doc.toModel()
}

// postQuery はPostFilterをMongoDBのクエリに変換する。
func postQuery(filter model.PostFilter) bson.M {
	q := bson.M{}
	if filter.AuthorID != "" {
		q["authorId"] = filter.AuthorID
	}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.IsFeatured != nil {
		q["isFeatured"] = *filter.IsFeatured
	}
	return q
}

// compile-time interface check
var _ PostRepository = (*MongoPostRepo)(nil)
