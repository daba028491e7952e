package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Byte-q/used-backend/internal/auth"
	"github.com/Byte-q/used-backend/internal/model"
	"github.com/Byte-q/used-backend/internal/post"
	"github.com/Byte-q/used-backend/internal/product"
)

// --- モック定義 ---

type fakeSeedStore struct {
	users    map[string]*model.User
	posts    map[string]*model.Post
	products []*model.Product

	registered []auth.RegisterInput
	findErr    error
}

func newFakeSeedStore() *fakeSeedStore {
	return &fakeSeedStore{
		users: make(map[string]*model.User),
		posts: make(map[string]*model.Post),
	}
}

func (f *fakeSeedStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.users[username], nil
}

func (f *fakeSeedStore) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	f.registered = append(f.registered, in)
	u := &model.User{ID: "user-" + in.Username, Username: in.Username, Email: in.Email, Role: in.Role}
	f.users[in.Username] = u
	return u, nil
}

func (f *fakeSeedStore) FindBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return f.posts[slug], nil
}

func (f *fakeSeedStore) Create(ctx context.Context, authorID string, in post.Input) (*model.Post, error) {
	p := &model.Post{ID: "post-1", Title: in.Title, Slug: in.Slug, AuthorID: authorID, Status: in.Status}
	f.posts[in.Slug] = p
	return p, nil
}

type fakeProductCatalog struct {
	store *fakeSeedStore
}

func (c fakeProductCatalog) List(ctx context.Context) ([]*model.Product, error) {
	return c.store.products, nil
}

func (c fakeProductCatalog) Create(ctx context.Context, in product.Input) (*model.Product, error) {
	p := &model.Product{ID: "prod-1", Title: in.Title, Price: in.Price, Stock: in.Stock}
	c.store.products = append(c.store.products, p)
	return p, nil
}

func newTestSeeder(store *fakeSeedStore) *seeder {
	return &seeder{
		users:     store,
		registrar: store,
		posts:     store,
		creator:   store,
		products:  fakeProductCatalog{store: store},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

var testSeedAdmin = seedAdmin{Username: "admin", Email: "admin@example.com", Password: "change-me-please"}

// --- テスト ---

func TestSeeder_Run_CreatesEverything(t *testing.T) {
	store := newFakeSeedStore()

	require.NoError(t, newTestSeeder(store).Run(context.Background(), testSeedAdmin))

	require.Len(t, store.registered, 1)
	assert.Equal(t, model.RoleAdmin, store.registered[0].Role)
	assert.Equal(t, "change-me-please", store.registered[0].Password)

	p := store.posts[samplePostSlug]
	require.NotNil(t, p)
	assert.Equal(t, "user-admin", p.AuthorID)
	assert.Equal(t, model.PostStatusPublished, p.Status)

	require.Len(t, store.products, 1)
	assert.Equal(t, sampleProductTitle, store.products[0].Title)
}

func TestSeeder_Run_IsIdempotent(t *testing.T) {
	store := newFakeSeedStore()
	s := newTestSeeder(store)

	require.NoError(t, s.Run(context.Background(), testSeedAdmin))
	require.NoError(t, s.Run(context.Background(), testSeedAdmin))

	assert.Len(t, store.registered, 1)
	assert.Len(t, store.posts, 1)
	assert.Len(t, store.products, 1)
}

func TestSeeder_Run_RequiresPassword(t *testing.T) {
	store := newFakeSeedStore()

	err := newTestSeeder(store).Run(context.Background(), seedAdmin{Username: "admin", Email: "admin@example.com"})

	assert.ErrorIs(t, err, errSeedPasswordRequired)
	assert.Empty(t, store.registered)
}

func TestSeeder_Run_StopsOnLookupFailure(t *testing.T) {
	store := newFakeSeedStore()
	store.findErr = errors.New("mongo: no reachable servers")

	err := newTestSeeder(store).Run(context.Background(), testSeedAdmin)

	require.Error(t, err)
	assert.ErrorIs(t, err, store.findErr)
	assert.Empty(t, store.posts)
	assert.Empty(t, store.products)
}
