package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/Byte-q/used-backend/internal/model"
)

func productDoc(oid primitive.ObjectID, title string, price float64, stock int) bson.D {
	return bson.D{
		{Key: "_id", Value: oid},
		{Key: "title", Value: title},
		{Key: "description", Value: "desc"},
		{Key: "price", Value: price},
		{Key: "stock", Value: stock},
		{Key: "createdAt", Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "updatedAt", Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestMongoProductRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("FindByID", func(mt *mtest.T) {
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.products", mtest.FirstBatch,
			productDoc(oid, "Used bike", 120.5, 1)))

		p, err := NewMongoProductRepo(mt.DB).FindByID(ctx, oid.Hex())
		require.NoError(mt, err)
		require.NotNil(mt, p)
		assert.Equal(mt, "Used bike", p.Title)
		assert.Equal(mt, 120.5, p.Price)
		assert.Equal(mt, 1, p.Stock)
	})

	mt.Run("FindByID_見つからない場合はnil", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.products", mtest.FirstBatch))

		p, err := NewMongoProductRepo(mt.DB).FindByID(ctx, primitive.NewObjectID().Hex())
		require.NoError(mt, err)
		assert.Nil(mt, p)
	})

	mt.Run("List", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.products", mtest.FirstBatch,
			productDoc(primitive.NewObjectID(), "A", 1, 1),
			productDoc(primitive.NewObjectID(), "B", 2, 0),
		))

		products, err := NewMongoProductRepo(mt.DB).List(ctx)
		require.NoError(mt, err)
		assert.Len(mt, products, 2)
	})

	mt.Run("Create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		p := &model.Product{Title: "Lamp", Description: "desk lamp", Price: 9.99, Stock: 3}
		require.NoError(mt, NewMongoProductRepo(mt.DB).Create(ctx, p))
		assert.NotEmpty(mt, p.ID)
	})

	mt.Run("Update_見つからない不正ID", func(mt *mtest.T) {
		p, err := NewMongoProductRepo(mt.DB).Update(ctx, &model.Product{ID: "bad", Title: "x"})
		require.NoError(mt, err)
		assert.Nil(mt, p)
	})

	mt.Run("DeleteByID", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		ok, err := NewMongoProductRepo(mt.DB).DeleteByID(ctx, primitive.NewObjectID().Hex())
		require.NoError(mt, err)
		assert.True(mt, ok)
	})
}
