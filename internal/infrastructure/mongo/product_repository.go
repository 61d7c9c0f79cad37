package mongo

import (
	"context"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/inventory"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productsCollection = "products"

type productDocument struct {
	ProductID       string    `bson:"product_id"`
	Name            string    `bson:"name"`
	QuantityInStock int       `bson:"quantity_in_stock"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func (d productDocument) toDomain() *domain.Product {
	return &domain.Product{
		ID:            d.ProductID,
		Name:          d.Name,
		StockQuantity: d.QuantityInStock,
		UpdatedAt:     d.UpdatedAt,
	}
}

type ProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection)}
}

func (r *ProductRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "product_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: create product index: %w", err)
	}
	return nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "product_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: find products: %w", err)
	}
	defer cur.Close(ctx)

	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode products: %w", err)
	}

	out := make([]*domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *ProductRepository) UpdateStock(ctx context.Context, productID string, stockQuantity int) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"product_id": productID},
		bson.M{"$set": bson.M{
			"quantity_in_stock": stockQuantity,
			"updated_at":        time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo: update stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Upsert writes a full product document, used to seed the catalogue.
func (r *ProductRepository) Upsert(ctx context.Context, p *domain.Product) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"product_id": p.ID},
		bson.M{"$set": productDocument{
			ProductID:       p.ID,
			Name:            p.Name,
			QuantityInStock: p.StockQuantity,
			UpdatedAt:       time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo: upsert product: %w", err)
	}
	return nil
}
