package ad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no listing matches a lookup. For the
// combined slug+owner lookup this deliberately covers both nonexistence
// and ownership mismatch.
var ErrNotFound = errors.New("ad not found")

// Repository provides listing document access backed by MongoDB.
type Repository struct {
	ads *mongo.Collection
}

// NewRepository creates a listing repository over the ads collection.
func NewRepository(ads *mongo.Collection) *Repository {
	return &Repository{ads: ads}
}

// Insert persists a new listing and returns it with its generated id.
func (r *Repository) Insert(ctx context.Context, a *Ad) (*Ad, error) {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	result, err := r.ads.InsertOne(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("inserting ad: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	a.ID = id
	return a, nil
}

// FindBySlug returns a listing by its slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*Ad, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

// FindBySlugAndOwner returns a listing only when both the slug and the
// owner match. A miss is indistinguishable from nonexistence.
func (r *Repository) FindBySlugAndOwner(ctx context.Context, slug string, owner primitive.ObjectID) (*Ad, error) {
	return r.findOne(ctx, bson.M{"slug": slug, "postedBy": owner})
}

// FindByID returns a listing by id.
func (r *Repository) FindByID(ctx context.Context, id primitive.ObjectID) (*Ad, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *Repository) findOne(ctx context.Context, filter bson.M) (*Ad, error) {
	var a Ad
	err := r.ads.FindOne(ctx, filter).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding ad: %w", err)
	}
	return &a, nil
}

// Replace overwrites the mutable fields of the listing identified by id
// and returns the updated document.
func (r *Repository) Replace(ctx context.Context, id primitive.ObjectID, a *Ad) (*Ad, error) {
	update := bson.M{"$set": bson.M{
		"address":      a.Address,
		"photos":       a.Photos,
		"description":  a.Description,
		"propertyType": a.PropertyType,
		"price":        a.Price,
		"priceValue":   a.PriceValue,
		"landSize":     a.LandSize,
		"landSizeType": a.LandSizeType,
		"action":       a.Action,
		"bedrooms":     a.Bedrooms,
		"bathrooms":    a.Bathrooms,
		"carpark":      a.Carpark,
		"title":        a.Title,
		"slug":         a.Slug,
		"features":     a.Features,
		"nearby":       a.Nearby,
		"published":    a.Published,
		"views":        a.Views,
		"status":       a.Status,
		"location":     a.Location,
		"geocoderRaw":  a.GeocoderRaw,
		"updatedAt":    time.Now().UTC(),
	}}

	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// UpdateStatus sets the listing's status and bumps updatedAt.
func (r *Repository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status Status) (*Ad, error) {
	update := bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// SetPublished flips the publish flag.
func (r *Repository) SetPublished(ctx context.Context, id primitive.ObjectID, published bool) (*Ad, error) {
	update := bson.M{"$set": bson.M{"published": published}}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (r *Repository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*Ad, error) {
	var a Ad
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.ads.FindOneAndUpdate(ctx, filter, update, opts).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating ad: %w", err)
	}
	return &a, nil
}

// Delete removes the listing permanently.
func (r *Repository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.ads.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting ad %s: %w", id.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the listing's raw view counter by one. The update
// is atomic, so concurrent increments never lose updates.
func (r *Repository) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.ads.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return fmt.Errorf("incrementing views for %s: %w", id.Hex(), err)
	}
	return nil
}

// Search returns listings within the fixed radius matching the filter,
// newest first, plus the total match count for pagination.
func (r *Repository) Search(ctx context.Context, f SearchFilter, page, pageSize int) ([]*Ad, int64, error) {
	return r.paginated(ctx, f.query(), page, pageSize)
}

// Feed returns a page of the filtered feed, newest first, plus the total
// match count.
func (r *Repository) Feed(ctx context.Context, q FeedQuery, page, pageSize int) ([]*Ad, int64, error) {
	return r.paginated(ctx, q.query(), page, pageSize)
}

// FindByIDs returns a page of the listings whose ids are in ids, newest
// first, plus the total count of those that still exist.
func (r *Repository) FindByIDs(ctx context.Context, ids []primitive.ObjectID, page, pageSize int) ([]*Ad, int64, error) {
	return r.paginated(ctx, bson.M{"_id": bson.M{"$in": ids}}, page, pageSize)
}

func (r *Repository) paginated(ctx context.Context, filter bson.M, page, pageSize int) ([]*Ad, int64, error) {
	total, err := r.ads.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting ads: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.ads.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying ads: %w", err)
	}
	defer cursor.Close(ctx)

	var ads []*Ad
	if err := cursor.All(ctx, &ads); err != nil {
		return nil, 0, fmt.Errorf("decoding ads: %w", err)
	}

	return ads, total, nil
}

// Related returns up to 5 published listings within 100 km of src that
// share its action and property type, nearest first, excluding src.
func (r *Repository) Related(ctx context.Context, src *Ad) ([]*Ad, error) {
	cursor, err := r.ads.Aggregate(ctx, relatedPipeline(src))
	if err != nil {
		return nil, fmt.Errorf("querying related ads: %w", err)
	}
	defer cursor.Close(ctx)

	var ads []*Ad
	if err := cursor.All(ctx, &ads); err != nil {
		return nil, fmt.Errorf("decoding related ads: %w", err)
	}
	return ads, nil
}
