package user

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no user matches a lookup.
var ErrNotFound = errors.New("user not found")

// Repository provides user document access.
type Repository struct {
	users *mongo.Collection
}

// NewRepository creates a user repository over the users collection.
func NewRepository(users *mongo.Collection) *Repository {
	return &Repository{users: users}
}

// FindByID returns a user by id.
func (r *Repository) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var u User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", id.Hex(), err)
	}
	return &u, nil
}

// GrantSeller adds the Seller role and the ad id to the user's listing
// set. Both operations use set semantics, so repeat calls are idempotent.
func (r *Repository) GrantSeller(ctx context.Context, userID, adID primitive.ObjectID) (*User, error) {
	update := bson.M{"$addToSet": bson.M{
		"role": RoleSeller,
		"ads":  adID,
	}}

	var u User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("granting seller to %s: %w", userID.Hex(), err)
	}
	return &u, nil
}

// ToggleWishlist adds the ad id to the user's wishlist if absent, or
// removes it if present. Returns the updated wishlist and true when the
// toggle added the id. The set update itself is atomic.
func (r *Repository) ToggleWishlist(ctx context.Context, userID, adID primitive.ObjectID) ([]primitive.ObjectID, bool, error) {
	u, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	var update bson.M
	added := !u.InWishlist(adID)
	if added {
		update = bson.M{"$addToSet": bson.M{"wishlist": adID}}
	} else {
		update = bson.M{"$pull": bson.M{"wishlist": adID}}
	}

	var updated User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.users.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("toggling wishlist for %s: %w", userID.Hex(), err)
	}

	return updated.Wishlist, added, nil
}

// AddEnquired records the ad id in the user's enquired-properties set.
func (r *Repository) AddEnquired(ctx context.Context, userID, adID primitive.ObjectID) (*User, error) {
	update := bson.M{"$addToSet": bson.M{"enquiredProperties": adID}}

	var u User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recording enquiry for %s: %w", userID.Hex(), err)
	}
	return &u, nil
}

// Summaries returns truncated owner profiles for the given ids, keyed by id.
func (r *Repository) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*Summary, error) {
	out := make(map[primitive.ObjectID]*Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	projection := bson.M{
		"name": 1, "username": 1, "email": 1, "role": 1,
		"phone": 1, "company": 1, "logo": 1,
	}
	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("loading owner summaries: %w", err)
	}
	defer cursor.Close(ctx)

	var summaries []Summary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("decoding owner summaries: %w", err)
	}

	for i := range summaries {
		out[summaries[i].ID] = &summaries[i]
	}
	return out, nil
}
