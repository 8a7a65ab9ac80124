// Package user provides the user domain model and data access.
package user

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold. Seller is granted automatically on first
// listing creation.
const (
	RoleBuyer  = "Buyer"
	RoleSeller = "Seller"
	RoleAdmin  = "Admin"
	RoleAuthor = "Author"
)

// User represents an account holder.
type User struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Username           string               `bson:"username" json:"username"`
	Name               string               `bson:"name" json:"name"`
	Email              string               `bson:"email" json:"email"`
	Address            string               `bson:"address,omitempty" json:"address,omitempty"`
	Phone              string               `bson:"phone" json:"phone"`
	Password           string               `bson:"password" json:"-"`
	Role               []string             `bson:"role" json:"role"`
	Photo              json.RawMessage      `bson:"photo,omitempty" json:"photo,omitempty"`
	Logo               json.RawMessage      `bson:"logo,omitempty" json:"logo,omitempty"`
	Company            string               `bson:"company,omitempty" json:"company,omitempty"`
	About              string               `bson:"about,omitempty" json:"about,omitempty"`
	Ads                []primitive.ObjectID `bson:"ads,omitempty" json:"ads,omitempty"`
	EnquiredProperties []primitive.ObjectID `bson:"enquiredProperties,omitempty" json:"enquiredProperties,omitempty"`
	Wishlist           []primitive.ObjectID `bson:"wishlist,omitempty" json:"wishlist,omitempty"`
	CreatedAt          time.Time            `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt          time.Time            `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// IsAdmin returns true if the user holds the Admin role.
func (u *User) IsAdmin() bool {
	for _, r := range u.Role {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// InWishlist returns true if the ad id is in the user's wishlist.
func (u *User) InWishlist(adID primitive.ObjectID) bool {
	for _, id := range u.Wishlist {
		if id == adID {
			return true
		}
	}
	return false
}

// Summary is the truncated owner profile joined onto public listing
// views. Nothing beyond these fields is ever exposed.
type Summary struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Name     string             `bson:"name" json:"name"`
	Username string             `bson:"username" json:"username"`
	Email    string             `bson:"email" json:"email"`
	Role     []string           `bson:"role" json:"role"`
	Phone    string             `bson:"phone" json:"phone"`
	Company  string             `bson:"company,omitempty" json:"company,omitempty"`
	Logo     json.RawMessage    `bson:"logo,omitempty" json:"logo,omitempty"`
}
