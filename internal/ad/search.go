package ad

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// earthRadiusKM converts the search radius into radians for
	// $centerSphere spherical geometry.
	earthRadiusKM = 6378.16

	// searchRadiusKM is the fixed radius around the geocoded center.
	searchRadiusKM = 10

	// relatedMaxDistanceMeters bounds the related-listings query.
	relatedMaxDistanceMeters = 100000

	// relatedLimit caps how many related listings are returned.
	relatedLimit = 5

	// priceBandTolerance widens a numeric price into a fuzzy match band.
	priceBandTolerance = 0.2
)

// anyFilter marks a dropdown filter as unset.
const anyFilter = "All"

// SearchFilter holds the resolved center point and the optional field
// filters for a proximity search.
type SearchFilter struct {
	Lon, Lat     float64
	Action       string
	PropertyType string
	Bedrooms     string
	Bathrooms    string
	Price        string
}

// query builds the Mongo filter: a fixed-radius $centerSphere restriction
// plus equality filters for each supplied non-"All" field. A numeric
// price becomes a ±20% band instead of an exact match.
func (f SearchFilter) query() bson.M {
	q := bson.M{
		"location": bson.M{"$geoWithin": bson.M{"$centerSphere": bson.A{
			bson.A{f.Lon, f.Lat},
			float64(searchRadiusKM) / earthRadiusKM,
		}}},
		"published": true,
	}

	if f.Action != "" {
		q["action"] = Action(f.Action)
	}
	if f.PropertyType != "" && f.PropertyType != anyFilter {
		q["propertyType"] = PropertyType(f.PropertyType)
	}
	if f.Bedrooms != "" && f.Bedrooms != anyFilter {
		if n, err := strconv.Atoi(f.Bedrooms); err == nil {
			q["bedrooms"] = n
		}
	}
	if f.Bathrooms != "" && f.Bathrooms != anyFilter {
		if n, err := strconv.Atoi(f.Bathrooms); err == nil {
			q["bathrooms"] = n
		}
	}

	if price, err := strconv.ParseFloat(strings.TrimSpace(f.Price), 64); err == nil {
		q["priceValue"] = bson.M{
			"$gte": price * (1 - priceBandTolerance),
			"$lte": price * (1 + priceBandTolerance),
		}
	}

	return q
}

// FeedQuery selects listings for the paginated feeds.
type FeedQuery struct {
	Action        Action             // zero value = any action
	Owner         primitive.ObjectID // zero value = any owner
	PublishedOnly bool
}

// query builds the Mongo filter for a feed.
func (q FeedQuery) query() bson.M {
	filter := bson.M{}
	if q.Action != "" {
		filter["action"] = q.Action
	}
	if !q.Owner.IsZero() {
		filter["postedBy"] = q.Owner
	}
	if q.PublishedOnly {
		filter["published"] = true
	}
	return filter
}

// relatedPipeline builds the aggregation for listings near src: nearest
// first within 100 km, same action and property type, published only,
// excluding src itself, capped, with the raw geocoder payload dropped.
func relatedPipeline(src *Ad) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":          src.Location,
			"distanceField": "distance",
			"maxDistance":   relatedMaxDistanceMeters,
			"spherical":     true,
		}}},
		{{Key: "$match", Value: bson.M{
			"_id":          bson.M{"$ne": src.ID},
			"action":       src.Action,
			"propertyType": src.PropertyType,
			"published":    true,
		}}},
		{{Key: "$limit", Value: relatedLimit}},
		{{Key: "$project", Value: bson.M{"geocoderRaw": 0}}},
	}
}
