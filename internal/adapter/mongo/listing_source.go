package mongo

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/entity"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	listingsCollectionName = "listings"
	earthRadiusKm          = 6378.1
	defaultRadiusKm        = 10.0
)

// Listing-only filter keys understood next to the common feed filters.
const (
	FilterCity     = "city"
	FilterDistrict = "district"
	FilterMinPrice = "minPrice"
	FilterMaxPrice = "maxPrice"
	FilterRooms    = "rooms"
	FilterStatus   = "status"
)

type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type listingDocument struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	OwnerID     string               `bson:"owner_id"`
	Title       string               `bson:"title"`
	Description string               `bson:"description"`
	City        string               `bson:"city"`
	District    string               `bson:"district"`
	Price       float64              `bson:"price"`
	Rooms       int                  `bson:"rooms"`
	Status      entity.ListingStatus `bson:"status"`
	Location    *geoPoint            `bson:"location,omitempty"`
	Photos      []string             `bson:"photos,omitempty"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func toListingEntity(d *listingDocument) entity.Listing {
	l := entity.Listing{
		ID:          d.ID.Hex(),
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		Description: d.Description,
		City:        d.City,
		District:    d.District,
		Price:       d.Price,
		Rooms:       d.Rooms,
		Status:      d.Status,
		Photos:      d.Photos,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Location != nil && len(d.Location.Coordinates) == 2 {
		l.Location = &entity.Location{Longitude: d.Location.Coordinates[0], Latitude: d.Location.Coordinates[1]}
	}
	return l
}

func toListingDocument(l entity.Listing) (*listingDocument, error) {
	doc := &listingDocument{
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		Description: l.Description,
		City:        l.City,
		District:    l.District,
		Price:       l.Price,
		Rooms:       l.Rooms,
		Status:      l.Status,
		Photos:      l.Photos,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.ID != "" {
		id, err := primitive.ObjectIDFromHex(l.ID)
		if err != nil {
			return nil, fmt.Errorf("toListingDocument: invalid ID format '%s': %w", l.ID, err)
		}
		doc.ID = id
	}
	if l.Location != nil {
		doc.Location = &geoPoint{Type: "Point", Coordinates: []float64{l.Location.Longitude, l.Location.Latitude}}
	}
	return doc, nil
}

// ListingSource serves the properties feed straight from a listings
// collection, paging with skip/limit.
type ListingSource struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

var _ feed.Source[entity.Listing] = (*ListingSource)(nil)

func NewListingSource(db *mongo.Database, collection string, log *logger.Logger) *ListingSource {
	if collection == "" {
		collection = listingsCollectionName
	}
	return &ListingSource{
		collection: db.Collection(collection),
		logger:     log.Named("mongo").With(zap.String("collection", collection)),
	}
}

func (s *ListingSource) Fetch(ctx context.Context, q feed.Query) (feed.Page[entity.Listing], error) {
	q = q.Normalize(feed.DefaultPageSize)

	filter, err := buildListingFilter(q.Filters)
	if err != nil {
		return feed.Page[entity.Listing]{}, &feed.ServerError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	sort, err := buildListingSort(q.Filters)
	if err != nil {
		return feed.Page[entity.Listing]{}, &feed.ServerError{Status: http.StatusBadRequest, Message: err.Error()}
	}

	findOptions := options.Find().
		SetSkip(int64((q.Page - 1) * q.PageSize)).
		SetLimit(int64(q.PageSize)).
		SetSort(sort)

	cursor, err := s.collection.Find(ctx, filter, findOptions)
	if err != nil {
		s.logger.Warn("Listing query failed", zap.Error(err))
		return feed.Page[entity.Listing]{}, &feed.NetworkError{Op: "mongo find listings", Err: err}
	}
	defer cursor.Close(ctx)

	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return feed.Page[entity.Listing]{}, &feed.NetworkError{Op: "mongo decode listings", Err: err}
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return feed.Page[entity.Listing]{}, &feed.NetworkError{Op: "mongo count listings", Err: err}
	}

	data := make([]entity.Listing, 0, len(docs))
	for i := range docs {
		data = append(data, toListingEntity(&docs[i]))
	}
	return newPage(data, int(total), q), nil
}

// Insert stores listings, mostly for seeding a local marketplace.
func (s *ListingSource) Insert(ctx context.Context, listings ...entity.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(listings))
	for _, l := range listings {
		doc, err := toListingDocument(l)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert listings: %w", err)
	}
	return nil
}

func newPage(data []entity.Listing, total int, q feed.Query) feed.Page[entity.Listing] {
	totalPages := 0
	if q.PageSize > 0 {
		totalPages = (total + q.PageSize - 1) / q.PageSize
	}
	return feed.Page[entity.Listing]{
		Data:        data,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNextPage: q.Page < totalPages,
	}
}

func buildListingFilter(filters map[string]string) (bson.M, error) {
	query := bson.M{}

	if v := filters[FilterCity]; v != "" {
		query["city"] = v
	}
	if v := filters[FilterDistrict]; v != "" {
		query["district"] = v
	}
	if v := filters[FilterStatus]; v != "" {
		query["status"] = v
	}
	if v := filters[feed.FilterSearch]; v != "" {
		query["$text"] = bson.M{"$search": v}
	}

	price := bson.M{}
	if v := filters[FilterMinPrice]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid %s %q", FilterMinPrice, v)
		}
		price["$gte"] = f
	}
	if v := filters[FilterMaxPrice]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid %s %q", FilterMaxPrice, v)
		}
		price["$lte"] = f
	}
	if len(price) > 0 {
		query["price"] = price
	}

	if v := filters[FilterRooms]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", FilterRooms, v)
		}
		query["rooms"] = bson.M{"$gte": n}
	}

	if v := filters[feed.FilterLocation]; v != "" {
		lat, lng, err := parseLatLng(v)
		if err != nil {
			return nil, err
		}
		radius := defaultRadiusKm
		if r := filters[feed.FilterRadius]; r != "" {
			radius, err = strconv.ParseFloat(r, 64)
			if err != nil || radius <= 0 {
				return nil, fmt.Errorf("invalid %s %q", feed.FilterRadius, r)
			}
		}
		query["location"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{lng, lat}, radius / earthRadiusKm},
			},
		}
	}
	return query, nil
}

// buildListingSort maps sortBy/sortDirection onto a sort document. Distance
// ordering needs $geoNear, which cannot be paged with a plain count, so it
// falls back to newest first.
func buildListingSort(filters map[string]string) (bson.D, error) {
	dir := -1
	switch strings.ToLower(filters[feed.FilterSortDirection]) {
	case "", "desc":
	case "asc":
		dir = 1
	default:
		return nil, fmt.Errorf("invalid %s %q", feed.FilterSortDirection, filters[feed.FilterSortDirection])
	}

	var field string
	switch filters[feed.FilterSortBy] {
	case "", "distance", "createdAt", "date":
		field = "created_at"
	case "price":
		field = "price"
	case "rooms":
		field = "rooms"
	default:
		return nil, fmt.Errorf("invalid %s %q", feed.FilterSortBy, filters[feed.FilterSortBy])
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}, nil
}

func parseLatLng(v string) (float64, float64, error) {
	latStr, lngStr, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid %s %q, want lat,lng", feed.FilterLocation, v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude in %q", v)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("invalid longitude in %q", v)
	}
	return lat, lng, nil
}
