package ad

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rcollings/realtyads/internal/email"
	"github.com/rcollings/realtyads/internal/geo"
	"github.com/rcollings/realtyads/internal/user"
)

// Sentinel errors mapped to HTTP classes at the handler boundary.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalidPage   = errors.New("invalid page number")
	ErrNoMatches     = errors.New("no ads found")
	ErrSelfEnquiry   = errors.New("you cannot contact yourself")
)

// Store is the persisted listing collection.
type Store interface {
	Insert(ctx context.Context, a *Ad) (*Ad, error)
	FindBySlug(ctx context.Context, slug string) (*Ad, error)
	FindBySlugAndOwner(ctx context.Context, slug string, owner primitive.ObjectID) (*Ad, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*Ad, error)
	Replace(ctx context.Context, id primitive.ObjectID, a *Ad) (*Ad, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status Status) (*Ad, error)
	SetPublished(ctx context.Context, id primitive.ObjectID, published bool) (*Ad, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	Search(ctx context.Context, f SearchFilter, page, pageSize int) ([]*Ad, int64, error)
	Feed(ctx context.Context, q FeedQuery, page, pageSize int) ([]*Ad, int64, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID, page, pageSize int) ([]*Ad, int64, error)
	Related(ctx context.Context, src *Ad) ([]*Ad, error)
}

// Users is the slice of the user store the listing flows touch.
type Users interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*user.User, error)
	GrantSeller(ctx context.Context, userID, adID primitive.ObjectID) (*user.User, error)
	ToggleWishlist(ctx context.Context, userID, adID primitive.ObjectID) ([]primitive.ObjectID, bool, error)
	AddEnquired(ctx context.Context, userID, adID primitive.ObjectID) (*user.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*user.Summary, error)
}

// Mailer delivers enquiry emails.
type Mailer interface {
	SendContactRequest(req email.ContactRequest) error
}

// Page is one page of a listing result set.
type Page struct {
	Ads         []*Ad `json:"ads"`
	TotalAds    int64 `json:"totalAds"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
}

// Service enforces the listing lifecycle rules and runs the search,
// feed, related, wishlist, and enquiry flows.
type Service struct {
	store    Store
	users    Users
	geocoder geo.Geocoder
	mailer   Mailer
	baseURL  string
	pageSize int

	views viewCounter
}

// NewService creates a listing service. pageSize controls every
// paginated result; baseURL is used to build ad links in emails.
func NewService(store Store, users Users, geocoder geo.Geocoder, mailer Mailer, baseURL string, pageSize int) *Service {
	s := &Service{
		store:    store,
		users:    users,
		geocoder: geocoder,
		mailer:   mailer,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		pageSize: pageSize,
	}
	s.views.store = store
	return s
}

// Create validates the input, geocodes the address, persists the new
// listing with a fresh slug, and grants the creator the Seller role.
// The role and listing-set updates are set-based, so replays are safe.
func (s *Service) Create(ctx context.Context, ownerID primitive.ObjectID, in *Input) (*Ad, *user.User, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	point, err := s.geocoder.Geocode(ctx, strings.TrimSpace(in.Address))
	if err != nil {
		return nil, nil, err
	}

	a := &Ad{PostedBy: ownerID}
	in.apply(a)
	a.Slug = newSlug(a.PropertyType, a.Action, a.Address, a.Price)
	a.Location = NewLocation(point.Lon, point.Lat)
	a.GeocoderRaw = point.Raw

	created, err := s.store.Insert(ctx, a)
	if err != nil {
		return nil, nil, fmt.Errorf("creating ad: %w", err)
	}

	owner, err := s.users.GrantSeller(ctx, ownerID, created.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("granting seller role: %w", err)
	}

	return created, owner, nil
}

// Update replaces the mutable fields of the caller's listing. The lookup
// filters on slug and owner together, so a foreign or missing slug both
// surface as ErrNotFound. The slug is regenerated, so the listing's
// canonical URL changes on every edit.
func (s *Service) Update(ctx context.Context, ownerID primitive.ObjectID, slug string, in *Input) (*Ad, *user.User, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil, &ValidationError{Field: "Slug"}
	}
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	existing, err := s.store.FindBySlugAndOwner(ctx, slug, ownerID)
	if err != nil {
		return nil, nil, err
	}

	point, err := s.geocoder.Geocode(ctx, strings.TrimSpace(in.Address))
	if err != nil {
		return nil, nil, err
	}

	in.apply(existing)
	existing.Slug = newSlug(existing.PropertyType, existing.Action, existing.Address, existing.Price)
	existing.Location = NewLocation(point.Lon, point.Lat)
	existing.GeocoderRaw = point.Raw

	updated, err := s.store.Replace(ctx, existing.ID, existing)
	if err != nil {
		return nil, nil, fmt.Errorf("updating ad: %w", err)
	}

	owner, err := s.users.GrantSeller(ctx, ownerID, updated.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("granting seller role: %w", err)
	}

	return updated, owner, nil
}

// Delete removes the caller's listing. The owner check compares stable
// identifiers; a mismatch is an authorization failure, not a 404.
func (s *Service) Delete(ctx context.Context, callerID primitive.ObjectID, slug string) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return &ValidationError{Field: "Slug"}
	}

	a, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if a.PostedBy != callerID {
		return ErrNotAuthorized
	}

	return s.store.Delete(ctx, a.ID)
}

// UpdateStatus sets the listing's status. Any valid status may follow
// any other. Only the owner may transition their listing.
func (s *Service) UpdateStatus(ctx context.Context, callerID primitive.ObjectID, slug, status string) (*Ad, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, &ValidationError{Field: "Slug"}
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, &ValidationError{Field: "Status"}
	}
	if !ValidStatus(status) {
		return nil, &ValidationError{Field: "Status", Reason: "is invalid"}
	}

	a, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if a.PostedBy != callerID {
		return nil, ErrNotAuthorized
	}

	return s.store.UpdateStatus(ctx, a.ID, Status(status))
}

// TogglePublished flips the publish flag by id. This is an admin
// capability; there is no ownership check. Returns the updated listing
// and the new publish state.
func (s *Service) TogglePublished(ctx context.Context, adID primitive.ObjectID) (*Ad, bool, error) {
	a, err := s.store.FindByID(ctx, adID)
	if err != nil {
		return nil, false, err
	}

	updated, err := s.store.SetPublished(ctx, adID, !a.Published)
	if err != nil {
		return nil, false, err
	}

	return updated, updated.Published, nil
}

// Get returns a listing by slug together with its related listings, with
// owner summaries joined in. The view counter is bumped asynchronously;
// a failed increment never fails the read.
func (s *Service) Get(ctx context.Context, slug string) (*Ad, []*Ad, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil, &ValidationError{Field: "Slug"}
	}

	a, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	related, err := s.store.Related(ctx, a)
	if err != nil {
		return nil, nil, fmt.Errorf("finding related ads: %w", err)
	}

	if err := s.hydrateOwners(ctx, append([]*Ad{a}, related...)); err != nil {
		return nil, nil, err
	}

	s.views.bump(a.ID)

	return a, related, nil
}

// SaleFeed returns a page of published for-sale listings, newest first.
func (s *Service) SaleFeed(ctx context.Context, page int) (*Page, error) {
	return s.feed(ctx, FeedQuery{Action: ActionSale, PublishedOnly: true}, page, true)
}

// RentFeed returns a page of published rental listings, newest first.
func (s *Service) RentFeed(ctx context.Context, page int) (*Page, error) {
	return s.feed(ctx, FeedQuery{Action: ActionRent, PublishedOnly: true}, page, true)
}

// UserAds returns a page of the owner's own listings regardless of
// publish state. Viewing your own dashboard does not bump view counts.
func (s *Service) UserAds(ctx context.Context, ownerID primitive.ObjectID, page int) (*Page, error) {
	return s.feed(ctx, FeedQuery{Owner: ownerID}, page, false)
}

func (s *Service) feed(ctx context.Context, q FeedQuery, page int, countViews bool) (*Page, error) {
	ads, total, err := s.store.Feed(ctx, q, max(page, 1), s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	totalPages := pageCount(total, s.pageSize)
	if page < 1 || page > totalPages {
		return nil, ErrInvalidPage
	}

	if err := s.hydrateOwners(ctx, ads); err != nil {
		return nil, err
	}

	if countViews {
		ids := make([]primitive.ObjectID, len(ads))
		for i, a := range ads {
			ids[i] = a.ID
		}
		s.views.bump(ids...)
	}

	return &Page{Ads: ads, TotalAds: total, TotalPages: totalPages, CurrentPage: page}, nil
}

// SearchRequest holds the client's search parameters. Address is
// required; the remaining filters are optional ("All" means unset).
type SearchRequest struct {
	Address      string `json:"address"`
	Action       string `json:"action"`
	PropertyType string `json:"propertyType"`
	Bedrooms     string `json:"bedrooms"`
	Bathrooms    string `json:"bathrooms"`
	Price        string `json:"price"`
	Page         int    `json:"page"`
}

// Search geocodes the address and returns a page of published listings
// within the fixed radius, newest first. An empty result set is
// reported as ErrNoMatches so callers can answer 404 rather than 200.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*Page, error) {
	if strings.TrimSpace(req.Address) == "" {
		return nil, &ValidationError{Field: "Address"}
	}

	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}

	point, err := s.geocoder.Geocode(ctx, strings.TrimSpace(req.Address))
	if err != nil {
		return nil, err
	}

	filter := SearchFilter{
		Lon:          point.Lon,
		Lat:          point.Lat,
		Action:       strings.TrimSpace(req.Action),
		PropertyType: strings.TrimSpace(req.PropertyType),
		Bedrooms:     strings.TrimSpace(req.Bedrooms),
		Bathrooms:    strings.TrimSpace(req.Bathrooms),
		Price:        strings.TrimSpace(req.Price),
	}

	ads, total, err := s.store.Search(ctx, filter, page, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("searching ads: %w", err)
	}
	if len(ads) == 0 {
		return nil, ErrNoMatches
	}

	return &Page{
		Ads:         ads,
		TotalAds:    total,
		TotalPages:  pageCount(total, s.pageSize),
		CurrentPage: page,
	}, nil
}

// ToggleWishlist adds the ad to the caller's wishlist if absent,
// removes it if present. Returns the resulting set and true when the
// ad was added.
func (s *Service) ToggleWishlist(ctx context.Context, userID, adID primitive.ObjectID) ([]primitive.ObjectID, bool, error) {
	return s.users.ToggleWishlist(ctx, userID, adID)
}

// Wishlist returns a page of the caller's wishlisted listings, newest
// first. An empty wishlist yields an empty page, not an error.
func (s *Service) Wishlist(ctx context.Context, userID primitive.ObjectID, page int) (*Page, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.idSetPage(ctx, u.Wishlist, page)
}

// Enquired returns a page of the listings the caller has enquired
// about. No enquiries is reported as ErrNoMatches.
func (s *Service) Enquired(ctx context.Context, userID primitive.ObjectID, page int) (*Page, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := s.idSetPage(ctx, u.EnquiredProperties, page)
	if err != nil {
		return nil, err
	}
	if len(result.Ads) == 0 {
		return nil, ErrNoMatches
	}
	return result, nil
}

func (s *Service) idSetPage(ctx context.Context, ids []primitive.ObjectID, page int) (*Page, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}

	ads, total, err := s.store.FindByIDs(ctx, ids, page, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching ads by id: %w", err)
	}

	totalPages := pageCount(total, s.pageSize)
	if totalPages > 0 && page > totalPages {
		return nil, ErrInvalidPage
	}

	if err := s.hydrateOwners(ctx, ads); err != nil {
		return nil, err
	}

	return &Page{Ads: ads, TotalAds: total, TotalPages: totalPages, CurrentPage: page}, nil
}

// ContactAgent records the enquiry in the caller's enquired set and
// emails the listing's agent. The outcome of the email delivery is the
// outcome of the operation. Owners cannot enquire about their own
// listings. Returns the ad link included in the email.
func (s *Service) ContactAgent(ctx context.Context, callerID, adID primitive.ObjectID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", &ValidationError{Field: "Message"}
	}

	a, err := s.store.FindByID(ctx, adID)
	if err != nil {
		return "", err
	}
	if a.PostedBy == callerID {
		return "", ErrSelfEnquiry
	}

	agent, err := s.users.FindByID(ctx, a.PostedBy)
	if err != nil {
		return "", fmt.Errorf("loading agent: %w", err)
	}

	caller, err := s.users.AddEnquired(ctx, callerID, a.ID)
	if err != nil {
		return "", fmt.Errorf("recording enquiry: %w", err)
	}

	link := s.baseURL + "/api/get-ad/" + a.Slug
	req := email.ContactRequest{
		AgentEmail: agent.Email,
		AgentName:  agent.Name,
		FromName:   caller.Name,
		FromEmail:  caller.Email,
		FromPhone:  caller.Phone,
		Message:    strings.TrimSpace(message),
		AdTitle:    a.Title,
		AdLink:     link,
	}
	if err := s.mailer.SendContactRequest(req); err != nil {
		return "", fmt.Errorf("sending enquiry email: %w", err)
	}

	return link, nil
}

// FlushViews blocks until all pending view-count increments finish.
// Used by tests and graceful shutdown.
func (s *Service) FlushViews() {
	s.views.wait()
}

// hydrateOwners joins truncated owner profiles onto the given listings.
func (s *Service) hydrateOwners(ctx context.Context, ads []*Ad) error {
	if len(ads) == 0 {
		return nil
	}

	seen := make(map[primitive.ObjectID]bool, len(ads))
	var ids []primitive.ObjectID
	for _, a := range ads {
		if !seen[a.PostedBy] {
			seen[a.PostedBy] = true
			ids = append(ids, a.PostedBy)
		}
	}

	summaries, err := s.users.Summaries(ctx, ids)
	if err != nil {
		return fmt.Errorf("joining owner profiles: %w", err)
	}

	for _, a := range ads {
		a.Owner = summaries[a.PostedBy]
	}
	return nil
}

// pageCount rounds total up to whole pages.
func pageCount(total int64, pageSize int) int {
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
