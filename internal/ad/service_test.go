package ad

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rcollings/realtyads/internal/email"
	"github.com/rcollings/realtyads/internal/geo"
	"github.com/rcollings/realtyads/internal/user"
)

type fakeStore struct {
	ads map[primitive.ObjectID]*Ad

	mu      sync.Mutex
	views   map[primitive.ObjectID]int
	deleted []primitive.ObjectID

	feedAds     []*Ad
	feedTotal   int64
	lastFeed    FeedQuery
	searchAds   []*Ad
	searchTotal int64
	lastSearch  SearchFilter
	related     []*Ad
	idAds       []*Ad
	idTotal     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ads:   make(map[primitive.ObjectID]*Ad),
		views: make(map[primitive.ObjectID]int),
	}
}

func (f *fakeStore) add(a *Ad) *Ad {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	f.ads[a.ID] = a
	return a
}

func (f *fakeStore) Insert(ctx context.Context, a *Ad) (*Ad, error) {
	return f.add(a), nil
}

func (f *fakeStore) FindBySlug(ctx context.Context, slug string) (*Ad, error) {
	for _, a := range f.ads {
		if a.Slug == slug {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) FindBySlugAndOwner(ctx context.Context, slug string, owner primitive.ObjectID) (*Ad, error) {
	a, err := f.FindBySlug(ctx, slug)
	if err != nil || a.PostedBy != owner {
		return nil, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id primitive.ObjectID) (*Ad, error) {
	a, ok := f.ads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) Replace(ctx context.Context, id primitive.ObjectID, a *Ad) (*Ad, error) {
	if _, ok := f.ads[id]; !ok {
		return nil, ErrNotFound
	}
	a.ID = id
	f.ads[id] = a
	return a, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, status Status) (*Ad, error) {
	a, ok := f.ads[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Status = status
	return a, nil
}

func (f *fakeStore) SetPublished(ctx context.Context, id primitive.ObjectID, published bool) (*Ad, error) {
	a, ok := f.ads[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Published = published
	return a, nil
}

func (f *fakeStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := f.ads[id]; !ok {
		return ErrNotFound
	}
	delete(f.ads, id)
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[id]++
	return nil
}

func (f *fakeStore) viewCount(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[id]
}

func (f *fakeStore) Search(ctx context.Context, filter SearchFilter, page, pageSize int) ([]*Ad, int64, error) {
	f.lastSearch = filter
	return f.searchAds, f.searchTotal, nil
}

func (f *fakeStore) Feed(ctx context.Context, q FeedQuery, page, pageSize int) ([]*Ad, int64, error) {
	f.lastFeed = q
	return f.feedAds, f.feedTotal, nil
}

func (f *fakeStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID, page, pageSize int) ([]*Ad, int64, error) {
	return f.idAds, f.idTotal, nil
}

func (f *fakeStore) Related(ctx context.Context, src *Ad) ([]*Ad, error) {
	return f.related, nil
}

type fakeUsers struct {
	users        map[primitive.ObjectID]*user.User
	sellerGrants []primitive.ObjectID
	enquired     []primitive.ObjectID
}

func newFakeUsers(us ...*user.User) *fakeUsers {
	f := &fakeUsers{users: make(map[primitive.ObjectID]*user.User)}
	for _, u := range us {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GrantSeller(ctx context.Context, userID, adID primitive.ObjectID) (*user.User, error) {
	u, err := f.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.sellerGrants = append(f.sellerGrants, adID)
	return u, nil
}

func (f *fakeUsers) ToggleWishlist(ctx context.Context, userID, adID primitive.ObjectID) ([]primitive.ObjectID, bool, error) {
	u, err := f.FindByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	for i, id := range u.Wishlist {
		if id == adID {
			u.Wishlist = append(u.Wishlist[:i], u.Wishlist[i+1:]...)
			return u.Wishlist, false, nil
		}
	}
	u.Wishlist = append(u.Wishlist, adID)
	return u.Wishlist, true, nil
}

func (f *fakeUsers) AddEnquired(ctx context.Context, userID, adID primitive.ObjectID) (*user.User, error) {
	u, err := f.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.enquired = append(f.enquired, adID)
	return u, nil
}

func (f *fakeUsers) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*user.Summary, error) {
	out := make(map[primitive.ObjectID]*user.Summary)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = &user.Summary{ID: u.ID, Name: u.Name, Email: u.Email}
		}
	}
	return out, nil
}

type fakeGeocoder struct {
	result    *geo.Result
	err       error
	addresses []string
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (*geo.Result, error) {
	f.addresses = append(f.addresses, address)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeMailer struct {
	sent []email.ContactRequest
	err  error
}

func (f *fakeMailer) SendContactRequest(req email.ContactRequest) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req)
	return nil
}

type serviceFixture struct {
	svc      *Service
	store    *fakeStore
	users    *fakeUsers
	geocoder *fakeGeocoder
	mailer   *fakeMailer
	owner    *user.User
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	owner := &user.User{
		ID:    primitive.NewObjectID(),
		Name:  "Rita Collings",
		Email: "rita@example.com",
		Phone: "0400000000",
	}

	f := &serviceFixture{
		store:    newFakeStore(),
		users:    newFakeUsers(owner),
		geocoder: &fakeGeocoder{result: &geo.Result{Lon: 151.17, Lat: -33.89}},
		mailer:   &fakeMailer{},
		owner:    owner,
	}
	f.svc = NewService(f.store, f.users, f.geocoder, f.mailer, "https://realtyads.example.com", 2)
	return f
}

func (f *serviceFixture) seedAd(t *testing.T, owner primitive.ObjectID) *Ad {
	t.Helper()

	a := &Ad{
		Address:      "22 Station St, Newtown NSW 2042",
		PropertyType: PropertyHouse,
		Action:       ActionSale,
		Price:        "950000",
		Title:        "Renovated terrace in Newtown",
		Slug:         newSlug(PropertyHouse, ActionSale, "22 Station St", "950000"),
		PostedBy:     owner,
		Published:    true,
		Location:     NewLocation(151.17, -33.89),
	}
	return f.store.add(a)
}

func TestCreateAd(t *testing.T) {
	f := newServiceFixture(t)

	created, owner, err := f.svc.Create(context.Background(), f.owner.ID, validInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID.IsZero() {
		t.Error("expected a persisted id")
	}
	if !strings.HasPrefix(created.Slug, "house-for-sale-address-") {
		t.Errorf("unexpected slug: %q", created.Slug)
	}
	if created.Location.Type != "Point" || created.Location.Coordinates[0] != 151.17 {
		t.Errorf("location not set from geocoder: %+v", created.Location)
	}
	if created.PostedBy != f.owner.ID {
		t.Error("listing not attributed to the creator")
	}
	if owner.ID != f.owner.ID {
		t.Error("expected the creator profile back")
	}
	if len(f.users.sellerGrants) != 1 || f.users.sellerGrants[0] != created.ID {
		t.Errorf("seller grant not recorded: %v", f.users.sellerGrants)
	}
}

func TestCreateAdInvalidInputSkipsGeocoding(t *testing.T) {
	f := newServiceFixture(t)

	in := validInput()
	in.Address = ""

	_, _, err := f.svc.Create(context.Background(), f.owner.ID, in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.geocoder.addresses) != 0 {
		t.Error("geocoder must not be called for invalid input")
	}
}

func TestCreateAdGeocodeFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.geocoder.err = geo.ErrInvalidAddress

	_, _, err := f.svc.Create(context.Background(), f.owner.ID, validInput())
	if !errors.Is(err, geo.ErrInvalidAddress) {
		t.Fatalf("expected geocoder error to surface, got %v", err)
	}
}

func TestUpdateAdRegeneratesSlug(t *testing.T) {
	f := newServiceFixture(t)
	existing := f.seedAd(t, f.owner.ID)
	oldSlug := existing.Slug

	updated, _, err := f.svc.Update(context.Background(), f.owner.ID, oldSlug, validInput())
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Slug == oldSlug {
		t.Error("expected a fresh slug after update")
	}
	if updated.ID != existing.ID {
		t.Error("update must keep the listing id")
	}
}

func TestUpdateAdForeignSlug(t *testing.T) {
	f := newServiceFixture(t)
	stranger := primitive.NewObjectID()
	a := f.seedAd(t, stranger)

	_, _, err := f.svc.Update(context.Background(), f.owner.ID, a.Slug, validInput())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("a foreign slug must look like a missing listing, got %v", err)
	}
}

func TestDeleteAdOwnership(t *testing.T) {
	f := newServiceFixture(t)
	stranger := primitive.NewObjectID()
	a := f.seedAd(t, stranger)

	err := f.svc.Delete(context.Background(), f.owner.ID, a.Slug)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if len(f.store.deleted) != 0 {
		t.Error("nothing should be deleted on an ownership mismatch")
	}

	mine := f.seedAd(t, f.owner.ID)
	if err := f.svc.Delete(context.Background(), f.owner.ID, mine.Slug); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if len(f.store.deleted) != 1 || f.store.deleted[0] != mine.ID {
		t.Errorf("unexpected deletions: %v", f.store.deleted)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)

	updated, err := f.svc.UpdateStatus(context.Background(), f.owner.ID, a.Slug, "Sold")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != StatusSold {
		t.Errorf("status = %q", updated.Status)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), f.owner.ID, a.Slug, "Vanished"); err == nil {
		t.Error("unknown status must be rejected")
	}

	stranger := primitive.NewObjectID()
	if _, err := f.svc.UpdateStatus(context.Background(), stranger, updated.Slug, "In Market"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for non-owner, got %v", err)
	}
}

func TestTogglePublished(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)

	_, published, err := f.svc.TogglePublished(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("TogglePublished failed: %v", err)
	}
	if published {
		t.Error("expected the published listing to be unpublished")
	}

	_, published, err = f.svc.TogglePublished(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("TogglePublished failed: %v", err)
	}
	if !published {
		t.Error("expected the second toggle to republish")
	}
}

func TestGetAd(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)
	rel := f.seedAd(t, f.owner.ID)
	f.store.related = []*Ad{rel}

	got, related, err := f.svc.Get(context.Background(), a.Slug)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != a.ID {
		t.Error("wrong listing returned")
	}
	if len(related) != 1 || related[0].ID != rel.ID {
		t.Errorf("related = %v", related)
	}
	if got.Owner == nil || got.Owner.Name != f.owner.Name {
		t.Errorf("owner profile not joined: %+v", got.Owner)
	}
	if related[0].Owner == nil {
		t.Error("related listings must carry owner profiles too")
	}

	f.svc.FlushViews()
	if f.store.viewCount(a.ID) != 1 {
		t.Errorf("expected one view, got %d", f.store.viewCount(a.ID))
	}
}

func TestConcurrentViewsAreAllCounted(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)

	const readers = 50
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.svc.Get(context.Background(), a.Slug); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()
	f.svc.FlushViews()

	if got := f.store.viewCount(a.ID); got != readers {
		t.Errorf("views = %d, want %d (no increment may be lost)", got, readers)
	}
}

func TestGetAdUnknownSlug(t *testing.T) {
	f := newServiceFixture(t)
	if _, _, err := f.svc.Get(context.Background(), "no-such-slug"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaleFeed(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)
	f.store.feedAds = []*Ad{a}
	f.store.feedTotal = 3

	page, err := f.svc.SaleFeed(context.Background(), 2)
	if err != nil {
		t.Fatalf("SaleFeed failed: %v", err)
	}
	if f.store.lastFeed.Action != ActionSale || !f.store.lastFeed.PublishedOnly {
		t.Errorf("feed query = %+v", f.store.lastFeed)
	}
	if page.TotalAds != 3 || page.TotalPages != 2 || page.CurrentPage != 2 {
		t.Errorf("page meta = %+v", page)
	}
	if page.Ads[0].Owner == nil {
		t.Error("feed listings must carry owner profiles")
	}

	f.svc.FlushViews()
	if f.store.viewCount(a.ID) != 1 {
		t.Error("browsing a feed counts a view per listing")
	}
}

func TestFeedPageOutOfRange(t *testing.T) {
	f := newServiceFixture(t)
	f.store.feedTotal = 3 // two pages at size 2

	if _, err := f.svc.RentFeed(context.Background(), 3); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage for page past the end, got %v", err)
	}
	if _, err := f.svc.RentFeed(context.Background(), 0); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage for page zero, got %v", err)
	}
}

func TestUserAdsDoesNotCountViews(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)
	f.store.feedAds = []*Ad{a}
	f.store.feedTotal = 1

	if _, err := f.svc.UserAds(context.Background(), f.owner.ID, 1); err != nil {
		t.Fatalf("UserAds failed: %v", err)
	}
	if f.store.lastFeed.Owner != f.owner.ID {
		t.Errorf("feed query = %+v", f.store.lastFeed)
	}
	if f.store.lastFeed.PublishedOnly {
		t.Error("a seller sees their unpublished listings")
	}

	f.svc.FlushViews()
	if f.store.viewCount(a.ID) != 0 {
		t.Error("viewing your own dashboard must not count views")
	}
}

func TestSearch(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)
	f.store.searchAds = []*Ad{a}
	f.store.searchTotal = 1

	page, err := f.svc.Search(context.Background(), SearchRequest{
		Address:  "Newtown NSW",
		Action:   "Sale",
		Bedrooms: "3",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.CurrentPage != 1 || page.TotalPages != 1 {
		t.Errorf("page meta = %+v", page)
	}
	if f.store.lastSearch.Lon != 151.17 || f.store.lastSearch.Lat != -33.89 {
		t.Errorf("search not centered on the geocoded point: %+v", f.store.lastSearch)
	}
	if f.store.lastSearch.Bedrooms != "3" {
		t.Errorf("filters not forwarded: %+v", f.store.lastSearch)
	}
}

func TestSearchNoAddress(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Search(context.Background(), SearchRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "Address" {
		t.Fatalf("expected Address validation error, got %v", err)
	}
}

func TestSearchNoMatches(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.svc.Search(context.Background(), SearchRequest{Address: "Nowhere"}); !errors.Is(err, ErrNoMatches) {
		t.Fatalf("expected ErrNoMatches, got %v", err)
	}
}

func TestToggleWishlistRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, primitive.NewObjectID())

	ids, added, err := f.svc.ToggleWishlist(context.Background(), f.owner.ID, a.ID)
	if err != nil || !added {
		t.Fatalf("first toggle should add: ids=%v added=%v err=%v", ids, added, err)
	}
	if len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("wishlist = %v", ids)
	}

	ids, added, err = f.svc.ToggleWishlist(context.Background(), f.owner.ID, a.ID)
	if err != nil || added {
		t.Fatalf("second toggle should remove: added=%v err=%v", added, err)
	}
	if len(ids) != 0 {
		t.Errorf("wishlist not emptied: %v", ids)
	}
}

func TestWishlistEmptyIsOK(t *testing.T) {
	f := newServiceFixture(t)

	page, err := f.svc.Wishlist(context.Background(), f.owner.ID, 1)
	if err != nil {
		t.Fatalf("empty wishlist must not error: %v", err)
	}
	if page.TotalAds != 0 || len(page.Ads) != 0 {
		t.Errorf("page = %+v", page)
	}
}

func TestEnquiredEmptyIsNoMatches(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.svc.Enquired(context.Background(), f.owner.ID, 1); !errors.Is(err, ErrNoMatches) {
		t.Fatalf("expected ErrNoMatches, got %v", err)
	}
}

func TestContactAgent(t *testing.T) {
	f := newServiceFixture(t)

	agent := &user.User{ID: primitive.NewObjectID(), Name: "Sam Agent", Email: "sam@example.com"}
	f.users.users[agent.ID] = agent
	a := f.seedAd(t, agent.ID)

	link, err := f.svc.ContactAgent(context.Background(), f.owner.ID, a.ID, "Is this still available?")
	if err != nil {
		t.Fatalf("ContactAgent failed: %v", err)
	}
	if link != "https://realtyads.example.com/api/get-ad/"+a.Slug {
		t.Errorf("link = %q", link)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(f.mailer.sent))
	}
	sent := f.mailer.sent[0]
	if sent.AgentEmail != agent.Email || sent.FromEmail != f.owner.Email {
		t.Errorf("email = %+v", sent)
	}
	if sent.AdLink != link || sent.AdTitle != a.Title {
		t.Errorf("email = %+v", sent)
	}

	if len(f.users.enquired) != 1 || f.users.enquired[0] != a.ID {
		t.Errorf("enquiry not recorded: %v", f.users.enquired)
	}
}

func TestContactAgentSelfEnquiry(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, f.owner.ID)

	if _, err := f.svc.ContactAgent(context.Background(), f.owner.ID, a.ID, "hi"); !errors.Is(err, ErrSelfEnquiry) {
		t.Fatalf("expected ErrSelfEnquiry, got %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Error("no email should be sent for a self enquiry")
	}
}

func TestContactAgentMailFailure(t *testing.T) {
	f := newServiceFixture(t)

	agent := &user.User{ID: primitive.NewObjectID(), Name: "Sam Agent", Email: "sam@example.com"}
	f.users.users[agent.ID] = agent
	a := f.seedAd(t, agent.ID)

	f.mailer.err = errors.New("smtp down")
	if _, err := f.svc.ContactAgent(context.Background(), f.owner.ID, a.ID, "hello"); err == nil {
		t.Fatal("a failed delivery must fail the enquiry")
	}
}

func TestContactAgentEmptyMessage(t *testing.T) {
	f := newServiceFixture(t)
	a := f.seedAd(t, primitive.NewObjectID())

	_, err := f.svc.ContactAgent(context.Background(), f.owner.ID, a.ID, "   ")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
