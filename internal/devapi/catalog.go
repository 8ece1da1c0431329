package devapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/money"
)

var (
	ErrEmailTaken      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrAlreadyReviewed = errors.New("product already reviewed")
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

type userRecord struct {
	user         apiclient.User
	passwordHash string
}

// Catalog is the in-memory backing data of the development API
type Catalog struct {
	mu sync.RWMutex

	users     map[string]*userRecord
	byEmail   map[string]string
	products  []apiclient.Product
	reviews   map[string][]apiclient.Review
	wishlists map[string][]string
	orders    map[string]*apiclient.Order
	owners    map[string]string // order id -> user id
	sessions  map[string]string // checkout session id -> order id
	messages  []apiclient.ContactMessage

	now func() time.Time
}

func NewCatalog(products []apiclient.Product) *Catalog {
	c := &Catalog{
		users:     make(map[string]*userRecord),
		byEmail:   make(map[string]string),
		reviews:   make(map[string][]apiclient.Review),
		wishlists: make(map[string][]string),
		orders:    make(map[string]*apiclient.Order),
		owners:    make(map[string]string),
		sessions:  make(map[string]string),
		now:       time.Now,
	}
	c.products = append(c.products, products...)
	return c
}

// SeedProducts is the demo home-decor catalog
func SeedProducts() []apiclient.Product {
	item := func(id, name, category, price string, stock int) apiclient.Product {
		return apiclient.Product{
			ID:       id,
			Name:     name,
			Category: category,
			Price:    money.MustParsePrice(price),
			Image:    "/images/" + id + ".jpg",
			Stock:    stock,
		}
	}
	return []apiclient.Product{
		item("p1", "Ceramic Vase", "decor", "$25.00", 40),
		item("p2", "Brass Table Lamp", "lighting", "$89.00", 15),
		item("p3", "Wool Area Rug", "textiles", "$249.99", 6),
		item("p4", "Soy Candle Set", "decor", "$18.50", 120),
		item("p5", "Round Wall Mirror", "decor", "$120.00", 12),
		item("p6", "Linen Throw Pillow", "textiles", "$32.00", 60),
		item("p7", "Oak Wall Clock", "decor", "$54.00", 25),
		item("p8", "Terracotta Planter", "garden", "$22.75", 80),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *Catalog) CreateUser(name, email, passwordHash, role string) (apiclient.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalizeEmail(email)
	if _, exists := c.byEmail[key]; exists {
		return apiclient.User{}, ErrEmailTaken
	}

	u := apiclient.User{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Email:     key,
		Role:      role,
		CreatedAt: c.now().UTC(),
	}
	c.users[u.ID] = &userRecord{user: u, passwordHash: passwordHash}
	c.byEmail[key] = u.ID
	return u, nil
}

// Credentials returns the user and password hash for email
func (c *Catalog) Credentials(email string) (apiclient.User, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byEmail[normalizeEmail(email)]
	if !ok {
		return apiclient.User{}, "", ErrUserNotFound
	}
	rec := c.users[id]
	return rec.user, rec.passwordHash, nil
}

func (c *Catalog) User(id string) (apiclient.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.users[id]
	if !ok {
		return apiclient.User{}, ErrUserNotFound
	}
	return rec.user, nil
}

func (c *Catalog) ListProducts(q apiclient.ProductQuery) apiclient.ProductPage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	var matched []apiclient.Product
	for _, p := range c.products {
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		matched = append(matched, p)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	total := len(matched)
	pages := (total + limit - 1) / limit
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	products := make([]apiclient.Product, end-start)
	copy(products, matched[start:end])
	return apiclient.ProductPage{Products: products, Page: page, Pages: pages, Total: total}
}

func (c *Catalog) Product(id string) (apiclient.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.productLocked(id)
}

func (c *Catalog) productLocked(id string) (apiclient.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return apiclient.Product{}, ErrProductNotFound
}

func (c *Catalog) Reviews(productID string) ([]apiclient.Review, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := c.productLocked(productID); err != nil {
		return nil, err
	}
	out := make([]apiclient.Review, len(c.reviews[productID]))
	copy(out, c.reviews[productID])
	return out, nil
}

// AddReview records one review per user and product and refreshes the product rating
func (c *Catalog) AddReview(productID string, user apiclient.User, in apiclient.ReviewInput) (apiclient.Review, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, p := range c.products {
		if p.ID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apiclient.Review{}, ErrProductNotFound
	}
	for _, r := range c.reviews[productID] {
		if r.UserID == user.ID {
			return apiclient.Review{}, ErrAlreadyReviewed
		}
	}

	review := apiclient.Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    user.ID,
		UserName:  user.Name,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: c.now().UTC(),
	}
	c.reviews[productID] = append(c.reviews[productID], review)

	sum := 0
	for _, r := range c.reviews[productID] {
		sum += r.Rating
	}
	n := len(c.reviews[productID])
	c.products[idx].NumReviews = n
	c.products[idx].Rating = float64(sum) / float64(n)
	return review, nil
}

func (c *Catalog) Wishlist(userID string) []apiclient.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wishlistLocked(userID)
}

func (c *Catalog) wishlistLocked(userID string) []apiclient.Product {
	out := make([]apiclient.Product, 0, len(c.wishlists[userID]))
	for _, id := range c.wishlists[userID] {
		if p, err := c.productLocked(id); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// AddToWishlist is idempotent
func (c *Catalog) AddToWishlist(userID, productID string) ([]apiclient.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.productLocked(productID); err != nil {
		return nil, err
	}
	for _, id := range c.wishlists[userID] {
		if id == productID {
			return c.wishlistLocked(userID), nil
		}
	}
	c.wishlists[userID] = append(c.wishlists[userID], productID)
	return c.wishlistLocked(userID), nil
}

func (c *Catalog) RemoveFromWishlist(userID, productID string) []apiclient.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.wishlists[userID][:0]
	for _, id := range c.wishlists[userID] {
		if id != productID {
			kept = append(kept, id)
		}
	}
	c.wishlists[userID] = kept
	return c.wishlistLocked(userID)
}

// CreatePendingOrder records an unpaid order behind a new checkout session id
func (c *Catalog) CreatePendingOrder(userID string, lines []apiclient.CheckoutProduct) (sessionID string, order apiclient.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]apiclient.OrderItem, 0, len(lines))
	total := money.Zero()
	for _, l := range lines {
		price := money.FromFloat(l.Price)
		items = append(items, apiclient.OrderItem{
			ProductID: l.ID,
			Name:      l.Name,
			Price:     price,
			Quantity:  l.Quantity,
			Image:     l.Image,
		})
		total = total.Add(price.Mul(l.Quantity))
	}

	order = apiclient.Order{
		ID:        uuid.New().String(),
		Status:    "pending",
		Items:     items,
		Total:     total,
		CreatedAt: c.now().UTC(),
	}
	sessionID = "cs_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	stored := order
	c.orders[order.ID] = &stored
	c.owners[order.ID] = userID
	c.sessions[sessionID] = order.ID
	return sessionID, order
}

// MarkPaid completes the order behind a checkout session
func (c *Catalog) MarkPaid(sessionID string) (apiclient.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	orderID, ok := c.sessions[sessionID]
	if !ok {
		return apiclient.Order{}, ErrOrderNotFound
	}
	o := c.orders[orderID]
	o.Paid = true
	o.Status = "paid"
	return *o, nil
}

// OrdersFor returns the user's orders, newest first
func (c *Catalog) OrdersFor(userID string) []apiclient.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []apiclient.Order{}
	for id, owner := range c.owners {
		if owner == userID && userID != "" {
			out = append(out, *c.orders[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Order returns the order if userID owns it or isAdmin is set
func (c *Catalog) Order(id, userID string, isAdmin bool) (apiclient.Order, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	o, ok := c.orders[id]
	if !ok || (!isAdmin && c.owners[id] != userID) {
		return apiclient.Order{}, ErrOrderNotFound
	}
	return *o, nil
}

func (c *Catalog) AddMessage(msg apiclient.ContactMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *Catalog) Messages() []apiclient.ContactMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]apiclient.ContactMessage, len(c.messages))
	copy(out, c.messages)
	return out
}
