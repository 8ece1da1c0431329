package apiclient

import (
	"net/url"
	"strconv"
	"time"

	"github.com/example/storefront/internal/money"
)

const RoleAdmin = "admin"

// User is the backend's user profile
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by /signup and /login
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CheckoutProduct is one line of the checkout-session payload. Price is
// numeric; the backend rejects display strings.
type CheckoutProduct struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image"`
}

type CheckoutRequest struct {
	Products []CheckoutProduct `json:"products"`
}

type CheckoutSession struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

type Product struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Image       string       `json:"image"`
	Price       money.Amount `json:"price"`
	Stock       int          `json:"stock"`
	Rating      float64      `json:"rating,omitempty"`
	NumReviews  int          `json:"numReviews,omitempty"`
}

// ProductQuery filters the catalog; zero fields are omitted
type ProductQuery struct {
	Search   string
	Category string
	Page     int
	Limit    int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
	Total    int       `json:"total"`
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type OrderItem struct {
	ProductID string       `json:"productId"`
	Name      string       `json:"name"`
	Price     money.Amount `json:"price"`
	Quantity  int          `json:"quantity"`
	Image     string       `json:"image,omitempty"`
}

type Order struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Items     []OrderItem  `json:"items"`
	Total     money.Amount `json:"total"`
	Paid      bool         `json:"paid"`
	CreatedAt time.Time    `json:"createdAt"`
}

type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}
