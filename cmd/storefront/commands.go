package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/logger"
)

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"cart", "cart [show|add <id> [qty]|remove <id>|update <id> <qty>|clear]", "Show or change the cart", runCart},
	{"auth", "auth [status|signin <email> <password>|signup <name> <email> <password>|logout]", "Manage the session", runAuth},
	{"profile", "profile", "Show the signed-in user", runProfile},
	{"checkout", "checkout", "Create a payment session for the cart", runCheckout},
	{"order-complete", "order-complete", "Finish an order after payment (clears the cart)", runOrderComplete},
	{"catalog", "catalog [list [-search s] [-category c] [-page n] [-limit n]|show <id>]", "Browse products", runCatalog},
	{"wishlist", "wishlist [show|add <id>|remove <id>]", "Show or change the wishlist", runWishlist},
	{"reviews", "reviews <product-id>", "List reviews for a product", runReviews},
	{"review", "review <product-id> <rating> [comment]", "Review a product", runReview},
	{"orders", "orders [id]", "List your orders or show one", runOrders},
	{"contact", "contact <name> <email> <message>", "Send a message to the store", runContact},
	{"events", "events tail", "Print activity events from Kafka", runEvents},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 {
		return def, nil
	}
	return args[0], args[1:]
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, usagef("quantity must be a number, got %q", s)
	}
	if err := cart.ValidateQuantity(n); err != nil {
		return 0, err
	}
	return n, nil
}

// Cart

func runCart(ctx context.Context, e *env, args []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	sub, args := subcommand(args, "show")

	switch sub {
	case "show":
	case "add":
		if len(args) < 1 || len(args) > 2 {
			return usagef("cart add needs a product id")
		}
		qty := 1
		if len(args) == 2 {
			if qty, err = parseQuantity(args[1]); err != nil {
				return err
			}
		}
		p, err := a.API.GetProduct(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.Cart.AddToCart(ctx, cart.LineItem{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Image:    p.Image,
			Quantity: qty,
		}); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Added %s to cart\n", p.Name)
	case "remove":
		if len(args) != 1 {
			return usagef("cart remove needs a product id")
		}
		if err := a.Cart.RemoveFromCart(ctx, args[0]); err != nil {
			return err
		}
	case "update":
		if len(args) != 2 {
			return usagef("cart update needs a product id and a quantity")
		}
		qty, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		if err := a.Cart.UpdateQuantity(ctx, args[0], qty); err != nil {
			return err
		}
	case "clear":
		if err := a.Cart.ClearCart(ctx); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Cart cleared")
		return nil
	default:
		return usagef("unknown cart command %q", sub)
	}

	printCart(e.out, a.Cart.State())
	return nil
}

func printCart(w io.Writer, st cart.State) {
	if len(st.CartItems) == 0 {
		fmt.Fprintln(w, "Your cart is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY\tLINE TOTAL")
	for _, item := range st.CartItems {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", item.ID, item.Name, item.Price, item.Quantity, item.LineTotal())
	}
	tw.Flush()
	fmt.Fprintf(w, "Total: %s\n", st.TotalAmount)
}

// Session

func runAuth(ctx context.Context, e *env, args []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	sub, args := subcommand(args, "status")

	switch sub {
	case "status":
		if !a.Session.IsAuthenticated() {
			fmt.Fprintln(e.out, "Not signed in")
			return nil
		}
		user, err := a.Profile.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Signed in as %s <%s> (%s)\n", user.Name, user.Email, user.Role)
	case "signin":
		if len(args) != 2 {
			return usagef("auth signin needs an email and a password")
		}
		if err := a.Session.SignIn(ctx, apiclient.Credentials{Email: args[0], Password: args[1]}); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Signed in as %s\n", a.Session.User().Email)
	case "signup":
		if len(args) != 3 {
			return usagef("auth signup needs a name, an email and a password")
		}
		if err := a.Session.SignUp(ctx, apiclient.SignUpRequest{Name: args[0], Email: args[1], Password: args[2]}); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Welcome, %s\n", a.Session.User().Name)
	case "logout":
		if err := a.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Signed out")
	default:
		return usagef("unknown auth command %q", sub)
	}
	return nil
}

func runProfile(ctx context.Context, e *env, _ []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	user, err := a.Profile.Get(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", user.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", user.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", user.Role)
	if user.Phone != "" {
		fmt.Fprintf(tw, "Phone:\t%s\n", user.Phone)
	}
	if user.Address != "" {
		fmt.Fprintf(tw, "Address:\t%s\n", user.Address)
	}
	return tw.Flush()
}

// Checkout

func runCheckout(ctx context.Context, e *env, _ []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	_, err = a.Checkout.Checkout(ctx)
	return err
}

func runOrderComplete(ctx context.Context, e *env, _ []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	if err := a.Checkout.CompleteOrder(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Thank you for your order")
	return nil
}

// Catalog

func runCatalog(ctx context.Context, e *env, args []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	sub, args := subcommand(args, "list")

	switch sub {
	case "list":
		fs := flag.NewFlagSet("catalog list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var q apiclient.ProductQuery
		fs.StringVar(&q.Search, "search", "", "")
		fs.StringVar(&q.Category, "category", "", "")
		fs.IntVar(&q.Page, "page", 0, "")
		fs.IntVar(&q.Limit, "limit", 0, "")
		if err := fs.Parse(args); err != nil {
			return usagef("%v", err)
		}
		page, err := a.API.ListProducts(ctx, q)
		if err != nil {
			return err
		}
		printProducts(e.out, page.Products)
		fmt.Fprintf(e.out, "Page %d of %d (%d products)\n", page.Page, page.Pages, page.Total)
	case "show":
		if len(args) != 1 {
			return usagef("catalog show needs a product id")
		}
		p, err := a.API.GetProduct(ctx, args[0])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
		fmt.Fprintf(tw, "Price:\t%s\n", p.Price)
		fmt.Fprintf(tw, "Category:\t%s\n", p.Category)
		fmt.Fprintf(tw, "In stock:\t%d\n", p.Stock)
		fmt.Fprintf(tw, "Rating:\t%.1f (%d reviews)\n", p.Rating, p.NumReviews)
		if p.Description != "" {
			fmt.Fprintf(tw, "About:\t%s\n", p.Description)
		}
		return tw.Flush()
	default:
		return usagef("unknown catalog command %q", sub)
	}
	return nil
}

func printProducts(w io.Writer, products []apiclient.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Category, p.Price, p.Stock)
	}
	tw.Flush()
}

// Account

func runWishlist(ctx context.Context, e *env, args []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	sub, args := subcommand(args, "show")

	var list []apiclient.Product
	switch sub {
	case "show":
		list, err = a.API.Wishlist(ctx)
	case "add", "remove":
		if len(args) != 1 {
			return usagef("wishlist %s needs a product id", sub)
		}
		if sub == "add" {
			list, err = a.API.AddToWishlist(ctx, args[0])
		} else {
			list, err = a.API.RemoveFromWishlist(ctx, args[0])
		}
	default:
		return usagef("unknown wishlist command %q", sub)
	}
	if err != nil {
		return handleAuthError(ctx, e, err)
	}
	printProducts(e.out, list)
	return nil
}

func runReviews(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usagef("reviews needs a product id")
	}
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	reviews, err := a.API.ListReviews(ctx, args[0])
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		fmt.Fprintln(e.out, "No reviews yet")
		return nil
	}
	for _, r := range reviews {
		fmt.Fprintf(e.out, "%s %s  %s\n", strings.Repeat("*", r.Rating), r.UserName, r.CreatedAt.Format("2006-01-02"))
		if r.Comment != "" {
			fmt.Fprintf(e.out, "  %s\n", r.Comment)
		}
	}
	return nil
}

func runReview(ctx context.Context, e *env, args []string) error {
	if len(args) < 2 {
		return usagef("review needs a product id and a rating")
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return usagef("rating must be a number, got %q", args[1])
	}
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	if _, err := a.API.CreateReview(ctx, args[0], apiclient.ReviewInput{
		Rating:  rating,
		Comment: strings.Join(args[2:], " "),
	}); err != nil {
		return handleAuthError(ctx, e, err)
	}
	fmt.Fprintln(e.out, "Thanks for your review")
	return nil
}

func runOrders(ctx context.Context, e *env, args []string) error {
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		order, err := a.API.GetOrder(ctx, args[0])
		if err != nil {
			return handleAuthError(ctx, e, err)
		}
		fmt.Fprintf(e.out, "Order %s  %s  %s\n", order.ID, order.Status, order.Total)
		tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
		for _, item := range order.Items {
			fmt.Fprintf(tw, "  %s\t%d x %s\n", item.Name, item.Quantity, item.Price)
		}
		return tw.Flush()
	}

	orders, err := a.API.MyOrders(ctx)
	if err != nil {
		return handleAuthError(ctx, e, err)
	}
	if len(orders) == 0 {
		fmt.Fprintln(e.out, "No orders yet")
		return nil
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.CreatedAt.Format("2006-01-02"), o.Status, o.Total)
	}
	return tw.Flush()
}

func runContact(ctx context.Context, e *env, args []string) error {
	if len(args) < 3 {
		return usagef("contact needs a name, an email and a message")
	}
	a, err := e.App(ctx)
	if err != nil {
		return err
	}
	if err := a.API.SendContactMessage(ctx, apiclient.ContactMessage{
		Name:    args[0],
		Email:   args[1],
		Message: strings.Join(args[2:], " "),
	}); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Message sent")
	return nil
}

// handleAuthError ends the session when the backend rejects the token
func handleAuthError(ctx context.Context, e *env, err error) error {
	if apiclient.IsUnauthorized(err) && e.app != nil {
		if herr := e.app.Session.HandleAuthFailure(ctx); herr != nil {
			return errors.Join(err, herr)
		}
	}
	return err
}

// Activity

func runEvents(ctx context.Context, e *env, args []string) error {
	if sub, _ := subcommand(args, ""); sub != "tail" {
		return usagef("unknown events command %q", sub)
	}
	log, err := logger.New(logger.Config{Level: e.cfg.Log.Level, Format: e.cfg.Log.Format, Output: e.cfg.Log.Output})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	consumer := kafka.NewConsumer(e.cfg.Kafka.Brokers, e.cfg.Kafka.Topic, e.cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("tailing activity", zap.Strings("brokers", e.cfg.Kafka.Brokers), zap.String("topic", e.cfg.Kafka.Topic))
	err = consumer.Consume(ctx, func(_ context.Context, key, value []byte) error {
		_, werr := fmt.Fprintf(e.out, "%s\t%s\n", key, value)
		return werr
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
