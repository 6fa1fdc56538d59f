package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"storefront-service/internal/models"
	"storefront-service/internal/service"

	"gopkg.in/yaml.v3"
)

type seedCategory struct {
	ID     string  `yaml:"id"`
	Parent *string `yaml:"parent"`
}

type seedPrice struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}

type seedProduct struct {
	ID                  string    `yaml:"id"`
	Name                string    `yaml:"name"`
	Description         string    `yaml:"description"`
	Pictures            []string  `yaml:"pictures"`
	Category            string    `yaml:"category"`
	Price               seedPrice `yaml:"price"`
	ApproximatePriceUSD float64   `yaml:"approximatePriceUSD"`
}

type seedLine struct {
	Product  string `yaml:"product"`
	Quantity int    `yaml:"quantity"`
}

type seedUser struct {
	ID       string     `yaml:"id"`
	Username string     `yaml:"username"`
	Picture  string     `yaml:"picture"`
	Cart     []seedLine `yaml:"cart"`
}

// seedFile is the YAML layout accepted by `catalogctl seed`.
type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
	Products   []seedProduct  `yaml:"products"`
	Users      []seedUser     `yaml:"users"`
}

type seedWriter interface {
	SaveCategory(ctx context.Context, category *models.Category) error
	SaveProduct(ctx context.Context, product *models.Product) error
	SaveUser(ctx context.Context, user *models.User) error
}

func loadSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// validate checks references inside the file. Cycles are left to RecomputeAll.
func (s *seedFile) validate() error {
	categories := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		if c.ID == "" {
			return &models.ValidationError{Field: "categories", Reason: "category id is required"}
		}
		if categories[c.ID] {
			return &models.ValidationError{Field: "categories", Reason: "duplicate category " + c.ID}
		}
		categories[c.ID] = true
	}
	for _, c := range s.Categories {
		if c.Parent != nil && !categories[*c.Parent] {
			return &models.ValidationError{Field: "categories", Reason: fmt.Sprintf("%s has unknown parent %s", c.ID, *c.Parent)}
		}
	}

	products := make(map[string]bool, len(s.Products))
	for _, p := range s.Products {
		if p.ID == "" || p.Name == "" {
			return &models.ValidationError{Field: "products", Reason: "product id and name are required"}
		}
		if products[p.ID] {
			return &models.ValidationError{Field: "products", Reason: "duplicate product " + p.ID}
		}
		if !categories[p.Category] {
			return &models.ValidationError{Field: "products", Reason: fmt.Sprintf("%s has unknown category %q", p.ID, p.Category)}
		}
		products[p.ID] = true
	}

	for _, u := range s.Users {
		if u.ID == "" {
			return &models.ValidationError{Field: "users", Reason: "user id is required"}
		}
		cart := u.cart()
		if err := service.ValidateCart(cart); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
		for _, line := range cart {
			if !products[line.Product] {
				return &models.ValidationError{Field: "users", Reason: fmt.Sprintf("%s has unknown product %s in cart", u.ID, line.Product)}
			}
		}
	}
	return nil
}

func (u seedUser) cart() models.Cart {
	cart := make(models.Cart, 0, len(u.Cart))
	for _, l := range u.Cart {
		cart = append(cart, models.CartLine{Product: l.Product, Quantity: l.Quantity})
	}
	return cart
}

// apply upserts everything in the file. Ancestors are written as placeholders
// and filled in by a recompute afterwards.
func (s *seedFile) apply(ctx context.Context, w seedWriter) error {
	for _, c := range s.Categories {
		category := &models.Category{ID: c.ID, Parent: c.Parent, Ancestors: []string{}}
		if err := w.SaveCategory(ctx, category); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
	}

	for _, p := range s.Products {
		product := &models.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Pictures:    p.Pictures,
			Category:    models.ProductCategory{ID: p.Category, Ancestors: []string{p.Category}},
			Price:       models.Price{Amount: p.Price.Amount, Currency: p.Price.Currency},
			Internal:    models.ProductInternal{ApproximatePriceUSD: p.ApproximatePriceUSD},
		}
		if err := w.SaveProduct(ctx, product); err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
	}

	for _, u := range s.Users {
		user := &models.User{
			ID:      u.ID,
			Profile: models.Profile{Username: u.Username, Picture: u.Picture},
			Data:    models.UserData{Cart: u.cart()},
		}
		if err := w.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	return nil
}
