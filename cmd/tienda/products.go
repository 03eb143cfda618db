package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/drojas/tienda/internal/api"
)

func (a *app) cmdProducts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return a.productsList(ctx)
	case "show":
		return a.productsShow(ctx, rest)
	case "create":
		return a.productsCreate(ctx, rest)
	default:
		return errUsage
	}
}

func (a *app) productsList(ctx context.Context) error {
	products, err := a.client.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Println("No products in the catalog.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tCATEGORY")
	for _, p := range products {
		name := p.Name
		if p.OnSale {
			name += " (on sale)"
		}
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\n", p.ID, name, p.Price, p.Category)
	}
	return w.Flush()
}

func (a *app) productsShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products show", flag.ContinueOnError)
	id := fs.Int64("id", 0, "product id")
	if err := fs.Parse(args); err != nil || *id == 0 {
		return errUsage
	}

	p, err := a.client.GetProduct(ctx, *id)
	if err != nil {
		return err
	}

	fmt.Printf("%s (#%d)\n", p.Name, p.ID)
	fmt.Printf("  price:    %.2f\n", p.Price)
	fmt.Printf("  category: %s / %s\n", p.Category, p.Subcategory)
	if p.OnSale {
		fmt.Println("  on sale")
	}
	if p.Description != "" {
		fmt.Println("  " + p.Description)
	}
	return nil
}

// productsCreate is the product-management form: staff-only on the
// backend, so it goes through the auth guard.
func (a *app) productsCreate(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}

	fs := flag.NewFlagSet("products create", flag.ContinueOnError)
	name := fs.String("name", "", "product name")
	description := fs.String("description", "", "product description")
	price := fs.Float64("price", 0, "unit price")
	category := fs.String("category", "", "category")
	subcategory := fs.String("subcategory", "", "subcategory")
	onSale := fs.Bool("on-sale", false, "list the product as discounted")
	image := fs.String("image", "", "path to a product image file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *name == "" || *price <= 0 {
		return errUsage
	}

	err := a.client.CreateProduct(ctx, api.NewProduct{
		Name:        *name,
		Description: *description,
		Price:       *price,
		Category:    *category,
		Subcategory: *subcategory,
		OnSale:      *onSale,
		ImagePath:   *image,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Product %q created.\n", *name)
	return nil
}
