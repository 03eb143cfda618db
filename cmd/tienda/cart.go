package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

func (a *app) cmdCart(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	if !a.auth.IsAuthenticated() {
		// Anonymous carts work but vanish with the process; say so once
		// instead of failing.
		fmt.Fprintln(os.Stderr, "note: not signed in, this cart will not be saved")
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "show":
		return a.cartShow()
	case "add":
		return a.cartAdd(ctx, rest)
	case "remove":
		return a.cartRemove(rest)
	case "set":
		return a.cartSet(rest)
	case "clear":
		a.cart.Clear()
		fmt.Println("Cart cleared.")
		return nil
	default:
		return errUsage
	}
}

func (a *app) cartShow() error {
	lines := a.cart.Lines()
	if len(lines) == 0 {
		fmt.Println("Cart is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRODUCT\tQTY\tUNIT\tSUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%.2f\n",
			l.ProductID, l.Name, l.Quantity, l.UnitPrice, float64(l.Quantity)*l.UnitPrice)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d item(s), total %.2f\n", a.cart.TotalItems(), a.cart.TotalPrice())
	return nil
}

func (a *app) cartAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cart add", flag.ContinueOnError)
	id := fs.Int64("id", 0, "product id")
	if err := fs.Parse(args); err != nil || *id == 0 {
		return errUsage
	}

	product, err := a.client.GetProduct(ctx, *id)
	if err != nil {
		return err
	}

	a.cart.Add(*product)
	fmt.Printf("Added %s. Cart now holds %d item(s).\n", product.Name, a.cart.TotalItems())
	return nil
}

func (a *app) cartRemove(args []string) error {
	fs := flag.NewFlagSet("cart remove", flag.ContinueOnError)
	id := fs.Int64("id", 0, "product id")
	if err := fs.Parse(args); err != nil || *id == 0 {
		return errUsage
	}

	a.cart.Remove(*id)
	fmt.Printf("Removed. Cart now holds %d item(s).\n", a.cart.TotalItems())
	return nil
}

func (a *app) cartSet(args []string) error {
	fs := flag.NewFlagSet("cart set", flag.ContinueOnError)
	id := fs.Int64("id", 0, "product id")
	qty := fs.Int("qty", 0, "new quantity (0 removes the line)")
	if err := fs.Parse(args); err != nil || *id == 0 {
		return errUsage
	}

	a.cart.UpdateQuantity(*id, *qty)
	fmt.Printf("Cart now holds %d item(s).\n", a.cart.TotalItems())
	return nil
}
