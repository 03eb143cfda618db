package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/drojas/tienda/internal/domain"
)

const pathProducts = "/catalog/products"

type productResponse struct {
	ID          int64   `json:"idProduct"`
	Name        string  `json:"productName"`
	Description string  `json:"productDescription"`
	Price       float64 `json:"productPrice"`
	Image       string  `json:"imageProduct"`
	Category    string  `json:"categoriaProduct"`
	Subcategory string  `json:"subCategoriaProduct"`
	OnSale      bool    `json:"enOferta"`
}

func (p productResponse) toDomain() domain.Product {
	return domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Image:       p.Image,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		OnSale:      p.OnSale,
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var resp []productResponse
	if err := c.do(ctx, "list_products", http.MethodGet, pathProducts, nil, &resp); err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(resp))
	for _, p := range resp {
		products = append(products, p.toDomain())
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var resp productResponse
	path := fmt.Sprintf("%s/%d", pathProducts, id)
	if err := c.do(ctx, "get_product", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	p := resp.toDomain()
	return &p, nil
}

// NewProduct is the product-management form payload. ImagePath points at
// a local image file attached to the multipart upload; empty skips it.
type NewProduct struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Subcategory string
	OnSale      bool
	ImagePath   string
}

// CreateProduct uploads a product as multipart form data, mirroring the
// backend's upload contract.
func (c *Client) CreateProduct(ctx context.Context, p NewProduct) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"productName":         p.Name,
		"productDescription":  p.Description,
		"productPrice":        strconv.FormatFloat(p.Price, 'f', -1, 64),
		"categoriaProduct":    p.Category,
		"subCategoriaProduct": p.Subcategory,
		"enOferta":            strconv.FormatBool(p.OnSale),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if p.ImagePath != "" {
		f, err := os.Open(p.ImagePath)
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}
		defer func() { _ = f.Close() }()

		part, err := w.CreateFormFile("imageProduct", filepath.Base(p.ImagePath))
		if err != nil {
			return fmt.Errorf("attach image: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return fmt.Errorf("copy image: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+pathProducts, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.send(req, "create_product", nil)
}
