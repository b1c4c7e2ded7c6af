package odoo

import (
	"context"
	"fmt"

	"github.com/xelth-com/palletdamage/internal/models"
)

type productRow struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Barcode     interface{} `json:"barcode"`
	DefaultCode interface{} `json:"default_code"`
	CategID     interface{} `json:"categ_id"`
}

// ProductLookup resolves scanned pallet barcodes against Odoo products
type ProductLookup struct {
	client *Client
}

// NewProductLookup creates a lookup over an Odoo client
func NewProductLookup(client *Client) *ProductLookup {
	return &ProductLookup{client: client}
}

// LookupBarcode returns the product for a barcode, or nil when unknown
func (l *ProductLookup) LookupBarcode(ctx context.Context, barcode string) (*models.ProductInfo, error) {
	var rows []productRow
	domain := []interface{}{[]interface{}{"barcode", "=", barcode}}
	fields := []string{"id", "name", "barcode", "default_code", "categ_id"}
	if err := l.client.SearchRead(ctx, "product.product", domain, fields, 1, &rows); err != nil {
		return nil, fmt.Errorf("product lookup %s: %w", barcode, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToProduct(barcode, rows[0]), nil
}

func rowToProduct(barcode string, row productRow) *models.ProductInfo {
	return &models.ProductInfo{
		Barcode:     barcode,
		Name:        row.Name,
		ProductType: many2oneName(row.CategID),
		Code:        odooString(row.DefaultCode),
	}
}

// odooString handles Odoo's "false" for empty char fields
func odooString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// many2oneName extracts the display name of a [id, "name"] pair
func many2oneName(v interface{}) string {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 2 {
		return ""
	}
	return odooString(pair[1])
}
