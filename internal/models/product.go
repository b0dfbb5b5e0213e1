package models

import "strings"

// Category is a top-level node of the catalog menu.
type Category struct {
	Name   string `json:"name"`
	IsFood bool   `json:"is_food"`
}

// Subcategory is a leaf of the two-level catalog tree.
type Subcategory struct {
	Name           string `json:"name"`
	ParentCategory string `json:"parent_category"`
}

// DefaultNonFood lists the categories skipped when non-food filtering is on.
var DefaultNonFood = []string{
	"Agua y refrescos",
	"Bebé",
	"Bodega",
	"Cuidado del cabello",
	"Cuidado facial y corporal",
	"Fitoterapia y parafarmacia",
	"Limpieza y hogar",
	"Maquillaje",
	"Mascotas",
}

// Header is the single header row of the record store.
var Header = []string{
	"category",
	"subcategory",
	"product name",
	"container",
	"price value",
	"price unit",
	"description",
	"link",
}

// ProductRecord is one extracted product. Empty strings stand for fields that
// could not be extracted; Category, Subcategory and ProductName are always set.
type ProductRecord struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	ProductName string `json:"product_name"`
	Container   string `json:"container"`
	PriceValue  string `json:"price_value"`
	PriceUnit   string `json:"price_unit"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Row returns the record in Header column order.
func (r ProductRecord) Row() []string {
	return []string{
		r.Category,
		r.Subcategory,
		r.ProductName,
		r.Container,
		r.PriceValue,
		r.PriceUnit,
		r.Description,
		r.ImageURL,
	}
}

// Validate reports the identity fields a written record must carry.
func (r ProductRecord) Validate() []string {
	var errors []string

	if strings.TrimSpace(r.Category) == "" {
		errors = append(errors, "category is required")
	}
	if strings.TrimSpace(r.Subcategory) == "" {
		errors = append(errors, "subcategory is required")
	}
	if strings.TrimSpace(r.ProductName) == "" {
		errors = append(errors, "product name is required")
	}

	return errors
}

// ResumeCursor points at the last product written by a previous run.
// The zero value means "start from the beginning".
type ResumeCursor struct {
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}

// CursorFromRow builds a cursor from a stored row. Rows with fewer than three
// fields yield an inactive cursor.
func CursorFromRow(row []string) ResumeCursor {
	if len(row) < 3 {
		return ResumeCursor{}
	}
	return ResumeCursor{
		Category:    row[0],
		Subcategory: row[1],
		ProductName: row[2],
	}
}

// Active reports whether the cursor still restricts traversal.
func (c ResumeCursor) Active() bool {
	return c.Category != "" || c.Subcategory != "" || c.ProductName != ""
}

// Clear ends resume mode.
func (c *ResumeCursor) Clear() {
	*c = ResumeCursor{}
}
