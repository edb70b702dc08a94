package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"budmart/internal/domain/products"
	"budmart/internal/ident"
	"budmart/internal/imagestore"
)

var errBlankName = errors.New("name is blank")

// Draft is a mapped row waiting for category resolution and writing.
type Draft struct {
	Line    int
	Product *products.Product

	CategoryName    string
	SubcategoryName string
	TypeName        string
}

// MapRow converts a row into a draft. A blank name yields errBlankName and
// the row is counted as skipped.
func MapRow(row Row) (*Draft, error) {
	name := row.Get("name")
	if name == "" {
		return nil, errBlankName
	}

	id, err := ident.Parse(row.Get("_id"))
	if err != nil {
		return nil, fmt.Errorf("_id: %w", err)
	}

	p := &products.Product{
		ID:          id,
		Name:        name,
		Price:       clampPrice(ParseDecimal(row.Get("price"))),
		Discount:    ParseInt(row.Get("discount")),
		Stock:       ParseInt(row.Get("stock")),
		Unit:        row.Get("unit"),
		Description: row.Get("description"),
		Specs:       parseSpecs(row.Get("specs")),
		Images:      parseImages(row.Get("images")),
	}
	if sku := row.Get("sku"); sku != "" {
		p.SKU = &sku
	}
	if len(p.Images) == 0 && row.Get("image") != "" {
		p.Images = []products.Image{{URL: row.Get("image"), PublicID: row.Get("imagepublicid")}}
	}
	for i := range p.Images {
		if p.Images[i].PublicID == "" {
			p.Images[i].PublicID = imagestore.PublicIDFromURL(p.Images[i].URL)
		}
	}

	for col, dst := range map[string]*ident.ID{
		"category":    &p.Category,
		"subcategory": &p.Subcategory,
		"type":        &p.Type,
	} {
		ref, err := ident.Parse(row.Get(col))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col, err)
		}
		*dst = ref
	}

	p.Normalize()

	return &Draft{
		Line:            row.Line,
		Product:         p,
		CategoryName:    row.Get("categoryname"),
		SubcategoryName: row.Get("subcategoryname"),
		TypeName:        row.Get("typename"),
	}, nil
}

// parseSpecs accepts a JSON object (or pair array) and falls back to the
// "Key: Value;" text form.
func parseSpecs(s string) products.Specs {
	if s == "" {
		return products.Specs{}
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		var specs products.Specs
		if err := json.Unmarshal([]byte(s), &specs); err == nil {
			return specs
		}
	}
	return products.ParseSpecsText(s)
}

// parseImages keeps the entries of a JSON array that are objects with a
// non-empty url. Anything else is discarded.
func parseImages(s string) []products.Image {
	if !strings.HasPrefix(s, "[") {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}

	images := make([]products.Image, 0, len(raw))
	for _, item := range raw {
		var img struct {
			URL      any `json:"url"`
			PublicID any `json:"publicId"`
		}
		if err := json.Unmarshal(item, &img); err != nil {
			continue
		}
		url, _ := img.URL.(string)
		publicID, _ := img.PublicID.(string)
		if strings.TrimSpace(url) == "" {
			continue
		}
		images = append(images, products.Image{URL: url, PublicID: publicID})
	}
	return images
}
