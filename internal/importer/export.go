package importer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"budmart/internal/domain/products"
	"budmart/internal/ident"

	"github.com/xuri/excelize/v2"
)

const productsSheet = "Products"

// Columns is the header of every export and of the import template.
var Columns = []string{
	"_id", "name", "price", "discount", "stock", "unit", "sku", "description", "specs", "images",
	"category", "subcategory", "type", "categoryName", "subcategoryName", "typeName",
}

// record flattens p into cells in Columns order. Specs and images are
// JSON-encoded; category names are looked up in names.
func record(p *products.Product, names map[ident.ID]string) ([]string, error) {
	specs, err := json.Marshal(p.Specs)
	if err != nil {
		return nil, fmt.Errorf("encode specs: %w", err)
	}
	images := p.Images
	if images == nil {
		images = []products.Image{}
	}
	imgs, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	sku := ""
	if p.SKU != nil {
		sku = *p.SKU
	}

	return []string{
		p.ID.String(),
		p.Name,
		p.Price.StringFixed(2),
		fmt.Sprint(p.Discount),
		fmt.Sprint(p.Stock),
		p.Unit,
		sku,
		p.Description,
		string(specs),
		string(imgs),
		p.Category.String(),
		p.Subcategory.String(),
		p.Type.String(),
		names[p.Category],
		names[p.Subcategory],
		names[p.Type],
	}, nil
}

// WriteCSV writes an RFC 4180 file with a UTF-8 byte order mark so
// spreadsheet programs detect the encoding.
func WriteCSV(w io.Writer, list []*products.Product, names map[ident.ID]string) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, p := range list {
		rec, err := record(p, names)
		if err != nil {
			return err
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the catalog into the "Products" sheet of a new workbook.
func WriteXLSX(w io.Writer, list []*products.Product, names map[ident.ID]string) error {
	f, err := newWorkbook()
	if err != nil {
		return err
	}
	defer f.Close()

	for i, p := range list {
		rec, err := record(p, names)
		if err != nil {
			return err
		}
		cells := make([]any, len(rec))
		for j, v := range rec {
			cells[j] = v
		}
		// numeric columns stay numbers in the spreadsheet
		cells[2] = p.Price.InexactFloat64()
		cells[3] = p.Discount
		cells[4] = p.Stock

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(productsSheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}

// WriteTemplate writes an empty workbook with the import header and a
// short instruction sheet.
func WriteTemplate(w io.Writer) error {
	f, err := newWorkbook()
	if err != nil {
		return err
	}
	defer f.Close()

	const sheet = "Інструкція"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	lines := []string{
		"Імпорт товарів",
		"name — обов'язкова колонка, рядки без назви пропускаються.",
		"_id — оновити існуючий товар з цим ідентифікатором.",
		"sku — оновити товар з цим артикулом або створити новий.",
		"Без _id та sku товар створюється, якщо назва ще не зайнята.",
		"categoryName / subcategoryName / typeName — категорії створюються автоматично.",
		"specs — JSON або текст у форматі «Ключ: Значення;».",
		`images — JSON-масив [{"url": "...", "publicId": "..."}].`,
	}
	for i, line := range lines {
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), line); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func newWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", productsSheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, col := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(productsSheet, cell, col); err != nil {
			f.Close()
			return nil, err
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(productsSheet, colName, colName, 18)
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(productsSheet, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
