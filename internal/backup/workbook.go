package backup

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/stoktakip/stoktakip/internal/dataset"
)

const (
	sheetProducts  = "Ürünler"
	sheetSales     = "Satışlar"
	sheetCustomers = "Müşteriler"
	sheetDebts     = "Borçlar"
)

// encodeWorkbook renders the dataset as an .xlsx report with one sheet per
// table. Rows are sorted by key so consecutive reports diff cleanly.
func encodeWorkbook(data dataset.Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	productRows := make([][]any, 0, len(data.StokListesi))
	for _, code := range sortedKeys(data.StokListesi) {
		p := data.StokListesi[code]
		productRows = append(productRows, []any{code, p.Ad, p.Miktar, p.AlisFiyati, p.SatisFiyati, p.Kategori, p.Aciklama})
	}
	saleRows := make([][]any, 0, len(data.SatisGecmisi))
	for _, s := range data.SatisGecmisi {
		customer := ""
		if s.MusteriID != nil {
			customer = *s.MusteriID
		}
		veresiye := "Hayır"
		if s.Veresiye {
			veresiye = "Evet"
		}
		saleRows = append(saleRows, []any{s.ID, s.Tarih, s.Barkod, s.Miktar, s.SatisFiyati, s.AlisFiyati, s.Toplam, customer, veresiye})
	}
	customerRows := make([][]any, 0, len(data.Musteriler))
	for _, id := range sortedKeys(data.Musteriler) {
		c := data.Musteriler[id]
		customerRows = append(customerRows, []any{id, c.Ad, c.Telefon, c.Adres, c.Bakiye})
	}
	debtRows := make([][]any, 0, len(data.Borclarim))
	for _, id := range sortedKeys(data.Borclarim) {
		d := data.Borclarim[id]
		debtRows = append(debtRows, []any{id, d.MusteriID, d.Tutar, d.Aciklama, d.Tarih})
	}

	sheets := []struct {
		name    string
		headers []any
		rows    [][]any
	}{
		{sheetProducts, []any{"Barkod", "Ad", "Miktar", "Alış Fiyatı", "Satış Fiyatı", "Kategori", "Açıklama"}, productRows},
		{sheetSales, []any{"No", "Tarih", "Barkod", "Miktar", "Satış Fiyatı", "Alış Fiyatı", "Toplam", "Müşteri", "Veresiye"}, saleRows},
		{sheetCustomers, []any{"Kimlik", "Ad", "Telefon", "Adres", "Bakiye"}, customerRows},
		{sheetDebts, []any{"Kimlik", "Müşteri", "Tutar", "Açıklama", "Tarih"}, debtRows},
	}
	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet.name, err)
		}
		if err := writeRows(f, sheet.name, sheet.headers, sheet.rows); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, headers []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
