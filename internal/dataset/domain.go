package dataset

// Product is a stock item keyed by its barcode.
type Product struct {
	Barkod      string  `json:"barkod"`
	Ad          string  `json:"ad"`
	Miktar      int     `json:"miktar"`
	AlisFiyati  float64 `json:"alisFiyati"`
	SatisFiyati float64 `json:"satisFiyati"`
	Kategori    string  `json:"kategori"`
	Aciklama    string  `json:"aciklama"`
}

// SaleRecord is one line of the sales history. ID is assigned by the store.
type SaleRecord struct {
	ID          int64   `json:"id"`
	Barkod      string  `json:"barkod"`
	Miktar      int     `json:"miktar"`
	SatisFiyati float64 `json:"satisFiyati"`
	AlisFiyati  float64 `json:"alisFiyati"`
	MusteriID   *string `json:"musteriId"`
	Tarih       string  `json:"tarih"`
	Veresiye    bool    `json:"veresiye"`
	Toplam      float64 `json:"toplam"`
}

// Customer carries a running balance; negative values are money owed to the business.
type Customer struct {
	ID      string  `json:"id"`
	Ad      string  `json:"ad"`
	Telefon string  `json:"telefon"`
	Adres   string  `json:"adres"`
	Bakiye  float64 `json:"bakiye"`
}

// Debt is read-only for the synchronization contract.
type Debt struct {
	ID        string  `json:"id"`
	MusteriID string  `json:"musteriId"`
	Tutar     float64 `json:"tutar"`
	Aciklama  string  `json:"aciklama"`
	Tarih     string  `json:"tarih"`
}

// Dataset is the full business state exchanged with the desktop client.
type Dataset struct {
	StokListesi  map[string]Product  `json:"stokListesi"`
	SatisGecmisi []SaleRecord        `json:"satisGecmisi"`
	Musteriler   map[string]Customer `json:"musteriler"`
	Borclarim    map[string]Debt     `json:"borclarim,omitempty"`
}

// Stats reports row counts per replaced table.
type Stats struct {
	StokSayisi    int `json:"stokSayisi"`
	SatisSayisi   int `json:"satisSayisi"`
	MusteriSayisi int `json:"musteriSayisi"`
}

// Empty returns a dataset with allocated, empty containers.
func Empty() Dataset {
	return Dataset{
		StokListesi:  map[string]Product{},
		SatisGecmisi: []SaleRecord{},
		Musteriler:   map[string]Customer{},
		Borclarim:    map[string]Debt{},
	}
}

// Stats counts the synchronised tables of the dataset.
func (d Dataset) Stats() Stats {
	return Stats{
		StokSayisi:    len(d.StokListesi),
		SatisSayisi:   len(d.SatisGecmisi),
		MusteriSayisi: len(d.Musteriler),
	}
}

// Normalize fills nil containers so readers never see partial shapes.
func (d *Dataset) Normalize() {
	if d.StokListesi == nil {
		d.StokListesi = map[string]Product{}
	}
	if d.SatisGecmisi == nil {
		d.SatisGecmisi = []SaleRecord{}
	}
	if d.Musteriler == nil {
		d.Musteriler = map[string]Customer{}
	}
	if d.Borclarim == nil {
		d.Borclarim = map[string]Debt{}
	}
}

// KeyProducts forces every product's barcode to match its map key.
func KeyProducts(products map[string]Product) map[string]Product {
	out := make(map[string]Product, len(products))
	for key, p := range products {
		p.Barkod = key
		out[key] = p
	}
	return out
}

// KeyCustomers forces every customer's id to match its map key.
func KeyCustomers(customers map[string]Customer) map[string]Customer {
	out := make(map[string]Customer, len(customers))
	for key, c := range customers {
		c.ID = key
		out[key] = c
	}
	return out
}

// NumberSales assigns sequential ids starting at 1 in payload order.
func NumberSales(sales []SaleRecord) []SaleRecord {
	out := make([]SaleRecord, len(sales))
	for i, s := range sales {
		s.ID = int64(i + 1)
		out[i] = s
	}
	return out
}
