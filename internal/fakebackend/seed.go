package fakebackend

import "github.com/SalBom/app-sb-sub000/internal/domain"

const DemoCUIT = "20123456789"

// Seed loads a small demo catalog: three terms, two discount rules, a handful
// of products (one out of stock), one user with two managed clients.
func Seed(s *Store) {
	s.SetTerms(
		domain.PaymentTerm{ID: 1, Name: "Contado"},
		domain.PaymentTerm{ID: 21, Name: "30 días"},
		domain.PaymentTerm{ID: 30, Name: "60 días"},
	)
	s.SetRule(domain.DiscountRule{PaymentTermID: 1, Discount2Pct: 3})
	s.SetRule(domain.DiscountRule{PaymentTermID: 21, Discount1Pct: 5, MinPurchaseAmount: 200})

	s.PutProduct(ProductRecord{ID: 10, Name: "Amoladora angular 115mm", DefaultCode: "AM-115", PriceUnit: 100, ListPrice: 100})
	s.PutProduct(ProductRecord{ID: 11, Name: "Disco de corte 115mm", DefaultCode: "DC-115", PriceUnit: 50, ListPrice: 50, StockState: domain.StockOrange})
	s.PutProduct(ProductRecord{ID: 12, Name: "Taladro percutor 13mm", DefaultCode: "TP-13", PriceUnit: 80, ListPrice: 95})
	s.PutProduct(ProductRecord{ID: 13, Name: "Llave térmica bipolar", DefaultCode: "LT-2P", PriceUnit: 30, ListPrice: 30, StockState: domain.StockRed})

	s.SetProfile(DemoCUIT, domain.Profile{PartnerID: 500, Name: "Juan Pérez", Role: "Cliente"})
	s.SetClients(DemoCUIT,
		domain.Client{ID: 501, Name: "Ferretería Sur", VAT: "30711111111", Street: "Av. Mitre 100", City: "Avellaneda"},
		domain.Client{ID: 502, Name: "Corralón Norte", VAT: "30722222222", Street: "Ruta 8 km 50", City: "Pilar"},
	)
	s.SetAddresses(500, domain.Address{ID: "900", Name: "Depósito central", Street: "Calle 12 345", City: "La Plata"})
	s.SetAddresses(501, domain.Address{ID: "901", Name: "Local Avellaneda", Street: "Av. Mitre 100", City: "Avellaneda"})
	s.SetExchangeRate(1350)
}
