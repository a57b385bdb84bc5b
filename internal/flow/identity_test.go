package flow

import (
	"testing"
)

func TestExtractLookupSignalsLabeled(t *testing.T) {
	s := extractLookupSignals("pedido 1042, dni: 30.123.456, nombre: Ana, apellido: García, tel: 1155550000")

	if s.OrderID != "1042" {
		t.Errorf("OrderID = %q", s.OrderID)
	}
	if s.Identity.DNI != "30123456" {
		t.Errorf("DNI = %q, dots must be stripped", s.Identity.DNI)
	}
	if s.Identity.Name != "Ana" || s.Identity.LastName != "García" {
		t.Errorf("Name = %q, LastName = %q", s.Identity.Name, s.Identity.LastName)
	}
	if s.Identity.Phone != "1155550000" {
		t.Errorf("Phone = %q", s.Identity.Phone)
	}
	if !s.Complete() {
		t.Error("four valid factors plus order id must be complete")
	}
}

func TestExtractLookupSignalsUnlabeled(t *testing.T) {
	s := extractLookupSignals("orden #388\n30123456\nAna\nGarcía")

	if s.OrderID != "388" {
		t.Errorf("OrderID = %q", s.OrderID)
	}
	if s.Identity.DNI != "30123456" {
		t.Errorf("DNI = %q", s.Identity.DNI)
	}
	if s.Identity.Name != "Ana" {
		t.Errorf("Name = %q", s.Identity.Name)
	}
	if s.Identity.LastName != "García" {
		t.Errorf("LastName = %q", s.Identity.LastName)
	}
}

func TestExtractLookupSignalsInvalidFactors(t *testing.T) {
	// A five-digit DNI fails validation and must be reported as invalid, not
	// silently dropped as missing.
	s := extractLookupSignals("pedido 1042, dni: 12345")

	if s.Identity.DNI != "" {
		t.Errorf("DNI = %q, want rejected", s.Identity.DNI)
	}
	if len(s.Invalid) != 1 || s.Invalid[0] != factorDNI {
		t.Errorf("Invalid = %v", s.Invalid)
	}
	if !s.HasLookupIntent() {
		t.Error("order id plus an invalid factor still shows lookup intent")
	}
	if s.Complete() {
		t.Error("invalid factor must not count toward completeness")
	}

	missing := s.MissingFactors()
	for _, f := range missing {
		if f == factorDNI {
			t.Error("an invalid factor must not also be reported missing")
		}
	}
	if len(missing) != 3 {
		t.Errorf("MissingFactors() = %v", missing)
	}
}

func TestExtractLookupSignalsOrderIDForms(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"pedido 1042", "1042"},
		{"pedido número 1042", "1042"},
		{"pedido nro. 1042", "1042"},
		{"orden #55", "55"},
		{"compra: 17", "17"},
		{"#901", "901"},
		{"quiero un manga", ""},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			if got := extractLookupSignals(tc.text).OrderID; got != tc.want {
				t.Errorf("OrderID = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractLookupSignalsNoiseIsNotAName(t *testing.T) {
	s := extractLookupSignals("quiero saber el estado de mi pedido")

	if s.Identity.FactorCount() != 0 {
		t.Errorf("FactorCount() = %d, filler words must not classify as names: %+v", s.Identity.FactorCount(), s.Identity)
	}
	if s.HasLookupIntent() {
		t.Error("no usable signals expected")
	}
}
