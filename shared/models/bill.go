package models

import "strings"

type BillType string

const (
	BillAirtime     BillType = "airtime"
	BillData        BillType = "data"
	BillElectricity BillType = "electricity"
	BillCableTV     BillType = "cable_tv"
)

// BillDetails identifies what a bill payment is for. Exactly the field
// matching Type must be set.
type BillDetails struct {
	Type            BillType
	PhoneNumber     string
	MeterNumber     string
	SmartcardNumber string
}

func (b BillDetails) Validate() error {
	switch b.Type {
	case BillAirtime, BillData:
		if strings.TrimSpace(b.PhoneNumber) == "" {
			return NewValidationError("phoneNumber", "phone number is required for %s", b.Type)
		}
	case BillElectricity:
		if strings.TrimSpace(b.MeterNumber) == "" {
			return NewValidationError("meterNumber", "meter number is required for electricity")
		}
	case BillCableTV:
		if strings.TrimSpace(b.SmartcardNumber) == "" {
			return NewValidationError("smartcardNumber", "smartcard number is required for cable TV")
		}
	default:
		return NewValidationError("billType", "unsupported bill type %q", b.Type)
	}
	return nil
}

// Category maps the bill onto the ledger category it is posted under.
func (b BillDetails) Category() Category {
	if b.Type == BillAirtime || b.Type == BillData {
		return CategoryAirtime
	}
	return CategoryBillPayment
}

// Target is the customer identifier the bill is paid against.
func (b BillDetails) Target() string {
	switch b.Type {
	case BillElectricity:
		return b.MeterNumber
	case BillCableTV:
		return b.SmartcardNumber
	default:
		return b.PhoneNumber
	}
}

func (b BillDetails) Narration() string {
	var label string
	switch b.Type {
	case BillAirtime:
		label = "Airtime"
	case BillData:
		label = "Data"
	case BillElectricity:
		label = "Electricity"
	case BillCableTV:
		label = "Cable TV"
	}
	return label + " payment for " + b.Target()
}
