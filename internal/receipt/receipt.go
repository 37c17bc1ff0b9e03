// Package receipt renders stored bills for the thermal printer, the browser print dialog
// and PDF download. Renderers only format the stored snapshot; they never recompute totals.
package receipt

import (
	"regexp"
	"strings"
	"time"

	"aicavalli-order-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Header is the restaurant block printed above every bill.
type Header struct {
	Name     string
	Address  string
	Currency string
	Location *time.Location
}

type Line struct {
	Name     string
	Quantity int
	Unit     string
	Subtotal string
}

// Data is the formatted view of one bill shared by all renderers.
type Data struct {
	RestaurantName    string
	RestaurantAddress string
	Currency          string
	BillNumber        string
	CreatedAt         string
	TableName         string
	GuestName         string
	GuestPhone        string
	Items             []Line
	ItemsTotal        string
	DiscountAmount    string
	HasDiscount       bool
	FinalTotal        string
	PaymentMethod     string
	Reprint           bool
}

func Build(bill domain.Bill, header Header) Data {
	loc := header.Location
	if loc == nil {
		loc = time.UTC
	}
	data := Data{
		RestaurantName:    header.Name,
		RestaurantAddress: header.Address,
		Currency:          header.Currency,
		BillNumber:        bill.BillNumber,
		CreatedAt:         bill.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		TableName:         bill.TableName,
		GuestName:         bill.GuestName,
		GuestPhone:        maskPhone(bill.GuestPhone),
		ItemsTotal:        money(bill.ItemsTotal),
		DiscountAmount:    money(bill.DiscountAmount),
		HasDiscount:       bill.DiscountAmount.IsPositive(),
		FinalTotal:        money(bill.FinalTotal),
		PaymentMethod:     strings.ToUpper(string(bill.PaymentMethod)),
		Reprint:           bill.PrintedAt != nil,
	}
	for _, item := range bill.Items {
		data.Items = append(data.Items, Line{
			Name:     item.Name,
			Quantity: item.Quantity,
			Unit:     money(item.UnitPrice),
			Subtotal: money(item.Subtotal),
		})
	}
	return data
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// maskPhone keeps the last four digits of a guest phone on paper.
func maskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("x", len(phone)-4) + phone[len(phone)-4:]
}

var filenameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func SanitizeFilename(value string) string {
	return strings.Trim(filenameUnsafe.ReplaceAllString(value, "_"), "_")
}
