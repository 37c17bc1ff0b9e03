package receipt

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
)

const (
	pdfPageWidth = 80.0
	pdfMargin    = 4.0
)

// PDF renders the bill on an 80mm page whose height grows with the item count.
func PDF(data Data) ([]byte, error) {
	height := 90.0 + float64(len(data.Items))*9
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: pdfPageWidth, Ht: height},
	})
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Courier", "B", 12)
	pdf.CellFormat(0, 6, tr(data.RestaurantName), "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	if data.RestaurantAddress != "" {
		pdf.MultiCell(0, 4, tr(data.RestaurantAddress), "", "C", false)
	}
	if data.Reprint {
		pdf.CellFormat(0, 4, "** DUPLICATE **", "", 1, "C", false, 0, "")
	}

	pdf.Ln(1)
	pdf.CellFormat(0, 4, fmt.Sprintf("Bill: %s", data.BillNumber), "T", 1, "L", false, 0, "")
	pdf.CellFormat(0, 4, fmt.Sprintf("Date: %s", data.CreatedAt), "", 1, "L", false, 0, "")
	if data.TableName != "" {
		pdf.CellFormat(0, 4, tr(fmt.Sprintf("Table: %s", data.TableName)), "", 1, "L", false, 0, "")
	}
	if data.GuestName != "" {
		pdf.CellFormat(0, 4, tr(fmt.Sprintf("Guest: %s", data.GuestName)), "", 1, "L", false, 0, "")
	}

	pdf.Ln(1)
	contentWidth := pdfPageWidth - 2*pdfMargin
	amountWidth := 18.0
	pdf.SetFont("Courier", "B", 8)
	pdf.CellFormat(contentWidth-amountWidth, 5, "Item", "TB", 0, "L", false, 0, "")
	pdf.CellFormat(amountWidth, 5, "Amount", "TB", 1, "R", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	for _, item := range data.Items {
		pdf.CellFormat(contentWidth-amountWidth, 4, tr(fmt.Sprintf("%d x %s", item.Quantity, item.Name)), "", 0, "L", false, 0, "")
		pdf.CellFormat(amountWidth, 4, item.Subtotal, "", 1, "R", false, 0, "")
		pdf.CellFormat(0, 4, fmt.Sprintf("  @ %s", item.Unit), "", 1, "L", false, 0, "")
	}

	pdf.Ln(1)
	pdf.CellFormat(contentWidth-amountWidth, 4, "Items total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(amountWidth, 4, data.ItemsTotal, "T", 1, "R", false, 0, "")
	if data.HasDiscount {
		pdf.CellFormat(contentWidth-amountWidth, 4, "Discount", "", 0, "L", false, 0, "")
		pdf.CellFormat(amountWidth, 4, "-"+data.DiscountAmount, "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Courier", "B", 10)
	pdf.CellFormat(contentWidth-amountWidth-8, 6, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(amountWidth+8, 6, tr(data.Currency+" "+data.FinalTotal), "", 1, "R", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	if data.PaymentMethod != "" {
		pdf.CellFormat(0, 4, fmt.Sprintf("Payment: %s", data.PaymentMethod), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	pdf.CellFormat(0, 4, "Grazie! Thank you", "T", 1, "C", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
