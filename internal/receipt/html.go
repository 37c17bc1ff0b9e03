package receipt

import (
	"bytes"
	"html/template"
)

var htmlTemplate = template.Must(template.New("bill").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Bill {{.BillNumber}}</title>
  <style>
    * { box-sizing: border-box; }
    @page { size: 80mm auto; margin: 4mm; }
    body { font-family: 'Courier New', monospace; font-size: 12px; width: 72mm; margin: 0 auto; color: #000; }
    .header { text-align: center; border-bottom: 1px dashed #000; padding-bottom: 6px; margin-bottom: 6px; }
    .name { font-size: 16px; font-weight: bold; text-transform: uppercase; }
    .row { display: flex; justify-content: space-between; margin: 2px 0; }
    .unit { margin-left: 12px; font-size: 10px; color: #333; }
    .section { border-top: 1px dashed #000; padding-top: 6px; margin-top: 6px; }
    .total { font-weight: bold; font-size: 14px; }
    .footer { text-align: center; margin-top: 8px; }
  </style>
</head>
<body onload="window.print()">
  <div class="header">
    <div class="name">{{.RestaurantName}}</div>
    {{if .RestaurantAddress}}<div>{{.RestaurantAddress}}</div>{{end}}
    {{if .Reprint}}<div>** DUPLICATE **</div>{{end}}
  </div>
  <div class="row"><div>Bill</div><div>{{.BillNumber}}</div></div>
  <div class="row"><div>Date</div><div>{{.CreatedAt}}</div></div>
  {{if .TableName}}<div class="row"><div>Table</div><div>{{.TableName}}</div></div>{{end}}
  {{if .GuestName}}<div class="row"><div>Guest</div><div>{{.GuestName}}</div></div>{{end}}
  <div class="section">
    {{range .Items}}
      <div class="row"><div>{{.Quantity}} x {{.Name}}</div><div>{{.Subtotal}}</div></div>
      <div class="unit">@ {{.Unit}}</div>
    {{end}}
  </div>
  <div class="section">
    <div class="row"><div>Items total</div><div>{{.ItemsTotal}}</div></div>
    {{if .HasDiscount}}<div class="row"><div>Discount</div><div>-{{.DiscountAmount}}</div></div>{{end}}
    <div class="row total"><div>Total</div><div>{{.Currency}} {{.FinalTotal}}</div></div>
    {{if .PaymentMethod}}<div class="row"><div>Payment</div><div>{{.PaymentMethod}}</div></div>{{end}}
  </div>
  <div class="footer">Grazie! Thank you</div>
</body>
</html>`))

// HTML renders print-ready markup sized for an 80mm roll.
func HTML(data Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
