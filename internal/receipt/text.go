package receipt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	qtyWidth    = 4
	rateWidth   = 9
	amountWidth = 10
)

// Text renders a fixed-width receipt for an ESC/POS style thermal printer. Every line is
// exactly width runes or shorter.
func Text(data Data, width int) string {
	if width < 32 {
		width = 32
	}
	nameWidth := width - qtyWidth - rateWidth - amountWidth
	rule := strings.Repeat("-", width)

	var b strings.Builder
	writeLine := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	writeLine(center(strings.ToUpper(data.RestaurantName), width))
	for _, part := range wrap(data.RestaurantAddress, width) {
		writeLine(center(part, width))
	}
	if data.Reprint {
		writeLine(center("** DUPLICATE **", width))
	}
	writeLine(rule)
	writeLine(twoCol("Bill: "+data.BillNumber, "", width))
	writeLine(twoCol("Date: "+data.CreatedAt, "", width))
	if data.TableName != "" || data.GuestName != "" {
		writeLine(twoCol("Table: "+data.TableName, data.GuestName, width))
	}
	writeLine(rule)
	writeLine(padRight("Item", nameWidth) + padLeft("Qty", qtyWidth) + padLeft("Rate", rateWidth) + padLeft("Amount", amountWidth))

	for _, item := range data.Items {
		names := wrap(item.Name, nameWidth)
		if len(names) == 0 {
			names = []string{""}
		}
		writeLine(padRight(names[0], nameWidth) +
			padLeft(fmt.Sprint(item.Quantity), qtyWidth) +
			padLeft(item.Unit, rateWidth) +
			padLeft(item.Subtotal, amountWidth))
		for _, rest := range names[1:] {
			writeLine(rest)
		}
	}

	writeLine(rule)
	writeLine(twoCol("Items total", data.ItemsTotal, width))
	if data.HasDiscount {
		writeLine(twoCol("Discount", "-"+data.DiscountAmount, width))
	}
	writeLine(twoCol("TOTAL", strings.TrimSpace(data.Currency+" "+data.FinalTotal), width))
	if data.PaymentMethod != "" {
		writeLine(twoCol("Payment", data.PaymentMethod, width))
	}
	writeLine(rule)
	writeLine(center("Grazie! Thank you", width))
	return b.String()
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func truncate(s string, width int) string {
	if runeLen(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

func padRight(s string, width int) string {
	s = truncate(s, width)
	return s + strings.Repeat(" ", width-runeLen(s))
}

func padLeft(s string, width int) string {
	s = truncate(s, width)
	return strings.Repeat(" ", width-runeLen(s)) + s
}

func center(s string, width int) string {
	s = truncate(strings.TrimSpace(s), width)
	left := (width - runeLen(s)) / 2
	return strings.TrimRight(strings.Repeat(" ", left)+s, " ")
}

// twoCol places left and right at the edges; left is cut to make room for right.
func twoCol(left, right string, width int) string {
	right = truncate(right, width)
	room := width - runeLen(right)
	if right != "" {
		room--
	}
	if room < 0 {
		room = 0
	}
	left = truncate(left, room)
	gap := width - runeLen(left) - runeLen(right)
	return strings.TrimRight(left+strings.Repeat(" ", gap)+right, " ")
}

// wrap splits s on spaces into lines no longer than width, hard-cutting long words.
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	var out []string
	current := ""
	for _, w := range words {
		for runeLen(w) > width {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			r := []rune(w)
			out = append(out, string(r[:width]))
			w = string(r[width:])
		}
		switch {
		case current == "":
			current = w
		case runeLen(current)+1+runeLen(w) <= width:
			current += " " + w
		default:
			out = append(out, current)
			current = w
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}
