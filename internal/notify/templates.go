package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Email is a rendered message ready to send.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type templateData struct {
	Purchase
	Price        string
	ValidFor     string
	SupportEmail string
	Year         int
}

var purchaseHTML = htmltemplate.Must(htmltemplate.New("purchase").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Your purchase: {{.TrackTitle}}</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h2>Thank you for your purchase!</h2>
  <p>Your payment has been processed successfully. You can now download your track.</p>
  <div style="background: #f9f9f9; padding: 20px; border-radius: 6px;">
    <h3 style="margin: 0 0 10px 0;">{{.TrackTitle}}</h3>
    <p><strong>Artist:</strong> {{.ArtistName}}</p>
    <p><strong>License:</strong> {{.LicenseType}}</p>
    <p><strong>Price:</strong> {{.Price}}</p>
  </div>
  <p style="text-align: center;"><a href="{{.DownloadURL}}" style="background: #000; color: #fff; padding: 14px 28px; border-radius: 6px; text-decoration: none;">Download Your Track</a></p>
  <p style="background: #fffbea; border-left: 4px solid #f59e0b; padding: 15px;"><strong>Important:</strong> your download link is valid for <strong>{{.ValidFor}}</strong>. Please download your files before the link expires.</p>
  <p style="font-size: 14px; color: #666;"><strong>Order ID:</strong> {{.OrderID}}<br>
  <strong>Download Link:</strong><br><a href="{{.DownloadURL}}">{{.DownloadURL}}</a></p>
  <p><strong>What's included:</strong></p>
  <ul>
    <li>High-quality WAV file (uncompressed)</li>
    <li>MP3 file (320kbps)</li>
    <li>{{.LicenseType}} License Agreement</li>
  </ul>
  {{if .SupportEmail}}<p>If you have any questions or issues with your download, contact us at <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a>.</p>{{end}}
  <p style="font-size: 12px; color: #666; text-align: center;">&copy; {{.Year}}. This email was sent to {{.CustomerEmail}}</p>
</body>
</html>
`))

var purchaseText = texttemplate.Must(texttemplate.New("purchase").Parse(`Purchase Confirmation

Thank you for your purchase!

Track: {{.TrackTitle}}
Artist: {{.ArtistName}}
License: {{.LicenseType}}
Price: {{.Price}}

Download your track here (valid for {{.ValidFor}}):
{{.DownloadURL}}

Order ID: {{.OrderID}}

What's included:
- High-quality WAV file (uncompressed)
- MP3 file (320kbps)
- {{.LicenseType}} License Agreement
{{if .SupportEmail}}
If you have any questions, contact us at {{.SupportEmail}}
{{end}}`))

var saleHTML = htmltemplate.Must(htmltemplate.New("sale").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>New sale</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333;">
  <h2>New sale: {{.Price}}</h2>
  <table cellpadding="6">
    <tr><td><strong>Track</strong></td><td>{{.TrackTitle}}</td></tr>
    <tr><td><strong>Artist</strong></td><td>{{.ArtistName}}</td></tr>
    <tr><td><strong>License</strong></td><td>{{.LicenseType}}</td></tr>
    <tr><td><strong>Buyer</strong></td><td>{{.CustomerEmail}}</td></tr>
    <tr><td><strong>Order ID</strong></td><td>{{.OrderID}}</td></tr>
  </table>
</body>
</html>
`))

var saleText = texttemplate.Must(texttemplate.New("sale").Parse(`New sale: {{.Price}}

Track: {{.TrackTitle}}
Artist: {{.ArtistName}}
License: {{.LicenseType}}
Buyer: {{.CustomerEmail}}
Order ID: {{.OrderID}}
`))

func newTemplateData(p Purchase, supportEmail string, now time.Time) templateData {
	valid := "24 hours"
	if !p.ExpiresAt.IsZero() {
		if h := int(p.ExpiresAt.Sub(now).Round(time.Hour).Hours()); h > 0 && h != 24 {
			valid = fmt.Sprintf("%d hours", h)
		}
	}
	return templateData{
		Purchase:     p,
		Price:        FormatPrice(p.PriceCents),
		ValidFor:     valid,
		SupportEmail: supportEmail,
		Year:         now.Year(),
	}
}

// RenderPurchaseConfirmation builds the buyer's email.
func RenderPurchaseConfirmation(p Purchase, supportEmail string, now time.Time) (Email, error) {
	data := newTemplateData(p, supportEmail, now)
	var html, text bytes.Buffer
	if err := purchaseHTML.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("render purchase html: %w", err)
	}
	if err := purchaseText.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render purchase text: %w", err)
	}
	return Email{
		To:      p.CustomerEmail,
		Subject: "Your purchase: " + p.TrackTitle,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}

// RenderSaleNotification builds the operator's email.
func RenderSaleNotification(p Purchase, operator string, now time.Time) (Email, error) {
	data := newTemplateData(p, "", now)
	var html, text bytes.Buffer
	if err := saleHTML.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("render sale html: %w", err)
	}
	if err := saleText.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render sale text: %w", err)
	}
	return Email{
		To:      operator,
		Subject: fmt.Sprintf("New sale: %s - %s", p.TrackTitle, data.Price),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}
