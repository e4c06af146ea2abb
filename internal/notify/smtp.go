package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/menlo-oaks/crimefeed/internal/classify"
	"github.com/menlo-oaks/crimefeed/internal/model"
)

// SMTPConfig holds email delivery settings.
type SMTPConfig struct {
	Host       string   `yaml:"host" mapstructure:"host"`
	Port       int      `yaml:"port" mapstructure:"port"`
	Username   string   `yaml:"username" mapstructure:"username"`
	Password   string   `yaml:"password" mapstructure:"password"`
	Recipients []string `yaml:"recipients" mapstructure:"recipients"`
	MapURL     string   `yaml:"map_url" mapstructure:"map_url"`
}

// SMTPNotifier sends one multipart (plain + HTML) email per alert over
// implicit TLS, the way Gmail's port 465 expects.
type SMTPNotifier struct {
	cfg      SMTPConfig
	areaName string

	// dial is swapped out in tests.
	dial func(addr string) (*smtp.Client, error)
}

// NewSMTP creates an SMTPNotifier.
func NewSMTP(cfg SMTPConfig, areaName string) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:      cfg,
		areaName: areaName,
		dial:     dialTLS,
	}
}

func dialTLS(addr string) (*smtp.Client, error) {
	host := addr[:strings.LastIndex(addr, ":")]
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, err
	}
	return smtp.NewClient(conn, host)
}

// Notify composes and sends the alert email.
func (n *SMTPNotifier) Notify(ctx context.Context, rec model.CrimeRecord, distanceMeters float64, cat classify.Category) error {
	if n.cfg.Username == "" || n.cfg.Password == "" {
		return eris.New("notify: smtp credentials not configured")
	}
	if len(n.cfg.Recipients) == 0 {
		return eris.New("notify: no smtp recipients configured")
	}

	msg := n.compose(rec, distanceMeters)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	client, err := n.dial(addr)
	if err != nil {
		return eris.Wrapf(err, "notify: smtp dial %s", addr)
	}
	defer client.Close() //nolint:errcheck

	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return eris.Wrap(err, "notify: smtp auth")
	}
	if err := client.Mail(n.cfg.Username); err != nil {
		return eris.Wrap(err, "notify: smtp mail from")
	}
	for _, rcpt := range n.cfg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return eris.Wrapf(err, "notify: smtp rcpt %s", rcpt)
		}
	}
	w, err := client.Data()
	if err != nil {
		return eris.Wrap(err, "notify: smtp data")
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return eris.Wrap(err, "notify: smtp write")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "notify: smtp close data")
	}
	return client.Quit()
}

// compose builds the full RFC 5322 message with plain and HTML parts.
func (n *SMTPNotifier) compose(rec model.CrimeRecord, distanceMeters float64) string {
	subject := Subject(rec, distanceMeters, n.areaName)
	location := locationLine(rec)
	severity := Severity(rec)
	miles := Miles(distanceMeters)

	dateDisplay := ""
	if rec.OccurredAt != nil {
		dateDisplay = rec.OccurredAt.UTC().Format("Jan 02, 2006 03:04 PM UTC")
	}

	plain := fmt.Sprintf("%s\n%s\n%s\nDistance: %.1fmi from %s\nDate: %s\nSeverity: %s\n\nView map: %s\n",
		rec.Headline(), location, rec.AgencyName, miles, n.areaName, dateDisplay, severity, n.cfg.MapURL)

	severityColor := "#e65100"
	if severity == "High" {
		severityColor = "#d32f2f"
	}
	html := fmt.Sprintf(`<div style="font-family:system-ui,sans-serif;max-width:520px;margin:0 auto">
  <h2 style="margin:0 0 4px">Property Crime Alert</h2>
  <p style="margin:0 0 12px;color:#666">%.1f miles from %s</p>
  <table style="width:100%%;border-collapse:collapse;font-size:14px">
    <tr><td style="padding:6px 0;color:#888;width:100px">Type</td><td style="padding:6px 0;font-weight:600">%s</td></tr>
    <tr><td style="padding:6px 0;color:#888">Severity</td><td style="padding:6px 0"><span style="background:%s;color:#fff;padding:2px 10px;border-radius:10px;font-size:12px">%s</span></td></tr>
    <tr><td style="padding:6px 0;color:#888">Location</td><td style="padding:6px 0">%s</td></tr>
    <tr><td style="padding:6px 0;color:#888">Agency</td><td style="padding:6px 0">%s</td></tr>
    <tr><td style="padding:6px 0;color:#888">Date</td><td style="padding:6px 0">%s</td></tr>
  </table>
  <p style="margin-top:16px"><a href="%s">View on Map</a></p>
</div>`,
		miles, n.areaName, rec.Headline(), severityColor, severity, location, rec.AgencyName, dateDisplay, n.cfg.MapURL)

	boundary := "crimefeed-alt"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.Username)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.cfg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, plain)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, html)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
