package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pricescout/internal/config"
	"pricescout/internal/model"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件降价通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendPriceDrop 发送降价邮件。
//
// SMTP 未配置或收件人为空时静默跳过，不视为错误：
// 通知缺失不应让刷新流程失败。
func (n *EmailNotifier) SendPriceDrop(ctx context.Context, product *model.Product, oldPrice, newPrice float64, toEmail string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip notification")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("[PriceScout] Price drop: %s", truncateTitle(product.Name)))
	m.SetBody("text/html", n.buildHTMLBody(product, oldPrice, newPrice))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("price drop notification sent",
		slog.String("to", toEmail),
		slog.String("platform", string(product.Platform)),
		slog.Float64("old_price", oldPrice),
		slog.Float64("new_price", newPrice))
	return nil
}

func (n *EmailNotifier) buildHTMLBody(product *model.Product, oldPrice, newPrice float64) string {
	currency := product.Currency
	if currency == "" {
		currency = "USD"
	}
	priceLine := fmt.Sprintf("%s %.2f → %s %.2f 📉", currency, oldPrice, currency, newPrice)

	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .hero img { width: 100%%; max-width: 520px; display: block; margin: 0 auto 16px; border-radius: 8px; }
  .price { font-size: 26px; font-weight: bold; color: #ef4444; margin: 8px 0 12px; }
  .title { font-size: 16px; margin-bottom: 16px; }
  .cta { display: inline-block; padding: 12px 20px; background: #22c55e; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[PriceScout] 📉 Price Drop Alert</div>
    <div class="content">
      <div class="hero"><img src="%s" alt="Product Image" /></div>
      <div class="price">%s</div>
      <div class="title">%s</div>
      <div style="text-align:center; margin-bottom: 12px;">
        <a class="cta" href="%s" target="_blank">View Product</a>
      </div>
      <div class="footer">Platform: %s</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template, product.ImageURL, priceLine, product.Name, product.URL, product.Platform)
}

func truncateTitle(title string) string {
	const max = 60
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max]) + "..."
}
