package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/wdstore/internal/models"
)

const (
	emailIdemWindow  = 24 * time.Hour
	emailIdemMaxRows = 1000
	emailLogMaxRows  = 500
	schedulerPeriod  = 30 * time.Second
)

// Emailer turns order events into template emails. It subscribes to
// every bus key, matches enabled rules against the event, and either
// sends immediately or queues a ScheduledEmail. Because the same order
// signal arrives over several emit paths, each (template, event, order)
// triple is suppressed for 24 hours after the first send.
type Emailer struct {
	db         *gorm.DB
	rdb        *redis.Client
	mailer     Mailer
	site       SiteInfo
	adminEmail string
	nowFn      func() time.Time
}

func NewEmailer(db *gorm.DB, rdb *redis.Client, mailer Mailer, site SiteInfo, adminEmail string) *Emailer {
	return &Emailer{
		db:         db,
		rdb:        rdb,
		mailer:     mailer,
		site:       site,
		adminEmail: adminEmail,
		nowFn:      time.Now,
	}
}

// Subscribe attaches the emailer to every event the bus carries.
func (e *Emailer) Subscribe(bus *Bus) {
	bus.SubscribeAll(e.HandleEvent)
}

// HandleEvent matches rules against one order event and dispatches the
// resulting emails.
func (e *Emailer) HandleEvent(evt OrderEvent) {
	e.logEntry("event", "", "", "", evt.Key, fmt.Sprintf("order=%s", evt.OrderID))

	var rules []models.EmailRule
	if err := e.db.Where("enabled = ?", true).Find(&rules).Error; err != nil {
		log.Printf("[Emailer] Failed to load rules: %v", err)
		return
	}

	payload := e.augmentPayload(evt.OrderID, evt.Payload)

	for _, rule := range rules {
		if !triggerMatches(rule.Trigger, evt.Key) {
			continue
		}
		if !e.conditionsMet(rule.Conditions, payload) {
			e.logEntry("skipped", "", rule.TemplateID.String(), rule.Name, evt.Key, "conditions not met")
			continue
		}

		var tpl models.EmailTemplate
		if err := e.db.First(&tpl, "id = ?", rule.TemplateID).Error; err != nil {
			e.logEntry("error", "", rule.TemplateID.String(), rule.Name, evt.Key, "template not found")
			continue
		}
		if !tpl.Published {
			continue
		}

		recipients := e.resolveRecipients(rule, tpl, payload)
		if len(recipients) == 0 {
			e.logEntry("skipped", "", tpl.ID.String(), rule.Name, evt.Key, "no recipients")
			continue
		}

		key := idemKey(tpl.ID.String(), evt.Key, evt.OrderID.String())
		if e.idemSeen(key) {
			e.logEntry("deduped", strings.Join(recipients, ","), tpl.ID.String(), rule.Name, evt.Key, "")
			continue
		}

		if rule.DelayMinutes > 0 {
			e.schedule(tpl, rule, recipients, evt.Key, payload)
			e.idemMark(key)
			continue
		}

		if err := e.deliver(tpl, recipients, payload, rule.Name, evt.Key); err == nil {
			e.idemMark(key)
		}
	}
}

// triggerMatches accepts both canonical keys ("order.paid") and the
// short kind ("paid") a rule may have been saved with.
func triggerMatches(trigger, key string) bool {
	if trigger == key {
		return true
	}
	return "order."+trigger == key
}

// conditionsMet evaluates a comma-separated list of conditions against
// the payload. "min_total:N" compares the order total; "key=value"
// compares a payload field case-insensitively. Empty conditions pass.
func (e *Emailer) conditionsMet(conditions string, payload map[string]string) bool {
	conditions = strings.TrimSpace(conditions)
	if conditions == "" {
		return true
	}

	for _, cond := range strings.Split(conditions, ",") {
		cond = strings.TrimSpace(cond)
		if cond == "" {
			continue
		}

		if after, ok := strings.CutPrefix(cond, "min_total:"); ok {
			min, err := strconv.ParseFloat(strings.TrimSpace(after), 64)
			if err != nil {
				continue
			}
			total, err := strconv.ParseFloat(payload["order_total"], 64)
			if err != nil || total < min {
				return false
			}
			continue
		}

		if key, want, ok := strings.Cut(cond, "="); ok {
			got := payload[strings.TrimSpace(key)]
			if !strings.EqualFold(got, strings.TrimSpace(want)) {
				return false
			}
		}
	}
	return true
}

// resolveRecipients turns a rule's recipient setting into addresses.
// "set" defers to the template's send-to selection, where a missing
// customer address falls back to the admin.
func (e *Emailer) resolveRecipients(rule models.EmailRule, tpl models.EmailTemplate, payload map[string]string) []string {
	switch rule.Recipient {
	case "customer":
		if addr := payload["customer_email"]; addr != "" {
			return []string{addr}
		}
		return nil
	case "admin":
		if e.adminEmail != "" {
			return []string{e.adminEmail}
		}
		return nil
	case "custom":
		return splitAddresses(rule.RecipientEmail)
	}

	// "set": template drives recipients
	var out []string
	targets := tpl.SendTo
	if len(targets) == 0 {
		targets = []string{"customer"}
	}
	for _, target := range targets {
		switch target {
		case "customer":
			if addr := payload["customer_email"]; addr != "" {
				out = append(out, addr)
			} else if e.adminEmail != "" {
				out = append(out, e.adminEmail)
			}
		case "admin":
			if e.adminEmail != "" {
				out = append(out, e.adminEmail)
			}
		case "custom":
			out = append(out, splitAddresses(tpl.CustomRecipients)...)
		}
	}
	return dedupeAddresses(out)
}

func splitAddresses(raw string) []string {
	raw = strings.ReplaceAll(raw, ";", ",")
	var out []string
	for _, addr := range strings.Split(raw, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func dedupeAddresses(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	var out []string
	for _, a := range addrs {
		key := strings.ToLower(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func idemKey(templateID, event, orderID string) string {
	sum := md5.Sum([]byte(templateID + "|" + event + "|" + orderID))
	return hex.EncodeToString(sum[:])
}

func (e *Emailer) idemSeen(key string) bool {
	if e.rdb != nil {
		n, err := e.rdb.Exists(context.Background(), "wdss:email:idem:"+key).Result()
		if err == nil {
			return n > 0
		}
		log.Printf("[Emailer] Redis idempotency check failed, using database: %v", err)
	}

	var row models.EmailIdempotency
	err := e.db.First(&row, "key = ?", key).Error
	if err != nil {
		return false
	}
	return e.nowFn().Sub(row.SeenAt) < emailIdemWindow
}

func (e *Emailer) idemMark(key string) {
	now := e.nowFn()

	if e.rdb != nil {
		if err := e.rdb.SetNX(context.Background(), "wdss:email:idem:"+key, "1", emailIdemWindow).Err(); err == nil {
			return
		}
	}

	e.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"seen_at"}),
	}).Create(&models.EmailIdempotency{Key: key, SeenAt: now})

	var count int64
	e.db.Model(&models.EmailIdempotency{}).Count(&count)
	if count > emailIdemMaxRows {
		e.db.Exec(`DELETE FROM email_idempotencies WHERE key IN
			(SELECT key FROM email_idempotencies ORDER BY seen_at ASC LIMIT ?)`,
			count-emailIdemMaxRows)
	}
}

// schedule queues one delayed row per recipient batch.
func (e *Emailer) schedule(tpl models.EmailTemplate, rule models.EmailRule, recipients []string, event string, payload map[string]string) {
	raw, _ := json.Marshal(payload)
	row := models.ScheduledEmail{
		TemplateID: tpl.ID,
		To:         strings.Join(recipients, ","),
		Payload:    raw,
		RuleName:   rule.Name,
		Event:      event,
		RunAt:      e.nowFn().Add(time.Duration(rule.DelayMinutes) * time.Minute),
	}
	if err := e.db.Create(&row).Error; err != nil {
		log.Printf("[Emailer] Failed to schedule email: %v", err)
		return
	}
	e.logEntry("scheduled", row.To, tpl.ID.String(), rule.Name, event,
		fmt.Sprintf("delay=%dm", rule.DelayMinutes))
}

// SendScheduled drains due scheduled rows. Called by the scheduler loop
// and by the admin diagnostics endpoint.
func (e *Emailer) SendScheduled() int {
	var due []models.ScheduledEmail
	if err := e.db.Where("sent_at IS NULL AND failed = ? AND run_at <= ?", false, e.nowFn()).
		Order("run_at asc").Limit(50).Find(&due).Error; err != nil {
		log.Printf("[Emailer] Failed to load scheduled emails: %v", err)
		return 0
	}

	sent := 0
	for _, row := range due {
		var tpl models.EmailTemplate
		if err := e.db.First(&tpl, "id = ?", row.TemplateID).Error; err != nil {
			e.db.Model(&models.ScheduledEmail{}).Where("id = ?", row.ID).Update("failed", true)
			continue
		}

		var payload map[string]string
		if len(row.Payload) > 0 {
			json.Unmarshal(row.Payload, &payload)
		}

		recipients := splitAddresses(row.To)
		if err := e.deliver(tpl, recipients, payload, row.RuleName, row.Event); err != nil {
			e.db.Model(&models.ScheduledEmail{}).Where("id = ?", row.ID).Update("failed", true)
			continue
		}
		now := e.nowFn()
		e.db.Model(&models.ScheduledEmail{}).Where("id = ?", row.ID).Update("sent_at", now)
		sent++
	}
	return sent
}

// RunScheduler drains due scheduled emails on a fixed tick until the
// context is cancelled.
func (e *Emailer) RunScheduler(ctx context.Context) {
	ticker := time.NewTicker(schedulerPeriod)
	defer ticker.Stop()

	log.Println("[Emailer] Scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[Emailer] Scheduler stopped")
			return
		case <-ticker.C:
			e.SendScheduled()
		}
	}
}

// deliver renders a template against the payload and hands it to the
// mailer, recording the outcome in the diagnostics log.
func (e *Emailer) deliver(tpl models.EmailTemplate, to []string, payload map[string]string, ruleName, event string) error {
	subject := RenderTemplate(tpl.Subject, payload)
	body := e.wrapHTML(RenderTemplate(tpl.Body, payload))

	headers := append([]string{}, tpl.Headers...)
	if tpl.CC != "" {
		headers = append(headers, "Cc: "+tpl.CC)
	}
	if tpl.BCC != "" {
		headers = append(headers, "Bcc: "+tpl.BCC)
	}
	if tpl.ReplyTo != "" {
		headers = append(headers, "Reply-To: "+tpl.ReplyTo)
	}

	if err := e.mailer.Send(to, subject, body, headers); err != nil {
		e.logEntry("failed", strings.Join(to, ","), tpl.ID.String(), ruleName, event, err.Error())
		return err
	}
	e.logEntry("sent", strings.Join(to, ","), tpl.ID.String(), ruleName, event, "")
	return nil
}

// SendTest delivers a template to one address with sample data. Used by
// the admin test-send endpoint.
func (e *Emailer) SendTest(templateID uuid.UUID, to string) error {
	var tpl models.EmailTemplate
	if err := e.db.First(&tpl, "id = ?", templateID).Error; err != nil {
		return err
	}
	return e.deliver(tpl, []string{to}, e.samplePayload(), "test", "test")
}

// Preview renders a template's subject and body with sample data.
func (e *Emailer) Preview(templateID uuid.UUID) (subject, body string, err error) {
	var tpl models.EmailTemplate
	if err := e.db.First(&tpl, "id = ?", templateID).Error; err != nil {
		return "", "", err
	}
	payload := e.samplePayload()
	return RenderTemplate(tpl.Subject, payload), e.wrapHTML(RenderTemplate(tpl.Body, payload)), nil
}

func (e *Emailer) samplePayload() map[string]string {
	return map[string]string{
		"order_id":       uuid.NewString(),
		"order_number":   "#123456789",
		"order_status":   models.OrderStatusPaid,
		"order_total":    "120.10",
		"customer_email": "customer@example.com",
		"customer_name":  "Sample Customer",
		"tracking_id":    "TRACK-001",
		"site_name":      e.site.Name,
		"site_url":       e.site.URL,
	}
}

// RenderTemplate substitutes {{key}} and {key} placeholders.
func RenderTemplate(text string, payload map[string]string) string {
	for k, v := range payload {
		text = strings.ReplaceAll(text, "{{"+k+"}}", v)
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

func (e *Emailer) wrapHTML(body string) string {
	if strings.Contains(strings.ToLower(body), "<html") {
		return body
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f4;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:600px;margin:0 auto;background:#ffffff;padding:24px;">
    %s
    <hr style="border:none;border-top:1px solid #e0e0e0;margin-top:24px;">
    <p style="color:#888;font-size:12px;">%s &middot; <a href="%s" style="color:#888;">%s</a></p>
  </div>
</body>
</html>`, body, e.site.Name, e.site.URL, e.site.URL)
}

// augmentPayload backfills payload gaps from the order row and site info.
func (e *Emailer) augmentPayload(orderID uuid.UUID, payload map[string]string) map[string]string {
	out := make(map[string]string, len(payload)+4)
	for k, v := range payload {
		out[k] = v
	}
	if out["site_name"] == "" {
		out["site_name"] = e.site.Name
	}
	if out["site_url"] == "" {
		out["site_url"] = e.site.URL
	}

	if out["order_number"] == "" || out["customer_email"] == "" || out["order_total"] == "" {
		var order models.Order
		if err := e.db.First(&order, "id = ?", orderID).Error; err == nil {
			fill := map[string]string{
				"order_id":       order.ID.String(),
				"order_number":   order.Number,
				"order_status":   order.Status,
				"order_total":    FormatAmount(order.Total),
				"customer_email": order.CustomerEmail,
				"customer_name":  order.CustomerName,
				"tracking_id":    order.TrackingID,
			}
			for k, v := range fill {
				if out[k] == "" {
					out[k] = v
				}
			}
		}
	}
	return out
}

// RegenerateRules rebuilds the derived rules for a template from its
// automation metadata. Manual rules pointing at the template are left
// alone.
func (e *Emailer) RegenerateRules(tpl *models.EmailTemplate) error {
	if err := e.db.Where("template_id = ? AND derived = ?", tpl.ID, true).
		Delete(&models.EmailRule{}).Error; err != nil {
		return err
	}
	if !tpl.AutoEnable || !tpl.Published {
		return nil
	}

	for _, trigger := range tpl.AutoTriggers {
		trigger = strings.TrimSpace(trigger)
		if trigger == "" {
			continue
		}
		rule := models.EmailRule{
			Enabled:      true,
			Name:         fmt.Sprintf("Auto: %s (%s)", tpl.Name, trigger),
			Trigger:      trigger,
			DelayMinutes: tpl.AutoDelayMinutes,
			TemplateID:   tpl.ID,
			Recipient:    "set",
			Conditions:   tpl.AutoConditions,
			Derived:      true,
		}
		if err := e.db.Create(&rule).Error; err != nil {
			return err
		}
	}
	return nil
}

// logEntry appends one diagnostics row, pruning the ring to its cap.
func (e *Emailer) logEntry(kind, to, templateID, ruleName, event, meta string) {
	row := models.EmailLogEntry{
		Type:       kind,
		To:         to,
		TemplateID: templateID,
		RuleName:   ruleName,
		Event:      event,
		Meta:       meta,
	}
	if err := e.db.Create(&row).Error; err != nil {
		return
	}

	var count int64
	e.db.Model(&models.EmailLogEntry{}).Count(&count)
	if count > emailLogMaxRows {
		e.db.Exec(`DELETE FROM email_log_entries WHERE id IN
			(SELECT id FROM email_log_entries ORDER BY created_at ASC LIMIT ?)`,
			count-emailLogMaxRows)
	}
}
