package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/promoloop/reelpipe/internal/models"
)

// Callers feed this API from spreadsheets, automation tools and hand-written
// scripts, so the same field arrives under many names. Payloads are accepted
// as loose JSON objects and normalized to canonical keys before use.
var fieldAliases = map[string]string{
	"id":               "job_id",
	"jobId":            "job_id",
	"job_id":           "job_id",
	"productId":        "product_id",
	"product_id":       "product_id",
	"productName":      "product_name",
	"product_name":     "product_name",
	"title":            "product_name",
	"name":             "product_name",
	"catalogId":        "catalog_id",
	"catalog_id":       "catalog_id",
	"sourceLink":       "source_link",
	"source_link":      "source_link",
	"link":             "source_link",
	"productUrl":       "source_link",
	"product_url":      "source_link",
	"hooks":            "hooks",
	"hook1":            "hook1",
	"hook2":            "hook2",
	"hook3":            "hook3",
	"ending":           "ending",
	"cta":              "ending",
	"caption":          "caption",
	"description":      "caption",
	"hashtags":         "hashtags",
	"tags":             "hashtags",
	"imageUrl":         "image_url",
	"image_url":        "image_url",
	"image":            "image_url",
	"thumbnail":        "image_url",
	"extraImages":      "extra_images",
	"extra_images":     "extra_images",
	"images":           "extra_images",
	"additionalImages": "extra_images",
	"videoUrl":         "video_url",
	"video_url":        "video_url",
	"video":            "video_url",
	"scheduledAt":      "scheduled_at",
	"scheduled_at":     "scheduled_at",
	"scheduleTime":     "scheduled_at",
	"schedule_time":    "scheduled_at",
	"postAt":           "scheduled_at",
	"accountId":        "account_id",
	"account_id":       "account_id",
	"account":          "account_id",
	"postId":           "tiktok_post_id",
	"post_id":          "tiktok_post_id",
	"tiktokPostId":     "tiktok_post_id",
	"tiktok_post_id":   "tiktok_post_id",
}

// normalizePayload maps known aliases to canonical keys, folding hook1..hook3
// into the hooks list. Unknown keys are dropped.
func normalizePayload(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		canonical, ok := fieldAliases[k]
		if !ok {
			continue
		}
		out[canonical] = v
	}

	hooks := asStringSlice(out["hooks"])
	for _, key := range []string{"hook1", "hook2", "hook3"} {
		if h := asString(out[key]); h != "" {
			hooks = append(hooks, h)
		}
		delete(out, key)
	}
	if len(hooks) > 0 {
		out["hooks"] = hooks
	}

	return out
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// asStringSlice accepts a JSON array or a comma/newline delimited string.
func asStringSlice(v interface{}) []string {
	var items []string
	switch s := v.(type) {
	case []string:
		items = s
	case []interface{}:
		for _, item := range s {
			items = append(items, asString(item))
		}
	case string:
		items = strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == '\n'
		})
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func asBool(v interface{}, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	default:
		return 0
	}
}

// asTime parses RFC3339 strings and unix epoch seconds.
func asTime(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil, nil
		}
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", trimmed, err)
		}
		return &parsed, nil
	case float64:
		parsed := time.Unix(int64(t), 0).UTC()
		return &parsed, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid timestamp type %T", v)
	}
}

// jobFromPayload builds a new job from a normalized payload.
func jobFromPayload(p map[string]interface{}) (*models.ContentJob, error) {
	job := &models.ContentJob{
		ProductID:   asString(p["product_id"]),
		ProductName: asString(p["product_name"]),
		SourceLink:  asString(p["source_link"]),
		Ending:      asString(p["ending"]),
		Caption:     asString(p["caption"]),
		ImageURL:    asString(p["image_url"]),
		VideoURL:    asString(p["video_url"]),
		Hooks:       models.StringArray(asStringSlice(p["hooks"])),
		Hashtags:    models.StringArray(asStringSlice(p["hashtags"])),
		ExtraImages: models.StringArray(asStringSlice(p["extra_images"])),
	}

	if job.ProductID == "" {
		return nil, fmt.Errorf("product id is required")
	}

	if catalogID := asInt(p["catalog_id"]); catalogID > 0 {
		id := uint(catalogID)
		job.CatalogID = &id
	}
	if accountID := asString(p["account_id"]); accountID != "" {
		job.AccountID = &accountID
	}

	scheduledAt, err := asTime(p["scheduled_at"])
	if err != nil {
		return nil, err
	}
	job.ScheduledAt = scheduledAt

	return job, nil
}

// updatesFromPayload builds a column update map from a normalized payload.
// Only content and scheduling fields are writable here; status transitions go
// through the dedicated endpoints.
func updatesFromPayload(p map[string]interface{}) (map[string]interface{}, error) {
	updates := map[string]interface{}{}

	for _, key := range []string{"product_name", "source_link", "ending", "caption", "image_url", "video_url"} {
		if _, ok := p[key]; ok {
			updates[key] = asString(p[key])
		}
	}
	for _, key := range []string{"hooks", "hashtags", "extra_images"} {
		if _, ok := p[key]; ok {
			updates[key] = models.StringArray(asStringSlice(p[key]))
		}
	}
	if _, ok := p["catalog_id"]; ok {
		if catalogID := asInt(p["catalog_id"]); catalogID > 0 {
			updates["catalog_id"] = uint(catalogID)
		}
	}
	if _, ok := p["account_id"]; ok {
		updates["account_id"] = asString(p["account_id"])
	}
	if _, ok := p["scheduled_at"]; ok {
		scheduledAt, err := asTime(p["scheduled_at"])
		if err != nil {
			return nil, err
		}
		updates["scheduled_at"] = scheduledAt
	}

	return updates, nil
}
