package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"notify-service/internal/models"
)

func TestTemplateApplyWithoutRegistration(t *testing.T) {
	r := newTemplateRegistry()

	input := models.NotificationInput{UserID: "alice", Type: "message", Title: "hi"}
	assert.Equal(t, input, r.apply(input))
}

func TestTemplateApplyFillsEmptyFields(t *testing.T) {
	r := newTemplateRegistry()
	r.register(models.Template{
		Type:            "order-shipped",
		Title:           "Order {{orderId}} shipped",
		Body:            "Arriving {{eta}}",
		DefaultCategory: "orders",
	})

	out := r.apply(models.NotificationInput{
		UserID: "alice",
		Type:   "order-shipped",
		Data:   map[string]interface{}{"orderId": 42, "eta": "tomorrow"},
	})

	assert.Equal(t, "Order 42 shipped", out.Title)
	assert.Equal(t, "Arriving tomorrow", out.Body)
	assert.Equal(t, "orders", out.Category)
}

func TestTemplateApplyKeepsExplicitValues(t *testing.T) {
	r := newTemplateRegistry()
	r.register(models.Template{
		Type:            "order-shipped",
		Title:           "templated",
		DefaultCategory: "orders",
	})

	out := r.apply(models.NotificationInput{
		UserID:   "alice",
		Type:     "order-shipped",
		Title:    "explicit",
		Category: "custom",
	})

	assert.Equal(t, "explicit", out.Title)
	assert.Equal(t, "custom", out.Category)
}

func TestTemplateRegistrationReplaces(t *testing.T) {
	r := newTemplateRegistry()
	r.register(models.Template{Type: "welcome", Title: "v1"})
	r.register(models.Template{Type: "welcome", Title: "v2"})

	out := r.apply(models.NotificationInput{UserID: "alice", Type: "welcome"})
	assert.Equal(t, "v2", out.Title)
}

func TestRenderTemplateLeavesUnknownPlaceholders(t *testing.T) {
	out := renderTemplate("Hello {{name}}, {{missing}}", map[string]interface{}{"name": "alice"})
	assert.Equal(t, "Hello alice, {{missing}}", out)
}
