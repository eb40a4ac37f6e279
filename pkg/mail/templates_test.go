package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_DefaultTemplate(t *testing.T) {
	r, err := NewRenderer("Your daily cat fact!", "")
	require.NoError(t, err)

	msg, err := r.Render("cat@example.com", "  Cats can rotate their ears 180 degrees. ", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "cat@example.com", msg.To)
	assert.Equal(t, "Your daily cat fact!", msg.Subject)
	assert.Contains(t, msg.Body, "subscribed to Cat Facts")
	assert.Contains(t, msg.Body, "Did you know? Cats can rotate their ears 180 degrees.\n")
}

func TestRenderer_CustomTemplateWithSprig(t *testing.T) {
	tmpl := `{{ .Date }} for {{ .Recipient | lower }}: {{ .Fact | upper }}`
	r, err := NewRenderer("s", tmpl)
	require.NoError(t, err)

	msg, err := r.Render("Cat@Example.com", "purr", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01 for cat@example.com: PURR", msg.Body)
}

func TestRenderer_InvalidTemplate(t *testing.T) {
	_, err := NewRenderer("s", "{{ .Fact ")
	assert.Error(t, err)
}

func TestRenderer_UnknownFieldFailsAtRender(t *testing.T) {
	r, err := NewRenderer("s", "{{ .Nope }}")
	require.NoError(t, err)

	_, err = r.Render("cat@example.com", "fact", time.Now())
	assert.Error(t, err)
}

func TestRenderer_Subject(t *testing.T) {
	r, err := NewRenderer("Fixed subject", "")
	require.NoError(t, err)
	assert.Equal(t, "Fixed subject", r.Subject())
}
