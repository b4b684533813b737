package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerRequiresHostAndSender(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "stok@example.com"})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"})
	require.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "stok@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 587, m.cfg.Port)
	assert.Positive(t, m.cfg.Timeout)
}
