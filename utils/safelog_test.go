package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withProduction(t *testing.T, v bool) {
	t.Helper()
	prev := IsProduction
	IsProduction = v
	t.Cleanup(func() { IsProduction = prev })
}

func TestMaskString(t *testing.T) {
	withProduction(t, true)

	masked := MaskString("call 515-555-0142 or mail sales@prairieseed.com, deliver to 1420 County Road 7 Rd")
	assert.NotContains(t, masked, "515-555-0142")
	assert.NotContains(t, masked, "sales@prairieseed.com")
	assert.NotContains(t, masked, "1420 County Road")
	assert.Contains(t, masked, "***@***.***")

	withProduction(t, false)
	assert.Equal(t, "sales@prairieseed.com", MaskString("sales@prairieseed.com"))
}

func TestMaskLocation(t *testing.T) {
	assert.Equal(t, "Ames, IA", MaskLocation(" Ames ", "ia"))
	assert.Equal(t, "IA", MaskLocation("", "ia"))
	assert.Equal(t, "Ames", MaskLocation("Ames", ""))
	assert.Equal(t, "unknown location", MaskLocation("", " "))
}

func TestLineFormatter(t *testing.T) {
	withProduction(t, true)

	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&LineFormatter{})

	l.WithFields(logrus.Fields{"supplier": "AgriCorp", "contact": "ops@agricorp.com"}).Warn("quote rejected")

	line := buf.String()
	require.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "quote rejected contact=***@***.*** supplier=AgriCorp")
}
