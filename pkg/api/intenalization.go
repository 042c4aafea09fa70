package api

import (
	"strings"

	"github.com/arnac-io/paygate/pkg/api/i18n"
)

func normalizeLanguage(s string) string {
	if strings.HasPrefix(s, "ru") {
		return "ru"
	}
	return "en"
}

func translate(acceptLanguage string, messageID string, data i18n.Template) string {
	return i18n.T(normalizeLanguage(acceptLanguage), i18n.C{MessageID: messageID, TemplateData: data})
}
