package mail

import (
	"fmt"
	"strings"

	"github.com/thegiantbeast/momentus-shop-api/core"
)

type localeTemplate struct {
	subject string
	text    string
	html    string
}

// LocaleTemplateStore renders customer-facing messages per locale. Unknown
// locales fall back to Portuguese, the shop's primary language.
type LocaleTemplateStore struct {
	fallback  string
	templates map[string]map[string]localeTemplate
}

func NewLocaleTemplateStore() *LocaleTemplateStore {
	return &LocaleTemplateStore{
		fallback: core.LocalePT,
		templates: map[string]map[string]localeTemplate{
			core.LocalePT: {
				core.TemplateKindArtwork: {
					subject: "A arte da sua encomenda {{order_number}} esta pronta",
					text: "Ola!\n\nA arte de \"{{item_name}}\" da encomenda {{order_number}} esta pronta " +
						"e segue em anexo.\n\nQualquer duvida, responda a este email.\n\nObrigado!",
					html: "<p>Ola!</p><p>A arte de <strong>{{item_name}}</strong> da encomenda " +
						"{{order_number}} esta pronta e segue em anexo.</p><p>Qualquer duvida, responda a este email.</p>",
				},
				core.TemplateKindReminder: {
					subject: "Encomenda {{order_number}}: faltam os seus ficheiros",
					text: "Ola!\n\nAinda nao recebemos os ficheiros da sua encomenda {{order_number}}. " +
						"Responda a este email com os ficheiros para podermos avancar.\n\nObrigado!",
					html: "<p>Ola!</p><p>Ainda nao recebemos os ficheiros da sua encomenda " +
						"{{order_number}}. Responda a este email com os ficheiros para podermos avancar.</p>",
				},
			},
			core.LocaleEN: {
				core.TemplateKindArtwork: {
					subject: "Your artwork for order {{order_number}} is ready",
					text: "Hi!\n\nThe artwork for \"{{item_name}}\" from order {{order_number}} is ready " +
						"and attached to this email.\n\nIf you have any questions, just reply.\n\nThank you!",
					html: "<p>Hi!</p><p>The artwork for <strong>{{item_name}}</strong> from order " +
						"{{order_number}} is ready and attached to this email.</p><p>If you have any questions, just reply.</p>",
				},
				core.TemplateKindReminder: {
					subject: "Order {{order_number}}: we are still missing your files",
					text: "Hi!\n\nWe have not received the files for your order {{order_number}} yet. " +
						"Please reply to this email with the files so we can move forward.\n\nThank you!",
					html: "<p>Hi!</p><p>We have not received the files for your order " +
						"{{order_number}} yet. Please reply to this email with the files so we can move forward.</p>",
				},
			},
			core.LocaleES: {
				core.TemplateKindArtwork: {
					subject: "El arte de su pedido {{order_number}} esta listo",
					text: "Hola!\n\nEl arte de \"{{item_name}}\" del pedido {{order_number}} esta listo " +
						"y va adjunto a este correo.\n\nSi tiene alguna duda, responda a este correo.\n\nGracias!",
					html: "<p>Hola!</p><p>El arte de <strong>{{item_name}}</strong> del pedido " +
						"{{order_number}} esta listo y va adjunto a este correo.</p><p>Si tiene alguna duda, responda a este correo.</p>",
				},
				core.TemplateKindReminder: {
					subject: "Pedido {{order_number}}: aun faltan sus archivos",
					text: "Hola!\n\nTodavia no hemos recibido los archivos de su pedido {{order_number}}. " +
						"Responda a este correo con los archivos para poder avanzar.\n\nGracias!",
					html: "<p>Hola!</p><p>Todavia no hemos recibido los archivos de su pedido " +
						"{{order_number}}. Responda a este correo con los archivos para poder avanzar.</p>",
				},
			},
		},
	}
}

func (s *LocaleTemplateStore) Resolve(locale, kind string, data core.TemplateData) (core.MessageTemplate, error) {
	normalized := core.NormalizeLocale(locale)
	byKind, ok := s.templates[normalized]
	if !ok {
		byKind, ok = s.templates[s.fallback]
		if !ok {
			return core.MessageTemplate{}, fmt.Errorf("mail: no templates for locale %q", locale)
		}
	}
	template, ok := byKind[kind]
	if !ok {
		return core.MessageTemplate{}, fmt.Errorf("mail: no %q template for locale %q", kind, normalized)
	}

	replacer := strings.NewReplacer(
		"{{order_number}}", data.OrderNumber,
		"{{item_name}}", data.ItemName,
	)
	return core.MessageTemplate{
		Subject: replacer.Replace(template.subject),
		Text:    replacer.Replace(template.text),
		HTML:    replacer.Replace(template.html),
	}, nil
}

var _ core.TemplateStore = (*LocaleTemplateStore)(nil)
