package linkedin

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/recruiter-outreach/internal/browser"
)

// Markup collects every element descriptor the outreach flow depends on.
// Remote markup changes without notice, so all of it can be overridden from config.
type Markup struct {
	Search  SearchMarkup  `mapstructure:"search"`
	Profile ProfileMarkup `mapstructure:"profile"`
}

type SearchMarkup struct {
	// Results signals that a results page finished rendering.
	Results browser.Descriptor `mapstructure:"results"`
	Next    browser.Descriptor `mapstructure:"next"`
	Card    CardMarkup         `mapstructure:"card"`
}

// CardMarkup holds CSS selectors evaluated inside a single result card.
type CardMarkup struct {
	Container       browser.Descriptor `mapstructure:"container"`
	Name            string             `mapstructure:"name"`
	Link            string             `mapstructure:"link"`
	Headline        string             `mapstructure:"headline"`
	Location        string             `mapstructure:"location"`
	Badge           string             `mapstructure:"badge"`
	ConnectedLabels []string           `mapstructure:"connected-labels"`
}

type ProfileMarkup struct {
	Connect         browser.Descriptor `mapstructure:"connect"`
	AddNote         browser.Descriptor `mapstructure:"add-note"`
	Message         browser.Descriptor `mapstructure:"message"`
	SendWithNote    browser.Descriptor `mapstructure:"send-with-note"`
	SendWithoutNote browser.Descriptor `mapstructure:"send-without-note"`
	Confirmation    browser.Descriptor `mapstructure:"confirmation"`
	Dismiss         browser.Descriptor `mapstructure:"dismiss"`
}

// DefaultMarkup matches the people search and profile pages in English and Portuguese.
func DefaultMarkup() Markup {
	return Markup{
		Search: SearchMarkup{
			Results: browser.Descriptor{
				Name:  "results",
				Kind:  browser.XPath,
				Query: "//div[@data-view-name='search-entity-result']",
			},
			Next: browser.Descriptor{
				Name:  "next-page",
				Kind:  browser.XPath,
				Query: "//button[contains(@aria-label, 'Próxima') or contains(@aria-label, 'Next')][not(@disabled)]",
			},
			Card: CardMarkup{
				Container: browser.Descriptor{
					Name:  "card",
					Kind:  browser.CSS,
					Query: "div[data-view-name='search-entity-result']",
				},
				Name:            ".entity-result__title-text a span[aria-hidden='true']",
				Link:            ".entity-result__title-text a",
				Headline:        ".entity-result__primary-subtitle",
				Location:        ".entity-result__secondary-subtitle",
				Badge:           "span",
				ConnectedLabels: []string{"Conectado", "Connected", "1º", "1st"},
			},
		},
		Profile: ProfileMarkup{
			Connect: browser.Descriptor{
				Name:  "connect",
				Kind:  browser.XPath,
				Query: "//main//button[contains(@aria-label, 'Conectar') or contains(@aria-label, 'Connect')]",
			},
			AddNote: browser.Descriptor{
				Name:  "add-note",
				Kind:  browser.XPath,
				Query: "//button[contains(@aria-label, 'Adicionar nota') or contains(@aria-label, 'Add a note')]",
			},
			Message: browser.Descriptor{
				Name:  "message",
				Kind:  browser.CSS,
				Query: "textarea[name='message']",
			},
			SendWithNote: browser.Descriptor{
				Name:  "send-with-note",
				Kind:  browser.XPath,
				Query: "//button[contains(@aria-label, 'Enviar convite') or contains(@aria-label, 'Send invitation') or contains(@aria-label, 'Send now')]",
			},
			SendWithoutNote: browser.Descriptor{
				Name:  "send-without-note",
				Kind:  browser.XPath,
				Query: "//button[contains(@aria-label, 'Enviar sem nota') or contains(@aria-label, 'Send without a note') or contains(@aria-label, 'Enviar convite') or contains(@aria-label, 'Send invitation') or contains(@aria-label, 'Send now')]",
			},
			Confirmation: browser.Descriptor{
				Name:  "confirmation",
				Kind:  browser.XPath,
				Query: "//main//button[contains(@aria-label, 'Pendente') or contains(@aria-label, 'Pending')]",
			},
			Dismiss: browser.Descriptor{
				Name:  "dismiss",
				Kind:  browser.XPath,
				Query: "//button[contains(@aria-label, 'Dismiss') or contains(@aria-label, 'Fechar')]",
			},
		},
	}
}

// ParseCard extracts a candidate from the markup of one result card. Cards
// without a profile link are reported as not ok.
func ParseCard(html string, m CardMarkup) (*Candidate, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}

	href, ok := doc.Find(m.Link).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return nil, false
	}
	if strings.HasPrefix(href, "/") {
		href = BaseURL + href
	}

	name := text(doc, m.Name)
	if name == "" {
		name = text(doc, m.Link)
	}

	cand := &Candidate{
		Name:       name,
		Headline:   text(doc, m.Headline),
		Location:   text(doc, m.Location),
		ProfileRef: href,
	}

	if len(m.ConnectedLabels) > 0 && m.Badge != "" {
		doc.Find(m.Badge).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			label := strings.TrimSpace(s.Text())
			for _, want := range m.ConnectedLabels {
				if strings.Contains(label, want) {
					cand.AlreadyConnected = true
					return false
				}
			}
			return true
		})
	}

	return cand, true
}

func text(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
}
