// Package i18n resolves message keys into localized text.
package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

var supported = []language.Tag{
	language.English,
	language.Russian,
}

var matcher = language.NewMatcher(supported)

// Catalog holds the messages of one language. Keys missing from it fall
// back to English, then to the key itself.
type Catalog struct {
	lang     language.Tag
	messages map[string]*template.Template
	fallback map[string]*template.Template
}

// Load builds the catalog best matching lang, e.g. "ru", "en-US" or "".
func Load(lang string) (*Catalog, error) {
	tag := language.English

	if strings.TrimSpace(lang) != "" {
		requested, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", lang, err)
		}

		_, idx, _ := matcher.Match(requested)
		tag = supported[idx]
	}

	fallback, err := parse(language.English)
	if err != nil {
		return nil, err
	}

	messages := fallback
	if tag != language.English {
		if messages, err = parse(tag); err != nil {
			return nil, err
		}
	}

	return &Catalog{
		lang:     tag,
		messages: messages,
		fallback: fallback,
	}, nil
}

func parse(tag language.Tag) (map[string]*template.Template, error) {
	base, _ := tag.Base()

	data, err := locales.ReadFile("locales/" + base.String() + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no messages for %s: %w", tag, err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode messages for %s: %w", tag, err)
	}

	funcs := sprig.TxtFuncMap()
	messages := make(map[string]*template.Template, len(raw))

	for key, text := range raw {
		tmpl, err := template.New(key).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("message %q for %s: %w", key, tag, err)
		}

		messages[key] = tmpl
	}

	return messages, nil
}

// Language is the language the catalog was built for.
func (c *Catalog) Language() language.Tag {
	return c.lang
}

// Keys lists the message keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.messages))
	for k := range c.messages {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Translate renders the message for key with data. It has the signature
// of flow.Translator.
func (c *Catalog) Translate(key string, data map[string]any) string {
	tmpl, ok := c.messages[key]
	if !ok {
		if tmpl, ok = c.fallback[key]; !ok {
			return key
		}
	}

	if data == nil {
		data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return key
	}

	return buf.String()
}
