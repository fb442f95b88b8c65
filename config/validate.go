package config

import (
	"github.com/pevans/propwatch/searchurl"
	"github.com/pevans/propwatch/taxonomy"
)

// DuplicatePolicy decides what happens when two queries share a name.
type DuplicatePolicy int

const (
	// DuplicatesReject fails validation with ErrDuplicateQuery.
	DuplicatesReject DuplicatePolicy = iota
	// DuplicatesLastWins keeps the later query under the earlier position.
	DuplicatesLastWins
)

// ParseOptions controls the policies applied by Parse.
type ParseOptions struct {
	DuplicateNames DuplicatePolicy

	// SkipInvalidQueries drops queries whose URL cannot be compiled and
	// reports them in Config.Skipped instead of failing the whole parse.
	// Schema errors are always fatal.
	SkipInvalidQueries bool
}

// Settings holds the mail delivery settings.
type Settings struct {
	MailFrom   string
	SMTPServer string
	SMTPPort   int
	MailTo     []string
}

// Query is a named, compiled search.
type Query struct {
	Name string
	URL  *searchurl.URL
}

// Config is a fully validated configuration.
type Config struct {
	Settings Settings

	// Queries are kept in declaration order.
	Queries []Query

	Skipped []*QueryError
}

// URLs returns the compiled URLs keyed by query name.
func (c *Config) URLs() map[string]*searchurl.URL {
	urls := make(map[string]*searchurl.URL, len(c.Queries))
	for _, q := range c.Queries {
		urls[q.Name] = q.URL
	}
	return urls
}

// Parse validates an untyped configuration document and compiles every query.
// It stops at the first schema error; nothing is returned alongside an error.
func Parse(raw map[string]any, opts ParseOptions) (*Config, error) {
	for _, name := range keys(raw) {
		if _, ok := sections[name]; !ok {
			return nil, &SchemaError{
				Kind:    ErrUnknownSection,
				Section: name,
				Index:   -1,
				Allowed: keys(sections),
			}
		}
	}

	settings, err := parseSettings(raw)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Settings: settings}
	if err := parseQueries(raw, opts, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseSettings(raw map[string]any) (Settings, error) {
	v, ok := raw[SectionSettings]
	if !ok {
		return Settings{}, &SchemaError{Kind: ErrMissingAttribute, Section: SectionSettings, Index: -1}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Settings{}, &SchemaError{
			Kind:     ErrSectionShape,
			Section:  SectionSettings,
			Index:    -1,
			Expected: "map",
			Got:      typeName(v),
		}
	}
	if err := checkSection(SectionSettings, -1, m, settingsSchema); err != nil {
		return Settings{}, err
	}

	port, _ := asInt(m["smtp_port"])
	to, _ := asStringList(m["mail_to"])
	return Settings{
		MailFrom:   m["mail_from"].(string),
		SMTPServer: m["smtp_server"].(string),
		SMTPPort:   port,
		MailTo:     to,
	}, nil
}

func parseQueries(raw map[string]any, opts ParseOptions, cfg *Config) error {
	v, ok := raw[SectionQueries]
	if !ok {
		return &SchemaError{Kind: ErrMissingAttribute, Section: SectionQueries, Index: -1}
	}
	items, ok := v.([]any)
	if !ok {
		return &SchemaError{
			Kind:     ErrSectionShape,
			Section:  SectionQueries,
			Index:    -1,
			Expected: "list",
			Got:      typeName(v),
		}
	}

	// position of each name in cfg.Queries
	seen := make(map[string]int, len(items))

	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return &SchemaError{
				Kind:     ErrSectionShape,
				Section:  SectionQueries,
				Index:    i,
				Expected: "map",
				Got:      typeName(item),
			}
		}
		if err := checkSection(SectionQueries, i, m, querySchema); err != nil {
			return err
		}

		region := m["region"].(string)
		if v, present := m["sub_region"]; present {
			sub, isString := v.(string)
			if !isString || !taxonomy.IsSubRegion(region, sub) {
				if !isString {
					sub = typeName(v)
				}
				return &SchemaError{
					Kind:      ErrInvalidEnumValue,
					Section:   SectionQueries,
					Index:     i,
					Attribute: "sub_region",
					Value:     sub,
					Allowed:   taxonomy.SubRegions(region),
				}
			}
		}

		name := m["name"].(string)
		pos, dup := seen[name]
		if dup && opts.DuplicateNames == DuplicatesReject {
			return &SchemaError{
				Kind:      ErrDuplicateQuery,
				Section:   SectionQueries,
				Index:     i,
				Attribute: "name",
				Value:     name,
			}
		}

		u, err := searchurl.New(toQuery(m))
		if err != nil {
			qerr := &QueryError{Name: name, Err: err}
			if !opts.SkipInvalidQueries {
				return qerr
			}
			cfg.Skipped = append(cfg.Skipped, qerr)
			continue
		}

		if dup {
			cfg.Queries[pos].URL = u
			continue
		}
		seen[name] = len(cfg.Queries)
		cfg.Queries = append(cfg.Queries, Query{Name: name, URL: u})
	}

	return nil
}

// toQuery maps a schema-checked query entry onto URL compiler parameters.
func toQuery(m map[string]any) searchurl.Query {
	q := searchurl.Query{
		Offer:        m["offer"].(string),
		Region:       m["region"].(string),
		PropertyType: taxonomy.DefaultPropertyType,
	}
	if pt, ok := m["property_type"].(string); ok {
		q.PropertyType = pt
	}
	if sub, ok := m["sub_region"].(string); ok {
		q.SubRegions = []string{sub}
	}

	bounds := []struct {
		key string
		dst **int
	}{
		{"size_from", &q.SizeFrom},
		{"size_to", &q.SizeTo},
		{"year_from", &q.YearFrom},
		{"year_to", &q.YearTo},
		{"price_from", &q.PriceFrom},
		{"price_to", &q.PriceTo},
		{"price_m2_from", &q.PriceFromM2},
		{"price_m2_to", &q.PriceToM2},
	}
	for _, b := range bounds {
		if n, ok := asInt(m[b.key]); ok {
			*b.dst = searchurl.Int(n)
		}
	}

	return q
}
