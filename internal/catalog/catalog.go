// Package catalog is the read-only registry of process step types and the
// controlled vocabularies the builder resolves papers against. The default
// catalog is baked into the binary from catalog.yaml.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"maml/internal/maml"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// OptionFermentationMethod is the step option holding the fermentation kind code.
const OptionFermentationMethod = "fermentation_method"

// ProcessStepSpec is the catalog entry for one step type.
type ProcessStepSpec struct {
	Type        string             `yaml:"type"`
	Description string             `yaml:"description"`
	Options     map[string]*string `yaml:"options"`
	Parameters  []maml.Parameter   `yaml:"parameters"`
}

// FermentationMethod pairs a fermentation kind with its abbreviation.
type FermentationMethod struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

// Template is a fixed three-stage route for a feedstock/target pair.
type Template struct {
	Name               string   `yaml:"name"`
	Feedstocks         []string `yaml:"feedstocks"`
	Target             string   `yaml:"target"`
	PretreatmentFamily string   `yaml:"pretreatment_family"`
	FermentationFamily string   `yaml:"fermentation_family"`
	Terminal           string   `yaml:"terminal"`
}

// Matches reports whether the template serves the pair.
func (t Template) Matches(feedstock, target string) bool {
	if t.Target != target {
		return false
	}
	for _, f := range t.Feedstocks {
		if f == feedstock {
			return true
		}
	}
	return false
}

type document struct {
	Feedstocks          []string             `yaml:"feedstocks"`
	Targets             []string             `yaml:"targets"`
	FermentationMethods []FermentationMethod `yaml:"fermentation_methods"`
	Templates           []Template           `yaml:"templates"`
	Steps               []ProcessStepSpec    `yaml:"steps"`
}

// Catalog is safe for concurrent reads; nothing mutates it after construction.
type Catalog struct {
	specs     map[string]ProcessStepSpec
	types     []string // sorted
	doc       document
	templates []Template
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// MustDefault returns the embedded catalog and panics if it is malformed.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from a YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{specs: make(map[string]ProcessStepSpec, len(doc.Steps)), doc: doc, templates: doc.Templates}
	for _, s := range doc.Steps {
		if s.Type == "" {
			return nil, fmt.Errorf("catalog: step without type")
		}
		if _, dup := c.specs[s.Type]; dup {
			return nil, fmt.Errorf("catalog: duplicate step type %q", s.Type)
		}
		if s.Options == nil {
			s.Options = map[string]*string{}
		}
		c.specs[s.Type] = s
		c.types = append(c.types, s.Type)
	}
	sort.Strings(c.types)

	for _, t := range doc.Templates {
		if _, ok := c.specs[t.Terminal]; !ok {
			return nil, fmt.Errorf("catalog: template %s terminal %q is not a step type", t.Name, t.Terminal)
		}
		if len(c.SubtypesOf(t.PretreatmentFamily)) == 0 || len(c.SubtypesOf(t.FermentationFamily)) == 0 {
			return nil, fmt.Errorf("catalog: template %s references an empty family", t.Name)
		}
	}
	return c, nil
}

// Lookup returns a copy of the catalog entry for a step type.
func (c *Catalog) Lookup(stepType string) (ProcessStepSpec, bool) {
	s, ok := c.specs[stepType]
	if !ok {
		return ProcessStepSpec{}, false
	}
	s.Options = maml.CloneOptions(s.Options)
	s.Parameters = append([]maml.Parameter(nil), s.Parameters...)
	return s, true
}

// SubtypesOf returns every step type starting with prefix, sorted.
func (c *Catalog) SubtypesOf(prefix string) []string {
	var out []string
	for _, t := range c.types {
		if strings.HasPrefix(t, prefix) {
			out = append(out, t)
		}
	}
	return out
}

// Types returns all step types, sorted.
func (c *Catalog) Types() []string {
	return append([]string(nil), c.types...)
}

// Instantiate materializes a step with the catalog defaults for its type.
// Unknown types yield a bare step carrying only the type.
func (c *Catalog) Instantiate(stepType string) maml.ProcessFlowStep {
	step := maml.ProcessFlowStep{
		Type:       stepType,
		Options:    map[string]*string{},
		Parameters: []maml.Parameter{},
	}
	if spec, ok := c.Lookup(stepType); ok {
		step.Description = spec.Description
		step.Options = spec.Options
		step.Parameters = spec.Parameters
	}
	return step
}

// Feedstocks returns the controlled feedstock vocabulary.
func (c *Catalog) Feedstocks() []string {
	return append([]string(nil), c.doc.Feedstocks...)
}

// Targets returns the controlled target product vocabulary.
func (c *Catalog) Targets() []string {
	return append([]string(nil), c.doc.Targets...)
}

// FermentationMethods returns the fermentation kinds in catalog order.
func (c *Catalog) FermentationMethods() []FermentationMethod {
	return append([]FermentationMethod(nil), c.doc.FermentationMethods...)
}

// FermentationMethodNames returns the fermentation kind names in catalog order.
func (c *Catalog) FermentationMethodNames() []string {
	names := make([]string, 0, len(c.doc.FermentationMethods))
	for _, m := range c.doc.FermentationMethods {
		names = append(names, m.Name)
	}
	return names
}

// FermentationCode maps a fermentation kind name to its abbreviation.
// Matching ignores case and separators so snake_cased oracle answers resolve.
func (c *Catalog) FermentationCode(name string) (string, bool) {
	want := normalize(name)
	for _, m := range c.doc.FermentationMethods {
		if normalize(m.Name) == want || normalize(m.Code) == want {
			return m.Code, true
		}
	}
	return "", false
}

// TemplateFor returns the template serving a feedstock/target pair, if any.
func (c *Catalog) TemplateFor(feedstock, target string) (Template, bool) {
	for _, t := range c.templates {
		if t.Matches(feedstock, target) {
			return t, true
		}
	}
	return Template{}, false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
