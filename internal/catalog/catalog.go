// Package catalog holds the hand-curated list of plants shown on the
// supported plants page. It is maintained independently of the model's label
// table; Check reports where the two disagree.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/hosplant/hosplant/internal/labels"
)

//go:embed catalog.yaml
var embedded []byte

type Plant struct {
	Name           string   `json:"name"`
	ScientificName string   `json:"scientific_name"`
	Diseases       []string `json:"diseases"`
	ImageURL       string   `json:"image_url"`
}

type Catalog struct {
	Plants []Plant `json:"plants"`
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

func Parse(raw []byte) (*Catalog, error) {
	plants := []Plant{}
	if err := yaml.Unmarshal(raw, &plants); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{Plants: plants}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Validate() error {
	if len(c.Plants) == 0 {
		return errors.New("catalog is empty")
	}
	var errs []error
	seen := map[string]bool{}
	for i, p := range c.Plants {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("plant %d: name is empty", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("plant %s: duplicated", p.Name))
		}
		seen[p.Name] = true
		if p.ScientificName == "" {
			errs = append(errs, fmt.Errorf("plant %s: scientific name is empty", p.Name))
		}
		if len(p.Diseases) == 0 {
			errs = append(errs, fmt.Errorf("plant %s: no diseases listed", p.Name))
		}
		u, err := url.Parse(p.ImageURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, fmt.Errorf("plant %s: invalid image url %q", p.Name, p.ImageURL))
		}
	}
	return errors.Join(errs...)
}

// Rows splits the plants into rows of n entries for grid rendering.
func (c *Catalog) Rows(n int) [][]Plant {
	if n <= 0 {
		n = 1
	}
	rows := [][]Plant{}
	for start := 0; start < len(c.Plants); start += n {
		end := start + n
		if end > len(c.Plants) {
			end = len(c.Plants)
		}
		rows = append(rows, c.Plants[start:end])
	}
	return rows
}

// Report lists the differences between the catalog and the label table.
type Report struct {
	// NotInModel are catalog plants the model has no label for.
	NotInModel []string
	// NotInCatalog are label table plants the catalog does not list.
	NotInCatalog []string
	// UnknownDiseases are "plant: disease" pairs listed in the catalog but
	// absent from the label table.
	UnknownDiseases []string
}

func (r Report) Consistent() bool {
	return len(r.NotInModel) == 0 && len(r.NotInCatalog) == 0 && len(r.UnknownDiseases) == 0
}

// Check compares the catalog against the given "plant___condition" labels.
func (c *Catalog) Check(table []string) Report {
	conditions := map[string][]string{}
	order := []string{}
	for _, label := range table {
		plant, condition := labels.Split(label)
		if _, ok := conditions[plant]; !ok {
			order = append(order, plant)
		}
		conditions[plant] = append(conditions[plant], strings.ToLower(labels.CleanCondition(condition)))
	}

	report := Report{}
	listed := map[string]bool{}
	for _, p := range c.Plants {
		listed[p.Name] = true
		known, ok := conditions[p.Name]
		if !ok {
			report.NotInModel = append(report.NotInModel, p.Name)
			continue
		}
		for _, d := range p.Diseases {
			if !matchesCondition(strings.ToLower(d), known) {
				report.UnknownDiseases = append(report.UnknownDiseases, p.Name+": "+d)
			}
		}
	}
	for _, plant := range order {
		if !listed[plant] && plant != labels.UnknownPlant {
			report.NotInCatalog = append(report.NotInCatalog, plant)
		}
	}
	sort.Strings(report.NotInModel)
	sort.Strings(report.NotInCatalog)
	return report
}

// matchesCondition accepts a disease equal to a condition or naming its
// leading words, "esca" matches "esca (black measles)".
func matchesCondition(disease string, conditions []string) bool {
	for _, c := range conditions {
		if c == disease || strings.HasPrefix(c, disease+" ") {
			return true
		}
	}
	return false
}
