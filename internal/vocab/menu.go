package vocab

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// MenuFile is the top-level structure of a menu YAML file.
//
// Example:
//
//	menu:
//	  name: "Corner Diner"
//	items:
//	  - name: "Cheese Burger"
//	    category: mains
//	    price: 7.5
//	  - name: "Fries"
//	    category: sides
type MenuFile struct {
	Menu  MenuMeta `yaml:"menu"`
	Items []Item   `yaml:"items"`
}

// MenuMeta holds descriptive metadata for a menu.
type MenuMeta struct {
	// Name is the restaurant or menu display name.
	Name string `yaml:"name"`

	// Currency is an optional ISO 4217 code for Item.Price.
	Currency string `yaml:"currency"`
}

// Item is a single orderable menu entry. Only Name participates in
// recognition; the remaining fields are carried for the surrounding
// application.
type Item struct {
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
	Price    float64 `yaml:"price"`
}

// Names returns the item names in file order.
func (m *MenuFile) Names() []string {
	names := make([]string, len(m.Items))
	for i, it := range m.Items {
		names[i] = it.Name
	}
	return names
}

// Vocabulary loads the item names into a [Vocabulary].
func (m *MenuFile) Vocabulary() (*Vocabulary, error) {
	return Load(m.Names())
}

// LoadMenuFile reads and parses a menu YAML file from disk.
func LoadMenuFile(path string) (*MenuFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: open menu file %q: %w", path, err)
	}
	defer f.Close()

	mf, err := LoadMenuFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("vocab: parse menu file %q: %w", path, err)
	}
	return mf, nil
}

// LoadMenuFromReader parses menu YAML from r. Unknown keys are rejected so
// that typos surface at startup rather than as silently missing items.
func LoadMenuFromReader(r io.Reader) (*MenuFile, error) {
	var mf MenuFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyVocabulary
		}
		return nil, fmt.Errorf("vocab: decode menu yaml: %w", err)
	}
	return &mf, nil
}
