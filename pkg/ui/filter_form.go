package ui

import (
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/opsboard/pkg/bucket"
	"github.com/vanderheijden86/opsboard/pkg/filter"
	"github.com/vanderheijden86/opsboard/pkg/model"
)

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

func dueOptions() []huh.Option[bucket.Due] {
	var opts []huh.Option[bucket.Due]
	for _, b := range bucket.AllDue() {
		opts = append(opts, huh.NewOption(b.Label(), b))
	}
	return opts
}

func createdOptions() []huh.Option[bucket.Created] {
	var opts []huh.Option[bucket.Created]
	for _, b := range bucket.AllCreated() {
		opts = append(opts, huh.NewOption(b.Label(), b))
	}
	return opts
}

func valueOptions(values []string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("All", filter.All)}
	for _, v := range values {
		opts = append(opts, huh.NewOption(v, v))
	}
	return opts
}

// FilterOptions are the distinct values offered by the equality selects.
type FilterOptions struct {
	Categories []string
	Sectors    []string
	Owners     []string
}

// CollectFilterOptions gathers select values from records.
func CollectFilterOptions(records []model.Record) FilterOptions {
	return FilterOptions{
		Categories: filter.Options(records, model.Record.ItemCategory),
		Sectors:    filter.Options(records, model.Record.ItemSector),
		Owners:     filter.Options(records, model.Record.ItemOwner),
	}
}

// NewFilterForm builds the interactive filter picker. The selections are
// written into c when the form completes.
func NewFilterForm(c *filter.Criteria, opts FilterOptions) *huh.Form {
	if c.Due == "" {
		c.Due = bucket.DueAll
	}
	if c.Created == "" {
		c.Created = bucket.CreatedAll
	}
	for _, v := range []*string{&c.Category, &c.Sector, &c.Owner} {
		if *v == "" {
			*v = filter.All
		}
	}

	return newForm(
		huh.NewGroup(
			huh.NewSelect[bucket.Due]().
				Title("Due").
				Options(dueOptions()...).
				Value(&c.Due),
			huh.NewSelect[bucket.Created]().
				Title("Created").
				Options(createdOptions()...).
				Value(&c.Created),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Category").
				Options(valueOptions(opts.Categories)...).
				Value(&c.Category),
			huh.NewSelect[string]().
				Title("Sector").
				Options(valueOptions(opts.Sectors)...).
				Value(&c.Sector),
			huh.NewSelect[string]().
				Title("Owner").
				Options(valueOptions(opts.Owners)...).
				Value(&c.Owner),
			huh.NewInput().
				Title("Search").
				Placeholder("name or description").
				Value(&c.Query),
		),
	)
}

// RunFilterForm runs the picker before the board starts and returns the
// chosen criteria.
func RunFilterForm(current filter.Criteria, records []model.Record) (filter.Criteria, error) {
	c := current
	if err := NewFilterForm(&c, CollectFilterOptions(records)).Run(); err != nil {
		return current, err
	}
	return c, nil
}
