// Package category maps scraped products onto the closed set of equipment
// categories used by the catalog. Detection is keyword matching over the
// product's name, description, and URL path, evaluated in a fixed priority
// order so that specific gear (charge controllers, inverters) is never
// shadowed by generic terms like "kit" or "panel".
package category

import (
	"net/url"
	"strings"

	"solarcrawl/pkg/types"
)

type keywordSet struct {
	category types.EquipmentCategory
	keywords []string
}

// detectionOrder lists categories most-specific first. The first set with a
// matching keyword wins.
var detectionOrder = []keywordSet{
	{types.CategoryChargeController, []string{
		"charge controller", "mppt", "pwm controller", "solar controller",
	}},
	{types.CategoryInverter, []string{
		"inverter", "microinverter", "micro-inverter", "power station",
	}},
	{types.CategoryBattery, []string{
		"battery", "batteries", "lifepo4", "lithium", "agm", "deep cycle",
	}},
	{types.CategorySolarPanel, []string{
		"solar panel", "pv module", "photovoltaic", "solar module", "panel",
	}},
	{types.CategoryMonitoring, []string{
		"monitor", "monitoring", "energy meter", "gateway", "shunt",
	}},
	{types.CategoryMounting, []string{
		"mount", "racking", "rail", "roof attachment", "ground screw", "tilt",
	}},
	{types.CategoryWiring, []string{
		"wire", "cable", "mc4", "connector", "extension",
	}},
	{types.CategoryElectrical, []string{
		"breaker", "fuse", "combiner", "disconnect", "busbar", "junction box",
		"surge protector",
	}},
	{types.CategoryAccessories, []string{
		"kit", "accessory", "adapter", "bracket", "tool", "cover",
	}},
}

// Detect maps a product to its equipment category. It never fails: products
// matching no keyword set land in Other.
func Detect(product types.ScrapedProduct) types.EquipmentCategory {
	haystack := strings.ToLower(
		product.Name + " " + product.Description + " " + pathTokens(product.SourceURL),
	)
	if strings.TrimSpace(haystack) == "" {
		return types.CategoryOther
	}
	for _, set := range detectionOrder {
		for _, keyword := range set.keywords {
			if strings.Contains(haystack, keyword) {
				return set.category
			}
		}
	}
	return types.CategoryOther
}

// pathTokens turns a source URL's path into space-separated words so slug
// fragments like "ecoflow-delta-2" participate in matching.
func pathTokens(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return ""
	}
	return strings.NewReplacer("/", " ", "-", " ", "_", " ").Replace(u.Path)
}
