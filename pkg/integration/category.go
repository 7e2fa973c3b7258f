package integration

// Category groups integrations for presentation.
type Category string

// Known categories.
const (
	CategoryAutomation Category = "automation"
	CategoryPublishing Category = "publishing"
	CategoryAnalytics  Category = "analytics"
	CategorySEO        Category = "seo"
	CategorySocial     Category = "social"
	CategoryOther      Category = "other"
)

// CategoryMeta is the display metadata for a category.
type CategoryMeta struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

var categoryOrder = []Category{
	CategoryAutomation,
	CategoryPublishing,
	CategoryAnalytics,
	CategorySEO,
	CategorySocial,
	CategoryOther,
}

var categories = map[Category]CategoryMeta{
	CategoryAutomation: {Label: "Automation", Icon: "clock"},
	CategoryPublishing: {Label: "Publishing", Icon: "admin-post"},
	CategoryAnalytics:  {Label: "Analytics", Icon: "chart-bar"},
	CategorySEO:        {Label: "SEO", Icon: "search"},
	CategorySocial:     {Label: "Social Media", Icon: "share"},
	CategoryOther:      {Label: "Other", Icon: "admin-plugins"},
}

// Categories returns the category taxonomy in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		out = append(out, CategoryInfo{Category: c, CategoryMeta: categories[c]})
	}
	return out
}

// CategoryInfo pairs a category tag with its display metadata.
type CategoryInfo struct {
	Category Category `json:"category"`
	CategoryMeta
}

// ResolveCategory returns c and its metadata, or CategoryOther when c is unknown.
func ResolveCategory(c Category) (Category, CategoryMeta) {
	if meta, ok := categories[c]; ok {
		return c, meta
	}
	return CategoryOther, categories[CategoryOther]
}
