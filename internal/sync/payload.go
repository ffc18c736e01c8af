package sync

import (
	"fmt"
	"sort"
	"strings"

	"catsync/internal/catalog"
	"catsync/internal/models"
)

// buildItemPayload assembles the full attribute payload for one item. The
// same snapshot always yields the same payload, so resubmitting is
// idempotent.
func buildItemPayload(p *models.Product, visibility string) catalog.ItemPayload {
	payload := catalog.ItemPayload{
		RetailerID:   p.RetailerID(),
		Name:         p.Title,
		Price:        formatPrice(p.Price, p.Currency),
		Currency:     p.Currency,
		Availability: availability(p),
		Visibility:   visibility,
	}

	if p.Description != nil {
		payload.Description = *p.Description
	}
	if p.URL != nil {
		payload.URL = *p.URL
	}
	if len(p.Images) > 0 {
		payload.ImageURL = p.Images[0]
		payload.AdditionalImageURLs = p.Images[1:]
	}

	payload.Brand = deref(p.Brand)
	payload.Size = deref(p.Size)
	payload.Color = deref(p.Color)
	payload.Material = deref(p.Material)
	payload.Pattern = deref(p.Pattern)
	payload.Condition = deref(p.Condition)
	payload.AgeGroup = deref(p.AgeGroup)
	payload.Gender = deref(p.Gender)

	if len(p.Extra) > 0 {
		payload.CustomData = p.Extra
	}

	return payload
}

// buildGroupVariants derives the group's variants payload from the
// distinguishing attribute combinations of its children. Each attribute
// becomes one entry with the union of option values, in stable order.
func buildGroupVariants(parent *models.Product) []catalog.VariantAttribute {
	options := make(map[string][]string)

	for _, variant := range parent.Variants {
		for name, value := range variant.VariantAttributes {
			if !contains(options[name], value) {
				options[name] = append(options[name], value)
			}
		}
	}

	if len(options) == 0 {
		return nil
	}

	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	variants := make([]catalog.VariantAttribute, 0, len(names))
	for _, name := range names {
		variants = append(variants, catalog.VariantAttribute{
			ProductField: name,
			Label:        labelFor(name),
			Options:      options[name],
		})
	}
	return variants
}

func availability(p *models.Product) string {
	switch p.StockStatus {
	case models.StockOutOfStock:
		return "out of stock"
	case models.StockBackorder:
		return "available for order"
	default:
		return "in stock"
	}
}

func formatPrice(price float64, currency string) string {
	return fmt.Sprintf("%.2f %s", price, currency)
}

func labelFor(field string) string {
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
