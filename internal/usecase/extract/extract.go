package extract

import (
	"regexp"
	"strconv"
	"strings"

	"wa-listings/internal/domain"
)

var (
	locationRegex = regexp.MustCompile(`(?i)in\s+([^,]+)`)
	priceRegex    = regexp.MustCompile(`(\d+)\s*€`)
	bedroomsRegex = regexp.MustCompile(`(?i)(\d+)\s*(?:bhk|bedroom)`)
	contactRegex  = regexp.MustCompile(`(?i)(?:contact|whatsapp|tel|phone):\s*([+\d\s-]+)`)
)

// Порядок важен: studio имеет приоритет над apartment, apartment над house,
// независимо от позиции слова в сообщении.
var propertyTypes = []string{
	domain.PropertyTypeStudio,
	domain.PropertyTypeApartment,
	domain.PropertyTypeHouse,
}

// Заглушки изображений: одна для студий, другая для всего остального.
const (
	studioImageURL  = "https://images.unsplash.com/photo-1502672260266-1c1ef2d93688"
	defaultImageURL = "https://images.unsplash.com/photo-1522708323590-d24dbb6b0267"
)

// Message извлекает поля объявления из свободного текста.
// Функция тотальна и детерминирована: нераспознанные поля остаются пустыми,
// bedrooms и bathrooms по умолчанию равны 1.
func Message(text string) domain.ListingDraft {
	draft := domain.ListingDraft{
		Bedrooms:  1,
		Bathrooms: 1,
	}

	if m := locationRegex.FindStringSubmatch(text); m != nil {
		draft.Location = strings.TrimSpace(m[1])
	}

	if m := priceRegex.FindStringSubmatch(text); m != nil {
		if price, err := strconv.Atoi(m[1]); err == nil {
			draft.Price = price
		}
	}

	lower := strings.ToLower(text)
	for _, pt := range propertyTypes {
		if strings.Contains(lower, pt) {
			draft.PropertyType = pt
			break
		}
	}

	if m := bedroomsRegex.FindStringSubmatch(text); m != nil {
		if bedrooms, err := strconv.Atoi(m[1]); err == nil {
			draft.Bedrooms = bedrooms
		}
	}

	// Подстрочное совпадение: "unfurnished" тоже содержит "furnished".
	// Это поведение исходного парсера, закреплено регрессионным тестом.
	draft.Furnished = strings.Contains(lower, "furnished")

	if m := contactRegex.FindStringSubmatch(text); m != nil {
		draft.ContactInfo = strings.TrimSpace(m[1])
	}

	draft.Title = buildTitle(draft)
	draft.Description = strings.TrimSpace(text)

	if draft.PropertyType == domain.PropertyTypeStudio {
		draft.ImageURL = studioImageURL
	} else {
		draft.ImageURL = defaultImageURL
	}

	return draft
}

func buildTitle(draft domain.ListingDraft) string {
	var parts []string
	if draft.Bedrooms > 0 {
		parts = append(parts, strconv.Itoa(draft.Bedrooms)+" Bedroom")
	}
	if draft.PropertyType != "" {
		parts = append(parts, draft.PropertyType)
	} else {
		parts = append(parts, "Property")
	}
	if draft.Location != "" {
		parts = append(parts, "in "+draft.Location)
	}
	return strings.Join(parts, " ")
}

// IsSendable дешёво отсеивает сообщения, из которых заведомо не выйдет
// объявление: нужны локация, цена, контакт и тип недвижимости.
func IsSendable(text string) bool {
	draft := Message(text)
	return draft.Location != "" &&
		draft.Price > 0 &&
		draft.ContactInfo != "" &&
		draft.PropertyType != ""
}

// IsComplete проверяет, что в черновике заполнены все обязательные поля.
func IsComplete(draft domain.ListingDraft) bool {
	return draft.Title != "" &&
		draft.Description != "" &&
		draft.Price > 0 &&
		draft.Location != "" &&
		draft.PropertyType != "" &&
		draft.Bedrooms > 0 &&
		draft.Bathrooms > 0 &&
		draft.ImageURL != "" &&
		draft.ContactInfo != ""
}
