package domain

import "time"

// Типы недвижимости, которые распознаёт экстрактор.
const (
	PropertyTypeStudio    = "studio"
	PropertyTypeApartment = "apartment"
	PropertyTypeHouse     = "house"
	PropertyTypeOther     = "other"
)

// Listing описывает сохранённое объявление об аренде.
type Listing struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Price        int    `json:"price"`
	Location     string `json:"location"`
	PropertyType string `json:"propertyType"`
	Bedrooms     int    `json:"bedrooms"`
	Bathrooms    int    `json:"bathrooms"`
	ImageURL     string `json:"imageUrl"`
	Furnished    bool   `json:"furnished"`
	ContactInfo  string `json:"contactInfo"`
}

// ListingDraft — частично заполненное объявление до присвоения идентификатора.
// Пустая строка или нулевая цена означают, что поле не удалось извлечь.
type ListingDraft struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Price        int    `json:"price"`
	Location     string `json:"location"`
	PropertyType string `json:"propertyType"`
	Bedrooms     int    `json:"bedrooms"`
	Bathrooms    int    `json:"bathrooms"`
	ImageURL     string `json:"imageUrl"`
	Furnished    bool   `json:"furnished"`
	ContactInfo  string `json:"contactInfo"`
}

// ListingPatch описывает частичное обновление объявления.
// nil-поле оставляет текущее значение без изменений.
type ListingPatch struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Price        *int    `json:"price"`
	Location     *string `json:"location"`
	PropertyType *string `json:"propertyType"`
	Bedrooms     *int    `json:"bedrooms"`
	Bathrooms    *int    `json:"bathrooms"`
	ImageURL     *string `json:"imageUrl"`
	Furnished    *bool   `json:"furnished"`
	ContactInfo  *string `json:"contactInfo"`
}

// MonitoredGroup описывает отслеживаемую группу WhatsApp.
type MonitoredGroup struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	InviteLink  string    `json:"inviteLink"`
	IsActive    bool      `json:"isActive"`
	LastScraped time.Time `json:"lastScraped"`
}

// InboundMessage — входящее сообщение из вебхука провайдера.
type InboundMessage struct {
	ID   string
	Type string
	Body string
}

// IsText сообщает, содержит ли сообщение текстовое тело.
func (m InboundMessage) IsText() bool {
	return m.Type == "text"
}
