package extract

import (
	"testing"

	"wa-listings/internal/domain"
)

func TestMessageFullListing(t *testing.T) {
	draft := Message("2 BHK apartment in Kreuzberg, 1200€/month, fully furnished with modern amenities, contact: +49 123 456789")
	if draft.Location != "Kreuzberg" {
		t.Fatalf("ожидали локацию Kreuzberg, получили %q", draft.Location)
	}
	if draft.Price != 1200 {
		t.Fatalf("ожидали цену 1200, получили %d", draft.Price)
	}
	if draft.PropertyType != domain.PropertyTypeApartment {
		t.Fatalf("ожидали apartment, получили %q", draft.PropertyType)
	}
	if draft.Bedrooms != 2 {
		t.Fatalf("ожидали 2 спальни, получили %d", draft.Bedrooms)
	}
	if !draft.Furnished {
		t.Fatalf("ожидали furnished=true")
	}
	if draft.ContactInfo != "+49 123 456789" {
		t.Fatalf("ожидали контакт +49 123 456789, получили %q", draft.ContactInfo)
	}
	if draft.Title != "2 Bedroom apartment in Kreuzberg" {
		t.Fatalf("неожиданный заголовок: %q", draft.Title)
	}
	if !IsComplete(draft) {
		t.Fatalf("ожидали полный черновик")
	}
}

func TestMessageStudioPriority(t *testing.T) {
	draft := Message("Studio flat in Mitte, perfect for students, 800€, furnished, WhatsApp: +49 987 654321, close to transport")
	if draft.PropertyType != domain.PropertyTypeStudio {
		t.Fatalf("ожидали studio, получили %q", draft.PropertyType)
	}
	if draft.Price != 800 {
		t.Fatalf("ожидали цену 800, получили %d", draft.Price)
	}
	if draft.Location != "Mitte" {
		t.Fatalf("ожидали локацию Mitte, получили %q", draft.Location)
	}
	if draft.ContactInfo != "+49 987 654321" {
		t.Fatalf("ожидали контакт +49 987 654321, получили %q", draft.ContactInfo)
	}
}

func TestMessagePriorityIgnoresWordOrder(t *testing.T) {
	// "apartment" встречается раньше, но studio выигрывает по списку приоритетов.
	draft := Message("apartment building with a studio unit in Wedding, 700€, tel: 030 1234567")
	if draft.PropertyType != domain.PropertyTypeStudio {
		t.Fatalf("ожидали studio по приоритету, получили %q", draft.PropertyType)
	}
}

func TestMessageDefaults(t *testing.T) {
	draft := Message("just some chatter about the weather")
	if draft.Bedrooms != 1 || draft.Bathrooms != 1 {
		t.Fatalf("ожидали значения по умолчанию 1/1, получили %d/%d", draft.Bedrooms, draft.Bathrooms)
	}
	if draft.Furnished {
		t.Fatalf("ожидали furnished=false по умолчанию")
	}
	if draft.Location != "" || draft.Price != 0 || draft.ContactInfo != "" || draft.PropertyType != "" {
		t.Fatalf("не ожидали извлечённых полей: %+v", draft)
	}
	if draft.Title != "1 Bedroom Property" {
		t.Fatalf("неожиданный заголовок: %q", draft.Title)
	}
}

func TestMessageEmptyInput(t *testing.T) {
	draft := Message("")
	if draft.Description != "" {
		t.Fatalf("ожидали пустое описание")
	}
	if draft.ImageURL == "" {
		t.Fatalf("ожидали заглушку изображения даже для пустого ввода")
	}
}

func TestMessageDeterministic(t *testing.T) {
	text := "2 BHK house in Neukölln, 1500€, phone: +49 111 222333"
	first := Message(text)
	second := Message(text)
	if first != second {
		t.Fatalf("ожидали идентичный результат повторного извлечения")
	}
}

// Минимальная грамматика цены: у "1,200€" совпадает только хвост "200€".
func TestMessagePriceGrammar(t *testing.T) {
	draft := Message("apartment in Moabit, 1,200€/month, contact: +49 555 666777")
	if draft.Price != 200 {
		t.Fatalf("ожидали цену 200, получили %d", draft.Price)
	}
}

// Регрессия: "unfurnished" содержит подстроку "furnished" и помечает
// объявление как меблированное. Поведение сохранено намеренно.
func TestMessageUnfurnishedQuirk(t *testing.T) {
	draft := Message("Studio flat available in Mitte, 800€, unfurnished, WhatsApp: +49 987 654321")
	if !draft.Furnished {
		t.Fatalf("ожидали furnished=true для unfurnished (подстрочное совпадение)")
	}
}

func TestMessageStudioImagePlaceholder(t *testing.T) {
	studio := Message("studio in Mitte, 800€, contact: +49 1")
	other := Message("house in Mitte, 800€, contact: +49 1")
	if studio.ImageURL == other.ImageURL {
		t.Fatalf("ожидали разные заглушки для studio и остальных типов")
	}
}

func TestIsSendable(t *testing.T) {
	cases := map[string]bool{
		"2 BHK apartment in Kreuzberg, 1200€/month, furnished, contact: +49123456789": true,
		"Studio flat available in Mitte, 800€, unfurnished, WhatsApp: +49987654321":   true,
		"nice apartment in Kreuzberg, call me sometime":                               false,
		"hello everyone, how are you?":                                                false,
		"": false,
	}
	for text, expected := range cases {
		if got := IsSendable(text); got != expected {
			t.Fatalf("IsSendable(%q): ожидали %v, получили %v", text, expected, got)
		}
	}
}

func TestIsCompleteRejectsPartial(t *testing.T) {
	draft := Message("apartment in Kreuzberg for rent")
	if IsComplete(draft) {
		t.Fatalf("не ожидали полный черновик без цены и контакта")
	}
}
