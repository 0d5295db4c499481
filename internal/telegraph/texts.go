package telegraph

import (
	"fmt"
	"strings"

	"github.com/zulandar/leadbot/internal/lang"
)

// Profile is the company the bot speaks for.
type Profile struct {
	Name      string
	City      string // primary-language spelling
	CityEn    string
	Address   string
	Phone     string
	Email     string
	Website   string
	Latitude  float64
	Longitude float64
	Stats     Stats
}

// Stats are the portfolio figures quoted in /info.
type Stats struct {
	Websites   int
	MobileApps int
	Bots       int
	Clients    int
}

// DefaultProfile returns the built-in company profile.
func DefaultProfile() Profile {
	return Profile{
		Name:      "PremiumSoft",
		City:      "Farg'ona",
		CityEn:    "Fergana",
		Address:   "Mustaqillik ko'chasi, 19-uy",
		Phone:     "+998 73 244 05 35",
		Email:     "info@premiumsoft.uz",
		Website:   "https://premiumsoft.uz",
		Latitude:  40.3834,
		Longitude: 71.7841,
		Stats:     Stats{Websites: 1208, MobileApps: 46, Bots: 75, Clients: 2268},
	}
}

// Location returns the office map pin.
func (p Profile) Location() *Location {
	return &Location{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Title:     p.Name,
		Address:   p.Address + ", " + p.CityEn,
	}
}

func startText(p Profile, name string, l lang.Language) string {
	if name == "" {
		name = lang.Pick(l, "do'stim", "friend")
	}
	return lang.Pick(l,
		fmt.Sprintf("👋 Salom, %s! %s botiga xush kelibsiz.\n\nBiz veb-saytlar, mobil ilovalar va Telegram botlar ishlab chiqamiz. Buyurtma berish uchun /order, barcha buyruqlar uchun /help yozing.", name, p.Name),
		fmt.Sprintf("👋 Hello, %s! Welcome to the %s bot.\n\nWe build websites, mobile apps and Telegram bots. Send /order to place an order or /help to see every command.", name, p.Name),
	)
}

func helpText(l lang.Language) string {
	if l == lang.Secondary {
		return strings.Join([]string{
			"📋 Available commands:",
			"/start - welcome message",
			"/info - about the company",
			"/services - what we build",
			"/order - place an order",
			"/hours - business hours",
			"/location - office address",
			"/contact - contact details",
			"/cancel - cancel the current order",
			"/help - this list",
		}, "\n")
	}
	return strings.Join([]string{
		"📋 Mavjud buyruqlar:",
		"/start - salomlashish",
		"/info - kompaniya haqida",
		"/services - xizmatlarimiz",
		"/order - buyurtma berish",
		"/hours - ish vaqti",
		"/location - ofis manzili",
		"/contact - aloqa ma'lumotlari",
		"/cancel - joriy buyurtmani bekor qilish",
		"/help - shu ro'yxat",
	}, "\n")
}

func infoText(p Profile, l lang.Language) string {
	s := p.Stats
	return lang.Pick(l,
		fmt.Sprintf("🏢 Biz haqimizda\n\n%s - %s shahridagi IT kompaniya. Qadriyatlarimiz: innovatsiya, mas'uliyat va eksportga yo'naltirilganlik.\n\n📊 %d+ veb-sayt, %d+ mobil ilova, %d+ Telegram bot, %d+ mijoz.\n\n📍 %s, %s",
			p.Name, p.City, s.Websites, s.MobileApps, s.Bots, s.Clients, p.Address, p.City),
		fmt.Sprintf("🏢 About us\n\n%s is an IT company based in %s. Our values: innovation, responsibility and export orientation.\n\n📊 %d+ websites, %d+ mobile apps, %d+ Telegram bots, %d+ clients.\n\n📍 %s, %s",
			p.Name, p.CityEn, s.Websites, s.MobileApps, s.Bots, s.Clients, p.Address, p.CityEn),
	)
}

func servicesText(l lang.Language) string {
	return lang.Pick(l,
		"🛠 Xizmatlarimiz:\n• Veb-saytlar va onlayn do'konlar\n• Mobil ilovalar (iOS, Android)\n• Telegram botlar\n• CRM va avtomatlashtirish tizimlari\n• UI/UX dizayn",
		"🛠 Our services:\n• Websites and online stores\n• Mobile apps (iOS, Android)\n• Telegram bots\n• CRM and automation systems\n• UI/UX design",
	)
}

func contactText(p Profile, l lang.Language) string {
	return lang.Pick(l,
		fmt.Sprintf("📞 Aloqa:\nTelefon: %s\nEmail: %s\nSayt: %s\nManzil: %s, %s", p.Phone, p.Email, p.Website, p.Address, p.City),
		fmt.Sprintf("📞 Contact:\nPhone: %s\nEmail: %s\nWebsite: %s\nAddress: %s, %s", p.Phone, p.Email, p.Website, p.Address, p.CityEn),
	)
}

func locationText(p Profile, l lang.Language) string {
	return lang.Pick(l,
		fmt.Sprintf("📍 Ofisimiz: %s, %s. Xaritadagi belgi quyida.", p.Address, p.City),
		fmt.Sprintf("📍 Our office: %s, %s. The map pin is below.", p.Address, p.CityEn),
	)
}

func unknownCommandText(name string, l lang.Language) string {
	return lang.Pick(l,
		fmt.Sprintf("🤔 /%s buyrug'i mavjud emas. Buyruqlar ro'yxati uchun /help yozing.", name),
		fmt.Sprintf("🤔 /%s is not a command I know. Send /help for the list.", name),
	)
}

func nothingToCancelText(l lang.Language) string {
	return lang.Pick(l,
		"ℹ️ Bekor qilinadigan faol buyurtma yo'q.",
		"ℹ️ There is no order in progress to cancel.",
	)
}

func callToActionText(l lang.Language) string {
	return lang.Pick(l,
		"💼 Agar bizning xizmatlarimizga muhtoj bo'lsangiz, /order buyrug'i orqali buyurtma bering.",
		"💼 If you need our services, place an order with /order.",
	)
}

func invitationText(l lang.Language) string {
	return lang.Pick(l,
		"📝 Loyihangizni muhokama qilishga tayyormiz! Hoziroq /order yozing.",
		"📝 We'd be glad to discuss your project! Send /order to get started.",
	)
}

func loyaltyText(l lang.Language) string {
	return lang.Pick(l,
		"🙏 Biz bilan muloqot qilganingiz uchun rahmat! Doimiy mijozlarimizga alohida e'tibor beramiz.",
		"🙏 Thank you for staying in touch! We look after our regular clients.",
	)
}

func fallbackText(l lang.Language) string {
	return lang.Pick(l,
		"😊 Savolingiz uchun rahmat! Mutaxassislarimiz tez orada javob berishadi. Batafsil ma'lumot uchun /info yoki /contact.",
		"😊 Thanks for your question! Our team will get back to you soon. See /info or /contact for details.",
	)
}
