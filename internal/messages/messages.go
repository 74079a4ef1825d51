package messages

import (
	"fmt"
	"strings"
	"time"
)

const ParseModeHTML = "HTML"

const dateLayout = "02.01.2006 15:04"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func FormatDate(t time.Time) string {
	return t.Local().Format(dateLayout)
}

func ErrorDefault() string {
	return "🚫 <b>Ошибка</b>\nПопробуйте ещё раз."
}

func WelcomeTrial(server string, days int, until time.Time) string {
	return fmt.Sprintf("🎉 <b>Добро пожаловать! Вам активирован БЕСПЛАТНЫЙ тестовый период на %d дн.</b>\n\n"+
		"🌐 <b>Сервер:</b> %s\n"+
		"📅 <b>Активен до:</b> %s\n\n"+
		"Нажмите кнопку ниже, чтобы посмотреть подписку 🔥",
		days, Escape(server), FormatDate(until))
}

func WelcomeBack() string {
	return "Рады снова видеть тебя 🌍\n🔒 Управляй своим VPN легко — просто выбери нужный пункт ниже"
}

func WelcomeBackExpired() string {
	return "С возвращением! ❤️\n\nК сожалению, ваш тестовый период закончился.\n" +
		"Приобретите подписку для продолжения использования VPN 🔥"
}

func MainMenu() string {
	return "👋 Нажмите кнопку ниже для управления VPN"
}

func ChooseDuration() string {
	return "Выберите срок подписки:"
}

func ChooseServer() string {
	return "Выберите сервер:"
}

func PurchaseExpired() string {
	return "⌛ <b>Выбор тарифа устарел</b>\nНачните покупку заново."
}

func OrderDetails(plan, server string, amount int64, link string) string {
	return fmt.Sprintf("✅ <b>Детали заказа:</b>\n\n"+
		"📅 <b>Подписка:</b> %s\n"+
		"🌐 <b>Сервер:</b> %s\n"+
		"💰 <b>Сумма:</b> %d ₽\n\n"+
		"➡️ <a href='%s'>Нажмите для оплаты</a>\n\n"+
		"После оплаты подписка активируется автоматически!",
		Escape(plan), Escape(server), amount, Escape(link))
}

func PaymentLinkFailed() string {
	return "❌ Ошибка создания платежа. Попробуйте позже."
}

// SubscriptionInfo omits the greeting line when name is empty.
func SubscriptionInfo(name, server string, until time.Time) string {
	greeting := ""
	if name = Escape(name); name != "" {
		greeting = fmt.Sprintf("👤 %s, ваша подписка активна\n\n", name)
	}
	return fmt.Sprintf("%s<b>🌐 Ваш VPN сервер</b>\n\n"+
		"<b>Сервер:</b> %s\n"+
		"<b>Активен до:</b> %s",
		greeting, Escape(server), FormatDate(until))
}

func NoSubscription() string {
	return "❌ <b>У вас нет активной подписки</b>\n\nПриобретите подписку, чтобы получить доступ к VPN"
}

func Instructions() string {
	return "📖 <b>Инструкция по использованию:</b>\n\n" +
		"1. Установите приложение <b>V2RayBox</b>\n" +
		"2. Нажмите на <b>+</b> (добавить сервер)\n" +
		"3. Выберите <b>Импортировать v2ray URI из буфера</b>\n" +
		"4. Автоматически добавится ваш сервер\n" +
		"5. Нажмите <b>Подключить</b>\n\n" +
		"⚡ <b>Готово! VPN активирован.</b>"
}

func PurchaseConfirmed(server string, until time.Time) string {
	return fmt.Sprintf("✅ <b>Оплата прошла успешно!</b>\n\n"+
		"Ваша подписка на сервере %s активирована.\n"+
		"📅 Доступен до: %s\n\n"+
		"Нажмите «Показать купленный сервер» для получения информации.",
		Escape(server), FormatDate(until))
}

func PaymentCanceled() string {
	return "❌ <b>Платеж отменен</b>\n\nВаш платеж был отменен. Если это ошибка, попробуйте оплатить снова."
}

func SubscriptionRefunded() string {
	return "↩️ <b>Возврат средств выполнен</b>\n\nПодписка, оплаченная этим платежом, отключена."
}

func BtnBuy() string {
	return "🛒 Купить подписку"
}

func BtnShowServer() string {
	return "🌐 Показать купленный сервер"
}

func BtnInstructions() string {
	return "📖 Инструкция"
}

func BtnBack() string {
	return "🔙 Назад"
}
