// Package notify anuncia deals recém-criados em um chat do Telegram.
package notify

import (
	"fmt"
	"log"

	"github.com/abhingram/deals247online-sub000/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier envia uma mensagem por deal novo para o chat configurado.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier autentica o bot e retorna o notificador.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("erro ao autenticar bot do Telegram: %w", err)
	}
	log.Printf("Notificador autenticado como @%s", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyNewDeal monta e envia o anúncio de um deal recém-criado.
func (n *TelegramNotifier) NotifyNewDeal(deal *models.Deal) error {
	message := fmt.Sprintf(
		"🔥 NOVA OFERTA!\n\n"+
			"%s\n"+
			"De: R$ %.2f\n"+
			"Por: R$ %.2f (-%d%%)\n",
		deal.Title,
		deal.OriginalPrice,
		deal.DiscountedPrice,
		deal.DiscountPercentage,
	)
	if deal.DealURL != "" {
		message += fmt.Sprintf("\nLink: %s", deal.DealURL)
	}

	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("erro ao enviar mensagem: %w", err)
	}
	return nil
}
