package bot

import (
	"fmt"
	"strings"

	"serotonyl.ru/snack-bot/internal/models"
)

// Тексты ответов бота.
const (
	msgNoStock      = "現在、在庫のあるお菓子はありません。"
	msgConsumeUsage = "使い方: 消費 [お菓子名] [個数(省略可、デフォルト1)]"
	msgBadQuantity  = "個数は正の数字で指定してください。"
	msgError        = "エラーが発生しました。もう一度お試しください。"
	msgUnknown      = "コマンドが認識できませんでした。「ヘルプ」と送信してください。"

	msgHelp = `🍭 お菓子管理Bot 使い方

【コマンド一覧】
・一覧 / リスト
  → 在庫のあるお菓子を表示

・消費 [お菓子名] [個数]
  → お菓子を消費する
  例: 消費 ポテトチップス 2

・ヘルプ / 使い方
  → このメッセージを表示

Web管理画面で在庫の追加や管理ができます!`

	msgIntakeError = "申し訳ございません。エラーが発生しました。\nしばらく時間をおいて再度お試しください。"
)

func stockListText(items []*models.Item) string {
	if len(items) == 0 {
		return msgNoStock
	}
	var sb strings.Builder
	sb.WriteString("📦 在庫のあるお菓子:\n\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "・%s (残り: %d個)\n", it.Name, it.Stock)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func notFoundText(name string) string {
	return fmt.Sprintf("「%s」が見つかりませんでした。", name)
}

func shortageText(available int) string {
	return fmt.Sprintf("在庫が足りません。現在の在庫: %d個", available)
}

func consumedText(name string, quantity, remaining int) string {
	return fmt.Sprintf("✅ %s を %d個 消費しました。\n残り: %d個", name, quantity, remaining)
}

func intakeAckText(name string) string {
	return fmt.Sprintf("リクエストを受け付けました✅\n\nお菓子名: %s\n\n管理者が確認後、対応いたします。", name)
}
