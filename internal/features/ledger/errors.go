package ledger

import (
	"fmt"

	"serotonyl.ru/snack-bot/internal/common"
)

// Ошибки движка списаний. Тексты показываются клиенту как есть.
var (
	// ErrItemIDRequired — в запросе нет идентификатора товара
	ErrItemIDRequired = common.Validation("itemId is required")
	// ErrItemNotFound — товара с таким id (или именем) нет
	ErrItemNotFound = common.NotFound("お菓子が見つかりません")
	// ErrOutOfStock — остаток равен нулю
	ErrOutOfStock = common.StateConflict("在庫がありません")
	// ErrItemInactive — товар снят с продажи
	ErrItemInactive = common.StateConflict("このお菓子は現在利用できません")
	// ErrInvalidQuantity — количество не положительное
	ErrInvalidQuantity = common.Validation("個数は正の数字で指定してください。")
	// ErrInsufficientStock — остатка меньше, чем запрошено (списание по имени)
	ErrInsufficientStock = common.StateConflict("在庫が足りません")
)

// StockShortageError — остатка не хватает на запрошенное количество.
// Available — остаток, прочитанный внутри транзакции.
type StockShortageError struct {
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("在庫が足りません。現在の在庫: %d個", e.Available)
}

func (e *StockShortageError) Unwrap() error { return ErrInsufficientStock }
