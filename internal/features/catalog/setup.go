package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/models"
)

// sampleItems — стартовый каталог для нового окружения.
var sampleItems = []CreateInput{
	{Name: "ポテトチップス", Description: "塩味のクラシックなポテトチップス", ImageURL: "https://via.placeholder.com/300x200?text=Potato+Chips", Price: 100, Stock: 15},
	{Name: "チョコレート", Description: "ミルクチョコレート", ImageURL: "https://via.placeholder.com/300x200?text=Chocolate", Price: 150, Stock: 10},
	{Name: "クッキー", Description: "バタークッキー（5枚入り）", ImageURL: "https://via.placeholder.com/300x200?text=Cookies", Price: 120, Stock: 8},
	{Name: "グミ", Description: "フルーツグミ", ImageURL: "https://via.placeholder.com/300x200?text=Gummy", Price: 80, Stock: 20},
	{Name: "せんべい", Description: "醤油せんべい", ImageURL: "https://via.placeholder.com/300x200?text=Rice+Cracker", Price: 90, Stock: 12},
}

// Seed добавляет стартовый каталог и возвращает число добавленных товаров.
func (s *Service) Seed(ctx context.Context) (int, error) {
	for i, in := range sampleItems {
		if _, err := s.Create(ctx, in); err != nil {
			return i, err
		}
	}
	log.WithField("count", len(sampleItems)).Info("Стартовый каталог добавлен")
	return len(sampleItems), nil
}

// LegacySweet — товар в старом формате (без цены).
// Используется только при импорте.
type LegacySweet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ImageURL    string     `json:"imageUrl"`
	Stock       int        `json:"stock"`
	CreatedAt   *time.Time `json:"createdAt"`
}

// ImportLegacy переносит товары старого формата в каталог.
// Цена ставится 0 (заполняется вручную), товар активен.
// Записи без имени пропускаются, отрицательный остаток приводится к 0.
func (s *Service) ImportLegacy(ctx context.Context, sweets []LegacySweet) (int, error) {
	migrated := 0
	for _, sw := range sweets {
		name := strings.TrimSpace(sw.Name)
		if name == "" {
			log.Warn("Импорт: пропущена запись без имени")
			continue
		}
		now := s.now()
		created := now
		if sw.CreatedAt != nil && !sw.CreatedAt.IsZero() {
			created = *sw.CreatedAt
		}
		stock := sw.Stock
		if stock < 0 {
			stock = 0
		}
		item := &models.Item{
			ID:          uuid.NewString(),
			Name:        name,
			Description: sw.Description,
			ImageURL:    sw.ImageURL,
			Price:       0,
			Stock:       stock,
			IsActive:    true,
			CreatedAt:   created,
			UpdatedAt:   now,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return migrated, common.Internal(fmt.Errorf("импорт %q: %w", name, err))
		}
		migrated++
	}
	log.WithField("migrated", migrated).Info("Импорт старого каталога завершён")
	return migrated, nil
}
